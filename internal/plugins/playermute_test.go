package plugins

import (
	"context"
	"testing"
	"time"

	"rconcore/internal/rcon"
)

type fakeMuteStore struct {
	active  []Mute
	upserts []Mute
	deleted []string
}

func (f *fakeMuteStore) ListActive(ctx context.Context) ([]Mute, error) { return f.active, nil }
func (f *fakeMuteStore) Upsert(ctx context.Context, m Mute) error {
	f.upserts = append(f.upserts, m)
	return nil
}
func (f *fakeMuteStore) Delete(ctx context.Context, eaid string) error {
	f.deleted = append(f.deleted, eaid)
	return nil
}

type fakeMatcher struct {
	player rcon.Player
	err    error
}

func (f fakeMatcher) BestMatch(prefix string) (rcon.Player, error) { return f.player, f.err }

func TestPlayerMuteLoadsActiveMutesOnStart(t *testing.T) {
	store := &fakeMuteStore{active: []Mute{{EAID: "EA_a", Kind: MutePermanent}}}
	pm := NewPlayerMute(nil, store, fakeMatcher{}, nil, PlayerMuteConfig{Enabled: true})
	if err := pm.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, ok := pm.muted["EA_a"]; !ok {
		t.Fatalf("muted players must be loaded from the store on start")
	}
}

func TestPlayerMuteFirstChatKillsAndWarnsSecondKicks(t *testing.T) {
	pm := NewPlayerMute(nil, &fakeMuteStore{}, fakeMatcher{}, nil, PlayerMuteConfig{Enabled: true})
	pm.muted["EA_a"] = &mutedPlayer{kind: MuteRound}
	pm.eaid["p1"] = "EA_a"

	ev := rcon.Event{Kind: rcon.EventChat, Player: rcon.Player{Name: "p1"}, Message: "hello"}
	if err := pm.HandleEvent(context.Background(), ev); err != nil {
		t.Fatalf("first chat: %v", err)
	}
	if pm.muted["EA_a"].infractions != 1 {
		t.Fatalf("infractions = %d, want 1", pm.muted["EA_a"].infractions)
	}

	if err := pm.HandleEvent(context.Background(), ev); err != nil {
		t.Fatalf("second chat: %v", err)
	}
	if pm.muted["EA_a"].infractions != 2 {
		t.Fatalf("infractions = %d, want 2", pm.muted["EA_a"].infractions)
	}
}

func TestPlayerMuteRoundOverDropsRoundMutesOnly(t *testing.T) {
	store := &fakeMuteStore{}
	pm := NewPlayerMute(nil, store, fakeMatcher{}, nil, PlayerMuteConfig{Enabled: true})
	pm.muted["EA_round"] = &mutedPlayer{kind: MuteRound}
	pm.muted["EA_perm"] = &mutedPlayer{kind: MutePermanent}

	if err := pm.HandleEvent(context.Background(), rcon.Event{Kind: rcon.EventRoundOver}); err != nil {
		t.Fatalf("round over: %v", err)
	}
	if _, ok := pm.muted["EA_round"]; ok {
		t.Fatalf("round mute must be dropped at round end")
	}
	if _, ok := pm.muted["EA_perm"]; !ok {
		t.Fatalf("permanent mute must survive round end")
	}
}

func TestPlayerMuteCommandRejectedForNonAdmin(t *testing.T) {
	store := &fakeMuteStore{}
	pm := NewPlayerMute(nil, store, fakeMatcher{player: rcon.Player{Name: "target", EAID: "EA_t"}}, nil,
		PlayerMuteConfig{Enabled: true, Admins: map[string]bool{}})
	ev := rcon.Event{Kind: rcon.EventChat, Player: rcon.Player{Name: "notadmin"}, Message: "/mute target r spamming"}
	if err := pm.HandleEvent(context.Background(), ev); err != nil {
		t.Fatalf("non-admin mute command: %v", err)
	}
	if len(store.upserts) != 0 {
		t.Fatalf("non-admin must not be able to mute, got %+v", store.upserts)
	}
}

func TestPlayerMuteCommandByAdminMutesTarget(t *testing.T) {
	store := &fakeMuteStore{}
	pm := NewPlayerMute(nil, store, fakeMatcher{player: rcon.Player{Name: "target", EAID: "EA_t"}}, nil,
		PlayerMuteConfig{Enabled: true, Admins: map[string]bool{"admin1": true}})
	ev := rcon.Event{Kind: rcon.EventChat, Player: rcon.Player{Name: "admin1"}, Message: "/mute target r spamming chat"}
	if err := pm.HandleEvent(context.Background(), ev); err != nil {
		t.Fatalf("admin mute command: %v", err)
	}
	if len(store.upserts) != 1 || store.upserts[0].EAID != "EA_t" {
		t.Fatalf("mute must be persisted for the target, got %+v", store.upserts)
	}
	if _, ok := pm.muted["EA_t"]; !ok {
		t.Fatalf("mute must take effect immediately")
	}
}

func TestPlayerMuteAdminCommandsAreRateLimited(t *testing.T) {
	store := &fakeMuteStore{}
	pm := NewPlayerMute(nil, store, fakeMatcher{player: rcon.Player{Name: "target", EAID: "EA_t"}}, nil,
		PlayerMuteConfig{Enabled: true, Admins: map[string]bool{"admin1": true}, AdminCmdPeriod: time.Hour})

	ev := rcon.Event{Kind: rcon.EventChat, Player: rcon.Player{Name: "admin1"}, Message: "/mute target r first"}
	if err := pm.HandleEvent(context.Background(), ev); err != nil {
		t.Fatalf("first command: %v", err)
	}
	if len(store.upserts) != 1 {
		t.Fatalf("first command should reach the store, got %d upserts", len(store.upserts))
	}

	ev.Message = "/mute target r second"
	if err := pm.HandleEvent(context.Background(), ev); err != nil {
		t.Fatalf("second command: %v", err)
	}
	if len(store.upserts) != 1 {
		t.Fatalf("rate-limited command must not reach the store, got %d upserts", len(store.upserts))
	}
}
