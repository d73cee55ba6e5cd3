package plugins

import (
	"context"
	"errors"
	"testing"
	"time"

	"rconcore/internal/rcon"
)

type fakeBanStore struct {
	bans map[string]BanRecord
	err  error
}

func (f fakeBanStore) Lookup(ctx context.Context, guid string) (BanRecord, error) {
	if f.err != nil {
		return BanRecord{}, f.err
	}
	return f.bans[guid], nil
}

func TestBanEnforcerIgnoresUnbannedPlayer(t *testing.T) {
	b := NewBanEnforcer(nil, fakeBanStore{bans: map[string]BanRecord{}}, nil, BanEnforcerConfig{Enabled: true})
	ev := rcon.Event{Kind: rcon.EventAuthenticated, Player: rcon.Player{Name: "p1", EAID: "EA_deadbeef"}}
	if err := b.HandleEvent(context.Background(), ev); err != nil {
		t.Fatalf("unbanned player: %v", err)
	}
}

func TestBanEnforcerIgnoresExpiredStatus(t *testing.T) {
	b := NewBanEnforcer(nil, fakeBanStore{bans: map[string]BanRecord{
		"EA_deadbeef": {GUID: "EA_deadbeef", Status: BanStatusExpired, EndTime: time.Now().Add(time.Hour)},
	}}, nil, BanEnforcerConfig{Enabled: true})
	ev := rcon.Event{Kind: rcon.EventAuthenticated, Player: rcon.Player{Name: "p1", EAID: "EA_deadbeef"}}
	if err := b.HandleEvent(context.Background(), ev); err != nil {
		t.Fatalf("expired-status ban: %v", err)
	}
}

func TestBanEnforcerIgnoresActiveStatusPastEndTime(t *testing.T) {
	b := NewBanEnforcer(nil, fakeBanStore{bans: map[string]BanRecord{
		"EA_deadbeef": {GUID: "EA_deadbeef", Status: BanStatusActive, EndTime: time.Now().Add(-time.Hour)},
	}}, nil, BanEnforcerConfig{Enabled: true})
	ev := rcon.Event{Kind: rcon.EventAuthenticated, Player: rcon.Player{Name: "p1", EAID: "EA_deadbeef"}}
	if err := b.HandleEvent(context.Background(), ev); err != nil {
		t.Fatalf("active ban past its end time: %v", err)
	}
}

type fakeKickBanner struct {
	banAddCalls int
	kickCalls   int
	lastSubject rcon.BanSubject
	lastKicked  string
}

func (f *fakeKickBanner) BanAdd(ctx context.Context, subject rcon.BanSubject, duration rcon.BanDuration, reason string) error {
	f.banAddCalls++
	f.lastSubject = subject
	if duration.Kind != rcon.BanSeconds || duration.N != 1 {
		return errors.New("unexpected ban duration")
	}
	return nil
}

func (f *fakeKickBanner) Kick(ctx context.Context, player, reason string) error {
	f.kickCalls++
	f.lastKicked = player
	return nil
}

func TestBanEnforcerDispatchesExactlyOneBanAddAndOneKick(t *testing.T) {
	fake := &fakeKickBanner{}
	b := NewBanEnforcer(fake, fakeBanStore{bans: map[string]BanRecord{
		"EA_deadbeef": {GUID: "EA_deadbeef", Status: BanStatusActive, EndTime: time.Now().Add(time.Hour), Reason: "cheating"},
	}}, nil, BanEnforcerConfig{Enabled: true})
	ev := rcon.Event{Kind: rcon.EventAuthenticated, Player: rcon.Player{Name: "p1", EAID: "EA_deadbeef"}}
	if err := b.HandleEvent(context.Background(), ev); err != nil {
		t.Fatalf("active ban: %v", err)
	}
	if fake.banAddCalls != 1 {
		t.Fatalf("banAddCalls = %d, want 1", fake.banAddCalls)
	}
	if fake.kickCalls != 1 {
		t.Fatalf("kickCalls = %d, want 1", fake.kickCalls)
	}
	if fake.lastSubject.Kind != rcon.BanByGUID || fake.lastSubject.Value != "EA_deadbeef" {
		t.Fatalf("ban subject = %+v, want GUID EA_deadbeef", fake.lastSubject)
	}
	if fake.lastKicked != "p1" {
		t.Fatalf("kicked = %q, want p1", fake.lastKicked)
	}
}

func TestBanEnforcerSkipsWithoutRconOnActiveBan(t *testing.T) {
	b := NewBanEnforcer(nil, fakeBanStore{bans: map[string]BanRecord{
		"EA_deadbeef": {GUID: "EA_deadbeef", Status: BanStatusActive, EndTime: time.Now().Add(time.Hour), Reason: "cheating"},
	}}, nil, BanEnforcerConfig{Enabled: true})
	ev := rcon.Event{Kind: rcon.EventAuthenticated, Player: rcon.Player{Name: "p1", EAID: "EA_deadbeef"}}
	if err := b.HandleEvent(context.Background(), ev); err != nil {
		t.Fatalf("active ban with nil commander must not error: %v", err)
	}
}

func TestBanEnforcerIgnoresNonAuthenticatedEvents(t *testing.T) {
	b := NewBanEnforcer(nil, fakeBanStore{bans: map[string]BanRecord{
		"EA_deadbeef": {GUID: "EA_deadbeef", Status: BanStatusActive, EndTime: time.Now().Add(time.Hour)},
	}}, nil, BanEnforcerConfig{Enabled: true})
	ev := rcon.Event{Kind: rcon.EventLeave, Player: rcon.Player{Name: "p1", EAID: "EA_deadbeef"}}
	if err := b.HandleEvent(context.Background(), ev); err != nil {
		t.Fatalf("non-authenticated event: %v", err)
	}
}
