package plugins

import (
	"context"
	"testing"

	"rconcore/internal/rcon"
)

func killEvent(killer, weapon string) rcon.Event {
	return rcon.Event{
		Kind:   rcon.EventKill,
		Killer: &rcon.Player{Name: killer},
		Victim: rcon.Player{Name: "victim"},
		Weapon: weapon,
	}
}

func TestWeaponForcerIgnoresAllowedWeapon(t *testing.T) {
	w := NewWeaponForcer(nil, nil, WeaponForcerConfig{ForbiddenWeapons: map[string]bool{"M98B": true}})
	if err := w.HandleEvent(context.Background(), killEvent("p1", "M16A3")); err != nil {
		t.Fatalf("allowed weapon must not error: %v", err)
	}
	if w.offenses["p1"] != 0 {
		t.Fatalf("offenses = %d, want 0", w.offenses["p1"])
	}
}

func TestWeaponForcerTracksOffensesAndResetsAtRoundOver(t *testing.T) {
	w := NewWeaponForcer(nil, nil, WeaponForcerConfig{ForbiddenWeapons: map[string]bool{"M98B": true}})
	ctx := context.Background()

	if err := w.HandleEvent(ctx, killEvent("p1", "M98B")); err != nil {
		t.Fatalf("first offense: %v", err)
	}
	if w.offenses["p1"] != 1 {
		t.Fatalf("offenses = %d, want 1", w.offenses["p1"])
	}

	if err := w.HandleEvent(ctx, killEvent("p1", "M98B")); err != nil {
		t.Fatalf("second offense: %v", err)
	}
	if w.offenses["p1"] != 2 {
		t.Fatalf("offenses = %d, want 2", w.offenses["p1"])
	}

	if err := w.HandleEvent(ctx, rcon.Event{Kind: rcon.EventRoundOver}); err != nil {
		t.Fatalf("round over: %v", err)
	}
	if len(w.offenses) != 0 {
		t.Fatalf("offenses must reset at round end, got %+v", w.offenses)
	}
}

func TestWeaponForcerIgnoresSuicide(t *testing.T) {
	w := NewWeaponForcer(nil, nil, WeaponForcerConfig{ForbiddenWeapons: map[string]bool{"M98B": true}})
	ev := rcon.Event{Kind: rcon.EventKill, Killer: nil, Victim: rcon.Player{Name: "p1"}, Weapon: "M98B"}
	if err := w.HandleEvent(context.Background(), ev); err != nil {
		t.Fatalf("suicide must not error: %v", err)
	}
	if len(w.offenses) != 0 {
		t.Fatalf("suicide must not count as an offense, got %+v", w.offenses)
	}
}
