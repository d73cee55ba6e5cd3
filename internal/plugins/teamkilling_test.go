package plugins

import (
	"context"
	"testing"
	"time"

	"rconcore/internal/rcon"
)

type fakeTeams struct{ teams map[string]rcon.Team }

func (f fakeTeams) TeamOf(name string) (rcon.Team, bool) {
	t, ok := f.teams[name]
	return t, ok
}

func testTKConfig() TeamKillingConfig {
	return TeamKillingConfig{
		Breakpoints: []BadnessBreakpoint{
			{SecondsAgo: 0, Badness: 5},
			{SecondsAgo: 60, Badness: 1},
		},
		FloorBadness:    0.1,
		Threshold:       6,
		RetentionWindow: time.Hour,
	}
}

func TestBadnessAtInterpolatesBetweenBreakpoints(t *testing.T) {
	cfg := testTKConfig()
	if got := cfg.badnessAt(0); got != 5 {
		t.Fatalf("badnessAt(0) = %v, want 5", got)
	}
	if got := cfg.badnessAt(30); got != 3 {
		t.Fatalf("badnessAt(30) = %v, want 3 (midpoint)", got)
	}
	if got := cfg.badnessAt(120); got != 1 {
		t.Fatalf("badnessAt(120) = %v, want floor of the curve (1)", got)
	}
}

func TestHandleEventIgnoresCrossTeamKill(t *testing.T) {
	tk := NewTeamKilling(nil, fakeTeams{teams: map[string]rcon.Team{"killer": rcon.TeamOne, "victim": rcon.TeamTwo}}, nil, testTKConfig())
	ev := rcon.Event{Kind: rcon.EventKill, Killer: &rcon.Player{Name: "killer"}, Victim: rcon.Player{Name: "victim"}}
	if err := tk.HandleEvent(context.Background(), ev); err != nil {
		t.Fatalf("cross-team kill: %v", err)
	}
	if len(tk.history) != 0 {
		t.Fatalf("cross-team kill must not be recorded, got %+v", tk.history)
	}
}

func TestHandleEventAccumulatesSameTeamKills(t *testing.T) {
	tk := NewTeamKilling(nil, fakeTeams{teams: map[string]rcon.Team{"killer": rcon.TeamOne, "victim": rcon.TeamOne}}, nil, testTKConfig())
	ev := rcon.Event{Kind: rcon.EventKill, Killer: &rcon.Player{Name: "killer"}, Victim: rcon.Player{Name: "victim"}}
	if err := tk.HandleEvent(context.Background(), ev); err != nil {
		t.Fatalf("same-team kill: %v", err)
	}
	if len(tk.history["killer"]) != 1 {
		t.Fatalf("history = %+v, want 1 entry", tk.history["killer"])
	}
}

func TestTrimDropsEntriesOlderThanRetentionWindow(t *testing.T) {
	cfg := testTKConfig()
	cfg.RetentionWindow = time.Minute
	tk := NewTeamKilling(nil, fakeTeams{}, nil, cfg)
	now := time.Now()
	tk.now = func() time.Time { return now }
	tk.history["killer"] = []tkEntry{{at: now.Add(-2 * time.Minute)}, {at: now.Add(-30 * time.Second)}}

	tk.trim()
	if len(tk.history["killer"]) != 1 {
		t.Fatalf("trim must drop the stale entry, got %+v", tk.history["killer"])
	}
}
