package plugins

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"rconcore/internal/rcon"
)

// BadnessBreakpoint is one (seconds-ago, badness) anchor of the piecewise
// linear curve a team-kill's badness is interpolated from, mirroring the
// breakpoint-table interpolation already used to derive ticket counts.
type BadnessBreakpoint struct {
	SecondsAgo float64
	Badness    float64
}

// TeamKillingConfig configures the scorer. Breakpoints must be sorted by
// ascending SecondsAgo; the badness at SecondsAgo=0 is the first entry's.
type TeamKillingConfig struct {
	Enabled       bool
	Breakpoints   []BadnessBreakpoint
	FloorBadness  float64
	Threshold     float64
	RetentionWindow time.Duration
}

func (c TeamKillingConfig) badnessAt(secondsAgo float64) float64 {
	if len(c.Breakpoints) == 0 {
		return 0
	}
	if secondsAgo <= c.Breakpoints[0].SecondsAgo {
		return clampFloor(c.Breakpoints[0].Badness, c.FloorBadness)
	}
	last := c.Breakpoints[len(c.Breakpoints)-1]
	if secondsAgo >= last.SecondsAgo {
		return clampFloor(last.Badness, c.FloorBadness)
	}
	for i := 1; i < len(c.Breakpoints); i++ {
		hi := c.Breakpoints[i]
		if secondsAgo > hi.SecondsAgo {
			continue
		}
		lo := c.Breakpoints[i-1]
		frac := (secondsAgo - lo.SecondsAgo) / (hi.SecondsAgo - lo.SecondsAgo)
		return clampFloor(lo.Badness+frac*(hi.Badness-lo.Badness), c.FloorBadness)
	}
	return clampFloor(last.Badness, c.FloorBadness)
}

func clampFloor(v, floor float64) float64 {
	if v < floor {
		return floor
	}
	return v
}

type tkEntry struct {
	at     time.Time
	weapon string
	victim string
}

// TeamLookup resolves a connected player's current team, as tracked by the
// player registry.
type TeamLookup interface {
	TeamOf(name string) (rcon.Team, bool)
}

// TeamKilling kicks a player once their accumulated team-kill badness
// crosses the configured threshold. now is injected for testability.
type TeamKilling struct {
	cmd    *rcon.Commander
	teams  TeamLookup
	logger *slog.Logger
	cfg    TeamKillingConfig
	now    func() time.Time

	mu      sync.Mutex
	history map[string][]tkEntry
}

func NewTeamKilling(cmd *rcon.Commander, teams TeamLookup, logger *slog.Logger, cfg TeamKillingConfig) *TeamKilling {
	if logger == nil {
		logger = slog.Default()
	}
	return &TeamKilling{
		cmd:     cmd,
		teams:   teams,
		logger:  logger.With("component", "teamkilling"),
		cfg:     cfg,
		now:     time.Now,
		history: make(map[string][]tkEntry),
	}
}

func (tk *TeamKilling) Name() string { return "teamkilling" }

func (tk *TeamKilling) Start(ctx context.Context) error {
	go tk.trimPeriodically(ctx)
	return nil
}

func (tk *TeamKilling) trimPeriodically(ctx context.Context) {
	ticker := time.NewTicker(tk.cfg.RetentionWindow / 4)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tk.trim()
		}
	}
}

func (tk *TeamKilling) trim() {
	cutoff := tk.now().Add(-tk.cfg.RetentionWindow)
	tk.mu.Lock()
	defer tk.mu.Unlock()
	for player, entries := range tk.history {
		kept := entries[:0]
		for _, e := range entries {
			if e.at.After(cutoff) {
				kept = append(kept, e)
			}
		}
		if len(kept) == 0 {
			delete(tk.history, player)
		} else {
			tk.history[player] = kept
		}
	}
}

func (tk *TeamKilling) badness(player string) float64 {
	now := tk.now()
	var total float64
	for _, e := range tk.history[player] {
		total += tk.cfg.badnessAt(now.Sub(e.at).Seconds())
	}
	return total
}

func (tk *TeamKilling) HandleEvent(ctx context.Context, ev rcon.Event) error {
	if ev.Kind != rcon.EventKill {
		return nil
	}
	if ev.Killer == nil || ev.Killer.Name == ev.Victim.Name {
		return nil
	}
	killerTeam, ok := tk.teams.TeamOf(ev.Killer.Name)
	if !ok {
		return nil
	}
	victimTeam, ok := tk.teams.TeamOf(ev.Victim.Name)
	if !ok || killerTeam != victimTeam || killerTeam == rcon.TeamNeutral {
		return nil
	}

	killer := ev.Killer.Name
	tk.mu.Lock()
	tk.history[killer] = append(tk.history[killer], tkEntry{at: tk.now(), weapon: ev.Weapon, victim: ev.Victim.Name})
	tk.mu.Unlock()

	if tk.badness(killer) >= tk.cfg.Threshold && tk.cmd != nil {
		return tk.cmd.Kick(ctx, killer, "team-killing")
	}
	return nil
}
