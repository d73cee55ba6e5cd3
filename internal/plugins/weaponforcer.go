package plugins

import (
	"context"
	"log/slog"
	"sync"

	"rconcore/internal/rcon"
)

// WeaponForcerConfig names the forbidden weapons; enabled plugins are
// instantiated only when Enabled is true.
type WeaponForcerConfig struct {
	Enabled          bool
	ForbiddenWeapons map[string]bool
}

// WeaponForcer kills on a killer's first kill with a forbidden weapon,
// kicks on the second, and resets counters at round end.
type WeaponForcer struct {
	cmd    *rcon.Commander
	logger *slog.Logger
	cfg    WeaponForcerConfig

	mu       sync.Mutex
	offenses map[string]int
}

func NewWeaponForcer(cmd *rcon.Commander, logger *slog.Logger, cfg WeaponForcerConfig) *WeaponForcer {
	if logger == nil {
		logger = slog.Default()
	}
	return &WeaponForcer{
		cmd:      cmd,
		logger:   logger.With("component", "weaponforcer"),
		cfg:      cfg,
		offenses: make(map[string]int),
	}
}

func (w *WeaponForcer) Name() string { return "weaponforcer" }

func (w *WeaponForcer) Start(ctx context.Context) error { return nil }

func (w *WeaponForcer) HandleEvent(ctx context.Context, ev rcon.Event) error {
	switch ev.Kind {
	case rcon.EventKill:
		if ev.Killer == nil || !w.cfg.ForbiddenWeapons[ev.Weapon] {
			return nil
		}
		killer := ev.Killer.Name
		w.mu.Lock()
		w.offenses[killer]++
		offense := w.offenses[killer]
		w.mu.Unlock()

		if w.cmd == nil {
			return nil
		}
		if offense == 1 {
			if err := w.cmd.Kill(ctx, killer); err != nil {
				return err
			}
			return w.cmd.Say(ctx, killer+": that weapon is forbidden here, next offense kicks you", rcon.VisibilityAll())
		}
		return w.cmd.Kick(ctx, killer, "forbidden weapon")

	case rcon.EventRoundOver:
		w.mu.Lock()
		w.offenses = make(map[string]int)
		w.mu.Unlock()
	}
	return nil
}
