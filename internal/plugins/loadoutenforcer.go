package plugins

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"rconcore/internal/rcon"
)

// Loadout is a resolved kit: the list of equipped weapon codes.
type Loadout struct {
	Weapons []string
}

// LoadoutFetcher resolves a player's current loadout from an external web
// service, keyed by their persona id.
type LoadoutFetcher interface {
	PersonaID(ctx context.Context, playerName string) (string, error)
	FetchLoadout(ctx context.Context, personaID string) (Loadout, error)
}

type LoadoutEnforcerConfig struct {
	Enabled        bool
	BannedWeapons  map[string]string // weapon code -> kill message
	SpawnGracePeriod time.Duration
}

// LoadoutEnforcer kills and warns a player a few seconds after spawn if
// their currently-equipped loadout carries a banned weapon.
type LoadoutEnforcer struct {
	cmd     *rcon.Commander
	fetcher LoadoutFetcher
	logger  *slog.Logger
	cfg     LoadoutEnforcerConfig
	sleep   func(context.Context, time.Duration)

	mu       sync.Mutex
	personas map[string]string
}

func NewLoadoutEnforcer(cmd *rcon.Commander, fetcher LoadoutFetcher, logger *slog.Logger, cfg LoadoutEnforcerConfig) *LoadoutEnforcer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoadoutEnforcer{
		cmd:      cmd,
		fetcher:  fetcher,
		logger:   logger.With("component", "loadoutenforcer"),
		cfg:      cfg,
		sleep:    sleepCtx,
		personas: make(map[string]string),
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

func (le *LoadoutEnforcer) Name() string { return "loadoutenforcer" }

func (le *LoadoutEnforcer) Start(ctx context.Context) error { return nil }

func (le *LoadoutEnforcer) ensurePersona(ctx context.Context, player string) (string, bool) {
	le.mu.Lock()
	id, ok := le.personas[player]
	le.mu.Unlock()
	if ok {
		return id, true
	}

	id, err := le.fetcher.PersonaID(ctx, player)
	if err != nil {
		le.logger.Error("persona id lookup failed", "player", player, "error", err)
		return "", false
	}
	le.mu.Lock()
	le.personas[player] = id
	le.mu.Unlock()
	return id, true
}

func (le *LoadoutEnforcer) HandleEvent(ctx context.Context, ev rcon.Event) error {
	switch ev.Kind {
	case rcon.EventAuthenticated:
		le.ensurePersona(ctx, ev.Player.Name)

	case rcon.EventLeave:
		le.mu.Lock()
		delete(le.personas, ev.Player.Name)
		le.mu.Unlock()

	case rcon.EventSpawn:
		return le.checkLoadout(ctx, ev.Player.Name)
	}
	return nil
}

func (le *LoadoutEnforcer) checkLoadout(ctx context.Context, player string) error {
	personaID, ok := le.ensurePersona(ctx, player)
	if !ok {
		return nil
	}

	le.sleep(ctx, le.cfg.SpawnGracePeriod)
	if ctx.Err() != nil {
		return nil
	}

	loadout, err := le.fetcher.FetchLoadout(ctx, personaID)
	if err != nil {
		le.logger.Error("loadout fetch failed", "player", player, "error", err)
		return nil
	}

	for _, weapon := range loadout.Weapons {
		msg, banned := le.cfg.BannedWeapons[weapon]
		if !banned {
			continue
		}
		if le.cmd == nil {
			return nil
		}
		if err := le.cmd.Kill(ctx, player); err != nil {
			return err
		}
		if err := le.cmd.Say(ctx, msg, rcon.VisibilityPlayer(player)); err != nil {
			le.logger.Warn("say failed", "player", player, "error", err)
		}
		if err := le.cmd.Yell(ctx, msg, 10, rcon.VisibilityPlayer(player)); err != nil {
			le.logger.Warn("yell failed", "player", player, "error", err)
		}
		return nil
	}
	return nil
}
