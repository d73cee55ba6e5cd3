// Package registry is the Player Registry (PR): the set of currently
// connected players, reconciled from events and periodic full-refresh
// polling, plus a fuzzy name-match service used by chat commands.
package registry

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"rconcore/internal/rcon"
)

// ErrNoMatches is returned by BestMatch when no candidate survives the
// substring filter.
var ErrNoMatches = errors.New("no matches")

// ErrTooMany is returned by BestMatch when the best and second-best
// candidates are too close (Levenshtein gap <= 2) to disambiguate.
var ErrTooMany = errors.New("too many matches")

const (
	joiningTrim  = 10 * time.Minute
	refreshEvery = 3 * time.Minute
)

type entry struct {
	player   rcon.Player
	team     rcon.Team
	squad    rcon.Squad
	hasTeam  bool
	hasSquad bool
	lastSeen time.Time
}

// Registry tracks confirmed players (team and squad both known) and joining
// players (authenticated, awaiting their first team/squad event).
type Registry struct {
	cmd    *rcon.Commander
	logger *slog.Logger

	mu          sync.Mutex
	confirmed   map[string]*entry
	joining     map[string]*entry
	lastRefresh time.Time
}

func New(cmd *rcon.Commander, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		cmd:       cmd,
		logger:    logger.With("component", "registry"),
		confirmed: make(map[string]*entry),
		joining:   make(map[string]*entry),
	}
}

// HandleEvent reconciles the registry against one decoded transport event.
func (r *Registry) HandleEvent(ev rcon.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch ev.Kind {
	case rcon.EventAuthenticated:
		r.joining[ev.Player.Name] = &entry{player: ev.Player, lastSeen: time.Now()}
		r.trimJoiningLocked()
	case rcon.EventTeamChange:
		r.updateTeamSquadLocked(ev.Player.Name, &ev.Team, nil)
	case rcon.EventSquadChange:
		r.updateTeamSquadLocked(ev.Player.Name, nil, &ev.Squad)
	case rcon.EventSpawn:
		r.updateTeamSquadLocked(ev.Player.Name, &ev.Team, nil)
	case rcon.EventLeave:
		delete(r.confirmed, ev.Player.Name)
		delete(r.joining, ev.Player.Name)
	}
}

func (r *Registry) updateTeamSquadLocked(name string, team *rcon.Team, squad *rcon.Squad) {
	e, ok := r.confirmed[name]
	if !ok {
		e, ok = r.joining[name]
		if !ok {
			e = &entry{player: rcon.Player{Name: name}}
			r.joining[name] = e
		}
	}
	if team != nil {
		e.team, e.hasTeam = *team, true
	}
	if squad != nil {
		e.squad, e.hasSquad = *squad, true
	}
	e.lastSeen = time.Now()

	if e.hasTeam && e.hasSquad {
		delete(r.joining, name)
		r.confirmed[name] = e
	}
}

func (r *Registry) trimJoiningLocked() {
	cutoff := time.Now().Add(-joiningTrim)
	for name, e := range r.joining {
		if e.lastSeen.Before(cutoff) {
			delete(r.joining, name)
		}
	}
}

// TeamOf reports the last-known team of a confirmed player, false if the
// player is unknown or hasn't reported a team yet.
func (r *Registry) TeamOf(name string) (rcon.Team, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.confirmed[name]
	if !ok || !e.hasTeam {
		return rcon.TeamNeutral, false
	}
	return e.team, true
}

// Players returns the confirmed player set, refreshing via a list-players
// query first if the cached view is stale beyond ~3 minutes.
func (r *Registry) Players(ctx context.Context) (map[string]rcon.Player, error) {
	r.mu.Lock()
	stale := time.Since(r.lastRefresh) > refreshEvery
	r.mu.Unlock()

	if stale {
		if err := r.Refresh(ctx); err != nil {
			return nil, err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]rcon.Player, len(r.confirmed))
	for name, e := range r.confirmed {
		out[name] = e.player
	}
	return out, nil
}

// Refresh force-polls list-players and adds players it did not know yet to
// confirmed, without team/squad info (a full refresh only names who is
// present; team and squad state streams in from events as usual). A player
// still in joining stays there, with its player record updated.
func (r *Registry) Refresh(ctx context.Context) error {
	players, err := r.cmd.ListPlayers(ctx)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range players {
		if _, ok := r.confirmed[p.Name]; !ok {
			if e, ok := r.joining[p.Name]; ok {
				e.player = p
				continue
			}
			r.confirmed[p.Name] = &entry{player: p, lastSeen: time.Now()}
		}
	}
	r.lastRefresh = time.Now()
	return nil
}

// RunPeriodicRefresh re-polls every ~3 minutes until ctx is cancelled.
func (r *Registry) RunPeriodicRefresh(ctx context.Context) {
	ticker := time.NewTicker(refreshEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Refresh(ctx); err != nil {
				r.logger.Warn("periodic player refresh failed", "error", err)
			}
		}
	}
}

// BestMatch fuzzy-matches prefix against confirmed player names per the
// algorithm: case-insensitive substring filter, prefer names that start
// with the query, rank by Levenshtein distance, and disambiguate on the gap
// between the best and second-best candidate.
func (r *Registry) BestMatch(prefix string) (rcon.Player, error) {
	r.mu.Lock()
	names := make([]string, 0, len(r.confirmed))
	byName := make(map[string]rcon.Player, len(r.confirmed))
	for name, e := range r.confirmed {
		names = append(names, name)
		byName[name] = e.player
	}
	r.mu.Unlock()

	q := strings.ToLower(prefix)
	var substr, prefixed []string
	for _, name := range names {
		lower := strings.ToLower(name)
		if strings.Contains(lower, q) {
			substr = append(substr, name)
			if strings.HasPrefix(lower, q) {
				prefixed = append(prefixed, name)
			}
		}
	}

	candidates := prefixed
	if len(candidates) == 0 {
		candidates = substr
	}
	if len(candidates) == 0 {
		return rcon.Player{}, ErrNoMatches
	}

	type scored struct {
		name string
		dist int
	}
	ranked := make([]scored, 0, len(candidates))
	for _, name := range candidates {
		ranked = append(ranked, scored{name, levenshtein(strings.ToLower(name), q)})
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].dist < ranked[j].dist })

	if len(ranked) == 1 {
		return byName[ranked[0].name], nil
	}
	if ranked[1].dist-ranked[0].dist <= 2 {
		return rcon.Player{}, ErrTooMany
	}
	return byName[ranked[0].name], nil
}
