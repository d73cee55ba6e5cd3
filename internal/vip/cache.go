// Package vip caches membership in the reserved/VIP list with bounded
// staleness, coalescing concurrent refreshes with singleflight the way the
// spec's "soft lock (double-refresh prevention)" requirement names.
package vip

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"rconcore/internal/rcon"
)

// Judgement is a cached VIP verdict plus the time it was recorded.
type Judgement struct {
	IsVIP     bool
	Timestamp time.Time
}

// ReservedLister is the subset of Commander the cache needs, declared as an
// interface so tests can substitute a fake.
type ReservedLister interface {
	ReservedList(ctx context.Context) ([]string, error)
}

const (
	defaultFreshness = 10 * time.Minute
	graceFraction    = 10 // grace window is freshness / graceFraction
)

// Cache maps player name -> Judgement, refreshed from the reserved list.
type Cache struct {
	lister    ReservedLister
	logger    *slog.Logger
	freshness time.Duration

	mu    sync.Mutex
	cache map[string]Judgement

	group singleflight.Group
}

func New(lister ReservedLister, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		lister:    lister,
		logger:    logger.With("component", "vip"),
		freshness: defaultFreshness,
		cache:     make(map[string]Judgement),
	}
}

// IsVIP reports whether name is on the reserved list. Within the freshness
// window the cached verdict is returned as-is. Within a short grace window
// beyond that (1/10th of the freshness horizon) it returns a pessimistic
// "no" rather than triggering a refresh. Beyond the grace window it
// refreshes, coalescing concurrent callers onto a single in-flight fetch.
func (c *Cache) IsVIP(ctx context.Context, name string) (bool, error) {
	c.mu.Lock()
	j, ok := c.cache[name]
	c.mu.Unlock()

	if ok {
		age := time.Since(j.Timestamp)
		if age < c.freshness {
			return j.IsVIP, nil
		}
		if age < c.freshness+c.freshness/graceFraction {
			return false, nil
		}
	}

	_, err, _ := c.group.Do("refresh", func() (any, error) {
		return nil, c.refresh(ctx, name)
	})
	if err != nil {
		return false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache[name].IsVIP, nil
}

func (c *Cache) refresh(ctx context.Context, queried string) error {
	names, err := c.lister.ReservedList(ctx)
	if err != nil {
		c.logger.Warn("vip refresh failed", "error", err)
		return err
	}
	now := time.Now()
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for name := range c.cache {
		_, isVIP := set[name]
		c.cache[name] = Judgement{IsVIP: isVIP, Timestamp: now}
	}
	for name := range set {
		c.cache[name] = Judgement{IsVIP: true, Timestamp: now}
	}
	if _, ok := c.cache[queried]; !ok {
		c.cache[queried] = Judgement{IsVIP: false, Timestamp: now}
	}
	return nil
}

// Invalidate drops the cached verdict for name, forcing the next IsVIP call
// to refresh (e.g. after a membership change is known out-of-band).
func (c *Cache) Invalidate(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.cache, name)
}

var _ ReservedLister = (*rconListerAdapter)(nil)

// rconListerAdapter adapts *rcon.Commander to ReservedLister without vip
// importing rcon's Commander type directly in its public surface.
type rconListerAdapter struct {
	cmd *rcon.Commander
}

func (a *rconListerAdapter) ReservedList(ctx context.Context) ([]string, error) {
	return a.cmd.ReservedList(ctx)
}

// FromCommander builds a Cache backed directly by an rcon.Commander.
func FromCommander(cmd *rcon.Commander, logger *slog.Logger) *Cache {
	return New(&rconListerAdapter{cmd: cmd}, logger)
}
