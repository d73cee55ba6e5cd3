// Package plugins is the Policy Plugins (P) layer and its host: each
// plugin receives the full typed event stream and a configuration record,
// independent of the others.
package plugins

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"rconcore/internal/rcon"
)

// Plugin is one policy handler. HandleEvent is called serially for a
// single plugin, in event arrival order; plugins run concurrently with
// respect to each other.
type Plugin interface {
	Name() string
	Start(ctx context.Context) error
	HandleEvent(ctx context.Context, ev rcon.Event) error
}

// Host fans the event stream out to every enabled plugin.
type Host struct {
	logger  *slog.Logger
	plugins []Plugin
}

// NewHost constructs a Host over the given already-instantiated plugins;
// callers instantiate only plugins whose configuration enabled them.
func NewHost(logger *slog.Logger, plugins ...Plugin) *Host {
	if logger == nil {
		logger = slog.Default()
	}
	return &Host{logger: logger.With("component", "pluginhost"), plugins: plugins}
}

// Start calls every plugin's start hook concurrently. A failing plugin is
// logged and does not prevent the others from starting.
func (h *Host) Start(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, p := range h.plugins {
		p := p
		g.Go(func() error {
			if err := p.Start(gctx); err != nil {
				h.logger.Error("plugin start failed", "plugin", p.Name(), "error", err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Run fans every event from events to each plugin's own buffered queue, so
// one slow plugin never blocks another, while preserving per-plugin
// arrival order. Run returns once events closes and every plugin has
// drained its queue, or ctx is canceled.
func (h *Host) Run(ctx context.Context, events <-chan rcon.Event) error {
	g, gctx := errgroup.WithContext(ctx)
	queues := make([]chan rcon.Event, len(h.plugins))
	for i, p := range h.plugins {
		i, p := i, p
		queues[i] = make(chan rcon.Event, 64)
		g.Go(func() error {
			for ev := range queues[i] {
				if err := p.HandleEvent(gctx, ev); err != nil {
					h.logger.Error("plugin event handler failed", "plugin", p.Name(), "error", err)
				}
			}
			return nil
		})
	}

	g.Go(func() error {
		defer func() {
			for _, q := range queues {
				close(q)
			}
		}()
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return nil
				}
				for _, q := range queues {
					select {
					case q <- ev:
					case <-gctx.Done():
						return gctx.Err()
					}
				}
			case <-gctx.Done():
				return gctx.Err()
			}
		}
	})

	return g.Wait()
}
