package main

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"rconcore/internal/mapmanager"
	"rconcore/internal/mapvote"
	"rconcore/internal/plugins"
	"rconcore/internal/rcon"
	"rconcore/internal/registry"
	"rconcore/internal/transport"
)

const pluginQueueSize = 256

// runEventPump decodes transport.Transport's pushed frames into rcon.Event
// and distributes each to the Player Registry, the Map Manager's population
// counter, the Map Vote engine's chat-driven nominate/vote/round-end path,
// and the plugin host, until ctx is canceled or the transport closes.
func runEventPump(ctx context.Context, t *transport.Transport, logger *slog.Logger, reg *registry.Registry, mm *mapmanager.Manager, engine *mapvote.Engine, host *plugins.Host) error {
	rawEvents, unsubscribe := t.Events()
	defer unsubscribe()

	pluginEvents := make(chan rcon.Event, pluginQueueSize)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return host.Run(gctx, pluginEvents) })

	g.Go(func() error {
		defer close(pluginEvents)
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case frame, ok := <-rawEvents:
				if !ok {
					return t.Err()
				}
				if frame.Lagged {
					logger.Warn("event subscriber lagged", "dropped", frame.LagCount)
					continue
				}
				ev, ok := rcon.DecodeEvent(frame.Words, logger)
				if !ok {
					continue
				}

				reg.HandleEvent(ev)
				if err := mm.HandleEvent(gctx, ev); err != nil {
					logger.Error("mapmanager event handling failed", "error", err)
				}
				handleVoteEvent(gctx, engine, mm, logger, ev)

				select {
				case pluginEvents <- ev:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
		}
	})

	return g.Wait()
}

// handleVoteEvent drives the Map Vote engine off the same event stream:
// every chat line is first offered to the VIP nomination command, then to
// CastVote (a no-op if it doesn't resolve to a ballot), and a round's end
// triggers the commit sequence followed by setting up the next election
// against whatever pool the Map Manager now holds.
func handleVoteEvent(ctx context.Context, engine *mapvote.Engine, mm *mapmanager.Manager, logger *slog.Logger, ev rcon.Event) {
	switch ev.Kind {
	case rcon.EventChat:
		if handleNominationCommand(ctx, engine, mm, logger, ev) {
			return
		}
		if err := engine.CastVote(ctx, ev.Player.Name, ev.Message); err != nil {
			logger.Debug("cast vote rejected", "player", ev.Player.Name, "error", err)
		}
	case rcon.EventRoundOver:
		go func() {
			if err := engine.RunRoundEnd(ctx); err != nil {
				logger.Error("round end commit failed", "error", err)
			}
			engine.SetupElection(mm.Current().Pool)
		}()
	}
}

// handleNominationCommand recognizes the "!nominate"/"/nominate"/"!nom"/
// "/nom" VIP nomination chat command (battlefox's handle_chat_msg/
// handle_nomination dispatch): <mapshortname> resolved against the Map
// Manager's current pool, with an optional third token "inf" nominating
// without vehicles. Reports true if the message was a nomination attempt
// (whether or not it ultimately succeeded), so the caller doesn't also
// offer the line to CastVote.
func handleNominationCommand(ctx context.Context, engine *mapvote.Engine, mm *mapmanager.Manager, logger *slog.Logger, ev rcon.Event) bool {
	if !engine.NominationsEnabled() {
		return false
	}
	fields := strings.Fields(strings.ToLower(ev.Message))
	if len(fields) == 0 {
		return false
	}
	switch fields[0] {
	case "!nominate", "/nominate", "!nom", "/nom":
	default:
		return false
	}
	if len(fields) < 2 {
		return true
	}

	target, ok := findMapInPool(mm.Current().Pool, fields[1])
	if !ok {
		logger.Debug("nomination for unknown map ignored", "player", ev.Player.Name, "map", fields[1])
		return true
	}
	if len(fields) >= 3 && strings.EqualFold(fields[2], "inf") {
		novehicles := false
		target.Vehicles = &novehicles
	}

	if err := engine.Nominate(ctx, ev.Player.Name, target); err != nil {
		logger.Debug("nomination rejected", "player", ev.Player.Name, "error", err)
	}
	return true
}

func findMapInPool(pool mapmanager.MapPool, shortName string) (mapmanager.MapInPool, bool) {
	for _, m := range pool {
		if strings.EqualFold(m.Map.ShortName(), shortName) {
			return m, true
		}
	}
	return mapmanager.MapInPool{}, false
}
