// Command rconcore wires the transport, command, and policy-plugin layers
// into a single running process: dial the game server, start the
// population-aware Map Manager and the STV Map Vote engine on top of it,
// and fan the decoded event stream out to the plugin host.
//
// It also doubles as a small CLI (version/ping/vote-status), in the
// teacher's RunCLI dispatch style: a subcommand, if recognized, short
// circuits before the long-running server starts.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"

	"rconcore/internal/config"
	"rconcore/internal/mapmanager"
	"rconcore/internal/mapvote"
	"rconcore/internal/plugins"
	"rconcore/internal/rcon"
	"rconcore/internal/registry"
	"rconcore/internal/transport"
	"rconcore/internal/vip"
)

func main() {
	if len(os.Args) > 1 {
		if RunCLI(os.Args[1:]) {
			return
		}
	}

	addr := flag.String("addr", "", "game server RCON address (host:port); overrides BKEN_RCON_HOST/PORT")
	password := flag.String("password", "", "RCON password; overrides BKEN_RCON_PASSWORD")
	flag.Parse()

	logger := slog.Default()
	conn := resolveConnection(*addr, *password)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		logger.Info("shutting down")
		cancel()
	}()

	t, err := transport.Connect(ctx, conn.addr(), conn.Password, logger)
	if err != nil {
		logger.Error("connect failed", "error", err)
		os.Exit(1)
	}
	defer t.Shutdown()

	cmd := rcon.NewCommander(t)
	reg := registry.New(cmd, logger)
	vipCache := vip.FromCommander(cmd, logger)

	mm, err := mapmanager.New(cmd, logger, defaultPopStates(), 48, 4)
	if err != nil {
		logger.Error("mapmanager init failed", "error", err)
		os.Exit(1)
	}
	if err := mm.Start(ctx); err != nil {
		logger.Error("mapmanager start failed", "error", err)
		os.Exit(1)
	}

	engine := mapvote.New(cmd, vipCache, mm, logger, defaultMapVoteConfig())
	engine.SetupElection(mm.Current().Pool)

	// A full deployment instantiates one plugin per internal/config.Plugins
	// block whose Enabled flag is set, populated by an external YAML
	// loader; this demo binary enables none, since it carries no such
	// loader, and simply wires an empty host so the event pump below
	// still exercises the fan-out path.
	host := plugins.NewHost(logger)
	if err := host.Start(ctx); err != nil {
		logger.Error("plugin host start failed", "error", err)
	}

	go reg.RunPeriodicRefresh(ctx)

	if err := runEventPump(ctx, t, logger, reg, mm, engine, host); err != nil && ctx.Err() == nil {
		logger.Error("event pump exited", "error", err)
		os.Exit(1)
	}
}

type resolvedConnection struct {
	config.Connection
}

func (c resolvedConnection) addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// resolveConnection layers explicit flags over BKEN_RCON_* environment
// variables, flags taking precedence.
func resolveConnection(addrFlag, passwordFlag string) resolvedConnection {
	conn := config.Env()
	if addrFlag != "" {
		if host, port, ok := splitHostPort(addrFlag); ok {
			conn.Host, conn.Port = host, port
		}
	}
	if passwordFlag != "" {
		conn.Password = passwordFlag
	}
	return resolvedConnection{conn}
}

func splitHostPort(hostport string) (string, int, bool) {
	host, portStr, err := net.SplitHostPort(hostport)
	if err != nil {
		return "", 0, false
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, false
	}
	return host, port, true
}

// defaultPopStates is the single base population bracket this demo binary
// ships with absent an external loader populating
// internal/config.MapManager.PopStates with the deployment's real pools.
func defaultPopStates() []mapmanager.PopState {
	pool := mapmanager.MapPool{
		{Map: rcon.MapLocker, Mode: rcon.Rush()},
		{Map: rcon.MapFloodZone, Mode: rcon.Rush()},
		{Map: rcon.MapZavod, Mode: rcon.Rush()},
		{Map: rcon.MapShanghai, Mode: rcon.Rush()},
	}
	return []mapmanager.PopState{{Name: "default", MinPlayers: 0, Pool: pool}}
}

func defaultMapVoteConfig() mapvote.Config {
	return mapvote.Config{
		NOptions:          3,
		MaxOptions:        5,
		MaxNomsPerVIP:     2,
		OptionsMinLen:     1,
		VipVoteWeight:     2,
		VipNom:            true,
		VipAd:             true,
		AnnounceNominator: true,
	}
}
