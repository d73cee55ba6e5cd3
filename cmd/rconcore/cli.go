package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"rconcore/internal/mapmanager"
	"rconcore/internal/mapvote"
	"rconcore/internal/rcon"
	"rconcore/internal/transport"
	"rconcore/internal/vip"
)

const dialTimeout = 10 * time.Second

// RunCLI handles subcommand execution, in the teacher's RunCLI dispatch
// style. Returns true if a subcommand was handled.
func RunCLI(args []string) bool {
	if len(args) == 0 {
		return false
	}

	switch args[0] {
	case "version":
		fmt.Printf("rconcore %s\n", Version)
		return true
	case "ping":
		return cliPing()
	case "vote-status":
		return cliVoteStatus()
	default:
		return false
	}
}

func dialCLI() (*transport.Transport, *rcon.Commander) {
	conn := resolveConnection("", "")
	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	t, err := transport.Connect(ctx, conn.addr(), conn.Password, slog.Default())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error connecting to %s: %v\n", conn.addr(), err)
		os.Exit(1)
	}
	return t, rcon.NewCommander(t)
}

func cliPing() bool {
	t, cmd := dialCLI()
	defer t.Shutdown()

	info, err := cmd.ServerInfo(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error querying server info: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Server: %s\n", info.ServerName)
	fmt.Printf("Map: %s (%s)\n", info.Level.ShortName(), info.Mode.WireName())
	fmt.Printf("Players: %d/%d\n", info.PlayerCount, info.MaxPlayers)
	return true
}

// cliVoteStatus connects, samples a fresh set of alternatives against the
// Map Manager's current pop state, and prints the ballot a player would
// see right now. It does not attach to a running rconcore process's live
// election (this binary persists no election state across invocations);
// it demonstrates the same option-selection path a long-running instance
// uses at round end.
func cliVoteStatus() bool {
	t, cmd := dialCLI()
	defer t.Shutdown()

	ctx := context.Background()
	mm, err := mapmanager.New(cmd, slog.Default(), defaultPopStates(), 48, 4)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error building map manager: %v\n", err)
		os.Exit(1)
	}
	if err := mm.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error starting map manager: %v\n", err)
		os.Exit(1)
	}

	vipCache := vip.FromCommander(cmd, slog.Default())
	engine := mapvote.New(cmd, vipCache, mm, slog.Default(), defaultMapVoteConfig())
	engine.SetupElection(mm.Current().Pool)

	fmt.Printf("Pop state: %s\n", mm.Current().Name)
	fmt.Println("Alternatives:")
	for _, alt := range engine.Alternatives() {
		entry := engine.Matchers().ByAlt[alt]
		fmt.Printf("  [%d] %s\n", entry.Number, alt.ShortName())
	}
	return true
}
