package rcon

import (
	"log/slog"
	"strconv"
)

// EventKind tags the variant carried by Event. Go lacks Rust's tagged-union
// enums, so Event is a struct-of-optionals discriminated by Kind, in the
// idiom of a closed event vocabulary decoded from word vectors.
type EventKind int

const (
	EventChat EventKind = iota
	EventKill
	EventSpawn
	EventJoin
	EventAuthenticated
	EventLeave
	EventTeamChange
	EventSquadChange
	EventLevelLoaded
	EventRoundOver
	EventRoundOverTeamScores
	EventPunkBusterMessage
)

// Event is the decoded form of one server-pushed frame.
type Event struct {
	Kind EventKind

	// EventChat
	ChatVis Visibility
	Player  Player
	Message string

	// EventKill
	Killer     *Player // nil indicates suicide or a world-kill
	Weapon     string
	Victim     Player
	IsHeadshot bool

	// EventSpawn, EventTeamChange, EventSquadChange
	Team  Team
	Squad Squad

	// EventLeave
	FinalScores []int

	// EventLevelLoaded
	Level       Map
	Mode        GameMode
	RoundIndex  int
	RoundCount  int

	// EventRoundOver
	WinningTeam Team

	// EventRoundOverTeamScores
	TeamScores []int

	// EventPunkBusterMessage
	Raw string
}

// DecodeEvent parses a non-response frame's words into a typed Event.
// Unrecognized event types are reported via logger and skipped (ok=false),
// matching "unknown event types are reported as a diagnostic and skipped".
func DecodeEvent(words []string, logger *slog.Logger) (ev Event, ok bool) {
	if len(words) == 0 {
		return Event{}, false
	}
	switch words[0] {
	case "player.onChat":
		return decodeChat(words[1:], logger)
	case "player.onKill":
		return decodeKill(words[1:], logger)
	case "player.onSpawn":
		return decodeSpawn(words[1:], logger)
	case "player.onJoin":
		if len(words) < 2 {
			return Event{}, false
		}
		return Event{Kind: EventJoin, Player: Player{Name: words[1]}}, true
	case "player.onAuthenticated":
		if len(words) < 3 {
			return Event{}, false
		}
		return Event{Kind: EventAuthenticated, Player: Player{Name: words[1], EAID: words[2]}}, true
	case "player.onLeave":
		if len(words) < 2 {
			return Event{}, false
		}
		scores := make([]int, 0, len(words)-2)
		for _, w := range words[2:] {
			n, err := strconv.Atoi(w)
			if err != nil {
				logger.Warn("malformed player.onLeave score", "value", w)
				continue
			}
			scores = append(scores, n)
		}
		return Event{Kind: EventLeave, Player: Player{Name: words[1]}, FinalScores: scores}, true
	case "player.onTeamChange":
		return decodeTeamChange(words[1:], logger)
	case "player.onSquadChange":
		return decodeSquadChange(words[1:], logger)
	case "server.onLevelLoaded":
		return decodeLevelLoaded(words[1:], logger)
	case "server.onRoundOver":
		if len(words) < 2 {
			return Event{}, false
		}
		t, err := TeamFromWireName(words[1])
		if err != nil {
			logger.Warn("malformed server.onRoundOver", "error", err)
			return Event{}, false
		}
		return Event{Kind: EventRoundOver, WinningTeam: t}, true
	case "server.onRoundOverTeamScores":
		scores := make([]int, 0, len(words)-1)
		for _, w := range words[1:] {
			n, err := strconv.Atoi(w)
			if err != nil {
				continue
			}
			scores = append(scores, n)
		}
		return Event{Kind: EventRoundOverTeamScores, TeamScores: scores}, true
	case "punkBuster.onMessage":
		if len(words) < 2 {
			return Event{}, false
		}
		return Event{Kind: EventPunkBusterMessage, Raw: words[1]}, true
	default:
		logger.Debug("unknown event type, skipping", "type", words[0])
		return Event{}, false
	}
}

func decodeChat(words []string, logger *slog.Logger) (Event, bool) {
	if len(words) < 2 {
		return Event{}, false
	}
	player := words[0]
	msg := words[1]
	vis, _, err := DecodeVisibility(words[2:])
	if err != nil {
		logger.Warn("malformed player.onChat visibility", "error", err)
		vis = VisibilityAll()
	}
	return Event{Kind: EventChat, Player: Player{Name: player}, Message: msg, ChatVis: vis}, true
}

func decodeKill(words []string, logger *slog.Logger) (Event, bool) {
	if len(words) < 4 {
		return Event{}, false
	}
	killerName, weapon, victimName, hs := words[0], words[1], words[2], words[3]
	ev := Event{
		Kind:       EventKill,
		Weapon:     weapon,
		Victim:     Player{Name: victimName},
		IsHeadshot: hs == "true" || hs == "1",
	}
	if killerName != "" && killerName != "None" {
		p := Player{Name: killerName}
		ev.Killer = &p
	}
	return ev, true
}

func decodeSpawn(words []string, logger *slog.Logger) (Event, bool) {
	if len(words) < 2 {
		return Event{}, false
	}
	t, err := TeamFromWireName(words[1])
	if err != nil {
		logger.Warn("malformed player.onSpawn", "error", err)
		return Event{}, false
	}
	return Event{Kind: EventSpawn, Player: Player{Name: words[0]}, Team: t}, true
}

func decodeTeamChange(words []string, logger *slog.Logger) (Event, bool) {
	if len(words) < 3 {
		return Event{}, false
	}
	t, err := TeamFromWireName(words[1])
	if err != nil {
		logger.Warn("malformed player.onTeamChange", "error", err)
		return Event{}, false
	}
	sq, err := SquadFromWireName(words[2])
	if err != nil {
		logger.Warn("malformed player.onTeamChange squad", "error", err)
		return Event{}, false
	}
	return Event{Kind: EventTeamChange, Player: Player{Name: words[0]}, Team: t, Squad: sq}, true
}

func decodeSquadChange(words []string, logger *slog.Logger) (Event, bool) {
	if len(words) < 3 {
		return Event{}, false
	}
	t, err := TeamFromWireName(words[1])
	if err != nil {
		logger.Warn("malformed player.onSquadChange", "error", err)
		return Event{}, false
	}
	sq, err := SquadFromWireName(words[2])
	if err != nil {
		logger.Warn("malformed player.onSquadChange squad", "error", err)
		return Event{}, false
	}
	return Event{Kind: EventSquadChange, Player: Player{Name: words[0]}, Team: t, Squad: sq}, true
}

func decodeLevelLoaded(words []string, logger *slog.Logger) (Event, bool) {
	if len(words) < 4 {
		return Event{}, false
	}
	m, ok := MapFromWireName(words[0])
	if !ok {
		logger.Debug("unrecognized map wire name in server.onLevelLoaded", "wire", words[0])
	}
	mode := GameModeFromWireName(words[1])
	idx, err1 := strconv.Atoi(words[2])
	cnt, err2 := strconv.Atoi(words[3])
	if err1 != nil || err2 != nil {
		return Event{}, false
	}
	return Event{Kind: EventLevelLoaded, Level: m, Mode: mode, RoundIndex: idx, RoundCount: cnt}, true
}
