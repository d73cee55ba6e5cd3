// Package rcon is the typed command layer (C): it wraps transport.Transport
// with domain-typed encoders/decoders for the game's command vocabulary and
// parses server-pushed event frames into typed events.
package rcon

import (
	"fmt"
	"strconv"

	"rconcore/internal/transport"
)

// Map is the closed enumeration of maps known to the bijection table in §6
// of the wire protocol. Maps outside the table have no Map value;
// MapFromWireName reports them with ok == false.
type Map int

const (
	MapZavod Map = iota
	MapLancangDam
	MapFloodZone
	MapGolmudRailway
	MapParacelStorm
	MapLocker
	MapHainanResort
	MapShanghai
	MapRogueTransmission
	MapDawnbreaker
	MapSilkRoad
	MapAltai
	MapGuilinPeaks
	MapDragonPass
	MapCaspian
	MapFirestorm
	MapMetro
	MapOman
	MapLostIslands
	MapNanshaStrike
	MapWaveBreaker
	MapOpMortar
	MapPearlMarket
	MapPropaganda
	MapLumphini
	MapSunkenDragon
	MapWhiteout
	MapHammerhead
	MapHangar21
	MapKarelia
)

type mapNames struct {
	wire  string
	short string
}

// mapTable is the fixed bijection between internal map identifiers and wire
// names, plus their canonical short (chat-typable) name. Order matches the
// enumeration above.
var mapTable = map[Map]mapNames{
	MapZavod:             {"MP_Abandoned", "zavod"},
	MapLancangDam:        {"MP_Damage", "lancang"},
	MapFloodZone:         {"MP_Flooded", "flood"},
	MapGolmudRailway:     {"MP_Journey", "golmud"},
	MapParacelStorm:      {"MP_Naval", "paracel"},
	MapLocker:            {"MP_Prison", "locker"},
	MapHainanResort:      {"MP_Resort", "hainan"},
	MapShanghai:          {"MP_Siege", "shanghai"},
	MapRogueTransmission: {"MP_TheDish", "rogue"},
	MapDawnbreaker:       {"MP_Tremors", "dawnbreaker"},
	MapSilkRoad:          {"XP1_001", "silkroad"},
	MapAltai:             {"XP1_002", "altai"},
	MapGuilinPeaks:       {"XP1_003", "guilin"},
	MapDragonPass:        {"XP1_004", "dragonpass"},
	MapCaspian:           {"XP0_Caspian", "caspian"},
	MapFirestorm:         {"XP0_Firestorm", "firestorm"},
	MapMetro:             {"XP0_Metro", "metro"},
	MapOman:              {"XP0_Oman", "oman"},
	MapLostIslands:       {"XP2_001", "lostislands"},
	MapNanshaStrike:      {"XP2_002", "nansha"},
	MapWaveBreaker:       {"XP2_003", "wavebreaker"},
	MapOpMortar:          {"XP2_004", "opmortar"},
	MapPearlMarket:       {"XP3_MarketPl", "pearl"},
	MapPropaganda:        {"XP3_Prpganda", "propaganda"},
	MapLumphini:          {"XP3_UrbanGdn", "lumphini"},
	MapSunkenDragon:      {"XP3_WtrFront", "sunkendragon"},
	MapWhiteout:          {"XP4_Arctic", "whiteout"},
	MapHammerhead:        {"XP4_SubBase", "hammerhead"},
	MapHangar21:          {"XP4_Titan", "hangar21"},
	MapKarelia:           {"XP4_WlkrFtry", "karelia"},
}

var wireToMap map[string]Map

func init() {
	wireToMap = make(map[string]Map, len(mapTable))
	for m, names := range mapTable {
		wireToMap[names.wire] = m
	}
}

// WireName returns m's opaque wire name, e.g. MapLocker -> "MP_Prison".
func (m Map) WireName() string {
	if names, ok := mapTable[m]; ok {
		return names.wire
	}
	return ""
}

// ShortName returns m's short canonical name, e.g. MapLocker -> "locker".
func (m Map) ShortName() string {
	if names, ok := mapTable[m]; ok {
		return names.short
	}
	return ""
}

// MapFromWireName looks up the internal identifier for a wire name. ok is
// false for unrecognized wire names.
func MapFromWireName(wire string) (Map, bool) {
	m, ok := wireToMap[wire]
	return m, ok
}

// GameMode is a closed set of known modes plus an open "other" variant for
// forward compatibility with modes the bijection table doesn't name.
type GameMode struct {
	known GameModeKind
	other string
}

type GameModeKind int

const (
	GameModeOther GameModeKind = iota
	GameModeRush
)

var gameModeWire = map[GameModeKind]string{
	GameModeRush: "RushLarge0",
}

var wireToGameMode = map[string]GameModeKind{
	"RushLarge0": GameModeRush,
}

// Rush is the canonical Rush game mode value.
func Rush() GameMode { return GameMode{known: GameModeRush} }

// OtherMode wraps an unrecognized wire-format game mode string.
func OtherMode(wire string) GameMode { return GameMode{known: GameModeOther, other: wire} }

func (g GameMode) Kind() GameModeKind { return g.known }

// WireName returns the wire-format name for g.
func (g GameMode) WireName() string {
	if g.known == GameModeOther {
		return g.other
	}
	return gameModeWire[g.known]
}

// GameModeFromWireName maps a wire name to its typed GameMode, falling back
// to OtherMode for names outside the known set.
func GameModeFromWireName(wire string) GameMode {
	if kind, ok := wireToGameMode[wire]; ok {
		return GameMode{known: kind}
	}
	return OtherMode(wire)
}

// Team is the closed set of team identifiers the wire protocol uses.
type Team int

const (
	TeamNeutral Team = 0
	TeamOne     Team = 1
	TeamTwo     Team = 2
)

func (t Team) WireName() string { return strconv.Itoa(int(t)) }

func TeamFromWireName(s string) (Team, error) {
	switch s {
	case "0":
		return TeamNeutral, nil
	case "1":
		return TeamOne, nil
	case "2":
		return TeamTwo, nil
	default:
		return 0, fmt.Errorf("rcon: unknown team id %q: %w", s, transport.ErrProtocolError)
	}
}

// Squad is the closed set of squad identifiers.
type Squad int

const (
	SquadNone Squad = iota
	SquadAlpha
	SquadBravo
	SquadCharlie
	SquadDelta
	SquadEcho
	SquadFoxtrot
	SquadGolf
	SquadHotel
	SquadIndia
	SquadJuliet
	SquadKilo
	SquadLima
)

func (s Squad) WireName() string { return strconv.Itoa(int(s)) }

func SquadFromWireName(s string) (Squad, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > int(SquadLima) {
		return 0, fmt.Errorf("rcon: unknown squad id %q: %w", s, transport.ErrProtocolError)
	}
	return Squad(n), nil
}

// Visibility is the target audience of a chat message, either incoming or
// outgoing (say/yell).
type Visibility struct {
	kind   visibilityKind
	team   Team
	squad  Squad
	player string
}

type visibilityKind int

const (
	VisAll visibilityKind = iota
	VisTeam
	VisSquad
	VisPlayer
)

func VisibilityAll() Visibility                { return Visibility{kind: VisAll} }
func VisibilityTeam(t Team) Visibility          { return Visibility{kind: VisTeam, team: t} }
func VisibilitySquad(t Team, s Squad) Visibility { return Visibility{kind: VisSquad, team: t, squad: s} }
func VisibilityPlayer(name string) Visibility   { return Visibility{kind: VisPlayer, player: name} }

func (v Visibility) Kind() visibilityKind { return v.kind }
func (v Visibility) Team() Team           { return v.team }
func (v Visibility) Squad() Squad         { return v.squad }
func (v Visibility) Player() string       { return v.player }

// EncodeWords returns the words used both when this Visibility is the
// target of a say/yell command and when it decorates a player.onChat event.
func (v Visibility) EncodeWords() []string {
	switch v.kind {
	case VisAll:
		return []string{"all"}
	case VisTeam:
		return []string{"team", v.team.WireName()}
	case VisSquad:
		return []string{"squad", v.team.WireName(), v.squad.WireName()}
	case VisPlayer:
		return []string{"player", v.player}
	default:
		return []string{"all"}
	}
}

// DecodeVisibility parses a Visibility from the front of words, returning
// the parsed value and how many words it consumed.
func DecodeVisibility(words []string) (Visibility, int, error) {
	if len(words) == 0 {
		return Visibility{}, 0, fmt.Errorf("rcon: empty visibility: %w", transport.ErrProtocolError)
	}
	switch words[0] {
	case "all":
		return VisibilityAll(), 1, nil
	case "team":
		if len(words) < 2 {
			return Visibility{}, 0, fmt.Errorf("rcon: truncated team visibility: %w", transport.ErrProtocolError)
		}
		t, err := TeamFromWireName(words[1])
		if err != nil {
			return Visibility{}, 0, err
		}
		return VisibilityTeam(t), 2, nil
	case "squad":
		if len(words) < 3 {
			return Visibility{}, 0, fmt.Errorf("rcon: truncated squad visibility: %w", transport.ErrProtocolError)
		}
		t, err := TeamFromWireName(words[1])
		if err != nil {
			return Visibility{}, 0, err
		}
		s, err := SquadFromWireName(words[2])
		if err != nil {
			return Visibility{}, 0, err
		}
		return VisibilitySquad(t, s), 3, nil
	case "player":
		if len(words) < 2 {
			return Visibility{}, 0, fmt.Errorf("rcon: truncated player visibility: %w", transport.ErrProtocolError)
		}
		return VisibilityPlayer(words[1]), 2, nil
	default:
		return Visibility{}, 0, fmt.Errorf("rcon: unknown visibility %q: %w", words[0], transport.ErrProtocolError)
	}
}

// Player pairs an in-game name with its EA account identifier.
type Player struct {
	Name string
	EAID string // 32 hex chars, "EA_" prefix included
}

// ValidEAID reports whether s is a well-formed "EA_"-prefixed 32-hex-char
// identifier.
func ValidEAID(s string) bool {
	if len(s) != 3+32 || s[:3] != "EA_" {
		return false
	}
	for _, r := range s[3:] {
		if !((r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')) {
			return false
		}
	}
	return true
}
