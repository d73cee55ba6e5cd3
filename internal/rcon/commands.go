package rcon

import (
	"context"
	"fmt"
	"strconv"

	"rconcore/internal/transport"
)

// Commander wraps a Transport with the typed command vocabulary named in
// spec: kill, kick, say/yell, list-players, server-info, map-list
// manipulation, reserved-list, presets, vehicles, tickets, admin list, bans.
type Commander struct {
	t *transport.Transport
}

func NewCommander(t *transport.Transport) *Commander {
	return &Commander{t: t}
}

func (c *Commander) query(ctx context.Context, words []string, mapping map[string]error) ([]string, error) {
	reply, err := c.t.Query(ctx, words)
	if err != nil {
		var other *transport.OtherError
		if mapping != nil && asOtherError(err, &other) {
			if mapped, ok := mapping[other.Code]; ok {
				return nil, fmt.Errorf("rcon %s: %w", words[0], mapped)
			}
			return nil, fmt.Errorf("rcon %s: %q: %w", words[0], other.Code, transport.ErrUnknownResponse)
		}
		return nil, fmt.Errorf("rcon %s: %w", words[0], err)
	}
	return reply, nil
}

func asOtherError(err error, target **transport.OtherError) bool {
	oe, ok := err.(*transport.OtherError)
	if ok {
		*target = oe
	}
	return ok
}

// Kill force-kills a player's soldier.
func (c *Commander) Kill(ctx context.Context, player string) error {
	_, err := c.query(ctx, []string{"admin.killPlayer", player}, map[string]error{
		"SoldierNotAlive": ErrSoldierNotAlive,
		"PlayerNotFound":  ErrPlayerNotFound,
	})
	return err
}

// Kick removes a player from the server with a visible reason.
func (c *Commander) Kick(ctx context.Context, player, reason string) error {
	_, err := c.query(ctx, []string{"admin.kickPlayer", player, reason}, map[string]error{
		"PlayerNotFound": ErrPlayerNotFound,
	})
	return err
}

// Say broadcasts msg in chat, restricted to vis's audience.
func (c *Commander) Say(ctx context.Context, msg string, vis Visibility) error {
	words := append([]string{"admin.say", msg}, vis.EncodeWords()...)
	_, err := c.query(ctx, words, map[string]error{
		"MessageTooLong": ErrMessageTooLong,
	})
	return err
}

// Yell displays msg as an on-screen notice for durationSeconds, restricted
// to vis's audience.
func (c *Commander) Yell(ctx context.Context, msg string, durationSeconds int, vis Visibility) error {
	words := append([]string{"admin.yell", msg, strconv.Itoa(durationSeconds)}, vis.EncodeWords()...)
	_, err := c.query(ctx, words, map[string]error{
		"MessageTooLong": ErrMessageTooLong,
	})
	return err
}

// ListPlayers requests the server's player-info-block and parses it,
// validating the header so a wire-format change is caught as a protocol
// error rather than silently misread.
func (c *Commander) ListPlayers(ctx context.Context) ([]Player, error) {
	words, err := c.query(ctx, []string{"admin.listPlayers", "all"}, nil)
	if err != nil {
		return nil, err
	}
	return parsePlayerInfoBlock(words)
}

var playerInfoHeader = []string{"name", "guid", "teamId", "squadId"}

func parsePlayerInfoBlock(words []string) ([]Player, error) {
	if len(words) < 1 {
		return nil, fmt.Errorf("rcon: empty player-info-block: %w", transport.ErrProtocolError)
	}
	colCount, err := strconv.Atoi(words[0])
	if err != nil {
		return nil, fmt.Errorf("rcon: player-info-block column count: %w", transport.ErrProtocolError)
	}
	off := 1
	if colCount != len(playerInfoHeader) {
		return nil, fmt.Errorf("rcon: player-info-block unexpected column count %d: %w", colCount, transport.ErrProtocolError)
	}
	if off+colCount > len(words) {
		return nil, fmt.Errorf("rcon: player-info-block truncated header: %w", transport.ErrProtocolError)
	}
	for i, want := range playerInfoHeader {
		if words[off+i] != want {
			return nil, fmt.Errorf("rcon: player-info-block header mismatch at %d (got %q want %q): %w", i, words[off+i], want, transport.ErrProtocolError)
		}
	}
	off += colCount
	if off >= len(words) {
		return nil, fmt.Errorf("rcon: player-info-block missing row count: %w", transport.ErrProtocolError)
	}
	rowCount, err := strconv.Atoi(words[off])
	if err != nil {
		return nil, fmt.Errorf("rcon: player-info-block row count: %w", transport.ErrProtocolError)
	}
	off++
	players := make([]Player, 0, rowCount)
	for i := 0; i < rowCount; i++ {
		if off+colCount > len(words) {
			return nil, fmt.Errorf("rcon: player-info-block truncated row %d: %w", i, transport.ErrProtocolError)
		}
		players = append(players, Player{Name: words[off], EAID: words[off+1]})
		off += colCount
	}
	return players, nil
}

// ServerInfo is the subset of server-info the core consumes.
type ServerInfo struct {
	ServerName  string
	PlayerCount int
	MaxPlayers  int
	Level       Map
	Mode        GameMode
}

// ServerInfo queries the current server-info snapshot.
func (c *Commander) ServerInfo(ctx context.Context) (ServerInfo, error) {
	words, err := c.query(ctx, []string{"serverInfo"}, nil)
	if err != nil {
		return ServerInfo{}, err
	}
	if len(words) < 5 {
		return ServerInfo{}, fmt.Errorf("rcon: truncated serverInfo reply: %w", transport.ErrProtocolError)
	}
	playerCount, err1 := strconv.Atoi(words[1])
	maxPlayers, err2 := strconv.Atoi(words[2])
	if err1 != nil || err2 != nil {
		return ServerInfo{}, fmt.Errorf("rcon: malformed serverInfo counts: %w", transport.ErrProtocolError)
	}
	m, _ := MapFromWireName(words[4])
	mode := GameModeFromWireName(words[3])
	return ServerInfo{
		ServerName:  words[0],
		PlayerCount: playerCount,
		MaxPlayers:  maxPlayers,
		Level:       m,
		Mode:        mode,
	}, nil
}

// MapListEntry is one row of the authoritative server map list.
type MapListEntry struct {
	Map    Map
	Mode   GameMode
	Rounds int
}

func (c *Commander) MapListClear(ctx context.Context) error {
	_, err := c.query(ctx, []string{"mapList.clear"}, nil)
	return err
}

func (c *Commander) MapListAdd(ctx context.Context, m Map, mode GameMode, rounds int, index int) error {
	_, err := c.query(ctx, []string{
		"mapList.add", m.WireName(), mode.WireName(), strconv.Itoa(rounds), strconv.Itoa(index),
	}, nil)
	return err
}

func (c *Commander) MapListRemove(ctx context.Context, index int) error {
	_, err := c.query(ctx, []string{"mapList.remove", strconv.Itoa(index)}, nil)
	return err
}

func (c *Commander) MapListSetNextMapIndex(ctx context.Context, index int) error {
	_, err := c.query(ctx, []string{"mapList.setNextMapIndex", strconv.Itoa(index)}, nil)
	return err
}

func (c *Commander) MapListRunNextRound(ctx context.Context) error {
	_, err := c.query(ctx, []string{"mapList.runNextRound"}, nil)
	return err
}

func (c *Commander) MapListList(ctx context.Context) ([]MapListEntry, error) {
	words, err := c.query(ctx, []string{"mapList.list"}, nil)
	if err != nil {
		return nil, err
	}
	return parseMapList(words)
}

func parseMapList(words []string) ([]MapListEntry, error) {
	if len(words) < 1 {
		return nil, fmt.Errorf("rcon: empty mapList.list reply: %w", transport.ErrProtocolError)
	}
	colCount, err := strconv.Atoi(words[0])
	if err != nil || colCount != 3 {
		return nil, fmt.Errorf("rcon: mapList.list unexpected column count: %w", transport.ErrProtocolError)
	}
	off := 1
	if off >= len(words) {
		return nil, fmt.Errorf("rcon: mapList.list missing row count: %w", transport.ErrProtocolError)
	}
	rowCount, err := strconv.Atoi(words[off])
	if err != nil {
		return nil, fmt.Errorf("rcon: mapList.list row count: %w", transport.ErrProtocolError)
	}
	off++
	entries := make([]MapListEntry, 0, rowCount)
	for i := 0; i < rowCount; i++ {
		if off+3 > len(words) {
			return nil, fmt.Errorf("rcon: mapList.list truncated row %d: %w", i, transport.ErrProtocolError)
		}
		m, _ := MapFromWireName(words[off])
		mode := GameModeFromWireName(words[off+1])
		rounds, _ := strconv.Atoi(words[off+2])
		entries = append(entries, MapListEntry{Map: m, Mode: mode, Rounds: rounds})
		off += 3
	}
	return entries, nil
}

func (c *Commander) ReservedList(ctx context.Context) ([]string, error) {
	words, err := c.query(ctx, []string{"reservedSlotsList.list"}, nil)
	if err != nil {
		return nil, err
	}
	return words, nil
}

func (c *Commander) SetPreset(ctx context.Context, preset string) error {
	_, err := c.query(ctx, []string{"vars.preset", preset}, nil)
	return err
}

func (c *Commander) SetVehiclesSpawnAllowed(ctx context.Context, allowed bool) error {
	_, err := c.query(ctx, []string{"vars.vehicleSpawnAllowed", boolWord(allowed)}, nil)
	return err
}

func (c *Commander) SetVehicleSpawnDelay(ctx context.Context, seconds int) error {
	_, err := c.query(ctx, []string{"vars.vehicleSpawnDelay", strconv.Itoa(seconds)}, nil)
	return err
}

func (c *Commander) SetTickets(ctx context.Context, n int) error {
	_, err := c.query(ctx, []string{"vars.gameModeCounter", strconv.Itoa(n)}, nil)
	return err
}

func (c *Commander) AdminAdd(ctx context.Context, name string) error {
	_, err := c.query(ctx, []string{"admin.adminList.add", name}, nil)
	return err
}

func (c *Commander) AdminRemove(ctx context.Context, name string) error {
	_, err := c.query(ctx, []string{"admin.adminList.remove", name}, nil)
	return err
}

// BanSubjectKind is the kind of identifier a ban targets.
type BanSubjectKind int

const (
	BanByName BanSubjectKind = iota
	BanByIP
	BanByGUID
)

type BanSubject struct {
	Kind  BanSubjectKind
	Value string
}

func (s BanSubject) wireKind() string {
	switch s.Kind {
	case BanByIP:
		return "ip"
	case BanByGUID:
		return "guid"
	default:
		return "name"
	}
}

// BanDurationKind selects permanent, N-round, or N-second bans.
type BanDurationKind int

const (
	BanPermanent BanDurationKind = iota
	BanRounds
	BanSeconds
)

type BanDuration struct {
	Kind BanDurationKind
	N    int
}

func (d BanDuration) wireWords() []string {
	switch d.Kind {
	case BanRounds:
		return []string{"rounds", strconv.Itoa(d.N)}
	case BanSeconds:
		return []string{"seconds", strconv.Itoa(d.N)}
	default:
		return []string{"perm"}
	}
}

// BanAdd adds a ban (name/ip/guid, permanent/rounds/seconds, reason).
func (c *Commander) BanAdd(ctx context.Context, subject BanSubject, duration BanDuration, reason string) error {
	words := append([]string{"banList.add", subject.wireKind(), subject.Value}, duration.wireWords()...)
	words = append(words, reason)
	_, err := c.query(ctx, words, map[string]error{
		"BanListFull": ErrBanListFull,
	})
	return err
}

func boolWord(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
