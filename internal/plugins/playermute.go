package plugins

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"rconcore/internal/rcon"
)

// MuteKind distinguishes how long a mute lasts.
type MuteKind int

const (
	MuteRound MuteKind = iota
	MuteDays
	MutePermanent
)

// Mute is one persisted mute record.
type Mute struct {
	EAID   string
	Kind   MuteKind
	EndsAt time.Time // only meaningful for MuteKind == MuteDays
	Reason string
}

// MuteStore persists mutes, shared with admin tooling outside this process.
type MuteStore interface {
	ListActive(ctx context.Context) ([]Mute, error)
	Upsert(ctx context.Context, m Mute) error
	Delete(ctx context.Context, eaid string) error
}

// PlayerMatcher resolves a partial name to exactly one connected player,
// mirroring the registry's fuzzy-match service.
type PlayerMatcher interface {
	BestMatch(prefix string) (rcon.Player, error)
}

type PlayerMuteConfig struct {
	Enabled        bool
	Admins         map[string]bool // player names allowed to run /mute and /unmute
	AdminCmdPeriod time.Duration    // minimum spacing between one admin's mute-store-touching commands
}

type mutedPlayer struct {
	kind        MuteKind
	infractions int
	reason      string
}

// PlayerMute kills and warns a muted player's first chat line, kicks on the
// second, and exposes /mute and /unmute admin chat commands.
type PlayerMute struct {
	cmd     *rcon.Commander
	store   MuteStore
	matcher PlayerMatcher
	logger  *slog.Logger
	cfg     PlayerMuteConfig
	now     func() time.Time

	mu      sync.Mutex
	muted   map[string]*mutedPlayer // by EAID
	eaid    map[string]string       // player name -> EAID, for chat lookups
	cmdRate map[string]*rate.Limiter
}

func NewPlayerMute(cmd *rcon.Commander, store MuteStore, matcher PlayerMatcher, logger *slog.Logger, cfg PlayerMuteConfig) *PlayerMute {
	if logger == nil {
		logger = slog.Default()
	}
	return &PlayerMute{
		cmd:     cmd,
		store:   store,
		matcher: matcher,
		logger:  logger.With("component", "playermute"),
		cfg:     cfg,
		now:     time.Now,
		muted:   make(map[string]*mutedPlayer),
		eaid:    make(map[string]string),
		cmdRate: make(map[string]*rate.Limiter),
	}
}

// allowAdminCmd bounds how often one admin's /mute or /unmute may reach the
// store; a non-positive AdminCmdPeriod disables limiting.
func (pm *PlayerMute) allowAdminCmd(admin string) bool {
	if pm.cfg.AdminCmdPeriod <= 0 {
		return true
	}
	pm.mu.Lock()
	defer pm.mu.Unlock()
	lim, ok := pm.cmdRate[admin]
	if !ok {
		lim = rate.NewLimiter(rate.Every(pm.cfg.AdminCmdPeriod), 1)
		pm.cmdRate[admin] = lim
	}
	return lim.Allow()
}

func (pm *PlayerMute) Name() string { return "playermute" }

func (pm *PlayerMute) Start(ctx context.Context) error {
	pm.reload(ctx)
	return nil
}

func (pm *PlayerMute) reload(ctx context.Context) {
	active, err := pm.store.ListActive(ctx)
	if err != nil {
		pm.logger.Error("loading muted players failed", "error", err)
		return
	}
	pm.mu.Lock()
	defer pm.mu.Unlock()
	alive := make(map[string]bool, len(active))
	for _, m := range active {
		alive[m.EAID] = true
		if _, ok := pm.muted[m.EAID]; !ok {
			pm.muted[m.EAID] = &mutedPlayer{kind: m.Kind, reason: m.Reason}
		}
	}
	for eaid := range pm.muted {
		if !alive[eaid] {
			delete(pm.muted, eaid)
		}
	}
}

func (pm *PlayerMute) HandleEvent(ctx context.Context, ev rcon.Event) error {
	switch ev.Kind {
	case rcon.EventAuthenticated:
		pm.mu.Lock()
		pm.eaid[ev.Player.Name] = ev.Player.EAID
		pm.mu.Unlock()

	case rcon.EventLevelLoaded:
		pm.reload(ctx)

	case rcon.EventLeave:
		pm.mu.Lock()
		delete(pm.eaid, ev.Player.Name)
		pm.mu.Unlock()

	case rcon.EventRoundOver:
		pm.dropRoundMutes(ctx)

	case rcon.EventChat:
		return pm.handleChat(ctx, ev)
	}
	return nil
}

func (pm *PlayerMute) dropRoundMutes(ctx context.Context) {
	pm.mu.Lock()
	var round []string
	for eaid, m := range pm.muted {
		if m.kind == MuteRound {
			round = append(round, eaid)
		}
	}
	for _, eaid := range round {
		delete(pm.muted, eaid)
	}
	pm.mu.Unlock()

	for _, eaid := range round {
		if err := pm.store.Delete(ctx, eaid); err != nil {
			pm.logger.Error("clearing round mute failed", "eaid", eaid, "error", err)
		}
	}
}

func (pm *PlayerMute) handleChat(ctx context.Context, ev rcon.Event) error {
	msg := ev.Message
	if strings.HasPrefix(msg, "/") {
		return pm.handleCommand(ctx, ev.Player.Name, strings.TrimPrefix(msg, "/"))
	}

	pm.mu.Lock()
	eaid, known := pm.eaid[ev.Player.Name]
	var m *mutedPlayer
	if known {
		m = pm.muted[eaid]
	}
	if m == nil {
		pm.mu.Unlock()
		return nil
	}
	m.infractions++
	infractions := m.infractions
	pm.mu.Unlock()

	if pm.cmd == nil {
		return nil
	}
	if infractions >= 2 {
		return pm.cmd.Kick(ctx, ev.Player.Name, "talking while muted")
	}
	if err := pm.cmd.Kill(ctx, ev.Player.Name); err != nil {
		return err
	}
	return pm.sayLogged(ctx, ev.Player.Name, "you are muted, you will be kicked if you talk again")
}

func (pm *PlayerMute) sayLogged(ctx context.Context, player, msg string) error {
	if pm.cmd == nil {
		return nil
	}
	if err := pm.cmd.Say(ctx, msg, rcon.VisibilityPlayer(player)); err != nil {
		pm.logger.Warn("say failed", "player", player, "error", err)
	}
	return nil
}

func (pm *PlayerMute) handleCommand(ctx context.Context, caller, rest string) error {
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return nil
	}
	cmd := fields[0]
	if cmd != "mute" && cmd != "unmute" {
		return nil
	}
	if !pm.cfg.Admins[caller] {
		return nil
	}
	if !pm.allowAdminCmd(caller) {
		return pm.sayLogged(ctx, caller, "slow down, try again in a moment")
	}

	if cmd == "unmute" {
		if len(fields) < 2 {
			return pm.sayLogged(ctx, caller, "usage: /unmute <name>")
		}
		return pm.unmute(ctx, caller, fields[1])
	}

	if len(fields) < 4 {
		return pm.sayLogged(ctx, caller, "usage: /mute <name> <r|d<days>|p> <reason>")
	}
	return pm.mute(ctx, caller, fields[1], fields[2], strings.Join(fields[3:], " "))
}

func (pm *PlayerMute) resolve(ctx context.Context, caller, target string) (rcon.Player, bool) {
	p, err := pm.matcher.BestMatch(target)
	if err != nil {
		pm.sayLogged(ctx, caller, "no unique match for "+target)
		return rcon.Player{}, false
	}
	return p, true
}

func (pm *PlayerMute) mute(ctx context.Context, caller, target, typeTok, reason string) error {
	p, ok := pm.resolve(ctx, caller, target)
	if !ok {
		return nil
	}

	m := Mute{EAID: p.EAID, Reason: reason}
	switch typeTok[0] {
	case 'r':
		m.Kind = MuteRound
	case 'p':
		m.Kind = MutePermanent
	case 'd':
		n, err := strconv.Atoi(typeTok[1:])
		if err != nil {
			return pm.sayLogged(ctx, caller, "invalid mute type: r, d<N>, or p")
		}
		m.Kind = MuteDays
		m.EndsAt = pm.now().Add(time.Duration(n) * 24 * time.Hour)
	default:
		return pm.sayLogged(ctx, caller, "invalid mute type: r, d<N>, or p")
	}

	if err := pm.store.Upsert(ctx, m); err != nil {
		pm.logger.Error("mute upsert failed", "eaid", p.EAID, "error", err)
		return nil
	}

	pm.mu.Lock()
	pm.muted[p.EAID] = &mutedPlayer{kind: m.Kind, reason: reason}
	pm.mu.Unlock()

	pm.sayLogged(ctx, caller, p.Name+" has been muted for "+reason)
	return pm.sayLogged(ctx, p.Name, "you have been muted for "+reason)
}

func (pm *PlayerMute) unmute(ctx context.Context, caller, target string) error {
	p, ok := pm.resolve(ctx, caller, target)
	if !ok {
		return nil
	}

	pm.mu.Lock()
	_, wasMuted := pm.muted[p.EAID]
	delete(pm.muted, p.EAID)
	pm.mu.Unlock()

	if !wasMuted {
		return pm.sayLogged(ctx, caller, p.Name+" wasn't muted")
	}
	if err := pm.store.Delete(ctx, p.EAID); err != nil {
		pm.logger.Error("mute delete failed", "eaid", p.EAID, "error", err)
	}
	pm.sayLogged(ctx, caller, "mute for "+p.Name+" has been removed")
	return pm.sayLogged(ctx, p.Name, "you have been unmuted")
}
