package mapvote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"rconcore/internal/mapmanager"
	"rconcore/internal/rcon"
)

var (
	ErrEmptyBallot            = errors.New("mapvote: ballot has no resolved preferences")
	ErrUnresolvableDuplicate  = errors.New("mapvote: duplicate preference is not adjacent")
	ErrUnknownToken           = errors.New("mapvote: token does not resolve to any alternative")
	ErrTooManyAlternatives    = errors.New("mapvote: alternative set is already at max_options")
	ErrAlreadyNominated       = errors.New("mapvote: map is already an alternative")
	ErrNotInPool              = errors.New("mapvote: map is not in the current pool")
	ErrNominationLimitReached = errors.New("mapvote: nomination limit reached for this round")
	ErrRateLimited            = errors.New("mapvote: too many nominations/votes in quick succession")
	ErrNotVIP                 = errors.New("mapvote: nominator is not a VIP")
)

// VIPChecker is the subset of the VIP cache the engine depends on.
type VIPChecker interface {
	IsVIP(ctx context.Context, name string) (bool, error)
}

// Switcher is the subset of the Map Manager the engine depends on to
// commit a round's winner.
type Switcher interface {
	SwitchToMap(ctx context.Context, target mapmanager.MapInPool) error
}

// Config is the set of tunables for one MV instance, named after their
// wire configuration keys.
type Config struct {
	NOptions              int
	MaxOptions            int
	MaxNomsPerVIP         int
	VoteStartInterval     time.Duration
	SpammerInterval       time.Duration
	EndscreenVoteTime     time.Duration
	EndscreenPostVoteTime time.Duration
	VipNom                bool
	VipAd                 bool
	AnnounceNominator     bool
	VipVoteWeight         int
	Animate               bool
	AnimateOverride       map[string]bool
	OptionsMinLen         int
	OptionsReservedHidden []string
	OptionsReservedTrie   []string
}

func (c Config) vipWeight() int {
	if c.VipVoteWeight <= 0 {
		return 2
	}
	return c.VipVoteWeight
}

func (c Config) animateFor(player string) bool {
	if override, ok := c.AnimateOverride[player]; ok {
		return override
	}
	return c.Animate
}

type playerBallot struct {
	Preferences []AltKey
	Weight      int
}

// Engine is the Map Vote Engine (MV): option selection and matcher
// generation, ballot parsing and storage, nomination bookkeeping, and
// round-end STV tally and commitment.
type Engine struct {
	cmd    *rcon.Commander
	vip    VIPChecker
	mm     Switcher
	logger *slog.Logger
	cfg    Config

	mu       sync.Mutex
	rng      *rand.Rand
	pool     mapmanager.MapPool
	byKey    map[AltKey]mapmanager.MapInPool
	alts     []AltKey
	matchers MatcherTable
	ballots  map[string]playerBallot
	noms     map[string][]AltKey
	spam     map[string]*rate.Limiter
}

// New constructs an Engine with no active election; call SetupElection
// once an initial pool is known.
func New(cmd *rcon.Commander, vip VIPChecker, mm Switcher, logger *slog.Logger, cfg Config) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cmd:     cmd,
		vip:     vip,
		mm:      mm,
		logger:  logger.With("component", "mapvote"),
		cfg:     cfg,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		byKey:   make(map[AltKey]mapmanager.MapInPool),
		ballots: make(map[string]playerBallot),
		noms:    make(map[string][]AltKey),
		spam:    make(map[string]*rate.Limiter),
	}
}

// NominationsEnabled reports whether the vip_nom config flag admits the
// chat-driven nomination command at all; callers should not bother parsing
// a nomination token when this is false.
func (e *Engine) NominationsEnabled() bool { return e.cfg.VipNom }

// allowLocked reports whether player may nominate or vote again right now,
// bounding how often either can hit the engine per cfg.SpammerInterval. Must
// be called with e.mu held. A non-positive SpammerInterval disables limiting.
func (e *Engine) allowLocked(player string) bool {
	if e.cfg.SpammerInterval <= 0 {
		return true
	}
	lim, ok := e.spam[player]
	if !ok {
		lim = rate.NewLimiter(rate.Every(e.cfg.SpammerInterval), 1)
		e.spam[player] = lim
	}
	return lim.Allow()
}

// SetRand overrides the random source; tests use this for determinism.
func (e *Engine) SetRand(r *rand.Rand) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rng = r
}

// SetupElection samples n_options alternatives at random from pool,
// builds a fresh matcher table (numbers are not inherited), and clears
// ballots and nomination counts for the new round.
func (e *Engine) SetupElection(pool mapmanager.MapPool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pool = pool
	e.rebuildIndexLocked(pool)
	e.alts = e.sampleLocked(pool, e.cfg.NOptions)
	e.matchers = ComputeMatchers(e.alts, nil, e.cfg.OptionsReservedTrie, e.cfg.OptionsReservedHidden, e.cfg.OptionsMinLen, e.logger)
	e.ballots = make(map[string]playerBallot)
	e.noms = make(map[string][]AltKey)
}

func (e *Engine) rebuildIndexLocked(pool mapmanager.MapPool) {
	e.byKey = make(map[AltKey]mapmanager.MapInPool, len(pool))
	for _, m := range pool {
		e.byKey[KeyOf(m)] = m
	}
}

func (e *Engine) sampleLocked(pool mapmanager.MapPool, n int) []AltKey {
	keys := make([]AltKey, len(pool))
	for i, m := range pool {
		keys[i] = KeyOf(m)
	}
	if n <= 0 || n >= len(keys) {
		return keys
	}
	perm := e.rng.Perm(len(keys))
	out := make([]AltKey, n)
	for i := 0; i < n; i++ {
		out[i] = keys[perm[i]]
	}
	return out
}

// Alternatives returns the current round's alternatives, in display order.
func (e *Engine) Alternatives() []AltKey {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]AltKey{}, e.alts...)
}

// Matchers returns the current matcher table.
func (e *Engine) Matchers() MatcherTable {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.matchers
}

// Nominate adds target to the alternatives on behalf of a VIP, enforcing
// VIP status itself, the per-VIP nomination cap, pool membership,
// non-duplication, and the max_options ceiling. Unlike CastVote's lookup
// (which only affects vote weight and falls back softly on error), VIP
// status here is a hard gate: a lookup failure is rejected, not assumed.
func (e *Engine) Nominate(ctx context.Context, vipName string, target mapmanager.MapInPool) error {
	isVIP, err := e.vip.IsVIP(ctx, vipName)
	if err != nil {
		return fmt.Errorf("mapvote: nominate by %s: vip lookup: %w", vipName, err)
	}
	if !isVIP {
		if e.cmd != nil {
			msg := fmt.Sprintf("sorry %s, but you are not a VIP (yet), and thus can't nominate maps", vipName)
			if e.cfg.VipAd {
				msg += " - ask an admin how to become one"
			}
			e.yellLogged(ctx, msg, 5, vipName)
		}
		return fmt.Errorf("mapvote: nominate by %s: %w", vipName, ErrNotVIP)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.allowLocked(vipName) {
		return fmt.Errorf("mapvote: nominate by %s: %w", vipName, ErrRateLimited)
	}
	if len(e.noms[vipName]) >= e.cfg.MaxNomsPerVIP {
		return fmt.Errorf("mapvote: nominate by %s: %w", vipName, ErrNominationLimitReached)
	}
	k := KeyOf(target)
	if _, inPool := e.byKey[k]; !inPool {
		return fmt.Errorf("mapvote: nominate by %s: %w", vipName, ErrNotInPool)
	}
	for _, a := range e.alts {
		if a == k {
			return fmt.Errorf("mapvote: nominate by %s: %w", vipName, ErrAlreadyNominated)
		}
	}
	if len(e.alts) >= e.cfg.MaxOptions {
		return fmt.Errorf("mapvote: nominate by %s: %w", vipName, ErrTooManyAlternatives)
	}

	e.alts = append(e.alts, k)
	e.noms[vipName] = append(e.noms[vipName], k)
	prev := e.matchers.ByAlt
	e.matchers = ComputeMatchers(e.alts, prev, e.cfg.OptionsReservedTrie, e.cfg.OptionsReservedHidden, e.cfg.OptionsMinLen, e.logger)

	if e.cmd != nil {
		name := displayName(k, e.matchers.ByAlt[k].Disambiguated)
		msg := name + " has been added to the options, everyone can vote on it now"
		if e.cfg.AnnounceNominator {
			msg = "our beloved VIP " + vipName + " has nominated " + name + "!\n" + msg
		}
		e.sayLogged(ctx, msg)
	}
	return nil
}

func stripRemoved(prefs []AltKey, removed map[AltKey]bool) []AltKey {
	out := make([]AltKey, 0, len(prefs))
	for _, p := range prefs {
		if !removed[p] {
			out = append(out, p)
		}
	}
	return out
}

// ReconcilePool replaces the active pool, dropping alternatives no longer
// present and drawing replacements up to n_options. Ballots left empty by
// the removal are deleted; playersToRevote names their owners. VIPs whose
// nomination was removed are returned in vipsToRenominate.
func (e *Engine) ReconcilePool(newPool mapmanager.MapPool) (playersToRevote []string, vipsToRenominate []string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	newIdx := make(map[AltKey]mapmanager.MapInPool, len(newPool))
	for _, m := range newPool {
		newIdx[KeyOf(m)] = m
	}

	var survivors []AltKey
	removed := make(map[AltKey]bool)
	have := make(map[AltKey]bool, len(e.alts))
	for _, a := range e.alts {
		if _, ok := newIdx[a]; ok {
			survivors = append(survivors, a)
			have[a] = true
		} else {
			removed[a] = true
		}
	}

	need := e.cfg.NOptions - len(survivors)
	if need > 0 {
		var candidates []AltKey
		for k := range newIdx {
			if !have[k] {
				candidates = append(candidates, k)
			}
		}
		sort.Slice(candidates, func(i, j int) bool { return candidates[i].ShortName() < candidates[j].ShortName() })
		if need < len(candidates) {
			perm := e.rng.Perm(len(candidates))
			picked := make([]AltKey, 0, need)
			for i := 0; i < need; i++ {
				picked = append(picked, candidates[perm[i]])
			}
			candidates = picked
		}
		survivors = append(survivors, candidates...)
	}

	e.alts = survivors
	e.pool = newPool
	e.rebuildIndexLocked(newPool)
	prev := e.matchers.ByAlt
	e.matchers = ComputeMatchers(e.alts, prev, e.cfg.OptionsReservedTrie, e.cfg.OptionsReservedHidden, e.cfg.OptionsMinLen, e.logger)

	for player, b := range e.ballots {
		stripped := stripRemoved(b.Preferences, removed)
		if len(stripped) == 0 {
			delete(e.ballots, player)
			playersToRevote = append(playersToRevote, player)
		} else if len(stripped) != len(b.Preferences) {
			b.Preferences = stripped
			e.ballots[player] = b
		}
	}

	for vip, picks := range e.noms {
		var kept []AltKey
		lostAny := false
		for _, p := range picks {
			if removed[p] {
				lostAny = true
				continue
			}
			kept = append(kept, p)
		}
		if lostAny {
			e.noms[vip] = kept
			vipsToRenominate = append(vipsToRenominate, vip)
		}
	}
	return playersToRevote, vipsToRenominate
}

// ParseBallot tokenizes a chat message on spaces and resolves each token
// via the current matcher table. A nil, nil return means the message did
// not resolve as a vote at all (its first token is unrecognized) and
// should be silently ignored.
func (e *Engine) ParseBallot(message string) ([]AltKey, error) {
	e.mu.Lock()
	matchers := e.matchers
	e.mu.Unlock()

	tokens := strings.Fields(message)
	if len(tokens) == 0 {
		return nil, nil
	}
	first, ok := matchers.Match(strings.ToLower(tokens[0]))
	if !ok {
		return nil, nil
	}

	prefs := []AltKey{first}
	for _, tok := range tokens[1:] {
		a, ok := matchers.Match(strings.ToLower(tok))
		if !ok {
			return nil, fmt.Errorf("mapvote: parse ballot: token %q: %w", tok, ErrUnknownToken)
		}
		if prefs[len(prefs)-1] == a {
			e.logger.Warn("adjacent duplicate preference merged", "alt", a.ShortName())
			continue
		}
		for _, seen := range prefs {
			if seen == a {
				return nil, fmt.Errorf("mapvote: parse ballot: %q: %w", tok, ErrUnresolvableDuplicate)
			}
		}
		prefs = append(prefs, a)
	}
	if len(prefs) == 0 {
		return nil, fmt.Errorf("mapvote: parse ballot: %w", ErrEmptyBallot)
	}
	return prefs, nil
}

// CastVote parses message as a ballot and, if it resolves, stores it for
// player with VIP-weighted weight, replacing any previous ballot.
func (e *Engine) CastVote(ctx context.Context, player, message string) error {
	prefs, err := e.ParseBallot(message)
	if err != nil {
		return err
	}
	if prefs == nil {
		return nil
	}
	weight := 1
	if e.vip != nil {
		isVIP, err := e.vip.IsVIP(ctx, player)
		if err != nil {
			e.logger.Warn("vip lookup failed, voting at non-vip weight", "player", player, "error", err)
		} else if isVIP {
			weight = e.cfg.vipWeight()
		}
	}
	e.mu.Lock()
	if !e.allowLocked(player) {
		e.mu.Unlock()
		return fmt.Errorf("mapvote: cast vote by %s: %w", player, ErrRateLimited)
	}
	e.ballots[player] = playerBallot{Preferences: prefs, Weight: weight}
	e.mu.Unlock()
	return nil
}

// snapshot copies the alts and ballots into an STV Profile, along with the
// per-player preference lists needed to render that player's animation.
func (e *Engine) snapshot() (Profile, map[string][]AltKey) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ballots := make(map[string][]AltKey, len(e.ballots))
	stv := make([]Ballot, 0, len(e.ballots))
	for player, b := range e.ballots {
		prefs := append([]AltKey{}, b.Preferences...)
		ballots[player] = prefs
		stv = append(stv, Ballot{Weight: big.NewRat(int64(b.Weight), 1), Preferences: prefs})
	}
	return Profile{Alts: append([]AltKey{}, e.alts...), Ballots: stv}, ballots
}

func (e *Engine) currentNames() map[AltKey]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	names := make(map[AltKey]string, len(e.alts))
	for _, a := range e.alts {
		names[a] = displayName(a, e.matchers.ByAlt[a].Disambiguated)
	}
	return names
}

// displayName is ShortName, or DisambiguatedName once a short-name
// collision has forced this alt's matcher to disambiguate.
func displayName(a AltKey, disambiguated bool) string {
	if disambiguated {
		return a.DisambiguatedName()
	}
	return a.ShortName()
}

// Tally computes the STV winner from a fresh snapshot of the current
// round, along with the full trace and the per-player ballots the
// animation is rendered against.
func (e *Engine) Tally() (winner AltKey, ok bool, tracer *RecordingTracer, ballots map[string][]AltKey) {
	profile, ballots := e.snapshot()
	tracer = &RecordingTracer{}
	winner, ok = VanillaStv1(profile, tracer)
	return winner, ok, tracer, ballots
}

// RunRoundEnd is the round-end commitment sequence: broadcast the options,
// wait the end-screen vote time (announcing at the midpoint), tally,
// animate per player, wait the post-screen delay, then commit the winner
// to the Map Manager. It does not set up the next round; call
// SetupElection or ReconcilePool once the caller has the new pool.
func (e *Engine) RunRoundEnd(ctx context.Context) error {
	e.mu.Lock()
	alts := append([]AltKey{}, e.alts...)
	byKey := e.byKey
	matchers := e.matchers
	e.mu.Unlock()

	if e.cmd != nil {
		e.sayLogged(ctx, optionsMessage(alts, matchers))
	}

	half := e.cfg.EndscreenVoteTime / 2
	sleep(ctx, half)
	if e.cmd != nil {
		e.sayLogged(ctx, "vote closes soon")
	}
	sleep(ctx, e.cfg.EndscreenVoteTime-half)

	winner, ok, tracer, ballots := e.Tally()
	names := e.currentNames()

	if ok && e.cmd != nil {
		for player, prefs := range ballots {
			if e.cfg.animateFor(player) {
				for _, frame := range RenderFrames(tracer, prefs, names) {
					e.yellLogged(ctx, strings.Join(frame.Lines, "\n"), 2, player)
					sleep(ctx, 2*time.Second)
				}
			} else {
				e.yellLogged(ctx, RenderResult(names[winner]), 5, player)
			}
		}
	}

	sleep(ctx, e.cfg.EndscreenPostVoteTime)

	if !ok {
		return nil
	}
	target, found := byKey[winner]
	if !found {
		return fmt.Errorf("mapvote: round end: winner %s not present in pool index", winner.ShortName())
	}
	if e.mm == nil {
		return nil
	}
	if err := e.mm.SwitchToMap(ctx, target); err != nil {
		return fmt.Errorf("mapvote: round end: commit winner: %w", err)
	}
	return nil
}

func (e *Engine) sayLogged(ctx context.Context, msg string) {
	if err := e.cmd.Say(ctx, msg, rcon.VisibilityAll()); err != nil {
		e.logger.Warn("broadcast failed", "error", err)
	}
}

func (e *Engine) yellLogged(ctx context.Context, msg string, seconds int, player string) {
	if err := e.cmd.Yell(ctx, msg, seconds, rcon.VisibilityPlayer(player)); err != nil {
		e.logger.Warn("private message failed", "player", player, "error", err)
	}
}

func optionsMessage(alts []AltKey, matchers MatcherTable) string {
	names := make([]string, len(alts))
	for i, a := range alts {
		names[i] = displayName(a, matchers.ByAlt[a].Disambiguated)
	}
	return "vote now: " + strings.Join(names, ", ")
}

// sleep waits d or returns early if ctx is done.
func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
