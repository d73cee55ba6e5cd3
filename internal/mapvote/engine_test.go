package mapvote

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"rconcore/internal/mapmanager"
	"rconcore/internal/rcon"
)

func testPool() mapmanager.MapPool {
	return mapmanager.MapPool{
		{Map: wolf.Map, Mode: mustMode(wolf.Mode)},
		{Map: fox.Map, Mode: mustMode(fox.Mode)},
		{Map: eagle.Map, Mode: mustMode(eagle.Mode)},
		{Map: penguin.Map, Mode: mustMode(penguin.Mode)},
	}
}

func mustMode(wireName string) rcon.GameMode {
	return rcon.GameModeFromWireName(wireName)
}

type fakeVIP struct{ vips map[string]bool }

func (f fakeVIP) IsVIP(ctx context.Context, name string) (bool, error) {
	return f.vips[name], nil
}

type fakeSwitcher struct {
	called  bool
	arg     mapmanager.MapInPool
	failErr error
}

func (f *fakeSwitcher) SwitchToMap(ctx context.Context, target mapmanager.MapInPool) error {
	f.called = true
	f.arg = target
	return f.failErr
}

func newTestEngine(cfg Config) *Engine {
	e := New(nil, fakeVIP{vips: map[string]bool{"vip1": true}}, &fakeSwitcher{}, nil, cfg)
	e.SetRand(rand.New(rand.NewSource(42)))
	return e
}

func TestSetupElectionSamplesAtMostNOptions(t *testing.T) {
	e := newTestEngine(Config{NOptions: 2, MaxOptions: 4, OptionsMinLen: 1})
	e.SetupElection(testPool())
	if got := len(e.Alternatives()); got != 2 {
		t.Fatalf("alternatives = %d, want 2", got)
	}
}

func TestSetupElectionKeepsAllWhenPoolSmallerThanNOptions(t *testing.T) {
	e := newTestEngine(Config{NOptions: 10, MaxOptions: 10, OptionsMinLen: 1})
	e.SetupElection(testPool())
	if got := len(e.Alternatives()); got != 4 {
		t.Fatalf("alternatives = %d, want 4 (whole pool)", got)
	}
}

func TestNominateRejectsMapNotInPool(t *testing.T) {
	e := newTestEngine(Config{NOptions: 2, MaxOptions: 4, MaxNomsPerVIP: 2, OptionsMinLen: 1})
	e.SetupElection(mapmanager.MapPool{{Map: wolf.Map, Mode: mustMode(wolf.Mode)}})
	notInPool := mapmanager.MapInPool{Map: penguin.Map, Mode: mustMode(penguin.Mode)}
	if err := e.Nominate(context.Background(), "vip1", notInPool); !errors.Is(err, ErrNotInPool) {
		t.Fatalf("err = %v, want ErrNotInPool", err)
	}
}

func TestNominateRejectsAlreadyAnAlternative(t *testing.T) {
	e := newTestEngine(Config{NOptions: 1, MaxOptions: 4, MaxNomsPerVIP: 2, OptionsMinLen: 1})
	e.SetRand(rand.New(rand.NewSource(1)))
	e.SetupElection(testPool())
	already := e.Alternatives()[0]
	target := mapmanager.MapInPool{Map: already.Map, Mode: mustMode(already.Mode)}
	if err := e.Nominate(context.Background(), "vip1", target); !errors.Is(err, ErrAlreadyNominated) {
		t.Fatalf("err = %v, want ErrAlreadyNominated", err)
	}
}

func TestNominateEnforcesPerVIPLimit(t *testing.T) {
	e := newTestEngine(Config{NOptions: 1, MaxOptions: 4, MaxNomsPerVIP: 1, OptionsMinLen: 1})
	e.SetupElection(testPool())
	full := testPool()
	var first, second mapmanager.MapInPool
	for _, m := range full {
		if KeyOf(m) != e.Alternatives()[0] {
			if first == (mapmanager.MapInPool{}) {
				first = m
			} else {
				second = m
			}
		}
	}
	if err := e.Nominate(context.Background(), "vip1", first); err != nil {
		t.Fatalf("first nomination should succeed: %v", err)
	}
	if err := e.Nominate(context.Background(), "vip1", second); !errors.Is(err, ErrNominationLimitReached) {
		t.Fatalf("err = %v, want ErrNominationLimitReached", err)
	}
}

func TestNominateRejectsNonVIP(t *testing.T) {
	e := newTestEngine(Config{NOptions: 1, MaxOptions: 4, MaxNomsPerVIP: 2, OptionsMinLen: 1})
	e.SetupElection(testPool())
	before := len(e.Alternatives())
	notInElection := mapmanager.MapInPool{Map: penguin.Map, Mode: mustMode(penguin.Mode)}
	if err := e.Nominate(context.Background(), "regular", notInElection); !errors.Is(err, ErrNotVIP) {
		t.Fatalf("err = %v, want ErrNotVIP", err)
	}
	if len(e.Alternatives()) != before {
		t.Fatalf("non-VIP nomination must not be added, alternatives = %+v", e.Alternatives())
	}
}

func TestParseBallotAdjacentDuplicateMerged(t *testing.T) {
	e := newTestEngine(Config{NOptions: 3, MaxOptions: 4, OptionsMinLen: 1})
	e.SetupElection(testPool())
	alts := e.Alternatives()
	tok0 := itoaMatchers(e.Matchers().ByAlt[alts[0]].Number)

	prefs, err := e.ParseBallot(tok0 + " " + tok0)
	if err != nil {
		t.Fatalf("adjacent duplicate must merge, not error: %v", err)
	}
	if len(prefs) != 1 || prefs[0] != alts[0] {
		t.Fatalf("prefs = %+v, want [%+v]", prefs, alts[0])
	}
}

func TestParseBallotNonAdjacentDuplicateFails(t *testing.T) {
	e := newTestEngine(Config{NOptions: 3, MaxOptions: 4, OptionsMinLen: 1})
	e.SetupElection(testPool())
	alts := e.Alternatives()
	if len(alts) < 2 {
		t.Skip("need at least 2 alternatives")
	}
	tok0 := itoaMatchers(e.Matchers().ByAlt[alts[0]].Number)
	tok1 := itoaMatchers(e.Matchers().ByAlt[alts[1]].Number)

	_, err := e.ParseBallot(tok0 + " " + tok1 + " " + tok0)
	if !errors.Is(err, ErrUnresolvableDuplicate) {
		t.Fatalf("err = %v, want ErrUnresolvableDuplicate", err)
	}
}

func TestParseBallotUnresolvedFirstTokenIsSilentlyIgnored(t *testing.T) {
	e := newTestEngine(Config{NOptions: 3, MaxOptions: 4, OptionsMinLen: 1})
	e.SetupElection(testPool())
	prefs, err := e.ParseBallot("gibberish that matches nothing")
	if err != nil || prefs != nil {
		t.Fatalf("unresolved first token must be silently ignored, got prefs=%v err=%v", prefs, err)
	}
}

func TestCastVoteWeightsVIPAtConfiguredWeight(t *testing.T) {
	e := newTestEngine(Config{NOptions: 3, MaxOptions: 4, OptionsMinLen: 1, VipVoteWeight: 2})
	e.SetupElection(testPool())
	alts := e.Alternatives()
	tok0 := itoaMatchers(e.Matchers().ByAlt[alts[0]].Number)

	if err := e.CastVote(context.Background(), "vip1", tok0); err != nil {
		t.Fatalf("cast vote: %v", err)
	}
	if err := e.CastVote(context.Background(), "regular", tok0); err != nil {
		t.Fatalf("cast vote: %v", err)
	}
	if e.ballots["vip1"].Weight != 2 {
		t.Fatalf("vip weight = %d, want 2", e.ballots["vip1"].Weight)
	}
	if e.ballots["regular"].Weight != 1 {
		t.Fatalf("non-vip weight = %d, want 1", e.ballots["regular"].Weight)
	}
}

func TestNominateRateLimitsRapidRepeatsFromSameVIP(t *testing.T) {
	e := newTestEngine(Config{NOptions: 1, MaxOptions: 4, MaxNomsPerVIP: 4, OptionsMinLen: 1, SpammerInterval: time.Hour})
	e.SetupElection(testPool())
	full := testPool()
	var candidates []mapmanager.MapInPool
	for _, m := range full {
		if KeyOf(m) != e.Alternatives()[0] {
			candidates = append(candidates, m)
		}
	}
	if err := e.Nominate(context.Background(), "vip1", candidates[0]); err != nil {
		t.Fatalf("first nomination should succeed: %v", err)
	}
	if err := e.Nominate(context.Background(), "vip1", candidates[1]); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("err = %v, want ErrRateLimited", err)
	}
}

func TestReconcilePoolDropsBallotsEmptiedByRemoval(t *testing.T) {
	e := newTestEngine(Config{NOptions: 4, MaxOptions: 4, OptionsMinLen: 1})
	e.SetupElection(testPool())
	alts := e.Alternatives()
	tok0 := itoaMatchers(e.Matchers().ByAlt[alts[0]].Number)
	if err := e.CastVote(context.Background(), "p1", tok0); err != nil {
		t.Fatalf("cast vote: %v", err)
	}

	shrunk := mapmanager.MapPool{}
	for _, m := range testPool() {
		if KeyOf(m) != alts[0] {
			shrunk = append(shrunk, m)
		}
	}
	revote, _ := e.ReconcilePool(shrunk)
	found := false
	for _, p := range revote {
		if p == "p1" {
			found = true
		}
	}
	if !found {
		t.Fatalf("player whose sole preference was removed must be asked to revote, got %v", revote)
	}
	if _, stillThere := e.ballots["p1"]; stillThere {
		t.Fatalf("emptied ballot must be deleted")
	}
}
