package mapvote

import (
	"math/big"
	"testing"

	"rconcore/internal/rcon"
)

// Four distinct alternatives standing in for the "Wolf", "Fox", "Eagle",
// "Penguin" scenario worked through by hand in the original tally's test
// suite.
var (
	wolf    = AltKey{Map: rcon.MapZavod, Mode: "RushLarge0"}
	fox     = AltKey{Map: rcon.MapLancangDam, Mode: "RushLarge0"}
	eagle   = AltKey{Map: rcon.MapFloodZone, Mode: "RushLarge0"}
	penguin = AltKey{Map: rcon.MapGolmudRailway, Mode: "RushLarge0"}
)

func rat(n int64) *big.Rat { return big.NewRat(n, 1) }

func ballot(weight int64, prefs ...AltKey) Ballot {
	return Ballot{Weight: rat(weight), Preferences: prefs}
}

func TestVanillaStv1WolfWinsUnitWeights(t *testing.T) {
	p := Profile{
		Alts: []AltKey{wolf, fox, eagle, penguin},
		Ballots: []Ballot{
			ballot(1, eagle),
			ballot(1, eagle),
			ballot(1, eagle),
			ballot(1, wolf, fox, eagle),
			ballot(1, fox, wolf, eagle),
			ballot(1, wolf, fox, eagle),
			ballot(1, wolf, fox),
		},
	}
	winner, ok := VanillaStv1(p, NopTracer{})
	if !ok {
		t.Fatalf("expected a winner")
	}
	if winner != wolf {
		t.Fatalf("winner = %+v, want wolf", winner)
	}
}

func TestVanillaStv1WolfWinsFractionalWeights(t *testing.T) {
	p := Profile{
		Alts: []AltKey{wolf, fox, eagle, penguin},
		Ballots: []Ballot{
			{Weight: big.NewRat(2, 1), Preferences: []AltKey{eagle}},
			{Weight: big.NewRat(2, 1), Preferences: []AltKey{eagle}},
			{Weight: big.NewRat(2, 1), Preferences: []AltKey{eagle}},
			{Weight: big.NewRat(1, 2), Preferences: []AltKey{wolf, fox, eagle}},
			{Weight: big.NewRat(2, 1), Preferences: []AltKey{fox, wolf, eagle}},
			{Weight: big.NewRat(2, 1), Preferences: []AltKey{wolf, fox, eagle}},
			{Weight: big.NewRat(2, 1), Preferences: []AltKey{wolf, fox}},
		},
	}
	winner, ok := VanillaStv1(p, NopTracer{})
	if !ok || winner != wolf {
		t.Fatalf("winner = %+v, ok=%v, want wolf", winner, ok)
	}
}

func TestElemTNoOpAtSZero(t *testing.T) {
	p := Profile{
		Alts: []AltKey{fox, wolf},
		Ballots: []Ballot{
			ballot(1, fox),
			ballot(1, fox, wolf),
		},
	}
	got := p.ElemT(fox, wolf, rat(0), NopTracer{})
	if len(got.Ballots) != len(p.Ballots) {
		t.Fatalf("s=0 must not change ballot count, got %d want %d", len(got.Ballots), len(p.Ballots))
	}
	for i, b := range got.Ballots {
		if b.Weight.Cmp(p.Ballots[i].Weight) != 0 {
			t.Fatalf("s=0 must leave weight unchanged at %d", i)
		}
	}
}

func TestElemTFullTransferAtSOne(t *testing.T) {
	p := Profile{
		Alts: []AltKey{fox, wolf, eagle},
		Ballots: []Ballot{
			ballot(1, fox, wolf),
			ballot(1, fox, eagle),
		},
	}
	got := p.ElemT(fox, wolf, rat(1), NopTracer{})
	// the fox/wolf ballot's full weight transfers to a head-only wolf ballot;
	// the fox/eagle ballot is untouched since its second preference isn't wolf.
	var sawWolfHead, sawFoxEagle bool
	for _, b := range got.Ballots {
		if len(b.Preferences) == 1 && b.Preferences[0] == wolf {
			sawWolfHead = true
			if b.Weight.Cmp(rat(1)) != 0 {
				t.Fatalf("transferred weight = %v, want 1", b.Weight)
			}
		}
		if len(b.Preferences) == 2 && b.Preferences[0] == fox && b.Preferences[1] == eagle {
			sawFoxEagle = true
		}
	}
	if !sawWolfHead {
		t.Fatalf("expected a transferred wolf-headed ballot, got %+v", got.Ballots)
	}
	if !sawFoxEagle {
		t.Fatalf("fox/eagle ballot must be untouched, got %+v", got.Ballots)
	}
}

func TestConsumeDropsHeadBallotsAndStrikesRest(t *testing.T) {
	p := Profile{
		Alts: []AltKey{fox, wolf, eagle},
		Ballots: []Ballot{
			ballot(1, fox),
			ballot(1, wolf, fox, eagle),
		},
	}
	got := p.Consume(fox, NopTracer{})
	for _, a := range got.Alts {
		if a == fox {
			t.Fatalf("fox must be removed from alts")
		}
	}
	if len(got.Ballots) != 1 {
		t.Fatalf("head-of-fox ballot must be dropped, got %+v", got.Ballots)
	}
	if got.Ballots[0].Preferences[0] != wolf || len(got.Ballots[0].Preferences) != 2 {
		t.Fatalf("fox must be struck from remaining ballot, got %+v", got.Ballots[0].Preferences)
	}
}

func TestVanillaStv1SingleAltElectedUnconditionally(t *testing.T) {
	p := Profile{
		Alts:    []AltKey{wolf},
		Ballots: []Ballot{ballot(1, fox, wolf)}, // fox isn't even an alt; only wolf counts
	}
	winner, ok := VanillaStv1(p, NopTracer{})
	if !ok || winner != wolf {
		t.Fatalf("sole remaining alt must win unconditionally, got %+v ok=%v", winner, ok)
	}
}

func TestVanillaStv1EmptyAltsReturnsFalse(t *testing.T) {
	_, ok := VanillaStv1(Profile{}, NopTracer{})
	if ok {
		t.Fatalf("empty alternatives must report no winner")
	}
}

func TestDroopQuotaFloorsAndAddsOne(t *testing.T) {
	q := droopQuota(rat(10))
	if q.Cmp(rat(6)) != 0 {
		t.Fatalf("droop quota of 10 = %v, want 6", q)
	}
	q = droopQuota(big.NewRat(11, 1))
	if q.Cmp(rat(6)) != 0 {
		t.Fatalf("droop quota of 11 = %v, want 6", q)
	}
}
