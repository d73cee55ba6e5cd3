package mapvote

import "math/big"

// Ballot is one voter's ranked preference list with an exact rational
// weight. Weight starts at the voter's weight (1, or the VIP weight) and
// is split during elementary transfers, so
// it must be tracked as a ratio rather than a float to avoid drift across
// many transfer rounds.
type Ballot struct {
	Weight      *big.Rat
	Preferences []AltKey // ordered, no duplicates
}

// clone returns a ballot with the given Preferences slice (not copied);
// Weight is shared since *big.Rat values are never mutated in place by
// this package.
func (b Ballot) clone(prefs []AltKey) Ballot {
	return Ballot{Weight: b.Weight, Preferences: prefs}
}

// Profile is the full election state: the remaining alternatives and the
// ballots still in play.
type Profile struct {
	Alts    []AltKey
	Ballots []Ballot
}

// Score is the first-preference weight total for alt a.
func (p Profile) Score(a AltKey) *big.Rat {
	sum := new(big.Rat)
	for _, b := range p.Ballots {
		if len(b.Preferences) > 0 && b.Preferences[0] == a {
			sum.Add(sum, b.Weight)
		}
	}
	return sum
}

// WeightSum is the total weight across all ballots, used to derive the
// droop quota.
func (p Profile) WeightSum() *big.Rat {
	sum := new(big.Rat)
	for _, b := range p.Ballots {
		sum.Add(sum, b.Weight)
	}
	return sum
}

// Tracer observes STV actions as they happen, for feeding a round-end
// tally animation. Implementations must not mutate the Profile they are
// given.
type Tracer interface {
	ElementaryTransfer(from, to AltKey, s *big.Rat, after Profile)
	Consume(x AltKey, after Profile)
	Elect(x AltKey, after Profile)
	Reject(x AltKey, after Profile)
	TieBreak(candidates []AltKey, chosen AltKey)
}

// NopTracer discards every action. Use it when a caller only needs the
// final Result and has no use for the trace.
type NopTracer struct{}

func (NopTracer) ElementaryTransfer(AltKey, AltKey, *big.Rat, Profile) {}
func (NopTracer) Consume(AltKey, Profile)                              {}
func (NopTracer) Elect(AltKey, Profile)                                {}
func (NopTracer) Reject(AltKey, Profile)                               {}
func (NopTracer) TieBreak([]AltKey, AltKey)                            {}

// ElemT is the elementary transfer: ballots with head a and second
// preference b split into a residual part, weighted w*(1-s) and keeping
// the original preference order, and a transferred part, weighted w*s with
// a struck from the head. s==0 is a no-op; s==1 leaves no residual. All
// other ballots pass through untouched.
func (p Profile) ElemT(a, b AltKey, s *big.Rat, tracer Tracer) Profile {
	one := big.NewRat(1, 1)
	newBallots := make([]Ballot, 0, len(p.Ballots)+1)
	for _, bal := range p.Ballots {
		if len(bal.Preferences) < 2 || bal.Preferences[0] != a || bal.Preferences[1] != b {
			newBallots = append(newBallots, bal)
			continue
		}
		residualWeight := new(big.Rat).Sub(one, s)
		residualWeight.Mul(residualWeight, bal.Weight)
		transferWeight := new(big.Rat).Mul(s, bal.Weight)

		if residualWeight.Sign() != 0 {
			newBallots = append(newBallots, bal.clone(bal.Preferences))
			newBallots[len(newBallots)-1].Weight = residualWeight
		}
		if transferWeight.Sign() != 0 {
			rest := append([]AltKey{}, bal.Preferences[1:]...)
			newBallots = append(newBallots, Ballot{Weight: transferWeight, Preferences: rest})
		}
	}
	result := Profile{Alts: p.Alts, Ballots: newBallots}
	tracer.ElementaryTransfer(a, b, s, result)
	return result
}

// TToAll applies ElemT(a, *, s) against every other alternative still in
// the profile, in alt order.
func (p Profile) TToAll(a AltKey, s *big.Rat, tracer Tracer) Profile {
	cur := p
	for _, b := range p.Alts {
		if b == a {
			continue
		}
		cur = cur.ElemT(a, b, s, tracer)
	}
	return cur
}

// Consume removes x from the alternatives and from the ballots: a ballot
// whose head is x is dropped entirely (its weight has already been
// transferred away by TToAll), and any other ballot has x struck out of
// its remaining preferences.
func (p Profile) Consume(x AltKey, tracer Tracer) Profile {
	newAlts := make([]AltKey, 0, len(p.Alts))
	for _, a := range p.Alts {
		if a != x {
			newAlts = append(newAlts, a)
		}
	}
	newBallots := make([]Ballot, 0, len(p.Ballots))
	for _, b := range p.Ballots {
		if len(b.Preferences) == 0 || b.Preferences[0] == x {
			continue
		}
		stripped := make([]AltKey, 0, len(b.Preferences))
		for _, pr := range b.Preferences {
			if pr != x {
				stripped = append(stripped, pr)
			}
		}
		newBallots = append(newBallots, b.clone(stripped))
	}
	result := Profile{Alts: newAlts, Ballots: newBallots}
	tracer.Consume(x, result)
	return result
}

// Result is the outcome of one elect_or_reject round.
type Result struct {
	Elected  []AltKey
	Rejected []AltKey
	Deferred []AltKey
}

func diffAlts(all, remove []AltKey) []AltKey {
	skip := make(map[AltKey]struct{}, len(remove))
	for _, a := range remove {
		skip[a] = struct{}{}
	}
	out := make([]AltKey, 0, len(all))
	for _, a := range all {
		if _, ok := skip[a]; !ok {
			out = append(out, a)
		}
	}
	return out
}

// ElectOrReject elects every alt whose score meets or exceeds the quota q,
// if any do; otherwise it rejects the single alt with the lowest score,
// breaking ties by the order alts appear in the profile.
func (p Profile) ElectOrReject(q *big.Rat, tracer Tracer) Result {
	var elected []AltKey
	for _, a := range p.Alts {
		if p.Score(a).Cmp(q) >= 0 {
			elected = append(elected, a)
		}
	}
	if len(elected) > 0 {
		for _, a := range elected {
			tracer.Elect(a, p)
		}
		return Result{Elected: elected, Deferred: diffAlts(p.Alts, elected)}
	}

	var worst []AltKey
	var worstScore *big.Rat
	for _, a := range p.Alts {
		s := p.Score(a)
		switch {
		case worstScore == nil || s.Cmp(worstScore) < 0:
			worstScore = s
			worst = []AltKey{a}
		case s.Cmp(worstScore) == 0:
			worst = append(worst, a)
		}
	}
	if len(worst) == 0 {
		return Result{}
	}
	rejected := worst[0]
	if len(worst) > 1 {
		tracer.TieBreak(worst, rejected)
	}
	tracer.Reject(rejected, p)
	return Result{Rejected: []AltKey{rejected}, Deferred: diffAlts(p.Alts, []AltKey{rejected})}
}

// VanillaT transfers surplus from every elected alt down to a quota of q
// (TToAll with s = (score-q)/score, or s=0 if score is zero) and the full
// weight of any rejected alt (s=1), consuming each as it is processed.
func (p Profile) VanillaT(q *big.Rat, r Result, tracer Tracer) Profile {
	cur := p
	for _, x := range r.Elected {
		score := cur.Score(x)
		var s *big.Rat
		if score.Sign() == 0 {
			s = big.NewRat(0, 1)
		} else {
			s = new(big.Rat).Sub(score, q)
			s.Quo(s, score)
		}
		cur = cur.TToAll(x, s, tracer)
		cur = cur.Consume(x, tracer)
	}
	for _, x := range r.Rejected {
		cur = cur.TToAll(x, big.NewRat(1, 1), tracer)
		cur = cur.Consume(x, tracer)
	}
	return cur
}

// VanillaStv runs elect_or_reject/transfer rounds until seats are filled or
// no alternatives remain, returning the elected set in the order rounds
// elected them. When the remaining alternatives already fit the seat
// count, they are all elected unconditionally, without a score check.
func VanillaStv(p Profile, seats int, q *big.Rat, tracer Tracer) Result {
	if len(p.Alts) <= seats {
		for _, a := range p.Alts {
			tracer.Elect(a, p)
		}
		return Result{Elected: append([]AltKey{}, p.Alts...)}
	}

	r := p.ElectOrReject(q, tracer)
	next := p.VanillaT(q, r, tracer)

	elected := append([]AltKey{}, r.Elected...)
	remainingSeats := seats - len(r.Elected)
	if remainingSeats <= 0 || len(next.Alts) == 0 {
		return Result{Elected: elected, Deferred: next.Alts}
	}
	sub := VanillaStv(next, remainingSeats, q, tracer)
	return Result{Elected: append(elected, sub.Elected...), Deferred: sub.Deferred}
}

// droopQuota computes floor(weightSum/2)+1, the standard droop quota for a
// single seat.
func droopQuota(weightSum *big.Rat) *big.Rat {
	half := new(big.Rat).Quo(weightSum, big.NewRat(2, 1))
	floor := new(big.Int).Quo(half.Num(), half.Denom())
	floor.Add(floor, big.NewInt(1))
	return new(big.Rat).SetInt(floor)
}

// VanillaStv1 runs a single-seat election with a droop quota, returning the
// winner. It reports false only when alts is empty; otherwise the
// recursion always narrows to exactly one elected alternative.
func VanillaStv1(p Profile, tracer Tracer) (AltKey, bool) {
	if len(p.Alts) == 0 {
		return AltKey{}, false
	}
	q := droopQuota(p.WeightSum())
	r := VanillaStv(p, 1, q, tracer)
	if len(r.Elected) == 0 {
		return AltKey{}, false
	}
	winner := r.Elected[0]
	if len(r.Elected) > 1 {
		tracer.TieBreak(r.Elected, winner)
	}
	return winner, true
}
