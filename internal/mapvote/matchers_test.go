package mapvote

import "testing"

func TestAssignNumbersFreshElectionStartsAtOne(t *testing.T) {
	numbers := assignNumbers([]AltKey{wolf, fox, eagle}, nil)
	seen := map[int]bool{}
	for _, a := range []AltKey{wolf, fox, eagle} {
		n := numbers[a]
		if n < 1 {
			t.Fatalf("number for %+v = %d, want >= 1", a, n)
		}
		if seen[n] {
			t.Fatalf("duplicate number %d", n)
		}
		seen[n] = true
	}
}

func TestAssignNumbersReusesPreviousAndFillsGap(t *testing.T) {
	prev := map[AltKey]AltMatcher{
		wolf: {Number: 1},
		fox:  {Number: 3},
	}
	numbers := assignNumbers([]AltKey{wolf, fox, eagle}, prev)
	if numbers[wolf] != 1 || numbers[fox] != 3 {
		t.Fatalf("surviving alts must keep their numbers, got %+v", numbers)
	}
	if numbers[eagle] != 2 {
		t.Fatalf("new alt must take the least unused number 2, got %d", numbers[eagle])
	}
}

func TestComputeMatchersNumericAndPrefixTokensResolve(t *testing.T) {
	alts := []AltKey{wolf, fox, eagle} // short names differ at their first letter
	table := ComputeMatchers(alts, nil, nil, nil, 1, nil)

	for _, a := range alts {
		m := table.ByAlt[a]
		if got, ok := table.Match(itoaMatchers(m.Number)); !ok || got != a {
			t.Fatalf("numeric token %d must resolve to %+v, got %+v ok=%v", m.Number, a, got, ok)
		}
		prefix := a.ShortName()[:m.MinLen]
		if got, ok := table.Match(prefix); !ok || got != a {
			t.Fatalf("prefix token %q must resolve to %+v, got %+v ok=%v", prefix, a, got, ok)
		}
	}
}

func TestComputeMatchersDuplicateShortNameForcesMinLenZero(t *testing.T) {
	// Two alts sharing a short name (same map, different vehicles override)
	// must both be forced to minlen 0 and marked disambiguated.
	a1 := wolf
	a2 := AltKey{Map: wolf.Map, Mode: wolf.Mode, Vehicles: 1}
	table := ComputeMatchers([]AltKey{a1, a2, fox}, nil, nil, nil, 1, nil)
	if !table.ByAlt[a1].Disambiguated || table.ByAlt[a1].MinLen != 0 {
		t.Fatalf("colliding alt a1 must be forced to minlen 0, got %+v", table.ByAlt[a1])
	}
	if !table.ByAlt[a2].Disambiguated || table.ByAlt[a2].MinLen != 0 {
		t.Fatalf("colliding alt a2 must be forced to minlen 0, got %+v", table.ByAlt[a2])
	}
}

func TestComputeMatchersDuplicateShortNameTokensResolveByVehicleTag(t *testing.T) {
	a1 := wolf
	a2 := AltKey{Map: wolf.Map, Mode: wolf.Mode, Vehicles: 1}
	table := ComputeMatchers([]AltKey{a1, a2, fox}, nil, nil, nil, 1, nil)

	if got, ok := table.Match(a1.DisambiguatedName()); !ok || got != a1 {
		t.Fatalf("disambiguated token %q must resolve to a1, got %+v ok=%v", a1.DisambiguatedName(), got, ok)
	}
	if got, ok := table.Match(a2.DisambiguatedName()); !ok || got != a2 {
		t.Fatalf("disambiguated token %q must resolve to a2, got %+v ok=%v", a2.DisambiguatedName(), got, ok)
	}
	if a1.DisambiguatedName() == a2.DisambiguatedName() {
		t.Fatalf("vehicle tags must differ, both got %q", a1.DisambiguatedName())
	}
}

func TestComputeMatchersHiddenReservedRemovesToken(t *testing.T) {
	table := ComputeMatchers([]AltKey{wolf}, nil, nil, []string{"1"}, 1, nil)
	if _, ok := table.Match("1"); ok {
		t.Fatalf("hidden-reserved token %q must never resolve", "1")
	}
}

func itoaMatchers(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
