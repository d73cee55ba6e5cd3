package mapvote

import (
	"log/slog"
	"sort"
	"strconv"
	"strings"
)

// AltMatcher is the matcher assigned to one alternative: a stable numeric
// id and the minimum prefix length of its map's short name that still
// uniquely identifies it.
type AltMatcher struct {
	Alt           AltKey
	Number        int
	MinLen        int
	Disambiguated bool // true when minlen was forced to 0 by a short-name collision
}

// MatcherTable is the full set of tokens a chat message can be matched
// against, alongside the per-alt matcher metadata.
type MatcherTable struct {
	ByAlt   map[AltKey]AltMatcher
	Inverse map[string]AltKey // token -> alt
}

// assignNumbers reuses a number from prev for any alt that already had
// one, then allocates the least unused positive integer, in alt order, to
// every newly-seen alt. A fresh election (prev == nil) gets 1, 2, 3, ...
func assignNumbers(alts []AltKey, prev map[AltKey]AltMatcher) map[AltKey]int {
	numbers := make(map[AltKey]int, len(alts))
	used := make(map[int]bool, len(alts))
	var unassigned []AltKey
	for _, a := range alts {
		if m, ok := prev[a]; ok {
			numbers[a] = m.Number
			used[m.Number] = true
		} else {
			unassigned = append(unassigned, a)
		}
	}
	next := 1
	for _, a := range unassigned {
		for used[next] {
			next++
		}
		numbers[a] = next
		used[next] = true
	}
	return numbers
}

// ComputeMatchers derives the matcher table for the current set of
// alternatives. prev carries numbers forward across option-set changes;
// pass nil for a freshly set-up election. All matching is case-insensitive:
// tokens, short names, reserved, and hiddenReserved are folded to lower
// case before comparison. reserved feeds the prefix trie (words that must
// never be claimed by a prefix); hiddenReserved are additional exact
// tokens excluded from the inverse table outright (e.g. "re" for
// "reroll"), never surfaced even as a collision warning target.
func ComputeMatchers(alts []AltKey, prev map[AltKey]AltMatcher, reserved []string, hiddenReserved []string, minLenFloor int, logger *slog.Logger) MatcherTable {
	if logger == nil {
		logger = slog.Default()
	}
	numbers := assignNumbers(alts, prev)

	byShort := make(map[string][]AltKey)
	for _, a := range alts {
		name := strings.ToLower(a.ShortName())
		byShort[name] = append(byShort[name], a)
	}

	forced0 := make(map[AltKey]bool)
	var uniqueNames []string
	for name, owners := range byShort {
		if len(owners) > 1 {
			for _, a := range owners {
				forced0[a] = true
			}
			continue
		}
		uniqueNames = append(uniqueNames, name)
	}
	sort.Strings(uniqueNames)

	lowerReserved := make([]string, len(reserved))
	for i, r := range reserved {
		lowerReserved[i] = strings.ToLower(r)
	}
	prefixLens := ShortestUniquePrefixes(uniqueNames, lowerReserved, logger)

	byAlt := make(map[AltKey]AltMatcher, len(alts))
	for _, a := range alts {
		m := AltMatcher{Alt: a, Number: numbers[a]}
		if forced0[a] {
			m.MinLen = 0
			m.Disambiguated = true
		} else {
			l := prefixLens[strings.ToLower(a.ShortName())]
			if l < minLenFloor {
				l = minLenFloor
			}
			m.MinLen = l
		}
		byAlt[a] = m
	}

	hidden := make(map[string]bool, len(hiddenReserved))
	for _, h := range hiddenReserved {
		hidden[strings.ToLower(h)] = true
	}
	inverse := make(map[string]AltKey)
	addToken := func(token string, a AltKey) {
		if token == "" || hidden[token] {
			return
		}
		if existing, ok := inverse[token]; ok && existing != a {
			logger.Warn("matcher token claimed by more than one alternative", "token", token)
			return
		}
		inverse[token] = a
	}
	for _, a := range alts {
		m := byAlt[a]
		addToken(strconv.Itoa(m.Number), a)
		name := strings.ToLower(a.ShortName())
		if m.Disambiguated {
			name = strings.ToLower(a.DisambiguatedName())
		}
		minLen := m.MinLen
		if minLen < 1 {
			minLen = 1
		}
		for l := minLen; l <= len(name); l++ {
			addToken(name[:l], a)
		}
	}

	return MatcherTable{ByAlt: byAlt, Inverse: inverse}
}

// Match looks up token (already normalized: trimmed and lower-cased by the
// caller) in the table, returning the alt it resolves to.
func (t MatcherTable) Match(token string) (AltKey, bool) {
	a, ok := t.Inverse[token]
	return a, ok
}
