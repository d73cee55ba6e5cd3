// Package mapmanager is the Map Manager (MM): tracks server population,
// selects an active population tier and its map pool, and owns the
// authoritative map-list rewrite and map-switch sequencing.
package mapmanager

import "rconcore/internal/rcon"

// MapInPool is one (map, mode, optional vehicles override) triple.
type MapInPool struct {
	Map      rcon.Map
	Mode     rcon.GameMode
	Vehicles *bool // nil means "use the pool's default"
}

type mapModeKey struct {
	m    rcon.Map
	mode string
}

func (e MapInPool) key() mapModeKey { return mapModeKey{e.Map, e.Mode.WireName()} }

// MapPool is an ordered multiset of MapInPool. Equality for diffing purposes
// operates on (map, mode) only; the vehicles field is carried but not part
// of identity.
type MapPool []MapInPool

func (p MapPool) keySet() map[mapModeKey]int {
	set := make(map[mapModeKey]int, len(p))
	for _, e := range p {
		set[e.key()]++
	}
	return set
}

// Additions returns the entries present in p2 but not p1, by (map, mode)
// identity. Additions(p1, p2) union the (map, mode)-intersection of p1 and
// p2 reconstructs p2.
func Additions(p1, p2 MapPool) MapPool {
	in1 := p1.keySet()
	var out MapPool
	for _, e := range p2 {
		k := e.key()
		if in1[k] > 0 {
			in1[k]--
			continue
		}
		out = append(out, e)
	}
	return out
}

// Removals returns the entries present in p1 but not p2 — equivalently
// Additions(p2, p1).
func Removals(p1, p2 MapPool) MapPool {
	return Additions(p2, p1)
}

// Equal reports whether p1 and p2 have the same (map, mode) multiset,
// ignoring the vehicles field and entry order.
func Equal(p1, p2 MapPool) bool {
	if len(p1) != len(p2) {
		return false
	}
	return len(Additions(p1, p2)) == 0 && len(Additions(p2, p1)) == 0
}
