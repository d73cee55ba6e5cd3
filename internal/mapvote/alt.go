// Package mapvote is the Map Vote Engine (MV): the STV tally core plus the
// conversational layer (option selection, nominations, ballot parsing,
// periodic announcements, round-end tally and winner commitment via MM).
package mapvote

import (
	"rconcore/internal/mapmanager"
	"rconcore/internal/rcon"
)

// AltKey is the comparable identity of one votable alternative: a map, its
// mode, and an optional vehicles override. Two alternatives for the same
// map with differing vehicle overrides are distinct alternatives.
type AltKey struct {
	Map      rcon.Map
	Mode     string // wire name
	Vehicles int8   // -1 unset, 0 false, 1 true
}

// ShortName is the basis for matcher generation: alternatives are matched
// by their map's short name, irrespective of mode or vehicles override.
func (a AltKey) ShortName() string { return a.Map.ShortName() }

// DisambiguatedName is ShortName with a vehicle tag appended, the display
// and token-matching name used once a short-name collision with another
// alternative forces its matcher's minlen to 0.
func (a AltKey) DisambiguatedName() string {
	switch a.Vehicles {
	case 1:
		return a.ShortName() + "-veh"
	case 0:
		return a.ShortName() + "-inf"
	default:
		return a.ShortName()
	}
}

// KeyOf derives the comparable AltKey for a mapmanager.MapInPool.
func KeyOf(m mapmanager.MapInPool) AltKey {
	v := int8(-1)
	if m.Vehicles != nil {
		if *m.Vehicles {
			v = 1
		} else {
			v = 0
		}
	}
	return AltKey{Map: m.Map, Mode: m.Mode.WireName(), Vehicles: v}
}
