package mapmanager

import (
	"errors"
	"fmt"
)

// ErrPopState0Missing is returned from config validation when no PopState
// has a min-players threshold of zero — the invariant spec.md §3 requires so
// every population size resolves to some state.
var ErrPopState0Missing = errors.New("mapmanager: no pop state with min_players=0")

// PopState is a named population tier with a minimum-player threshold and
// the map pool active at that tier.
type PopState struct {
	Name       string
	MinPlayers int
	Pool       MapPool
}

// ValidatePopStates enforces the "exactly one PopState with threshold 0"
// invariant, rejecting the configuration otherwise.
func ValidatePopStates(states []PopState) error {
	count := 0
	for _, s := range states {
		if s.MinPlayers == 0 {
			count++
		}
	}
	if count == 0 {
		return fmt.Errorf("mapmanager: validate pop states: %w", ErrPopState0Missing)
	}
	if count > 1 {
		return fmt.Errorf("mapmanager: validate pop states: %d states declare min_players=0, want exactly 1: %w", count, ErrPopState0Missing)
	}
	return nil
}

// DeterminePopState picks, for the given population, the PopState with the
// largest MinPlayers not exceeding pop. ValidatePopStates guarantees one
// with MinPlayers==0 always exists as a fallback.
func DeterminePopState(states []PopState, pop int) PopState {
	var best PopState
	found := false
	for _, s := range states {
		if s.MinPlayers > pop {
			continue
		}
		if !found || s.MinPlayers > best.MinPlayers {
			best = s
			found = true
		}
	}
	return best
}
