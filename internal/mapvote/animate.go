package mapvote

import (
	"fmt"
	"math/big"
	"strings"
)

const barWidth = 20

// Frame is one step of the round-end animation: the bar-chart lines at one
// recorded trace action.
type Frame struct {
	Lines []string
}

// barLen scales score/total to a bar of at most barWidth glyphs.
func barLen(score, total *big.Rat) int {
	if total.Sign() == 0 {
		return 0
	}
	frac := new(big.Rat).Quo(score, total)
	n := new(big.Rat).Mul(frac, big.NewRat(barWidth, 1))
	f, _ := n.Float64()
	return int(f + 0.5)
}

// renderBars draws one row per alt still present in profile: "=" glyphs up
// to its current score, with any growth since prevScores appended as "+".
func renderBars(profile Profile, prevScores map[AltKey]*big.Rat, names map[AltKey]string) ([]string, map[AltKey]*big.Rat) {
	total := profile.WeightSum()
	scores := make(map[AltKey]*big.Rat, len(profile.Alts))
	lines := make([]string, 0, len(profile.Alts))
	for _, a := range profile.Alts {
		s := profile.Score(a)
		scores[a] = s
		filled := barLen(s, total)
		prevFilled := 0
		if prev, ok := prevScores[a]; ok {
			prevFilled = barLen(prev, total)
		}
		added := filled - prevFilled
		if added < 0 {
			added = 0
		}
		base := filled - added
		if base < 0 {
			base = 0
		}
		bar := strings.Repeat("=", base) + strings.Repeat("+", added)
		lines = append(lines, fmt.Sprintf("%-16s %s", names[a], bar))
	}
	return lines, scores
}

// destinationOf is the first of a player's original preferences still
// present in profile: the alt their weight currently counts toward, once
// eliminated/elected-and-consumed alts are accounted for.
func destinationOf(prefs []AltKey, profile Profile) (AltKey, bool) {
	alive := make(map[AltKey]bool, len(profile.Alts))
	for _, a := range profile.Alts {
		alive[a] = true
	}
	for _, p := range prefs {
		if alive[p] {
			return p, true
		}
	}
	return AltKey{}, false
}

// RenderFrames turns a recorded STV trace into a bar-chart animation for
// one player's ballot, marking the row their vote weight currently counts
// toward in each frame.
func RenderFrames(tracer *RecordingTracer, ballot []AltKey, names map[AltKey]string) []Frame {
	var frames []Frame
	prev := map[AltKey]*big.Rat{}
	for _, ev := range tracer.Events {
		switch ev.Kind {
		case ActionElementaryTransfer, ActionConsume, ActionElect, ActionReject:
			lines, scores := renderBars(ev.After, prev, names)
			prev = scores
			if dest, ok := destinationOf(ballot, ev.After); ok {
				for i, a := range ev.After.Alts {
					if a == dest && i < len(lines) {
						lines[i] += "  <- your vote"
					}
				}
			}
			frames = append(frames, Frame{Lines: lines})
		}
	}
	return frames
}

// RenderResult renders a single final-result message, used in place of the
// full animation when animation is disabled for a player.
func RenderResult(winnerName string) string {
	return fmt.Sprintf("vote result: %s wins", winnerName)
}
