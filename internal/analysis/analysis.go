// Package analysis judges the quality of a single move from the evaluations
// before and after it. Everything here is pure.
package analysis

import (
	"strings"

	"github.com/discochess/coach/internal/engine"
)

// MateScoreCP is the centipawn magnitude a forced mate is converted to.
const MateScoreCP = engine.MateScoreCP

// Classification thresholds in centipawns. Ties resolve to the milder band.
const (
	BookPlyLimit       = 10
	BookCPLThreshold   = 15
	BestCPLThreshold   = 20
	GoodCPLThreshold   = 50
	InaccuracyCPLLimit = 100
	MistakeCPLLimit    = 300
)

// Classification is the verdict on a move.
type Classification string

const (
	Book       Classification = "book"
	Best       Classification = "best"
	Good       Classification = "good"
	Inaccuracy Classification = "inaccuracy"
	Mistake    Classification = "mistake"
	Blunder    Classification = "blunder"
)

// Severity orders classifications from 0 (book, best) to 4 (blunder).
// Unknown values rank as good.
func (c Classification) Severity() int {
	switch c {
	case Book, Best:
		return 0
	case Inaccuracy:
		return 2
	case Mistake:
		return 3
	case Blunder:
		return 4
	default:
		return 1
	}
}

// AtLeast reports whether c is as severe as other or worse.
func (c Classification) AtLeast(other Classification) bool {
	return c.Severity() >= other.Severity()
}

// Score is a White-relative evaluation. At most one field is set.
type Score struct {
	CP   *int
	Mate *int
}

// ToCentipawns folds a mate score into a signed MateScoreCP. It returns nil
// when neither value is known.
func ToCentipawns(cp, mate *int) *int {
	if mate != nil {
		v := MateScoreCP
		if *mate <= 0 {
			v = -MateScoreCP
		}
		return &v
	}
	if cp == nil {
		return nil
	}
	v := *cp
	return &v
}

// CPL returns the centipawn loss of a move for the mover, floored at zero.
// It is nil when either evaluation is unavailable.
func CPL(before, after Score, moverIsWhite bool) *int {
	b := ToCentipawns(before.CP, before.Mate)
	a := ToCentipawns(after.CP, after.Mate)
	if b == nil || a == nil {
		return nil
	}
	delta := *b - *a
	if !moverIsWhite {
		delta = -delta
	}
	loss := max(delta, 0)
	return &loss
}

// Classify maps a centipawn loss at a ply to a classification. A nil loss is
// classified as good.
func Classify(cpl *int, ply int) Classification {
	if cpl == nil {
		return Good
	}
	c := *cpl
	switch {
	case ply <= BookPlyLimit && c <= BookCPLThreshold:
		return Book
	case c <= BestCPLThreshold:
		return Best
	case c <= GoodCPLThreshold:
		return Good
	case c <= InaccuracyCPLLimit:
		return Inaccuracy
	case c <= MistakeCPLLimit:
		return Mistake
	default:
		return Blunder
	}
}

// BestMove returns the first move of a principal variation, or "".
func BestMove(pv string) string {
	fields := strings.Fields(pv)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// Move tags derived from mate scores.
const (
	TagMateMissed  = "mate_missed"
	TagMateAllowed = "mate_allowed"
)

// Tags annotates a move with mate-related findings. A delivered checkmate
// counts as keeping the mate.
func Tags(before, after Score, moverIsWhite bool) []string {
	sign := 1
	if !moverIsWhite {
		sign = -1
	}
	forMover := func(s Score) int {
		v := ToCentipawns(s.CP, s.Mate)
		if v == nil {
			return 0
		}
		return *v * sign
	}
	moverMates := func(s Score) bool { return forMover(s) >= MateScoreCP }
	opponentMates := func(s Score) bool { return forMover(s) <= -MateScoreCP }

	tags := []string{}
	if moverMates(before) && !moverMates(after) {
		tags = append(tags, TagMateMissed)
	}
	if opponentMates(after) && !opponentMates(before) {
		tags = append(tags, TagMateAllowed)
	}
	return tags
}
