package insights

import (
	"gonum.org/v1/gonum/stat"

	"github.com/discochess/coach/internal/repository"
)

// Game outcomes from the player's side.
const (
	OutcomeWin     = "win"
	OutcomeDraw    = "draw"
	OutcomeLoss    = "loss"
	OutcomeUnknown = "unknown"
)

var (
	winResults  = set("win")
	drawResults = set("draw", "stalemate", "repetition", "agreed", "insufficient", "50move", "timevsinsufficient")
	lossResults = set("checkmated", "resigned", "timeout", "abandoned", "lose", "time")
)

func set(values ...string) map[string]bool {
	m := make(map[string]bool, len(values))
	for _, v := range values {
		m[v] = true
	}
	return m
}

// Outcome maps a raw per-side result such as "resigned" or "agreed" to an
// outcome.
func Outcome(result string) string {
	switch {
	case winResults[result]:
		return OutcomeWin
	case lossResults[result]:
		return OutcomeLoss
	case drawResults[result]:
		return OutcomeDraw
	}
	return OutcomeUnknown
}

// GameOutcome returns the outcome of game for username.
func GameOutcome(game *repository.Game, username string) string {
	return Outcome(game.PlayerResult(username))
}

// mean returns the arithmetic mean, or nil for no values.
func mean(xs []float64) *float64 {
	if len(xs) == 0 {
		return nil
	}
	m := stat.Mean(xs, nil)
	return &m
}

// ratio returns num/den, or 0 when den is 0.
func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
