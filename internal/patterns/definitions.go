package patterns

import (
	"fmt"

	"github.com/discochess/coach/internal/analysis"
	"github.com/discochess/coach/internal/board"
	"github.com/discochess/coach/internal/repository"
)

// Thresholds of the pattern predicates.
const (
	TimeTroubleThresholdMS = 30000
	OpeningPlyLimit        = 12
	ImpulsiveMoveMS        = 1000
	MaxExamples            = 3
)

// Pattern keys.
const (
	KeyTimeTroubleBlunder = "time_trouble_blunder"
	KeyOpeningSlip        = "opening_slip"
	KeyGreedyCapture      = "greedy_capture"
	KeyImpulsiveBlunder   = "impulsive_blunder"
	KeyMissedTactic       = "missed_tactic"
)

// Definition describes an error archetype.
type Definition struct {
	Key          string
	Title        string
	Description  string
	BaseSeverity float64
}

// Definitions lists every archetype in evaluation order.
var Definitions = []Definition{
	{
		Key:          KeyTimeTroubleBlunder,
		Title:        "Time trouble blunders",
		Description:  "Mistakes and blunders played under low remaining clock.",
		BaseSeverity: 0.6,
	},
	{
		Key:          KeyOpeningSlip,
		Title:        "Opening slips",
		Description:  "Early-phase mistakes before the opening settles.",
		BaseSeverity: 0.4,
	},
	{
		Key:          KeyGreedyCapture,
		Title:        "Greedy captures",
		Description:  "Captures that led to large evaluation drops.",
		BaseSeverity: 0.5,
	},
	{
		Key:          KeyImpulsiveBlunder,
		Title:        "Impulsive mistakes",
		Description:  "Very fast moves that turned into mistakes or blunders.",
		BaseSeverity: 0.45,
	},
	{
		Key:          KeyMissedTactic,
		Title:        "Missed tactics",
		Description:  "Missed tactical shots like captures or checks recommended by the engine.",
		BaseSeverity: 0.55,
	},
}

// Match is one predicate hit with its example note.
type Match struct {
	Key  string
	Note string
}

// Matches evaluates every predicate against an analyzed move. A move can
// match several archetypes at once.
func Matches(row repository.MoveRow) []Match {
	if row.Analysis == nil {
		return nil
	}
	m := &row.Move
	cls := analysis.Classification(row.Analysis.Classification)

	var out []Match
	if cls.AtLeast(analysis.Mistake) {
		if m.ClockRemainingMS != nil && *m.ClockRemainingMS <= TimeTroubleThresholdMS {
			out = append(out, Match{KeyTimeTroubleBlunder, fmt.Sprintf("Clock %d ms", *m.ClockRemainingMS)})
		}
		if m.Ply <= OpeningPlyLimit {
			out = append(out, Match{KeyOpeningSlip, "Early phase mistake"})
		}
		if m.CapturePiece != "" {
			out = append(out, Match{KeyGreedyCapture, "Capture led to evaluation loss"})
		}
		if m.TimeSpentMS != nil && *m.TimeSpentMS <= ImpulsiveMoveMS {
			out = append(out, Match{KeyImpulsiveBlunder, fmt.Sprintf("Spent %d ms", *m.TimeSpentMS)})
		}
	}
	if cls.AtLeast(analysis.Inaccuracy) && missedTactic(m.FENBefore, m.UCI, row.Analysis.BestMoveUCI) {
		out = append(out, Match{KeyMissedTactic, "Best move was a tactical shot"})
	}
	return out
}

// missedTactic reports whether best was a capture or check and played was
// neither. Both moves must be legal in the position.
func missedTactic(fen, played, best string) bool {
	if _, _, err := board.LegalMove(fen, played); err != nil {
		return false
	}
	return board.IsTactical(fen, best) && !board.IsTactical(fen, played)
}

// Severity blends the base rate with loss magnitude and frequency, capped at 1.
func Severity(def Definition, occurrences int, avgCPL *float64) float64 {
	var cpl float64
	if avgCPL != nil {
		cpl = *avgCPL
	}
	cplPart := min(cpl/400, 0.3)
	freqPart := min(float64(occurrences)/10, 0.3)
	return min(1.0, def.BaseSeverity+cplPart+freqPart)
}
