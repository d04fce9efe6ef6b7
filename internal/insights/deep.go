package insights

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/discochess/coach/internal/board"
	"github.com/discochess/coach/internal/fen"
	"github.com/discochess/coach/internal/repository"
)

// Window and threshold constants of the deep payload.
const (
	DefaultGameLimit = 10
	MaxGameLimit     = 25

	MaxCriticalMoments = 5
	maxOpeningGames    = 3
	maxCommonMistakes  = 3
	maxFastestBlunders = 5

	OpeningMaxPly    = 16
	MiddlegameMaxPly = 50

	FastMoveMS    = 3000
	SlowMoveMS    = 30000
	TimeTroubleMS = 30000

	ExcellentCPL  = 5
	InaccuracyCPL = 50
	MistakeCPL    = 100
	BlunderCPL    = 200
)

// Phase names.
const (
	PhaseOpening    = "opening"
	PhaseMiddlegame = "middlegame"
	PhaseEndgame    = "endgame"
)

// PhaseOf returns the phase a ply belongs to.
func PhaseOf(ply int) string {
	switch {
	case ply <= OpeningMaxPly:
		return PhaseOpening
	case ply <= MiddlegameMaxPly:
		return PhaseMiddlegame
	}
	return PhaseEndgame
}

// PhaseStats summarizes the player's moves within one phase of one game.
type PhaseStats struct {
	Moves            int      `json:"moves"`
	AvgCPL           *float64 `json:"avg_cpl"`
	Blunders         int      `json:"blunders"`
	Mistakes         int      `json:"mistakes"`
	Inaccuracies     int      `json:"inaccuracies"`
	ExcellentMoves   int      `json:"excellent_moves"`
	AvgTimeSpentMS   *float64 `json:"avg_time_spent_ms"`
	TimeTroubleMoves int      `json:"time_trouble_moves"`

	cpls  []float64
	times []float64
}

// Phases holds the per-phase breakdown of a game.
type Phases struct {
	Opening    PhaseStats `json:"opening"`
	Middlegame PhaseStats `json:"middlegame"`
	Endgame    PhaseStats `json:"endgame"`
}

// Get returns the stats of the named phase.
func (p *Phases) Get(phase string) *PhaseStats {
	switch phase {
	case PhaseOpening:
		return &p.Opening
	case PhaseMiddlegame:
		return &p.Middlegame
	}
	return &p.Endgame
}

// CriticalMoment is a player move that lost at least InaccuracyCPL.
type CriticalMoment struct {
	MoveID           uint   `json:"move_id"`
	GameID           uint   `json:"game_id"`
	Ply              int    `json:"ply"`
	MoveSAN          string `json:"move_san"`
	MoveUCI          string `json:"move_uci"`
	FENBefore        string `json:"fen_before"`
	FENHash          string `json:"fen_hash"`
	Classification   string `json:"classification"`
	CPL              int    `json:"cpl"`
	BestMoveUCI      string `json:"best_move_uci"`
	EvalBeforeCP     *int   `json:"eval_before_cp"`
	EvalBeforeMate   *int   `json:"eval_before_mate"`
	EvalAfterCP      *int   `json:"eval_after_cp"`
	EvalAfterMate    *int   `json:"eval_after_mate"`
	ClockRemainingMS *int   `json:"clock_remaining_ms"`
	TimeSpentMS      *int   `json:"time_spent_ms"`
	Phase            string `json:"phase"`
	IsTactical       bool   `json:"is_tactical"`
}

// GameDeepAnalysis is the per-game breakdown, restricted to the player's moves.
type GameDeepAnalysis struct {
	GameID               uint             `json:"game_id"`
	Result               string           `json:"result"`
	PlayerColor          string           `json:"player_color"`
	OpponentUsername     *string          `json:"opponent_username"`
	OpponentRating       *int             `json:"opponent_rating"`
	Opening              *string          `json:"opening"`
	TimeControl          *string          `json:"time_control"`
	PlayedAt             *time.Time       `json:"played_at"`
	TotalMoves           int              `json:"total_moves"`
	AvgCPL               *float64         `json:"avg_cpl"`
	Phases               Phases           `json:"phases"`
	CriticalMoments      []CriticalMoment `json:"critical_moments"`
	TimeTroubleEnteredAt *int             `json:"time_trouble_entered_at"`
	Blunders             int              `json:"blunders"`
	Mistakes             int              `json:"mistakes"`
	Inaccuracies         int              `json:"inaccuracies"`
	ExcellentMoves       int              `json:"excellent_moves"`

	times []float64
}

// OpeningDeepAnalysis rolls up the games played in one opening.
type OpeningDeepAnalysis struct {
	OpeningName        string           `json:"opening_name"`
	ECOURL             *string          `json:"eco_url"`
	Games              int              `json:"games"`
	Wins               int              `json:"wins"`
	Losses             int              `json:"losses"`
	Draws              int              `json:"draws"`
	WinRate            float64          `json:"win_rate"`
	AvgCPL             *float64         `json:"avg_cpl"`
	AvgCPLOpeningPhase *float64         `json:"avg_cpl_opening_phase"`
	CommonMistakes     []CriticalMoment `json:"common_mistakes"`
	BestGames          []uint           `json:"best_games"`
	WorstGames         []uint           `json:"worst_games"`
}

// TimeManagement correlates clock usage with move quality.
type TimeManagement struct {
	AvgTimePerMoveMS          *float64         `json:"avg_time_per_move_ms"`
	OpeningAvgTimeMS          *float64         `json:"opening_avg_time_ms"`
	MiddlegameAvgTimeMS       *float64         `json:"middlegame_avg_time_ms"`
	EndgameAvgTimeMS          *float64         `json:"endgame_avg_time_ms"`
	GamesWithTimeTrouble      int              `json:"games_with_time_trouble"`
	TotalGames                int              `json:"total_games"`
	TimeTroubleRate           float64          `json:"time_trouble_rate"`
	AvgPlyEnteringTimeTrouble *float64         `json:"avg_ply_entering_time_trouble"`
	BlundersInTimeTrouble     int              `json:"blunders_in_time_trouble"`
	BlundersTotal             int              `json:"blunders_total"`
	TimeTroubleBlunderRate    float64          `json:"time_trouble_blunder_rate"`
	AvgCPLFastMoves           *float64         `json:"avg_cpl_fast_moves"`
	AvgCPLNormalMoves         *float64         `json:"avg_cpl_normal_moves"`
	AvgCPLSlowMoves           *float64         `json:"avg_cpl_slow_moves"`
	FastestBlunders           []CriticalMoment `json:"fastest_blunders"`
}

// PhaseTrend aggregates one phase across the window.
type PhaseTrend struct {
	AvgCPL         *float64 `json:"avg_cpl"`
	Blunders       int      `json:"blunders"`
	Mistakes       int      `json:"mistakes"`
	Excellent      int      `json:"excellent"`
	Moves          int      `json:"moves"`
	ErrorRate      float64  `json:"error_rate"`
	ExcellenceRate float64  `json:"excellence_rate"`
}

// PhaseTrends holds the trend of each phase.
type PhaseTrends struct {
	Opening    PhaseTrend `json:"opening"`
	Middlegame PhaseTrend `json:"middlegame"`
	Endgame    PhaseTrend `json:"endgame"`
}

// Signal types.
const (
	SignalOverallAccuracy   = "overall_accuracy"
	SignalTimeManagement    = "time_management"
	SignalBlunderFrequency  = "blunder_frequency"
	SignalOpeningWeakness   = "opening_weakness"
	SignalTimeTroubleLosses = "time_trouble_losses"
)

// Signal is an improvement or regression detected across the window.
type Signal struct {
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Magnitude   *float64 `json:"magnitude,omitempty"`
	Severity    string   `json:"severity,omitempty"`
	GameIDs     []uint   `json:"game_ids,omitempty"`
}

// OverallStats summarizes the window.
type OverallStats struct {
	Games          int      `json:"games"`
	Wins           int      `json:"wins"`
	Losses         int      `json:"losses"`
	Draws          int      `json:"draws"`
	WinRate        float64  `json:"win_rate"`
	AvgCPL         *float64 `json:"avg_cpl"`
	TotalBlunders  int      `json:"total_blunders"`
	TotalMistakes  int      `json:"total_mistakes"`
	TotalExcellent int      `json:"total_excellent"`
}

// DeepInsights is the payload handed to report generators. It carries no
// field beyond those declared here.
type DeepInsights struct {
	PlayerUsername     string                `json:"player_username"`
	AnalysisVersion    *string               `json:"analysis_version"`
	DateRangeStart     *time.Time            `json:"date_range_start"`
	DateRangeEnd       *time.Time            `json:"date_range_end"`
	GamesAnalyzed      int                   `json:"games_analyzed"`
	OverallStats       OverallStats          `json:"overall_stats"`
	GameAnalyses       []GameDeepAnalysis    `json:"game_analyses"`
	OpeningAnalyses    []OpeningDeepAnalysis `json:"opening_analyses"`
	TimeManagement     TimeManagement        `json:"time_management"`
	PhaseTrends        PhaseTrends           `json:"phase_trends"`
	ImprovementSignals []Signal              `json:"improvement_signals"`
	RegressionSignals  []Signal              `json:"regression_signals"`
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// analyzeGame builds the breakdown of one game from the player's analyzed
// rows, in ply order. It returns nil when rows is empty.
func analyzeGame(game *repository.Game, username string, rows []repository.MoveRow) *GameDeepAnalysis {
	if len(rows) == 0 {
		return nil
	}
	opponent, rating := game.Opponent(username)
	g := &GameDeepAnalysis{
		GameID:           game.ID,
		Result:           GameOutcome(game, username),
		PlayerColor:      game.PlayerColor(username),
		OpponentUsername: optional(opponent),
		OpponentRating:   rating,
		Opening:          optional(game.ECOURL),
		TimeControl:      optional(game.TimeControl),
		PlayedAt:         game.EndTime,
		TotalMoves:       len(rows),
		CriticalMoments:  []CriticalMoment{},
	}

	var cpls []float64
	for _, row := range rows {
		mv, a := &row.Move, row.Analysis
		phase := PhaseOf(mv.Ply)
		ps := g.Phases.Get(phase)
		ps.Moves++

		if a.CPL != nil {
			cpl := *a.CPL
			cpls = append(cpls, float64(cpl))
			ps.cpls = append(ps.cpls, float64(cpl))
			switch {
			case cpl >= BlunderCPL:
				ps.Blunders++
				g.Blunders++
			case cpl >= MistakeCPL:
				ps.Mistakes++
				g.Mistakes++
			case cpl >= InaccuracyCPL:
				ps.Inaccuracies++
				g.Inaccuracies++
			case cpl <= ExcellentCPL:
				ps.ExcellentMoves++
				g.ExcellentMoves++
			}
		}

		if mv.TimeSpentMS != nil {
			ps.times = append(ps.times, float64(*mv.TimeSpentMS))
			g.times = append(g.times, float64(*mv.TimeSpentMS))
			if mv.ClockRemainingMS != nil && *mv.ClockRemainingMS <= TimeTroubleMS {
				ps.TimeTroubleMoves++
				if g.TimeTroubleEnteredAt == nil {
					ply := mv.Ply
					g.TimeTroubleEnteredAt = &ply
				}
			}
		}

		if a.CPL != nil && *a.CPL >= InaccuracyCPL {
			g.CriticalMoments = append(g.CriticalMoments, criticalMoment(row, phase))
		}
	}

	slices.SortStableFunc(g.CriticalMoments, func(x, y CriticalMoment) int {
		return cmp.Compare(y.CPL, x.CPL)
	})
	if len(g.CriticalMoments) > MaxCriticalMoments {
		g.CriticalMoments = g.CriticalMoments[:MaxCriticalMoments]
	}

	g.AvgCPL = mean(cpls)
	for _, name := range []string{PhaseOpening, PhaseMiddlegame, PhaseEndgame} {
		ps := g.Phases.Get(name)
		ps.AvgCPL = mean(ps.cpls)
		ps.AvgTimeSpentMS = mean(ps.times)
	}
	return g
}

func criticalMoment(row repository.MoveRow, phase string) CriticalMoment {
	mv, a := &row.Move, row.Analysis
	return CriticalMoment{
		MoveID:           mv.ID,
		GameID:           mv.GameID,
		Ply:              mv.Ply,
		MoveSAN:          mv.SAN,
		MoveUCI:          mv.UCI,
		FENBefore:        mv.FENBefore,
		FENHash:          fen.Fingerprint(mv.FENBefore),
		Classification:   a.Classification,
		CPL:              *a.CPL,
		BestMoveUCI:      a.BestMoveUCI,
		EvalBeforeCP:     a.EvalBeforeCP,
		EvalBeforeMate:   a.EvalBeforeMate,
		EvalAfterCP:      a.EvalAfterCP,
		EvalAfterMate:    a.EvalAfterMate,
		ClockRemainingMS: mv.ClockRemainingMS,
		TimeSpentMS:      mv.TimeSpentMS,
		Phase:            phase,
		IsTactical:       board.IsTactical(mv.FENBefore, a.BestMoveUCI) || board.IsTactical(mv.FENBefore, mv.UCI),
	}
}

// openingLabel returns the grouping key and display name of a game's opening.
func openingLabel(g *GameDeepAnalysis) (key, name string) {
	key = "Unknown"
	if g.Opening != nil {
		key = *g.Opening
	}
	name = key
	if i := strings.LastIndex(key, "/"); i >= 0 {
		name = key[i+1:]
	}
	return key, name
}

type gameCPL struct {
	id  uint
	cpl float64
}

func analyzeOpenings(games []GameDeepAnalysis) []OpeningDeepAnalysis {
	type group struct {
		out      OpeningDeepAnalysis
		cpls     []float64
		phase    []float64
		ranked   []gameCPL
		mistakes []CriticalMoment
	}
	var order []string
	groups := make(map[string]*group)
	for i := range games {
		g := &games[i]
		key, name := openingLabel(g)
		grp, ok := groups[key]
		if !ok {
			grp = &group{out: OpeningDeepAnalysis{OpeningName: name}}
			if key != "Unknown" {
				grp.out.ECOURL = optional(key)
			}
			groups[key] = grp
			order = append(order, key)
		}
		grp.out.Games++
		switch g.Result {
		case OutcomeWin:
			grp.out.Wins++
		case OutcomeLoss:
			grp.out.Losses++
		case OutcomeDraw:
			grp.out.Draws++
		}
		if g.AvgCPL != nil {
			grp.cpls = append(grp.cpls, *g.AvgCPL)
			grp.ranked = append(grp.ranked, gameCPL{g.GameID, *g.AvgCPL})
		}
		if g.Phases.Opening.AvgCPL != nil {
			grp.phase = append(grp.phase, *g.Phases.Opening.AvgCPL)
		}
		for _, cm := range g.CriticalMoments {
			if cm.Phase == PhaseOpening {
				grp.mistakes = append(grp.mistakes, cm)
			}
		}
	}

	out := make([]OpeningDeepAnalysis, 0, len(order))
	for _, key := range order {
		grp := groups[key]
		o := grp.out
		o.WinRate = ratio(o.Wins, o.Games)
		o.AvgCPL = mean(grp.cpls)
		o.AvgCPLOpeningPhase = mean(grp.phase)

		slices.SortStableFunc(grp.ranked, func(x, y gameCPL) int { return cmp.Compare(x.cpl, y.cpl) })
		o.BestGames = []uint{}
		for _, r := range grp.ranked[:min(maxOpeningGames, len(grp.ranked))] {
			o.BestGames = append(o.BestGames, r.id)
		}
		o.WorstGames = []uint{}
		if len(grp.ranked) > maxOpeningGames {
			for i := len(grp.ranked) - 1; i >= len(grp.ranked)-maxOpeningGames; i-- {
				o.WorstGames = append(o.WorstGames, grp.ranked[i].id)
			}
		}

		slices.SortStableFunc(grp.mistakes, func(x, y CriticalMoment) int { return cmp.Compare(y.CPL, x.CPL) })
		o.CommonMistakes = grp.mistakes[:min(maxCommonMistakes, len(grp.mistakes))]
		if o.CommonMistakes == nil {
			o.CommonMistakes = []CriticalMoment{}
		}
		out = append(out, o)
	}
	slices.SortStableFunc(out, func(x, y OpeningDeepAnalysis) int { return cmp.Compare(y.Games, x.Games) })
	return out
}

func analyzeTimeManagement(games []GameDeepAnalysis) TimeManagement {
	var (
		all, opening, middlegame, endgame []float64
		entryPlies                        []float64
		fast, normal, slow                []float64
	)
	tm := TimeManagement{TotalGames: len(games), FastestBlunders: []CriticalMoment{}}
	for i := range games {
		g := &games[i]
		all = append(all, g.times...)
		if v := g.Phases.Opening.AvgTimeSpentMS; v != nil {
			opening = append(opening, *v)
		}
		if v := g.Phases.Middlegame.AvgTimeSpentMS; v != nil {
			middlegame = append(middlegame, *v)
		}
		if v := g.Phases.Endgame.AvgTimeSpentMS; v != nil {
			endgame = append(endgame, *v)
		}
		if g.TimeTroubleEnteredAt != nil {
			tm.GamesWithTimeTrouble++
			entryPlies = append(entryPlies, float64(*g.TimeTroubleEnteredAt))
		}
		tm.BlundersTotal += g.Blunders

		for _, cm := range g.CriticalMoments {
			if cm.TimeSpentMS == nil {
				continue
			}
			if cm.ClockRemainingMS != nil && *cm.ClockRemainingMS <= TimeTroubleMS && cm.CPL >= BlunderCPL {
				tm.BlundersInTimeTrouble++
			}
			switch spent := *cm.TimeSpentMS; {
			case spent < FastMoveMS:
				fast = append(fast, float64(cm.CPL))
				if cm.CPL >= BlunderCPL {
					tm.FastestBlunders = append(tm.FastestBlunders, cm)
				}
			case spent <= SlowMoveMS:
				normal = append(normal, float64(cm.CPL))
			default:
				slow = append(slow, float64(cm.CPL))
			}
		}
	}

	tm.AvgTimePerMoveMS = mean(all)
	tm.OpeningAvgTimeMS = mean(opening)
	tm.MiddlegameAvgTimeMS = mean(middlegame)
	tm.EndgameAvgTimeMS = mean(endgame)
	tm.TimeTroubleRate = ratio(tm.GamesWithTimeTrouble, tm.TotalGames)
	tm.AvgPlyEnteringTimeTrouble = mean(entryPlies)
	tm.TimeTroubleBlunderRate = ratio(tm.BlundersInTimeTrouble, tm.BlundersTotal)
	tm.AvgCPLFastMoves = mean(fast)
	tm.AvgCPLNormalMoves = mean(normal)
	tm.AvgCPLSlowMoves = mean(slow)

	slices.SortStableFunc(tm.FastestBlunders, func(x, y CriticalMoment) int {
		return cmp.Compare(*x.TimeSpentMS, *y.TimeSpentMS)
	})
	if len(tm.FastestBlunders) > maxFastestBlunders {
		tm.FastestBlunders = tm.FastestBlunders[:maxFastestBlunders]
	}
	return tm
}

func analyzePhaseTrends(games []GameDeepAnalysis) PhaseTrends {
	var trends PhaseTrends
	trend := func(name string) *PhaseTrend {
		switch name {
		case PhaseOpening:
			return &trends.Opening
		case PhaseMiddlegame:
			return &trends.Middlegame
		}
		return &trends.Endgame
	}
	for _, name := range []string{PhaseOpening, PhaseMiddlegame, PhaseEndgame} {
		t := trend(name)
		var cpls []float64
		for i := range games {
			ps := games[i].Phases.Get(name)
			if ps.AvgCPL != nil {
				cpls = append(cpls, *ps.AvgCPL)
			}
			t.Blunders += ps.Blunders
			t.Mistakes += ps.Mistakes
			t.Excellent += ps.ExcellentMoves
			t.Moves += ps.Moves
		}
		t.AvgCPL = mean(cpls)
		t.ErrorRate = ratio(t.Blunders+t.Mistakes, t.Moves)
		t.ExcellenceRate = ratio(t.Excellent, t.Moves)
	}
	return trends
}

// detectImprovements compares the recent half of the window against the
// older half. games is ordered most recent first.
func detectImprovements(games []GameDeepAnalysis) []Signal {
	signals := []Signal{}
	if len(games) < 4 {
		return signals
	}
	mid := len(games) / 2
	recent, older := games[:mid], games[mid:]

	recentCPL, olderCPL := avgGameCPL(recent), avgGameCPL(older)
	if recentCPL != nil && olderCPL != nil && *olderCPL > *recentCPL*1.15 {
		magnitude := (*olderCPL - *recentCPL) / *olderCPL
		signals = append(signals, Signal{
			Type:        SignalOverallAccuracy,
			Description: fmt.Sprintf("Move accuracy improved from %.1f to %.1f average CPL", *olderCPL, *recentCPL),
			Magnitude:   &magnitude,
		})
	}

	recentTT, olderTT := countTimeTrouble(recent), countTimeTrouble(older)
	if olderTT > 0 && recentTT < olderTT {
		magnitude := float64(olderTT-recentTT) / float64(olderTT)
		signals = append(signals, Signal{
			Type:        SignalTimeManagement,
			Description: fmt.Sprintf("Time trouble occurrences decreased from %d to %d games", olderTT, recentTT),
			Magnitude:   &magnitude,
		})
	}
	return signals
}

func avgGameCPL(games []GameDeepAnalysis) *float64 {
	var cpls []float64
	for i := range games {
		if games[i].AvgCPL != nil {
			cpls = append(cpls, *games[i].AvgCPL)
		}
	}
	return mean(cpls)
}

func countTimeTrouble(games []GameDeepAnalysis) int {
	n := 0
	for i := range games {
		if games[i].TimeTroubleEnteredAt != nil {
			n++
		}
	}
	return n
}

func detectRegressions(games []GameDeepAnalysis) []Signal {
	signals := []Signal{}

	var heavy []uint
	for i := range games {
		if games[i].Blunders >= 2 {
			heavy = append(heavy, games[i].GameID)
		}
	}
	if len(heavy) >= 3 {
		signals = append(signals, Signal{
			Type:        SignalBlunderFrequency,
			Description: fmt.Sprintf("%d games with 2+ blunders in recent history", len(heavy)),
			Severity:    "high",
			GameIDs:     heavy,
		})
	}

	openingErrors := 0
	for i := range games {
		openingErrors += games[i].Phases.Opening.Blunders + games[i].Phases.Opening.Mistakes
	}
	if openingErrors >= 5 {
		signals = append(signals, Signal{
			Type:        SignalOpeningWeakness,
			Description: fmt.Sprintf("%d significant errors in the opening phase across recent games", openingErrors),
			Severity:    "medium",
		})
	}

	var ttLosses []uint
	for i := range games {
		if games[i].Result == OutcomeLoss && games[i].TimeTroubleEnteredAt != nil {
			ttLosses = append(ttLosses, games[i].GameID)
		}
	}
	if len(ttLosses) >= 3 {
		signals = append(signals, Signal{
			Type:        SignalTimeTroubleLosses,
			Description: fmt.Sprintf("%d losses occurred after entering time trouble", len(ttLosses)),
			Severity:    "high",
			GameIDs:     ttLosses,
		})
	}
	return signals
}

func overallStats(games []GameDeepAnalysis) OverallStats {
	s := OverallStats{Games: len(games)}
	for i := range games {
		g := &games[i]
		switch g.Result {
		case OutcomeWin:
			s.Wins++
		case OutcomeLoss:
			s.Losses++
		case OutcomeDraw:
			s.Draws++
		}
		s.TotalBlunders += g.Blunders
		s.TotalMistakes += g.Mistakes
		s.TotalExcellent += g.ExcellentMoves
	}
	s.WinRate = ratio(s.Wins, s.Games)
	s.AvgCPL = avgGameCPL(games)
	return s
}
