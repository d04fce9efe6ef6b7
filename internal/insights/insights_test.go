package insights

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/discochess/coach/internal/repository"
	"github.com/discochess/coach/internal/repository/memrepo"
)

const (
	startFEN  = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"
	scandiFEN = "rnbqkbnr/ppp1pppp/8/3p4/4P3/8/PPPP1PPP/RNBQKBNR w KQkq d6 0 2"
	version   = "Scripted@1|depth=10|time_ms=0|multipv=1"
	italian   = "https://www.chess.com/openings/Italian-Game"
)

func intPtr(v int) *int { return &v }

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

func approxPtr(got *float64, want float64) bool { return got != nil && approx(*got, want) }

func TestOutcome(t *testing.T) {
	tests := []struct {
		result string
		want   string
	}{
		{"win", OutcomeWin},
		{"agreed", OutcomeDraw},
		{"timevsinsufficient", OutcomeDraw},
		{"50move", OutcomeDraw},
		{"checkmated", OutcomeLoss},
		{"timeout", OutcomeLoss},
		{"lose", OutcomeLoss},
		{"", OutcomeUnknown},
		{"bughousepartnerlose", OutcomeUnknown},
	}
	for _, tt := range tests {
		if got := Outcome(tt.result); got != tt.want {
			t.Errorf("Outcome(%q) = %q, want %q", tt.result, got, tt.want)
		}
	}
}

func TestPhaseOf(t *testing.T) {
	tests := []struct {
		ply  int
		want string
	}{
		{1, PhaseOpening},
		{16, PhaseOpening},
		{17, PhaseMiddlegame},
		{50, PhaseMiddlegame},
		{51, PhaseEndgame},
	}
	for _, tt := range tests {
		if got := PhaseOf(tt.ply); got != tt.want {
			t.Errorf("PhaseOf(%d) = %q, want %q", tt.ply, got, tt.want)
		}
	}
}

type seed struct {
	ply   int
	cls   string
	cpl   *int
	clock *int
	spent *int
	fen   string
	best  string
}

type gameSeed struct {
	eco         string
	resultWhite string
	resultBlack string
	end         time.Time
	moves       []seed
}

// seedGame stores a game where alice has white against bob.
func seedGame(t *testing.T, repo *memrepo.Repo, gs gameSeed) *repository.Game {
	t.Helper()
	ctx := context.Background()
	player, err := repo.EnsurePlayer(ctx, "alice")
	if err != nil {
		t.Fatalf("EnsurePlayer() error = %v", err)
	}
	end := gs.end
	game := &repository.Game{
		PlayerID:      player.ID,
		PGN:           "*",
		WhiteUsername: "alice",
		BlackUsername: "bob",
		BlackRating:   intPtr(1500),
		ResultWhite:   gs.resultWhite,
		ResultBlack:   gs.resultBlack,
		ECOURL:        gs.eco,
		TimeControl:   "300+2",
		EndTime:       &end,
	}
	if err := repo.CreateGame(ctx, game); err != nil {
		t.Fatalf("CreateGame() error = %v", err)
	}
	moves := make([]repository.Move, len(gs.moves))
	for i, s := range gs.moves {
		fen := s.fen
		if fen == "" {
			fen = startFEN
		}
		moves[i] = repository.Move{
			Ply:              s.ply,
			FENBefore:        fen,
			UCI:              "g1f3",
			SAN:              "Nf3",
			ClockRemainingMS: s.clock,
			TimeSpentMS:      s.spent,
		}
	}
	if err := repo.ReplaceMoves(ctx, game.ID, moves); err != nil {
		t.Fatalf("ReplaceMoves() error = %v", err)
	}
	for i, s := range gs.moves {
		a := &repository.MoveAnalysis{
			MoveID:          moves[i].ID,
			AnalysisVersion: version,
			Classification:  s.cls,
			CPL:             s.cpl,
			BestMoveUCI:     s.best,
		}
		if err := repo.UpsertAnalysis(ctx, a); err != nil {
			t.Fatalf("UpsertAnalysis() error = %v", err)
		}
	}
	return game
}

type window struct {
	repo       *memrepo.Repo
	a, b, c, d *repository.Game
}

// seedWindow stores four games, a oldest and d newest. a, b and c are
// Italian losses with two blunders each under 30s on the clock; d is a
// clean win.
func seedWindow(t *testing.T) *window {
	t.Helper()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	w := &window{repo: memrepo.New()}
	w.a = seedGame(t, w.repo, gameSeed{eco: italian, resultWhite: "resigned", resultBlack: "win", end: base, moves: []seed{
		{ply: 1, cls: "book", cpl: intPtr(0), clock: intPtr(100000), spent: intPtr(2000)},
		{ply: 2, cls: "blunder", cpl: intPtr(900), clock: intPtr(1000), spent: intPtr(100)},
		{ply: 3, cls: "blunder", cpl: intPtr(250), clock: intPtr(20000), spent: intPtr(1000)},
		{ply: 5, cls: "blunder", cpl: intPtr(300), clock: intPtr(10000), spent: intPtr(40000)},
	}})
	w.b = seedGame(t, w.repo, gameSeed{eco: italian, resultWhite: "timeout", resultBlack: "win", end: base.Add(time.Hour), moves: []seed{
		{ply: 1, cls: "blunder", cpl: intPtr(220), clock: intPtr(25000), spent: intPtr(500), fen: scandiFEN, best: "e4d5"},
		{ply: 3, cls: "blunder", cpl: intPtr(210), clock: intPtr(20000), spent: intPtr(5000)},
	}})
	w.c = seedGame(t, w.repo, gameSeed{eco: italian, resultWhite: "checkmated", resultBlack: "win", end: base.Add(2 * time.Hour), moves: []seed{
		{ply: 17, cls: "blunder", cpl: intPtr(400), clock: intPtr(5000), spent: intPtr(2000)},
		{ply: 19, cls: "blunder", cpl: intPtr(200), clock: intPtr(1000)},
	}})
	w.d = seedGame(t, w.repo, gameSeed{resultWhite: "win", resultBlack: "resigned", end: base.Add(3 * time.Hour), moves: []seed{
		{ply: 1, cls: "book", cpl: intPtr(10), clock: intPtr(300000), spent: intPtr(4000)},
		{ply: 3, cls: "best", cpl: intPtr(3), clock: intPtr(290000)},
		{ply: 51, cls: "inaccuracy", cpl: intPtr(60), clock: intPtr(200000), spent: intPtr(3000)},
	}})
	return w
}

func TestBuilder_DeepGames(t *testing.T) {
	w := seedWindow(t)
	got, err := New(w.repo).Deep(context.Background(), "alice", DeepOptions{})
	if err != nil {
		t.Fatalf("Deep() error = %v", err)
	}
	if got.AnalysisVersion == nil || *got.AnalysisVersion != version {
		t.Errorf("Deep().AnalysisVersion = %v, want %q", got.AnalysisVersion, version)
	}
	if got.GamesAnalyzed != 4 {
		t.Fatalf("Deep().GamesAnalyzed = %d, want 4", got.GamesAnalyzed)
	}
	if got.GameAnalyses[0].GameID != w.d.ID || got.GameAnalyses[3].GameID != w.a.ID {
		t.Errorf("Deep() order = %d..%d, want most recent first", got.GameAnalyses[0].GameID, got.GameAnalyses[3].GameID)
	}

	a := got.GameAnalyses[3]
	if a.TotalMoves != 3 {
		t.Errorf("TotalMoves = %d, want 3 (opponent moves excluded)", a.TotalMoves)
	}
	if a.Result != OutcomeLoss || a.PlayerColor != repository.ColorWhite {
		t.Errorf("Result, PlayerColor = %q, %q, want loss, white", a.Result, a.PlayerColor)
	}
	if a.OpponentUsername == nil || *a.OpponentUsername != "bob" || a.OpponentRating == nil || *a.OpponentRating != 1500 {
		t.Errorf("opponent = %v %v, want bob 1500", a.OpponentUsername, a.OpponentRating)
	}
	if !approxPtr(a.AvgCPL, 550.0/3) {
		t.Errorf("AvgCPL = %v, want %v", a.AvgCPL, 550.0/3)
	}
	if a.Blunders != 2 || a.ExcellentMoves != 1 {
		t.Errorf("Blunders, ExcellentMoves = %d, %d, want 2, 1", a.Blunders, a.ExcellentMoves)
	}
	if a.TimeTroubleEnteredAt == nil || *a.TimeTroubleEnteredAt != 3 {
		t.Errorf("TimeTroubleEnteredAt = %v, want 3", a.TimeTroubleEnteredAt)
	}
	if a.Phases.Opening.Moves != 3 || a.Phases.Opening.TimeTroubleMoves != 2 {
		t.Errorf("opening moves, time trouble = %d, %d, want 3, 2", a.Phases.Opening.Moves, a.Phases.Opening.TimeTroubleMoves)
	}
	if !approxPtr(a.Phases.Opening.AvgTimeSpentMS, 43000.0/3) {
		t.Errorf("opening AvgTimeSpentMS = %v, want %v", a.Phases.Opening.AvgTimeSpentMS, 43000.0/3)
	}
	if a.Phases.Middlegame.AvgCPL != nil {
		t.Errorf("middlegame AvgCPL = %v, want nil", *a.Phases.Middlegame.AvgCPL)
	}
	if len(a.CriticalMoments) != 2 || a.CriticalMoments[0].CPL != 300 || a.CriticalMoments[0].Phase != PhaseOpening {
		t.Errorf("CriticalMoments = %+v, want plies 5 then 3", a.CriticalMoments)
	}

	c := got.GameAnalyses[1]
	if c.TimeTroubleEnteredAt == nil || *c.TimeTroubleEnteredAt != 17 {
		t.Errorf("game c TimeTroubleEnteredAt = %v, want 17", c.TimeTroubleEnteredAt)
	}
	if c.Phases.Middlegame.TimeTroubleMoves != 1 {
		t.Errorf("game c middlegame TimeTroubleMoves = %d, want 1 (unknown time spent excluded)", c.Phases.Middlegame.TimeTroubleMoves)
	}

	b := got.GameAnalyses[2]
	if !b.CriticalMoments[0].IsTactical {
		t.Errorf("game b ply 1 IsTactical = false, want true")
	}
	if b.CriticalMoments[1].IsTactical {
		t.Errorf("game b ply 3 IsTactical = true, want false")
	}
}

func TestBuilder_DeepRollups(t *testing.T) {
	w := seedWindow(t)
	got, err := New(w.repo).Deep(context.Background(), "alice", DeepOptions{})
	if err != nil {
		t.Fatalf("Deep() error = %v", err)
	}

	s := got.OverallStats
	if s.Games != 4 || s.Wins != 1 || s.Losses != 3 || s.TotalBlunders != 6 || !approx(s.WinRate, 0.25) {
		t.Errorf("OverallStats = %+v", s)
	}

	if len(got.OpeningAnalyses) != 2 {
		t.Fatalf("len(OpeningAnalyses) = %d, want 2", len(got.OpeningAnalyses))
	}
	it := got.OpeningAnalyses[0]
	if it.OpeningName != "Italian-Game" || it.ECOURL == nil || *it.ECOURL != italian || it.Games != 3 || it.Losses != 3 {
		t.Errorf("OpeningAnalyses[0] = %+v", it)
	}
	wantBest := []uint{w.a.ID, w.b.ID, w.c.ID}
	for i, id := range wantBest {
		if it.BestGames[i] != id {
			t.Errorf("BestGames = %v, want %v", it.BestGames, wantBest)
			break
		}
	}
	if len(it.WorstGames) != 0 {
		t.Errorf("WorstGames = %v, want none with three games", it.WorstGames)
	}
	if len(it.CommonMistakes) != 3 || it.CommonMistakes[0].CPL != 300 || it.CommonMistakes[2].CPL != 220 {
		t.Errorf("CommonMistakes = %+v, want 300, 250, 220", it.CommonMistakes)
	}
	unknown := got.OpeningAnalyses[1]
	if unknown.OpeningName != "Unknown" || unknown.ECOURL != nil || unknown.Wins != 1 || !approx(unknown.WinRate, 1) {
		t.Errorf("OpeningAnalyses[1] = %+v", unknown)
	}

	tm := got.TimeManagement
	if tm.GamesWithTimeTrouble != 3 || !approx(tm.TimeTroubleRate, 0.75) || !approxPtr(tm.AvgPlyEnteringTimeTrouble, 7) {
		t.Errorf("time trouble = %d %v %v, want 3 0.75 7", tm.GamesWithTimeTrouble, tm.TimeTroubleRate, tm.AvgPlyEnteringTimeTrouble)
	}
	// c's ply 19 blunder has no time spent and is left out.
	if tm.BlundersInTimeTrouble != 5 || tm.BlundersTotal != 6 || !approx(tm.TimeTroubleBlunderRate, 5.0/6) {
		t.Errorf("blunders in time trouble = %d/%d", tm.BlundersInTimeTrouble, tm.BlundersTotal)
	}
	if !approxPtr(tm.AvgTimePerMoveMS, 57500.0/8) {
		t.Errorf("AvgTimePerMoveMS = %v, want %v", tm.AvgTimePerMoveMS, 57500.0/8)
	}
	if !approxPtr(tm.AvgCPLFastMoves, 290) || !approxPtr(tm.AvgCPLNormalMoves, 135) || !approxPtr(tm.AvgCPLSlowMoves, 300) {
		t.Errorf("speed buckets = %v %v %v, want 290 135 300", tm.AvgCPLFastMoves, tm.AvgCPLNormalMoves, tm.AvgCPLSlowMoves)
	}
	wantSpent := []int{500, 1000, 2000}
	if len(tm.FastestBlunders) != len(wantSpent) {
		t.Fatalf("len(FastestBlunders) = %d, want %d", len(tm.FastestBlunders), len(wantSpent))
	}
	for i, spent := range wantSpent {
		if *tm.FastestBlunders[i].TimeSpentMS != spent {
			t.Errorf("FastestBlunders[%d] spent = %d, want %d", i, *tm.FastestBlunders[i].TimeSpentMS, spent)
		}
	}

	op := got.PhaseTrends.Opening
	if op.Blunders != 4 || op.Moves != 7 || op.Excellent != 2 || !approx(op.ErrorRate, 4.0/7) {
		t.Errorf("PhaseTrends.Opening = %+v", op)
	}
	if eg := got.PhaseTrends.Endgame; eg.Moves != 1 || eg.ErrorRate != 0 || !approxPtr(eg.AvgCPL, 60) {
		t.Errorf("PhaseTrends.Endgame = %+v", eg)
	}
}

func TestBuilder_DeepSignals(t *testing.T) {
	w := seedWindow(t)
	got, err := New(w.repo).Deep(context.Background(), "alice", DeepOptions{})
	if err != nil {
		t.Fatalf("Deep() error = %v", err)
	}

	improvements := map[string]Signal{}
	for _, s := range got.ImprovementSignals {
		improvements[s.Type] = s
	}
	acc, ok := improvements[SignalOverallAccuracy]
	if !ok {
		t.Fatalf("ImprovementSignals = %+v, want overall_accuracy", got.ImprovementSignals)
	}
	if acc.Description != "Move accuracy improved from 199.2 to 162.2 average CPL" {
		t.Errorf("overall_accuracy description = %q", acc.Description)
	}
	if !approxPtr(acc.Magnitude, 37.0/(398.0+1.0/3)*2) {
		t.Errorf("overall_accuracy magnitude = %v", acc.Magnitude)
	}
	if tm, ok := improvements[SignalTimeManagement]; !ok || tm.Description != "Time trouble occurrences decreased from 2 to 1 games" {
		t.Errorf("time_management signal = %+v", tm)
	}

	regressions := map[string]Signal{}
	for _, s := range got.RegressionSignals {
		regressions[s.Type] = s
	}
	wantIDs := []uint{w.c.ID, w.b.ID, w.a.ID}
	for _, typ := range []string{SignalBlunderFrequency, SignalTimeTroubleLosses} {
		s, ok := regressions[typ]
		if !ok {
			t.Errorf("RegressionSignals missing %s", typ)
			continue
		}
		if s.Severity != "high" || len(s.GameIDs) != 3 {
			t.Errorf("%s = %+v", typ, s)
			continue
		}
		for i, id := range wantIDs {
			if s.GameIDs[i] != id {
				t.Errorf("%s GameIDs = %v, want %v", typ, s.GameIDs, wantIDs)
				break
			}
		}
	}
	if _, ok := regressions[SignalOpeningWeakness]; ok {
		t.Errorf("opening_weakness fired with four opening errors")
	}
}

func TestBuilder_DeepWindow(t *testing.T) {
	w := seedWindow(t)
	b := New(w.repo)
	ctx := context.Background()

	got, err := b.Deep(ctx, "alice", DeepOptions{Limit: 2})
	if err != nil {
		t.Fatalf("Deep() error = %v", err)
	}
	if got.GamesAnalyzed != 2 || got.GameAnalyses[0].GameID != w.d.ID {
		t.Errorf("Deep(limit 2) = %d games", got.GamesAnalyzed)
	}
	if len(got.ImprovementSignals) != 0 {
		t.Errorf("ImprovementSignals = %+v, want none below four games", got.ImprovementSignals)
	}

	from := *w.b.EndTime
	to := *w.c.EndTime
	got, err = b.Deep(ctx, "alice", DeepOptions{From: &from, To: &to})
	if err != nil {
		t.Fatalf("Deep() error = %v", err)
	}
	if got.GamesAnalyzed != 2 || got.GameAnalyses[0].GameID != w.c.ID || got.GameAnalyses[1].GameID != w.b.ID {
		t.Errorf("Deep(from, to) games = %+v", got.GameAnalyses)
	}
	if got.DateRangeStart == nil || !got.DateRangeStart.Equal(from) {
		t.Errorf("DateRangeStart = %v, want %v", got.DateRangeStart, from)
	}
}

func TestBuilder_DeepEmpty(t *testing.T) {
	ctx := context.Background()
	repo := memrepo.New()
	player, err := repo.EnsurePlayer(ctx, "alice")
	if err != nil {
		t.Fatalf("EnsurePlayer() error = %v", err)
	}
	if err := repo.CreateGame(ctx, &repository.Game{PlayerID: player.ID, WhiteUsername: "alice", BlackUsername: "bob"}); err != nil {
		t.Fatalf("CreateGame() error = %v", err)
	}

	got, err := New(repo).Deep(ctx, "alice", DeepOptions{})
	if err != nil {
		t.Fatalf("Deep() error = %v", err)
	}
	if got.AnalysisVersion != nil || got.GamesAnalyzed != 0 {
		t.Errorf("Deep() = version %v, %d games, want nil, 0", got.AnalysisVersion, got.GamesAnalyzed)
	}
	if got.GameAnalyses == nil || got.ImprovementSignals == nil || got.RegressionSignals == nil || got.OpeningAnalyses == nil {
		t.Errorf("Deep() lists must be empty, not nil")
	}
	if got.OverallStats.AvgCPL != nil || got.OverallStats.WinRate != 0 {
		t.Errorf("OverallStats = %+v, want zero", got.OverallStats)
	}
	if got.TimeManagement.AvgTimePerMoveMS != nil || got.TimeManagement.TimeTroubleRate != 0 {
		t.Errorf("TimeManagement = %+v, want zero", got.TimeManagement)
	}
}

func TestBuilder_UnknownPlayer(t *testing.T) {
	b := New(memrepo.New())
	_, err := b.Deep(context.Background(), "ghost", DeepOptions{})
	var verr *repository.ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("Deep() error = %v, want ValidationError", err)
	}
	if _, err := b.Overview(context.Background(), " ", ""); !errors.As(err, &verr) {
		t.Errorf("Overview() error = %v, want ValidationError", err)
	}
}

func TestBuilder_Overview(t *testing.T) {
	w := seedWindow(t)
	got, err := New(w.repo).Overview(context.Background(), "alice", "")
	if err != nil {
		t.Fatalf("Overview() error = %v", err)
	}
	if got.Games != 4 || got.MovesAnalyzed != 10 {
		t.Errorf("Overview() games, moves = %d, %d, want 4, 10", got.Games, got.MovesAnalyzed)
	}
	if got.Blunders != 6 || got.Mistakes != 0 || got.Inaccuracies != 1 {
		t.Errorf("Overview() counts = %d/%d/%d, want 6/0/1", got.Blunders, got.Mistakes, got.Inaccuracies)
	}
	if !approxPtr(got.AvgCPL, 1653.0/10) {
		t.Errorf("Overview().AvgCPL = %v, want %v", got.AvgCPL, 1653.0/10)
	}

	other, err := New(w.repo).Overview(context.Background(), "alice", "Other@1|depth=1|time_ms=0|multipv=1")
	if err != nil {
		t.Fatalf("Overview() error = %v", err)
	}
	if other.MovesAnalyzed != 0 || other.AvgCPL != nil {
		t.Errorf("Overview(other version) = %+v, want no moves", other)
	}
}

func TestBuilder_Openings(t *testing.T) {
	w := seedWindow(t)
	got, err := New(w.repo).Openings(context.Background(), "alice", "")
	if err != nil {
		t.Fatalf("Openings() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(Openings()) = %d, want 2", len(got))
	}
	if got[0].Opening != italian || got[0].Games != 3 || got[0].Losses != 3 || got[0].WinRate != 0 {
		t.Errorf("Openings()[0] = %+v", got[0])
	}
	if !approxPtr(got[0].AvgCPL, 1580.0/7) {
		t.Errorf("Openings()[0].AvgCPL = %v, want %v", got[0].AvgCPL, 1580.0/7)
	}
	if got[1].Opening != "Unknown" || got[1].Wins != 1 || !approx(got[1].WinRate, 1) {
		t.Errorf("Openings()[1] = %+v", got[1])
	}
}

func TestBuilder_TimeInsights(t *testing.T) {
	w := seedWindow(t)
	got, err := New(w.repo).TimeInsights(context.Background(), "alice", "", 0)
	if err != nil {
		t.Fatalf("TimeInsights() error = %v", err)
	}
	if got.ThresholdMS != TimeTroubleMS {
		t.Errorf("ThresholdMS = %d, want %d", got.ThresholdMS, TimeTroubleMS)
	}
	if got.TimeTroubleMoves != 6 || got.TimeTroubleBlunders != 6 {
		t.Errorf("time trouble moves, blunders = %d, %d, want 6, 6", got.TimeTroubleMoves, got.TimeTroubleBlunders)
	}
	if !approxPtr(got.AvgTimeSpentMS, 57500.0/8) {
		t.Errorf("AvgTimeSpentMS = %v, want %v", got.AvgTimeSpentMS, 57500.0/8)
	}
	if !approxPtr(got.AvgCPLTimeTrouble, 1580.0/6) || !approxPtr(got.AvgCPLNormal, 73.0/4) {
		t.Errorf("cpl trouble, normal = %v, %v", got.AvgCPLTimeTrouble, got.AvgCPLNormal)
	}

	tight, err := New(w.repo).TimeInsights(context.Background(), "alice", "", 5000)
	if err != nil {
		t.Fatalf("TimeInsights() error = %v", err)
	}
	if tight.TimeTroubleMoves != 2 {
		t.Errorf("TimeTroubleMoves(5000) = %d, want 2", tight.TimeTroubleMoves)
	}
}

func TestHashUsername(t *testing.T) {
	got := HashUsername("bob")
	if !strings.HasPrefix(got, "anon-") || len(got) != len("anon-")+12 {
		t.Errorf("HashUsername() = %q, want anon- and 12 hex digits", got)
	}
	if HashUsername("bob") != got {
		t.Errorf("HashUsername() not stable")
	}
	if HashUsername("carol") == got {
		t.Errorf("HashUsername() collides for distinct names")
	}
}

func TestAnonymizeDeep(t *testing.T) {
	w := seedWindow(t)
	p, err := New(w.repo).Deep(context.Background(), "alice", DeepOptions{})
	if err != nil {
		t.Fatalf("Deep() error = %v", err)
	}
	got := AnonymizeDeep(p)
	if got.PlayerUsername != "alice" {
		t.Errorf("PlayerUsername = %q, want alice", got.PlayerUsername)
	}
	for _, g := range got.GameAnalyses {
		if g.OpponentUsername == nil || *g.OpponentUsername != HashUsername("bob") {
			t.Errorf("OpponentUsername = %v, want masked", g.OpponentUsername)
		}
	}
	if *p.GameAnalyses[0].OpponentUsername != "bob" {
		t.Errorf("AnonymizeDeep() modified its input")
	}
}

func TestAnalyzeTimeManagement_TimeTroubleBlundersNeedTimeSpent(t *testing.T) {
	games := []GameDeepAnalysis{{
		GameID:   1,
		Blunders: 3,
		CriticalMoments: []CriticalMoment{
			{Ply: 41, CPL: 450, ClockRemainingMS: intPtr(12000), TimeSpentMS: intPtr(800)},
			{Ply: 43, CPL: 600, ClockRemainingMS: intPtr(9000)},
			{Ply: 45, CPL: 300, ClockRemainingMS: intPtr(45000), TimeSpentMS: intPtr(5000)},
		},
	}}

	tm := analyzeTimeManagement(games)
	if tm.BlundersInTimeTrouble != 1 {
		t.Errorf("BlundersInTimeTrouble = %d, want 1", tm.BlundersInTimeTrouble)
	}
	if tm.BlundersTotal != 3 {
		t.Errorf("BlundersTotal = %d, want 3", tm.BlundersTotal)
	}
	if len(tm.FastestBlunders) != 1 || tm.FastestBlunders[0].Ply != 41 {
		t.Errorf("FastestBlunders = %+v, want ply 41 only", tm.FastestBlunders)
	}
}
