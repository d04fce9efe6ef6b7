// Package insights aggregates a player's analyzed moves into the payloads
// consumed by coaching reports: the deep per-game breakdown with openings,
// time management, phase trends and signals, plus lighter rollups.
//
// Every statistic counts only the player's own moves. Averages over an empty
// set are nil.
package insights

import (
	"cmp"
	"context"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/discochess/coach/internal/analysis"
	"github.com/discochess/coach/internal/repository"
)

// Builder computes insight payloads from a repository.
type Builder struct {
	repo   repository.Repository
	logger *zap.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(b *Builder) { b.logger = logger.Named("insights") }
}

// New creates a builder over repo.
func New(repo repository.Repository, opts ...Option) *Builder {
	b := &Builder{repo: repo, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// DeepOptions bounds the deep insights window.
type DeepOptions struct {
	Limit int // defaults to DefaultGameLimit, capped at MaxGameLimit
	From  *time.Time
	To    *time.Time
}

// Deep builds the deep insights payload over the player's most recent games
// under their latest analysis version. Games without analyzed player moves
// are left out of the window.
func (b *Builder) Deep(ctx context.Context, username string, opts DeepOptions) (*DeepInsights, error) {
	player, err := repository.LookupPlayer(ctx, b.repo, username)
	if err != nil {
		return nil, err
	}
	version, err := repository.ResolveVersion(ctx, b.repo, player.ID, "")
	if err != nil {
		return nil, err
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultGameLimit
	}
	limit = min(limit, MaxGameLimit)

	games, err := b.repo.ListGames(ctx, repository.GameQuery{
		PlayerID: player.ID,
		From:     opts.From,
		To:       opts.To,
		Limit:    limit,
	})
	if err != nil {
		return nil, err
	}

	var analyses []GameDeepAnalysis
	if version != "" && len(games) > 0 {
		ids := make([]uint, len(games))
		for i := range games {
			ids[i] = games[i].ID
		}
		rows, err := b.repo.PlayerMoves(ctx, repository.MoveQuery{
			PlayerID: player.ID,
			Username: player.Username,
			Version:  version,
			GameIDs:  ids,
		})
		if err != nil {
			return nil, err
		}
		byGame := make(map[uint][]repository.MoveRow)
		for _, row := range rows {
			byGame[row.Move.GameID] = append(byGame[row.Move.GameID], row)
		}
		for i := range games {
			if g := analyzeGame(&games[i], player.Username, byGame[games[i].ID]); g != nil {
				analyses = append(analyses, *g)
			}
		}
	}

	out := &DeepInsights{
		PlayerUsername:     player.Username,
		AnalysisVersion:    optional(version),
		DateRangeStart:     opts.From,
		DateRangeEnd:       opts.To,
		GamesAnalyzed:      len(analyses),
		OverallStats:       overallStats(analyses),
		GameAnalyses:       analyses,
		OpeningAnalyses:    analyzeOpenings(analyses),
		TimeManagement:     analyzeTimeManagement(analyses),
		PhaseTrends:        analyzePhaseTrends(analyses),
		ImprovementSignals: detectImprovements(analyses),
		RegressionSignals:  detectRegressions(analyses),
	}
	if out.GameAnalyses == nil {
		out.GameAnalyses = []GameDeepAnalysis{}
	}
	b.logger.Debug("built deep insights",
		zap.String("player", player.Username),
		zap.String("version", version),
		zap.Int("games", len(games)),
		zap.Int("analyzed", len(analyses)),
	)
	return out, nil
}

// Overview summarizes the player's games and analyzed moves.
type Overview struct {
	PlayerUsername  string   `json:"player_username"`
	AnalysisVersion *string  `json:"analysis_version"`
	Games           int      `json:"games"`
	MovesAnalyzed   int      `json:"moves_analyzed"`
	AvgCPL          *float64 `json:"avg_cpl"`
	Blunders        int      `json:"blunders"`
	Mistakes        int      `json:"mistakes"`
	Inaccuracies    int      `json:"inaccuracies"`
}

// Overview counts the player's games and the classifications of their moves
// analyzed under version, or under the latest version when empty.
func (b *Builder) Overview(ctx context.Context, username, version string) (*Overview, error) {
	player, version, err := b.resolve(ctx, username, version)
	if err != nil {
		return nil, err
	}
	games, err := b.repo.ListGames(ctx, repository.GameQuery{PlayerID: player.ID})
	if err != nil {
		return nil, err
	}
	rows, err := b.analyzedMoves(ctx, player, version)
	if err != nil {
		return nil, err
	}

	out := &Overview{
		PlayerUsername:  player.Username,
		AnalysisVersion: optional(version),
		Games:           len(games),
		MovesAnalyzed:   len(rows),
	}
	var cpls []float64
	for _, row := range rows {
		if row.Analysis.CPL != nil {
			cpls = append(cpls, float64(*row.Analysis.CPL))
		}
		switch analysis.Classification(row.Analysis.Classification) {
		case analysis.Blunder:
			out.Blunders++
		case analysis.Mistake:
			out.Mistakes++
		case analysis.Inaccuracy:
			out.Inaccuracies++
		}
	}
	out.AvgCPL = mean(cpls)
	return out, nil
}

// OpeningStats is the performance of the player in one opening.
type OpeningStats struct {
	Opening string   `json:"opening"`
	Games   int      `json:"games"`
	Wins    int      `json:"wins"`
	Losses  int      `json:"losses"`
	Draws   int      `json:"draws"`
	WinRate float64  `json:"win_rate"`
	AvgCPL  *float64 `json:"avg_cpl"`
}

// Openings groups all of the player's games by opening, most played first.
// AvgCPL averages the player's moves analyzed under version.
func (b *Builder) Openings(ctx context.Context, username, version string) ([]OpeningStats, error) {
	player, version, err := b.resolve(ctx, username, version)
	if err != nil {
		return nil, err
	}
	games, err := b.repo.ListGames(ctx, repository.GameQuery{PlayerID: player.ID})
	if err != nil {
		return nil, err
	}
	rows, err := b.analyzedMoves(ctx, player, version)
	if err != nil {
		return nil, err
	}

	label := func(g *repository.Game) string {
		if g.ECOURL == "" {
			return "Unknown"
		}
		return g.ECOURL
	}
	cpls := make(map[string][]float64)
	for _, row := range rows {
		if row.Analysis.CPL != nil {
			key := label(row.Game)
			cpls[key] = append(cpls[key], float64(*row.Analysis.CPL))
		}
	}

	index := make(map[string]int)
	out := []OpeningStats{}
	for i := range games {
		key := label(&games[i])
		j, ok := index[key]
		if !ok {
			j = len(out)
			index[key] = j
			out = append(out, OpeningStats{Opening: key})
		}
		o := &out[j]
		o.Games++
		switch GameOutcome(&games[i], player.Username) {
		case OutcomeWin:
			o.Wins++
		case OutcomeLoss:
			o.Losses++
		case OutcomeDraw:
			o.Draws++
		}
	}
	for i := range out {
		out[i].WinRate = ratio(out[i].Wins, out[i].Games)
		out[i].AvgCPL = mean(cpls[out[i].Opening])
	}
	slices.SortStableFunc(out, func(x, y OpeningStats) int {
		if c := cmp.Compare(y.Games, x.Games); c != 0 {
			return c
		}
		return cmp.Compare(x.Opening, y.Opening)
	})
	return out, nil
}

// TimeInsights relates the player's clock to move quality.
type TimeInsights struct {
	ThresholdMS         int      `json:"threshold_ms"`
	AvgTimeSpentMS      *float64 `json:"avg_time_spent_ms"`
	TimeTroubleMoves    int      `json:"time_trouble_moves"`
	TimeTroubleBlunders int      `json:"time_trouble_blunders"`
	AvgCPLTimeTrouble   *float64 `json:"avg_cpl_time_trouble"`
	AvgCPLNormal        *float64 `json:"avg_cpl_normal"`
}

// TimeInsights computes clock statistics over all of the player's moves and
// quality statistics over those analyzed under version. A move is in time
// trouble when its clock is at most thresholdMS; non-positive thresholds
// default to TimeTroubleMS.
func (b *Builder) TimeInsights(ctx context.Context, username, version string, thresholdMS int) (*TimeInsights, error) {
	if thresholdMS <= 0 {
		thresholdMS = TimeTroubleMS
	}
	player, version, err := b.resolve(ctx, username, version)
	if err != nil {
		return nil, err
	}
	moves, err := b.repo.PlayerMoves(ctx, repository.MoveQuery{PlayerID: player.ID, Username: player.Username})
	if err != nil {
		return nil, err
	}
	inTrouble := func(m *repository.Move) bool {
		return m.ClockRemainingMS != nil && *m.ClockRemainingMS <= thresholdMS
	}

	out := &TimeInsights{ThresholdMS: thresholdMS}
	var spent []float64
	for i := range moves {
		m := &moves[i].Move
		if m.TimeSpentMS != nil {
			spent = append(spent, float64(*m.TimeSpentMS))
		}
		if inTrouble(m) {
			out.TimeTroubleMoves++
		}
	}
	out.AvgTimeSpentMS = mean(spent)

	rows, err := b.analyzedMoves(ctx, player, version)
	if err != nil {
		return nil, err
	}
	var trouble, normal []float64
	for _, row := range rows {
		tt := inTrouble(&row.Move)
		class := analysis.Classification(row.Analysis.Classification)
		if tt && class.AtLeast(analysis.Mistake) {
			out.TimeTroubleBlunders++
		}
		if row.Analysis.CPL == nil {
			continue
		}
		if tt {
			trouble = append(trouble, float64(*row.Analysis.CPL))
		} else {
			normal = append(normal, float64(*row.Analysis.CPL))
		}
	}
	out.AvgCPLTimeTrouble = mean(trouble)
	out.AvgCPLNormal = mean(normal)
	return out, nil
}

func (b *Builder) resolve(ctx context.Context, username, version string) (*repository.Player, string, error) {
	player, err := repository.LookupPlayer(ctx, b.repo, username)
	if err != nil {
		return nil, "", err
	}
	version, err = repository.ResolveVersion(ctx, b.repo, player.ID, version)
	if err != nil {
		return nil, "", err
	}
	return player, version, nil
}

// analyzedMoves returns the player's moves analyzed under version, or none
// when version is empty.
func (b *Builder) analyzedMoves(ctx context.Context, player *repository.Player, version string) ([]repository.MoveRow, error) {
	if version == "" {
		return nil, nil
	}
	return b.repo.PlayerMoves(ctx, repository.MoveQuery{
		PlayerID: player.ID,
		Username: player.Username,
		Version:  version,
	})
}
