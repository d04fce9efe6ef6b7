// Package pipeline drives move extraction, position evaluation and move
// judgement across a game and across a player's games.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/discochess/coach/internal/analysis"
	"github.com/discochess/coach/internal/engine"
	"github.com/discochess/coach/internal/fen"
	"github.com/discochess/coach/internal/poscache"
	"github.com/discochess/coach/internal/repository"
	"github.com/discochess/coach/internal/stats"
)

// PositionEvaluator evaluates positions under one analysis version.
// *positions.Adapter implements it.
type PositionEvaluator interface {
	Metadata() (engine.Metadata, error)
	Evaluate(ctx context.Context, store repository.PositionStore, fen string, force bool) (*repository.EvaluatedPosition, error)
}

// Options controls an analysis run.
type Options struct {
	// Force re-evaluates positions and overwrites existing analyses.
	Force bool

	// MaxPlies limits analysis to plies 1..MaxPlies. Zero means no limit.
	MaxPlies int `validate:"gte=0"`
}

// GameResult summarizes the analysis of one game.
type GameResult struct {
	GameID          uint   `json:"game_id"`
	AnalysisVersion string `json:"analysis_version"`
	EngineName      string `json:"engine_name"`
	EngineVersion   string `json:"engine_version"`
	Depth           int    `json:"analysis_depth"`
	TimeMS          int    `json:"analysis_time_ms"`
	MultiPV         int    `json:"analysis_multipv"`
	MovesAnalyzed   int    `json:"moves_analyzed"`
	MovesSkipped    int    `json:"moves_skipped"`
}

// BatchResult summarizes the analysis of a player's games.
type BatchResult struct {
	RunID           string `json:"run_id"`
	AnalysisVersion string `json:"analysis_version"`
	EngineName      string `json:"engine_name"`
	EngineVersion   string `json:"engine_version"`
	Depth           int    `json:"analysis_depth"`
	TimeMS          int    `json:"analysis_time_ms"`
	MultiPV         int    `json:"analysis_multipv"`
	GamesTotal      int    `json:"games_total"`
	GamesAnalyzed   int    `json:"games_analyzed"`
	GamesSkipped    int    `json:"games_skipped"`
	GamesFailed     int    `json:"games_failed"`
	MovesAnalyzed   int    `json:"moves_analyzed"`
	MovesSkipped    int    `json:"moves_skipped"`
}

var validate = validator.New()

// Analyzer runs the analysis pipeline against a repository.
type Analyzer struct {
	repo      repository.Repository
	cache     *poscache.Store
	logger    *zap.Logger
	collector stats.Collector
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(a *Analyzer) { a.logger = logger.Named("pipeline") }
}

// WithStats sets the metrics collector.
func WithStats(c stats.Collector) Option {
	return func(a *Analyzer) { a.collector = c }
}

// WithPositionCache puts a cache backend in front of the position store.
func WithPositionCache(backend poscache.Backend) Option {
	return func(a *Analyzer) { a.cache = poscache.New(a.repo, backend) }
}

// NewAnalyzer creates an analyzer over repo.
func NewAnalyzer(repo repository.Repository, opts ...Option) *Analyzer {
	a := &Analyzer{
		repo:      repo,
		logger:    zap.NewNop(),
		collector: stats.NewNoop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AnalyzeGame analyzes one game inside a transaction, parsing it first when
// it has no moves.
func (a *Analyzer) AnalyzeGame(ctx context.Context, ev PositionEvaluator, gameID uint, opts Options) (GameResult, error) {
	if err := validateOptions(opts); err != nil {
		return GameResult{}, err
	}
	var res GameResult
	err := a.withinGameTx(ctx, func(tx repository.Repository, store repository.PositionStore) error {
		game, err := tx.FindGame(ctx, gameID)
		if err != nil {
			return err
		}
		res, err = a.analyzeGame(ctx, tx, store, ev, game, opts)
		return err
	})
	if err != nil {
		return GameResult{}, err
	}
	return res, nil
}

// AnalyzeAll analyzes every game of username, most recent first. A failing
// game is rolled back and counted; the batch continues.
func (a *Analyzer) AnalyzeAll(ctx context.Context, ev PositionEvaluator, username string, opts Options) (BatchResult, error) {
	if err := validateOptions(opts); err != nil {
		return BatchResult{}, err
	}
	player, err := repository.LookupPlayer(ctx, a.repo, username)
	if err != nil {
		return BatchResult{}, err
	}
	meta, err := ev.Metadata()
	if err != nil {
		return BatchResult{}, err
	}

	games, err := a.repo.ListGames(ctx, repository.GameQuery{PlayerID: player.ID})
	if err != nil {
		return BatchResult{}, err
	}

	res := BatchResult{
		RunID:           uuid.NewString(),
		AnalysisVersion: meta.AnalysisVersion(),
		EngineName:      meta.Name,
		EngineVersion:   meta.Version,
		Depth:           meta.Depth,
		TimeMS:          meta.TimeMS,
		MultiPV:         meta.MultiPV,
		GamesTotal:      len(games),
	}
	logger := a.logger.With(zap.String("runID", res.RunID), zap.String("username", player.Username))
	logger.Info("starting batch analysis",
		zap.Int("games", len(games)),
		zap.String("analysisVersion", res.AnalysisVersion),
	)

	for i := range games {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		game := &games[i]
		if strings.TrimSpace(game.PGN) == "" {
			res.GamesSkipped++
			continue
		}

		var gr GameResult
		err := a.withinGameTx(ctx, func(tx repository.Repository, store repository.PositionStore) error {
			var err error
			gr, err = a.analyzeGame(ctx, tx, store, ev, game, opts)
			return err
		})
		if err != nil {
			res.GamesFailed++
			a.collector.IncCounter(stats.MetricGamesFailed, 1)
			logger.Warn("game analysis failed", zap.Uint("gameID", game.ID), zap.Error(err))
			continue
		}

		res.MovesAnalyzed += gr.MovesAnalyzed
		res.MovesSkipped += gr.MovesSkipped
		if gr.MovesAnalyzed > 0 {
			res.GamesAnalyzed++
		} else {
			res.GamesSkipped++
		}
	}

	logger.Info("finished batch analysis",
		zap.Int("analyzed", res.GamesAnalyzed),
		zap.Int("skipped", res.GamesSkipped),
		zap.Int("failed", res.GamesFailed),
		zap.Int("moves", res.MovesAnalyzed),
	)
	return res, nil
}

// withinGameTx runs fn in a transaction together with the position store to
// evaluate through. Cache entries written by fn are published only once the
// transaction has committed.
func (a *Analyzer) withinGameTx(ctx context.Context, fn func(tx repository.Repository, store repository.PositionStore) error) error {
	var view *poscache.Store
	err := a.repo.WithinTx(ctx, func(tx repository.Repository) error {
		if a.cache == nil {
			return fn(tx, tx)
		}
		view = a.cache.Begin(tx)
		return fn(tx, view)
	})
	if err != nil {
		return err
	}
	if view != nil {
		view.Commit(ctx)
	}
	return nil
}

func (a *Analyzer) analyzeGame(ctx context.Context, tx repository.Repository, store repository.PositionStore, ev PositionEvaluator, game *repository.Game, opts Options) (GameResult, error) {
	meta, err := ev.Metadata()
	if err != nil {
		return GameResult{}, err
	}
	version := meta.AnalysisVersion()

	moves, err := tx.ListMoves(ctx, game.ID)
	if err != nil {
		return GameResult{}, err
	}
	if len(moves) == 0 {
		if _, err := a.parseGame(ctx, tx, game, false); err != nil {
			return GameResult{}, err
		}
		if moves, err = tx.ListMoves(ctx, game.ID); err != nil {
			return GameResult{}, err
		}
	}

	// Positions evaluated during this game; with force each is searched once.
	seen := make(map[string]*repository.EvaluatedPosition)
	evaluate := func(position string) (*repository.EvaluatedPosition, error) {
		if pos, ok := seen[position]; ok {
			return pos, nil
		}
		pos, err := ev.Evaluate(ctx, store, position, opts.Force)
		if err != nil {
			return nil, err
		}
		seen[position] = pos
		return pos, nil
	}

	res := GameResult{
		GameID:          game.ID,
		AnalysisVersion: version,
		EngineName:      meta.Name,
		EngineVersion:   meta.Version,
		Depth:           meta.Depth,
		TimeMS:          meta.TimeMS,
		MultiPV:         meta.MultiPV,
	}
	for i := range moves {
		move := &moves[i]
		if opts.MaxPlies > 0 && move.Ply > opts.MaxPlies {
			break
		}

		_, err := tx.FindAnalysis(ctx, move.ID, version)
		switch {
		case err == nil && !opts.Force:
			res.MovesSkipped++
			continue
		case err != nil && !errors.Is(err, repository.ErrNotFound):
			return GameResult{}, err
		}

		before, err := evaluate(move.FENBefore)
		if err != nil {
			return GameResult{}, fmt.Errorf("evaluating ply %d: %w", move.Ply, err)
		}
		after, err := evaluate(move.FENAfter)
		if err != nil {
			return GameResult{}, fmt.Errorf("evaluating ply %d: %w", move.Ply, err)
		}

		row, err := judge(move, before, after)
		if err != nil {
			return GameResult{}, err
		}
		row.AnalysisVersion = version
		if err := tx.UpsertAnalysis(ctx, row); err != nil {
			return GameResult{}, fmt.Errorf("storing analysis of ply %d: %w", move.Ply, err)
		}
		res.MovesAnalyzed++
		a.logger.Debug("analyzed move",
			zap.Uint("gameID", game.ID),
			zap.Int("ply", move.Ply),
			zap.String("classification", row.Classification),
		)
	}

	a.collector.IncCounter(stats.MetricMovesAnalyzed, int64(res.MovesAnalyzed))
	a.collector.IncCounter(stats.MetricMovesSkipped, int64(res.MovesSkipped))
	a.logger.Info("analyzed game",
		zap.Uint("gameID", game.ID),
		zap.String("analysisVersion", version),
		zap.Int("analyzed", res.MovesAnalyzed),
		zap.Int("skipped", res.MovesSkipped),
	)
	return res, nil
}

// judge builds the analysis row of a move from its surrounding evaluations.
// The mover is the side to move in the position before the move.
func judge(move *repository.Move, before, after *repository.EvaluatedPosition) (*repository.MoveAnalysis, error) {
	moverIsWhite, err := fen.WhiteToMove(move.FENBefore)
	if err != nil {
		return nil, fmt.Errorf("ply %d: %w", move.Ply, err)
	}
	b := analysis.Score{CP: before.EvalCP, Mate: before.EvalMate}
	af := analysis.Score{CP: after.EvalCP, Mate: after.EvalMate}
	cpl := analysis.CPL(b, af, moverIsWhite)

	return &repository.MoveAnalysis{
		MoveID:         move.ID,
		EvalBeforeCP:   before.EvalCP,
		EvalBeforeMate: before.EvalMate,
		EvalAfterCP:    after.EvalCP,
		EvalAfterMate:  after.EvalMate,
		CPL:            cpl,
		BestMoveUCI:    analysis.BestMove(before.PV),
		Classification: string(analysis.Classify(cpl, move.Ply)),
		Tags:           datatypes.JSONSlice[string](analysis.Tags(b, af, moverIsWhite)),
	}, nil
}

func validateOptions(opts Options) error {
	if err := validate.Struct(opts); err != nil {
		return &repository.ValidationError{Field: "max_plies", Reason: "Max plies must not be negative.", Value: opts.MaxPlies}
	}
	return nil
}
