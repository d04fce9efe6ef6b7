// Package coach analyzes a player's chess games: it extracts moves from PGN,
// evaluates every position with a chess engine, judges the quality of each
// move and mines recurring weaknesses and long-term trends.
//
// Example usage:
//
//	repo, err := gormrepo.Open("sqlite", "coach.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	client, err := coach.New(
//	    coach.WithRepository(repo),
//	    coach.WithEvaluator(stockfish),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	batch, err := client.AnalyzeAll(ctx, "alice", coach.AnalyzeOptions{})
package coach

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/discochess/coach/internal/engine"
	"github.com/discochess/coach/internal/insights"
	"github.com/discochess/coach/internal/patterns"
	"github.com/discochess/coach/internal/pipeline"
	"github.com/discochess/coach/internal/poscache"
	"github.com/discochess/coach/internal/positions"
	"github.com/discochess/coach/internal/repository"
	"github.com/discochess/coach/internal/snapshot"
	"github.com/discochess/coach/internal/stats"
	"github.com/discochess/coach/internal/store"
)

// Result types re-exported from the pipeline stages.
type (
	ParseResult    = pipeline.ParseResult
	AnalyzeOptions = pipeline.Options
	GameResult     = pipeline.GameResult
	BatchResult    = pipeline.BatchResult
	PatternResult  = patterns.Result
	DeepInsights   = insights.DeepInsights
	Overview       = insights.Overview
	OpeningStats   = insights.OpeningStats
	TimeInsights   = insights.TimeInsights
	Manifest       = snapshot.Manifest
	Position       = repository.EvaluatedPosition
)

// DeepOptions selects the games of a deep insights report.
type DeepOptions struct {
	insights.DeepOptions

	// Anonymize replaces opponent usernames with stable hashes.
	Anonymize bool
}

// Client runs the analysis pipeline against one repository.
// A Client is safe for concurrent use by multiple goroutines; evaluator
// sessions are serialized by the position adapter.
type Client struct {
	repo      repository.Repository
	positions repository.PositionStore
	cache     poscache.Backend
	adapter   *positions.Adapter
	analyzer  *pipeline.Analyzer
	miner     *patterns.Miner
	insights  *insights.Builder
	stats     stats.Collector
	logger    *zap.Logger
	closed    atomic.Bool
}

// New creates a new Client with the given options.
// A repository is required.
func New(opts ...Option) (*Client, error) {
	cfg := defaultOptions()
	for _, opt := range opts {
		opt.apply(&cfg)
	}
	if cfg.repo == nil {
		return nil, ErrNoRepository
	}

	logger := cfg.logger.Named("coach")
	analyzerOpts := []pipeline.Option{
		pipeline.WithLogger(logger),
		pipeline.WithStats(cfg.stats),
	}
	var positionStore repository.PositionStore = cfg.repo
	if cfg.cache != nil {
		analyzerOpts = append(analyzerOpts, pipeline.WithPositionCache(cfg.cache))
		positionStore = poscache.New(cfg.repo, cfg.cache)
	}

	c := &Client{
		repo:      cfg.repo,
		positions: positionStore,
		cache:     cfg.cache,
		analyzer:  pipeline.NewAnalyzer(cfg.repo, analyzerOpts...),
		miner:     patterns.New(cfg.repo, patterns.WithLogger(logger), patterns.WithStats(cfg.stats)),
		insights:  insights.New(cfg.repo, insights.WithLogger(logger)),
		stats:     cfg.stats,
		logger:    logger,
	}
	if cfg.evaluator != nil {
		c.adapter = positions.New(cfg.evaluator, positions.WithLogger(logger))
	}

	c.logger.Debug("client initialized",
		zap.Bool("evaluator", c.adapter != nil),
		zap.Bool("positionCache", c.cache != nil),
	)
	return c, nil
}

// ParseGame extracts and stores the moves of a game. See pipeline.Analyzer.ParseGame.
func (c *Client) ParseGame(ctx context.Context, gameID uint, force bool) (ParseResult, error) {
	if c.closed.Load() {
		return ParseResult{}, ErrClosed
	}
	return c.analyzer.ParseGame(ctx, gameID, force)
}

// AnalyzeGame evaluates and judges every move of a game in one evaluator session.
func (c *Client) AnalyzeGame(ctx context.Context, gameID uint, opts AnalyzeOptions) (GameResult, error) {
	var res GameResult
	err := c.session(ctx, func(engine.Metadata) error {
		var err error
		res, err = c.analyzer.AnalyzeGame(ctx, c.adapter, gameID, opts)
		return err
	})
	return res, err
}

// AnalyzeAll analyzes every game of username in one evaluator session.
func (c *Client) AnalyzeAll(ctx context.Context, username string, opts AnalyzeOptions) (BatchResult, error) {
	var res BatchResult
	err := c.session(ctx, func(engine.Metadata) error {
		var err error
		res, err = c.analyzer.AnalyzeAll(ctx, c.adapter, username, opts)
		return err
	})
	return res, err
}

// Eval evaluates one position under the configured evaluator, serving and
// filling the position cache.
func (c *Client) Eval(ctx context.Context, fen string, force bool) (*Position, error) {
	var pos *Position
	err := c.session(ctx, func(engine.Metadata) error {
		var err error
		pos, err = c.adapter.Evaluate(ctx, c.positions, fen, force)
		return err
	})
	return pos, err
}

// Patterns refreshes and lists the recurring weaknesses of username under
// version, or under the latest analysis version when version is empty.
func (c *Client) Patterns(ctx context.Context, username, version string) (PatternResult, error) {
	if c.closed.Load() {
		return PatternResult{}, ErrClosed
	}
	return c.miner.List(ctx, username, version)
}

// DeepInsights builds the multi-game report for username.
func (c *Client) DeepInsights(ctx context.Context, username string, opts DeepOptions) (*DeepInsights, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	report, err := c.insights.Deep(ctx, username, opts.DeepOptions)
	if err != nil {
		return nil, err
	}
	if opts.Anonymize {
		report = insights.AnonymizeDeep(report)
	}
	return report, nil
}

// Overview returns totals and averages over username's analyzed moves.
func (c *Client) Overview(ctx context.Context, username, version string) (*Overview, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	return c.insights.Overview(ctx, username, version)
}

// Openings returns per-opening results for username.
func (c *Client) Openings(ctx context.Context, username, version string) ([]OpeningStats, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	return c.insights.Openings(ctx, username, version)
}

// TimeInsights returns clock usage figures for username. A non-positive
// threshold uses the default time trouble threshold.
func (c *Client) TimeInsights(ctx context.Context, username, version string, thresholdMS int) (*TimeInsights, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	return c.insights.TimeInsights(ctx, username, version, thresholdMS)
}

// Import stores the games of a PGN stream for username. See ImportResult.
func (c *Client) Import(ctx context.Context, r io.Reader, username string) (ImportResult, error) {
	if c.closed.Load() {
		return ImportResult{}, ErrClosed
	}
	return importGames(ctx, c.repo, c.logger, r, username)
}

// ExportSnapshot writes every position evaluated under version to w as a
// sharded snapshot and returns its manifest.
func (c *Client) ExportSnapshot(ctx context.Context, w store.Writer, version string, opts ...snapshot.Option) (*Manifest, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	if version == "" {
		return nil, repository.NewValidationError("version", "Analysis version is required.")
	}
	opts = append([]snapshot.Option{snapshot.WithLogger(c.logger), snapshot.WithStats(c.stats)}, opts...)
	return snapshot.NewExporter(c.repo, w, opts...).Export(ctx, version)
}

// Close releases the repository and the position cache.
// After Close, the client should not be used.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}

	var errs []error
	if closer, ok := c.cache.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing position cache: %w", err))
		}
	}
	if err := c.repo.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing repository: %w", err))
	}
	return errors.Join(errs...)
}

// session runs fn inside a started evaluator.
func (c *Client) session(ctx context.Context, fn func(engine.Metadata) error) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if c.adapter == nil {
		return ErrNoEvaluator
	}
	return c.adapter.Session(ctx, fn)
}
