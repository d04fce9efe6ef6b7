// Package lookup implements engine.Evaluator over an exported evaluation
// snapshot. Positions missing from the snapshot evaluate to an empty
// evaluation. Results are stored under a "snapshot" analysis version keyed by
// the snapshot id, apart from any live engine version.
package lookup

import (
	"context"
	"errors"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/discochess/coach/internal/engine"
	"github.com/discochess/coach/internal/fen"
	"github.com/discochess/coach/internal/search"
	"github.com/discochess/coach/internal/shard"
	"github.com/discochess/coach/internal/shard/shards"
	"github.com/discochess/coach/internal/snapshot"
	"github.com/discochess/coach/internal/stats"
	"github.com/discochess/coach/internal/store"
)

// Compile-time check that Evaluator implements engine.Evaluator.
var _ engine.Evaluator = (*Evaluator)(nil)

// DefaultCacheShards is the number of parsed shards kept in memory.
const DefaultCacheShards = 64

// EngineName is the evaluator name reported in Metadata.
const EngineName = "snapshot"

// Evaluator serves evaluations from a snapshot store. Calls are serialized.
type Evaluator struct {
	store       store.Store
	cacheShards int
	logger      *zap.Logger
	stats       stats.Collector

	mu       sync.Mutex
	manifest *snapshot.Manifest
	strategy shard.Strategy
	shards   *lru.Cache[int, *search.Shard]
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithCacheShards sets how many parsed shards are kept in memory.
func WithCacheShards(n int) Option {
	return func(e *Evaluator) { e.cacheShards = n }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Evaluator) { e.logger = logger.Named("engine.lookup") }
}

// WithStats sets the metrics collector.
func WithStats(collector stats.Collector) Option {
	return func(e *Evaluator) { e.stats = collector }
}

// New creates an evaluator over s. The manifest is not read until Start.
func New(s store.Store, opts ...Option) *Evaluator {
	e := &Evaluator{
		store:       s,
		cacheShards: DefaultCacheShards,
		logger:      zap.NewNop(),
		stats:       stats.NewNoop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start reads the manifest. The reported version is the snapshot id; the
// search limits are those of the engine that produced the snapshot.
func (e *Evaluator) Start(ctx context.Context) (engine.Metadata, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.manifest != nil {
		return metadata(e.manifest), nil
	}
	m, err := snapshot.ReadManifest(ctx, e.store)
	if err != nil {
		return engine.Metadata{}, fmt.Errorf("%w: %w", engine.ErrEngineUnavailable, err)
	}
	strategy, err := shards.ByName(m.Strategy)
	if err != nil {
		return engine.Metadata{}, fmt.Errorf("%w: %w", engine.ErrEngineUnavailable, err)
	}
	cache, err := lru.New[int, *search.Shard](max(e.cacheShards, 1))
	if err != nil {
		return engine.Metadata{}, fmt.Errorf("creating shard cache: %w", err)
	}

	e.manifest, e.strategy, e.shards = m, strategy, cache
	e.logger.Info("opened snapshot",
		zap.String("snapshot_id", m.SnapshotID),
		zap.String("analysis_version", m.AnalysisVersion),
		zap.Int64("records", m.RecordCount),
	)
	return metadata(m), nil
}

func metadata(m *snapshot.Manifest) engine.Metadata {
	return engine.Metadata{
		Name:    EngineName,
		Version: m.SnapshotID,
		Depth:   m.Engine.Depth,
		TimeMS:  m.Engine.TimeMS,
		MultiPV: m.Engine.MultiPV,
	}
}

// Analyze returns the snapshot evaluation of position, or an evaluation
// without lines when the snapshot does not hold it.
func (e *Evaluator) Analyze(ctx context.Context, position string) (engine.Evaluation, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.manifest == nil {
		return engine.Evaluation{}, engine.ErrNotInitialized
	}
	key, err := fen.Normalize(position)
	if err != nil {
		return engine.Evaluation{}, fmt.Errorf("%w: %w", engine.ErrEngineUnavailable, err)
	}
	e.stats.IncCounter(stats.MetricSnapshotLookups, 1)

	sh, err := e.shard(ctx, e.strategy.ShardID(key, e.manifest.TotalShards))
	if errors.Is(err, store.ErrNotFound) {
		return e.miss(key), nil
	}
	if err != nil {
		return engine.Evaluation{}, fmt.Errorf("%w: %w", engine.ErrEngineUnavailable, err)
	}

	record, err := sh.Find(key)
	if errors.Is(err, search.ErrNotFound) {
		return e.miss(key), nil
	}
	if err != nil {
		return engine.Evaluation{}, fmt.Errorf("%w: %w", engine.ErrEngineUnavailable, err)
	}
	return toEvaluation(record), nil
}

func (e *Evaluator) miss(key string) engine.Evaluation {
	e.stats.IncCounter(stats.MetricSnapshotMisses, 1)
	e.logger.Debug("position not in snapshot", zap.String("fen", key))
	return engine.NewEvaluation(nil)
}

// shard returns the parsed shard, reading it on a cache miss.
func (e *Evaluator) shard(ctx context.Context, id int) (*search.Shard, error) {
	if sh, ok := e.shards.Get(id); ok {
		return sh, nil
	}
	e.stats.IncCounter(stats.MetricSnapshotShardFetches, 1)
	data, err := e.store.ReadShard(ctx, id)
	if err != nil {
		return nil, err
	}
	sh := search.Parse(data)
	e.shards.Add(id, sh)
	return sh, nil
}

func toEvaluation(r *search.EvalRecord) engine.Evaluation {
	if len(r.Evals) == 0 {
		return engine.NewEvaluation(nil)
	}
	best := r.Evals[0]
	lines := make([]engine.Line, 0, len(best.PVs))
	for _, pv := range best.PVs {
		lines = append(lines, engine.Line{CP: pv.CP, Mate: pv.Mate, PV: pv.Line, Depth: best.Depth})
	}
	return engine.NewEvaluation(lines)
}

// Stop forgets the manifest and drops cached shards. The store stays open.
func (e *Evaluator) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.manifest, e.strategy, e.shards = nil, nil, nil
	return nil
}
