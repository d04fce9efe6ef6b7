// Package snapshot exports the evaluation cache of one analysis version as a
// sharded, sorted JSONL snapshot in the Lichess evaluation database format,
// so positions can later be evaluated without running an engine.
package snapshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/discochess/coach/internal/codec"
	"github.com/discochess/coach/internal/codec/zstdcodec"
	"github.com/discochess/coach/internal/engine"
	"github.com/discochess/coach/internal/fen"
	"github.com/discochess/coach/internal/repository"
	"github.com/discochess/coach/internal/search"
	"github.com/discochess/coach/internal/shard"
	"github.com/discochess/coach/internal/shard/materialshard"
	"github.com/discochess/coach/internal/stats"
	"github.com/discochess/coach/internal/store"
)

// DefaultTotalShards is the default number of shards to create.
const DefaultTotalShards = 256

// ErrNoPositions is returned when the version has no cached evaluations.
var ErrNoPositions = errors.New("snapshot: no positions for analysis version")

// Exporter writes snapshots of the position cache.
type Exporter struct {
	positions    repository.PositionStore
	writer       store.Writer
	codec        codec.Codec
	totalShards  int
	strategy     shard.Strategy
	workersCount int
	progress     ProgressFunc
	logger       *zap.Logger
	collector    stats.Collector
	now          func() time.Time
}

// Option configures the Exporter.
type Option func(*Exporter)

// WithTotalShards sets the number of shards.
func WithTotalShards(n int) Option {
	return func(e *Exporter) { e.totalShards = n }
}

// WithStrategy sets the sharding strategy.
func WithStrategy(s shard.Strategy) Option {
	return func(e *Exporter) { e.strategy = s }
}

// WithCodec records the codec the writer compresses shards with.
func WithCodec(c codec.Codec) Option {
	return func(e *Exporter) { e.codec = c }
}

// WithWorkers sets the number of shards written in parallel.
func WithWorkers(n int) Option {
	return func(e *Exporter) { e.workersCount = n }
}

// WithProgress sets the progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(e *Exporter) { e.progress = fn }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Exporter) { e.logger = logger.Named("snapshot") }
}

// WithStats sets the metrics collector.
func WithStats(c stats.Collector) Option {
	return func(e *Exporter) { e.collector = c }
}

// NewExporter creates an exporter reading positions and writing through w.
func NewExporter(positions repository.PositionStore, w store.Writer, opts ...Option) *Exporter {
	e := &Exporter{
		positions:    positions,
		writer:       w,
		codec:        zstdcodec.New(),
		totalShards:  DefaultTotalShards,
		strategy:     materialshard.New(),
		workersCount: 4,
		logger:       zap.NewNop(),
		collector:    stats.NewNoop(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.totalShards = max(e.totalShards, 1)
	e.workersCount = max(e.workersCount, 1)
	return e
}

// Export writes every position cached under version, then the manifest.
// Positions that differ only in move counters collapse into one record,
// keeping the deepest search.
func (e *Exporter) Export(ctx context.Context, version string) (*Manifest, error) {
	startTime := e.now()

	rows, err := e.positions.ListPositions(ctx, version)
	if err != nil {
		return nil, fmt.Errorf("listing positions: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoPositions, version)
	}

	records := dedupe(rows)
	e.reportProgress(Progress{Phase: PhaseCollect, RecordsRead: int64(len(rows)), StartTime: startTime})

	buckets := make(map[int][][]byte)
	for _, r := range records {
		line, err := r.Encode()
		if err != nil {
			return nil, err
		}
		id := e.strategy.ShardID(r.FEN, e.totalShards)
		buckets[id] = append(buckets[id], line)
	}

	written, err := e.writeShards(ctx, buckets, startTime)
	if err != nil {
		return nil, err
	}

	first := rows[0]
	manifest := &Manifest{
		Version:         FormatVersion,
		SnapshotID:      uuid.NewString(),
		TotalShards:     e.totalShards,
		Strategy:        e.strategy.Name(),
		RecordCount:     written,
		ShardCount:      len(buckets),
		BuiltAt:         e.now().UTC(),
		Compression:     e.codec.Name(),
		AnalysisVersion: version,
		Engine: engine.Metadata{
			Name:    first.EngineName,
			Version: first.EngineVersion,
			Depth:   first.Depth,
			TimeMS:  first.TimeMS,
			MultiPV: first.MultiPV,
		},
	}
	if err := WriteManifest(ctx, e.writer, manifest); err != nil {
		return nil, err
	}

	e.reportProgress(Progress{
		Phase:          PhaseDone,
		RecordsRead:    int64(len(rows)),
		RecordsWritten: written,
		ShardsCreated:  len(buckets),
		ShardsTotal:    e.totalShards,
		StartTime:      startTime,
	})
	e.logger.Debug("wrote manifest",
		zap.String("snapshot_id", manifest.SnapshotID),
		zap.String("version", version),
	)
	return manifest, nil
}

// writeShards sorts and writes the non-empty shards in parallel.
func (e *Exporter) writeShards(ctx context.Context, buckets map[int][][]byte, startTime time.Time) (int64, error) {
	var (
		recordsWritten int64
		shardsCreated  int
		mu             sync.Mutex
		wg             sync.WaitGroup
	)
	sem := make(chan struct{}, e.workersCount)
	errCh := make(chan error, len(buckets))

	for shardID, lines := range buckets {
		wg.Add(1)
		go func(shardID int, lines [][]byte) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			if err := ctx.Err(); err != nil {
				errCh <- err
				return
			}
			if err := e.writer.WriteShard(ctx, shardID, encodeShard(lines)); err != nil {
				errCh <- fmt.Errorf("writing shard %d: %w", shardID, err)
				return
			}
			e.collector.IncCounter(stats.MetricSnapshotShardsWritten, 1)

			mu.Lock()
			recordsWritten += int64(len(lines))
			shardsCreated++
			e.reportProgress(Progress{
				Phase:          PhaseShard,
				RecordsWritten: recordsWritten,
				ShardsCreated:  shardsCreated,
				ShardsTotal:    e.totalShards,
				StartTime:      startTime,
			})
			mu.Unlock()
		}(shardID, lines)
	}

	wg.Wait()
	close(errCh)

	for err := range errCh {
		if err != nil {
			return 0, err
		}
	}
	return recordsWritten, nil
}

func (e *Exporter) reportProgress(p Progress) {
	if e.progress != nil {
		e.progress(p)
	}
}

// encodeShard sorts lines by FEN and joins them as JSONL.
func encodeShard(lines [][]byte) []byte {
	slices.SortFunc(lines, func(a, b []byte) int {
		return bytes.Compare([]byte(search.Key(a)), []byte(search.Key(b)))
	})
	var buf bytes.Buffer
	for _, line := range lines {
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// dedupe converts rows to records keyed by normalized FEN. Rows whose FEN
// cannot be normalized are skipped.
func dedupe(rows []repository.EvaluatedPosition) []*search.EvalRecord {
	type candidate struct {
		row    *repository.EvaluatedPosition
		record *search.EvalRecord
	}
	best := make(map[string]candidate, len(rows))
	for i := range rows {
		row := &rows[i]
		key, err := fen.Normalize(row.FEN)
		if err != nil {
			continue
		}
		cur, ok := best[key]
		if ok && (cur.row.Depth > row.Depth || (cur.row.Depth == row.Depth && cur.row.FEN <= row.FEN)) {
			continue
		}
		best[key] = candidate{row: row, record: Record(key, row)}
	}

	out := make([]*search.EvalRecord, 0, len(best))
	for _, c := range best {
		out = append(out, c.record)
	}
	return out
}

// Record converts a cached evaluation to a snapshot record under key.
func Record(key string, row *repository.EvaluatedPosition) *search.EvalRecord {
	lines := []engine.Line(row.Lines)
	if len(lines) == 0 {
		lines = []engine.Line{{CP: row.EvalCP, Mate: row.EvalMate, PV: row.PV}}
	}
	eval := search.Eval{Depth: row.Depth, PVs: make([]search.PV, 0, len(lines))}
	for _, l := range lines {
		if l.Empty() {
			continue
		}
		eval.PVs = append(eval.PVs, search.PV{CP: l.CP, Mate: l.Mate, Line: l.PV})
		eval.Depth = max(eval.Depth, l.Depth)
	}
	return &search.EvalRecord{FEN: key, Evals: []search.Eval{eval}}
}
