// Package stats provides a unified interface for collecting metrics.
package stats

// Metric names emitted by the analysis pipeline.
const (
	// Pipeline metrics.
	MetricGamesParsed   = "coach_games_parsed_total"
	MetricMovesAnalyzed = "coach_moves_analyzed_total"
	MetricMovesSkipped  = "coach_moves_skipped_total"
	MetricGamesFailed   = "coach_games_failed_total"

	// Engine metrics.
	MetricEngineEvaluations = "coach_engine_evaluations_total"
	MetricEngineEvalMS      = "coach_engine_eval_ms"

	// Position cache metrics.
	MetricCacheHits   = "coach_position_cache_hits_total"
	MetricCacheMisses = "coach_position_cache_misses_total"
	MetricCacheSize   = "coach_position_cache_size"

	MetricPatternsRefreshed     = "coach_patterns_refreshed_total"
	MetricSnapshotShardsWritten = "coach_snapshot_shards_written_total"

	// Snapshot lookup metrics.
	MetricSnapshotLookups      = "coach_snapshot_lookups_total"
	MetricSnapshotMisses       = "coach_snapshot_misses_total"
	MetricSnapshotShardFetches = "coach_snapshot_shard_fetches_total"
)

var help = map[string]string{
	MetricGamesParsed:           "Games whose PGN was replayed into moves.",
	MetricMovesAnalyzed:         "Moves that received a fresh analysis.",
	MetricMovesSkipped:          "Moves skipped because an analysis already existed.",
	MetricGamesFailed:           "Games whose batch analysis failed and was rolled back.",
	MetricEngineEvaluations:     "Positions searched by the engine.",
	MetricEngineEvalMS:          "Engine search latency in milliseconds.",
	MetricCacheHits:             "Position cache hits.",
	MetricCacheMisses:           "Position cache misses.",
	MetricCacheSize:             "Entries held by the in-process position cache.",
	MetricPatternsRefreshed:     "Pattern refreshes per player and analysis version.",
	MetricSnapshotShardsWritten: "Snapshot shards written by the exporter.",
	MetricSnapshotLookups:       "Positions looked up in an evaluation snapshot.",
	MetricSnapshotMisses:        "Snapshot lookups that found no record.",
	MetricSnapshotShardFetches:  "Snapshot shards read from storage.",
}

// Help returns the description of a known metric, or the name itself.
func Help(name string) string {
	if h, ok := help[name]; ok {
		return h
	}
	return name
}

// Collector defines the interface for collecting metrics.
type Collector interface {
	// IncCounter increments a counter metric by delta.
	IncCounter(name string, delta int64)

	// SetGauge sets a gauge metric to value.
	SetGauge(name string, value int64)

	// ObserveHistogram records a value in a histogram metric.
	ObserveHistogram(name string, value float64)
}
