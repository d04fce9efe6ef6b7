// Package memory implements an in-process position cache backend.
package memory

import (
	"context"
	"sync/atomic"

	"github.com/discochess/coach/internal/poscache"
	"github.com/discochess/coach/internal/poscache/cachestrategy"
	"github.com/discochess/coach/internal/repository"
	"github.com/discochess/coach/internal/stats"
)

// Compile-time check that Backend implements poscache.Backend.
var _ poscache.Backend = (*Backend)(nil)

// Backend is a thread-safe in-memory cache backend. Entries are stored by
// value so callers cannot mutate cached rows.
type Backend struct {
	strategy  cachestrategy.Strategy[string, repository.EvaluatedPosition]
	collector stats.Collector

	hits   atomic.Int64
	misses atomic.Int64
}

// New creates a new memory backend with the given eviction strategy.
// The collector is optional; if nil, a no-op collector is used.
func New(strategy cachestrategy.Strategy[string, repository.EvaluatedPosition], collector stats.Collector) *Backend {
	if collector == nil {
		collector = stats.NewNoop()
	}
	return &Backend{
		strategy:  strategy,
		collector: collector,
	}
}

// Get retrieves a position from the cache.
func (b *Backend) Get(_ context.Context, key string) (*repository.EvaluatedPosition, bool) {
	val, ok := b.strategy.Get(key)
	if ok {
		b.hits.Add(1)
		b.collector.IncCounter(stats.MetricCacheHits, 1)
		return &val, true
	}
	b.misses.Add(1)
	b.collector.IncCounter(stats.MetricCacheMisses, 1)
	return nil, false
}

// Set stores a copy of pos in the cache.
func (b *Backend) Set(_ context.Context, key string, pos *repository.EvaluatedPosition) {
	if pos == nil {
		return
	}
	b.strategy.Add(key, *pos)
	b.collector.SetGauge(stats.MetricCacheSize, int64(b.strategy.Len()))
}

// Stats returns current cache statistics.
func (b *Backend) Stats() poscache.Stats {
	return poscache.Stats{
		Hits:   b.hits.Load(),
		Misses: b.misses.Load(),
		Size:   b.strategy.Len(),
	}
}
