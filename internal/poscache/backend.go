// Package poscache caches evaluated positions in front of a
// repository.PositionStore.
package poscache

import (
	"context"

	"github.com/discochess/coach/internal/repository"
)

// Backend defines the interface for cache storage backends.
// Implementations handle storage (process memory, Redis) and eviction.
type Backend interface {
	// Get retrieves a cached position. Returns nil, false if not found.
	Get(ctx context.Context, key string) (*repository.EvaluatedPosition, bool)

	// Set stores a position in the cache.
	Set(ctx context.Context, key string, pos *repository.EvaluatedPosition)

	// Stats returns cache statistics.
	Stats() Stats
}

// Stats contains cache statistics.
type Stats struct {
	Hits   int64
	Misses int64
	Size   int // Current number of entries, when the backend tracks it
}

// HitRate returns the cache hit rate as a percentage.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}

// Key returns the cache key of a position under an analysis version.
func Key(fingerprint, version string) string {
	return fingerprint + "|" + version
}
