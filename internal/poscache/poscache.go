package poscache

import (
	"context"

	"github.com/discochess/coach/internal/repository"
)

// Compile-time check that Store implements repository.PositionStore.
var _ repository.PositionStore = (*Store)(nil)

// Store wraps a PositionStore with a read-through, write-through cache.
// Misses are not cached; a position becomes cacheable once it is stored.
type Store struct {
	underlying repository.PositionStore
	backend    Backend

	// staged holds cache writes of a transactional view until Commit.
	// It is nil on a store created by New.
	staged map[string]*repository.EvaluatedPosition
}

// New creates a cached store wrapping the given position store.
func New(underlying repository.PositionStore, backend Backend) *Store {
	return &Store{
		underlying: underlying,
		backend:    backend,
	}
}

// FindPosition checks the cache before the underlying store.
func (s *Store) FindPosition(ctx context.Context, fingerprint, version string) (*repository.EvaluatedPosition, error) {
	key := Key(fingerprint, version)
	if pos, ok := s.staged[key]; ok {
		return pos, nil
	}
	if pos, ok := s.backend.Get(ctx, key); ok {
		return pos, nil
	}

	pos, err := s.underlying.FindPosition(ctx, fingerprint, version)
	if err != nil {
		return nil, err
	}
	s.set(ctx, key, pos)
	return pos, nil
}

// UpsertPosition writes to the underlying store, then refreshes the cache.
func (s *Store) UpsertPosition(ctx context.Context, pos *repository.EvaluatedPosition) error {
	if err := s.underlying.UpsertPosition(ctx, pos); err != nil {
		return err
	}
	s.set(ctx, Key(pos.Fingerprint, pos.AnalysisVersion), pos)
	return nil
}

func (s *Store) set(ctx context.Context, key string, pos *repository.EvaluatedPosition) {
	if s.staged != nil {
		s.staged[key] = pos
		return
	}
	s.backend.Set(ctx, key, pos)
}

// ListPositions bypasses the cache.
func (s *Store) ListPositions(ctx context.Context, version string) ([]repository.EvaluatedPosition, error) {
	return s.underlying.ListPositions(ctx, version)
}

// Begin returns a view sharing this cache in front of a transactional
// position store. Reads see committed cache entries and the view's own
// writes; writes reach the shared cache only on Commit, so a rolled-back
// transaction leaves nothing behind. A view is not safe for concurrent use.
func (s *Store) Begin(tx repository.PositionStore) *Store {
	return &Store{
		underlying: tx,
		backend:    s.backend,
		staged:     make(map[string]*repository.EvaluatedPosition),
	}
}

// Commit publishes the staged writes of a view to the shared cache. Call it
// once the transaction has committed.
func (s *Store) Commit(ctx context.Context) {
	for key, pos := range s.staged {
		s.backend.Set(ctx, key, pos)
	}
	clear(s.staged)
}

// Stats returns cache statistics.
func (s *Store) Stats() Stats {
	return s.backend.Stats()
}
