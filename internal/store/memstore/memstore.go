// Package memstore provides an in-memory store implementation for testing.
package memstore

import (
	"context"
	"sync"

	"github.com/discochess/coach/internal/store"
)

// Compile-time checks that Store implements the store interfaces.
var (
	_ store.Store  = (*Store)(nil)
	_ store.Writer = (*Store)(nil)
)

// Store is an in-memory store for testing. Shards are kept uncompressed.
type Store struct {
	mu      sync.RWMutex
	shards  map[int][]byte
	objects map[string][]byte
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		shards:  make(map[int][]byte),
		objects: make(map[string][]byte),
	}
}

// SetShard sets the data for a shard (for test setup).
// The data is copied to prevent caller mutations from affecting the store.
func (s *Store) SetShard(shardID int, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shards[shardID] = clone(data)
}

// ReadShard reads a shard from memory.
func (s *Store) ReadShard(ctx context.Context, shardID int) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.shards[shardID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return data, nil
}

// ReadObject reads a metadata object from memory.
func (s *Store) ReadObject(ctx context.Context, name string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.objects[name]
	if !ok {
		return nil, store.ErrNotFound
	}
	return data, nil
}

// WriteShard stores a copy of data as the given shard.
func (s *Store) WriteShard(ctx context.Context, shardID int, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.SetShard(shardID, data)
	return nil
}

// WriteObject stores a copy of data under name.
func (s *Store) WriteObject(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[name] = clone(data)
	return nil
}

// ShardCount returns the number of stored shards.
func (s *Store) ShardCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.shards)
}

// Close is a no-op for the memory store.
func (s *Store) Close() error {
	return nil
}

func clone(data []byte) []byte {
	copied := make([]byte, len(data))
	copy(copied, data)
	return copied
}
