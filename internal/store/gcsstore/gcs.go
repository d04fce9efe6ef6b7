// Package gcsstore keeps snapshots in a Google Cloud Storage bucket.
package gcsstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"

	"github.com/discochess/coach/internal/codec"
	"github.com/discochess/coach/internal/store"
)

var (
	_ store.Store  = (*Store)(nil)
	_ store.Writer = (*Store)(nil)
)

// Store reads and writes one snapshot under a bucket prefix.
type Store struct {
	client *storage.Client
	bucket *storage.BucketHandle
	layout store.Layout
	codec  codec.Codec
}

// Option configures a Store.
type Option func(*Store)

// WithPrefix sets the key prefix of the snapshot.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.layout = store.NewLayout(prefix, s.codec.Extension())
	}
}

// New opens the snapshot stored in bucket using application default
// credentials.
func New(ctx context.Context, bucket string, c codec.Codec, opts ...Option) (*Store, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating GCS client: %w", err)
	}
	return newStore(client, bucket, c, opts...), nil
}

func newStore(client *storage.Client, bucket string, c codec.Codec, opts ...Option) *Store {
	s := &Store{
		client: client,
		codec:  c,
		layout: store.NewLayout("", c.Extension()),
	}
	if client != nil {
		s.bucket = client.Bucket(bucket)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ReadShard downloads and decompresses a shard.
func (s *Store) ReadShard(ctx context.Context, shardID int) ([]byte, error) {
	compressed, err := s.get(ctx, s.layout.Shard(shardID))
	if err != nil {
		return nil, err
	}
	return codec.Decompress(s.codec, bytes.NewReader(compressed))
}

// ReadObject downloads a metadata object.
func (s *Store) ReadObject(ctx context.Context, name string) ([]byte, error) {
	return s.get(ctx, s.layout.Object(name))
}

func (s *Store) get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r, err := s.bucket.Object(key).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("opening gs object %s: %w", key, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading gs object %s: %w", key, err)
	}
	return data, nil
}

// WriteShard compresses and uploads a shard.
func (s *Store) WriteShard(ctx context.Context, shardID int, data []byte) error {
	compressed, err := codec.Compress(s.codec, data)
	if err != nil {
		return err
	}
	return s.put(ctx, s.layout.Shard(shardID), compressed)
}

// WriteObject uploads a metadata object.
func (s *Store) WriteObject(ctx context.Context, name string, data []byte) error {
	return s.put(ctx, s.layout.Object(name), data)
}

// put uploads data in a single request.
func (s *Store) put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w := s.bucket.Object(key).NewWriter(ctx)
	w.ContentType = store.ContentType(key)
	w.ChunkSize = 0
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("writing gs object %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalizing gs object %s: %w", key, err)
	}
	return nil
}

// Close closes the client.
func (s *Store) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}
