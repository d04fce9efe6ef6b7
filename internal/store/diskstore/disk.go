// Package diskstore keeps snapshots in a local directory.
package diskstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/discochess/coach/internal/codec"
	"github.com/discochess/coach/internal/store"
)

var (
	_ store.Store  = (*Store)(nil)
	_ store.Writer = (*Store)(nil)
)

// Store reads and writes one snapshot below a root directory.
type Store struct {
	root   string
	layout store.Layout
	codec  codec.Codec
}

// New opens an existing snapshot directory.
func New(root string, c codec.Codec) (*Store, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}
	return &Store{
		root:   root,
		layout: store.NewLayout("", c.Extension()),
		codec:  c,
	}, nil
}

// Create makes root and its shard directory if needed, then opens it.
func Create(root string, c codec.Codec) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(root, "shards"), 0o755); err != nil {
		return nil, fmt.Errorf("creating snapshot directory: %w", err)
	}
	return New(root, c)
}

// ReadShard reads and decompresses a shard file.
func (s *Store) ReadShard(ctx context.Context, shardID int) ([]byte, error) {
	compressed, err := s.read(ctx, s.layout.Shard(shardID))
	if err != nil {
		return nil, err
	}
	return codec.Decompress(s.codec, bytes.NewReader(compressed))
}

// ReadObject reads a metadata file at the snapshot root.
func (s *Store) ReadObject(ctx context.Context, name string) ([]byte, error) {
	return s.read(ctx, s.layout.Object(name))
}

func (s *Store) read(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", key, err)
	}
	return data, nil
}

// WriteShard compresses data into a shard file.
func (s *Store) WriteShard(ctx context.Context, shardID int, data []byte) error {
	compressed, err := codec.Compress(s.codec, data)
	if err != nil {
		return err
	}
	return s.write(ctx, s.layout.Shard(shardID), compressed)
}

// WriteObject writes a metadata file at the snapshot root.
func (s *Store) WriteObject(ctx context.Context, name string, data []byte) error {
	return s.write(ctx, s.layout.Object(name), data)
}

// write replaces the file atomically through a temporary sibling.
func (s *Store) write(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := s.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", key, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", key, err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("writing %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("closing %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("renaming %s: %w", key, err)
	}
	return nil
}

func (s *Store) path(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}
