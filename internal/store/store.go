// Package store defines the storage backends that hold evaluation snapshots:
// compressed shard files plus named metadata objects such as the manifest.
package store

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
)

// ErrNotFound is returned when a shard or object does not exist in the store.
var ErrNotFound = errors.New("store: not found")

// Store defines the read side of a storage backend.
// Implementations handle path formats and storage details internally.
type Store interface {
	// ReadShard reads and decompresses the content of the given shard.
	ReadShard(ctx context.Context, shardID int) ([]byte, error)

	// ReadObject reads a metadata object stored next to the shards.
	ReadObject(ctx context.Context, name string) ([]byte, error)

	// Close releases any resources held by the store.
	Close() error
}

// Writer defines the write side of a storage backend.
type Writer interface {
	// WriteShard compresses data and stores it as the given shard,
	// replacing any previous content.
	WriteShard(ctx context.Context, shardID int, data []byte) error

	// WriteObject stores a metadata object uncompressed.
	WriteObject(ctx context.Context, name string, data []byte) error

	// Close releases any resources held by the store.
	Close() error
}

// ShardName returns the file name of a shard: the zero-padded ID plus the
// codec extension, if any.
func ShardName(shardID int, ext string) string {
	name := fmt.Sprintf("%05d", shardID)
	if ext != "" {
		name += "." + ext
	}
	return name
}

// Layout names the objects of one snapshot below a key prefix: shards live
// under "shards/", metadata objects at the top.
type Layout struct {
	prefix string
	ext    string
}

// NewLayout returns the layout for prefix with shard files named for ext.
// The prefix is normalized to "" or "a/b/".
func NewLayout(prefix, ext string) Layout {
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return Layout{prefix: prefix, ext: ext}
}

// Prefix returns the normalized prefix.
func (l Layout) Prefix() string { return l.prefix }

// Shard returns the key of a shard.
func (l Layout) Shard(shardID int) string {
	return l.prefix + "shards/" + ShardName(shardID, l.ext)
}

// Object returns the key of a metadata object.
func (l Layout) Object(name string) string {
	return l.prefix + name
}

// ContentType returns the media type stored with key by bucket backends.
func ContentType(key string) string {
	switch path.Ext(key) {
	case ".json":
		return "application/json"
	case ".zst":
		return "application/zstd"
	case ".gz":
		return "application/gzip"
	}
	return "application/x-ndjson"
}
