package gcsstore

import (
	"context"
	"errors"
	"testing"

	"github.com/discochess/coach/internal/codec/gzipcodec"
	"github.com/discochess/coach/internal/codec/zstdcodec"
)

func TestStore_Layout(t *testing.T) {
	tests := []struct {
		name      string
		store     *Store
		wantShard string
		wantObj   string
	}{
		{
			name:      "no prefix",
			store:     newStore(nil, "evals", zstdcodec.New()),
			wantShard: "shards/00042.zst",
			wantObj:   "manifest.json",
		},
		{
			name:      "prefix",
			store:     newStore(nil, "evals", zstdcodec.New(), WithPrefix("snapshots/v1/")),
			wantShard: "snapshots/v1/shards/00042.zst",
			wantObj:   "snapshots/v1/manifest.json",
		},
		{
			name:      "gzip",
			store:     newStore(nil, "evals", gzipcodec.New(), WithPrefix("v2")),
			wantShard: "v2/shards/00042.gz",
			wantObj:   "v2/manifest.json",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.store.layout.Shard(42); got != tt.wantShard {
				t.Errorf("Shard(42) = %q, want %q", got, tt.wantShard)
			}
			if got := tt.store.layout.Object("manifest.json"); got != tt.wantObj {
				t.Errorf("Object() = %q, want %q", got, tt.wantObj)
			}
		})
	}
}

func TestStore_CanceledContext(t *testing.T) {
	s := newStore(nil, "evals", zstdcodec.New())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.ReadObject(ctx, "manifest.json"); !errors.Is(err, context.Canceled) {
		t.Errorf("ReadObject() error = %v, want context.Canceled", err)
	}
	if err := s.WriteShard(ctx, 1, []byte("x")); !errors.Is(err, context.Canceled) {
		t.Errorf("WriteShard() error = %v, want context.Canceled", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
