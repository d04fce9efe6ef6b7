package diskstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/discochess/coach/internal/codec/gzipcodec"
	"github.com/discochess/coach/internal/codec/noopcodec"
	"github.com/discochess/coach/internal/codec/zstdcodec"
	"github.com/discochess/coach/internal/store"
)

func TestNew(t *testing.T) {
	file := filepath.Join(t.TempDir(), "manifest.json")
	if err := os.WriteFile(file, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name    string
		root    string
		wantErr bool
	}{
		{name: "directory", root: t.TempDir()},
		{name: "missing", root: filepath.Join(t.TempDir(), "absent"), wantErr: true},
		{name: "file", root: file, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.root, noopcodec.New())
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestStore_ReadsPlainShardFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "shards"), 0o755); err != nil {
		t.Fatal(err)
	}
	data := []byte(`{"fen":"8/8/8/8/8/8/8/K6k w - -","evals":[]}` + "\n")
	if err := os.WriteFile(filepath.Join(dir, "shards", "00001"), data, 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := New(dir, noopcodec.New())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	got, err := s.ReadShard(context.Background(), 1)
	if err != nil {
		t.Fatalf("ReadShard() error = %v", err)
	}
	if string(got) != string(data) {
		t.Errorf("ReadShard() = %q, want %q", got, data)
	}
	if _, err := s.ReadShard(context.Background(), 2); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("ReadShard(2) error = %v, want ErrNotFound", err)
	}
}

func TestStore_WriteShardRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		store func(string) (*Store, error)
		file  string
	}{
		{name: "zstd", store: func(dir string) (*Store, error) { return Create(dir, zstdcodec.New()) }, file: "00007.zst"},
		{name: "gzip", store: func(dir string) (*Store, error) { return Create(dir, gzipcodec.New()) }, file: "00007.gz"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "snapshot")
			s, err := tt.store(dir)
			if err != nil {
				t.Fatalf("Create() error = %v", err)
			}
			ctx := context.Background()
			data := []byte(`{"fen":"8/8/8/8/8/8/8/K6k w - -","evals":[]}` + "\n")
			if err := s.WriteShard(ctx, 7, data); err != nil {
				t.Fatalf("WriteShard() error = %v", err)
			}
			if _, err := os.Stat(filepath.Join(dir, "shards", tt.file)); err != nil {
				t.Errorf("shard file missing: %v", err)
			}
			entries, _ := os.ReadDir(filepath.Join(dir, "shards"))
			if len(entries) != 1 {
				t.Errorf("shards dir has %d entries, want 1 (no temp files left)", len(entries))
			}
			got, err := s.ReadShard(ctx, 7)
			if err != nil {
				t.Fatalf("ReadShard() error = %v", err)
			}
			if string(got) != string(data) {
				t.Errorf("ReadShard() = %q, want %q", got, data)
			}
		})
	}
}

func TestStore_Objects(t *testing.T) {
	s, err := New(t.TempDir(), noopcodec.New())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()

	if _, err := s.ReadObject(ctx, "manifest.json"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("ReadObject() error = %v, want ErrNotFound", err)
	}
	for _, body := range []string{`{"version":1}`, `{"version":2}`} {
		if err := s.WriteObject(ctx, "manifest.json", []byte(body)); err != nil {
			t.Fatalf("WriteObject() error = %v", err)
		}
	}
	got, err := s.ReadObject(ctx, "manifest.json")
	if err != nil {
		t.Fatalf("ReadObject() error = %v", err)
	}
	if string(got) != `{"version":2}` {
		t.Errorf("ReadObject() = %q, want the last write", got)
	}
}

func TestStore_CanceledContext(t *testing.T) {
	s, err := New(t.TempDir(), noopcodec.New())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.WriteShard(ctx, 1, []byte("x")); !errors.Is(err, context.Canceled) {
		t.Errorf("WriteShard() error = %v, want context.Canceled", err)
	}
	if _, err := s.ReadObject(ctx, "manifest.json"); !errors.Is(err, context.Canceled) {
		t.Errorf("ReadObject() error = %v, want context.Canceled", err)
	}
}
