package gzipcodec

import (
	"bytes"
	"testing"

	"github.com/klauspost/compress/gzip"

	"github.com/discochess/coach/internal/codec"
)

func TestCodec_Levels(t *testing.T) {
	shard := bytes.Repeat([]byte(`{"fen":"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq -","evals":[]}`+"\n"), 500)
	for _, level := range []int{gzip.BestSpeed, gzip.DefaultCompression, gzip.BestCompression} {
		c := New(WithLevel(level))
		compressed, err := codec.Compress(c, shard)
		if err != nil {
			t.Fatalf("Compress(level %d) error = %v", level, err)
		}
		if len(compressed) >= len(shard) {
			t.Errorf("Compress(level %d) = %d bytes, want fewer than %d", level, len(compressed), len(shard))
		}
		got, err := codec.Decompress(c, bytes.NewReader(compressed))
		if err != nil {
			t.Fatalf("Decompress(level %d) error = %v", level, err)
		}
		if !bytes.Equal(got, shard) {
			t.Errorf("Decompress(level %d) did not restore the shard", level)
		}
	}
}

func TestCodec_Reader_InvalidData(t *testing.T) {
	if _, err := New().Reader(bytes.NewReader([]byte("not gzip data"))); err == nil {
		t.Error("Reader() error = nil, want error")
	}
}

func TestCodec_InvalidLevel(t *testing.T) {
	if _, err := New(WithLevel(42)).Writer(&bytes.Buffer{}); err == nil {
		t.Error("Writer() error = nil, want error for level 42")
	}
}
