package lookup

import (
	"context"
	"testing"
)

// BenchmarkAnalyze_WarmCache measures lookups served from a cached shard.
func BenchmarkAnalyze_WarmCache(b *testing.B) {
	ctx := context.Background()
	e := New(exported(b))
	if _, err := e.Start(ctx); err != nil {
		b.Fatalf("Start() error = %v", err)
	}
	defer e.Stop()

	// Warm up the cache.
	_, _ = e.Analyze(ctx, startFEN)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := e.Analyze(ctx, startFEN); err != nil {
			b.Fatalf("Analyze() error = %v", err)
		}
	}
}

// BenchmarkAnalyze_VariedPositions alternates hits and misses.
func BenchmarkAnalyze_VariedPositions(b *testing.B) {
	ctx := context.Background()
	e := New(exported(b), WithCacheShards(1))
	if _, err := e.Start(ctx); err != nil {
		b.Fatalf("Start() error = %v", err)
	}
	defer e.Stop()

	fens := []string{startFEN, e4FEN, d4FEN}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = e.Analyze(ctx, fens[i%len(fens)])
	}
}
