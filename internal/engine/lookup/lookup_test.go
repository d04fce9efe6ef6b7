package lookup

import (
	"context"
	"errors"
	"testing"

	"gorm.io/datatypes"

	"github.com/discochess/coach/internal/engine"
	"github.com/discochess/coach/internal/fen"
	"github.com/discochess/coach/internal/repository"
	"github.com/discochess/coach/internal/repository/memrepo"
	"github.com/discochess/coach/internal/snapshot"
	"github.com/discochess/coach/internal/stats"
	"github.com/discochess/coach/internal/store/memstore"
)

const (
	version  = "Scripted@1|depth=12|time_ms=0|multipv=2"
	startFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"
	e4FEN    = "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1"
	d4FEN    = "rnbqkbnr/pppppppp/8/8/3P4/8/PPP1PPPP/RNBQKBNR b KQkq - 0 1"
)

func intPtr(v int) *int { return &v }

// counters records counter increments.
type counters map[string]int64

func (c counters) IncCounter(name string, delta int64) { c[name] += delta }
func (c counters) SetGauge(string, int64)               {}
func (c counters) ObserveHistogram(string, float64)     {}

var _ stats.Collector = counters(nil)

// exported builds a snapshot of the start position and 1.e4 in memory.
func exported(t testing.TB) *memstore.Store {
	t.Helper()
	ctx := context.Background()
	repo := memrepo.New()
	rows := []struct {
		fen   string
		lines []engine.Line
	}{
		{startFEN, []engine.Line{{CP: intPtr(20), PV: "e2e4 e7e5", Depth: 12}, {CP: intPtr(15), PV: "d2d4", Depth: 12}}},
		{e4FEN, []engine.Line{{Mate: intPtr(-4), PV: "e7e5", Depth: 12}}},
	}
	for _, r := range rows {
		p := &repository.EvaluatedPosition{
			Fingerprint:     fen.Fingerprint(r.fen),
			AnalysisVersion: version,
			FEN:             r.fen,
			EngineName:      "Scripted",
			EngineVersion:   "1",
			Depth:           12,
			MultiPV:         2,
			Lines:           datatypes.JSONSlice[engine.Line](r.lines),
		}
		if err := repo.UpsertPosition(ctx, p); err != nil {
			t.Fatalf("UpsertPosition() error = %v", err)
		}
	}
	out := memstore.New()
	if _, err := snapshot.NewExporter(repo, out, snapshot.WithTotalShards(8)).Export(ctx, version); err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	return out
}

func TestEvaluator_StartReportsSnapshotVersion(t *testing.T) {
	ctx := context.Background()
	out := exported(t)
	m, err := snapshot.ReadManifest(ctx, out)
	if err != nil {
		t.Fatalf("ReadManifest() error = %v", err)
	}

	meta, err := New(out).Start(ctx)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	want := "snapshot@" + m.SnapshotID + "|depth=12|time_ms=0|multipv=2"
	if got := meta.AnalysisVersion(); got != want {
		t.Errorf("AnalysisVersion() = %q, want %q", got, want)
	}
}

func TestEvaluator_Analyze(t *testing.T) {
	ctx := context.Background()
	collector := counters{}
	e := New(exported(t), WithStats(collector))
	if _, err := e.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	ev, err := e.Analyze(ctx, startFEN)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if ev.CP == nil || *ev.CP != 20 || ev.PV != "e2e4 e7e5" {
		t.Errorf("Analyze() top = %v %q, want 20 \"e2e4 e7e5\"", ev.CP, ev.PV)
	}
	if len(ev.Lines) != 2 || ev.Lines[1].Depth != 12 {
		t.Errorf("Analyze() lines = %+v", ev.Lines)
	}

	// Clocks differ from the exported row; lookup is by position only.
	ev, err = e.Analyze(ctx, "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 3 7")
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if ev.Mate == nil || *ev.Mate != -4 || ev.CP != nil {
		t.Errorf("Analyze() mate = %v cp = %v, want -4 and nil", ev.Mate, ev.CP)
	}

	if got := collector[stats.MetricSnapshotLookups]; got != 2 {
		t.Errorf("lookups = %d, want 2", got)
	}
}

func TestEvaluator_Miss(t *testing.T) {
	ctx := context.Background()
	collector := counters{}
	e := New(exported(t), WithStats(collector))
	if _, err := e.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	ev, err := e.Analyze(ctx, d4FEN)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if len(ev.Lines) != 0 || ev.CP != nil || ev.Mate != nil {
		t.Errorf("Analyze() = %+v, want an empty evaluation", ev)
	}
	if got := collector[stats.MetricSnapshotMisses]; got != 1 {
		t.Errorf("misses = %d, want 1", got)
	}
}

func TestEvaluator_ShardCache(t *testing.T) {
	ctx := context.Background()
	collector := counters{}
	e := New(exported(t), WithStats(collector))
	if _, err := e.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := e.Analyze(ctx, startFEN); err != nil {
			t.Fatalf("Analyze() error = %v", err)
		}
	}
	if got := collector[stats.MetricSnapshotShardFetches]; got != 1 {
		t.Errorf("shard fetches = %d, want 1", got)
	}
}

func TestEvaluator_Lifecycle(t *testing.T) {
	ctx := context.Background()
	e := New(exported(t))
	if _, err := e.Analyze(ctx, startFEN); !errors.Is(err, engine.ErrNotInitialized) {
		t.Errorf("Analyze() before Start error = %v, want ErrNotInitialized", err)
	}
	if _, err := e.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := e.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if _, err := e.Analyze(ctx, startFEN); !errors.Is(err, engine.ErrNotInitialized) {
		t.Errorf("Analyze() after Stop error = %v, want ErrNotInitialized", err)
	}
}

func TestEvaluator_MissingManifest(t *testing.T) {
	_, err := New(memstore.New()).Start(context.Background())
	if !errors.Is(err, engine.ErrEngineUnavailable) {
		t.Errorf("Start() error = %v, want ErrEngineUnavailable", err)
	}
}
