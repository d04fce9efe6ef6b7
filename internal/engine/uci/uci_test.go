package uci

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/discochess/coach/internal/engine"
)

const (
	startFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"
	blackFEN = "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1"
	matedFEN = "rnb1kbnr/pppp1ppp/8/4p3/6Pq/5P2/PPPPP2P/RNBQKBNR w KQkq - 1 3"
)

// fakeEngine speaks enough UCI over pipes to drive the evaluator.
type fakeEngine struct {
	name    string
	infos   map[string][]string // output lines per position
	crashOn string
	hangOn  string

	mu       sync.Mutex
	commands []string
}

func (f *fakeEngine) record(cmd string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, cmd)
}

func (f *fakeEngine) sent(prefix string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.commands {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeEngine) spawn(string) (*session, error) {
	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	exited := make(chan struct{})

	go func() {
		defer close(exited)
		defer outW.Close()

		scanner := bufio.NewScanner(inR)
		var fen string
		for scanner.Scan() {
			cmd := scanner.Text()
			f.record(cmd)
			switch {
			case cmd == "uci":
				fmt.Fprintf(outW, "id name %s\nid author tester\noption name MultiPV type spin default 1 min 1 max 500\nuciok\n", f.name)
			case cmd == "isready":
				fmt.Fprintln(outW, "readyok")
			case strings.HasPrefix(cmd, "position fen "):
				fen = strings.TrimPrefix(cmd, "position fen ")
			case strings.HasPrefix(cmd, "go"):
				if fen == f.crashOn {
					return
				}
				if fen == f.hangOn {
					continue
				}
				for _, line := range f.infos[fen] {
					fmt.Fprintln(outW, line)
				}
				fmt.Fprintln(outW, "bestmove e2e4")
			case cmd == "quit":
				return
			}
		}
	}()

	kill := func() error {
		inR.Close()
		return outW.Close()
	}
	return newSession(inW, outR, kill, exited), nil
}

func newTestEvaluator(t *testing.T, f *fakeEngine, cfg engine.Config) *Evaluator {
	t.Helper()
	if cfg.Path == "" {
		cfg.Path = "stockfish"
	}
	e, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	e.spawn = f.spawn
	t.Cleanup(func() { _ = e.Stop() })
	return e
}

func TestEvaluator_Start(t *testing.T) {
	f := &fakeEngine{name: "Stockfish 16.1"}
	e := newTestEvaluator(t, f, engine.Config{Depth: 12, TimeMS: 100, MultiPV: 2})

	meta, err := e.Start(context.Background())
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	want := "Stockfish@16.1|depth=12|time_ms=100|multipv=2"
	if got := meta.AnalysisVersion(); got != want {
		t.Errorf("AnalysisVersion() = %q, want %q", got, want)
	}
	if got := f.sent("setoption"); len(got) != 1 || got[0] != "setoption name MultiPV value 2" {
		t.Errorf("setoption commands = %v", got)
	}

	again, err := e.Start(context.Background())
	if err != nil || again != meta {
		t.Errorf("second Start() = %+v, %v, want %+v, nil", again, err, meta)
	}
	if got := len(f.sent("uci")); got != 1 {
		t.Errorf("uci sent %d times, want 1", got)
	}
}

func TestEvaluator_Analyze(t *testing.T) {
	f := &fakeEngine{
		name: "Stockfish 16",
		infos: map[string][]string{
			startFEN: {
				"info depth 1 currmove e2e4 currmovenumber 1",
				"info depth 9 seldepth 12 multipv 1 score cp 10 nodes 100 pv g1f3",
				"info depth 10 seldepth 14 multipv 1 score cp 35 nodes 200 pv e2e4 e7e5",
				"info depth 10 seldepth 14 multipv 2 score cp 20 lowerbound nodes 200 pv d2d4",
				"info string NNUE evaluation enabled",
			},
		},
	}
	e := newTestEvaluator(t, f, engine.Config{Depth: 12, TimeMS: 100, MultiPV: 2})
	if _, err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	eval, err := e.Analyze(context.Background(), startFEN)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if len(eval.Lines) != 2 {
		t.Fatalf("len(Lines) = %d, want 2", len(eval.Lines))
	}
	if eval.CP == nil || *eval.CP != 35 || eval.Mate != nil {
		t.Errorf("top score = %v/%v, want cp 35", eval.CP, eval.Mate)
	}
	if eval.PV != "e2e4 e7e5" || eval.Lines[0].Depth != 10 {
		t.Errorf("top line = %+v", eval.Lines[0])
	}
	if eval.Lines[1].PV != "d2d4" || *eval.Lines[1].CP != 20 {
		t.Errorf("second line = %+v", eval.Lines[1])
	}
	if got := f.sent("go"); len(got) != 1 || got[0] != "go depth 12 movetime 100" {
		t.Errorf("go commands = %v", got)
	}
}

func TestEvaluator_AnalyzeWhitePerspective(t *testing.T) {
	f := &fakeEngine{
		name: "Stockfish 16",
		infos: map[string][]string{
			blackFEN: {"info depth 8 multipv 1 score cp 50 pv e7e5"},
			startFEN: {"info depth 8 multipv 1 score mate 3 pv e2e4"},
			matedFEN: {"info depth 0 score mate 0"},
		},
	}
	e := newTestEvaluator(t, f, engine.Config{TimeMS: 50})
	if _, err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	tests := []struct {
		name     string
		fen      string
		wantCP   *int
		wantMate *int
	}{
		{"black to move flips cp", blackFEN, intPtr(-50), nil},
		{"white mate kept", startFEN, nil, intPtr(3)},
		{"checkmated side to move", matedFEN, intPtr(-engine.MateScoreCP), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eval, err := e.Analyze(context.Background(), tt.fen)
			if err != nil {
				t.Fatalf("Analyze() error = %v", err)
			}
			if !equalPtr(eval.CP, tt.wantCP) || !equalPtr(eval.Mate, tt.wantMate) {
				t.Errorf("Analyze() = cp %v mate %v, want cp %v mate %v", deref(eval.CP), deref(eval.Mate), deref(tt.wantCP), deref(tt.wantMate))
			}
		})
	}
}

func TestEvaluator_NotInitialized(t *testing.T) {
	f := &fakeEngine{name: "Stockfish 16"}
	e := newTestEvaluator(t, f, engine.Config{Depth: 5})

	if _, err := e.Analyze(context.Background(), startFEN); !errors.Is(err, engine.ErrNotInitialized) {
		t.Errorf("Analyze() before Start error = %v, want ErrNotInitialized", err)
	}

	if _, err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := e.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if err := e.Stop(); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
	if _, err := e.Analyze(context.Background(), startFEN); !errors.Is(err, engine.ErrNotInitialized) {
		t.Errorf("Analyze() after Stop error = %v, want ErrNotInitialized", err)
	}
	if got := f.sent("quit"); len(got) != 1 {
		t.Errorf("quit sent %d times, want 1", len(got))
	}
}

func TestEvaluator_CrashRestartsOnNextAnalyze(t *testing.T) {
	f := &fakeEngine{
		name:    "Stockfish 16",
		crashOn: blackFEN,
		infos: map[string][]string{
			startFEN: {"info depth 5 multipv 1 score cp 30 pv e2e4"},
		},
	}
	e := newTestEvaluator(t, f, engine.Config{Depth: 5})
	if _, err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if _, err := e.Analyze(context.Background(), startFEN); err != nil {
		t.Fatalf("Analyze() before crash error = %v", err)
	}
	if _, err := e.Analyze(context.Background(), blackFEN); !errors.Is(err, engine.ErrEngineUnavailable) {
		t.Errorf("Analyze() crash error = %v, want ErrEngineUnavailable", err)
	}

	eval, err := e.Analyze(context.Background(), startFEN)
	if err != nil {
		t.Fatalf("Analyze() after crash error = %v, want restarted engine", err)
	}
	if eval.CP == nil || *eval.CP != 30 {
		t.Errorf("Analyze() after crash cp = %v, want 30", deref(eval.CP))
	}
	if got := len(f.sent("uci")); got != 2 {
		t.Errorf("uci sent %d times, want 2", got)
	}
}

func TestEvaluator_CrashWithFailedRestart(t *testing.T) {
	f := &fakeEngine{name: "Stockfish 16", crashOn: startFEN}
	e := newTestEvaluator(t, f, engine.Config{Depth: 5})
	if _, err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if _, err := e.Analyze(context.Background(), startFEN); !errors.Is(err, engine.ErrEngineUnavailable) {
		t.Fatalf("Analyze() error = %v, want ErrEngineUnavailable", err)
	}

	e.spawn = func(string) (*session, error) { return nil, errors.New("exec: no such file") }
	for i := 0; i < 2; i++ {
		_, err := e.Analyze(context.Background(), startFEN)
		if !errors.Is(err, engine.ErrEngineUnavailable) || errors.Is(err, engine.ErrNotInitialized) {
			t.Errorf("Analyze() #%d after crash error = %v, want ErrEngineUnavailable", i+1, err)
		}
	}

	if err := e.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if _, err := e.Analyze(context.Background(), startFEN); !errors.Is(err, engine.ErrNotInitialized) {
		t.Errorf("Analyze() after Stop error = %v, want ErrNotInitialized", err)
	}
}

func TestSession_KillReleasesPump(t *testing.T) {
	outR, outW := io.Pipe()
	t.Cleanup(func() { _ = outW.Close() })
	_, inW := io.Pipe()
	s := newSession(inW, outR, func() error { return nil }, make(chan struct{}))

	go func() {
		for i := 0; i < cap(s.lines)+8; i++ {
			if _, err := fmt.Fprintf(outW, "info string %d\n", i); err != nil {
				return
			}
		}
	}()

	deadline := time.Now().Add(2 * time.Second)
	for len(s.lines) < cap(s.lines) {
		if time.Now().After(deadline) {
			t.Fatalf("buffered lines = %d, want %d", len(s.lines), cap(s.lines))
		}
		time.Sleep(time.Millisecond)
	}
	s.kill()
	time.Sleep(20 * time.Millisecond)

	received := 0
	for {
		select {
		case _, ok := <-s.lines:
			if !ok {
				if received > cap(s.lines)+8 {
					t.Errorf("received %d lines, want at most %d", received, cap(s.lines)+8)
				}
				return
			}
			received++
		case <-time.After(2 * time.Second):
			t.Fatalf("lines not closed after kill; received %d", received)
		}
	}
}

func TestEvaluator_Timeout(t *testing.T) {
	f := &fakeEngine{name: "Stockfish 16", hangOn: startFEN}
	e := newTestEvaluator(t, f, engine.Config{Depth: 5, Timeout: 50 * time.Millisecond})
	if _, err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	_, err := e.Analyze(context.Background(), startFEN)
	if !errors.Is(err, engine.ErrEngineUnavailable) {
		t.Errorf("Analyze() error = %v, want ErrEngineUnavailable", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Analyze() error = %v, want to wrap context.DeadlineExceeded", err)
	}
}

func TestEvaluator_StartFailure(t *testing.T) {
	e, err := New(engine.Config{Path: "stockfish", Depth: 5})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	e.spawn = func(string) (*session, error) { return nil, errors.New("exec: not found") }

	if _, err := e.Start(context.Background()); !errors.Is(err, engine.ErrEngineUnavailable) {
		t.Errorf("Start() error = %v, want ErrEngineUnavailable", err)
	}
}

func TestEvaluator_InvalidFEN(t *testing.T) {
	f := &fakeEngine{name: "Stockfish 16"}
	e := newTestEvaluator(t, f, engine.Config{Depth: 5})
	if _, err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	_, err := e.Analyze(context.Background(), "not a fen")
	if err == nil || errors.Is(err, engine.ErrEngineUnavailable) {
		t.Errorf("Analyze() error = %v, want a decoding error", err)
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	if _, err := New(engine.Config{Path: "stockfish"}); !errors.Is(err, engine.ErrInvalidConfig) {
		t.Errorf("New() error = %v, want ErrInvalidConfig", err)
	}
}

func TestParseInfo(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		wantIdx int
		wantCP  *int
		wantPV  string
		wantOK  bool
	}{
		{"cp with pv", "info depth 20 multipv 3 score cp -14 nodes 1 pv a2a3 a7a6", 3, intPtr(-14), "a2a3 a7a6", true},
		{"default index", "info depth 20 score cp 7 pv e2e4", 1, intPtr(7), "e2e4", true},
		{"currmove only", "info depth 5 currmove e2e4 currmovenumber 1", 0, nil, "", false},
		{"string", "info string score cp 5", 0, nil, "", false},
		{"not info", "bestmove e2e4", 0, nil, "", false},
		{"malformed score", "info score cp x pv e2e4", 1, nil, "e2e4", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx, l, ok := parseInfo(tt.line)
			if ok != tt.wantOK || idx != tt.wantIdx {
				t.Fatalf("parseInfo() = %d, %v, want %d, %v", idx, ok, tt.wantIdx, tt.wantOK)
			}
			if !equalPtr(l.CP, tt.wantCP) || l.PV != tt.wantPV {
				t.Errorf("parseInfo() line = %+v", l)
			}
		})
	}
}

func TestGoCommand(t *testing.T) {
	tests := []struct {
		cfg  engine.Config
		want string
	}{
		{engine.Config{Depth: 12, TimeMS: 1000}, "go depth 12 movetime 1000"},
		{engine.Config{Depth: 12}, "go depth 12"},
		{engine.Config{TimeMS: 250}, "go movetime 250"},
	}
	for _, tt := range tests {
		if got := goCommand(tt.cfg); got != tt.want {
			t.Errorf("goCommand(%+v) = %q, want %q", tt.cfg, got, tt.want)
		}
	}
}

func intPtr(v int) *int { return &v }

func equalPtr(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func deref(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}
