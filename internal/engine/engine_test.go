package engine

import (
	"errors"
	"testing"
	"time"
)

func intPtr(v int) *int { return &v }

func TestMetadata_AnalysisVersion(t *testing.T) {
	m := Metadata{Name: "Stockfish dev", Version: "16.1 x", Depth: 12, TimeMS: 1000, MultiPV: 3}
	want := "Stockfish_dev@16.1_x|depth=12|time_ms=1000|multipv=3"
	if got := m.AnalysisVersion(); got != want {
		t.Errorf("AnalysisVersion() = %q, want %q", got, want)
	}
}

func TestSplitIdentity(t *testing.T) {
	tests := []struct {
		in          string
		wantName    string
		wantVersion string
	}{
		{"Stockfish 16.1", "Stockfish", "16.1"},
		{"Stockfish 17", "Stockfish", "17"},
		{"Stockfish dev-20240101-abc", "Stockfish dev-20240101-abc", "unknown"},
		{"Komodo Dragon 3.2", "Komodo Dragon", "3.2"},
		{"", "Stockfish", "unknown"},
	}
	for _, tt := range tests {
		name, version := SplitIdentity(tt.in)
		if name != tt.wantName || version != tt.wantVersion {
			t.Errorf("SplitIdentity(%q) = %q, %q, want %q, %q", tt.in, name, version, tt.wantName, tt.wantVersion)
		}
	}
}

func TestLine_Score(t *testing.T) {
	tests := []struct {
		name string
		line Line
		want string
	}{
		{"positive", Line{CP: intPtr(125)}, "+1.25"},
		{"negative", Line{CP: intPtr(-50)}, "-0.50"},
		{"small", Line{CP: intPtr(5)}, "+0.05"},
		{"zero", Line{CP: intPtr(0)}, "+0.00"},
		{"mate", Line{Mate: intPtr(3)}, "#3"},
		{"mated", Line{Mate: intPtr(-5)}, "#-5"},
		{"none", Line{}, "?"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.line.Score(); got != tt.want {
				t.Errorf("Score() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewEvaluation(t *testing.T) {
	eval := NewEvaluation([]Line{
		{},
		{Mate: intPtr(2), PV: "d1h5 g7g6"},
		{CP: intPtr(30), PV: "e2e4"},
	})
	if len(eval.Lines) != 2 {
		t.Fatalf("len(Lines) = %d, want 2", len(eval.Lines))
	}
	if eval.CP != nil || eval.Mate == nil || *eval.Mate != 2 || eval.PV != "d1h5 g7g6" {
		t.Errorf("top line = %+v, want mate 2", eval)
	}

	empty := NewEvaluation(nil)
	if empty.CP != nil || empty.Mate != nil || len(empty.Lines) != 0 {
		t.Errorf("NewEvaluation(nil) = %+v, want empty", empty)
	}
	if got := empty.Score(); got != "?" {
		t.Errorf("Score() = %q, want ?", got)
	}
}

func TestConfig(t *testing.T) {
	c := Config{Path: "stockfish", Depth: 12}.Normalize()
	if c.MultiPV != 1 || c.Timeout != DefaultTimeout {
		t.Errorf("Normalize() = %+v, want multipv 1 and default timeout", c)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}

	tests := []struct {
		name string
		cfg  Config
	}{
		{"no limits", Config{Path: "stockfish"}},
		{"negative depth", Config{Path: "stockfish", Depth: -1, TimeMS: 100}},
		{"no path", Config{Depth: 10}},
		{"negative timeout", Config{Path: "sf", Depth: 1, Timeout: -time.Second}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}
