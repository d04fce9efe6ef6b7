// Package engine defines the position evaluator capability and the data it
// produces.
//
// Evaluations are always expressed from White's perspective. A Line carries
// either a centipawn score or a mate distance, never both.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Sentinel errors for evaluator failures.
var (
	// ErrEngineUnavailable indicates the evaluator process could not be
	// started, crashed, timed out or produced unreadable output.
	ErrEngineUnavailable = errors.New("engine: unavailable")

	// ErrNotInitialized indicates Analyze was called outside Start/Stop.
	ErrNotInitialized = errors.New("engine: evaluator is not initialized")

	// ErrInvalidConfig indicates the search limits are unusable.
	ErrInvalidConfig = errors.New("engine: invalid config")
)

// MateScoreCP is the centipawn magnitude standing in for a forced mate.
const MateScoreCP = 100000

// DefaultTimeout bounds a single Analyze call when Config.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// Evaluator is an external position evaluator with an explicit lifecycle.
// Implementations are not safe for concurrent Analyze calls.
type Evaluator interface {
	// Start acquires the underlying resource and reports its identity.
	Start(ctx context.Context) (Metadata, error)

	// Analyze evaluates the position described by fen.
	Analyze(ctx context.Context, fen string) (Evaluation, error)

	// Stop releases the underlying resource. Stop on a stopped evaluator is a no-op.
	Stop() error
}

// Config holds the search parameters of an evaluator.
type Config struct {
	Path    string        `validate:"required"`
	Depth   int           `validate:"gte=0"`
	TimeMS  int           `validate:"gte=0"`
	MultiPV int           `validate:"gte=0"`
	Timeout time.Duration `validate:"gte=0"`
}

var validate = validator.New()

// Normalize returns a copy with MultiPV at least 1 and a default timeout.
func (c Config) Normalize() Config {
	c.MultiPV = max(c.MultiPV, 1)
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

// Validate checks the config. At least one of Depth and TimeMS must be set.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.Depth == 0 && c.TimeMS == 0 {
		return fmt.Errorf("%w: depth or time_ms must be positive", ErrInvalidConfig)
	}
	return nil
}

// Metadata identifies an evaluator and its search parameters.
type Metadata struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Depth   int    `json:"depth"`
	TimeMS  int    `json:"time_ms"`
	MultiPV int    `json:"multipv"`
}

// AnalysisVersion is the deterministic key under which all derived analysis
// is stored. Any change in engine identity or search parameters yields a new key.
func (m Metadata) AnalysisVersion() string {
	name := strings.ReplaceAll(m.Name, " ", "_")
	version := strings.ReplaceAll(m.Version, " ", "_")
	return fmt.Sprintf("%s@%s|depth=%d|time_ms=%d|multipv=%d", name, version, m.Depth, m.TimeMS, m.MultiPV)
}

// SplitIdentity splits a UCI "id name" value such as "Stockfish 16.1" into
// name and version. Without a trailing version-like token the version is "unknown".
func SplitIdentity(idName string) (name, version string) {
	idName = strings.TrimSpace(idName)
	if idName == "" {
		return "Stockfish", "unknown"
	}
	fields := strings.Fields(idName)
	last := fields[len(fields)-1]
	if len(fields) > 1 && looksLikeVersion(last) {
		return strings.Join(fields[:len(fields)-1], " "), last
	}
	return idName, "unknown"
}

func looksLikeVersion(s string) bool {
	if s == "" || s[0] < '0' || s[0] > '9' {
		return false
	}
	head, _, _ := strings.Cut(s, ".")
	_, err := strconv.Atoi(head)
	return err == nil
}

// Line is one ranked principal variation.
type Line struct {
	// CP is the centipawn score. Nil when the line is a forced mate.
	CP *int `json:"eval_cp"`

	// Mate is the distance to mate in moves. Positive means White mates.
	Mate *int `json:"eval_mate"`

	// PV is the space-separated line in UCI notation.
	PV string `json:"pv_uci,omitempty"`

	Depth int `json:"depth,omitempty"`
}

// Empty reports whether the line carries neither a score nor moves.
func (l Line) Empty() bool {
	return l.PV == "" && l.CP == nil && l.Mate == nil
}

// Score returns a human-readable score such as "+1.25", "-0.50", "#3" or "#-5".
func (l Line) Score() string {
	if l.Mate != nil {
		return "#" + strconv.Itoa(*l.Mate)
	}
	if l.CP == nil {
		return "?"
	}
	cp := *l.CP
	sign := "+"
	if cp < 0 {
		sign = "-"
		cp = -cp
	}
	return fmt.Sprintf("%s%d.%02d", sign, cp/100, cp%100)
}

// Evaluation is the result of analyzing one position. The top-level fields
// mirror Lines[0].
type Evaluation struct {
	CP    *int   `json:"eval_cp"`
	Mate  *int   `json:"eval_mate"`
	PV    string `json:"pv_uci,omitempty"`
	Lines []Line `json:"multipv"`
}

// NewEvaluation drops empty lines and promotes the first remaining line.
func NewEvaluation(lines []Line) Evaluation {
	kept := make([]Line, 0, len(lines))
	for _, l := range lines {
		if !l.Empty() {
			kept = append(kept, l)
		}
	}
	if len(kept) == 0 {
		return Evaluation{Lines: []Line{}}
	}
	top := kept[0]
	return Evaluation{CP: top.CP, Mate: top.Mate, PV: top.PV, Lines: kept}
}

// Score returns the score of the best line, or "?" when there is none.
func (e Evaluation) Score() string {
	if len(e.Lines) == 0 {
		return "?"
	}
	return e.Lines[0].Score()
}
