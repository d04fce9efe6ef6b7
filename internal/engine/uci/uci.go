// Package uci implements engine.Evaluator over a UCI engine subprocess such
// as Stockfish.
package uci

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/notnil/chess"
	"go.uber.org/zap"

	"github.com/discochess/coach/internal/engine"
	"github.com/discochess/coach/internal/stats"
)

// Compile-time check that Evaluator implements engine.Evaluator.
var _ engine.Evaluator = (*Evaluator)(nil)

const (
	handshakeTimeout = 5 * time.Second
	quitGrace        = time.Second
)

// Evaluator drives a single UCI engine process. Calls are serialized.
type Evaluator struct {
	cfg    engine.Config
	logger *zap.Logger
	stats  stats.Collector
	spawn  func(path string) (*session, error)

	mu      sync.Mutex
	sess    *session
	meta    engine.Metadata
	crashed bool // the process died mid-search; the next Analyze respawns it
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Evaluator) { e.logger = logger.Named("engine.uci") }
}

// WithStats sets the metrics collector.
func WithStats(collector stats.Collector) Option {
	return func(e *Evaluator) { e.stats = collector }
}

// New creates an evaluator for the engine binary at cfg.Path. The process is
// not started until Start.
func New(cfg engine.Config, opts ...Option) (*Evaluator, error) {
	cfg = cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Evaluator{
		cfg:    cfg,
		logger: zap.NewNop(),
		stats:  stats.NewNoop(),
		spawn:  spawnProcess,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Start launches the engine and performs the uci/isready handshake.
// Starting an already running evaluator returns its metadata.
func (e *Evaluator) Start(ctx context.Context) (engine.Metadata, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sess != nil {
		return e.meta, nil
	}
	if err := e.launch(ctx); err != nil {
		return engine.Metadata{}, err
	}
	return e.meta, nil
}

// launch spawns the process and runs the handshake. The caller holds e.mu.
func (e *Evaluator) launch(ctx context.Context) error {
	sess, err := e.spawn(e.cfg.Path)
	if err != nil {
		return fmt.Errorf("%w: starting %s: %w", engine.ErrEngineUnavailable, e.cfg.Path, err)
	}

	ctx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	defer cancel()

	idName, err := sess.handshake(ctx, e.cfg.MultiPV)
	if err != nil {
		sess.kill()
		return fmt.Errorf("%w: handshake: %w", engine.ErrEngineUnavailable, err)
	}

	name, version := engine.SplitIdentity(idName)
	e.sess = sess
	e.crashed = false
	e.meta = engine.Metadata{
		Name:    name,
		Version: version,
		Depth:   e.cfg.Depth,
		TimeMS:  e.cfg.TimeMS,
		MultiPV: e.cfg.MultiPV,
	}

	e.logger.Info("engine started",
		zap.String("name", name),
		zap.String("version", version),
		zap.String("analysisVersion", e.meta.AnalysisVersion()),
	)
	return nil
}

// Analyze searches the position with the configured limits.
func (e *Evaluator) Analyze(ctx context.Context, fen string) (engine.Evaluation, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sess == nil && !e.crashed {
		return engine.Evaluation{}, engine.ErrNotInitialized
	}

	opt, err := chess.FEN(fen)
	if err != nil {
		return engine.Evaluation{}, fmt.Errorf("decoding fen: %w", err)
	}
	whiteToMove := chess.NewGame(opt).Position().Turn() == chess.White

	if e.sess == nil {
		e.logger.Info("restarting engine after crash", zap.String("path", e.cfg.Path))
		if err := e.launch(ctx); err != nil {
			return engine.Evaluation{}, err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	start := time.Now()
	lines, err := e.sess.search(ctx, fen, e.cfg)
	if err != nil {
		e.logger.Warn("engine failed, killing process", zap.String("fen", fen), zap.Error(err))
		e.sess.kill()
		e.sess = nil
		e.crashed = true
		return engine.Evaluation{}, fmt.Errorf("%w: %w", engine.ErrEngineUnavailable, err)
	}

	e.stats.IncCounter(stats.MetricEngineEvaluations, 1)
	e.stats.ObserveHistogram(stats.MetricEngineEvalMS, float64(time.Since(start).Milliseconds()))

	if !whiteToMove {
		for i := range lines {
			lines[i] = flip(lines[i])
		}
	}
	return engine.NewEvaluation(lines), nil
}

// Stop sends quit and waits briefly before killing the process.
func (e *Evaluator) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.crashed = false
	if e.sess == nil {
		return nil
	}
	sess := e.sess
	e.sess = nil
	e.meta = engine.Metadata{}
	return sess.quit(quitGrace)
}

// flip converts a side-to-move relative line to White's perspective.
func flip(l engine.Line) engine.Line {
	if l.CP != nil {
		cp := -*l.CP
		l.CP = &cp
	}
	if l.Mate != nil {
		m := -*l.Mate
		l.Mate = &m
	}
	return l
}

// spawnProcess starts the engine binary with piped stdio.
func spawnProcess(path string) (*session, error) {
	cmd := exec.Command(path)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	exited := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(exited)
	}()
	return newSession(stdin, stdout, cmd.Process.Kill, exited), nil
}

// errClosed is reported when the engine's output ends unexpectedly.
var errClosed = errors.New("engine closed unexpectedly")

// session is one running engine process.
type session struct {
	stdin  io.WriteCloser
	lines  chan string
	done   chan struct{} // closed on kill or quit
	killFn func() error
	exited <-chan struct{}
	once   sync.Once
}

func newSession(stdin io.WriteCloser, stdout io.Reader, kill func() error, exited <-chan struct{}) *session {
	s := &session{
		stdin:  stdin,
		lines:  make(chan string, 64),
		done:   make(chan struct{}),
		killFn: kill,
		exited: exited,
	}
	go s.pump(stdout)
	return s
}

func (s *session) kill() {
	s.once.Do(func() {
		close(s.done)
		_ = s.stdin.Close()
		_ = s.killFn()
	})
}

// quit asks the engine to exit and kills it after grace.
func (s *session) quit(grace time.Duration) error {
	_ = s.send("quit")

	select {
	case <-s.exited:
		s.once.Do(func() {
			close(s.done)
			_ = s.stdin.Close()
		})
	case <-time.After(grace):
		s.kill()
	}
	return nil
}
