// Package positions adapts an engine.Evaluator to the evaluation cache.
//
// An Adapter owns one evaluator for its whole Start/Stop lifecycle and
// answers Evaluate from the (fingerprint, analysis version) cache before
// falling back to a search.
package positions

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/discochess/coach/internal/engine"
	"github.com/discochess/coach/internal/fen"
	"github.com/discochess/coach/internal/repository"
)

// Adapter guards the evaluator lifecycle and serializes searches.
type Adapter struct {
	evaluator engine.Evaluator
	logger    *zap.Logger

	mu      sync.Mutex
	started bool
	meta    engine.Metadata
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(a *Adapter) { a.logger = logger.Named("positions") }
}

// New creates an adapter over evaluator. The evaluator is not started.
func New(evaluator engine.Evaluator, opts ...Option) *Adapter {
	a := &Adapter{
		evaluator: evaluator,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Start starts the evaluator and captures its metadata. Starting a started
// adapter returns the existing metadata.
func (a *Adapter) Start(ctx context.Context) (engine.Metadata, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.started {
		return a.meta, nil
	}
	meta, err := a.evaluator.Start(ctx)
	if err != nil {
		return engine.Metadata{}, err
	}
	a.meta = meta
	a.started = true
	return meta, nil
}

// Stop stops the evaluator. Stopping a stopped adapter is a no-op.
func (a *Adapter) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.started {
		return nil
	}
	a.started = false
	a.meta = engine.Metadata{}
	return a.evaluator.Stop()
}

// Session starts the adapter, runs fn and stops the adapter on every path.
// A Stop failure is reported only when fn succeeded.
func (a *Adapter) Session(ctx context.Context, fn func(engine.Metadata) error) (err error) {
	meta, err := a.Start(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if stopErr := a.Stop(); stopErr != nil && err == nil {
			err = fmt.Errorf("stopping evaluator: %w", stopErr)
		}
	}()
	return fn(meta)
}

// Metadata returns the metadata captured by Start.
func (a *Adapter) Metadata() (engine.Metadata, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.started {
		return engine.Metadata{}, engine.ErrNotInitialized
	}
	return a.meta, nil
}

// Evaluate returns the evaluation of position under the current analysis
// version. A cached row is returned unless force is set; otherwise the
// evaluator runs and the result is upserted into store.
func (a *Adapter) Evaluate(ctx context.Context, store repository.PositionStore, position string, force bool) (*repository.EvaluatedPosition, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.started {
		return nil, engine.ErrNotInitialized
	}

	version := a.meta.AnalysisVersion()
	fingerprint := fen.Fingerprint(position)

	if !force {
		cached, err := store.FindPosition(ctx, fingerprint, version)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("reading cached evaluation: %w", err)
		}
	}

	eval, err := a.evaluator.Analyze(ctx, position)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("evaluated position",
		zap.String("fen", position),
		zap.String("score", eval.Score()),
		zap.Int("lines", len(eval.Lines)),
	)

	side, _ := fen.SideToMove(position)
	pos := &repository.EvaluatedPosition{
		Fingerprint:     fingerprint,
		AnalysisVersion: version,
		FEN:             position,
		SideToMove:      side,
		EngineName:      a.meta.Name,
		EngineVersion:   a.meta.Version,
		Depth:           a.meta.Depth,
		TimeMS:          a.meta.TimeMS,
		MultiPV:         a.meta.MultiPV,
		EvalCP:          eval.CP,
		EvalMate:        eval.Mate,
		PV:              eval.PV,
		Lines:           datatypes.JSONSlice[engine.Line](eval.Lines),
	}
	if err := store.UpsertPosition(ctx, pos); err != nil {
		return nil, fmt.Errorf("storing evaluation: %w", err)
	}
	return pos, nil
}
