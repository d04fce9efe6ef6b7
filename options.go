package coach

import (
	"go.uber.org/zap"

	"github.com/discochess/coach/internal/engine"
	"github.com/discochess/coach/internal/poscache"
	"github.com/discochess/coach/internal/repository"
	"github.com/discochess/coach/internal/stats"
)

// Option configures a Client.
type Option interface {
	apply(*options)
}

// options holds the client configuration.
type options struct {
	repo      repository.Repository
	evaluator engine.Evaluator
	cache     poscache.Backend
	stats     stats.Collector
	logger    *zap.Logger
}

// defaultOptions returns the default configuration.
func defaultOptions() options {
	return options{
		stats:  stats.NewNoop(),
		logger: zap.NewNop(),
	}
}

// optionFunc wraps a function to implement Option.
type optionFunc func(*options)

// Compile-time check that optionFunc implements Option.
var _ Option = optionFunc(nil)

func (f optionFunc) apply(o *options) { f(o) }

// WithRepository sets the persistence backend. Required.
func WithRepository(r repository.Repository) Option {
	return optionFunc(func(o *options) {
		o.repo = r
	})
}

// WithEvaluator sets the position evaluator used by analysis and Eval.
// Parsing and insights work without one.
func WithEvaluator(e engine.Evaluator) Option {
	return optionFunc(func(o *options) {
		o.evaluator = e
	})
}

// WithPositionCache puts a cache backend in front of the position store.
func WithPositionCache(b poscache.Backend) Option {
	return optionFunc(func(o *options) {
		o.cache = b
	})
}

// WithStats sets the stats collector.
// If not set, a no-op collector is used.
func WithStats(c stats.Collector) Option {
	return optionFunc(func(o *options) {
		o.stats = c
	})
}

// WithLogger sets the logger.
// If not set, a no-op logger is used.
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(o *options) {
		o.logger = l
	})
}
