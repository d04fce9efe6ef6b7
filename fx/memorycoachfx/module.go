// Package memorycoachfx provides an fx module for a coach client over an
// in-memory repository. Useful for testing.
package memorycoachfx

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/discochess/coach"
	"github.com/discochess/coach/internal/engine"
	"github.com/discochess/coach/internal/repository/memrepo"
	"github.com/discochess/coach/internal/stats"
	"github.com/discochess/coach/internal/stats/logger"
)

// Module provides an in-memory coach client for testing.
// Requires a *zap.Logger to be provided. An engine.Evaluator is used when
// one is provided.
var Module = fx.Module("memorycoach",
	fx.Provide(
		newStatsCollector,
		newClient,
	),
)

func newStatsCollector(log *zap.Logger) stats.Collector {
	return logger.New(log.Named("coach.stats"))
}

// Params holds dependencies for creating the client.
type Params struct {
	fx.In

	Logger    *zap.Logger
	Collector stats.Collector
	Evaluator engine.Evaluator `optional:"true"`
	Lifecycle fx.Lifecycle
}

// Result holds the provided client and repository.
type Result struct {
	fx.Out

	Client *coach.Client
	Repo   *memrepo.Repo // Exposed for test setup
}

func newClient(p Params) (Result, error) {
	repo := memrepo.New()
	opts := []coach.Option{
		coach.WithRepository(repo),
		coach.WithStats(p.Collector),
		coach.WithLogger(p.Logger),
	}
	if p.Evaluator != nil {
		opts = append(opts, coach.WithEvaluator(p.Evaluator))
	}
	client, err := coach.New(opts...)
	if err != nil {
		return Result{}, err
	}

	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})

	return Result{
		Client: client,
		Repo:   repo,
	}, nil
}
