// Package sqlcoachfx provides an fx module for a coach client over a gorm
// repository, a UCI engine and an optional shared position cache.
package sqlcoachfx

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/discochess/coach"
	"github.com/discochess/coach/internal/config"
	"github.com/discochess/coach/internal/engine/uci"
	"github.com/discochess/coach/internal/poscache"
	"github.com/discochess/coach/internal/poscache/cachestrategy/lru"
	"github.com/discochess/coach/internal/poscache/memory"
	"github.com/discochess/coach/internal/poscache/redisbackend"
	"github.com/discochess/coach/internal/repository"
	"github.com/discochess/coach/internal/repository/gormrepo"
	"github.com/discochess/coach/internal/stats"
	"github.com/discochess/coach/internal/stats/logger"
)

// Module provides a database-backed coach client configured from
// *config.Config. Requires a *zap.Logger to be provided.
var Module = fx.Module("sqlcoach",
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

	Config    *config.Config
	Logger    *zap.Logger
	Collector stats.Collector
	Lifecycle fx.Lifecycle
}

// Result holds the provided client.
type Result struct {
	fx.Out

	Client *coach.Client
}

func newClient(p Params) (Result, error) {
	repo, err := gormrepo.Open(p.Config.DatabaseDriver, p.Config.DatabaseURL)
	if err != nil {
		return Result{}, err
	}

	cache, err := newPositionCache(p)
	if err != nil {
		repo.Close()
		return Result{}, err
	}

	ev, err := uci.New(p.Config.Engine(), uci.WithLogger(p.Logger), uci.WithStats(p.Collector))
	if err != nil {
		repo.Close()
		return Result{}, err
	}

	opts := []coach.Option{
		coach.WithRepository(repo),
		coach.WithEvaluator(ev),
		coach.WithStats(p.Collector),
		coach.WithLogger(p.Logger),
	}
	if cache != nil {
		opts = append(opts, coach.WithPositionCache(cache))
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

	return Result{Client: client}, nil
}

func newPositionCache(p Params) (poscache.Backend, error) {
	if p.Config.RedisURL != "" {
		return redisbackend.Dial(context.Background(), p.Config.RedisURL,
			redisbackend.WithLogger(p.Logger),
			redisbackend.WithStats(p.Collector),
		)
	}
	if p.Config.PositionCacheSize <= 0 {
		return nil, nil
	}
	strategy, err := lru.New[string, repository.EvaluatedPosition](p.Config.PositionCacheSize)
	if err != nil {
		return nil, err
	}
	return memory.New(strategy, p.Collector), nil
}
