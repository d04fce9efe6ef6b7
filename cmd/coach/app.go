package main

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/discochess/coach"
	"github.com/discochess/coach/internal/codec"
	"github.com/discochess/coach/internal/codec/codecs"
	"github.com/discochess/coach/internal/codec/noopcodec"
	"github.com/discochess/coach/internal/engine"
	"github.com/discochess/coach/internal/engine/lookup"
	"github.com/discochess/coach/internal/engine/uci"
	"github.com/discochess/coach/internal/poscache"
	"github.com/discochess/coach/internal/poscache/cachestrategy/lru"
	"github.com/discochess/coach/internal/poscache/memory"
	"github.com/discochess/coach/internal/poscache/redisbackend"
	"github.com/discochess/coach/internal/repository"
	"github.com/discochess/coach/internal/repository/gormrepo"
	"github.com/discochess/coach/internal/snapshot"
	"github.com/discochess/coach/internal/store"
	"github.com/discochess/coach/internal/store/diskstore"
	"github.com/discochess/coach/internal/store/gcsstore"
	"github.com/discochess/coach/internal/store/s3store"
)

// closers are released after the command returns.
var closers []io.Closer

func onClose(c io.Closer) { closers = append(closers, c) }

func closeAll() {
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			logger.Warn("closing resource", zap.Error(err))
		}
	}
	closers = nil
	_ = logger.Sync()
}

// openClient connects the repository and position cache and, when
// withEvaluator is set, the evaluator selected by --evaluator.
func openClient(ctx context.Context, withEvaluator bool) (*coach.Client, error) {
	repo, err := gormrepo.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	opts := []coach.Option{
		coach.WithRepository(repo),
		coach.WithLogger(logger),
		coach.WithStats(collector),
	}

	backend, err := positionCache(ctx)
	if err != nil {
		repo.Close()
		return nil, err
	}
	if backend != nil {
		opts = append(opts, coach.WithPositionCache(backend))
	}

	if withEvaluator {
		ev, err := newEvaluator(ctx)
		if err != nil {
			repo.Close()
			return nil, err
		}
		opts = append(opts, coach.WithEvaluator(ev))
	}

	client, err := coach.New(opts...)
	if err != nil {
		return nil, err
	}
	onClose(client)
	return client, nil
}

// positionCache returns the Redis backend when configured, otherwise an
// in-process LRU. A zero cache size disables the in-process cache.
func positionCache(ctx context.Context) (poscache.Backend, error) {
	if cfg.RedisURL != "" {
		backend, err := redisbackend.Dial(ctx, cfg.RedisURL,
			redisbackend.WithLogger(logger),
			redisbackend.WithStats(collector),
		)
		if err != nil {
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		return backend, nil
	}
	if cfg.PositionCacheSize <= 0 {
		return nil, nil
	}
	strategy, err := lru.New[string, repository.EvaluatedPosition](cfg.PositionCacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating LRU strategy: %w", err)
	}
	return memory.New(strategy, collector), nil
}

func newEvaluator(ctx context.Context) (engine.Evaluator, error) {
	switch evaluatorName {
	case "uci":
		return uci.New(cfg.Engine(), uci.WithLogger(logger), uci.WithStats(collector))
	case "snapshot":
		st, err := openSnapshot(ctx, cfg.SnapshotDir)
		if err != nil {
			return nil, err
		}
		return lookup.New(st, lookup.WithLogger(logger), lookup.WithStats(collector)), nil
	default:
		return nil, repository.NewValidationError("evaluator", fmt.Sprintf("Unknown evaluator %q.", evaluatorName))
	}
}

// blobStore is a snapshot location opened for both reading and writing.
type blobStore interface {
	store.Store
	store.Writer
}

// openLocation opens a snapshot location with the given shard codec.
func openLocation(ctx context.Context, raw string, c codec.Codec, create bool) (blobStore, error) {
	loc, err := store.ParseLocation(raw)
	if err != nil {
		return nil, repository.NewValidationError("location", err.Error())
	}
	switch loc.Scheme {
	case store.SchemeS3:
		return s3store.New(ctx, loc.Bucket, c, s3store.WithPrefix(loc.Path))
	case store.SchemeGCS:
		return gcsstore.New(ctx, loc.Bucket, c, gcsstore.WithPrefix(loc.Path))
	default:
		if create {
			return diskstore.Create(loc.Path, c)
		}
		return diskstore.New(loc.Path, c)
	}
}

// openSnapshot opens a snapshot for reading with the codec its manifest names.
func openSnapshot(ctx context.Context, raw string) (store.Store, error) {
	manifestSrc, err := openLocation(ctx, raw, noopcodec.New(), false)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot: %w", err)
	}
	m, err := snapshot.ReadManifest(ctx, manifestSrc)
	manifestSrc.Close()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", engine.ErrEngineUnavailable, err)
	}
	c, err := codecs.ByName(m.Compression)
	if err != nil {
		return nil, err
	}
	st, err := openLocation(ctx, raw, c, false)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot: %w", err)
	}
	onClose(st)
	return st, nil
}
