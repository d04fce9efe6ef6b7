// Package redisbackend implements a position cache backend shared across
// processes through Redis.
package redisbackend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/discochess/coach/internal/poscache"
	"github.com/discochess/coach/internal/repository"
	"github.com/discochess/coach/internal/stats"
)

const (
	// DefaultPrefix namespaces cache keys.
	DefaultPrefix = "coach:pos:"

	// DefaultTTL bounds how long an entry survives without being rewritten.
	DefaultTTL = 7 * 24 * time.Hour
)

// Compile-time check that Backend implements poscache.Backend.
var _ poscache.Backend = (*Backend)(nil)

// Backend stores positions as JSON values. Redis errors degrade to misses.
type Backend struct {
	client    *redis.Client
	prefix    string
	ttl       time.Duration
	logger    *zap.Logger
	collector stats.Collector

	hits   atomic.Int64
	misses atomic.Int64
}

// Option configures a Backend.
type Option func(*Backend)

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(b *Backend) { b.prefix = prefix }
}

// WithTTL sets the entry expiration. Zero keeps entries forever.
func WithTTL(ttl time.Duration) Option {
	return func(b *Backend) { b.ttl = ttl }
}

// WithLogger sets the logger used for Redis failures.
func WithLogger(logger *zap.Logger) Option {
	return func(b *Backend) { b.logger = logger.Named("poscache.redis") }
}

// WithStats sets the metrics collector.
func WithStats(c stats.Collector) Option {
	return func(b *Backend) { b.collector = c }
}

// New creates a backend over an existing client.
func New(client *redis.Client, opts ...Option) *Backend {
	b := &Backend{
		client:    client,
		prefix:    DefaultPrefix,
		ttl:       DefaultTTL,
		logger:    zap.NewNop(),
		collector: stats.NewNoop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Dial parses a redis:// URL, connects and pings the server.
func Dial(ctx context.Context, url string, opts ...Option) (*Backend, error) {
	o, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(o)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", o.Addr, err)
	}
	return New(client, opts...), nil
}

// Get retrieves and decodes a position.
func (b *Backend) Get(ctx context.Context, key string) (*repository.EvaluatedPosition, bool) {
	data, err := b.client.Get(ctx, b.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			b.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil, b.miss()
	}

	var pos repository.EvaluatedPosition
	if err := json.Unmarshal(data, &pos); err != nil {
		b.logger.Warn("discarding undecodable cache entry", zap.String("key", key), zap.Error(err))
		return nil, b.miss()
	}

	b.hits.Add(1)
	b.collector.IncCounter(stats.MetricCacheHits, 1)
	return &pos, true
}

// Set encodes and stores a position.
func (b *Backend) Set(ctx context.Context, key string, pos *repository.EvaluatedPosition) {
	if pos == nil {
		return
	}
	data, err := json.Marshal(pos)
	if err != nil {
		b.logger.Warn("encoding cache entry", zap.String("key", key), zap.Error(err))
		return
	}
	if err := b.client.Set(ctx, b.prefix+key, data, b.ttl).Err(); err != nil {
		b.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// Stats returns hit and miss counts. Size is not tracked for Redis.
func (b *Backend) Stats() poscache.Stats {
	return poscache.Stats{
		Hits:   b.hits.Load(),
		Misses: b.misses.Load(),
	}
}

// Close closes the Redis client.
func (b *Backend) Close() error {
	return b.client.Close()
}

func (b *Backend) miss() bool {
	b.misses.Add(1)
	b.collector.IncCounter(stats.MetricCacheMisses, 1)
	return false
}
