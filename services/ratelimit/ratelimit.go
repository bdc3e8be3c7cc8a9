// Package ratelimit implements core.RateLimiter with fixed windows, in memory or in Redis.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/reportal/core"
)

// NowFunc is mocked in tests.
var NowFunc = time.Now

// New returns a Redis limiter when REDIS_ADDR is configured, an in-memory one otherwise.
func New(conf *core.Config, prefix string, limit int, window time.Duration) core.RateLimiter {
	if conf.Redis.Addr == "" {
		return NewMemoryLimiter(limit, window)
	}
	client := redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Addr,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})
	return NewRedisLimiter(client, prefix, limit, window)
}

type counter struct {
	hits    int
	resetAt time.Time
}

type memoryLimiter struct {
	mu       sync.Mutex
	limit    int
	window   time.Duration
	counters map[string]*counter
}

var _ core.RateLimiter = (*memoryLimiter)(nil)

func NewMemoryLimiter(limit int, window time.Duration) core.RateLimiter {
	return &memoryLimiter{
		limit:    limit,
		window:   window,
		counters: make(map[string]*counter),
	}
}

func (l *memoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	now := NowFunc()

	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.counters[key]
	if !ok || !now.Before(c.resetAt) {
		l.evict(now)
		c = &counter{resetAt: now.Add(l.window)}
		l.counters[key] = c
	}
	c.hits++
	return c.hits <= l.limit, nil
}

// evict drops the expired counters. Caller must hold the lock.
func (l *memoryLimiter) evict(now time.Time) {
	for key, c := range l.counters {
		if !now.Before(c.resetAt) {
			delete(l.counters, key)
		}
	}
}

func (l *memoryLimiter) Reset(_ context.Context, key string) error {
	l.mu.Lock()
	delete(l.counters, key)
	l.mu.Unlock()
	return nil
}

type redisLimiter struct {
	client redis.UniversalClient
	prefix string
	limit  int
	window time.Duration
}

var _ core.RateLimiter = (*redisLimiter)(nil)

func NewRedisLimiter(client redis.UniversalClient, prefix string, limit int, window time.Duration) core.RateLimiter {
	return &redisLimiter{
		client: client,
		prefix: prefix,
		limit:  limit,
		window: window,
	}
}

func (l *redisLimiter) key(key string) string { return "ratelimit:" + l.prefix + ":" + key }

func (l *redisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	k := l.key(key)

	var incr *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		pipe.ExpireNX(ctx, k, l.window)
		return nil
	})
	if err != nil {
		return false, errors.Wrap(err, "incrementing rate counter")
	}
	return incr.Val() <= int64(l.limit), nil
}

func (l *redisLimiter) Reset(ctx context.Context, key string) error {
	return errors.Wrap(l.client.Del(ctx, l.key(key)).Err(), "resetting rate counter")
}
