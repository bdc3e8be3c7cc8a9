package core

import "context"

// RateLimiter counts hits per key within a fixed window (see services/ratelimit).
type RateLimiter interface {
	// Allow records a hit for key and reports whether it is still within the limit.
	Allow(ctx context.Context, key string) (bool, error)
	Reset(ctx context.Context, key string) error
}
