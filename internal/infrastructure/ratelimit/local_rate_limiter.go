package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/kunay1/seal/internal/domain/service"
	"github.com/kunay1/seal/pkg/constants"
)

var _ service.RateLimitService = (*LocalRateLimiter)(nil)

// LocalRateLimiter counts per process. Used when no Redis is configured.
type LocalRateLimiter struct {
	pool *TokenBucketPool
	now  func() time.Time
}

// NewLocalRateLimiter allows limit requests per window per key.
func NewLocalRateLimiter(limit int64, window time.Duration) *LocalRateLimiter {
	return &LocalRateLimiter{
		pool: NewTokenBucketPool(TokenBucketConfig{
			Capacity: float64(limit),
			Rate:     float64(limit) / window.Seconds(),
		}),
		now: time.Now,
	}
}

// Allow implements service.RateLimitService.
func (l *LocalRateLimiter) Allow(_ context.Context, dimension constants.RateLimitDimension, key string) (bool, int, time.Time, error) {
	now := l.now()
	allowed, remaining, resetAt := l.pool.GetOrCreate(fmt.Sprintf("%s:%s", dimension, key), now).Take(now)
	return allowed, remaining, resetAt, nil
}

// Cleanup drops buckets idle for longer than maxIdle.
func (l *LocalRateLimiter) Cleanup(maxIdle time.Duration) int {
	return l.pool.Cleanup(l.now(), maxIdle)
}
