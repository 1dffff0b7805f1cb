package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kunay1/seal/internal/domain/service"
	"github.com/kunay1/seal/pkg/constants"
	"github.com/kunay1/seal/pkg/logger"
)

var _ service.RateLimitService = (*RedisRateLimiter)(nil)

// RedisRateLimiter implements distributed rate limiting using Redis, shared by every node
// pointed at the same Redis.
type RedisRateLimiter struct {
	client       redis.UniversalClient
	logger       logger.Logger
	config       *RateLimiterConfig
	localBuckets *TokenBucketPool // Fallback for Redis failures
	now          func() time.Time
}

// RateLimiterConfig holds rate limiter configuration.
type RateLimiterConfig struct {
	// Limit is the number of requests allowed per window
	Limit int64
	// Window is the time window for rate limiting
	Window time.Duration
	// EnableLocalFallback counts in-process when Redis is unreachable
	EnableLocalFallback bool
	// KeyPrefix is the Redis key prefix
	KeyPrefix string
}

// DefaultRateLimiterConfig returns default rate limiter configuration.
func DefaultRateLimiterConfig() *RateLimiterConfig {
	return &RateLimiterConfig{
		Limit:               constants.DefaultRateLimitPerMinute,
		Window:              constants.RateLimitWindow,
		EnableLocalFallback: true,
		KeyPrefix:           "seal:ratelimit",
	}
}

// tokenBucketScript refills and takes one token atomically.
// Returns {allowed, remaining, reset_ms}.
var tokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local bucket = redis.call('HMGET', key, 'tokens', 'last_refill')
local tokens = tonumber(bucket[1]) or capacity
local last_refill = tonumber(bucket[2]) or now

local elapsed = now - last_refill
if elapsed > 0 then
    tokens = math.min(tokens + elapsed * rate / 1000, capacity)
    last_refill = now
end

local allowed = 0
if tokens >= 1 then
    tokens = tokens - 1
    allowed = 1
end

local reset_ms = 0
if tokens < capacity then
    reset_ms = math.ceil((capacity - tokens) / rate * 1000)
end

redis.call('HSET', key, 'tokens', tostring(tokens), 'last_refill', tostring(last_refill))
redis.call('PEXPIRE', key, reset_ms + 60000)

return {allowed, math.floor(tokens), reset_ms}
`)

// NewRedisRateLimiter creates a new Redis-based rate limiter.
func NewRedisRateLimiter(client redis.UniversalClient, config *RateLimiterConfig, log logger.Logger) (*RedisRateLimiter, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if config == nil {
		config = DefaultRateLimiterConfig()
	}
	if config.Limit <= 0 || config.Window <= 0 {
		return nil, fmt.Errorf("rate limit must be positive, got %d per %s", config.Limit, config.Window)
	}

	rl := &RedisRateLimiter{
		client: client,
		logger: log.WithComponent("ratelimit"),
		config: config,
		now:    time.Now,
	}

	if config.EnableLocalFallback {
		rl.localBuckets = NewTokenBucketPool(TokenBucketConfig{
			Capacity: float64(config.Limit),
			Rate:     rl.rate(),
		})
	}

	rl.logger.Info(context.Background(), "Redis rate limiter initialized",
		logger.Int64("limit", config.Limit),
		logger.Duration("window", config.Window),
		logger.Bool("local_fallback", config.EnableLocalFallback),
	)

	return rl, nil
}

// Allow implements service.RateLimitService.
func (rl *RedisRateLimiter) Allow(ctx context.Context, dimension constants.RateLimitDimension, key string) (bool, int, time.Time, error) {
	redisKey := rl.buildKey(dimension, key)
	now := rl.now()

	res, err := tokenBucketScript.Run(ctx, rl.client, []string{redisKey},
		rl.config.Limit, rl.rate(), now.UnixMilli()).Int64Slice()
	if err == nil && len(res) == 3 {
		resetAt := now.Add(time.Duration(res[2]) * time.Millisecond)
		return res[0] == 1, int(res[1]), resetAt, nil
	}
	if err == nil {
		err = fmt.Errorf("unexpected rate limit script result %v", res)
	}

	if rl.localBuckets == nil {
		return false, 0, time.Time{}, fmt.Errorf("rate limit check for %s: %w", redisKey, err)
	}

	rl.logger.Warn(ctx, "Redis rate limit check failed, using local bucket",
		logger.String("key", redisKey), logger.Err(err))
	allowed, remaining, resetAt := rl.localBuckets.GetOrCreate(redisKey, now).Take(now)
	return allowed, remaining, resetAt, nil
}

// ResetLimit clears the counter for one key.
func (rl *RedisRateLimiter) ResetLimit(ctx context.Context, dimension constants.RateLimitDimension, key string) error {
	redisKey := rl.buildKey(dimension, key)
	if err := rl.client.Del(ctx, redisKey).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("reset rate limit %s: %w", redisKey, err)
	}
	if rl.localBuckets != nil {
		rl.localBuckets.Remove(redisKey)
	}
	return nil
}

// CleanupLocalBuckets drops idle fallback buckets.
func (rl *RedisRateLimiter) CleanupLocalBuckets(maxIdle time.Duration) int {
	if rl.localBuckets == nil {
		return 0
	}
	removed := rl.localBuckets.Cleanup(rl.now(), maxIdle)
	if removed > 0 {
		rl.logger.Debug(context.Background(), "Cleaned up idle buckets", logger.Int("count", removed))
	}
	return removed
}

// Close releases local resources. The Redis client is owned by the caller.
func (rl *RedisRateLimiter) Close() error {
	if rl.localBuckets != nil {
		rl.localBuckets.Clear()
	}
	return nil
}

func (rl *RedisRateLimiter) rate() float64 {
	return float64(rl.config.Limit) / rl.config.Window.Seconds()
}

func (rl *RedisRateLimiter) buildKey(dimension constants.RateLimitDimension, key string) string {
	return fmt.Sprintf("%s:%s:%s", rl.config.KeyPrefix, dimension, key)
}
