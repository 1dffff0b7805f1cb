package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kunay1/seal/pkg/constants"
	"github.com/kunay1/seal/pkg/logger"
)

func newTestLimiter(t *testing.T, limit int64, fallback bool) (*RedisRateLimiter, *miniredis.Miniredis, *time.Time) {
	t.Helper()
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	rl, err := NewRedisRateLimiter(client, &RateLimiterConfig{
		Limit:               limit,
		Window:              time.Minute,
		EnableLocalFallback: fallback,
		KeyPrefix:           "test",
	}, logger.NewNoopLogger())
	require.NoError(t, err)

	now := time.UnixMilli(1_700_000_000_000)
	rl.now = func() time.Time { return now }
	return rl, s, &now
}

func TestRedisRateLimiter_Allow(t *testing.T) {
	rl, _, now := newTestLimiter(t, 3, false)
	ctx := context.Background()
	user := "0xaaaa"

	for i := 0; i < 3; i++ {
		allowed, remaining, _, err := rl.Allow(ctx, constants.RateLimitDimensionIdentity, user)
		require.NoError(t, err)
		assert.True(t, allowed, "request %d", i)
		assert.Equal(t, 2-i, remaining)
	}

	allowed, _, resetAt, err := rl.Allow(ctx, constants.RateLimitDimensionIdentity, user)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.True(t, resetAt.After(*now))

	// Other identities have their own budget.
	allowed, _, _, err = rl.Allow(ctx, constants.RateLimitDimensionIdentity, "0xbbbb")
	require.NoError(t, err)
	assert.True(t, allowed)

	// One token refills every 20s at 3/min.
	*now = now.Add(21 * time.Second)
	allowed, _, _, err = rl.Allow(ctx, constants.RateLimitDimensionIdentity, user)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRedisRateLimiter_ResetLimit(t *testing.T) {
	rl, _, _ := newTestLimiter(t, 1, false)
	ctx := context.Background()

	allowed, _, _, err := rl.Allow(ctx, constants.RateLimitDimensionSession, "k")
	require.NoError(t, err)
	assert.True(t, allowed)
	allowed, _, _, _ = rl.Allow(ctx, constants.RateLimitDimensionSession, "k")
	assert.False(t, allowed)

	require.NoError(t, rl.ResetLimit(ctx, constants.RateLimitDimensionSession, "k"))
	allowed, _, _, err = rl.Allow(ctx, constants.RateLimitDimensionSession, "k")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRedisRateLimiter_Fallback(t *testing.T) {
	t.Run("local buckets keep limiting", func(t *testing.T) {
		rl, s, _ := newTestLimiter(t, 2, true)
		s.Close()
		ctx := context.Background()

		for i := 0; i < 2; i++ {
			allowed, _, _, err := rl.Allow(ctx, constants.RateLimitDimensionIdentity, "u")
			require.NoError(t, err)
			assert.True(t, allowed)
		}
		allowed, _, _, err := rl.Allow(ctx, constants.RateLimitDimensionIdentity, "u")
		require.NoError(t, err)
		assert.False(t, allowed)
	})

	t.Run("no fallback returns the error", func(t *testing.T) {
		rl, s, _ := newTestLimiter(t, 2, false)
		s.Close()

		allowed, _, _, err := rl.Allow(context.Background(), constants.RateLimitDimensionIdentity, "u")
		assert.Error(t, err)
		assert.False(t, allowed)
	})
}

func TestLocalRateLimiter(t *testing.T) {
	l := NewLocalRateLimiter(2, time.Minute)
	now := time.UnixMilli(1_700_000_000_000)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	a, _, _, _ := l.Allow(ctx, constants.RateLimitDimensionIdentity, "u")
	b, _, _, _ := l.Allow(ctx, constants.RateLimitDimensionIdentity, "u")
	c, _, _, _ := l.Allow(ctx, constants.RateLimitDimensionIdentity, "u")
	assert.True(t, a)
	assert.True(t, b)
	assert.False(t, c)

	now = now.Add(10 * time.Minute)
	assert.Equal(t, 1, l.Cleanup(time.Minute))
}
