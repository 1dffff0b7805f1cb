package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kunay1/seal/internal/config"
	"github.com/kunay1/seal/pkg/logger"
)

func TestRedisConnection(t *testing.T) {
	s := miniredis.RunT(t)
	rc := NewRedisConnection(&config.RedisConfig{Addresses: []string{s.Addr()}, PoolSize: 4}, logger.NewNoopLogger())
	ctx := context.Background()

	assert.Error(t, rc.Ping(ctx))
	require.NoError(t, rc.Connect(ctx))
	require.NotNil(t, rc.GetClient())
	assert.NoError(t, rc.Ping(ctx))

	health, err := rc.HealthCheck(ctx)
	require.NoError(t, err)
	assert.Equal(t, "healthy", health["status"])

	s.Close()
	health, err = rc.HealthCheck(ctx)
	assert.Error(t, err)
	assert.Equal(t, "unhealthy", health["status"])

	assert.NoError(t, rc.Close())
	assert.Nil(t, rc.GetClient())
}

func TestRedisConnectionRequiresAddress(t *testing.T) {
	rc := NewRedisConnection(&config.RedisConfig{}, logger.NewNoopLogger())
	assert.Error(t, rc.Connect(context.Background()))
}
