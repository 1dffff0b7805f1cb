package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplayStore(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	defer client.Close()

	store := NewReplayStore(client, "")
	ctx := context.Background()

	seen, err := store.Seen(ctx, "fp")
	require.NoError(t, err)
	assert.False(t, seen)

	fresh, err := store.MarkUsed(ctx, "fp", time.Minute)
	require.NoError(t, err)
	assert.True(t, fresh)

	fresh, err = store.MarkUsed(ctx, "fp", time.Minute)
	require.NoError(t, err)
	assert.False(t, fresh)

	seen, err = store.Seen(ctx, "fp")
	require.NoError(t, err)
	assert.True(t, seen)
	assert.True(t, s.Exists("seal:replay:fp"))

	s.FastForward(2 * time.Minute)
	seen, err = store.Seen(ctx, "fp")
	require.NoError(t, err)
	assert.False(t, seen)
}
