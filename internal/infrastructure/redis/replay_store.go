package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kunay1/seal/internal/domain/service"
)

type replayStore struct {
	rdb    redis.UniversalClient
	prefix string
}

// NewReplayStore returns a ReplayCache shared by every node using rdb.
func NewReplayStore(rdb redis.UniversalClient, prefix string) service.ReplayCache {
	if prefix == "" {
		prefix = "seal:replay"
	}
	return &replayStore{rdb: rdb, prefix: prefix}
}

func (s *replayStore) key(fingerprint string) string {
	return fmt.Sprintf("%s:%s", s.prefix, fingerprint)
}

func (s *replayStore) Seen(ctx context.Context, fingerprint string) (bool, error) {
	n, err := s.rdb.Exists(ctx, s.key(fingerprint)).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *replayStore) MarkUsed(ctx context.Context, fingerprint string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, fmt.Errorf("replay ttl must be positive")
	}
	return s.rdb.SetNX(ctx, s.key(fingerprint), "1", ttl).Result()
}
