// Package cache holds in-process caches.
package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/kunay1/seal/internal/domain/service"
)

var _ service.ReplayCache = (*MemoryReplayCache)(nil)

// MemoryReplayCache remembers served requests in process memory. It only protects a single
// node; use the Redis store when several nodes share traffic.
type MemoryReplayCache struct {
	c *gocache.Cache
}

// NewMemoryReplayCache creates a cache that sweeps expired entries every cleanupInterval.
func NewMemoryReplayCache(cleanupInterval time.Duration) *MemoryReplayCache {
	return &MemoryReplayCache{c: gocache.New(gocache.NoExpiration, cleanupInterval)}
}

// Seen implements service.ReplayCache.
func (m *MemoryReplayCache) Seen(_ context.Context, fingerprint string) (bool, error) {
	_, found := m.c.Get(fingerprint)
	return found, nil
}

// MarkUsed implements service.ReplayCache. Add is atomic, so only one of two racing
// duplicates gets true.
func (m *MemoryReplayCache) MarkUsed(_ context.Context, fingerprint string, ttl time.Duration) (bool, error) {
	if err := m.c.Add(fingerprint, struct{}{}, ttl); err != nil {
		return false, nil
	}
	return true, nil
}

// Len returns the number of remembered requests, including expired ones not yet swept.
func (m *MemoryReplayCache) Len() int {
	return m.c.ItemCount()
}
