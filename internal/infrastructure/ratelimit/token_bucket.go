// Package ratelimit provides rate limiting implementations.
package ratelimit

import (
	"sync"
	"time"

	"github.com/kunay1/seal/pkg/constants"
)

// TokenBucket implements the token bucket algorithm for rate limiting.
// It is safe for concurrent use; the lock covers only the counter update.
type TokenBucket struct {
	mu         sync.Mutex
	capacity   float64   // Maximum number of tokens
	tokens     float64   // Current number of tokens
	rate       float64   // Tokens added per second
	lastRefill time.Time // Last time tokens were refilled
}

// TokenBucketConfig holds configuration for creating a token bucket.
type TokenBucketConfig struct {
	// Capacity is the maximum number of tokens the bucket can hold
	Capacity float64
	// Rate is the number of tokens added per second
	Rate float64
}

// NewTokenBucket creates a full bucket with the specified capacity and rate.
func NewTokenBucket(capacity, rate float64, now time.Time) *TokenBucket {
	if capacity <= 0 {
		capacity = float64(constants.DefaultRateLimitPerMinute)
	}
	if rate <= 0 {
		rate = float64(constants.DefaultRateLimitPerMinute) / constants.RateLimitWindow.Seconds()
	}

	return &TokenBucket{
		capacity:   capacity,
		tokens:     capacity,
		rate:       rate,
		lastRefill: now,
	}
}

// Take attempts to consume one token at time now. It returns whether the token was granted,
// the whole tokens left and when the bucket will be full again.
func (tb *TokenBucket) Take(now time.Time) (bool, int, time.Time) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill(now)

	allowed := false
	if tb.tokens >= 1 {
		tb.tokens--
		allowed = true
	}

	resetAt := now
	if tb.tokens < tb.capacity {
		resetAt = now.Add(time.Duration((tb.capacity - tb.tokens) / tb.rate * float64(time.Second)))
	}
	return allowed, int(tb.tokens), resetAt
}

// refill adds tokens based on elapsed time. Must be called with lock held.
func (tb *TokenBucket) refill(now time.Time) {
	elapsed := now.Sub(tb.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}

	tb.tokens += elapsed * tb.rate
	if tb.tokens > tb.capacity {
		tb.tokens = tb.capacity
	}
	tb.lastRefill = now
}

// Available returns the tokens available at time now.
func (tb *TokenBucket) Available(now time.Time) float64 {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill(now)
	return tb.tokens
}

// TokenBucketPool manages one bucket per key with idle cleanup.
type TokenBucketPool struct {
	mu      sync.Mutex
	buckets map[string]*tokenBucketEntry
	config  TokenBucketConfig
}

type tokenBucketEntry struct {
	bucket   *TokenBucket
	lastUsed time.Time
}

// NewTokenBucketPool creates a new token bucket pool.
func NewTokenBucketPool(config TokenBucketConfig) *TokenBucketPool {
	return &TokenBucketPool{
		buckets: make(map[string]*tokenBucketEntry),
		config:  config,
	}
}

// GetOrCreate gets an existing bucket or creates a full one.
func (p *TokenBucketPool) GetOrCreate(key string, now time.Time) *TokenBucket {
	p.mu.Lock()
	defer p.mu.Unlock()

	if entry, exists := p.buckets[key]; exists {
		entry.lastUsed = now
		return entry.bucket
	}

	bucket := NewTokenBucket(p.config.Capacity, p.config.Rate, now)
	p.buckets[key] = &tokenBucketEntry{bucket: bucket, lastUsed: now}
	return bucket
}

// Remove removes a bucket from the pool.
func (p *TokenBucketPool) Remove(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.buckets, key)
}

// Cleanup removes buckets idle for longer than maxIdle and returns how many were removed.
func (p *TokenBucketPool) Cleanup(now time.Time, maxIdle time.Duration) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	removed := 0
	for key, entry := range p.buckets {
		if now.Sub(entry.lastUsed) > maxIdle {
			delete(p.buckets, key)
			removed++
		}
	}
	return removed
}

// Size returns the number of buckets in the pool.
func (p *TokenBucketPool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.buckets)
}

// Clear removes all buckets from the pool.
func (p *TokenBucketPool) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.buckets = make(map[string]*tokenBucketEntry)
}
