package service

import (
	"fmt"
	"sync/atomic"
	"time"
)

// minTrustedEpochMillis is 2020-01-01T00:00:00Z. A system clock reading earlier than this is
// treated as an unusable time source.
const minTrustedEpochMillis uint64 = 1_577_836_800_000

// SystemClock reads the wall clock and never goes backwards within a process.
type SystemClock struct {
	now  func() time.Time
	last atomic.Uint64
}

// NewSystemClock returns a clock backed by time.Now. It fails when the host clock is
// clearly unset, which callers must treat as fatal at startup.
func NewSystemClock() (*SystemClock, error) {
	return newSystemClock(time.Now)
}

func newSystemClock(now func() time.Time) (*SystemClock, error) {
	c := &SystemClock{now: now}
	if ms := c.NowMillis(); ms < minTrustedEpochMillis {
		return nil, fmt.Errorf("system clock reads %d ms since epoch, before 2020: refusing to start", ms)
	}
	return c, nil
}

// NowMillis implements Clock.
func (c *SystemClock) NowMillis() uint64 {
	wall := c.now().UnixMilli()
	if wall < 0 {
		wall = 0
	}
	current := uint64(wall)
	for {
		prev := c.last.Load()
		if current <= prev {
			return prev
		}
		if c.last.CompareAndSwap(prev, current) {
			return current
		}
	}
}

// FixedClock is a manually driven clock for tests and offline tools.
type FixedClock struct {
	ms atomic.Uint64
}

// NewFixedClock returns a clock stopped at ms.
func NewFixedClock(ms uint64) *FixedClock {
	c := &FixedClock{}
	c.ms.Store(ms)
	return c
}

// NowMillis implements Clock.
func (c *FixedClock) NowMillis() uint64 { return c.ms.Load() }

// Set moves the clock to ms.
func (c *FixedClock) Set(ms uint64) { c.ms.Store(ms) }

// Advance moves the clock forward by d.
func (c *FixedClock) Advance(d time.Duration) { c.ms.Add(uint64(d.Milliseconds())) }
