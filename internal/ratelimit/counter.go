package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Counter is a keyed fixed-window counter with an atomic increment-and-read.
// Implementations must not lose increments under concurrent calls for the
// same key.
type Counter interface {
	// Increment bumps the counter for key, starting a new window when the
	// previous one is older than window, and returns the post-increment count
	// together with the time left in the current window.
	Increment(ctx context.Context, key string, window time.Duration) (count int64, resetIn time.Duration, err error)
}

const sweepEvery = 1024

type windowEntry struct {
	count       int64
	windowStart time.Time
	window      time.Duration
}

// MemoryCounter keeps counters in process memory. Stale windows are dropped
// lazily: on read, and by an occasional sweep piggybacked on Increment.
type MemoryCounter struct {
	mu      sync.Mutex
	entries map[string]*windowEntry
	calls   int
	now     func() time.Time
}

func NewMemoryCounter() *MemoryCounter {
	return NewMemoryCounterWithClock(time.Now)
}

func NewMemoryCounterWithClock(now func() time.Time) *MemoryCounter {
	return &MemoryCounter{
		entries: make(map[string]*windowEntry),
		now:     now,
	}
}

func (c *MemoryCounter) Increment(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()

	c.calls++
	if c.calls%sweepEvery == 0 {
		c.sweep(now)
	}

	e, ok := c.entries[key]
	if !ok || now.Sub(e.windowStart) > window {
		e = &windowEntry{windowStart: now, window: window}
		c.entries[key] = e
	}
	e.count++

	resetIn := window - now.Sub(e.windowStart)
	if resetIn < 0 {
		resetIn = 0
	}

	return e.count, resetIn, nil
}

// Len reports how many windows are currently tracked.
func (c *MemoryCounter) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *MemoryCounter) sweep(now time.Time) {
	for k, e := range c.entries {
		if now.Sub(e.windowStart) > e.window {
			delete(c.entries, k)
		}
	}
}
