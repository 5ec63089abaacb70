package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

var signupClass = RouteClass{
	Name:     "signup",
	Prefixes: []string{"/api/auth/signup"},
	Rule:     Rule{Limit: 5, Window: 10 * time.Minute},
}

func newMemoryLimiter(clock *fakeClock) *Limiter {
	c := NewMemoryCounterWithClock(clock.Now)
	return NewLimiter(c, []RouteClass{signupClass}, WithFallback(c))
}

func TestAllow_DeniesBeyondThresholdUntilRollover(t *testing.T) {
	clock := newFakeClock()
	l := newMemoryLimiter(clock)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		d := l.Allow(ctx, "10.0.0.1", "signup")
		require.True(t, d.Permitted, "request %d", i)
		assert.Equal(t, 5-i, d.Remaining)
	}

	clock.Advance(4 * time.Minute)
	for i := 0; i < 3; i++ {
		d := l.Allow(ctx, "10.0.0.1", "signup")
		require.False(t, d.Permitted)
		assert.Equal(t, 6*time.Minute, d.RetryAfter)
	}

	// other clients keep their own budget
	assert.True(t, l.Allow(ctx, "10.0.0.2", "signup").Permitted)

	clock.Advance(6*time.Minute + time.Second)
	d := l.Allow(ctx, "10.0.0.1", "signup")
	assert.True(t, d.Permitted, "window rolled over")
	assert.Equal(t, 4, d.Remaining)
}

func TestAllow_UnconfiguredClassPassesThrough(t *testing.T) {
	l := newMemoryLimiter(newFakeClock())

	for i := 0; i < 100; i++ {
		d := l.Allow(context.Background(), "10.0.0.1", "catalog")
		require.True(t, d.Permitted)
		assert.Zero(t, d.Limit)
	}
}

func TestClassify(t *testing.T) {
	l := NewLimiter(nil, []RouteClass{
		signupClass,
		{Name: "verify", Prefixes: []string{"/api/auth/verify-email"}, Rule: Rule{Limit: 10, Window: 5 * time.Minute}},
	})

	assert.Equal(t, "signup", l.Classify("/api/auth/signup"))
	assert.Equal(t, "verify", l.Classify("/api/auth/verify-email/abc"))
	assert.Equal(t, "", l.Classify("/courses"))
}

func TestAllow_ConcurrentIncrementsAreNotLost(t *testing.T) {
	clock := newFakeClock()
	c := NewMemoryCounterWithClock(clock.Now)
	l := NewLimiter(c, []RouteClass{{Name: "api", Prefixes: []string{"/api"}, Rule: Rule{Limit: 50, Window: time.Minute}}})

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		permitted int
	)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow(context.Background(), "client", "api").Permitted {
				mu.Lock()
				permitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, permitted)
}

type failingCounter struct{}

func (failingCounter) Increment(context.Context, string, time.Duration) (int64, time.Duration, error) {
	return 0, 0, errors.New("redis: connection refused")
}

func TestAllow_FallsBackWhenCounterFails(t *testing.T) {
	clock := newFakeClock()
	l := NewLimiter(failingCounter{}, []RouteClass{signupClass}, WithFallback(NewMemoryCounterWithClock(clock.Now)))

	for i := 0; i < 5; i++ {
		require.True(t, l.Allow(context.Background(), "c", "signup").Permitted)
	}
	assert.False(t, l.Allow(context.Background(), "c", "signup").Permitted, "fallback still enforces the limit")
}

func TestMemoryCounter_SweepDropsStaleWindows(t *testing.T) {
	clock := newFakeClock()
	c := NewMemoryCounterWithClock(clock.Now)
	ctx := context.Background()

	_, _, _ = c.Increment(ctx, "stale", time.Second)
	clock.Advance(time.Minute)

	for i := 0; i < sweepEvery; i++ {
		_, _, _ = c.Increment(ctx, "live", time.Hour)
	}

	assert.Equal(t, 1, c.Len())
}

func TestRedisCounter(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	l := NewLimiter(NewRedisCounter(client), []RouteClass{signupClass})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.True(t, l.Allow(ctx, "10.0.0.9", "signup").Permitted)
	}

	d := l.Allow(ctx, "10.0.0.9", "signup")
	require.False(t, d.Permitted)
	assert.InDelta(t, (10 * time.Minute).Seconds(), d.RetryAfter.Seconds(), 1)

	mr.FastForward(10*time.Minute + time.Second)
	assert.True(t, l.Allow(ctx, "10.0.0.9", "signup").Permitted, "key expired with the window")
}
