package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestSixthSendWithinWindowIsLimited(t *testing.T) {
	clock := newFakeClock()
	l := New(5, 3000*time.Millisecond, clock)

	for i := 0; i < 5; i++ {
		require.NoError(t, l.Allow(), "send %d", i+1)
		clock.Advance(200 * time.Millisecond)
	}
	assert.ErrorIs(t, l.Allow(), ErrRateLimited)

	clock.Advance(3000 * time.Millisecond)
	assert.NoError(t, l.Allow())
}

func TestLimitedSendIsNotRecorded(t *testing.T) {
	clock := newFakeClock()
	l := New(2, time.Second, clock)

	require.NoError(t, l.Allow())
	require.NoError(t, l.Allow())
	for i := 0; i < 10; i++ {
		assert.ErrorIs(t, l.Allow(), ErrRateLimited)
	}
	assert.Equal(t, 2, l.Len())
}

func TestWindowBoundaryIsExclusive(t *testing.T) {
	clock := newFakeClock()
	l := New(1, time.Second, clock)

	require.NoError(t, l.Allow())
	clock.Advance(999 * time.Millisecond)
	assert.ErrorIs(t, l.Allow(), ErrRateLimited)

	// A send exactly one window old no longer counts.
	clock.Advance(time.Millisecond)
	assert.NoError(t, l.Allow())
}

func TestLogIsBounded(t *testing.T) {
	clock := newFakeClock()
	l := New(5, time.Millisecond, clock)

	for i := 0; i < 250; i++ {
		require.NoError(t, l.Allow())
		clock.Advance(time.Second)
	}
	assert.Equal(t, minRetained, l.Len())
}

func TestLogKeepsAtLeastMax(t *testing.T) {
	clock := newFakeClock()
	l := New(150, time.Hour, clock)

	for i := 0; i < 150; i++ {
		require.NoError(t, l.Allow())
	}
	assert.Equal(t, 150, l.Len())
	assert.ErrorIs(t, l.Allow(), ErrRateLimited)
}

func TestDefaults(t *testing.T) {
	l := New(0, 0, nil)
	assert.Equal(t, DefaultMax, l.max)
	assert.Equal(t, DefaultWindow, l.window)
	assert.IsType(t, SystemClock{}, l.clock)
}

func TestReset(t *testing.T) {
	clock := newFakeClock()
	l := New(1, time.Minute, clock)

	require.NoError(t, l.Allow())
	require.ErrorIs(t, l.Allow(), ErrRateLimited)
	l.Reset()
	assert.NoError(t, l.Allow())
}

func TestConcurrentAllowNeverExceedsMax(t *testing.T) {
	clock := newFakeClock()
	l := New(5, time.Minute, clock)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow() == nil {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 5, allowed)
}

func TestMemoryKeyedSeparatesKeys(t *testing.T) {
	clock := newFakeClock()
	k := NewMemoryKeyed(1, time.Minute, clock)
	ctx := context.Background()

	require.NoError(t, k.Allow(ctx, "alice"))
	assert.ErrorIs(t, k.Allow(ctx, "alice"), ErrRateLimited)
	assert.NoError(t, k.Allow(ctx, "bob"))

	clock.Advance(time.Minute)
	assert.NoError(t, k.Allow(ctx, "alice"))
}
