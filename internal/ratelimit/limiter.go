// Package ratelimit throttles message sends with a sliding window.
//
// A Limiter is owned by its caller (one per websocket session, one per test);
// there is no package-level instance. Keyed limiters serve the HTTP API, where
// the window has to be shared by every request of the same user.
package ratelimit

import (
	"errors"
	"sync"
	"time"
)

// Defaults used when the configuration leaves the limits unset.
const (
	DefaultMax    = 5
	DefaultWindow = 3000 * time.Millisecond

	// minRetained is the floor for how many timestamps a log keeps.
	minRetained = 100
)

// ErrRateLimited is returned when a send would exceed the window.
var ErrRateLimited = errors.New("rate limited")

// Clock supplies the current time. Tests inject a fake to step through windows.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns time.Now.
func (SystemClock) Now() time.Time { return time.Now() }

// Limiter is a bounded log of recent send timestamps.
type Limiter struct {
	max      int
	window   time.Duration
	retained int
	clock    Clock

	mu    sync.Mutex
	times []time.Time
}

// New returns a limiter allowing max sends per window. Non-positive values
// fall back to the defaults and a nil clock uses the system clock.
func New(max int, window time.Duration, clock Clock) *Limiter {
	if max <= 0 {
		max = DefaultMax
	}
	if window <= 0 {
		window = DefaultWindow
	}
	if clock == nil {
		clock = SystemClock{}
	}
	retained := minRetained
	if max > retained {
		retained = max
	}
	return &Limiter{
		max:      max,
		window:   window,
		retained: retained,
		clock:    clock,
	}
}

// Allow records a send at the current time, or returns ErrRateLimited and
// records nothing when max sends already fall inside (now-window, now].
func (l *Limiter) Allow() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	if countSince(l.times, now.Add(-l.window)) >= l.max {
		return ErrRateLimited
	}

	l.times = append(l.times, now)
	if over := len(l.times) - l.retained; over > 0 {
		l.times = append(l.times[:0], l.times[over:]...)
	}
	return nil
}

// Len reports how many timestamps the log currently holds.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.times)
}

// Reset forgets every recorded send.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.times = l.times[:0]
}

// countSince counts timestamps strictly after start. The log is append-only
// in clock order, so the scan runs from the newest entry backwards.
func countSince(times []time.Time, start time.Time) int {
	n := 0
	for i := len(times) - 1; i >= 0; i-- {
		if !times[i].After(start) {
			break
		}
		n++
	}
	return n
}
