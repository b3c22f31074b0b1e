package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Keyed limits sends per key, typically a user id.
type Keyed interface {
	Allow(ctx context.Context, key string) error
}

// MemoryKeyed keeps one Limiter per key in process memory.
type MemoryKeyed struct {
	max    int
	window time.Duration
	clock  Clock

	mu       sync.Mutex
	limiters map[string]*Limiter
}

var _ Keyed = (*MemoryKeyed)(nil)

// NewMemoryKeyed returns a keyed limiter with the given limits.
func NewMemoryKeyed(max int, window time.Duration, clock Clock) *MemoryKeyed {
	return &MemoryKeyed{
		max:      max,
		window:   window,
		clock:    clock,
		limiters: make(map[string]*Limiter),
	}
}

// Allow checks and records a send for key.
func (m *MemoryKeyed) Allow(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	l, ok := m.limiters[key]
	if !ok {
		l = New(m.max, m.window, m.clock)
		m.limiters[key] = l
	}
	m.mu.Unlock()

	return l.Allow()
}
