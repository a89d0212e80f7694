package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter defines the interface for rate limiting
type Limiter interface {
	// Allow reports whether a request may start right now, consuming the slot if so
	Allow() bool
	// Wait blocks until the next request may start or ctx is done
	Wait(ctx context.Context) error
	// Reset forgets past requests
	Reset()
}

// MinDelay spaces request starts at least minDelay apart across every
// goroutine that shares it. A zero delay disables spacing.
type MinDelay struct {
	mu       sync.RWMutex
	minDelay time.Duration
	limiter  *rate.Limiter
}

// NewMinDelay creates a limiter admitting one request per minDelay
func NewMinDelay(minDelay time.Duration) *MinDelay {
	if minDelay < 0 {
		minDelay = 0
	}
	return &MinDelay{
		minDelay: minDelay,
		limiter:  rate.NewLimiter(limitFor(minDelay), 1),
	}
}

func limitFor(d time.Duration) rate.Limit {
	if d <= 0 {
		return rate.Inf
	}
	return rate.Every(d)
}

func (m *MinDelay) current() *rate.Limiter {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.limiter
}

func (m *MinDelay) Allow() bool {
	return m.current().Allow()
}

func (m *MinDelay) Wait(ctx context.Context) error {
	return m.current().Wait(ctx)
}

func (m *MinDelay) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limiter = rate.NewLimiter(limitFor(m.minDelay), 1)
}

// MinDelay returns the current spacing
func (m *MinDelay) MinDelay() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.minDelay
}

// EnsureAtLeast raises the spacing to d. It never lowers it.
func (m *MinDelay) EnsureAtLeast(d time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if d <= m.minDelay {
		return false
	}
	m.minDelay = d
	m.limiter.SetLimit(limitFor(d))
	return true
}

// Unlimited returns a limiter that never blocks
func Unlimited() *MinDelay {
	return NewMinDelay(0)
}
