// Package timeutil holds the wall clock that paces session replay, with a
// manual implementation for tests.
package timeutil

import (
	"slices"
	"sync"
	"time"
)

// Clock is the time source a replay is paced against.
type Clock interface {
	Now() time.Time
	Since(t time.Time) time.Duration
	// Sleep blocks for d; non-positive durations return at once.
	Sleep(d time.Duration)
}

// RealClock is the process wall clock.
type RealClock struct{}

func (RealClock) Now() time.Time                  { return time.Now() }
func (RealClock) Since(t time.Time) time.Duration { return time.Since(t) }

func (RealClock) Sleep(d time.Duration) {
	if d > 0 {
		time.Sleep(d)
	}
}

// MockClock only moves when told to. Sleep returns at once, records the
// request and moves the clock forward by it.
type MockClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

// NewMockClock starts a MockClock at t.
func NewMockClock(t time.Time) *MockClock {
	return &MockClock{now: t}
}

func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set jumps the clock to t.
func (c *MockClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Advance moves the clock forward by d.
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *MockClock) Since(t time.Time) time.Duration {
	return c.Now().Sub(t)
}

// Sleep records the duration and advances the clock by it.
func (c *MockClock) Sleep(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	if d > 0 {
		c.now = c.now.Add(d)
	}
}

// Sleeps returns every duration passed to Sleep, in call order.
func (c *MockClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.sleeps)
}
