// Package clock provides the time source used by the TMMBN scheduler and
// interceptor.
package clock

import (
	"sync"
	"time"
)

// Clock returns the current time. Implementations must never go backwards.
type Clock interface {
	Now() time.Time
}

// Monotonic reads time.Now, which carries a monotonic reading in Go.
type Monotonic struct{}

// Now returns the current system time.
func (Monotonic) Now() time.Time {
	return time.Now()
}

// Mock is a manually driven Clock for tests. Unlike the interceptor state it
// feeds, it is safe to share between the test goroutine and background loops.
type Mock struct {
	mu      sync.Mutex
	current time.Time
}

// NewMock creates a Mock set to t. A zero t starts the clock at a fixed,
// non-zero instant so "never happened" checks on time.Time stay meaningful.
func NewMock(t time.Time) *Mock {
	if t.IsZero() {
		t = time.Unix(1000000000, 0)
	}
	return &Mock{current: t}
}

// Now returns the mock's current time.
func (m *Mock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Advance moves the clock forward by d. Panics on negative durations.
func (m *Mock) Advance(d time.Duration) {
	if d < 0 {
		panic("clock.Mock.Advance: duration must be non-negative")
	}
	m.mu.Lock()
	m.current = m.current.Add(d)
	m.mu.Unlock()
}
