// Package clock abstracts wall time so work order dates, deadlines, and
// sweep windows are testable.
package clock

import "time"

// Clock is the time source the engine components depend on
type Clock interface {
	Now() time.Time
	Since(t time.Time) time.Duration
}

// RealClock reads the system clock
type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now()
}

func (RealClock) Since(t time.Time) time.Duration {
	return time.Since(t)
}

// MockClock is a manually driven clock for tests. It only moves when told
// to, so time-derived output like work order IDs is deterministic.
type MockClock struct {
	now time.Time
}

// NewMockClock creates a mock clock frozen at t
func NewMockClock(t time.Time) *MockClock {
	return &MockClock{now: t}
}

func (m *MockClock) Now() time.Time {
	return m.now
}

func (m *MockClock) Since(t time.Time) time.Duration {
	return m.now.Sub(t)
}

// Set jumps the clock to t
func (m *MockClock) Set(t time.Time) {
	m.now = t
}

// Advance moves the clock forward by d
func (m *MockClock) Advance(d time.Duration) {
	m.now = m.now.Add(d)
}
