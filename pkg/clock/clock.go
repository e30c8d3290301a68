// Package clock is the time source for the toolkit.
//
// Everything that needs "now" takes a Clock so tests can substitute a
// Mock and drive time by hand. The helpers in this package cover the
// small amount of date arithmetic the schedulers need: epoch
// conversion, add-units, clamped differences, and UTC construction.
package clock

import (
	"sync"
	"time"
)

// Clock reports the current time.
//
// Consumers treat Now() as non-decreasing; the host clock's
// monotonicity is not independently verified.
type Clock interface {
	Now() time.Time
}

// System is the production Clock backed by time.Now.
type System struct{}

func (System) Now() time.Time { return time.Now() }

// Mock is a manually-advanced Clock for tests.
type Mock struct {
	mu  sync.Mutex
	now time.Time
}

// NewMock returns a Mock pinned to start.
func NewMock(start time.Time) *Mock {
	return &Mock{now: start}
}

func (m *Mock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the mock clock forward by d. Negative d is ignored;
// mock time never runs backwards.
func (m *Mock) Advance(d time.Duration) {
	if d < 0 {
		return
	}
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}

// Set pins the mock clock to t.
func (m *Mock) Set(t time.Time) {
	m.mu.Lock()
	m.now = t
	m.mu.Unlock()
}
