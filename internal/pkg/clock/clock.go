// Package clock hides the time source behind an interface so that
// time-dependent rules (code windows, cooldowns) can be driven by a fake in tests.
package clock

import "time"

// Clocker reports the current time.
type Clocker interface {
	Now() time.Time
	// Since returns the elapsed time since t. When t carries a monotonic
	// reading (it came from Now) the result ignores wall clock adjustments.
	Since(t time.Time) time.Duration
}

// System is the production Clocker backed by the time package.
type System struct{}

// New returns the system clock.
func New() *System {
	return &System{}
}

// Now returns time.Now.
func (*System) Now() time.Time {
	return time.Now()
}

// Since returns time.Since(t).
func (*System) Since(t time.Time) time.Duration {
	return time.Since(t)
}

// Fixed is a manually advanced Clocker for tests.
type Fixed struct {
	now time.Time
}

// NewFixed returns a Fixed clock starting at now.
func NewFixed(now time.Time) *Fixed {
	return &Fixed{now: now}
}

// Now returns the frozen time.
func (f *Fixed) Now() time.Time {
	return f.now
}

// Since returns the distance between the frozen time and t.
func (f *Fixed) Since(t time.Time) time.Duration {
	return f.now.Sub(t)
}

// Advance moves the frozen time forward by d.
func (f *Fixed) Advance(d time.Duration) {
	f.now = f.now.Add(d)
}
