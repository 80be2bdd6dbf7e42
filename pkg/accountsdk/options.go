package accountsdk

import (
	"time"

	"github.com/bloodsync/bloodsync/internal/pkg/clock"
)

const (
	defaultCodeLength  = 6
	defaultMinPassword = 8
)

type options struct {
	clock       clock.Clocker
	tick        time.Duration
	minPassword int
	after       func(time.Duration) <-chan time.Time
}

// Option configures the reset screens.
type Option func(*options)

// WithClock replaces the time source. Deadlines are computed with Now and
// checked with Since, so a clock whose Now carries a monotonic reading keeps
// them immune to wall clock changes.
func WithClock(c clock.Clocker) Option {
	return func(o *options) { o.clock = c }
}

// WithTickInterval sets how often countdowns and expiry watchers refresh.
func WithTickInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.tick = d
		}
	}
}

// WithMinPasswordLength sets the local password length check. It should not
// be lower than the server policy or the server will reject what passes here.
func WithMinPasswordLength(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.minPassword = n
		}
	}
}

func newOptions(opts []Option) options {
	o := options{
		clock:       clock.New(),
		tick:        time.Second,
		minPassword: defaultMinPassword,
		after:       time.After,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// ticker emits on every interval until done is closed.
func ticker(d time.Duration, done <-chan struct{}) <-chan time.Time {
	t := time.NewTicker(d)
	out := make(chan time.Time)
	go func() {
		defer t.Stop()
		defer close(out)
		for {
			select {
			case <-done:
				return
			case now := <-t.C:
				select {
				case out <- now:
				case <-done:
					return
				}
			}
		}
	}()
	return out
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}
