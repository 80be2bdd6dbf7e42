package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/bloodsync/bloodsync/internal/pkg/stacktrace"
)

// settled makes Ack/Nack fire at most once.
type settled struct {
	done atomic.Bool
}

func (s *settled) settle(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.done.Swap(true) {
		return nil
	}
	return fn()
}

func (s *settled) isSettled() bool { return s.done.Load() }

type settler interface {
	isSettled() bool
}

// dispatch fans deliveries from in out to n workers. Callers close in and wait on the group.
func dispatch(ctx context.Context, kind string, n int, in <-chan Delivery, h Handler, autoAck bool) *sync.WaitGroup {
	var wg sync.WaitGroup
	for range n {
		wg.Go(func() {
			for d := range in {
				err := handleSafely(ctx, kind, h, d)
				if !autoAck {
					continue
				}
				if s, ok := d.(settler); ok && s.isSettled() {
					continue
				}
				if err == nil {
					_ = d.Ack(ctx) //nolint:errcheck // broker redelivers on failure
				} else {
					_ = d.Nack(ctx) //nolint:errcheck // broker redelivers on failure
				}
			}
		})
	}
	return &wg
}

func handleSafely(ctx context.Context, kind string, h Handler, d Delivery) (err error) {
	defer func() {
		if rvr := recover(); rvr != nil {
			stack := debug.Stack()
			if paths := stacktrace.InternalPaths(stack); len(paths) > 0 {
				slog.ErrorContext(ctx, "panic in message handler", "broker", kind, "topic", d.Topic(), "panic", rvr, "stack", paths)
			} else {
				slog.ErrorContext(ctx, "panic in message handler", "broker", kind, "topic", d.Topic(), "panic", rvr, "stack", string(stack))
			}
			err = fmt.Errorf("messaging: panic in %s handler: %v", kind, rvr)
		}
	}()

	return h(ctx, d)
}
