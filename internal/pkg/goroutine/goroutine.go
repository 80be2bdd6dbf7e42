// Package goroutine runs background work under a shared concurrency cap so
// that shutdown can wait for every task it started.
package goroutine

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"runtime/debug"
	"sync"

	"github.com/bloodsync/bloodsync/internal/pkg/stacktrace"
)

// DefaultMaxGoroutine is multiplied by NumCPU when no limit is configured.
const DefaultMaxGoroutine = 100

// Manager starts tasks in goroutines, bounded by a semaphore.
type Manager struct {
	wg   sync.WaitGroup
	slot chan struct{}

	mu     sync.Mutex
	closed bool
	errs   []error
}

// NewManager returns a Manager that runs at most limit tasks at once.
func NewManager(limit int) *Manager {
	if limit < 1 {
		limit = runtime.NumCPU() * DefaultMaxGoroutine
	}

	return &Manager{slot: make(chan struct{}, limit)}
}

// Go runs f in a new goroutine. The task is dropped with a warning when the
// manager is closed or saturated. Panics are recovered and logged.
func (m *Manager) Go(ctx context.Context, f func(ctx context.Context) error) {
	if m == nil {
		return
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		slog.WarnContext(ctx, "goroutine manager closed, task dropped")
		return
	}

	select {
	case m.slot <- struct{}{}:
	default:
		m.mu.Unlock()
		slog.WarnContext(ctx, "goroutine limit reached, task dropped", "limit", cap(m.slot))
		return
	}
	m.wg.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()
		defer func() { <-m.slot }()
		defer m.recover(ctx)

		if ctx.Err() != nil {
			slog.WarnContext(ctx, "goroutine skipped, context done", "error", ctx.Err())
			return
		}

		if err := f(ctx); err != nil {
			m.mu.Lock()
			m.errs = append(m.errs, err)
			m.mu.Unlock()
		}
	}()
}

func (m *Manager) recover(ctx context.Context) {
	rvr := recover()
	if rvr == nil {
		return
	}

	stack := debug.Stack()
	if paths := stacktrace.InternalPaths(stack); len(paths) > 0 {
		slog.ErrorContext(ctx, "panic in goroutine", "panic", rvr, "stack", paths)
		return
	}
	slog.ErrorContext(ctx, "panic in goroutine", "panic", rvr, "stack", string(stack))
}

// Wait stops accepting tasks, blocks until running ones finish and joins their errors.
func (m *Manager) Wait() error {
	if m == nil {
		return nil
	}

	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	m.wg.Wait()

	m.mu.Lock()
	defer m.mu.Unlock()

	return errors.Join(m.errs...)
}
