package goroutine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestManager_CollectsErrors(t *testing.T) {
	m := NewManager(4)
	errA := errors.New("a")

	var ran atomic.Int32
	m.Go(context.Background(), func(context.Context) error { ran.Add(1); return errA })
	m.Go(context.Background(), func(context.Context) error { ran.Add(1); return nil })

	err := m.Wait()

	assert.ErrorIs(t, err, errA)
	assert.Equal(t, int32(2), ran.Load())
}

func TestManager_RecoversPanic(t *testing.T) {
	m := NewManager(1)

	m.Go(context.Background(), func(context.Context) error { panic("boom") })

	assert.NoError(t, m.Wait())
}

func TestManager_DropsAfterWait(t *testing.T) {
	m := NewManager(1)
	assert.NoError(t, m.Wait())

	var ran atomic.Bool
	m.Go(context.Background(), func(context.Context) error { ran.Store(true); return nil })

	assert.NoError(t, m.Wait())
	assert.False(t, ran.Load())
}

func TestManager_SkipsCanceledContext(t *testing.T) {
	m := NewManager(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var ran atomic.Bool
	m.Go(ctx, func(context.Context) error { ran.Store(true); return nil })

	assert.NoError(t, m.Wait())
	assert.False(t, ran.Load())
}

func TestManager_NilSafe(t *testing.T) {
	var m *Manager
	m.Go(context.Background(), func(context.Context) error { return nil })
	assert.NoError(t, m.Wait())
}
