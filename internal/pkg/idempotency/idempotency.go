// Package idempotency guards an operation key in Redis so that concurrent or
// repeated submissions of the same operation run at most once at a time.
package idempotency

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrAlreadyInProgress = errors.New("idempotency: operation already in progress")
	ErrAlreadyCompleted  = errors.New("idempotency: operation already completed")
	ErrAlreadyFailed     = errors.New("idempotency: operation already failed")
	ErrInvalidState      = errors.New("idempotency: invalid state")
)

// State is the recorded outcome of an operation key.
type State string

const (
	StateNone       State = "none"
	StateInProgress State = "in_progress"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// Idempotency runs fn under key unless the key is busy or settled.
type Idempotency interface {
	Exec(ctx context.Context, key string, fn func(context.Context) error, opts ...Option) error
}

type execOptions struct {
	lock        time.Duration
	ttl         time.Duration
	releaseOnFn bool
}

type Option func(*execOptions)

// WithLockDuration bounds how long a crashed holder can block the key.
func WithLockDuration(d time.Duration) Option { return func(o *execOptions) { o.lock = d } }

// WithStateTTL is how long a completed or failed outcome is remembered.
func WithStateTTL(d time.Duration) Option { return func(o *execOptions) { o.ttl = d } }

// WithRetryOnFailure forgets the key when fn fails, so the caller may try
// again with corrected input instead of receiving ErrAlreadyFailed.
func WithRetryOnFailure() Option { return func(o *execOptions) { o.releaseOnFn = true } }

// Redis tracks state under "idempotency:<key>".
type Redis struct {
	client redis.UniversalClient
	prefix string
}

func New(client redis.UniversalClient) *Redis {
	return &Redis{client: client, prefix: "idempotency:"}
}

func (r *Redis) acquire(ctx context.Context, key string, lock time.Duration) (State, error) {
	ok, err := r.client.SetNX(ctx, key, string(StateInProgress), lock).Result()
	if err != nil {
		return "", err
	}
	if ok {
		return StateNone, nil
	}

	cur, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		// expired between SETNX and GET
		return r.acquire(ctx, key, lock)
	}
	if err != nil {
		return "", err
	}

	switch s := State(cur); s {
	case StateInProgress, StateCompleted, StateFailed:
		return s, nil
	default:
		return "", ErrInvalidState
	}
}

func (r *Redis) Exec(ctx context.Context, key string, fn func(context.Context) error, opts ...Option) error {
	o := execOptions{lock: time.Minute, ttl: time.Minute}
	for _, opt := range opts {
		opt(&o)
	}

	key = r.prefix + key

	state, err := r.acquire(ctx, key, o.lock)
	if err != nil {
		return err
	}

	switch state {
	case StateInProgress:
		return ErrAlreadyInProgress
	case StateCompleted:
		return ErrAlreadyCompleted
	case StateFailed:
		return ErrAlreadyFailed
	}

	if fnErr := fn(ctx); fnErr != nil {
		if o.releaseOnFn {
			return errors.Join(fnErr, r.client.Del(ctx, key).Err())
		}
		return errors.Join(fnErr, r.client.Set(ctx, key, string(StateFailed), o.ttl).Err())
	}

	// fn already took effect, so its success stands. The key stays in
	// progress until the lock expires.
	if err := r.client.Set(ctx, key, string(StateCompleted), o.ttl).Err(); err != nil {
		slog.WarnContext(ctx, "idempotency: failed to record completion", "key", key, "error", err)
	}

	return nil
}
