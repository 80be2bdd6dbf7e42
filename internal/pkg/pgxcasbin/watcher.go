package pgxcasbin

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/casbin/casbin/v3/persist"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sethvargo/go-retry"
)

const DefaultChannel = "bloodsync_casbin_watcher"

var _ persist.Watcher = (*Watcher)(nil)

type notice struct {
	Sender string `json:"sender"`
}

// Watcher tells other replicas to reload policy after a local change.
// Notifications sent by this instance are ignored.
type Watcher struct {
	pool    *pgxpool.Pool
	channel string
	localID string
	cancel  context.CancelFunc

	mu       sync.RWMutex
	callback func(string)
}

func NewWatcher(ctx context.Context, pool *pgxpool.Pool, channel string) (*Watcher, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}
	if channel == "" {
		channel = DefaultChannel
	}

	lctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	w := &Watcher{pool: pool, channel: channel, localID: uuid.NewString(), cancel: cancel}

	go w.run(lctx)

	return w, nil
}

func (w *Watcher) run(ctx context.Context) {
	b := retry.WithCappedDuration(5*time.Second, retry.NewFibonacci(200*time.Millisecond))

	err := retry.Do(ctx, b, func(ctx context.Context) error {
		err := w.listen(ctx)
		if err == nil || errors.Is(err, context.Canceled) {
			return nil
		}
		slog.WarnContext(ctx, "casbin watcher lost connection", "channel", w.channel, "error", err)
		return retry.RetryableError(err)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("casbin watcher stopped", "channel", w.channel, "error", err)
	}
}

func (w *Watcher) listen(ctx context.Context) error {
	conn, err := w.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "listen "+pgx.Identifier{w.channel}.Sanitize()); err != nil {
		return err
	}

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}

		var msg notice
		if err := json.Unmarshal([]byte(n.Payload), &msg); err != nil {
			slog.WarnContext(ctx, "casbin watcher ignored malformed payload", "payload", n.Payload)
			continue
		}
		if msg.Sender == w.localID {
			continue
		}

		w.mu.RLock()
		cb := w.callback
		w.mu.RUnlock()
		if cb != nil {
			cb(n.Payload)
		}
	}
}

func (w *Watcher) SetUpdateCallback(cb func(string)) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.callback = cb
	return nil
}

func (w *Watcher) Update() error {
	payload, err := json.Marshal(notice{Sender: w.localID})
	if err != nil {
		return err
	}

	_, err = w.pool.Exec(context.Background(), "select pg_notify($1, $2)", w.channel, string(payload))
	return err
}

func (w *Watcher) Close() {
	w.cancel()
}

// ReloadCallback reloads the whole policy set on every remote change.
func ReloadCallback(e interface{ LoadPolicy() error }) func(string) {
	return func(string) {
		if err := e.LoadPolicy(); err != nil {
			slog.Error("casbin policy reload failed", "error", err)
		}
	}
}
