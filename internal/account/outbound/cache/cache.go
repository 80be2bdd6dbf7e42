package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/bloodsync/bloodsync/internal/account/entity"
	"github.com/bloodsync/bloodsync/internal/pkg/goerror"
	"github.com/bloodsync/bloodsync/internal/pkg/instrument"
	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Redis keeps reset sessions under account:reset:flow:<flow id>, their failed
// attempt counters next to them, and a pointer from each user to the user's
// current flow.
type Redis struct {
	client redis.UniversalClient
	ins    instrument.Instrumentation
}

func NewRedis(client redis.UniversalClient, ins instrument.Instrumentation) *Redis {
	return &Redis{client: client, ins: ins}
}

const maxWatchRetries = 20

func flowKey(flowID string) string     { return "account:reset:flow:" + flowID }
func attemptsKey(flowID string) string { return "account:reset:flow:" + flowID + ":attempts" }
func userKey(userID int64) string      { return "account:reset:user:" + strconv.FormatInt(userID, 10) }

func (r *Redis) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return r.ins.Tracer("account.outbound.cache").Start(ctx, name)
}

func (r *Redis) endSpan(span trace.Span, err error) {
	if err != nil && !errors.Is(err, goerror.ErrNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// PutResetSession stores s and clears its attempt counter. For real users the
// previous flow, if any, is dropped so only the latest code can be redeemed.
// The user pointer is watched, so concurrent requests for one user leave
// exactly one live flow.
func (r *Redis) PutResetSession(ctx context.Context, s *entity.ResetSession, ttl time.Duration) (err error) {
	ctx, span := r.startSpan(ctx, "PutResetSession")
	defer func() { r.endSpan(span, err) }()

	body, err := json.Marshal(s)
	if err != nil {
		return err
	}

	if !s.Redeemable() {
		_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, flowKey(s.FlowID), body, ttl)
			pipe.Del(ctx, attemptsKey(s.FlowID))
			return nil
		})
		return err
	}

	replace := func(tx *redis.Tx) error {
		previous, err := tx.Get(ctx, userKey(s.UserID)).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if previous != "" && previous != s.FlowID {
				pipe.Del(ctx, flowKey(previous), attemptsKey(previous))
			}
			pipe.Set(ctx, flowKey(s.FlowID), body, ttl)
			pipe.Del(ctx, attemptsKey(s.FlowID))
			pipe.Set(ctx, userKey(s.UserID), s.FlowID, ttl)
			return nil
		})
		return err
	}

	backoff := retry.WithMaxRetries(maxWatchRetries, retry.WithJitter(5*time.Millisecond, retry.NewConstant(5*time.Millisecond)))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := r.client.Watch(ctx, replace, userKey(s.UserID))
		if errors.Is(err, redis.TxFailedErr) {
			return retry.RetryableError(err)
		}
		return err
	})
}

func (r *Redis) GetResetSession(ctx context.Context, flowID string) (_ *entity.ResetSession, err error) {
	ctx, span := r.startSpan(ctx, "GetResetSession")
	defer func() { r.endSpan(span, err) }()

	body, err := r.client.Get(ctx, flowKey(flowID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, goerror.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var s entity.ResetSession
	if err := json.Unmarshal(body, &s); err != nil {
		return nil, err
	}

	return &s, nil
}

// IncrResetAttempts counts a redemption attempt and returns the running total.
func (r *Redis) IncrResetAttempts(ctx context.Context, flowID string, ttl time.Duration) (_ int, err error) {
	ctx, span := r.startSpan(ctx, "IncrResetAttempts")
	defer func() { r.endSpan(span, err) }()

	var incr *redis.IntCmd
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, attemptsKey(flowID))
		pipe.ExpireNX(ctx, attemptsKey(flowID), ttl)
		return nil
	})
	if err != nil {
		return 0, err
	}

	return int(incr.Val()), nil
}

func (r *Redis) DeleteResetSession(ctx context.Context, s *entity.ResetSession) (err error) {
	ctx, span := r.startSpan(ctx, "DeleteResetSession")
	defer func() { r.endSpan(span, err) }()

	var current string
	if s.Redeemable() {
		current, err = r.client.Get(ctx, userKey(s.UserID)).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
	}

	keys := []string{flowKey(s.FlowID), attemptsKey(s.FlowID)}
	if current == s.FlowID {
		keys = append(keys, userKey(s.UserID))
	}

	return r.client.Del(ctx, keys...).Err()
}
