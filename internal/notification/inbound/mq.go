package inbound

import (
	"context"
	"log/slog"
	"slices"

	"github.com/bloodsync/bloodsync/internal/pkg/config"
	"github.com/bloodsync/bloodsync/internal/pkg/goroutine"
	"github.com/bloodsync/bloodsync/internal/pkg/instrument"
	"github.com/bloodsync/bloodsync/internal/pkg/messaging"
	"github.com/bloodsync/bloodsync/internal/pkg/uid"
	"github.com/bloodsync/bloodsync/internal/shared/event"
)

type consumer struct {
	name    string // nsq channel, nats queue group, kafka group and pubsub subscription
	topic   string
	handler messaging.Handler
}

// RegisterMQConsumer starts one background consumer per name listed in
// modules.notification.consumer_names. An empty list starts all of them.
func RegisterMQConsumer(
	ctx context.Context,
	cfg config.Config,
	routine *goroutine.Manager,
	messenger messaging.Consumer,
	uuid uid.StringID,
	uc uc,
	ins instrument.Instrumentation,
) {
	h := &MQHandler{uc: uc, uuid: uuid, ins: ins}

	enabled := cfg.GetArray("modules.notification.consumer_names")
	concurrency := cfg.GetInt("modules.notification.concurrency")
	if concurrency <= 0 {
		concurrency = 4
	}

	for _, c := range h.consumers() {
		if len(enabled) > 0 && !slices.Contains(enabled, c.name) {
			continue
		}

		routine.Go(ctx, func(pCtx context.Context) error {
			slog.InfoContext(ctx, "Running job for handling consumer", "consumer", c.name, "topic", c.topic)
			return messenger.Consume(pCtx,
				c.topic,
				c.handler,
				messaging.WithChannel(c.name),
				messaging.WithQueueGroup(c.name),
				messaging.WithGroup(c.name),
				messaging.WithSubscription(c.name),
				messaging.WithAutoAck(true),
				messaging.WithConcurrency(concurrency),
				messaging.WithMaxInFlight(concurrency*2),
			)
		})
	}
}

func (h *MQHandler) consumers() []consumer {
	return []consumer{
		{name: event.AccountRegisteredNotification, topic: event.AccountRegisteredTopic, handler: h.AccountRegisteredNotification},
		{name: event.ResetCodeIssuedNotification, topic: event.ResetCodeIssuedTopic, handler: h.ResetCodeIssuedNotification},
		{name: event.PasswordChangedNotification, topic: event.PasswordChangedTopic, handler: h.PasswordChangedNotification},
		{name: event.AccountModeratedNotification, topic: event.AccountModeratedTopic, handler: h.AccountModeratedNotification},
	}
}
