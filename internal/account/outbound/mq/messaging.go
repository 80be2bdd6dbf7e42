package mq

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/bloodsync/bloodsync/internal/account/usecase"
	"github.com/bloodsync/bloodsync/internal/pkg/instrument"
	"github.com/bloodsync/bloodsync/internal/pkg/messaging"
	"github.com/bloodsync/bloodsync/internal/shared/event"
	"go.opentelemetry.io/otel/codes"
)

type Messaging struct {
	client messaging.Publisher
	ins    instrument.Instrumentation
}

func NewMessaging(client messaging.Publisher, ins instrument.Instrumentation) *Messaging {
	return &Messaging{client: client, ins: ins}
}

func (m *Messaging) PublishAccountRegistered(ctx context.Context, msg usecase.AccountRegisteredEvent) error {
	return m.publish(ctx, "PublishAccountRegistered", event.AccountRegisteredTopic, msg.UserID, event.AccountRegisteredMessage{
		UserID:           msg.UserID,
		Email:            msg.Email,
		FullName:         msg.FullName,
		OrganizationName: msg.OrganizationName,
		ActivationToken:  msg.ActivationToken,
	})
}

func (m *Messaging) PublishResetCodeIssued(ctx context.Context, msg usecase.ResetCodeIssuedEvent) error {
	return m.publish(ctx, "PublishResetCodeIssued", event.ResetCodeIssuedTopic, msg.UserID, event.ResetCodeIssuedMessage{
		UserID:    msg.UserID,
		Email:     msg.Email,
		Code:      msg.Code,
		ExpiresAt: msg.ExpiresAt,
		Resend:    msg.Resend,
	})
}

func (m *Messaging) PublishPasswordChanged(ctx context.Context, msg usecase.PasswordChangedEvent) error {
	return m.publish(ctx, "PublishPasswordChanged", event.PasswordChangedTopic, msg.UserID, event.PasswordChangedMessage{
		UserID:    msg.UserID,
		Email:     msg.Email,
		ChangedAt: msg.ChangedAt,
	})
}

func (m *Messaging) PublishAccountModerated(ctx context.Context, msg usecase.AccountModeratedEvent) error {
	return m.publish(ctx, "PublishAccountModerated", event.AccountModeratedTopic, msg.UserID, event.AccountModeratedMessage{
		UserID:   msg.UserID,
		Email:    msg.Email,
		FullName: msg.FullName,
		Decision: event.Decision(msg.Decision),
	})
}

// publish keys every message by user id so that brokers with partitions keep
// one user's events in order.
func (m *Messaging) publish(ctx context.Context, name, topic string, userID int64, payload any) error {
	ctx, span := m.ins.Tracer("account.outbound.mq").Start(ctx, name)
	defer span.End()

	body, err := json.Marshal(payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if err := m.client.Publish(ctx, topic, messaging.Envelope{
		Key:     []byte(strconv.FormatInt(userID, 10)),
		Body:    body,
		Headers: map[string]string{event.HeaderCorrelationID: instrument.GetCorrelationID(ctx)},
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}
