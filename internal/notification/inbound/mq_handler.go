package inbound

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/bloodsync/bloodsync/internal/notification/usecase"
	"github.com/bloodsync/bloodsync/internal/pkg/instrument"
	"github.com/bloodsync/bloodsync/internal/pkg/messaging"
	"github.com/bloodsync/bloodsync/internal/pkg/uid"
	"github.com/bloodsync/bloodsync/internal/shared/event"
	"go.opentelemetry.io/otel/trace"
)

type MQHandler struct {
	uc   uc
	uuid uid.StringID
	ins  instrument.Instrumentation
}

func (h *MQHandler) begin(ctx context.Context, d messaging.Delivery, name string) (context.Context, trace.Span) {
	if cID := d.Header(event.HeaderCorrelationID); cID != "" {
		ctx = instrument.SetCorrelationID(ctx, cID)
	} else {
		ctx = instrument.SetCorrelationID(ctx, h.uuid.Generate())
	}

	return h.ins.Tracer("notification.inbound.mq").Start(ctx, name)
}

// decode reports false for bodies that can never be processed; those are
// acked and dropped instead of being redelivered forever.
func decode[T any](ctx context.Context, d messaging.Delivery, out *T) bool {
	if err := json.Unmarshal(d.Body(), out); err != nil {
		slog.ErrorContext(ctx, "failed to parse message body", "topic", d.Topic(), "error", err)
		return false
	}
	return true
}

func (h *MQHandler) AccountRegisteredNotification(ctx context.Context, d messaging.Delivery) error {
	ctx, span := h.begin(ctx, d, "AccountRegisteredNotification")
	defer span.End()

	var payload event.AccountRegisteredMessage
	if !decode(ctx, d, &payload) {
		return nil
	}
	slog.InfoContext(ctx, "consume: account registered notification", "user_id", payload.UserID)

	if err := h.uc.ConsumeAccountRegistered(ctx, usecase.ConsumeAccountRegisteredInput{
		UserID:           payload.UserID,
		Email:            payload.Email,
		FullName:         payload.FullName,
		OrganizationName: payload.OrganizationName,
		Token:            payload.ActivationToken,
	}); err != nil {
		slog.ErrorContext(ctx, "failed to consume account registered", "user_id", payload.UserID, "error", err)
		return err
	}

	return nil
}

func (h *MQHandler) ResetCodeIssuedNotification(ctx context.Context, d messaging.Delivery) error {
	ctx, span := h.begin(ctx, d, "ResetCodeIssuedNotification")
	defer span.End()

	var payload event.ResetCodeIssuedMessage
	if !decode(ctx, d, &payload) {
		return nil
	}
	// The body carries the code; only the user id is logged.
	slog.InfoContext(ctx, "consume: reset code issued notification", "user_id", payload.UserID, "resend", payload.Resend)

	if err := h.uc.ConsumeResetCodeIssued(ctx, usecase.ConsumeResetCodeIssuedInput{
		UserID:    payload.UserID,
		Email:     payload.Email,
		Code:      payload.Code,
		ExpiresAt: payload.ExpiresAt,
		Resend:    payload.Resend,
	}); err != nil {
		slog.ErrorContext(ctx, "failed to consume reset code issued", "user_id", payload.UserID, "error", err)
		return err
	}

	return nil
}

func (h *MQHandler) PasswordChangedNotification(ctx context.Context, d messaging.Delivery) error {
	ctx, span := h.begin(ctx, d, "PasswordChangedNotification")
	defer span.End()

	var payload event.PasswordChangedMessage
	if !decode(ctx, d, &payload) {
		return nil
	}
	slog.InfoContext(ctx, "consume: password changed notification", "user_id", payload.UserID)

	if err := h.uc.ConsumePasswordChanged(ctx, usecase.ConsumePasswordChangedInput{
		UserID:    payload.UserID,
		Email:     payload.Email,
		ChangedAt: payload.ChangedAt,
	}); err != nil {
		slog.ErrorContext(ctx, "failed to consume password changed", "user_id", payload.UserID, "error", err)
		return err
	}

	return nil
}

func (h *MQHandler) AccountModeratedNotification(ctx context.Context, d messaging.Delivery) error {
	ctx, span := h.begin(ctx, d, "AccountModeratedNotification")
	defer span.End()

	var payload event.AccountModeratedMessage
	if !decode(ctx, d, &payload) {
		return nil
	}
	slog.InfoContext(ctx, "consume: account moderated notification", "user_id", payload.UserID, "decision", string(payload.Decision))

	if err := h.uc.ConsumeAccountModerated(ctx, usecase.ConsumeAccountModeratedInput{
		UserID:   payload.UserID,
		Email:    payload.Email,
		FullName: payload.FullName,
		Decision: string(payload.Decision),
	}); err != nil {
		slog.ErrorContext(ctx, "failed to consume account moderated", "user_id", payload.UserID, "error", err)
		return err
	}

	return nil
}
