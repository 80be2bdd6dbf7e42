package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bloodsync/bloodsync/internal/notification/entity"
	"github.com/bloodsync/bloodsync/internal/pkg/mail"
	"github.com/bloodsync/bloodsync/internal/pkg/valueobject"
)

type emailNotificationInput struct {
	UserID           int64
	Email            string
	TriggerKey       entity.TriggerKey
	TemplateData     map[string]any
	NotificationData valueobject.JSONMap
}

// sendEmailNotification renders, logs and sends one email. A send failure is
// returned so the broker redelivers the message; the delivery row keeps the
// provider error either way.
func (s *Usecase) sendEmailNotification(ctx context.Context, in emailNotificationInput) error {
	body, err := s.render(in.TriggerKey, in.TemplateData)
	if err != nil {
		slog.ErrorContext(ctx, "failed to render email body", "user_id", in.UserID, "trigger_key", in.TriggerKey.String(), "error", err)
		return nil
	}

	d := entity.CreateDelivery{
		ID:         s.uid.Generate(),
		UserID:     in.UserID,
		TriggerKey: in.TriggerKey,
		Channel:    entity.ChannelEmail,
		Recipient:  in.Email,
		Subject:    subjects[in.TriggerKey],
		Status:     entity.DeliveryStatusQueued,
		Data:       in.NotificationData,
	}

	if err := s.repoDB.CreateDelivery(ctx, d); err != nil {
		slog.ErrorContext(ctx, "failed to repo create delivery", "user_id", in.UserID, "trigger_key", in.TriggerKey.String(), "error", err)
		return err
	}

	mailErr := s.repoMail.Send(ctx, mail.Message{
		To:       []string{in.Email},
		Subject:  d.Subject,
		HTMLBody: body,
	})
	if mailErr == nil {
		up := entity.UpdateDelivery{
			ID:               d.ID,
			Status:           entity.DeliveryStatusSent,
			ProviderResponse: valueobject.JSONMap{},
		}
		if err := s.repoDB.UpdateDeliveryStatus(ctx, up); err != nil {
			slog.ErrorContext(ctx, "failed to repo update delivery status sent", "delivery_id", d.ID, "error", err)
		}
		return nil
	}

	retryAfter := s.cfg.GetMinute("modules.notification.retry_after_minutes")
	if retryAfter <= 0 {
		retryAfter = 2 * time.Minute
	}
	nextRetry := s.clock.Now().Add(retryAfter)
	up := entity.UpdateDelivery{
		ID:               d.ID,
		Status:           entity.DeliveryStatusFailed,
		ProviderResponse: valueobject.JSONMap{"error": mailErr.Error()},
		NextRetryAt:      &nextRetry,
	}
	if err := s.repoDB.UpdateDeliveryStatus(ctx, up); err != nil {
		slog.ErrorContext(ctx, "failed to repo update delivery status failed", "delivery_id", d.ID, "error", err)
	}

	slog.ErrorContext(ctx, "failed to send notification email", "delivery_id", d.ID, "user_id", in.UserID, "trigger_key", in.TriggerKey.String(), "error", mailErr)
	return fmt.Errorf("send %s email: %w", in.TriggerKey, mailErr)
}
