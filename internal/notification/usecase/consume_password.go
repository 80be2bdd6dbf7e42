package usecase

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/bloodsync/bloodsync/internal/notification/entity"
	"github.com/bloodsync/bloodsync/internal/pkg/valueobject"
)

type ConsumeResetCodeIssuedInput struct {
	UserID    int64     `validate:"required,gt=0"`
	Email     string    `validate:"required,mailbox"`
	Code      string    `validate:"required,digits"`
	ExpiresAt time.Time `validate:"required"`
	Resend    bool
}

// ConsumeResetCodeIssued mails a reset code. Codes that expired while the
// message was queued are dropped.
func (s *Usecase) ConsumeResetCodeIssued(ctx context.Context, in ConsumeResetCodeIssuedInput) error {
	ctx, span := s.startSpan(ctx, "ConsumeResetCodeIssued")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		slog.ErrorContext(ctx, "Validation failed", "error", err)
		return nil
	}

	left := in.ExpiresAt.Sub(s.clock.Now())
	if left <= 0 {
		slog.WarnContext(ctx, "reset code expired before it could be mailed", "user_id", in.UserID)
		return nil
	}

	data := s.baseEmailTemplateData()
	data["code"] = in.Code
	data["expires_in_minutes"] = int(math.Ceil(left.Minutes()))
	data["resend"] = in.Resend

	// The code itself is never written to the delivery log.
	return s.sendEmailNotification(ctx, emailNotificationInput{
		UserID:       in.UserID,
		Email:        in.Email,
		TriggerKey:   entity.TriggerKeyResetCode,
		TemplateData: data,
		NotificationData: valueobject.JSONMap{
			"user_id":    in.UserID,
			"expires_at": in.ExpiresAt.UTC().Format(time.RFC3339),
			"resend":     in.Resend,
		},
	})
}

type ConsumePasswordChangedInput struct {
	UserID    int64  `validate:"required,gt=0"`
	Email     string `validate:"required,mailbox"`
	ChangedAt time.Time
}

func (s *Usecase) ConsumePasswordChanged(ctx context.Context, in ConsumePasswordChangedInput) error {
	ctx, span := s.startSpan(ctx, "ConsumePasswordChanged")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		slog.ErrorContext(ctx, "Validation failed", "error", err)
		return nil
	}

	changedAt := in.ChangedAt
	if changedAt.IsZero() {
		changedAt = s.clock.Now()
	}

	data := s.baseEmailTemplateData()
	data["changed_at"] = changedAt.UTC().Format("02 Jan 2006 15:04 MST")

	return s.sendEmailNotification(ctx, emailNotificationInput{
		UserID:           in.UserID,
		Email:            in.Email,
		TriggerKey:       entity.TriggerKeyPasswordChanged,
		TemplateData:     data,
		NotificationData: valueobject.JSONMap{"user_id": in.UserID},
	})
}
