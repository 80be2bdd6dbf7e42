package usecase

import (
	"context"
	"log/slog"
	"net/url"

	"github.com/bloodsync/bloodsync/internal/notification/entity"
	"github.com/bloodsync/bloodsync/internal/pkg/valueobject"
	"github.com/bloodsync/bloodsync/internal/shared/event"
)

type ConsumeAccountRegisteredInput struct {
	UserID           int64  `validate:"required,gt=0"`
	Email            string `validate:"required,mailbox"`
	FullName         string `validate:"required"`
	OrganizationName string
	Token            string `validate:"required"`
}

func (s *Usecase) ConsumeAccountRegistered(ctx context.Context, in ConsumeAccountRegisteredInput) error {
	ctx, span := s.startSpan(ctx, "ConsumeAccountRegistered")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		slog.ErrorContext(ctx, "Validation failed", "error", err)
		return nil
	}

	data := s.baseEmailTemplateData()
	data["full_name"] = in.FullName
	data["organization_name"] = in.OrganizationName
	data["verify_url"] = s.cfg.GetString("app.web") + "/verify-account?token=" + url.QueryEscape(in.Token)

	nd := valueobject.JSONMap{"user_id": in.UserID}
	nd.SetIfNotEmpty("organization_name", in.OrganizationName)

	return s.sendEmailNotification(ctx, emailNotificationInput{
		UserID:           in.UserID,
		Email:            in.Email,
		TriggerKey:       entity.TriggerKeyAccountVerify,
		TemplateData:     data,
		NotificationData: nd,
	})
}

type ConsumeAccountModeratedInput struct {
	UserID   int64  `validate:"required,gt=0"`
	Email    string `validate:"required,mailbox"`
	FullName string
	Decision string `validate:"required"`
}

var decisionTriggers = map[event.Decision]entity.TriggerKey{
	event.DecisionApproved: entity.TriggerKeyAccountApproved,
	event.DecisionRejected: entity.TriggerKeyAccountRejected,
	event.DecisionRevoked:  entity.TriggerKeyAccountRevoked,
}

func (s *Usecase) ConsumeAccountModerated(ctx context.Context, in ConsumeAccountModeratedInput) error {
	ctx, span := s.startSpan(ctx, "ConsumeAccountModerated")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		slog.ErrorContext(ctx, "Validation failed", "error", err)
		return nil
	}

	tk, ok := decisionTriggers[event.Decision(in.Decision)]
	if !ok {
		slog.WarnContext(ctx, "unknown moderation decision", "user_id", in.UserID, "decision", in.Decision)
		return nil
	}

	data := s.baseEmailTemplateData()
	data["full_name"] = in.FullName

	return s.sendEmailNotification(ctx, emailNotificationInput{
		UserID:           in.UserID,
		Email:            in.Email,
		TriggerKey:       tk,
		TemplateData:     data,
		NotificationData: valueobject.JSONMap{"user_id": in.UserID, "decision": in.Decision},
	})
}
