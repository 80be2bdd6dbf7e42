package usecase

import (
	"context"
	"errors"
	"log/slog"

	"github.com/bloodsync/bloodsync/internal/account/entity"
	"github.com/bloodsync/bloodsync/internal/pkg/goerror"
	"github.com/bloodsync/bloodsync/internal/shared/constant"
	"github.com/bloodsync/bloodsync/internal/shared/event"
)

type ModerateUserInput struct {
	UserID int64 `validate:"required,gt=0"`
}

// ApproveUser activates a pending organization account and grants its default role.
func (s *Usecase) ApproveUser(ctx context.Context, in ModerateUserInput) error {
	ctx, span := s.startSpan(ctx, "ApproveUser")
	defer span.End()

	return s.moderate(ctx, in, entity.UserStatusPending, entity.UserStatusActive, event.DecisionApproved)
}

func (s *Usecase) RejectUser(ctx context.Context, in ModerateUserInput) error {
	ctx, span := s.startSpan(ctx, "RejectUser")
	defer span.End()

	return s.moderate(ctx, in, entity.UserStatusPending, entity.UserStatusRejected, event.DecisionRejected)
}

// RevokeUser withdraws an approved organization account.
func (s *Usecase) RevokeUser(ctx context.Context, in ModerateUserInput) error {
	ctx, span := s.startSpan(ctx, "RevokeUser")
	defer span.End()

	return s.moderate(ctx, in, entity.UserStatusActive, entity.UserStatusRevoked, event.DecisionRevoked)
}

func (s *Usecase) moderate(ctx context.Context, in ModerateUserInput, from, to entity.UserStatus, decision event.Decision) error {
	clm, err := s.authorize(ctx, constant.PermAccountApprovals, constant.PermActModerate)
	if err != nil {
		return err
	}

	if err := s.validator.Validate(in); err != nil {
		return goerror.NewInvalidInput(err)
	}

	user, err := s.repoDB.GetUserByID(ctx, in.UserID)
	if errors.Is(err, goerror.ErrNotFound) {
		return goerror.NewBusiness("User not found", goerror.CodeNotFound)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get user by id", "user_id", in.UserID, "error", err)
		return goerror.NewServer(err)
	}
	if user.Kind != entity.UserKindOrganization {
		return goerror.NewBusiness("Only organization accounts are moderated", goerror.CodeForbidden)
	}
	if user.Status != from {
		return goerror.NewBusiness("Account is "+user.Status.String()+", expected "+from.String(), goerror.CodeConflict)
	}

	err = s.repoDB.UpdateUserStatus(ctx, entity.StatusChange{UserID: user.ID, Kind: user.Kind, From: from, To: to, By: clm.UserID})
	if errors.Is(err, goerror.ErrNotFound) {
		return goerror.NewBusiness("Account was changed by someone else, reload and try again", goerror.CodeConflict)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo update user status", "user_id", user.ID, "error", err)
		return goerror.NewServer(err)
	}

	if to == entity.UserStatusActive {
		err = s.grantRole(user.ID, user.Role)
	} else {
		err = s.revokeRoles(user.ID)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to sync role policy", "user_id", user.ID, "error", err)
		return goerror.NewServer(err)
	}

	if err := s.repoMessaging.PublishAccountModerated(ctx, AccountModeratedEvent{
		UserID:   user.ID,
		Email:    user.Email,
		FullName: user.FullName,
		Decision: string(decision),
	}); err != nil {
		slog.ErrorContext(ctx, "failed to publish account moderated", "user_id", user.ID, "error", err)
	}

	return nil
}
