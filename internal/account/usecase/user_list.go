package usecase

import (
	"context"
	"log/slog"

	"github.com/bloodsync/bloodsync/internal/account/entity"
	"github.com/bloodsync/bloodsync/internal/pkg/goerror"
	"github.com/bloodsync/bloodsync/internal/shared/constant"
)

type ListActiveUsersInput struct {
	Kind string `validate:"required,oneof=staff organization"`
}

func (s *Usecase) ListActiveUsers(ctx context.Context, in ListActiveUsersInput) ([]entity.User, error) {
	ctx, span := s.startSpan(ctx, "ListActiveUsers")
	defer span.End()

	if _, err := s.authorize(ctx, constant.PermAccountUsers, constant.PermActRead); err != nil {
		return nil, err
	}

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	return s.listUsers(ctx, entity.UserFilter{
		Kind:     entity.ParseUserKind(in.Kind),
		Statuses: []entity.UserStatus{entity.UserStatusActive},
	})
}

// ListPendingUsers returns organization accounts that confirmed their email
// and wait for a decision.
func (s *Usecase) ListPendingUsers(ctx context.Context) ([]entity.User, error) {
	ctx, span := s.startSpan(ctx, "ListPendingUsers")
	defer span.End()

	if _, err := s.authorize(ctx, constant.PermAccountApprovals, constant.PermActRead); err != nil {
		return nil, err
	}

	return s.listUsers(ctx, entity.UserFilter{
		Kind:     entity.UserKindOrganization,
		Statuses: []entity.UserStatus{entity.UserStatusPending},
	})
}

// ListVerifiedUsers returns approved organization accounts.
func (s *Usecase) ListVerifiedUsers(ctx context.Context) ([]entity.User, error) {
	ctx, span := s.startSpan(ctx, "ListVerifiedUsers")
	defer span.End()

	if _, err := s.authorize(ctx, constant.PermAccountApprovals, constant.PermActRead); err != nil {
		return nil, err
	}

	return s.listUsers(ctx, entity.UserFilter{
		Kind:     entity.UserKindOrganization,
		Statuses: []entity.UserStatus{entity.UserStatusActive},
	})
}

func (s *Usecase) listUsers(ctx context.Context, f entity.UserFilter) ([]entity.User, error) {
	users, err := s.repoDB.ListUsers(ctx, f)
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo list users", "kind", f.Kind.String(), "error", err)
		return nil, goerror.NewServer(err)
	}

	return users, nil
}
