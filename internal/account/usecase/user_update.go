package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/bloodsync/bloodsync/internal/account/entity"
	"github.com/bloodsync/bloodsync/internal/pkg/goerror"
	"github.com/bloodsync/bloodsync/internal/shared/constant"
)

type UpdateUserRoleInput struct {
	UserID int64  `validate:"required,gt=0"`
	Role   string `validate:"required"`
	Kind   string `validate:"required,oneof=staff organization"`
}

// UpdateUserRole records the new role and, for active accounts, swaps the
// casbin grant.
func (s *Usecase) UpdateUserRole(ctx context.Context, in UpdateUserRoleInput) error {
	ctx, span := s.startSpan(ctx, "UpdateUserRole")
	defer span.End()

	clm, err := s.authorize(ctx, constant.PermAccountUsers, constant.PermActUpdate)
	if err != nil {
		return err
	}

	if err := s.validator.Validate(in); err != nil {
		return goerror.NewInvalidInput(err)
	}

	kind := entity.ParseUserKind(in.Kind)
	role := entity.Role(in.Role)
	if !kind.Allows(role) {
		return goerror.NewInvalidInput(nil, "role", "role is not available for "+kind.String()+" accounts")
	}
	if in.UserID == clm.UserID {
		return goerror.NewBusiness("You cannot change your own role", goerror.CodeForbidden)
	}

	err = s.repoDB.UpdateUserRole(ctx, in.UserID, kind, role, clm.UserID)
	if errors.Is(err, goerror.ErrNotFound) {
		return goerror.NewBusiness("User not found", goerror.CodeNotFound)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo update user role", "user_id", in.UserID, "error", err)
		return goerror.NewServer(err)
	}

	// Only active accounts hold a grant. Others keep the role on record and
	// receive it when they are approved.
	user, err := s.repoDB.GetUserByID(ctx, in.UserID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get user by id", "user_id", in.UserID, "error", err)
		return goerror.NewServer(err)
	}
	if user.Status != entity.UserStatusActive {
		return nil
	}

	if err := s.grantRole(in.UserID, role); err != nil {
		slog.ErrorContext(ctx, "failed to update role policy", "user_id", in.UserID, "role", role.String(), "error", err)
		return goerror.NewServer(err)
	}

	return nil
}

type DeleteUserInput struct {
	UserID int64  `validate:"required,gt=0"`
	Kind   string `validate:"required,oneof=staff organization"`
}

// DeleteUser soft deletes the account and drops its role grants.
func (s *Usecase) DeleteUser(ctx context.Context, in DeleteUserInput) error {
	ctx, span := s.startSpan(ctx, "DeleteUser")
	defer span.End()

	clm, err := s.authorize(ctx, constant.PermAccountUsers, constant.PermActDelete)
	if err != nil {
		return err
	}

	if err := s.validator.Validate(in); err != nil {
		return goerror.NewInvalidInput(err)
	}

	if in.UserID == clm.UserID {
		return goerror.NewBusiness("You cannot delete your own account", goerror.CodeForbidden)
	}

	err = s.repoDB.MarkUserDeleted(ctx, in.UserID, entity.ParseUserKind(in.Kind), clm.UserID)
	if errors.Is(err, goerror.ErrNotFound) {
		return goerror.NewBusiness("User not found", goerror.CodeNotFound)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo mark user deleted", "user_id", in.UserID, "error", err)
		return goerror.NewServer(err)
	}

	if err := s.revokeRoles(in.UserID); err != nil {
		slog.ErrorContext(ctx, "failed to remove role policy", "user_id", in.UserID, "error", err)
		return goerror.NewServer(err)
	}

	return nil
}

// grantRole replaces every grouping policy of the user with role.
func (s *Usecase) grantRole(userID int64, role entity.Role) error {
	if err := s.revokeRoles(userID); err != nil {
		return err
	}
	_, err := s.enforcer.AddGroupingPolicy(strconv.FormatInt(userID, 10), role.String())
	return err
}

func (s *Usecase) revokeRoles(userID int64) error {
	_, err := s.enforcer.RemoveFilteredGroupingPolicy(0, strconv.FormatInt(userID, 10))
	return err
}
