package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/bloodsync/bloodsync/internal/account/entity"
	"github.com/bloodsync/bloodsync/internal/pkg/goerror"
)

type EnsureAdminInput struct {
	Email    string `validate:"required,mailbox"`
	FullName string `validate:"required,min=3,max=100"`
	Password string `validate:"required,password"`
}

// EnsureAdmin creates the first administrator at start up. An existing
// account with the same email is left untouched apart from its admin grant.
func (s *Usecase) EnsureAdmin(ctx context.Context, in EnsureAdminInput) error {
	ctx, span := s.startSpan(ctx, "EnsureAdmin")
	defer span.End()

	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	in.FullName = strings.TrimSpace(in.FullName)

	if err := s.validator.Validate(in); err != nil {
		return goerror.NewInvalidInput(err)
	}

	cred, err := s.repoDB.GetUserCredentialByEmail(ctx, in.Email)
	if err == nil {
		if cred.Kind != entity.UserKindStaff || cred.Role != entity.RoleAdmin {
			slog.WarnContext(ctx, "bootstrap admin email belongs to another account", "user_id", cred.ID)
			return nil
		}
		if err := s.grantRole(cred.ID, entity.RoleAdmin); err != nil {
			slog.ErrorContext(ctx, "failed to grant admin role", "user_id", cred.ID, "error", err)
			return goerror.NewServer(err)
		}
		return nil
	}
	if !errors.Is(err, goerror.ErrNotFound) {
		slog.ErrorContext(ctx, "failed to repo get user credential by email", "error", err)
		return goerror.NewServer(err)
	}

	hashed, err := s.password.Hash(in.Password)
	if err != nil {
		slog.ErrorContext(ctx, "failed to hash password", "error", err)
		return goerror.NewServer(err)
	}

	user := entity.NewUser{
		ID:           s.uid.Generate(),
		Kind:         entity.UserKindStaff,
		Email:        in.Email,
		FullName:     in.FullName,
		Role:         entity.RoleAdmin,
		Status:       entity.UserStatusActive,
		PasswordHash: string(hashed),
	}
	if err := s.repoDB.CreateUser(ctx, user); err != nil {
		slog.ErrorContext(ctx, "failed to repo create user", "error", err)
		return goerror.NewServer(err)
	}

	if err := s.grantRole(user.ID, entity.RoleAdmin); err != nil {
		slog.ErrorContext(ctx, "failed to grant admin role", "user_id", user.ID, "error", err)
		return goerror.NewServer(err)
	}

	slog.InfoContext(ctx, "bootstrap admin created", "user_id", user.ID)
	return nil
}
