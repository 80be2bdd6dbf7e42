package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/bloodsync/bloodsync/internal/account/entity"
	"github.com/bloodsync/bloodsync/internal/pkg/goerror"
	"github.com/bloodsync/bloodsync/internal/pkg/jwt"
)

type LoginInput struct {
	Email    string `validate:"required,mailbox"`
	Password string `validate:"required"`
}

type LoginOutput struct {
	AccessToken string
	UserID      int64
	Email       string
	Kind        entity.UserKind
	Role        entity.Role
}

func (s *Usecase) Login(ctx context.Context, in LoginInput) (*LoginOutput, error) {
	ctx, span := s.startSpan(ctx, "Login")
	defer span.End()

	in.Email = strings.TrimSpace(strings.ToLower(in.Email))

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	invalid := goerror.NewBusiness("Invalid email or password", goerror.CodeUnauthorized)

	cred, err := s.repoDB.GetUserCredentialByEmail(ctx, in.Email)
	if errors.Is(err, goerror.ErrNotFound) {
		return nil, invalid
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get user credential by email", "error", err)
		return nil, goerror.NewServer(err)
	}

	if !s.password.Verify(cred.PasswordHash, in.Password) {
		slog.WarnContext(ctx, "login with wrong password", "user_id", cred.ID)
		return nil, invalid
	}

	switch cred.Status.Ensure() {
	case entity.UserStatusActive:
	case entity.UserStatusUnverified:
		return nil, goerror.NewBusiness("Email not verified", goerror.CodeForbidden)
	case entity.UserStatusPending:
		return nil, goerror.NewBusiness("Account is awaiting approval", goerror.CodeForbidden)
	case entity.UserStatusRejected:
		return nil, goerror.NewBusiness("Account registration was rejected", goerror.CodeForbidden)
	case entity.UserStatusRevoked:
		return nil, goerror.NewBusiness("Account access has been revoked", goerror.CodeForbidden)
	default:
		slog.WarnContext(ctx, "login for unknown account status", "user_id", cred.ID, "status", int16(cred.Status))
		return nil, goerror.NewBusiness("Account status is unrecognized", goerror.CodeForbidden)
	}

	token, err := s.jwt.Generate(jwt.Identity{UserID: cred.ID, Email: cred.Email, Kind: cred.Kind.String()})
	if err != nil {
		slog.ErrorContext(ctx, "failed to generate access token", "user_id", cred.ID, "error", err)
		return nil, goerror.NewServer(err)
	}

	return &LoginOutput{
		AccessToken: token,
		UserID:      cred.ID,
		Email:       cred.Email,
		Kind:        cred.Kind,
		Role:        cred.Role,
	}, nil
}
