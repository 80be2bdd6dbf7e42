package usecase

import (
	"context"
	"errors"
	"log/slog"

	"github.com/bloodsync/bloodsync/internal/account/entity"
	"github.com/bloodsync/bloodsync/internal/pkg/goerror"
)

type VerifyAccountInput struct {
	Token string `validate:"required,max=128"`
}

type VerifyAccountOutput struct {
	Status entity.UserStatus
	// AwaitingApproval is true when an administrator still has to approve the account.
	AwaitingApproval bool
}

func (s *Usecase) VerifyAccount(ctx context.Context, in VerifyAccountInput) (*VerifyAccountOutput, error) {
	ctx, span := s.startSpan(ctx, "VerifyAccount")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	tokenHash, err := s.digest(in.Token)
	if err != nil {
		slog.ErrorContext(ctx, "failed to hash activation token", "error", err)
		return nil, goerror.NewServer(err)
	}

	au, err := s.repoDB.GetActivationUser(ctx, tokenHash)
	if errors.Is(err, goerror.ErrNotFound) {
		return nil, goerror.NewBusiness("Invalid verification token", goerror.CodeUnauthorized)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get activation user", "error", err)
		return nil, goerror.NewServer(err)
	}

	if !s.clock.Now().Before(au.ExpiresAt) {
		return nil, goerror.NewBusiness("Verification link has expired", goerror.CodeExpired)
	}

	if au.UserStatus != entity.UserStatusUnverified {
		slog.WarnContext(ctx, "activation token used for non unverified account", "user_id", au.UserID, "status", au.UserStatus.String())
		return nil, goerror.NewBusiness("Account is already verified", goerror.CodeConflict)
	}

	// Staff accounts are created by administrators and need no approval.
	next := entity.UserStatusPending
	if au.UserKind == entity.UserKindStaff {
		next = entity.UserStatusActive
	}

	err = s.repoDB.VerifyRegistration(ctx, au.ActivationID, entity.StatusChange{
		UserID: au.UserID,
		Kind:   au.UserKind,
		From:   entity.UserStatusUnverified,
		To:     next,
		By:     au.UserID,
	})
	if errors.Is(err, goerror.ErrNotFound) {
		return nil, goerror.NewBusiness("Account is already verified", goerror.CodeConflict)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo verify registration", "user_id", au.UserID, "error", err)
		return nil, goerror.NewServer(err)
	}

	return &VerifyAccountOutput{Status: next, AwaitingApproval: next == entity.UserStatusPending}, nil
}
