package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/bloodsync/bloodsync/internal/account/entity"
	"github.com/bloodsync/bloodsync/internal/pkg/goerror"
	"github.com/bloodsync/bloodsync/internal/pkg/idempotency"
)

type RedeemResetCodeInput struct {
	FlowToken       string `validate:"required,max=128"`
	Code            string `validate:"required,digits"`
	NewPassword     string `validate:"required,password"`
	ConfirmPassword string `validate:"required,eqfield=NewPassword"`
}

type RedeemResetCodeOutput struct {
	// RedirectAfter is how long the client shows the success message before
	// moving to the sign in screen.
	RedirectAfter time.Duration
}

// RedeemResetCode sets a new password if the code matches the current
// counter and the session has not expired. Expiry is decided here, at
// submission time, whatever the client displayed.
func (s *Usecase) RedeemResetCode(ctx context.Context, in RedeemResetCodeInput) (*RedeemResetCodeOutput, error) {
	ctx, span := s.startSpan(ctx, "RedeemResetCode")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	policy := s.resetPolicy()
	if len(in.Code) != s.otp.Digits() {
		return nil, goerror.NewInvalidInput(nil, "code", fmt.Sprintf("code must be exactly %d digits", s.otp.Digits()))
	}
	if utf8.RuneCountInString(in.NewPassword) < policy.minPassword {
		return nil, goerror.NewInvalidInput(nil, "new_password", fmt.Sprintf("new_password must be at least %d characters", policy.minPassword))
	}

	sess, err := s.loadSession(ctx, in.FlowToken)
	if err != nil {
		return nil, err
	}

	if sess.State(s.clock.Now()) != entity.ResetStateActive {
		return nil, goerror.NewBusiness("Reset code has expired, request a new one", goerror.CodeExpired)
	}

	attempts, err := s.repoCache.IncrResetAttempts(ctx, sess.FlowID, policy.sessionTTL())
	if err != nil {
		slog.ErrorContext(ctx, "failed to cache incr reset attempts", "user_id", sess.UserID, "error", err)
		return nil, goerror.NewServer(err)
	}
	if attempts > policy.maxAttempts {
		if err := s.repoCache.DeleteResetSession(ctx, sess); err != nil {
			slog.ErrorContext(ctx, "failed to cache delete reset session", "user_id", sess.UserID, "error", err)
		}
		slog.WarnContext(ctx, "reset session locked after too many attempts", "user_id", sess.UserID)
		return nil, goerror.NewBusiness("Too many incorrect codes, request a new one", goerror.CodeTooManyRequest)
	}

	if !sess.Redeemable() {
		return nil, goerror.NewBusiness("Invalid reset code", goerror.CodeUnauthorized)
	}

	secret, err := s.openSecret(sess)
	if err != nil {
		slog.ErrorContext(ctx, "failed to open reset secret", "user_id", sess.UserID, "error", err)
		return nil, goerror.NewServer(err)
	}
	if !s.otp.Validate(in.Code, secret, sess.Counter) {
		slog.WarnContext(ctx, "invalid reset code submitted", "user_id", sess.UserID, "attempt", attempts)
		return nil, goerror.NewBusiness("Invalid reset code", goerror.CodeUnauthorized)
	}

	key := "account:reset:redeem:" + sess.FlowID + ":" + strconv.FormatUint(sess.Counter, 10)
	err = s.idemp.Exec(ctx, key, func(ctx context.Context) error {
		newHash, err := s.password.Hash(in.NewPassword)
		if err != nil {
			slog.ErrorContext(ctx, "failed to hash new password", "user_id", sess.UserID, "error", err)
			return goerror.NewServer(err)
		}

		err = s.repoDB.UpdateUserPassword(ctx, sess.UserID, string(newHash))
		if errors.Is(err, goerror.ErrNotFound) {
			return goerror.NewBusiness("Account is not active", goerror.CodeForbidden)
		}
		if err != nil {
			slog.ErrorContext(ctx, "failed to repo update user password", "user_id", sess.UserID, "error", err)
			return goerror.NewServer(err)
		}

		if err := s.repoCache.DeleteResetSession(ctx, sess); err != nil {
			slog.ErrorContext(ctx, "failed to cache delete reset session", "user_id", sess.UserID, "error", err)
		}

		if err := s.repoMessaging.PublishPasswordChanged(ctx, PasswordChangedEvent{
			UserID:    sess.UserID,
			Email:     sess.Email,
			ChangedAt: s.clock.Now(),
		}); err != nil {
			slog.ErrorContext(ctx, "failed to publish password changed", "user_id", sess.UserID, "error", err)
		}

		return nil
	}, idempotency.WithRetryOnFailure(), idempotency.WithStateTTL(policy.sessionTTL()))

	switch {
	case errors.Is(err, idempotency.ErrAlreadyInProgress):
		return nil, goerror.NewBusiness("Password reset is already being processed", goerror.CodeConflict)
	case errors.Is(err, idempotency.ErrAlreadyCompleted):
		return nil, goerror.NewBusiness("Reset code has already been used", goerror.CodeConflict)
	case err != nil:
		var gerr *goerror.Error
		if errors.As(err, &gerr) {
			return nil, gerr
		}
		slog.ErrorContext(ctx, "failed to run reset redemption", "user_id", sess.UserID, "error", err)
		return nil, goerror.NewServer(err)
	}

	return &RedeemResetCodeOutput{RedirectAfter: policy.redirectDelay}, nil
}
