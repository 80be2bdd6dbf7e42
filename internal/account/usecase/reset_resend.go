package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/bloodsync/bloodsync/internal/pkg/goerror"
)

type ResendResetCodeInput struct {
	FlowToken string `validate:"required,max=128"`
}

// ResendResetCode mails a new code once the cooldown has passed. The counter
// moves forward, so every earlier code stops working, the validity window
// restarts and the attempt budget is refilled.
func (s *Usecase) ResendResetCode(ctx context.Context, in ResendResetCodeInput) (*ResetFlowOutput, error) {
	ctx, span := s.startSpan(ctx, "ResendResetCode")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	sess, err := s.loadSession(ctx, in.FlowToken)
	if err != nil {
		return nil, err
	}

	policy := s.resetPolicy()
	now := s.clock.Now()

	if wait := sess.ResendIn(now); wait > 0 {
		secs := int(math.Ceil(wait.Seconds()))
		return nil, goerror.NewBusiness(fmt.Sprintf("Please wait %d seconds before requesting another code", secs), goerror.CodeTooManyRequest)
	}

	sess.Counter++
	sess.IssuedAt = now
	sess.ExpiresAt = now.Add(policy.codeTTL)
	sess.ResendFrom = now.Add(policy.resendCooldown)

	var code string
	if sess.Redeemable() {
		secret, err := s.openSecret(sess)
		if err != nil {
			slog.ErrorContext(ctx, "failed to open reset secret", "user_id", sess.UserID, "error", err)
			return nil, goerror.NewServer(err)
		}
		if code, err = s.otp.Code(secret, sess.Counter); err != nil {
			slog.ErrorContext(ctx, "failed to generate reset code", "user_id", sess.UserID, "error", err)
			return nil, goerror.NewServer(err)
		}
	}

	if err := s.repoCache.PutResetSession(ctx, sess, policy.sessionTTL()); err != nil {
		slog.ErrorContext(ctx, "failed to cache put reset session", "user_id", sess.UserID, "error", err)
		return nil, goerror.NewServer(err)
	}

	if sess.Redeemable() {
		if err := s.repoMessaging.PublishResetCodeIssued(ctx, ResetCodeIssuedEvent{
			UserID:    sess.UserID,
			Email:     sess.Email,
			Code:      code,
			ExpiresAt: sess.ExpiresAt,
			Resend:    true,
		}); err != nil {
			slog.ErrorContext(ctx, "failed to publish reset code issued", "user_id", sess.UserID, "error", err)
			return nil, goerror.NewServer(err)
		}
	}

	return s.flowOutput(sess, now), nil
}
