package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/bloodsync/bloodsync/internal/account/entity"
	"github.com/bloodsync/bloodsync/internal/pkg/goerror"
	"github.com/bloodsync/bloodsync/internal/pkg/secretbox"
)

const purposePasswordReset = "password_reset"

type RequestResetInput struct {
	Email string `validate:"required,mailbox"`
}

// ResetFlowOutput describes a reset session from the server's point of view.
// ExpiresIn and ResendIn are relative so that clients can anchor them to their
// own monotonic clock instead of comparing wall clocks.
type ResetFlowOutput struct {
	FlowToken  string // only returned when the flow is created
	Email      string // masked
	State      entity.ResetState
	CodeLength int
	IssuedAt   time.Time
	ExpiresAt  time.Time
	ExpiresIn  time.Duration
	ResendIn   time.Duration
}

// RequestReset opens a reset flow and mails a code. Unknown or inactive
// addresses receive a flow that looks identical but can never be redeemed,
// unless modules.account.reset.reveal_unknown_email is set.
func (s *Usecase) RequestReset(ctx context.Context, in RequestResetInput) (*ResetFlowOutput, error) {
	ctx, span := s.startSpan(ctx, "RequestReset")
	defer span.End()

	in.Email = strings.TrimSpace(strings.ToLower(in.Email))

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	policy := s.resetPolicy()
	now := s.clock.Now()

	flowToken := s.token.Generate()
	flowID, err := s.digest(flowToken)
	if err != nil {
		slog.ErrorContext(ctx, "failed to hash flow token", "error", err)
		return nil, goerror.NewServer(err)
	}

	sess := &entity.ResetSession{
		FlowID:     flowID,
		Email:      in.Email,
		IssuedAt:   now,
		ExpiresAt:  now.Add(policy.codeTTL),
		ResendFrom: now.Add(policy.resendCooldown),
	}

	cred, err := s.repoDB.GetUserCredentialByEmail(ctx, in.Email)
	switch {
	case errors.Is(err, goerror.ErrNotFound):
		slog.WarnContext(ctx, "password reset requested for unknown email", "email", maskEmail(in.Email))
		if s.cfg.GetBool("modules.account.reset.reveal_unknown_email") {
			return nil, goerror.NewBusiness("No account is registered with this email", goerror.CodeNotFound)
		}
	case err != nil:
		slog.ErrorContext(ctx, "failed to repo get user credential by email", "error", err)
		return nil, goerror.NewServer(err)
	case cred.Status != entity.UserStatusActive:
		slog.WarnContext(ctx, "password reset requested for inactive account", "user_id", cred.ID, "status", cred.Status.String())
		if s.cfg.GetBool("modules.account.reset.reveal_unknown_email") {
			return nil, goerror.NewBusiness("Account is not active", goerror.CodeForbidden)
		}
	default:
		sess.UserID = cred.ID
	}

	var code string
	if sess.Redeemable() {
		if code, err = s.armSession(sess); err != nil {
			slog.ErrorContext(ctx, "failed to arm reset session", "user_id", sess.UserID, "error", err)
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
		}); err != nil {
			slog.ErrorContext(ctx, "failed to publish reset code issued", "user_id", sess.UserID, "error", err)
			return nil, goerror.NewServer(err)
		}
	}

	out := s.flowOutput(sess, now)
	out.FlowToken = flowToken
	return out, nil
}

// armSession gives sess a fresh sealed secret and returns the first code.
func (s *Usecase) armSession(sess *entity.ResetSession) (string, error) {
	secret, err := s.otp.NewSecret()
	if err != nil {
		return "", err
	}

	sealed, err := s.box.Seal([]byte(secret), resetScope(sess.FlowID))
	if err != nil {
		return "", err
	}
	sess.Secret = sealed
	sess.Counter = 0

	return s.otp.Code(secret, sess.Counter)
}

func (s *Usecase) openSecret(sess *entity.ResetSession) (string, error) {
	secret, err := s.box.Open(sess.Secret, resetScope(sess.FlowID))
	if err != nil {
		return "", err
	}
	return string(secret), nil
}

func resetScope(flowID string) secretbox.Scope {
	return secretbox.Scope{Subject: flowID, Purpose: purposePasswordReset}
}

func (s *Usecase) flowOutput(sess *entity.ResetSession, now time.Time) *ResetFlowOutput {
	return &ResetFlowOutput{
		Email:      maskEmail(sess.Email),
		State:      sess.State(now),
		CodeLength: s.otp.Digits(),
		IssuedAt:   sess.IssuedAt,
		ExpiresAt:  sess.ExpiresAt,
		ExpiresIn:  max(sess.ExpiresAt.Sub(now), 0),
		ResendIn:   sess.ResendIn(now),
	}
}

// loadSession resolves a flow token. A missing session means the client has
// to start over from the request screen.
func (s *Usecase) loadSession(ctx context.Context, flowToken string) (*entity.ResetSession, error) {
	flowID, err := s.digest(flowToken)
	if err != nil {
		slog.ErrorContext(ctx, "failed to hash flow token", "error", err)
		return nil, goerror.NewServer(err)
	}

	sess, err := s.repoCache.GetResetSession(ctx, flowID)
	if errors.Is(err, goerror.ErrNotFound) {
		return nil, goerror.NewBusiness("Reset session not found, request a new code", goerror.CodeNotFound)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to cache get reset session", "error", err)
		return nil, goerror.NewServer(err)
	}

	return sess, nil
}
