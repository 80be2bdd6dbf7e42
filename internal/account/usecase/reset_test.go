package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/bloodsync/bloodsync/internal/account/entity"
	"github.com/bloodsync/bloodsync/internal/pkg/goerror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const donorEmail = "donor@example.com"

func (h *harness) requestFor(t *testing.T, email string) *ResetFlowOutput {
	t.Helper()
	out, err := h.uc.RequestReset(context.Background(), RequestResetInput{Email: email})
	require.NoError(t, err)
	return out
}

func redeemInput(flow, code, password string) RedeemResetCodeInput {
	return RedeemResetCodeInput{FlowToken: flow, Code: code, NewPassword: password, ConfirmPassword: password}
}

func TestRequestReset_MalformedEmailNeverLeavesTheProcess(t *testing.T) {
	for _, email := range []string{"", "donor", "donor@example", "@example.com", "do nor@example.com", "donor@exa mple.com"} {
		t.Run(email, func(t *testing.T) {
			h := newHarness(t)

			_, err := h.uc.RequestReset(context.Background(), RequestResetInput{Email: email})

			assertCode(t, err, goerror.CodeInvalidInput)
			assert.Empty(t, h.mq.codes)
			assert.Zero(t, h.cache.size())
		})
	}
}

func TestRequestReset_IssuesCodeAndWindows(t *testing.T) {
	h := newHarness(t)
	h.seedActive(t, 10, entity.UserKindStaff, donorEmail, entity.RoleScheduler)

	out, err := h.uc.RequestReset(context.Background(), RequestResetInput{Email: "  Donor@Example.com "})

	require.NoError(t, err)
	assert.NotEmpty(t, out.FlowToken)
	assert.Equal(t, "d****@example.com", out.Email)
	assert.Equal(t, entity.ResetStateActive, out.State)
	assert.Equal(t, 6, out.CodeLength)
	assert.Equal(t, 300*time.Second, out.ExpiresIn)
	assert.Equal(t, 60*time.Second, out.ResendIn)
	assert.True(t, out.ExpiresAt.Equal(testStart.Add(300*time.Second)))

	require.Len(t, h.mq.codes, 1)
	issued := h.mq.codes[0]
	assert.Equal(t, int64(10), issued.UserID)
	assert.Len(t, issued.Code, 6)
	assert.False(t, issued.Resend)

	require.Equal(t, 1, h.cache.size())
	for flowID, sess := range h.cache.sessions {
		assert.NotEqual(t, out.FlowToken, flowID, "flow token is stored as a digest")
		assert.NotContains(t, string(sess.Secret), issued.Code)
	}
}

func TestRequestReset_UnknownEmailGetsDecoy(t *testing.T) {
	h := newHarness(t)

	out, err := h.uc.RequestReset(context.Background(), RequestResetInput{Email: "ghost@example.com"})

	require.NoError(t, err)
	assert.Equal(t, entity.ResetStateActive, out.State)
	assert.Equal(t, 60*time.Second, out.ResendIn)
	assert.Empty(t, h.mq.codes)

	_, err = h.uc.RedeemResetCode(context.Background(), redeemInput(out.FlowToken, "123456", "Brand#NewPass1"))
	assertCode(t, err, goerror.CodeUnauthorized)
}

func TestRequestReset_RevealUnknownEmail(t *testing.T) {
	h := newHarness(t, revealUnknownEmail())
	h.db.add(entity.User{ID: 11, Kind: entity.UserKindOrganization, Email: "pending@example.com", Status: entity.UserStatusPending}, "x")

	_, err := h.uc.RequestReset(context.Background(), RequestResetInput{Email: "ghost@example.com"})
	assertCode(t, err, goerror.CodeNotFound)

	_, err = h.uc.RequestReset(context.Background(), RequestResetInput{Email: "pending@example.com"})
	assertCode(t, err, goerror.CodeForbidden)
}

func TestRequestReset_PublishFailure(t *testing.T) {
	h := newHarness(t)
	h.seedActive(t, 10, entity.UserKindStaff, donorEmail, entity.RoleScheduler)
	h.mq.err = assert.AnError

	_, err := h.uc.RequestReset(context.Background(), RequestResetInput{Email: donorEmail})

	assertCode(t, err, goerror.CodeInternal)
}

func TestRedeemResetCode_AcceptedUntilWindowEnds(t *testing.T) {
	h := newHarness(t)
	h.seedActive(t, 10, entity.UserKindStaff, donorEmail, entity.RoleScheduler)
	out := h.requestFor(t, donorEmail)

	h.clock.Advance(299 * time.Second)
	res, err := h.uc.RedeemResetCode(context.Background(), redeemInput(out.FlowToken, h.mq.lastCode(t), "Brand#NewPass1"))

	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, res.RedirectAfter)
	assert.True(t, h.password.Verify(h.db.get(10).password, "Brand#NewPass1"))
	assert.Zero(t, h.cache.size(), "session is cleared")
	require.Len(t, h.mq.changed, 1)
	assert.Equal(t, int64(10), h.mq.changed[0].UserID)

	_, err = h.uc.RedeemResetCode(context.Background(), redeemInput(out.FlowToken, h.mq.lastCode(t), "Another#Pass12"))
	assertCode(t, err, goerror.CodeNotFound)
}

func TestRedeemResetCode_RejectedAtWindowEnd(t *testing.T) {
	h := newHarness(t)
	h.seedActive(t, 10, entity.UserKindStaff, donorEmail, entity.RoleScheduler)
	out := h.requestFor(t, donorEmail)

	h.clock.Advance(300 * time.Second)
	_, err := h.uc.RedeemResetCode(context.Background(), redeemInput(out.FlowToken, h.mq.lastCode(t), "Brand#NewPass1"))

	assertCode(t, err, goerror.CodeExpired)
	assert.True(t, h.password.Verify(h.db.get(10).password, donorPW))

	state, err := h.uc.GetResetSession(context.Background(), GetResetSessionInput{FlowToken: out.FlowToken})
	require.NoError(t, err)
	assert.Equal(t, entity.ResetStateExpired, state.State)
	assert.Zero(t, state.ExpiresIn)
}

func TestRedeemResetCode_LocalValidation(t *testing.T) {
	tests := []struct {
		name string
		in   RedeemResetCodeInput
	}{
		{"mismatched confirmation", RedeemResetCodeInput{FlowToken: "f", Code: "123456", NewPassword: "Brand#NewPass1", ConfirmPassword: "Brand#NewPass2"}},
		{"short code", redeemInput("f", "12345", "Brand#NewPass1")},
		{"long code", redeemInput("f", "1234567", "Brand#NewPass1")},
		{"letters in code", redeemInput("f", "12a456", "Brand#NewPass1")},
		{"password below configured minimum", redeemInput("f", "123456", "Short#123")},
		{"missing flow", redeemInput("", "123456", "Brand#NewPass1")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)

			_, err := h.uc.RedeemResetCode(context.Background(), tt.in)

			assertCode(t, err, goerror.CodeInvalidInput)
			assert.Zero(t, h.cache.gets, "no session lookup")
		})
	}
}

func TestRedeemResetCode_WrongCodesLockTheFlow(t *testing.T) {
	h := newHarness(t)
	h.seedActive(t, 10, entity.UserKindStaff, donorEmail, entity.RoleScheduler)
	out := h.requestFor(t, donorEmail)
	good := h.mq.lastCode(t)
	bad := "000000"
	if good == bad {
		bad = "111111"
	}

	for range 3 {
		_, err := h.uc.RedeemResetCode(context.Background(), redeemInput(out.FlowToken, bad, "Brand#NewPass1"))
		assertCode(t, err, goerror.CodeUnauthorized)
	}

	_, err := h.uc.RedeemResetCode(context.Background(), redeemInput(out.FlowToken, good, "Brand#NewPass1"))
	assertCode(t, err, goerror.CodeTooManyRequest)
	assert.Zero(t, h.cache.size())
}

func TestRedeemResetCode_AccountDisabledMeanwhile(t *testing.T) {
	h := newHarness(t)
	h.seedActive(t, 10, entity.UserKindStaff, donorEmail, entity.RoleScheduler)
	out := h.requestFor(t, donorEmail)
	h.db.get(10).user.Status = entity.UserStatusRevoked

	_, err := h.uc.RedeemResetCode(context.Background(), redeemInput(out.FlowToken, h.mq.lastCode(t), "Brand#NewPass1"))

	assertCode(t, err, goerror.CodeForbidden)
}

func TestResendResetCode_Cooldown(t *testing.T) {
	h := newHarness(t)
	h.seedActive(t, 10, entity.UserKindStaff, donorEmail, entity.RoleScheduler)
	out := h.requestFor(t, donorEmail)
	first := h.mq.lastCode(t)

	h.clock.Advance(30 * time.Second)
	_, err := h.uc.ResendResetCode(context.Background(), ResendResetCodeInput{FlowToken: out.FlowToken})
	assertCode(t, err, goerror.CodeTooManyRequest)
	assert.Contains(t, err.Error(), "30 seconds")

	h.clock.Advance(30 * time.Second)
	again, err := h.uc.ResendResetCode(context.Background(), ResendResetCodeInput{FlowToken: out.FlowToken})
	require.NoError(t, err)
	assert.Empty(t, again.FlowToken, "flow token is only handed out once")
	assert.Equal(t, 300*time.Second, again.ExpiresIn, "window restarts")
	assert.Equal(t, 60*time.Second, again.ResendIn)

	require.Len(t, h.mq.codes, 2)
	assert.True(t, h.mq.codes[1].Resend)
	second := h.mq.lastCode(t)

	if first != second {
		_, err = h.uc.RedeemResetCode(context.Background(), redeemInput(out.FlowToken, first, "Brand#NewPass1"))
		assertCode(t, err, goerror.CodeUnauthorized)
	}

	_, err = h.uc.RedeemResetCode(context.Background(), redeemInput(out.FlowToken, second, "Brand#NewPass1"))
	require.NoError(t, err)
}

func TestRequestReset_NewFlowReplacesOld(t *testing.T) {
	h := newHarness(t)
	h.seedActive(t, 10, entity.UserKindStaff, donorEmail, entity.RoleScheduler)
	first := h.requestFor(t, donorEmail)
	second := h.requestFor(t, donorEmail)

	_, err := h.uc.GetResetSession(context.Background(), GetResetSessionInput{FlowToken: first.FlowToken})
	assertCode(t, err, goerror.CodeNotFound)

	_, err = h.uc.GetResetSession(context.Background(), GetResetSessionInput{FlowToken: second.FlowToken})
	require.NoError(t, err)
}

func TestGetResetSession_Unknown(t *testing.T) {
	h := newHarness(t)

	_, err := h.uc.GetResetSession(context.Background(), GetResetSessionInput{FlowToken: "nope"})

	assertCode(t, err, goerror.CodeNotFound)
}

func TestMaskEmail(t *testing.T) {
	assert.Equal(t, "d****@example.com", maskEmail("donor@example.com"))
	assert.Equal(t, "a***@b.co", maskEmail("a@b.co"))
	assert.Equal(t, "é***@b.co", maskEmail("éa@b.co"))
	assert.Equal(t, "broken", maskEmail("broken"))
}
