package accountsdk

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type resetServer struct {
	requests atomic.Int32
	resends  atomic.Int32
	redeems  atomic.Int32

	redeemStatus int
	redeemMsg    string
	lastRedeem   map[string]string
}

func (s *resetServer) mux(t *testing.T) *http.ServeMux {
	flow := map[string]any{
		"flow_token":  "flow-1",
		"email":       "d****@example.com",
		"state":       StateActive,
		"code_length": 6,
		"expires_in":  300,
		"resend_in":   60,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/account/password/reset", func(w http.ResponseWriter, _ *http.Request) {
		s.requests.Add(1)
		writeData(w, http.StatusOK, "If the address is registered, a code has been sent.", flow)
	})
	mux.HandleFunc("GET /api/v1/account/password/reset/{token}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("token") != "flow-1" {
			writeError(w, http.StatusNotFound, "Reset session not found", nil)
			return
		}
		writeData(w, http.StatusOK, "", map[string]any{"email": "d****@example.com", "state": StateActive, "code_length": 6, "expires_in": 120, "resend_in": 0})
	})
	mux.HandleFunc("POST /api/v1/account/password/reset/{token}/resend", func(w http.ResponseWriter, _ *http.Request) {
		s.resends.Add(1)
		writeData(w, http.StatusOK, "A new code has been sent.", flow)
	})
	mux.HandleFunc("POST /api/v1/account/password/reset/{token}/redeem", func(w http.ResponseWriter, r *http.Request) {
		s.redeems.Add(1)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&s.lastRedeem))
		if s.redeemStatus != 0 {
			writeError(w, s.redeemStatus, s.redeemMsg, nil)
			return
		}
		writeData(w, http.StatusOK, "Password has been reset.", map[string]any{"redirect_after": 3})
	})
	return mux
}

func newResetFixture(t *testing.T) (*resetServer, *Client, *testClock) {
	t.Helper()
	srv := &resetServer{}
	return srv, newTestClient(t, srv.mux(t)), newTestClock()
}

func TestRequestScreen_RejectsMalformedEmailLocally(t *testing.T) {
	srv, c, clk := newResetFixture(t)
	screen := NewRequestScreen(c, WithClock(clk))

	for _, email := range []string{"", "   ", "donor", "donor@", "@example.com", "donor@example", "do nor@example.com", "donor@@example.com"} {
		_, err := screen.Submit(t.Context(), email)
		assert.ErrorIs(t, err, ErrInvalidEmail, email)
	}
	assert.Zero(t, srv.requests.Load())
	assert.Nil(t, screen.Flow())
}

func TestRequestScreen_SubmitStartsWindows(t *testing.T) {
	srv, c, clk := newResetFixture(t)
	screen := NewRequestScreen(c, WithClock(clk))

	flow, err := screen.Submit(t.Context(), "  donor@example.com ")
	require.NoError(t, err)
	assert.EqualValues(t, 1, srv.requests.Load())
	assert.Equal(t, "flow-1", flow.FlowToken)
	assert.Equal(t, "d****@example.com", flow.Email)
	assert.Equal(t, 6, flow.CodeLength)
	assert.Equal(t, 300*time.Second, flow.ExpiresIn(clk))
	assert.Equal(t, 60*time.Second, screen.ResendIn())
	assert.Equal(t, StateActive, flow.State(clk))

	clk.Advance(300 * time.Second)
	assert.Equal(t, StateExpired, flow.State(clk))
	assert.Zero(t, screen.ResendIn())
}

func TestRequestScreen_CooldownBlocksRequests(t *testing.T) {
	srv, c, clk := newResetFixture(t)
	screen := NewRequestScreen(c, WithClock(clk))

	_, err := screen.Resend(t.Context())
	require.ErrorIs(t, err, ErrNoResetSession)

	_, err = screen.Submit(t.Context(), "donor@example.com")
	require.NoError(t, err)

	clk.Advance(59 * time.Second)
	_, err = screen.Resend(t.Context())
	assert.ErrorIs(t, err, ErrCooldown)
	_, err = screen.Submit(t.Context(), "donor@example.com")
	assert.ErrorIs(t, err, ErrCooldown)
	assert.EqualValues(t, 1, srv.requests.Load())
	assert.Zero(t, srv.resends.Load())

	clk.Advance(time.Second)
	flow, err := screen.Resend(t.Context())
	require.NoError(t, err)
	assert.EqualValues(t, 1, srv.resends.Load())
	assert.Equal(t, 60*time.Second, flow.ResendIn(clk))
}

func TestRequestScreen_Countdown(t *testing.T) {
	_, c, clk := newResetFixture(t)
	screen := NewRequestScreen(c, WithClock(clk), WithTickInterval(time.Millisecond))

	_, err := screen.Submit(t.Context(), "donor@example.com")
	require.NoError(t, err)

	ticks := screen.Countdown(t.Context())
	assert.Equal(t, 60, <-ticks)

	clk.Advance(59 * time.Second)
	for v := range ticks {
		if v == 1 {
			break
		}
		assert.Equal(t, 60, v)
	}

	clk.Advance(time.Second)
	var last int
	for v := range ticks {
		last = v
	}
	assert.Zero(t, last)
}

func TestRequestScreen_CountdownStopsWithContext(t *testing.T) {
	_, c, clk := newResetFixture(t)
	screen := NewRequestScreen(c, WithClock(clk), WithTickInterval(time.Millisecond))
	_, err := screen.Submit(t.Context(), "donor@example.com")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	ticks := screen.Countdown(ctx)
	<-ticks
	cancel()

	require.Eventually(t, func() bool {
		select {
		case _, ok := <-ticks:
			return !ok
		default:
			return false
		}
	}, time.Second, time.Millisecond)
}

func TestRequestScreen_SurfacesServerMessage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/account/password/reset", func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusTooManyRequests, "Too many requests, try again later", nil)
	})
	screen := NewRequestScreen(newTestClient(t, mux))

	_, err := screen.Submit(t.Context(), "donor@example.com")
	require.Error(t, err)
	assert.Equal(t, "Too many requests, try again later", err.Error())
	assert.Nil(t, screen.Flow())
}

func TestNewRedeemScreen_RequiresFlow(t *testing.T) {
	_, c, _ := newResetFixture(t)

	_, err := NewRedeemScreen(c, nil)
	assert.ErrorIs(t, err, ErrNoResetSession)
	_, err = NewRedeemScreen(c, &ResetFlowState{})
	assert.ErrorIs(t, err, ErrNoResetSession)
}

func requestedFlow(t *testing.T, c *Client, clk *testClock) *ResetFlowState {
	t.Helper()
	flow, err := NewRequestScreen(c, WithClock(clk)).Submit(t.Context(), "donor@example.com")
	require.NoError(t, err)
	return flow
}

func TestRedeemScreen_AcceptsUntilDeadline(t *testing.T) {
	srv, c, clk := newResetFixture(t)
	screen, err := NewRedeemScreen(c, requestedFlow(t, c, clk), WithClock(clk))
	require.NoError(t, err)

	clk.Advance(299 * time.Second)
	assert.Equal(t, StateActive, screen.State())

	res, err := screen.Submit(t.Context(), "123456", "new-password", "new-password")
	require.NoError(t, err)
	assert.EqualValues(t, 3, res.RedirectAfter)
	assert.Equal(t, map[string]string{"code": "123456", "new_password": "new-password", "confirm_password": "new-password"}, srv.lastRedeem)

	_, err = screen.Submit(t.Context(), "123456", "new-password", "new-password")
	assert.ErrorIs(t, err, ErrNoResetSession)
	assert.EqualValues(t, 1, srv.redeems.Load())
}

func TestRedeemScreen_CompletedAfterSuccess(t *testing.T) {
	_, c, clk := newResetFixture(t)
	screen, err := NewRedeemScreen(c, requestedFlow(t, c, clk), WithClock(clk), WithTickInterval(time.Millisecond))
	require.NoError(t, err)

	_, err = screen.Submit(t.Context(), "123456", "new-password", "new-password")
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, screen.State())

	clk.Advance(time.Hour)
	assert.Equal(t, StateCompleted, screen.State(), "never turns expired")

	var got []string
	for s := range screen.Watch(t.Context()) {
		got = append(got, s)
	}
	assert.Equal(t, []string{StateCompleted}, got)
}

func TestRedeemScreen_MissingSessionIsExpired(t *testing.T) {
	srv, c, clk := newResetFixture(t)
	screen, err := NewRedeemScreen(c, requestedFlow(t, c, clk), WithClock(clk))
	require.NoError(t, err)

	srv.redeemStatus, srv.redeemMsg = http.StatusNotFound, "Reset session not found"
	_, err = screen.Submit(t.Context(), "123456", "new-password", "new-password")
	require.Error(t, err)
	assert.Equal(t, StateExpired, screen.State())
}

func TestRedeemScreen_RejectsAtDeadline(t *testing.T) {
	srv, c, clk := newResetFixture(t)
	screen, err := NewRedeemScreen(c, requestedFlow(t, c, clk), WithClock(clk))
	require.NoError(t, err)

	clk.Advance(300 * time.Second)
	_, err = screen.Submit(t.Context(), "123456", "new-password", "new-password")
	assert.ErrorIs(t, err, ErrResetExpired)
	assert.True(t, IsExpired(err))
	assert.Equal(t, StateExpired, screen.State())
	assert.Zero(t, srv.redeems.Load())
}

func TestRedeemScreen_WatchEmitsExpiredOnce(t *testing.T) {
	_, c, clk := newResetFixture(t)
	screen, err := NewRedeemScreen(c, requestedFlow(t, c, clk), WithClock(clk), WithTickInterval(time.Millisecond))
	require.NoError(t, err)

	states := screen.Watch(t.Context())
	select {
	case s := <-states:
		t.Fatalf("unexpected state %q before deadline", s)
	case <-time.After(20 * time.Millisecond):
	}

	clk.Advance(300 * time.Second)
	var got []string
	for s := range states {
		got = append(got, s)
	}
	assert.Equal(t, []string{StateExpired}, got)

	// One-way: moving the clock back does not reopen the window.
	clk.Advance(-time.Hour)
	assert.Equal(t, StateExpired, screen.State())
}

func TestRedeemScreen_LocalValidation(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		pw      string
		confirm string
		wantErr error
	}{
		{name: "mismatched confirmation", code: "123456", pw: "new-password", confirm: "other-password", wantErr: ErrPasswordMismatch},
		{name: "short code", code: "12345", pw: "new-password", confirm: "new-password", wantErr: ErrInvalidCode},
		{name: "long code", code: "1234567", pw: "new-password", confirm: "new-password", wantErr: ErrInvalidCode},
		{name: "letters in code", code: "12a456", pw: "new-password", confirm: "new-password", wantErr: ErrInvalidCode},
		{name: "short password", code: "123456", pw: "short", confirm: "short", wantErr: ErrPasswordTooShort},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, c, clk := newResetFixture(t)
			screen, err := NewRedeemScreen(c, requestedFlow(t, c, clk), WithClock(clk))
			require.NoError(t, err)

			_, err = screen.Submit(t.Context(), tt.code, tt.pw, tt.confirm)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Zero(t, srv.redeems.Load())
			assert.Equal(t, StateActive, screen.State())
		})
	}
}

func TestRedeemScreen_MinPasswordOption(t *testing.T) {
	srv, c, clk := newResetFixture(t)
	screen, err := NewRedeemScreen(c, requestedFlow(t, c, clk), WithClock(clk), WithMinPasswordLength(16))
	require.NoError(t, err)

	_, err = screen.Submit(t.Context(), "123456", "twelve-chars", "twelve-chars")
	assert.ErrorIs(t, err, ErrPasswordTooShort)
	assert.Zero(t, srv.redeems.Load())
}

func TestRedeemScreen_ServerFailures(t *testing.T) {
	srv, c, clk := newResetFixture(t)
	screen, err := NewRedeemScreen(c, requestedFlow(t, c, clk), WithClock(clk))
	require.NoError(t, err)

	srv.redeemStatus, srv.redeemMsg = http.StatusUnauthorized, "Invalid reset code"
	_, err = screen.Submit(t.Context(), "000000", "new-password", "new-password")
	require.Error(t, err)
	assert.Equal(t, "Invalid reset code", err.Error())
	assert.Equal(t, StateActive, screen.State())

	srv.redeemStatus, srv.redeemMsg = http.StatusGone, "Reset code has expired"
	_, err = screen.Submit(t.Context(), "000000", "new-password", "new-password")
	assert.True(t, IsExpired(err))
	assert.Equal(t, StateExpired, screen.State())

	_, err = screen.Submit(t.Context(), "000000", "new-password", "new-password")
	assert.ErrorIs(t, err, ErrResetExpired)
	assert.EqualValues(t, 2, srv.redeems.Load())
}

func TestRedeemScreen_WaitRedirect(t *testing.T) {
	_, c, clk := newResetFixture(t)
	screen, err := NewRedeemScreen(c, requestedFlow(t, c, clk), WithClock(clk))
	require.NoError(t, err)

	var waited time.Duration
	screen.opts.after = func(d time.Duration) <-chan time.Time {
		waited = d
		ch := make(chan time.Time, 1)
		ch <- time.Time{}
		return ch
	}

	res, err := screen.Submit(t.Context(), "123456", "new-password", "new-password")
	require.NoError(t, err)
	require.NoError(t, screen.WaitRedirect(t.Context(), res))
	assert.Equal(t, 3*time.Second, waited)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	screen.opts.after = func(time.Duration) <-chan time.Time { return nil }
	assert.ErrorIs(t, screen.WaitRedirect(ctx, res), context.Canceled)
}

func TestClient_ResumeResetFlow(t *testing.T) {
	_, c, clk := newResetFixture(t)

	flow, err := c.ResumeResetFlow(t.Context(), "flow-1", WithClock(clk))
	require.NoError(t, err)
	assert.Equal(t, "flow-1", flow.FlowToken)
	assert.Equal(t, 120*time.Second, flow.ExpiresIn(clk))
	assert.Zero(t, flow.ResendIn(clk))

	_, err = c.ResumeResetFlow(t.Context(), "gone", WithClock(clk))
	assert.ErrorIs(t, err, ErrNoResetSession)
}
