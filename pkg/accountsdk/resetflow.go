package accountsdk

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bloodsync/bloodsync/internal/pkg/clock"
	"github.com/bloodsync/bloodsync/internal/pkg/validator"
)

// ResetFlowState is the client side record of a password reset in progress.
// It is created by RequestScreen and handed to RedeemScreen.
type ResetFlowState struct {
	FlowToken string
	// Email is the masked address the code was sent to.
	Email      string
	CodeLength int

	issuedAt  time.Time
	expiresAt time.Time
	resendAt  time.Time
}

// newResetFlowState anchors the relative durations of f to the local clock.
func newResetFlowState(clk clock.Clocker, f *ResetFlow) *ResetFlowState {
	now := clk.Now()
	codeLength := f.CodeLength
	if codeLength <= 0 {
		codeLength = defaultCodeLength
	}

	return &ResetFlowState{
		FlowToken:  f.FlowToken,
		Email:      f.Email,
		CodeLength: codeLength,
		issuedAt:   now,
		expiresAt:  now.Add(time.Duration(f.ExpiresIn) * time.Second),
		resendAt:   now.Add(time.Duration(f.ResendIn) * time.Second),
	}
}

// ExpiresIn is the time left before the code stops being accepted.
func (s *ResetFlowState) ExpiresIn(clk clock.Clocker) time.Duration {
	return s.expiresAt.Sub(s.issuedAt) - clk.Since(s.issuedAt)
}

// ResendIn is the time left before another code may be requested.
func (s *ResetFlowState) ResendIn(clk clock.Clocker) time.Duration {
	return max(s.resendAt.Sub(s.issuedAt)-clk.Since(s.issuedAt), 0)
}

// State is StateActive while the code window is open and StateExpired after.
func (s *ResetFlowState) State(clk clock.Clocker) string {
	if s.ExpiresIn(clk) > 0 {
		return StateActive
	}
	return StateExpired
}

// ResumeResetFlow rebuilds a ResetFlowState from a flow token kept by the
// caller, for example after the application was restarted.
func (c *Client) ResumeResetFlow(ctx context.Context, flowToken string, opts ...Option) (*ResetFlowState, error) {
	o := newOptions(opts)
	f, err := c.GetResetFlow(ctx, flowToken)
	if err != nil {
		if IsStatus(err, http.StatusNotFound) {
			return nil, ErrNoResetSession
		}
		return nil, err
	}
	if f.FlowToken == "" {
		f.FlowToken = flowToken
	}
	return newResetFlowState(o.clock, f), nil
}

// RequestScreen drives the "forgot password" screen.
type RequestScreen struct {
	client *Client
	opts   options

	mu   sync.Mutex
	busy bool
	flow *ResetFlowState
}

// NewRequestScreen returns a screen with no flow. Options set the clock, the
// countdown tick and the minimum password length shared with RedeemScreen.
func NewRequestScreen(client *Client, opts ...Option) *RequestScreen {
	return &RequestScreen{client: client, opts: newOptions(opts)}
}

// Submit validates email locally and asks the server for a code. Malformed
// addresses never reach the server.
func (r *RequestScreen) Submit(ctx context.Context, email string) (*ResetFlowState, error) {
	email = strings.TrimSpace(email)
	if !validator.EmailPattern.MatchString(email) {
		return nil, ErrInvalidEmail
	}

	if err := r.acquire(); err != nil {
		return nil, err
	}
	defer r.release()

	f, err := r.client.RequestReset(ctx, email)
	if err != nil {
		return nil, err
	}

	return r.store(f), nil
}

// Resend asks for a fresh code for the current flow. The previous code stops
// working.
func (r *RequestScreen) Resend(ctx context.Context) (*ResetFlowState, error) {
	r.mu.Lock()
	flow := r.flow
	r.mu.Unlock()
	if flow == nil {
		return nil, ErrNoResetSession
	}

	if err := r.acquire(); err != nil {
		return nil, err
	}
	defer r.release()

	f, err := r.client.ResendReset(ctx, flow.FlowToken)
	if err != nil {
		return nil, err
	}
	if f.FlowToken == "" {
		f.FlowToken = flow.FlowToken
	}

	return r.store(f), nil
}

// Flow returns the current reset flow or nil before the first success.
func (r *RequestScreen) Flow() *ResetFlowState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flow
}

// ResendIn is the remaining cooldown. Zero means Submit and Resend are enabled.
func (r *RequestScreen) ResendIn() time.Duration {
	flow := r.Flow()
	if flow == nil {
		return 0
	}
	return flow.ResendIn(r.opts.clock)
}

// Countdown emits the remaining cooldown in whole seconds, first immediately
// and then once per tick, and closes after emitting 0 or when ctx ends.
func (r *RequestScreen) Countdown(ctx context.Context) <-chan int {
	out := make(chan int, 1)
	go func() {
		defer close(out)
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		ticks := ticker(r.opts.tick, ctx.Done())
		for {
			left := ceilSeconds(r.ResendIn())
			select {
			case out <- left:
			case <-ctx.Done():
				return
			}
			if left == 0 {
				return
			}
			if _, ok := <-ticks; !ok {
				return
			}
		}
	}()
	return out
}

func (r *RequestScreen) acquire() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.busy {
		return ErrBusy
	}
	if r.flow != nil && r.flow.ResendIn(r.opts.clock) > 0 {
		return ErrCooldown
	}
	r.busy = true
	return nil
}

func (r *RequestScreen) release() {
	r.mu.Lock()
	r.busy = false
	r.mu.Unlock()
}

func (r *RequestScreen) store(f *ResetFlow) *ResetFlowState {
	flow := newResetFlowState(r.opts.clock, f)
	r.mu.Lock()
	r.flow = flow
	r.mu.Unlock()
	return flow
}

// RedeemScreen drives the "enter code and new password" screen. The state
// moves from StateActive to StateExpired or StateCompleted and never back.
type RedeemScreen struct {
	client *Client
	opts   options

	mu        sync.Mutex
	flow      *ResetFlowState
	expired   bool
	completed bool
	busy      bool
}

// NewRedeemScreen returns ErrNoResetSession when flow is nil; the caller is
// expected to send the user back to the request screen.
func NewRedeemScreen(client *Client, flow *ResetFlowState, opts ...Option) (*RedeemScreen, error) {
	if flow == nil || flow.FlowToken == "" {
		return nil, ErrNoResetSession
	}
	return &RedeemScreen{client: client, opts: newOptions(opts), flow: flow}, nil
}

// State reports StateActive, StateExpired, or StateCompleted once a Submit
// succeeded.
func (s *RedeemScreen) State() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *RedeemScreen) stateLocked() string {
	if s.completed {
		return StateCompleted
	}
	if s.flow == nil || s.flow.State(s.opts.clock) == StateExpired {
		s.expired = true
	}
	if s.expired {
		return StateExpired
	}
	return StateActive
}

// Watch polls the state once per tick and emits the first state other than
// StateActive. The channel is closed after that or when ctx ends.
func (s *RedeemScreen) Watch(ctx context.Context) <-chan string {
	out := make(chan string, 1)
	go func() {
		defer close(out)
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		ticks := ticker(s.opts.tick, ctx.Done())
		for {
			if st := s.State(); st != StateActive {
				select {
				case out <- st:
				case <-ctx.Done():
				}
				return
			}
			if _, ok := <-ticks; !ok {
				return
			}
		}
	}()
	return out
}

// Submit checks the form locally, then redeems the code. The expiry check
// runs here against the monotonic deadline regardless of Watch. On success
// the flow is cleared and the screen cannot be used again.
func (s *RedeemScreen) Submit(ctx context.Context, code, newPassword, confirmPassword string) (*RedeemResult, error) {
	s.mu.Lock()
	if s.flow == nil {
		s.mu.Unlock()
		return nil, ErrNoResetSession
	}
	if s.stateLocked() == StateExpired {
		s.mu.Unlock()
		return nil, ErrResetExpired
	}
	if err := s.validate(code, newPassword, confirmPassword); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if s.busy {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	s.busy = true
	token := s.flow.FlowToken
	s.mu.Unlock()

	res, err := s.client.RedeemReset(ctx, token, code, newPassword, confirmPassword)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false
	if err != nil {
		if IsStatus(err, http.StatusGone) {
			s.expired = true
		}
		if IsStatus(err, http.StatusNotFound) {
			s.flow = nil
		}
		return nil, err
	}
	s.flow = nil
	s.completed = true

	return res, nil
}

// WaitRedirect blocks for the delay announced by a successful Submit, after
// which the caller shows the sign in screen.
func (s *RedeemScreen) WaitRedirect(ctx context.Context, res *RedeemResult) error {
	if res == nil || res.RedirectAfter <= 0 {
		return nil
	}
	select {
	case <-s.opts.after(time.Duration(res.RedirectAfter) * time.Second):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *RedeemScreen) validate(code, newPassword, confirmPassword string) error {
	if len(code) != s.flow.CodeLength || strings.Trim(code, "0123456789") != "" {
		return ErrInvalidCode
	}
	if len(newPassword) < s.opts.minPassword {
		return ErrPasswordTooShort
	}
	if newPassword != confirmPassword {
		return ErrPasswordMismatch
	}
	return nil
}
