package entity

import "time"

type ResetState string

const (
	ResetStateActive  ResetState = "ACTIVE"
	ResetStateExpired ResetState = "EXPIRED"
)

// ResetSession is one password reset attempt, addressed by the HMAC of its
// flow token. UserID is zero for decoy sessions issued to unknown addresses,
// which can never be redeemed.
type ResetSession struct {
	FlowID     string    `json:"flow_id"`
	UserID     int64     `json:"user_id"`
	Email      string    `json:"email"`
	Secret     []byte    `json:"secret"` // sealed HOTP secret
	Counter    uint64    `json:"counter"`
	IssuedAt   time.Time `json:"issued_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	ResendFrom time.Time `json:"resend_from"`
}

func (s *ResetSession) State(now time.Time) ResetState {
	if now.Before(s.ExpiresAt) {
		return ResetStateActive
	}
	return ResetStateExpired
}

// ResendIn is how long until another code may be sent; zero means now.
func (s *ResetSession) ResendIn(now time.Time) time.Duration {
	return max(s.ResendFrom.Sub(now), 0)
}

// Redeemable is false for decoy sessions.
func (s *ResetSession) Redeemable() bool {
	return s.UserID != 0
}
