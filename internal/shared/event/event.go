// Package event holds the topics and payloads exchanged between modules over the message broker.
package event

import "time"

// HeaderCorrelationID carries the originating request's correlation id.
const HeaderCorrelationID = "x-correlation-id"

const (
	AccountRegisteredTopic = "account_registered"
	ResetCodeIssuedTopic   = "account_reset_code_issued"
	PasswordChangedTopic   = "account_password_changed"
	AccountModeratedTopic  = "account_moderated"
)

// Consumer names, used as the NSQ channel, NATS queue group or Kafka group.
const (
	AccountRegisteredNotification = "account_registered_notification"
	ResetCodeIssuedNotification   = "account_reset_code_issued_notification"
	PasswordChangedNotification   = "account_password_changed_notification"
	AccountModeratedNotification  = "account_moderated_notification"
)

type AccountRegisteredMessage struct {
	UserID           int64  `json:"user_id"`
	Email            string `json:"email"`
	FullName         string `json:"full_name"`
	OrganizationName string `json:"organization_name"`
	ActivationToken  string `json:"activation_token"`
}

type ResetCodeIssuedMessage struct {
	UserID    int64     `json:"user_id"`
	Email     string    `json:"email"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
	Resend    bool      `json:"resend"`
}

type PasswordChangedMessage struct {
	UserID    int64     `json:"user_id"`
	Email     string    `json:"email"`
	ChangedAt time.Time `json:"changed_at"`
}

type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
	DecisionRevoked  Decision = "revoked"
)

type AccountModeratedMessage struct {
	UserID   int64    `json:"user_id"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	Decision Decision `json:"decision"`
}
