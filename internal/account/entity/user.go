package entity

import "time"

type User struct {
	ID               int64
	Kind             UserKind
	Email            string
	FullName         string
	OrganizationName string
	ContactNumber    string
	Role             Role
	Status           UserStatus
	AccreditationKey string
	CreatedAt        time.Time
	VerifiedAt       *time.Time
	ApprovedAt       *time.Time
}

// UserCredential is what sign in and password changes need.
type UserCredential struct {
	ID           int64
	Kind         UserKind
	Email        string
	Role         Role
	Status       UserStatus
	PasswordHash string
}

type NewUser struct {
	ID               int64
	Kind             UserKind
	Email            string
	FullName         string
	OrganizationName string
	ContactNumber    string
	Role             Role
	Status           UserStatus
	AccreditationKey string
	PasswordHash     string
}

// Activation is a pending email confirmation. Token holds the HMAC of the
// token that was mailed, never the token itself.
type Activation struct {
	ID        int64
	UserID    int64
	Token     string
	ExpiresAt time.Time
}

type ActivationUser struct {
	ActivationID int64
	ExpiresAt    time.Time
	UserID       int64
	UserEmail    string
	UserKind     UserKind
	UserStatus   UserStatus
}

type UserFilter struct {
	Kind     UserKind
	Statuses []UserStatus
}

// StatusChange moves a user between statuses; From guards against concurrent moderation.
type StatusChange struct {
	UserID int64
	Kind   UserKind
	From   UserStatus
	To     UserStatus
	By     int64
}
