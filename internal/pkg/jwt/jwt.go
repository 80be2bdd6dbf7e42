// Package jwt issues and verifies the identity tokens that authenticate API
// callers, and carries verified claims through a request context.
package jwt

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidSigningMethod = errors.New("jwt: invalid signing method")
	ErrSigningKeyTooShort   = errors.New("jwt: HS512 key must be at least 64 bytes")
	ErrTokenExpired         = errors.New("jwt: token expired")
	ErrInvalidToken         = errors.New("jwt: invalid token")
)

// Identity is who a token speaks for.
type Identity struct {
	UserID int64
	Email  string
	Kind   string
}

// JWT issues and verifies tokens.
type JWT interface {
	Generate(id Identity) (string, error)
	Verify(token string) (Claims, error)
}

// Claims is the token payload. Subject holds the decimal user id and is the
// subject used for authorization checks.
type Claims struct {
	jwt.RegisteredClaims
	UserID    int64  `json:"user_id,string"`
	UserEmail string `json:"user_email"`
	UserKind  string `json:"user_kind"`
}

// Identity returns the caller described by the claims.
func (c Claims) Identity() Identity {
	return Identity{UserID: c.UserID, Email: c.UserEmail, Kind: c.UserKind}
}

type clocker interface {
	Now() time.Time
}

type generator interface {
	Generate() string
}

// Config configures token issuance.
type Config struct {
	Secret    []byte
	Issuer    string
	Audiences []string
	TTL       time.Duration
	Clock     clocker
	UUID      generator
}

type authKey struct{}

// GetAuth returns the verified claims of the caller, or nil for anonymous requests.
func GetAuth(ctx context.Context) *Claims {
	clm, ok := ctx.Value(authKey{}).(Claims)
	if !ok {
		return nil
	}

	return &clm
}

// SetAuth attaches verified claims to ctx.
func SetAuth(ctx context.Context, clm Claims) context.Context {
	return context.WithValue(ctx, authKey{}, clm)
}
