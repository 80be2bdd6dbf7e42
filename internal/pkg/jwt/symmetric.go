package jwt

import (
	"errors"
	"strconv"

	"github.com/golang-jwt/jwt/v5"
)

// HS512 signs tokens with a shared secret.
type HS512 struct {
	cfg Config
}

// NewHS512 rejects secrets shorter than the HS512 block size.
func NewHS512(cfg Config) (*HS512, error) {
	if len(cfg.Secret) < 64 {
		return nil, ErrSigningKeyTooShort
	}

	return &HS512{cfg: cfg}, nil
}

func (h *HS512) Generate(id Identity) (string, error) {
	now := h.cfg.Clock.Now()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        h.cfg.UUID.Generate(),
			Subject:   strconv.FormatInt(id.UserID, 10),
			Issuer:    h.cfg.Issuer,
			Audience:  h.cfg.Audiences,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(h.cfg.TTL)),
		},
		UserID:    id.UserID,
		UserEmail: id.Email,
		UserKind:  id.Kind,
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(h.cfg.Secret)
}

func (h *HS512) Verify(token string) (Claims, error) {
	var claims Claims

	parsed, err := jwt.ParseWithClaims(token, &claims,
		func(t *jwt.Token) (any, error) {
			if t.Method != jwt.SigningMethodHS512 {
				return nil, ErrInvalidSigningMethod
			}
			return h.cfg.Secret, nil
		},
		jwt.WithIssuer(h.cfg.Issuer),
		jwt.WithAudience(h.cfg.Audiences...),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(h.cfg.Clock.Now),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return Claims{}, ErrTokenExpired
	case err != nil:
		return Claims{}, err
	case !parsed.Valid:
		return Claims{}, ErrInvalidToken
	}

	return claims, nil
}
