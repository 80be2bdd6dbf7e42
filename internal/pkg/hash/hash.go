// Package hash turns secrets into stored digests and checks candidates
// against them. Passwords go through a slow KDF (bcrypt or argon2id); short
// lived tokens and codes go through a keyed HMAC.
package hash

import "fmt"

// Hash produces and checks digests of secrets.
type Hash interface {
	Hash(plain string) ([]byte, error)
	Verify(hashed, plain string) bool
}

const (
	AlgorithmBcrypt   = "bcrypt"
	AlgorithmArgon2id = "argon2id"
)

// PasswordConfig selects and tunes the password KDF.
type PasswordConfig struct {
	Algorithm  string
	Pepper     string
	BcryptCost int
}

// NewPassword returns the password hasher named by cfg.Algorithm.
func NewPassword(cfg PasswordConfig) (Hash, error) {
	switch cfg.Algorithm {
	case AlgorithmBcrypt, "":
		return NewBcrypt(cfg.BcryptCost, cfg.Pepper), nil
	case AlgorithmArgon2id:
		return NewArgon2id(cfg.Pepper), nil
	default:
		return nil, fmt.Errorf("hash: unknown password algorithm %q", cfg.Algorithm)
	}
}
