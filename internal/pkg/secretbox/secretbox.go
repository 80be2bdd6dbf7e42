// Package secretbox seals small secrets (one-time code seeds) before they are
// written to shared storage. Each ciphertext is bound to a Scope through the
// AEAD additional data, so a blob copied to another flow fails to open.
package secretbox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
)

// Scope names what a ciphertext belongs to.
type Scope struct {
	Subject string
	Purpose string
}

func (s Scope) aad() []byte {
	sum := sha256.Sum256(fmt.Appendf(nil, "subject=%s\npurpose=%s\n", s.Subject, s.Purpose))
	return sum[:]
}

var (
	ErrKeyLength    = errors.New("secretbox: key must be 32 bytes")
	ErrEmpty        = errors.New("secretbox: plaintext is empty")
	ErrMalformed    = errors.New("secretbox: malformed ciphertext")
	ErrOpenFailed   = errors.New("secretbox: open failed")
	versionAESGCMv1 = byte(1)
)

// Box seals and opens scoped secrets.
type Box interface {
	Seal(plain []byte, scope Scope) ([]byte, error)
	Open(sealed []byte, scope Scope) ([]byte, error)
}

// AESGCM seals with AES-256-GCM. Layout: version(1) | nonce(12) | ciphertext+tag.
type AESGCM struct {
	aead cipher.AEAD
}

func NewAESGCM(key []byte) (*AESGCM, error) {
	if len(key) != 32 {
		return nil, ErrKeyLength
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return &AESGCM{aead: aead}, nil
}

func (b *AESGCM) Seal(plain []byte, scope Scope) ([]byte, error) {
	if len(plain) == 0 {
		return nil, ErrEmpty
	}

	ns := b.aead.NonceSize()
	out := make([]byte, 1+ns, 1+ns+len(plain)+b.aead.Overhead())
	out[0] = versionAESGCMv1
	if _, err := rand.Read(out[1:]); err != nil {
		return nil, fmt.Errorf("secretbox: read nonce: %w", err)
	}

	return b.aead.Seal(out, out[1:], plain, scope.aad()), nil
}

func (b *AESGCM) Open(sealed []byte, scope Scope) ([]byte, error) {
	ns := b.aead.NonceSize()
	if len(sealed) < 1+ns+b.aead.Overhead() || sealed[0] != versionAESGCMv1 {
		return nil, ErrMalformed
	}

	plain, err := b.aead.Open(nil, sealed[1:1+ns], sealed[1+ns:], scope.aad())
	if err != nil {
		return nil, ErrOpenFailed
	}

	return plain, nil
}
