package hash

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2id hashes into the PHC string format:
// $argon2id$v=19$m=<kib>,t=<iter>,p=<threads>$<salt>$<key>.
type Argon2id struct {
	memory  uint32
	time    uint32
	threads uint8
	saltLen int
	keyLen  uint32
	pepper  string
}

func NewArgon2id(pepper string) *Argon2id {
	return &Argon2id{
		memory:  64 * 1024,
		time:    2,
		threads: 2,
		saltLen: 16,
		keyLen:  32,
		pepper:  pepper,
	}
}

func (a *Argon2id) Hash(plain string) ([]byte, error) {
	salt := make([]byte, a.saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("hash: read salt: %w", err)
	}

	key := argon2.IDKey([]byte(plain+a.pepper), salt, a.time, a.memory, a.threads, a.keyLen)

	enc := base64.RawStdEncoding
	return fmt.Appendf(nil, "$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, a.memory, a.time, a.threads, enc.EncodeToString(salt), enc.EncodeToString(key)), nil
}

// Verify reads the parameters back from hashed, so digests made with older
// settings keep verifying.
func (a *Argon2id) Verify(hashed, plain string) bool {
	parts := strings.Split(hashed, "$")
	if plain == "" || len(parts) != 6 || parts[1] != "argon2id" {
		return false
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return false
	}

	var memory, iterations uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &threads); err != nil {
		return false
	}

	enc := base64.RawStdEncoding
	salt, err := enc.DecodeString(parts[4])
	if err != nil {
		return false
	}
	want, err := enc.DecodeString(parts[5])
	if err != nil {
		return false
	}

	got := argon2.IDKey([]byte(plain+a.pepper), salt, iterations, memory, threads, uint32(len(want)))

	return subtle.ConstantTimeCompare(want, got) == 1
}
