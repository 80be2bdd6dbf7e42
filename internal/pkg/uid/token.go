package uid

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"time"
)

// Token generates URL safe opaque tokens: an 8 byte millisecond timestamp
// followed by random bytes. Used for activation links and reset flow handles.
type Token struct {
	random int
	now    func() time.Time
}

// NewToken returns a generator with random bytes of entropy per token.
// Values below 16 are raised to 16.
func NewToken(random int) *Token {
	return &Token{random: max(random, 16), now: time.Now}
}

func (t *Token) Generate() string {
	buf := make([]byte, 8+t.random)
	binary.BigEndian.PutUint64(buf, uint64(t.now().UnixMilli()))
	_, _ = rand.Read(buf[8:])

	return base64.RawURLEncoding.EncodeToString(buf)
}
