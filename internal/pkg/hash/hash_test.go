package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHashers(t *testing.T) {
	hashers := map[string]Hash{
		"bcrypt":   NewBcrypt(bcrypt.MinCost, "pepper"),
		"argon2id": NewArgon2id("pepper"),
		"hmac":     NewHMACSHA256("secret"),
	}

	for name, h := range hashers {
		t.Run(name, func(t *testing.T) {
			digest, err := h.Hash("correct horse battery")
			require.NoError(t, err)

			assert.True(t, h.Verify(string(digest), "correct horse battery"))
			assert.False(t, h.Verify(string(digest), "wrong horse battery"))
			assert.False(t, h.Verify("", "correct horse battery"))
		})
	}
}

func TestBcrypt_PepperMatters(t *testing.T) {
	digest, err := NewBcrypt(bcrypt.MinCost, "a").Hash("secret-password")
	require.NoError(t, err)

	assert.False(t, NewBcrypt(bcrypt.MinCost, "b").Verify(string(digest), "secret-password"))
}

func TestHMACSHA256_Deterministic(t *testing.T) {
	h := NewHMACSHA256("secret")

	a, _ := h.Hash("token")
	b, _ := h.Hash("token")

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestArgon2id_RejectsMalformed(t *testing.T) {
	h := NewArgon2id("")

	assert.False(t, h.Verify("$argon2id$v=19$bad$salt$key", "x"))
	assert.False(t, h.Verify("$bcrypt$v=19$m=1,t=1,p=1$c2FsdA$a2V5", "x"))
}

func TestNewPassword(t *testing.T) {
	h, err := NewPassword(PasswordConfig{Algorithm: AlgorithmArgon2id})
	require.NoError(t, err)
	assert.IsType(t, &Argon2id{}, h)

	h, err = NewPassword(PasswordConfig{BcryptCost: bcrypt.MinCost})
	require.NoError(t, err)
	assert.IsType(t, &Bcrypt{}, h)

	_, err = NewPassword(PasswordConfig{Algorithm: "md5"})
	assert.Error(t, err)
}
