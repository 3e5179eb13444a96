package security

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArgonRoundTrip(t *testing.T) {
	a := New()

	h, err := a.GenerateFromPassword("hunter2")
	require.NoError(t, err)
	assert.Contains(t, h, "$argon2id$v=19$m=65536,t=3,p=2$")

	ok, err := a.VerifyPasswd("hunter2", h)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = a.VerifyPasswd("hunter3", h)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestArgonRejectsGarbage(t *testing.T) {
	_, err := New().VerifyPasswd("x", "plaintext")
	assert.ErrorIs(t, err, ErrInvalidHash)

	_, err = New().VerifyPasswd("x", "$bcrypt$v=19$m=1,t=1,p=1$YQ$YQ")
	assert.ErrorIs(t, err, ErrInvalidHash)
}

func TestTokenRoundTrip(t *testing.T) {
	secret := []byte("s3cret")

	tok, err := IssueToken(secret, "u1", "alice", "admin", time.Hour)
	require.NoError(t, err)

	c, err := ParseToken(secret, tok)
	require.NoError(t, err)
	assert.Equal(t, "u1", c.Subject)
	assert.Equal(t, "alice", c.Username)
	assert.Equal(t, "admin", c.Role)
}

func TestTokenRejected(t *testing.T) {
	secret := []byte("s3cret")

	expired, err := IssueToken(secret, "u1", "alice", "user", -time.Minute)
	require.NoError(t, err)

	other, err := IssueToken([]byte("other"), "u1", "alice", "user", time.Hour)
	require.NoError(t, err)

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u1"}).SignedString(secret)
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "u1", "exp": time.Now().Add(time.Hour).Unix()}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, tok := range map[string]string{
		"expired":      expired,
		"wrong secret": other,
		"no expiry":    noExp,
		"none alg":     none,
		"not a token":  "abc.def",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseToken(secret, tok)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}
