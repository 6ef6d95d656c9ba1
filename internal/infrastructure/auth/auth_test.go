package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager() *JWTManager {
	return NewJWTManager(JWTConfig{
		SecretKey:     "test-secret",
		TokenDuration: time.Hour,
		Issuer:        "relaychat-test",
	})
}

func TestJWTManagerRoundTrip(t *testing.T) {
	m := newTestManager()

	token, err := m.GenerateToken("user-1", "alice")
	require.NoError(t, err)

	claims, err := m.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "alice", claims.Username)

	uid, err := m.VerifyToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", uid)
}

func TestJWTManagerRejectsForeignTokens(t *testing.T) {
	m := newTestManager()
	other := NewJWTManager(JWTConfig{SecretKey: "other", TokenDuration: time.Hour, Issuer: "relaychat-test"})

	token, err := other.GenerateToken("user-1", "alice")
	require.NoError(t, err)

	_, err = m.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = m.ValidateToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTManagerExpired(t *testing.T) {
	m := newTestManager()

	past := time.Now().Add(-2 * time.Hour)
	claims := Claims{
		UserID: "user-1",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "relaychat-test",
			ExpiresAt: jwt.NewNumericDate(past.Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(past),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = m.ValidateToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestPasswordHasher(t *testing.T) {
	h := NewPasswordHasherWithCost(4)

	hash, err := h.Hash("s3cret")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret", hash)
	assert.True(t, h.Verify("s3cret", hash))
	assert.False(t, h.Verify("wrong", hash))
}
