package utils

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	m := NewJWTManager("secret", "HS256", time.Hour)

	token, err := m.GenerateToken(9, "reviewer", false)
	require.NoError(t, err)

	claims, err := m.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(9), claims.UserID)
	assert.Equal(t, "reviewer", claims.Username)
	assert.Equal(t, "9", claims.Subject)
}

func TestJWTRejectsWrongSecretAndExpired(t *testing.T) {
	token, err := NewJWTManager("secret", "HS256", time.Hour).GenerateToken(1, "a", false)
	require.NoError(t, err)

	_, err = NewJWTManager("other", "HS256", time.Hour).ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, err := NewJWTManager("secret", "HS256", -time.Minute).GenerateToken(1, "a", false)
	require.NoError(t, err)
	_, err = NewJWTManager("secret", "HS256", time.Hour).ValidateToken(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTRejectsForeignIssuer(t *testing.T) {
	claims := JWTClaims{
		UserID: 1,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = NewJWTManager("secret", "HS256", time.Hour).ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.NoError(t, CheckPassword("correct horse", hash))
	assert.Error(t, CheckPassword("wrong", hash))

	_, err = HashPassword(strings.Repeat("x", 73))
	assert.ErrorIs(t, err, ErrPasswordTooLong)
}
