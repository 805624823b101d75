package client

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sign(t *testing.T, claims jwt.Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)
	return s
}

func TestOwnerFromToken_Subject(t *testing.T) {
	token := sign(t, jwt.RegisteredClaims{
		Subject:   "owner-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})

	owner, err := OwnerFromToken(token)
	require.NoError(t, err)
	assert.Equal(t, "owner-1", owner)
}

func TestOwnerFromToken_UserIDClaim(t *testing.T) {
	token := sign(t, sessionClaims{UserID: "owner-2"})

	owner, err := OwnerFromToken(token)
	require.NoError(t, err)
	assert.Equal(t, "owner-2", owner)
}

func TestOwnerFromToken_ExpiredStillReadable(t *testing.T) {
	token := sign(t, jwt.RegisteredClaims{
		Subject:   "owner-3",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	})

	owner, err := OwnerFromToken(token)
	require.NoError(t, err)
	assert.Equal(t, "owner-3", owner)
}

func TestOwnerFromToken_Errors(t *testing.T) {
	_, err := OwnerFromToken("not-a-token")
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = OwnerFromToken(sign(t, jwt.RegisteredClaims{}))
	require.ErrorIs(t, err, ErrUnauthorized)
}
