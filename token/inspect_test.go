package token_test

import (
	"testing"
	"time"

	"github.com/ajay020/slotbook/token"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, claims jwt.RegisteredClaims) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	require.NoError(t, err)
	return raw
}

func TestExpiresAt(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	raw := signedToken(t, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(exp)})

	got, err := token.ExpiresAt(raw)
	require.NoError(t, err)
	require.True(t, got.Equal(exp))
}

func TestExpiresAtOpaqueToken(t *testing.T) {
	_, err := token.ExpiresAt("not-a-jwt")
	require.Error(t, err)
}

func TestExpiresAtMissingClaim(t *testing.T) {
	raw := signedToken(t, jwt.RegisteredClaims{Subject: "u1"})

	_, err := token.ExpiresAt(raw)
	require.Error(t, err)
}

func TestExpired(t *testing.T) {
	now := time.Now()

	past := signedToken(t, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now.Add(-time.Minute))})
	future := signedToken(t, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute))})

	require.True(t, token.Expired(past, now))
	require.False(t, token.Expired(future, now))

	// Tokens the client cannot read are never declared expired; the
	// server decides.
	require.False(t, token.Expired("opaque-token", now))
}
