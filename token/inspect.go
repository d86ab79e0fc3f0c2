// Package token inspects access tokens on the client side. The client is
// not the token authority, so nothing here verifies signatures; the only
// question it answers is whether a stored token is already known to be
// expired, which lets the pipeline refresh before sending a request that
// is guaranteed to fail.
package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var parser = jwt.NewParser()

// ExpiresAt returns the exp claim of a JWT access token. It returns an
// error when the token is not a parseable JWT or carries no exp claim.
func ExpiresAt(raw string) (time.Time, error) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := parser.ParseUnverified(raw, &claims); err != nil {
		return time.Time{}, err
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, err
	}
	if exp == nil {
		return time.Time{}, jwt.ErrTokenRequiredClaimMissing
	}
	return exp.Time, nil
}

// Expired reports whether the token is known to have expired at the given
// time. Opaque (non-JWT) tokens and tokens without an exp claim are never
// reported as expired; the server remains the authority for those.
func Expired(raw string, now time.Time) bool {
	exp, err := ExpiresAt(raw)
	if err != nil {
		return false
	}
	return now.After(exp)
}
