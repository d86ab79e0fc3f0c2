package pipeline

import "github.com/pkg/errors"

var (
	// ErrNetwork is a transport-level failure: no response reached the
	// client. Never retried by the auth layer.
	ErrNetwork = errors.New("network failure")

	// ErrAuthorizationExpired marks a 401 from a protected endpoint. The
	// pipeline resolves it internally via the refresh protocol; callers
	// only see it when they map a final 401 response themselves.
	ErrAuthorizationExpired = errors.New("authorization expired")

	// ErrSessionExpired means the refresh token was missing, rejected or
	// the exchange failed. The session has been torn down; the user must
	// log in again.
	ErrSessionExpired = errors.New("session expired")
)
