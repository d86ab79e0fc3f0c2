package credstore

import "github.com/pkg/errors"

// Storage keys. The session and the request pipeline both read and write
// these; they must agree on the names so the two layers never diverge.
// All three keys are loaded together at startup and treated as one unit.
const (
	KeyAccessToken  = "accessToken"
	KeyRefreshToken = "refreshToken"
	KeyUser         = "user"
)

var (
	// ErrNotFound is returned by Get when nothing is stored under the key.
	ErrNotFound = errors.New("credential not found")

	// ErrStorage indicates a failure of the underlying storage layer
	// (unreadable file, failed decryption, permission problem). Readers
	// treat it as absence and fall back to the unauthenticated state.
	ErrStorage = errors.New("credential storage failure")
)

// Store is durable key-value persistence for bearer credentials and the
// cached user record. Values are secrets; implementations must keep them
// encrypted at rest and must never expose a partially written entry.
type Store interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(key string) (string, error)

	// Set stores value under key, replacing any previous value.
	Set(key, value string) error

	// Delete removes the value stored under key. Deleting an absent key
	// is not an error.
	Delete(key string) error

	// Clear removes every stored entry.
	Clear() error
}
