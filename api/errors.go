package api

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrValidation marks malformed input rejected at the client boundary,
// before any network call.
var ErrValidation = errors.New("validation failed")

// RemoteError is a non-2xx response from the API with the server's own
// message attached, so screens can show it verbatim.
type RemoteError struct {
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api responded with status %d", e.StatusCode)
	}
	return fmt.Sprintf("api responded with status %d: %s", e.StatusCode, e.Message)
}
