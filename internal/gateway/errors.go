package gateway

import (
	"errors"
	"fmt"
	"net/url"
)

// ErrSessionExpired is returned when the session cannot be renewed: the
// refresh endpoint rejected the credential, the refresh timed out, or a
// call failed with an authorization error after its one allowed replay.
var ErrSessionExpired = errors.New("session expired")

// APIError is a non-authorization error response from the backend (4xx
// validation failures, 5xx). It never triggers the refresh protocol.
type APIError struct {
	Status int
	Body   []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status %d", e.Status)
}

// IsTransient reports whether err is a network-level failure where no
// response was received. Such calls are safe to retry by the caller and
// never count against the single authorization replay.
func IsTransient(err error) bool {
	var ue *url.Error
	return errors.As(err, &ue)
}
