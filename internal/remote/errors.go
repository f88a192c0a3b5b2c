package remote

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means the remote store has no record for the username
	ErrNotFound = errors.New("remote record not found")
	// ErrUnauthorized means the token was missing, invalid or for another username
	ErrUnauthorized = errors.New("remote store refused the token")
	// ErrUnavailable means the remote store could not be reached or failed
	ErrUnavailable = errors.New("remote store unavailable")
	// ErrRejected means the remote store refused the request as invalid
	ErrRejected = errors.New("remote store rejected the request")
	// ErrRateLimited means too many requests were made from this client
	ErrRateLimited = errors.New("too many requests")
)

// APIError is a non-success response from the remote store
type APIError struct {
	Status  int
	Message string
	kind    error
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%v (status %d)", e.kind, e.Status)
	}
	return fmt.Sprintf("%v (status %d): %s", e.kind, e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.kind
}

// UserMessage returns the server's explanation of a rejected request, if any
func UserMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return ""
}
