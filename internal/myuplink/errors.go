package myuplink

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport marks any failed remote call.
	ErrTransport = errors.New("myuplink: transport error")

	// ErrNotFound marks a device or parameter the remote side does not know.
	// It also matches ErrTransport.
	ErrNotFound = fmt.Errorf("%w: not found", ErrTransport)

	// ErrNoToken is returned when the token source yields an empty token.
	ErrNoToken = errors.New("myuplink: no access token")
)

// StatusError is a non-2xx response from the API.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("myuplink: %s: status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("myuplink: %s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

// Unwrap maps the status onto the sentinel errors.
func (e *StatusError) Unwrap() error {
	if e.StatusCode == 404 {
		return ErrNotFound
	}
	return ErrTransport
}
