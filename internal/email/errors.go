package email

import (
	"errors"
	"fmt"
)

// ErrNotSupported is returned by receivers for operations their protocol lacks
var ErrNotSupported = errors.New("operation not supported by this protocol")

// ConnectionError is a session-level failure: the server could not be reached,
// the connection dropped, or a timeout hit while establishing it. It aborts a
// whole tool call, unlike per-mailbox failures.
type ConnectionError struct {
	Protocol string
	Addr     string
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s connection to %s failed: %v", e.Protocol, e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// AuthError means the server rejected the configured credentials
type AuthError struct {
	Protocol string
	Username string
	Err      error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s authentication failed for %s: %v", e.Protocol, e.Username, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err must abort the whole operation rather than a single mailbox
func IsFatal(err error) bool {
	var connErr *ConnectionError
	var authErr *AuthError
	return errors.As(err, &connErr) || errors.As(err, &authErr)
}
