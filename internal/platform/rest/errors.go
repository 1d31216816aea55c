package rest

import (
	"errors"
	"fmt"
)

// Kind classifies a failed backend call so callers can pick the right
// recovery path: retry, re-authenticate, or show the server's message.
type Kind int

const (
	// KindNetwork means the request never produced a response.
	KindNetwork Kind = iota
	// KindAuth covers 401/403; the session must be re-established.
	KindAuth
	// KindValidation covers other 4xx responses; Message carries the
	// server's body verbatim.
	KindValidation
	// KindServer covers 5xx responses.
	KindServer
	// KindDecode means the response body could not be parsed.
	KindDecode
)

// Error is the failure type returned by every backend call.
type Error struct {
	Kind      Kind
	Status    int
	Message   string
	RequestID string
	Err       error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindNetwork:
		return fmt.Sprintf("backend unreachable: %v", e.Err)
	case KindAuth:
		return fmt.Sprintf("authentication rejected (status %d): session expired or insufficient permissions", e.Status)
	case KindValidation:
		if e.Message != "" {
			return fmt.Sprintf("request rejected (status %d): %s", e.Status, e.Message)
		}
		return fmt.Sprintf("request rejected (status %d)", e.Status)
	case KindServer:
		return fmt.Sprintf("server error (status %d), try again later", e.Status)
	case KindDecode:
		return fmt.Sprintf("unexpected response from backend: %v", e.Err)
	}
	return fmt.Sprintf("backend call failed (status %d)", e.Status)
}

func (e *Error) Unwrap() error { return e.Err }

// IsAuth reports whether err is an authentication/authorization failure.
// These are the only errors that must propagate up to force re-authentication.
func IsAuth(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindAuth
}

// IsNetwork reports whether err is a transport-level failure.
func IsNetwork(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindNetwork
}

// IsValidation reports whether err is a 4xx rejection with a server message.
func IsValidation(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindValidation
}
