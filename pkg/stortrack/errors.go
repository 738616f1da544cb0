package stortrack

import (
	"errors"
	"fmt"

	"github.com/rotisserie/eris"
)

var (
	// ErrNotFound marks a range the service kept answering 404 for.
	ErrNotFound = eris.New("stortrack: not found")
	// ErrMalformedResponse marks a 200 body that could not be decoded.
	ErrMalformedResponse = eris.New("stortrack: malformed response")
	// ErrAuth marks a failed login or a login response without a token.
	ErrAuth = eris.New("stortrack: authentication failed")
)

// Class names the failure category of a single remote attempt.
type Class string

const (
	ClassRateLimited Class = "rate_limited"
	ClassNotFound    Class = "not_found"
	ClassServer      Class = "server_error"
	ClassDBTimeout   Class = "db_timeout"
	ClassBadRequest  Class = "bad_request"
	ClassUnexpected  Class = "unexpected_status"
	ClassTransport   Class = "transport"
	ClassAuth        Class = "auth"
	ClassMalformed   Class = "malformed"
)

// Retryable reports whether the class is retried by FetchRange.
func (c Class) Retryable() bool {
	switch c {
	case ClassRateLimited, ClassNotFound, ClassServer, ClassDBTimeout, ClassTransport:
		return true
	default:
		return false
	}
}

// RemoteError describes the final failure of a remote call.
type RemoteError struct {
	Op         string
	Class      Class
	StatusCode int
	Body       string
	Attempts   int
	Err        error
}

func (e *RemoteError) Error() string {
	msg := fmt.Sprintf("stortrack: %s %s", e.Op, e.Class)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Attempts > 0 {
		msg += fmt.Sprintf(" after %d attempt(s)", e.Attempts)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	} else if e.Body != "" {
		msg += ": " + truncate(e.Body, 200)
	}
	return msg
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// ClassOf extracts the failure class from err, or "" when err carries no
// RemoteError.
func ClassOf(err error) Class {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Class
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
