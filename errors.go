package realtime

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrConnectionClosed = errors.New("connection has been closed")
	ErrCannotConnect    = errors.New("connection cannot be established")
	ErrConnectTimeout   = errors.New("connection attempt timed out")
	ErrClientDisposed   = errors.New("client has been disposed")

	// ErrAuthRejected means the server refused the credential. Terminal for
	// the connection attempt; a fresh Connect is required to try again.
	ErrAuthRejected = errors.New("credential rejected by server")
	// ErrAuthUnavailable means the credential endpoint could not be reached
	// within the authenticator's own retry budget.
	ErrAuthUnavailable = errors.New("credential endpoint unavailable")
	// ErrRateLimited means the credential endpoint signalled a rate limit.
	ErrRateLimited = errors.New("credential endpoint rate limit exceeded")

	// ErrMaxAttemptsExceeded means the reconnect attempt budget ran out.
	ErrMaxAttemptsExceeded = errors.New("reconnect attempts exhausted")

	ErrQueueOverflow     = errors.New("outbound queue at capacity")
	ErrNotConnected      = errors.New("not connected")
	ErrInvalidTransition = errors.New("invalid connection state transition")
)

// CloseError carries the close code observed when the transport went away,
// so the connection manager can tell a deliberate close from a failure.
type CloseError struct {
	Code   int
	Reason string
}

func (e *CloseError) Error() string {
	return fmt.Sprintf("connection closed with code %d: %s", e.Code, e.Reason)
}

// Deliberate reports whether the close code is one of the two codes that
// mean "do not reconnect".
func (e *CloseError) Deliberate() bool {
	return isDeliberateCloseCode(e.Code)
}
