package realtime

import (
	"context"
	"net/http"
	"net/url"
)

type (
	// CloseChan signals connection teardown by being closed.
	CloseChan chan struct{}

	// OpenConnectionParams carries everything needed to open the socket.
	// The credential travels in the URL query, per the server contract.
	OpenConnectionParams struct {
		URL    url.URL
		Header http.Header
	}

	// Conn is the transport seam. One Conn represents one transport-level
	// connection; the manager never reuses a Conn after it closed.
	Conn interface {
		// Open dials the server. It returns once the transport is
		// established or the attempt failed.
		Open(ctx context.Context) error

		// Write sends one envelope. Safe for concurrent use; the error is
		// returned synchronously so callers can stop on failure.
		Write(env Envelope) error

		// Close terminates the connection with the given close code.
		// Idempotent.
		Close(code int, reason string)

		// CloseChan is closed when the connection is no longer usable.
		CloseChan() CloseChan

		// CloseErr explains why the connection went away. It is only
		// meaningful once CloseChan is closed.
		CloseErr() error
	}

	// ConnFactory builds a Conn that delivers inbound envelopes to recv.
	// The default factory dials a real websocket; tests swap it out.
	ConnFactory func(params OpenConnectionParams, recv chan<- Envelope, logger Logger) Conn
)
