package realtime

import (
	"context"
	"time"
)

type (
	// Client is a resilient realtime messaging client. One Client owns at
	// most one live transport connection at a time; subscriptions and queued
	// messages survive reconnects and explicit Disconnect/Connect cycles.
	//
	// Expected failure modes (auth rejection, transport loss, exhausted
	// reconnect budget) are delivered through the event listeners rather
	// than returned from these methods, so UI layers can react uniformly.
	Client interface {
		// Connect starts the connection lifecycle. While the client is
		// already connecting or connected the call is a no-op; no second
		// transport is ever opened. ctx bounds the whole session: cancelling
		// it behaves like Disconnect.
		Connect(ctx context.Context) error

		// Disconnect deliberately closes the connection, cancelling any
		// pending reconnect. Idempotent. Subscriptions and queued messages
		// stay intact for a later Connect.
		Disconnect()

		// Dispose disconnects and releases listeners, subscriptions and
		// queued messages. The client is unusable afterwards.
		Dispose()

		// Send delivers an application message, generating a client message
		// id. While connected and authenticated it writes straight to the
		// transport and enqueues only on failure; otherwise it enqueues for
		// the next successful connection. Returns the client message id.
		Send(msgType string, data any, priority Priority) string

		// SendWithID is Send with a caller-supplied client message id, for
		// callers that want to correlate redeliveries.
		SendWithID(id, msgType string, data any, priority Priority) string

		// Subscribe adds channels (and optionally a room; pass "" for none)
		// to the desired subscription set. Idempotent, safe while
		// disconnected; the network call is deferred until authenticated.
		Subscribe(channels []string, room string)

		// Unsubscribe removes channels from the desired set.
		Unsubscribe(channels ...string)

		// JoinRoom adds a room to the desired set.
		JoinRoom(room string)

		// LeaveRoom removes a room from the desired set.
		LeaveRoom(room string)

		// On registers a listener. Unrecognised server message types fire
		// under their own type name.
		On(event EventType, fn func(Event)) ListenerHandle

		// Off removes a listener registered with On.
		Off(event EventType, handle ListenerHandle)

		// State returns the live connection state.
		State() ConnectionState

		// Metrics returns a snapshot of the client counters.
		Metrics() MetricsSnapshot

		// ResetMetrics zeroes the counters. Never happens implicitly.
		ResetMetrics()

		// LastHeartbeatAck returns when the server last acknowledged a
		// liveness probe, so callers can apply their own staleness policy.
		LastHeartbeatAck() time.Time

		// QueuedMessages returns how many outbound messages are waiting for
		// a usable connection.
		QueuedMessages() int
	}

	// Option customises a client at construction time.
	Option func(*realtimeClient)
)

// WithLogger injects the logger. Default is an slog-backed logger.
func WithLogger(logger Logger) Option {
	return func(c *realtimeClient) { c.logger = logger }
}

// WithAuthenticator swaps the credential source. With a custom
// authenticator, Config.AuthURL is not required.
func WithAuthenticator(auth Authenticator) Option {
	return func(c *realtimeClient) { c.auth = auth }
}

// WithConnFactory swaps the transport, mainly for tests. With a custom
// factory, Config.Host is not required.
func WithConnFactory(factory ConnFactory) Option {
	return func(c *realtimeClient) { c.factory = factory }
}

// WithBackoffCalculator swaps the reconnect delay policy.
func WithBackoffCalculator(calc BackoffCalculator) Option {
	return func(c *realtimeClient) { c.backoff = calc }
}
