package realtime

import "time"

// EventType names an event observable through the client. The lifecycle
// events below are emitted by the connection manager itself; on top of those,
// every server message type that the manager does not recognise is forwarded
// verbatim under its own type name, so new server-side message types are
// observable without a client change.
type EventType string

const (
	// EventConnect fires once per successful authentication, after
	// subscriptions have been replayed and the queue drained.
	EventConnect EventType = "connect"
	// EventDisconnect fires whenever the transport goes away, deliberately
	// or not.
	EventDisconnect EventType = "disconnect"
	// EventReconnecting fires when a reconnect attempt has been scheduled.
	EventReconnecting EventType = "reconnecting"
	// EventReconnectFailed fires once the reconnect attempt budget is
	// exhausted. The client stays in the error state until Connect is
	// called again.
	EventReconnectFailed EventType = "reconnect_failed"
	// EventAuthError fires when the server rejects the credential. Terminal
	// for the attempt; no reconnect is scheduled.
	EventAuthError EventType = "auth_error"
	// EventError carries non-terminal server-side errors.
	EventError EventType = "error"

	EventSubscribed   EventType = "subscribed"
	EventUnsubscribed EventType = "unsubscribed"
	EventRoomJoined   EventType = "room_joined"
	EventRoomLeft     EventType = "room_left"
	EventPong         EventType = "pong"
)

// Event is the payload delivered to listeners.
type Event struct {
	Type EventType
	// Data carries the envelope or event-specific detail, if any.
	Data any
	// Err is set for failure events.
	Err error
}

// ReconnectInfo is the Data payload of EventReconnecting.
type ReconnectInfo struct {
	Attempt int
	Delay   time.Duration
}
