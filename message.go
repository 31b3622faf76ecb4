package realtime

import (
	"encoding/json"
	"time"

	"github.com/fasthttp/websocket"
)

// Priority of an outbound message. High-priority messages drain ahead of
// normal ones after an outage; ordering within a priority class is FIFO.
type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// Envelope is the wire format of every message in both directions.
type Envelope struct {
	Type            string   `json:"type"`
	Data            any      `json:"data,omitempty"`
	Channel         string   `json:"channel,omitempty"`
	Room            string   `json:"room,omitempty"`
	Priority        Priority `json:"priority,omitempty"`
	Timestamp       string   `json:"timestamp"`
	ClientMessageID string   `json:"client_message_id,omitempty"`
}

// Control message types recognised by the connection manager. Anything else
// coming from the server is forwarded to listeners under its own type name.
const (
	// server -> client
	MessageTypeWelcome                 = "welcome"
	MessageTypeAuthError               = "auth_error"
	MessageTypePong                    = "pong"
	MessageTypeSubscriptionConfirmed   = "subscription_confirmed"
	MessageTypeUnsubscriptionConfirmed = "unsubscription_confirmed"
	MessageTypeRoomJoined              = "room_joined"
	MessageTypeRoomLeft                = "room_left"
	MessageTypeError                   = "error"

	// client -> server
	MessageTypePing        = "ping"
	MessageTypeSubscribe   = "subscribe"
	MessageTypeUnsubscribe = "unsubscribe"
	MessageTypeJoinRoom    = "join_room"
	MessageTypeLeaveRoom   = "leave_room"
)

// NewEnvelope builds an envelope of the given type with the timestamp set.
func NewEnvelope(msgType string, data any) Envelope {
	return Envelope{
		Type:      msgType,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
}

// ParseEnvelope decodes a raw frame. A frame that fails to parse is a
// malformed message; callers log and discard it.
func ParseEnvelope(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

// isDeliberateCloseCode reports whether a close code means the peer (or this
// client) terminated the connection on purpose, so no reconnect is wanted.
func isDeliberateCloseCode(code int) bool {
	return code == websocket.CloseNormalClosure || code == websocket.CloseGoingAway
}
