package realtime

import (
	"sync/atomic"
	"time"
)

// Metrics holds the client's observability counters. Counters are monotonic
// for the lifetime of the client instance and reset only by an explicit
// Reset call, never implicitly.
type Metrics struct {
	messagesSent     atomic.Int64
	messagesReceived atomic.Int64
	messagesQueued   atomic.Int64
	messagesDropped  atomic.Int64
	reconnects       atomic.Int64

	lastPingAt  atomic.Int64 // unix nanos, 0 = never
	lastAckAt   atomic.Int64
	connectedAt atomic.Int64
}

// MetricsSnapshot is a point-in-time copy of the counters.
type MetricsSnapshot struct {
	MessagesSent     int64
	MessagesReceived int64
	MessagesQueued   int64
	MessagesDropped  int64
	Reconnects       int64
	LastPingAt       time.Time
	LastAckAt        time.Time
	ConnectedAt      time.Time
}

// Snapshot copies all counters atomically enough for observability purposes.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		MessagesSent:     m.messagesSent.Load(),
		MessagesReceived: m.messagesReceived.Load(),
		MessagesQueued:   m.messagesQueued.Load(),
		MessagesDropped:  m.messagesDropped.Load(),
		Reconnects:       m.reconnects.Load(),
		LastPingAt:       nanosToTime(m.lastPingAt.Load()),
		LastAckAt:        nanosToTime(m.lastAckAt.Load()),
		ConnectedAt:      nanosToTime(m.connectedAt.Load()),
	}
}

// Reset zeroes every counter and timestamp.
func (m *Metrics) Reset() {
	m.messagesSent.Store(0)
	m.messagesReceived.Store(0)
	m.messagesQueued.Store(0)
	m.messagesDropped.Store(0)
	m.reconnects.Store(0)
	m.lastPingAt.Store(0)
	m.lastAckAt.Store(0)
	m.connectedAt.Store(0)
}

func (m *Metrics) markSent()     { m.messagesSent.Add(1) }
func (m *Metrics) markReceived() { m.messagesReceived.Add(1) }
func (m *Metrics) markQueued()   { m.messagesQueued.Add(1) }
func (m *Metrics) markDropped()  { m.messagesDropped.Add(1) }
func (m *Metrics) markReconnect() {
	m.reconnects.Add(1)
}

func (m *Metrics) markPing()      { m.lastPingAt.Store(time.Now().UnixNano()) }
func (m *Metrics) markAck()       { m.lastAckAt.Store(time.Now().UnixNano()) }
func (m *Metrics) markConnected() { m.connectedAt.Store(time.Now().UnixNano()) }

func nanosToTime(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}
