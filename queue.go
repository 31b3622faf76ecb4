package realtime

import (
	"sync"
	"time"
)

// QueuedMessage is an outbound message waiting for a usable connection.
type QueuedMessage struct {
	Type            string
	Data            any
	Priority        Priority
	EnqueuedAt      time.Time
	ClientMessageID string
}

func (m QueuedMessage) envelope() Envelope {
	env := NewEnvelope(m.Type, m.Data)
	env.Priority = m.Priority
	env.ClientMessageID = m.ClientMessageID
	return env
}

// messageQueue is the bounded FIFO buffer of outbound messages. High-priority
// messages drain ahead of normal ones; within a priority class order is
// strictly FIFO, oldest first.
//
// Overflow policy: drop-oldest. When the queue is at capacity the oldest
// normal-priority message is evicted to make room (oldest high-priority if no
// normal remain). A stale floor update is worth less than a fresh one, and
// dropping at the tail would starve the newest state.
type messageQueue struct {
	mu       sync.Mutex
	high     []QueuedMessage
	normal   []QueuedMessage
	capacity int
	onEvict  func(QueuedMessage)
}

func newMessageQueue(capacity int, onEvict func(QueuedMessage)) *messageQueue {
	if capacity <= 0 {
		capacity = defaultQueueCapacity
	}
	return &messageQueue{capacity: capacity, onEvict: onEvict}
}

// enqueue appends a message, evicting the oldest entry when at capacity.
func (q *messageQueue) enqueue(m QueuedMessage) {
	q.mu.Lock()
	var evicted []QueuedMessage
	for len(q.high)+len(q.normal) >= q.capacity {
		if len(q.normal) > 0 {
			evicted = append(evicted, q.normal[0])
			q.normal = q.normal[1:]
		} else {
			evicted = append(evicted, q.high[0])
			q.high = q.high[1:]
		}
	}
	if m.Priority == PriorityHigh {
		q.high = append(q.high, m)
	} else {
		q.normal = append(q.normal, m)
	}
	q.mu.Unlock()

	if q.onEvict != nil {
		for _, e := range evicted {
			q.onEvict(e)
		}
	}
}

// drain sends queued messages through write, high priority first, FIFO within
// each class. A write failure halts the drain and leaves the failed message
// and everything behind it queued for the next successful connection.
// Returns the number of messages sent.
func (q *messageQueue) drain(write func(Envelope) error) (int, error) {
	sent := 0
	for {
		q.mu.Lock()
		var m QueuedMessage
		var fromHigh bool
		switch {
		case len(q.high) > 0:
			m, fromHigh = q.high[0], true
		case len(q.normal) > 0:
			m = q.normal[0]
		default:
			q.mu.Unlock()
			return sent, nil
		}
		q.mu.Unlock()

		if err := write(m.envelope()); err != nil {
			return sent, err
		}

		// Pop only after the write succeeded so a failed message is retried
		// on the next drain.
		q.mu.Lock()
		if fromHigh {
			if len(q.high) > 0 && q.high[0].ClientMessageID == m.ClientMessageID {
				q.high = q.high[1:]
			}
		} else {
			if len(q.normal) > 0 && q.normal[0].ClientMessageID == m.ClientMessageID {
				q.normal = q.normal[1:]
			}
		}
		q.mu.Unlock()
		sent++
	}
}

func (q *messageQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.high) + len(q.normal)
}

func (q *messageQueue) clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.high = nil
	q.normal = nil
}
