package realtime

import (
	"testing"

	"github.com/pkg/errors"
)

func queued(id string, priority Priority) QueuedMessage {
	return QueuedMessage{
		Type:            "production_update",
		Priority:        priority,
		ClientMessageID: id,
	}
}

func drainIDs(t *testing.T, q *messageQueue) []string {
	t.Helper()
	var ids []string
	sent, err := q.drain(func(env Envelope) error {
		ids = append(ids, env.ClientMessageID)
		return nil
	})
	if err != nil {
		t.Fatalf("Expected drain to succeed, got %v", err)
	}
	if sent != len(ids) {
		t.Fatalf("Expected sent count %d, got %d", len(ids), sent)
	}
	return ids
}

func TestQueueDrainsFIFO(t *testing.T) {
	q := newMessageQueue(10, nil)
	q.enqueue(queued("a", PriorityNormal))
	q.enqueue(queued("b", PriorityNormal))
	q.enqueue(queued("c", PriorityNormal))

	ids := drainIDs(t, q)
	want := []string{"a", "b", "c"}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("Expected drain order %v, got %v", want, ids)
		}
	}
	if q.len() != 0 {
		t.Errorf("Expected empty queue after drain, got %d", q.len())
	}
}

func TestQueueHighPriorityDrainsFirst(t *testing.T) {
	q := newMessageQueue(10, nil)
	q.enqueue(queued("n1", PriorityNormal))
	q.enqueue(queued("h1", PriorityHigh))
	q.enqueue(queued("n2", PriorityNormal))
	q.enqueue(queued("h2", PriorityHigh))

	ids := drainIDs(t, q)
	want := []string{"h1", "h2", "n1", "n2"}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("Expected drain order %v, got %v", want, ids)
		}
	}
}

func TestQueueOverflowDropsOldest(t *testing.T) {
	var evicted []string
	q := newMessageQueue(3, func(m QueuedMessage) {
		evicted = append(evicted, m.ClientMessageID)
	})

	q.enqueue(queued("a", PriorityNormal))
	q.enqueue(queued("b", PriorityNormal))
	q.enqueue(queued("c", PriorityNormal))
	q.enqueue(queued("d", PriorityNormal))

	if len(evicted) != 1 || evicted[0] != "a" {
		t.Errorf("Expected oldest message evicted, got %v", evicted)
	}

	ids := drainIDs(t, q)
	want := []string{"b", "c", "d"}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("Expected drain order %v, got %v", want, ids)
		}
	}
}

func TestQueueOverflowPrefersEvictingNormal(t *testing.T) {
	var evicted []string
	q := newMessageQueue(2, func(m QueuedMessage) {
		evicted = append(evicted, m.ClientMessageID)
	})

	q.enqueue(queued("h1", PriorityHigh))
	q.enqueue(queued("n1", PriorityNormal))
	q.enqueue(queued("h2", PriorityHigh))

	if len(evicted) != 1 || evicted[0] != "n1" {
		t.Errorf("Expected the normal message evicted before any high one, got %v", evicted)
	}

	ids := drainIDs(t, q)
	want := []string{"h1", "h2"}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("Expected drain order %v, got %v", want, ids)
		}
	}
}

func TestQueueDrainHaltsOnWriteFailure(t *testing.T) {
	q := newMessageQueue(10, nil)
	q.enqueue(queued("a", PriorityNormal))
	q.enqueue(queued("b", PriorityNormal))
	q.enqueue(queued("c", PriorityNormal))

	writeErr := errors.New("socket gone")
	calls := 0
	sent, err := q.drain(func(env Envelope) error {
		calls++
		if env.ClientMessageID == "b" {
			return writeErr
		}
		return nil
	})

	if !errors.Is(err, writeErr) {
		t.Fatalf("Expected the write error back, got %v", err)
	}
	if sent != 1 {
		t.Errorf("Expected 1 message sent before the failure, got %d", sent)
	}
	if calls != 2 {
		t.Errorf("Expected drain to stop at the failed write, got %d calls", calls)
	}

	// The failed message and everything behind it stay queued, in order.
	ids := drainIDs(t, q)
	want := []string{"b", "c"}
	if len(ids) != len(want) {
		t.Fatalf("Expected %v left queued, got %v", want, ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("Expected retry order %v, got %v", want, ids)
		}
	}
}

func TestQueueEnvelopeCarriesIdentity(t *testing.T) {
	m := QueuedMessage{
		Type:            "production_update",
		Data:            map[string]any{"order": 42},
		Priority:        PriorityHigh,
		ClientMessageID: "msg-1",
	}

	env := m.envelope()
	if env.Type != "production_update" {
		t.Errorf("Expected type carried over, got %q", env.Type)
	}
	if env.Priority != PriorityHigh {
		t.Errorf("Expected priority carried over, got %q", env.Priority)
	}
	if env.ClientMessageID != "msg-1" {
		t.Errorf("Expected client message id carried over, got %q", env.ClientMessageID)
	}
	if env.Timestamp == "" {
		t.Error("Expected envelope timestamp to be set")
	}
}
