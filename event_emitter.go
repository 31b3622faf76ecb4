package realtime

import (
	"sync"
)

type callback[T any] func(T)

// ListenerHandle identifies a registered listener so it can be removed later.
type ListenerHandle uint64

type registration[V any] struct {
	id ListenerHandle
	fn callback[V]
}

// EventEmitterCallback is a simple event emitter mapping events (of type K)
// to listener callbacks. Listeners fire synchronously in registration order.
// A panicking listener is recovered and logged so it can never prevent
// delivery to the remaining listeners, nor corrupt dispatch for other events.
type EventEmitterCallback[K comparable, V any] struct {
	listeners map[K][]registration[V]
	nextID    ListenerHandle
	logger    Logger
	lock      sync.RWMutex
}

// NewEventEmitter creates a new EventEmitterCallback and returns a pointer to it.
func NewEventEmitter[K comparable, V any](logger Logger) *EventEmitterCallback[K, V] {
	return &EventEmitterCallback[K, V]{
		listeners: make(map[K][]registration[V]),
		logger:    logger.WithField("component", "event_emitter"),
	}
}

// On registers a new listener for the given event and returns a handle that
// removes it when passed to Off.
func (e *EventEmitterCallback[K, V]) On(event K, listener callback[V]) ListenerHandle {
	e.lock.Lock()
	defer e.lock.Unlock()

	e.nextID++
	id := e.nextID
	e.listeners[event] = append(e.listeners[event], registration[V]{id: id, fn: listener})
	return id
}

// Off removes the listener registered under the given handle. Removing an
// unknown handle is a no-op.
func (e *EventEmitterCallback[K, V]) Off(event K, handle ListenerHandle) {
	e.lock.Lock()
	defer e.lock.Unlock()

	regs := e.listeners[event]
	for i, reg := range regs {
		if reg.id == handle {
			e.listeners[event] = append(regs[:i:i], regs[i+1:]...)
			return
		}
	}
}

// Emit triggers all listeners registered for the given event synchronously,
// in registration order. The method returns once every listener has run.
func (e *EventEmitterCallback[K, V]) Emit(event K, data V) {
	e.lock.RLock()
	regs := e.listeners[event]
	// Snapshot so a listener may call On/Off without deadlocking.
	snapshot := make([]registration[V], len(regs))
	copy(snapshot, regs)
	e.lock.RUnlock()

	for _, reg := range snapshot {
		e.fire(event, reg, data)
	}
}

func (e *EventEmitterCallback[K, V]) fire(event K, reg registration[V], data V) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Errorf("listener %d for event %v panicked: %v", reg.id, event, r)
		}
	}()

	reg.fn(data)
}

// Close removes all listeners to prevent memory leaks.
func (e *EventEmitterCallback[K, V]) Close() {
	e.lock.Lock()
	defer e.lock.Unlock()

	e.listeners = make(map[K][]registration[V])
}
