package realtime

import (
	"sync"

	"github.com/pkg/errors"
)

// ConnectionState describes where the client currently sits in its
// connection lifecycle. Exactly one state is live per client; only the
// connection manager writes it.
type ConnectionState uint8

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateAuthenticating
	StateAuthenticated
	StateReconnecting
	StateError
	StateClosed
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateReconnecting:
		return "reconnecting"
	case StateError:
		return "error"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// stateMachine guards ConnectionState mutations behind an explicit
// allowed-transition table, so an illegal edge is an error rather than a
// silent corruption of the lifecycle.
type stateMachine struct {
	mu      sync.RWMutex
	current ConnectionState
	allowed map[ConnectionState][]ConnectionState
}

func newStateMachine(initial ConnectionState) *stateMachine {
	return &stateMachine{
		current: initial,
		allowed: make(map[ConnectionState][]ConnectionState),
	}
}

// allow registers the set of states reachable from the given state.
func (m *stateMachine) allow(from ConnectionState, to ...ConnectionState) {
	m.mu.Lock()
	m.allowed[from] = append(m.allowed[from], to...)
	m.mu.Unlock()
}

// Current returns the live state.
func (m *stateMachine) Current() ConnectionState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// TransitionTo moves the machine to next if the edge is registered.
func (m *stateMachine) TransitionTo(next ConnectionState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == next {
		return nil
	}
	for _, candidate := range m.allowed[m.current] {
		if candidate == next {
			m.current = next
			return nil
		}
	}
	return errors.Wrapf(ErrInvalidTransition, "%s -> %s", m.current, next)
}

// newConnectionStateMachine builds the machine with every legal edge of the
// client lifecycle registered. Disconnected is only reachable as the initial
// state; teardown always lands on closed, and a fresh Connect leaves closed
// through connecting.
func newConnectionStateMachine() *stateMachine {
	m := newStateMachine(StateDisconnected)
	m.allow(StateDisconnected, StateConnecting, StateClosed)
	m.allow(StateConnecting, StateConnected, StateReconnecting, StateError, StateClosed)
	m.allow(StateConnected, StateAuthenticating, StateReconnecting, StateError, StateClosed)
	m.allow(StateAuthenticating, StateAuthenticated, StateReconnecting, StateError, StateClosed)
	m.allow(StateAuthenticated, StateReconnecting, StateClosed)
	m.allow(StateReconnecting, StateConnecting, StateError, StateClosed)
	m.allow(StateError, StateConnecting, StateClosed)
	m.allow(StateClosed, StateConnecting)
	return m
}
