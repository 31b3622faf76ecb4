package realtime

import (
	"context"
	"sync"

	"github.com/fasthttp/websocket"
)

// fakeAuthenticator hands out canned credentials, or a scripted error.
type fakeAuthenticator struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (a *fakeAuthenticator) Credential(_ context.Context) (Credential, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if a.err != nil {
		return Credential{}, a.err
	}
	return Credential{Token: "test-token"}, nil
}

func (a *fakeAuthenticator) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

// fakeTransport builds fakeConns and scripts their behaviour, so the whole
// state machine is exercisable without a socket.
type fakeTransport struct {
	mu sync.Mutex
	// failOpens makes the next n Open calls fail with ErrCannotConnect.
	failOpens int
	// welcome controls whether a freshly opened conn immediately delivers
	// the server welcome. Defaults to true via newFakeTransport.
	welcome bool
	// authError makes a freshly opened conn deliver auth_error instead.
	authError bool
	writeErr  error
	conns     []*fakeConn
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{welcome: true}
}

func (t *fakeTransport) factory() ConnFactory {
	return func(params OpenConnectionParams, recv chan<- Envelope, _ Logger) Conn {
		t.mu.Lock()
		defer t.mu.Unlock()
		conn := &fakeConn{
			transport: t,
			params:    params,
			recv:      recv,
			closeC:    make(CloseChan),
		}
		t.conns = append(t.conns, conn)
		return conn
	}
}

func (t *fakeTransport) connCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.conns)
}

func (t *fakeTransport) lastConn() *fakeConn {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.conns) == 0 {
		return nil
	}
	return t.conns[len(t.conns)-1]
}

func (t *fakeTransport) setWriteErr(err error) {
	t.mu.Lock()
	t.writeErr = err
	t.mu.Unlock()
}

type fakeConn struct {
	transport *fakeTransport
	params    OpenConnectionParams
	recv      chan<- Envelope

	mu        sync.Mutex
	writes    []Envelope
	closeCode int

	closeC          CloseChan
	closeOnce       sync.Once
	closeReason     error
	closeReasonOnce sync.Once
}

func (f *fakeConn) Open(_ context.Context) error {
	f.transport.mu.Lock()
	if f.transport.failOpens > 0 {
		f.transport.failOpens--
		f.transport.mu.Unlock()
		return ErrCannotConnect
	}
	welcome := f.transport.welcome
	authError := f.transport.authError
	f.transport.mu.Unlock()

	if authError {
		f.recv <- NewEnvelope(MessageTypeAuthError, map[string]any{"reason": "bad token"})
	} else if welcome {
		f.recv <- NewEnvelope(MessageTypeWelcome, nil)
	}
	return nil
}

func (f *fakeConn) Write(env Envelope) error {
	f.transport.mu.Lock()
	writeErr := f.transport.writeErr
	f.transport.mu.Unlock()
	if writeErr != nil {
		return writeErr
	}

	f.mu.Lock()
	f.writes = append(f.writes, env)
	f.mu.Unlock()
	return nil
}

func (f *fakeConn) Close(code int, reason string) {
	f.setCloseReason(&CloseError{Code: code, Reason: reason})
	f.mu.Lock()
	f.closeCode = code
	f.mu.Unlock()
	f.closeOnce.Do(func() { close(f.closeC) })
}

func (f *fakeConn) CloseChan() CloseChan { return f.closeC }

func (f *fakeConn) CloseErr() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeReason
}

func (f *fakeConn) setCloseReason(err error) {
	f.closeReasonOnce.Do(func() {
		f.mu.Lock()
		f.closeReason = err
		f.mu.Unlock()
	})
}

// serverSend delivers an envelope as if the server pushed it.
func (f *fakeConn) serverSend(env Envelope) {
	f.recv <- env
}

// serverClose simulates the peer closing the connection with a code.
func (f *fakeConn) serverClose(code int, reason string) {
	f.setCloseReason(&CloseError{Code: code, Reason: reason})
	f.closeOnce.Do(func() { close(f.closeC) })
}

// dropAbnormally simulates the transport dying without a close frame.
func (f *fakeConn) dropAbnormally() {
	f.serverClose(websocket.CloseAbnormalClosure, "connection reset")
}

// writtenEnvelopes returns a copy of everything written so far.
func (f *fakeConn) writtenEnvelopes() []Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Envelope, len(f.writes))
	copy(out, f.writes)
	return out
}

// writtenTypes returns the envelope types in write order.
func (f *fakeConn) writtenTypes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	types := make([]string, 0, len(f.writes))
	for _, env := range f.writes {
		types = append(types, env.Type)
	}
	return types
}
