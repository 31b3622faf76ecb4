package realtime

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// realtimeClient is the connection manager: it owns the single live
// transport, drives the state machine and orchestrates the authenticator,
// subscription registry, message queue and heartbeat monitor on each
// transition. All shared state below mu is serialized by it, preserving the
// non-interleaving guarantee consumers rely on.
type realtimeClient struct {
	cfg     Config
	logger  Logger
	auth    Authenticator
	factory ConnFactory
	backoff BackoffCalculator
	emitter *EventEmitterCallback[EventType, Event]
	subs    *subscriptionRegistry
	queue   *messageQueue
	metrics *Metrics
	machine *stateMachine

	mu             sync.Mutex
	conn           Conn
	heartbeat      *heartbeatMonitor
	attempt        int
	reconnectTimer *time.Timer
	// generation invalidates in-flight attempts, timers and read loops
	// whenever the caller starts a fresh session or tears one down.
	generation uint64
	disposed   bool
}

// New constructs an independent client instance. Multiple instances share no
// mutable state.
func New(cfg Config, opts ...Option) (Client, error) {
	cfg.applyDefaults()
	if err := cfg.validateTunables(); err != nil {
		return nil, err
	}

	c := &realtimeClient{
		cfg:     cfg,
		subs:    newSubscriptionRegistry(),
		metrics: &Metrics{},
		machine: newConnectionStateMachine(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = NewSlogLogger(nil)
	}
	c.logger = c.logger.WithField("component", "realtime_client")
	c.emitter = NewEventEmitter[EventType, Event](c.logger)

	if c.auth == nil {
		if cfg.AuthURL == "" {
			return nil, errors.New("auth_url is required")
		}
		c.auth = NewHTTPAuthenticator(cfg, c.logger)
	}
	if c.factory == nil {
		if cfg.Host == "" {
			return nil, errors.New("host is required")
		}
		c.factory = NewWebsocketConnFactory(nil)
	}
	if c.backoff == nil {
		c.backoff = NewExponentialBackoff(cfg.ReconnectBase, cfg.ReconnectMax, cfg.ReconnectJitter)
	}

	c.queue = newMessageQueue(cfg.QueueCapacity, func(m QueuedMessage) {
		c.metrics.markDropped()
		c.logger.Warnf("outbound queue full, dropping oldest message %s (type %s)", m.ClientMessageID, m.Type)
		c.emitter.Emit(EventError, Event{
			Type: EventError,
			Err:  errors.Wrapf(ErrQueueOverflow, "dropped message %s", m.ClientMessageID),
		})
	})

	return c, nil
}

func (c *realtimeClient) Connect(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return ErrClientDisposed
	}
	switch c.machine.Current() {
	case StateConnecting, StateConnected, StateAuthenticating, StateAuthenticated:
		// A second Connect while a connection is pending or live must not
		// open a second socket.
		c.mu.Unlock()
		return nil
	case StateReconnecting:
		c.cancelReconnectTimerLocked()
	}
	if err := c.machine.TransitionTo(StateConnecting); err != nil {
		c.mu.Unlock()
		return err
	}
	c.attempt = 0
	c.generation++
	gen := c.generation
	c.mu.Unlock()

	go c.attemptConnect(ctx, gen)
	return nil
}

func (c *realtimeClient) Disconnect() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	state := c.machine.Current()
	if state == StateClosed || state == StateDisconnected {
		c.mu.Unlock()
		return
	}
	c.generation++
	c.cancelReconnectTimerLocked()
	c.stopHeartbeatLocked()
	conn := c.conn
	c.conn = nil
	_ = c.machine.TransitionTo(StateClosed)
	c.mu.Unlock()

	if conn != nil {
		conn.Close(websocket.CloseNormalClosure, "client disconnect")
	}
	c.logger.Info("disconnected deliberately")
	c.emitter.Emit(EventDisconnect, Event{Type: EventDisconnect})
}

func (c *realtimeClient) Dispose() {
	c.Disconnect()

	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.disposed = true
	c.mu.Unlock()

	c.subs.clear()
	c.queue.clear()
	c.emitter.Close()
}

func (c *realtimeClient) Send(msgType string, data any, priority Priority) string {
	return c.SendWithID(uuid.NewString(), msgType, data, priority)
}

func (c *realtimeClient) SendWithID(id, msgType string, data any, priority Priority) string {
	if priority == "" {
		priority = PriorityNormal
	}
	m := QueuedMessage{
		Type:            msgType,
		Data:            data,
		Priority:        priority,
		EnqueuedAt:      time.Now(),
		ClientMessageID: id,
	}

	if conn, ok := c.liveConn(); ok {
		if err := conn.Write(m.envelope()); err == nil {
			c.metrics.markSent()
			return id
		}
		// Write failed; the connection teardown path will notice. The
		// message is not lost, it waits for the next drain.
	}

	c.queue.enqueue(m)
	c.metrics.markQueued()
	return id
}

func (c *realtimeClient) Subscribe(channels []string, room string) {
	added := c.subs.addChannels(channels)
	roomAdded := false
	if room != "" {
		roomAdded = c.subs.addRoom(room)
	}

	conn, ok := c.liveConn()
	if !ok {
		// Desired state recorded; replay after authentication covers it.
		return
	}
	if len(added) > 0 {
		_ = conn.Write(NewEnvelope(MessageTypeSubscribe, map[string]any{"channels": added}))
	}
	if roomAdded {
		_ = conn.Write(NewEnvelope(MessageTypeJoinRoom, map[string]any{"room": room}))
	}
}

func (c *realtimeClient) Unsubscribe(channels ...string) {
	removed := c.subs.removeChannels(channels)
	if len(removed) == 0 {
		return
	}
	if conn, ok := c.liveConn(); ok {
		_ = conn.Write(NewEnvelope(MessageTypeUnsubscribe, map[string]any{"channels": removed}))
	}
}

func (c *realtimeClient) JoinRoom(room string) {
	if !c.subs.addRoom(room) {
		return
	}
	if conn, ok := c.liveConn(); ok {
		_ = conn.Write(NewEnvelope(MessageTypeJoinRoom, map[string]any{"room": room}))
	}
}

func (c *realtimeClient) LeaveRoom(room string) {
	if !c.subs.removeRoom(room) {
		return
	}
	if conn, ok := c.liveConn(); ok {
		_ = conn.Write(NewEnvelope(MessageTypeLeaveRoom, map[string]any{"room": room}))
	}
}

func (c *realtimeClient) On(event EventType, fn func(Event)) ListenerHandle {
	return c.emitter.On(event, fn)
}

func (c *realtimeClient) Off(event EventType, handle ListenerHandle) {
	c.emitter.Off(event, handle)
}

func (c *realtimeClient) State() ConnectionState {
	return c.machine.Current()
}

func (c *realtimeClient) Metrics() MetricsSnapshot {
	return c.metrics.Snapshot()
}

func (c *realtimeClient) ResetMetrics() {
	c.metrics.Reset()
}

func (c *realtimeClient) LastHeartbeatAck() time.Time {
	return nanosToTime(c.metrics.lastAckAt.Load())
}

func (c *realtimeClient) QueuedMessages() int {
	return c.queue.len()
}

// attemptConnect performs one full connection attempt: credential, dial,
// welcome. Failures route to scheduleReconnect except credential rejection,
// which is terminal for the attempt sequence.
func (c *realtimeClient) attemptConnect(ctx context.Context, gen uint64) {
	cred, err := c.auth.Credential(ctx)
	if err != nil {
		if errors.Is(err, ErrAuthRejected) {
			c.failAuth(gen, err)
			return
		}
		if ctx.Err() != nil {
			return
		}
		c.scheduleReconnect(ctx, gen, err)
		return
	}

	if c.stale(gen) {
		return
	}

	recv := make(chan Envelope, c.cfg.RecvBuffer)
	conn := c.factory(c.openParams(cred), recv, c.logger)

	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
	err = conn.Open(dialCtx)
	cancel()
	if err != nil {
		if errors.Is(err, ErrAuthRejected) {
			c.failAuth(gen, err)
			return
		}
		if ctx.Err() != nil {
			return
		}
		c.scheduleReconnect(ctx, gen, err)
		return
	}

	c.mu.Lock()
	if c.generation != gen || c.disposed {
		c.mu.Unlock()
		conn.Close(websocket.CloseNormalClosure, "superseded")
		return
	}
	_ = c.machine.TransitionTo(StateConnected)
	_ = c.machine.TransitionTo(StateAuthenticating)
	c.mu.Unlock()

	c.awaitWelcome(ctx, gen, conn, recv)
}

// awaitWelcome waits for the server's auth verdict on a freshly opened
// transport, bounded by the connection-attempt timeout.
func (c *realtimeClient) awaitWelcome(ctx context.Context, gen uint64, conn Conn, recv chan Envelope) {
	timeout := time.NewTimer(c.cfg.ConnectTimeout)
	defer timeout.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.CloseGoingAway, "context cancelled")
			c.teardownOnContext(gen)
			return
		case <-timeout.C:
			conn.Close(websocket.CloseProtocolError, "welcome timeout")
			c.scheduleReconnect(ctx, gen, ErrConnectTimeout)
			return
		case <-conn.CloseChan():
			c.scheduleReconnect(ctx, gen, connCloseErr(conn))
			return
		case env := <-recv:
			switch env.Type {
			case MessageTypeWelcome:
				c.onAuthenticated(ctx, gen, conn, recv)
				return
			case MessageTypeAuthError:
				conn.Close(websocket.CloseNormalClosure, "credential rejected")
				c.failAuth(gen, errors.Wrapf(ErrAuthRejected, "server sent %s", env.Type))
				return
			default:
				c.logger.Debugf("ignoring pre-welcome message of type %s", env.Type)
			}
		}
	}
}

// onAuthenticated enters the authenticated state: replay subscriptions,
// drain the queue, start the heartbeat, in that order. Replay runs before
// drain so queued messages for (re)joined contexts are not rejected
// server-side as unsubscribed.
func (c *realtimeClient) onAuthenticated(ctx context.Context, gen uint64, conn Conn, recv chan Envelope) {
	hb := newHeartbeatMonitor(
		c.cfg.HeartbeatInterval,
		func() error {
			c.metrics.markPing()
			return conn.Write(NewEnvelope(MessageTypePing, nil))
		},
		func() {
			// One completed round-trip marks the connection healthy; only
			// then does the attempt counter reset.
			c.mu.Lock()
			if c.generation == gen {
				c.attempt = 0
			}
			c.mu.Unlock()
		},
		c.logger,
	)

	c.mu.Lock()
	if c.generation != gen || c.disposed {
		c.mu.Unlock()
		hb.stop()
		conn.Close(websocket.CloseNormalClosure, "superseded")
		return
	}
	_ = c.machine.TransitionTo(StateAuthenticated)
	c.conn = conn
	c.heartbeat = hb
	c.mu.Unlock()

	c.metrics.markConnected()
	c.logger.Info("authenticated")

	c.replaySubscriptions(conn)
	c.drainQueue(conn)
	hb.start()

	go c.readLoop(ctx, gen, conn, recv)

	c.emitter.Emit(EventConnect, Event{Type: EventConnect})
}

// replaySubscriptions re-sends the full desired set: one subscribe request
// with every channel, then one join per room.
func (c *realtimeClient) replaySubscriptions(conn Conn) {
	sub := c.subs.snapshot()
	if len(sub.Channels) > 0 {
		env := NewEnvelope(MessageTypeSubscribe, map[string]any{"channels": sub.Channels})
		if err := conn.Write(env); err != nil {
			c.logger.Warnf("subscription replay failed: %s", err)
			return
		}
	}
	for _, room := range sub.Rooms {
		if err := conn.Write(NewEnvelope(MessageTypeJoinRoom, map[string]any{"room": room})); err != nil {
			c.logger.Warnf("room replay failed: %s", err)
			return
		}
	}
}

func (c *realtimeClient) drainQueue(conn Conn) {
	sent, err := c.queue.drain(func(env Envelope) error {
		if werr := conn.Write(env); werr != nil {
			return werr
		}
		c.metrics.markSent()
		return nil
	})
	if err != nil {
		c.logger.Warnf("queue drain halted after %d message(s): %s", sent, err)
		return
	}
	if sent > 0 {
		c.logger.Debugf("drained %d queued message(s)", sent)
	}
}

func (c *realtimeClient) readLoop(ctx context.Context, gen uint64, conn Conn, recv chan Envelope) {
	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.CloseGoingAway, "context cancelled")
			c.teardownOnContext(gen)
			return
		case <-conn.CloseChan():
			c.handleConnectionLost(ctx, gen, conn)
			return
		case env := <-recv:
			c.dispatch(gen, env)
		}
	}
}

// dispatch routes one inbound envelope. Recognised control types update the
// relevant component and surface as observability events; anything else is
// forwarded to listeners under its own type name.
func (c *realtimeClient) dispatch(gen uint64, env Envelope) {
	switch env.Type {
	case MessageTypePong:
		c.metrics.markAck()
		c.mu.Lock()
		hb := c.heartbeat
		current := c.generation
		c.mu.Unlock()
		if hb != nil && current == gen {
			hb.ack()
		}
		c.emitter.Emit(EventPong, Event{Type: EventPong, Data: env})
	case MessageTypeSubscriptionConfirmed:
		c.emitter.Emit(EventSubscribed, Event{Type: EventSubscribed, Data: env})
	case MessageTypeUnsubscriptionConfirmed:
		c.emitter.Emit(EventUnsubscribed, Event{Type: EventUnsubscribed, Data: env})
	case MessageTypeRoomJoined:
		c.emitter.Emit(EventRoomJoined, Event{Type: EventRoomJoined, Data: env})
	case MessageTypeRoomLeft:
		c.emitter.Emit(EventRoomLeft, Event{Type: EventRoomLeft, Data: env})
	case MessageTypeError:
		c.logger.Warnf("server error: %v", env.Data)
		c.emitter.Emit(EventError, Event{Type: EventError, Data: env})
	case MessageTypeWelcome, MessageTypeAuthError:
		// Duplicates after authentication carry no new information.
	default:
		c.metrics.markReceived()
		c.emitter.Emit(EventType(env.Type), Event{Type: EventType(env.Type), Data: env})
	}
}

// handleConnectionLost reacts to the transport going away underneath an
// authenticated session. Deliberate close codes end the lifecycle; anything
// else schedules a reconnect.
func (c *realtimeClient) handleConnectionLost(ctx context.Context, gen uint64, conn Conn) {
	c.mu.Lock()
	if c.generation != gen || c.disposed {
		// A newer session owns the lifecycle; this close was already
		// handled by Disconnect or a fresh Connect.
		c.mu.Unlock()
		return
	}
	c.stopHeartbeatLocked()
	c.conn = nil
	c.mu.Unlock()

	closeErr := connCloseErr(conn)
	c.emitter.Emit(EventDisconnect, Event{Type: EventDisconnect, Err: closeErr})

	var ce *CloseError
	if errors.As(closeErr, &ce) && ce.Deliberate() {
		c.mu.Lock()
		if c.generation == gen {
			_ = c.machine.TransitionTo(StateClosed)
		}
		c.mu.Unlock()
		c.logger.Infof("connection closed deliberately by peer (code %d)", ce.Code)
		return
	}

	c.scheduleReconnect(ctx, gen, closeErr)
}

// scheduleReconnect books the next attempt after a backoff delay, or gives
// up once the budget is spent.
func (c *realtimeClient) scheduleReconnect(ctx context.Context, gen uint64, cause error) {
	c.mu.Lock()
	if c.generation != gen || c.disposed || ctx.Err() != nil {
		c.mu.Unlock()
		return
	}
	c.stopHeartbeatLocked()
	c.attempt++
	attempt := c.attempt

	if attempt > c.cfg.MaxReconnectAttempts {
		_ = c.machine.TransitionTo(StateError)
		c.mu.Unlock()
		c.logger.Errorf("giving up after %d reconnect attempts: %s", attempt-1, cause)
		c.emitter.Emit(EventReconnectFailed, Event{
			Type: EventReconnectFailed,
			Err:  errors.Wrapf(ErrMaxAttemptsExceeded, "%s", cause),
		})
		return
	}

	_ = c.machine.TransitionTo(StateReconnecting)
	delay := c.backoff(attempt - 1)
	c.metrics.markReconnect()
	c.reconnectTimer = time.AfterFunc(delay, func() {
		c.onReconnectTimer(ctx, gen)
	})
	c.mu.Unlock()

	c.logger.Infof("reconnect attempt %d in %s: %s", attempt, delay, cause)
	c.emitter.Emit(EventReconnecting, Event{
		Type: EventReconnecting,
		Data: ReconnectInfo{Attempt: attempt, Delay: delay},
		Err:  cause,
	})
}

func (c *realtimeClient) onReconnectTimer(ctx context.Context, gen uint64) {
	c.mu.Lock()
	if c.generation != gen || c.disposed {
		c.mu.Unlock()
		return
	}
	c.reconnectTimer = nil
	if err := c.machine.TransitionTo(StateConnecting); err != nil {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	c.attemptConnect(ctx, gen)
}

// failAuth ends the attempt sequence on credential rejection. No reconnect:
// an automatically retried bad credential would loop forever.
func (c *realtimeClient) failAuth(gen uint64, err error) {
	c.mu.Lock()
	if c.generation != gen || c.disposed {
		c.mu.Unlock()
		return
	}
	c.stopHeartbeatLocked()
	c.conn = nil
	_ = c.machine.TransitionTo(StateError)
	c.mu.Unlock()

	c.logger.Errorf("authentication failed: %s", err)
	c.emitter.Emit(EventAuthError, Event{Type: EventAuthError, Err: err})
}

// teardownOnContext handles the session context being cancelled, which is
// equivalent to a deliberate Disconnect.
func (c *realtimeClient) teardownOnContext(gen uint64) {
	c.mu.Lock()
	if c.generation != gen || c.disposed {
		c.mu.Unlock()
		return
	}
	c.generation++
	c.cancelReconnectTimerLocked()
	c.stopHeartbeatLocked()
	c.conn = nil
	_ = c.machine.TransitionTo(StateClosed)
	c.mu.Unlock()

	c.emitter.Emit(EventDisconnect, Event{Type: EventDisconnect, Err: context.Canceled})
}

func (c *realtimeClient) openParams(cred Credential) OpenConnectionParams {
	scheme := "ws"
	if c.cfg.Secure {
		scheme = "wss"
	}
	query := url.Values{}
	query.Set(c.cfg.TokenParam, cred.Token)
	return OpenConnectionParams{
		URL: url.URL{
			Scheme:   scheme,
			Host:     c.cfg.Host,
			Path:     c.cfg.Path,
			RawQuery: query.Encode(),
		},
		Header: http.Header{},
	}
}

func (c *realtimeClient) liveConn() (Conn, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil && c.machine.Current() == StateAuthenticated {
		return c.conn, true
	}
	return nil, false
}

func (c *realtimeClient) stale(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation != gen || c.disposed
}

func (c *realtimeClient) cancelReconnectTimerLocked() {
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
}

func (c *realtimeClient) stopHeartbeatLocked() {
	if c.heartbeat != nil {
		c.heartbeat.stop()
		c.heartbeat = nil
	}
}

func connCloseErr(conn Conn) error {
	if err := conn.CloseErr(); err != nil {
		return err
	}
	return ErrConnectionClosed
}
