package realtime

import (
	"sync"
	"time"
)

// heartbeatMonitor sends periodic liveness probes over an established
// connection. It runs only while the client is authenticated; the connection
// manager creates a fresh monitor on each successful authentication and
// stops it the instant the authenticated state is left.
//
// A probe that elapses without an acknowledgment is counted as missed and
// logged, but never triggers a disconnect by itself: probes may be lost on a
// lossy link, and the force-reconnect decision belongs to the caller, using
// the exposed last-ack timestamp.
type heartbeatMonitor struct {
	interval time.Duration
	sendPing func() error
	// onFirstAck fires once per monitor, on the first completed
	// ping/pong round-trip. The manager uses it to declare the
	// connection healthy.
	onFirstAck func()
	logger     Logger

	mu          sync.Mutex
	awaitingAck bool
	acked       bool
	missed      int

	stopOnce sync.Once
	stopC    chan struct{}
}

func newHeartbeatMonitor(
	interval time.Duration,
	sendPing func() error,
	onFirstAck func(),
	logger Logger,
) *heartbeatMonitor {
	return &heartbeatMonitor{
		interval:   interval,
		sendPing:   sendPing,
		onFirstAck: onFirstAck,
		logger:     logger.WithField("component", "heartbeat"),
		stopC:      make(chan struct{}),
	}
}

// start spawns the probe loop.
func (h *heartbeatMonitor) start() {
	go h.run()
}

// stop terminates the probe loop deterministically. Idempotent.
func (h *heartbeatMonitor) stop() {
	h.stopOnce.Do(func() {
		close(h.stopC)
	})
}

// ack records an acknowledgment for the outstanding probe.
func (h *heartbeatMonitor) ack() {
	h.mu.Lock()
	h.awaitingAck = false
	h.missed = 0
	first := !h.acked
	h.acked = true
	h.mu.Unlock()

	if first && h.onFirstAck != nil {
		h.onFirstAck()
	}
}

// missedCount returns how many consecutive probes elapsed unacknowledged.
func (h *heartbeatMonitor) missedCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.missed
}

func (h *heartbeatMonitor) run() {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-h.stopC:
			return
		case <-ticker.C:
			h.mu.Lock()
			if h.awaitingAck {
				h.missed++
				h.logger.Warnf("heartbeat unacknowledged for %d interval(s)", h.missed)
			}
			h.awaitingAck = true
			h.mu.Unlock()

			if err := h.sendPing(); err != nil {
				h.logger.Warnf("heartbeat probe failed: %s", err)
			}
		}
	}
}
