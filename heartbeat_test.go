package realtime

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHeartbeatSendsProbesPeriodically(t *testing.T) {
	var pings atomic.Int64
	hb := newHeartbeatMonitor(5*time.Millisecond, func() error {
		pings.Add(1)
		return nil
	}, nil, discardLogger())

	hb.start()
	defer hb.stop()

	require.Eventually(t, func() bool {
		return pings.Load() >= 3
	}, time.Second, time.Millisecond)
}

func TestHeartbeatCountsMissedProbes(t *testing.T) {
	hb := newHeartbeatMonitor(5*time.Millisecond, func() error {
		return nil
	}, nil, discardLogger())

	hb.start()
	defer hb.stop()

	// No acks ever arrive, so consecutive probes pile up as missed.
	require.Eventually(t, func() bool {
		return hb.missedCount() >= 2
	}, time.Second, time.Millisecond)
}

func TestHeartbeatAckResetsMissed(t *testing.T) {
	hb := newHeartbeatMonitor(5*time.Millisecond, func() error {
		return nil
	}, nil, discardLogger())

	hb.start()
	defer hb.stop()

	require.Eventually(t, func() bool {
		return hb.missedCount() >= 1
	}, time.Second, time.Millisecond)

	hb.ack()
	require.Equal(t, 0, hb.missedCount())
}

func TestHeartbeatFirstAckFiresOnce(t *testing.T) {
	var firstAcks atomic.Int64
	hb := newHeartbeatMonitor(time.Hour, func() error {
		return nil
	}, func() {
		firstAcks.Add(1)
	}, discardLogger())

	hb.ack()
	hb.ack()
	hb.ack()

	require.Equal(t, int64(1), firstAcks.Load())
}

func TestHeartbeatStopIsDeterministicAndIdempotent(t *testing.T) {
	var pings atomic.Int64
	hb := newHeartbeatMonitor(5*time.Millisecond, func() error {
		pings.Add(1)
		return nil
	}, nil, discardLogger())

	hb.start()
	require.Eventually(t, func() bool {
		return pings.Load() >= 1
	}, time.Second, time.Millisecond)

	hb.stop()
	hb.stop()

	// Let any in-flight probe finish before sampling the counter.
	time.Sleep(10 * time.Millisecond)
	settled := pings.Load()
	time.Sleep(30 * time.Millisecond)
	require.Equal(t, settled, pings.Load(), "no probes after stop")
}
