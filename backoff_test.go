package realtime

import (
	"testing"
	"time"
)

func TestExponentialBackoffDoubles(t *testing.T) {
	calc := NewExponentialBackoff(time.Second, time.Minute, 0)

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{5, 32 * time.Second},
	}
	for _, c := range cases {
		if got := calc(c.attempt); got != c.want {
			t.Errorf("attempt %d: expected %s, got %s", c.attempt, c.want, got)
		}
	}
}

func TestExponentialBackoffCapsAtMax(t *testing.T) {
	calc := NewExponentialBackoff(time.Second, time.Minute, 0)

	for _, attempt := range []int{6, 10, 30, 63, 500} {
		if got := calc(attempt); got != time.Minute {
			t.Errorf("attempt %d: expected cap %s, got %s", attempt, time.Minute, got)
		}
	}
}

func TestExponentialBackoffNegativeAttempt(t *testing.T) {
	calc := NewExponentialBackoff(time.Second, time.Minute, 0)
	if got := calc(-3); got != time.Second {
		t.Errorf("Expected negative attempt to behave like attempt 0, got %s", got)
	}
}

func TestExponentialBackoffJitterBounds(t *testing.T) {
	base := time.Second
	jitter := 500 * time.Millisecond
	calc := NewExponentialBackoff(base, time.Minute, jitter)

	for i := 0; i < 100; i++ {
		got := calc(0)
		if got < base || got >= base+jitter {
			t.Fatalf("Expected delay in [%s, %s), got %s", base, base+jitter, got)
		}
	}
}

func TestExponentialBackoffJitterSpreadsClients(t *testing.T) {
	calc := NewExponentialBackoff(time.Second, time.Minute, 500*time.Millisecond)

	// Ten clients reconnecting after the same outage must not pile up on
	// the same instant.
	delays := make(map[time.Duration]struct{})
	for i := 0; i < 10; i++ {
		delays[calc(2)] = struct{}{}
	}
	if len(delays) < 2 {
		t.Errorf("Expected jitter to spread delays, got %d distinct value(s)", len(delays))
	}
}
