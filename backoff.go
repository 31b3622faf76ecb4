package realtime

import (
	"math/rand"
	"time"
)

// BackoffCalculator computes how long to wait before reconnect attempt n
// (zero-based). Implementations add jitter so many clients that lost the
// same server do not reconnect in lockstep.
type BackoffCalculator func(attempt int) time.Duration

// NewExponentialBackoff returns a calculator producing base * 2^attempt
// capped at max, plus a uniformly random jitter in [0, maxJitter).
func NewExponentialBackoff(base, max, maxJitter time.Duration) BackoffCalculator {
	return func(attempt int) time.Duration {
		if attempt < 0 {
			attempt = 0
		}

		delay := max
		if attempt < 63 {
			delay = base << uint(attempt)
			if delay > max || delay < base {
				delay = max
			}
		}

		if maxJitter > 0 {
			delay += time.Duration(rand.Int63n(int64(maxJitter)))
		}
		return delay
	}
}
