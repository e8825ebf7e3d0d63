package adapter

import "time"

// Backoff computes exponential retry delays: Base doubling per attempt,
// capped at Max. Delay is a pure function of the attempt number so retry
// behavior is reproducible in tests.
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

// Delay returns the delay before retrying after the given zero-based attempt.
func (b Backoff) Delay(attempt int) time.Duration {
	base := b.Base
	if base <= 0 {
		base = time.Second
	}
	max := b.Max
	if max <= 0 {
		max = 30 * time.Second
	}

	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}
