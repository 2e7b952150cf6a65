package queue

import "time"

// maxBackoff bounds a single retry delay.
const maxBackoff = 24 * time.Hour

// Backoff returns the delay before retry number attempt (1-based): base for
// the first retry, doubling each time after, capped at maxBackoff.
func Backoff(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	if attempt < 1 {
		attempt = 1
	}
	d := base
	for i := 1; i < attempt; i++ {
		if d >= maxBackoff/2 {
			return maxBackoff
		}
		d *= 2
	}
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}
