package clock

import "time"

// Backoff returns the delay before retry attempt n (starting at 0), doubling
// initial on every attempt and capping the result at maxDelay.
func Backoff(attempt int, initial, maxDelay time.Duration) time.Duration {
	if initial <= 0 {
		return 0
	}
	d := initial
	for i := 0; i < attempt; i++ {
		if d >= maxDelay/2 {
			return maxDelay
		}
		d *= 2
	}
	return min(d, maxDelay)
}

