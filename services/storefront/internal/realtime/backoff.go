package realtime

import "time"

const (
	minBackoff = 1 * time.Second
	maxBackoff = 5 * time.Second
)

// Backoff doubles from 1s per attempt and stops growing at 5s.
func Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := minBackoff
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}
