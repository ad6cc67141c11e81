package infra

import "time"

// Backoff computes exponential delays for retry loops: Base * 2^retry,
// capped at Max. The zero value is unusable; use DefaultBackoff or set both
// fields.
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

// DefaultBackoff is the standard respawn/reconnect schedule: 1s doubling up
// to 60s.
func DefaultBackoff() Backoff {
	return Backoff{Base: time.Second, Max: 60 * time.Second}
}

// Delay returns the backoff duration for a given retry count. Negative
// counts are treated as zero.
func (b Backoff) Delay(retry int) time.Duration {
	if retry < 0 {
		retry = 0
	}
	// 2^31 seconds already exceeds any sane Max; avoid shift overflow.
	if retry > 30 {
		return b.Max
	}
	d := b.Base * time.Duration(1<<uint(retry))
	if d > b.Max || d < b.Base {
		return b.Max
	}
	return d
}
