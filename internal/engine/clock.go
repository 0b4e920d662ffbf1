package engine

import "time"

// Clock supplies created_at timestamps for checkpoints and actions.
//
// Timestamps are informational only. Ordering always uses turn and sequence
// numbers, so replay never depends on wall time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
