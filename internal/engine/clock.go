package engine

import "time"

// Clock abstracts time.Now() to allow deterministic testing.
// The host reads the reference instant of every recomputation from it and
// converts it to the configured timezone before planning.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the standard time package.
type RealClock struct{}

// Now returns the current local time.
func (RealClock) Now() time.Time {
	return time.Now()
}
