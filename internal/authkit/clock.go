package authkit

import "time"

// Clock provides the current time so expiry logic is testable.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

// NewSystemClock constructs a SystemClock.
func NewSystemClock() SystemClock {
	return SystemClock{}
}

// Now returns the current UTC timestamp.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
