// Package system provides a real clock implementation.
package system

import "time"

// Clock stamps task events and snapshots with UTC wall time. It satisfies
// progress.Clock and listeners.Clock.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time in UTC.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
