// Package system provides the wall clock used outside tests.
package system

import "time"

// Clock implements xc.Clock using time.Now in UTC.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time in UTC.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}

// Since reports the time elapsed since start.
func (c Clock) Since(start time.Time) time.Duration {
	return c.Now().Sub(start)
}

// Fixed is a clock stopped at one instant.
type Fixed time.Time

// Now returns the stopped instant.
func (f Fixed) Now() time.Time {
	return time.Time(f)
}
