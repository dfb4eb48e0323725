// Package system provides the wall clock used outside tests.
package system

import "time"

// Clock reports the current UTC time.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time in UTC so stored timestamps and archive paths agree across hosts.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
