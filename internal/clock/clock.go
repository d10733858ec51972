// Package clock provides helpers for time-related operations.
package clock

import "time"

// Clock reports the current time.
type Clock interface {
	Now() time.Time
}

// Real is a Clock backed by time.Now.
type Real struct{}

// Now returns the current wall-clock time.
func (Real) Now() time.Time {
	return time.Now()
}

// HourStart returns the Unix timestamp of the hour containing t.
func HourStart(t time.Time) int64 {
	sec := t.Unix()
	rem := sec % 3600
	if rem < 0 {
		rem += 3600
	}
	return sec - rem
}
