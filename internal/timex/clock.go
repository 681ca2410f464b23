package timex

import "time"

// Clock tells the current time. Components take a Clock instead of calling
// time.Now so tests can move time by hand.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
