package tracking

import "time"

// Clock abstracts wall-clock time so eviction and bookkeeping can be tested.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }
