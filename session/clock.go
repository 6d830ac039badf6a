package session

import "time"

// Clock abstracts time so polling loops can be driven by a fake clock in
// tests instead of real sleeps. time.Time values from Now carry a monotonic
// reading, so elapsed-time comparisons are immune to wall clock jumps.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

func (systemClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

// SystemClock returns the real clock.
func SystemClock() Clock {
	return systemClock{}
}
