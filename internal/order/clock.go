package order

import "time"

// Clock abstracts wall time so poll deadlines and inter-click delays
// can be driven synthetically in tests.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) Sleep(d time.Duration) {
	if d > 0 {
		time.Sleep(d)
	}
}

// SystemClock returns the wall clock.
func SystemClock() Clock { return systemClock{} }
