package eventloop

import "time"

// Clock is the loop's only source of time. Tests substitute a manual clock.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type Timer interface {
	Stop() bool
}

type systemClock struct{}

// SystemClock is the wall clock.
func SystemClock() Clock { return systemClock{} }

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// Timing holds the loop's fixed intervals. They are empirical and not exposed
// as user settings.
type Timing struct {
	Poll           time.Duration
	Debounce       time.Duration
	PointerRecheck time.Duration
	KeyboardStable time.Duration
	AutoReadDelay  time.Duration
}

var DefaultTiming = Timing{
	Poll:           150 * time.Millisecond,
	Debounce:       100 * time.Millisecond,
	PointerRecheck: 100 * time.Millisecond,
	KeyboardStable: 500 * time.Millisecond,
	AutoReadDelay:  150 * time.Millisecond,
}
