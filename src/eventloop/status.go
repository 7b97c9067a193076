package eventloop

import (
	"fmt"

	"text-listener/src/speech"
)

// Status is the externally visible engine state.
type Status struct {
	State      speech.State
	Text       string
	Rate       float32
	AutoRead   bool
	Permission bool
	Progress   float64
	// Shortcut is the display form of the bound read shortcut, e.g. "⌘⇧R".
	Shortcut string
}

func (s Status) String() string {
	autoRead := "off"
	if s.AutoRead {
		autoRead = "on"
	}
	permission := "granted"
	if !s.Permission {
		permission = "missing"
	}
	return fmt.Sprintf("state=%s rate=%.2f autoread=%s permission=%s progress=%.0f%%",
		s.State, s.Rate, autoRead, permission, s.Progress*100)
}

// sameView ignores Progress, which changes continuously.
func (s Status) sameView(o Status) bool {
	return s.State == o.State && s.Text == o.Text && s.Rate == o.Rate &&
		s.AutoRead == o.AutoRead && s.Permission == o.Permission && s.Shortcut == o.Shortcut
}

// Observer is told about status changes on the loop goroutine and must not block.
type Observer interface {
	StatusChanged(Status)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Status)

func (f ObserverFunc) StatusChanged(s Status) { f(s) }
