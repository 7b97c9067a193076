package eventloop

import (
	"errors"
	"log"

	"text-listener/src/hotkey"
)

var errNoShortcut = errors.New("shortcut rebinding needs the input hook")

// RateStep is the change applied by one Faster/Slower action.
const RateStep = float32(0.1)

// Command is a request executed on the loop goroutine.
type Command interface {
	apply(l *Loop)
}

// ReadSelection runs the manual capture chain and speaks the result. The
// outcome is sent on Reply when it is non-nil; it must be buffered.
type ReadSelection struct {
	Reply chan<- error
}

func (c ReadSelection) apply(l *Loop) {
	err := l.readSelection()
	if c.Reply != nil {
		c.Reply <- err
	}
}

type Pause struct{}

func (Pause) apply(l *Loop) { l.player.Pause() }

type Resume struct{}

func (Resume) apply(l *Loop) { l.player.Resume() }

// TogglePause pauses while speaking and resumes while paused.
type TogglePause struct{}

func (TogglePause) apply(l *Loop) {
	if !l.player.Pause() {
		l.player.Resume()
	}
}

type Stop struct{}

func (Stop) apply(l *Loop) { l.player.Stop() }

type SetAutoRead struct {
	Enabled bool
}

func (c SetAutoRead) apply(l *Loop) {
	l.scheduler.SetEnabled(c.Enabled)
	if !c.Enabled {
		stopTimer(&l.readTimer)
	}
	log.Printf("Auto-read on selection: %v", c.Enabled)
	if l.prefs != nil {
		if err := l.prefs.SaveAutoRead(c.Enabled); err != nil {
			log.Printf("Failed to persist auto-read setting: %v", err)
		}
	}
}

type SetRate struct {
	Rate float32
}

func (c SetRate) apply(l *Loop) { l.player.SetRate(c.Rate) }

// AdjustRate changes the rate relative to its current value.
type AdjustRate struct {
	Delta float32
}

func (c AdjustRate) apply(l *Loop) { l.player.SetRate(l.player.Rate() + c.Delta) }

// SetShortcut validates Combo, rebinds the live matcher and persists the new
// shortcut. The outcome is sent on Reply when it is non-nil; it must be buffered.
type SetShortcut struct {
	Combo string
	Reply chan<- error
}

func (c SetShortcut) apply(l *Loop) {
	err := l.setShortcut(c.Combo)
	if c.Reply != nil {
		c.Reply <- err
	}
}

func (l *Loop) setShortcut(combo string) error {
	if l.shortcut == nil {
		return errNoShortcut
	}
	s, err := hotkey.Parse(combo)
	if err != nil {
		return err
	}
	l.shortcut.Set(s)
	if l.prefs != nil {
		if err := l.prefs.SaveShortcut(s.Key, s.Modifiers); err != nil {
			log.Printf("Failed to persist shortcut: %v", err)
		}
	}
	return nil
}

// QueryStatus sends the current status, progress included, on Reply.
type QueryStatus struct {
	Reply chan<- Status
}

func (c QueryStatus) apply(l *Loop) {
	if c.Reply != nil {
		c.Reply <- l.status()
	}
}
