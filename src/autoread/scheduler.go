// Package autoread schedules delayed reads of finalized selections and owns
// the dedup guard that keeps the engine from re-reading its own output.
package autoread

import "time"

// Token identifies one ScheduledRead. A fired timer acts only if its token is
// still the outstanding one.
type Token uint64

type ScheduledRead struct {
	Text   string
	FireAt time.Time
	Token  Token
}

// SkipReason explains why Schedule did nothing.
type SkipReason int

const (
	NotSkipped SkipReason = iota
	Disabled
	Duplicate
	SpeechActive
)

func (r SkipReason) String() string {
	switch r {
	case NotSkipped:
		return "scheduled"
	case Disabled:
		return "auto-read disabled"
	case Duplicate:
		return "same text already scheduled/read"
	case SpeechActive:
		return "speech already active"
	default:
		return "unknown"
	}
}

type Scheduler struct {
	delay   time.Duration
	enabled bool

	next    Token
	pending *ScheduledRead

	guard    string
	guardSet bool
}

func New(delay time.Duration, enabled bool) *Scheduler {
	return &Scheduler{delay: delay, enabled: enabled}
}

func (s *Scheduler) SetEnabled(enabled bool) {
	s.enabled = enabled
	if !enabled {
		s.Cancel()
	}
}

func (s *Scheduler) Enabled() bool { return s.enabled }

// Schedule replaces any outstanding read with one for text, firing after the
// configured delay.
func (s *Scheduler) Schedule(text string, now time.Time, speechActive bool) (ScheduledRead, SkipReason) {
	if !s.enabled {
		return ScheduledRead{}, Disabled
	}
	if s.guardSet && text == s.guard {
		return ScheduledRead{}, Duplicate
	}
	if speechActive {
		return ScheduledRead{}, SpeechActive
	}

	s.next++
	read := ScheduledRead{Text: text, FireAt: now.Add(s.delay), Token: s.next}
	s.pending = &read
	s.guard = text
	s.guardSet = true
	return read, NotSkipped
}

// Fire consumes the outstanding read if tok is current. It returns the text to
// speak only when the live captured selection still equals the scheduled text
// and nothing is playing; any mismatch is a silent cancellation. The guard is
// left untouched either way.
func (s *Scheduler) Fire(tok Token, capturedText string, speechActive bool) (string, bool) {
	if s.pending == nil || s.pending.Token != tok {
		return "", false
	}
	read := *s.pending
	s.pending = nil

	if read.Text == "" || read.Text != capturedText {
		return "", false
	}
	if speechActive {
		return "", false
	}
	return read.Text, true
}

// Cancel drops the outstanding read, if any.
func (s *Scheduler) Cancel() {
	s.pending = nil
}

func (s *Scheduler) Pending() (ScheduledRead, bool) {
	if s.pending == nil {
		return ScheduledRead{}, false
	}
	return *s.pending, true
}

// ClearGuard lets the last scheduled text be scheduled again. Callers: playback
// finished/cancelled, a changed selection, a cleared selection.
func (s *Scheduler) ClearGuard() {
	s.guard = ""
	s.guardSet = false
}

func (s *Scheduler) Guard() (string, bool) { return s.guard, s.guardSet }
