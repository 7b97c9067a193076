// Package capture decides when an observed selection is final: at pointer
// release for mouse selections, after a quiet period for keyboard ones.
package capture

import (
	"time"

	"text-listener/src/selection"
)

// Verdict is the classifier's answer for one snapshot.
type Verdict int

const (
	// Ignored: debounced or unchanged.
	Ignored Verdict = iota
	// HeldForRelease: pointer is down; the selection is final at release.
	HeldForRelease
	// AwaitingStable: keyboard selection; the loop must (re)arm the stabilization timer.
	AwaitingStable
)

func (v Verdict) String() string {
	switch v {
	case Ignored:
		return "ignored"
	case HeldForRelease:
		return "held-for-release"
	case AwaitingStable:
		return "awaiting-stable"
	default:
		return "unknown"
	}
}

// Accepted reports whether the snapshot changed the captured selection.
func (v Verdict) Accepted() bool { return v != Ignored }

// State is the capture state. It has one owner: the event loop goroutine.
type State struct {
	LastText            string
	LastCaptureTime     time.Time
	PointerDown         bool
	PendingPointerText  string
	PendingKeyboardText string
}

type Classifier struct {
	debounce time.Duration
	state    State
	// stableGen identifies the current stabilization timer; a fired timer
	// whose generation is not current is discarded.
	stableGen uint64
}

func New(debounce time.Duration) *Classifier {
	return &Classifier{debounce: debounce}
}

func (c *Classifier) State() State { return c.state }

// CapturedText is the live captured selection ("" when cleared).
func (c *Classifier) CapturedText() string { return c.state.LastText }

func (c *Classifier) PointerIsDown() bool { return c.state.PointerDown }

// Observe classifies a snapshot. When the verdict is AwaitingStable, gen is the
// generation to tag the stabilization timer with.
func (c *Classifier) Observe(s selection.Snapshot) (v Verdict, gen uint64) {
	if s.Text == "" || s.Text == c.state.LastText {
		return Ignored, 0
	}
	if !c.state.LastCaptureTime.IsZero() && s.ObservedAt.Sub(c.state.LastCaptureTime) < c.debounce {
		return Ignored, 0
	}

	c.state.LastText = s.Text
	c.state.LastCaptureTime = s.ObservedAt

	if c.state.PointerDown {
		c.state.PendingPointerText = s.Text
		c.state.PendingKeyboardText = ""
		c.stableGen++
		return HeldForRelease, 0
	}

	c.state.PendingKeyboardText = s.Text
	c.stableGen++
	return AwaitingStable, c.stableGen
}

// KeyboardStable is the stabilization timer callback. It returns the text to
// schedule when the keyboard selection is still current and unchanged.
func (c *Classifier) KeyboardStable(gen uint64) (string, bool) {
	if gen != c.stableGen {
		return "", false
	}
	pending := c.state.PendingKeyboardText
	c.state.PendingKeyboardText = ""
	if c.state.PointerDown {
		return "", false
	}
	if pending == "" || pending != c.state.LastText {
		return "", false
	}
	return pending, true
}

// PointerDown starts a new manual selection, invalidating whatever was pending.
func (c *Classifier) PointerDown() {
	c.state.PointerDown = true
	c.state.PendingPointerText = ""
	c.state.PendingKeyboardText = ""
	c.stableGen++
}

// PointerUp returns the selection captured while the pointer was held, if any.
func (c *Classifier) PointerUp() (string, bool) {
	c.state.PointerDown = false
	held := c.state.PendingPointerText
	c.state.PendingPointerText = ""
	return held, held != ""
}

// Finalized records that the captured selection was handed off for reading
// by another path, so a pending stabilization timer must not finalize it again.
func (c *Classifier) Finalized() {
	c.state.PendingKeyboardText = ""
	c.stableGen++
}

// Clear resets the captured selection. It reports whether anything was captured.
func (c *Classifier) Clear() bool {
	had := c.state.LastText != ""
	c.state.LastText = ""
	c.state.PendingPointerText = ""
	c.state.PendingKeyboardText = ""
	c.stableGen++
	return had
}

// Adopt records text obtained outside the poller as the captured selection.
// It reports whether the captured text changed.
func (c *Classifier) Adopt(text string, now time.Time) bool {
	if text == "" || text == c.state.LastText {
		return false
	}
	c.state.LastText = text
	c.state.LastCaptureTime = now
	return true
}
