// Package selection turns accessibility queries into selection snapshots and
// implements the user-triggered capture chain.
package selection

import (
	"errors"
	"time"

	"text-listener/src/accessibility"
)

var (
	ErrPermissionDenied = errors.New("accessibility permission required: grant access in your desktop accessibility settings")
	ErrNoSelection      = errors.New("no text selected")
	ErrEmptyClipboard   = errors.New("no text found in clipboard: copy text first or select text in an accessible application")
)

// Snapshot is one observation of the selected text.
type Snapshot struct {
	Text       string
	ObservedAt time.Time
}

// Outcome classifies a poll tick.
type Outcome int

const (
	Observed Outcome = iota
	NoSelection
	NoPermission
)

func (o Outcome) String() string {
	switch o {
	case Observed:
		return "observed"
	case NoSelection:
		return "no-selection"
	case NoPermission:
		return "no-permission"
	default:
		return "unknown"
	}
}

// Poller queries the accessibility source on each tick. It never falls back
// to the clipboard.
type Poller struct {
	src accessibility.Source
	now func() time.Time
}

func NewPoller(src accessibility.Source, now func() time.Time) *Poller {
	if now == nil {
		now = time.Now
	}
	return &Poller{src: src, now: now}
}

// Poll returns a snapshot when the foreground application has selected text.
func (p *Poller) Poll() (Snapshot, Outcome) {
	if !p.src.HasPermission() {
		return Snapshot{}, NoPermission
	}
	text := accessibility.SelectedText(p.src)
	if text == "" {
		return Snapshot{}, NoSelection
	}
	return Snapshot{Text: text, ObservedAt: p.now()}, Observed
}

// Current is a one-shot query; "" when nothing is selected or permission is missing.
func (p *Poller) Current() string {
	s, outcome := p.Poll()
	if outcome != Observed {
		return ""
	}
	return s.Text
}
