// Package speech owns playback state: at most one utterance at a time, pause
// and resume, a persisted rate, and lifecycle events with exactly-once
// terminal delivery.
package speech

import (
	"errors"
	"fmt"
	"log"
	"time"
)

var ErrBackendFailure = errors.New("speech synthesis backend failure")

const (
	MinRate     = float32(0.0)
	MaxRate     = float32(2.0)
	DefaultRate = float32(1.0)

	// progressPerSecond mirrors a fixed 0.01 increment every 100ms. It is an
	// approximation and unrelated to the real utterance duration.
	progressPerSecond = 0.1
)

type State int

const (
	Idle State = iota
	Speaking
	Paused
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Speaking:
		return "speaking"
	case Paused:
		return "paused"
	default:
		return "unknown"
	}
}

type EventKind int

const (
	Started EventKind = iota
	Finished
	Cancelled
	PausedEvent
	ResumedEvent
)

func (k EventKind) String() string {
	switch k {
	case Started:
		return "started"
	case Finished:
		return "finished"
	case Cancelled:
		return "cancelled"
	case PausedEvent:
		return "paused"
	case ResumedEvent:
		return "resumed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the event ends an utterance.
func (k EventKind) Terminal() bool { return k == Finished || k == Cancelled }

// Event is published by the Player after a state transition.
type Event struct {
	Kind      EventKind
	Utterance uint64
	Text      string
}

// RateStore persists the rate multiplier across sessions.
type RateStore interface {
	SaveSpeechRate(rate float32) error
}

// Player is the playback state machine. All methods must be called from the
// goroutine that owns it; backend events reach it through Handle.
type Player struct {
	backend Backend
	store   RateStore
	now     func() time.Time

	rate    float32
	state   State
	text    string
	current uint64
	next    uint64

	outbox []Event

	speakingSince time.Time
	elapsed       time.Duration
	progress      float64
}

func NewPlayer(backend Backend, rate float32, store RateStore, now func() time.Time) *Player {
	if now == nil {
		now = time.Now
	}
	return &Player{backend: backend, store: store, now: now, rate: clampRate(rate)}
}

func (p *Player) State() State        { return p.state }
func (p *Player) CurrentText() string { return p.text }
func (p *Player) Rate() float32       { return p.rate }

// Active is true while Speaking or Paused.
func (p *Player) Active() bool { return p.state != Idle }

// Speak stops any in-flight utterance and starts text. Empty text only stops.
func (p *Player) Speak(text string) error {
	p.Stop()
	if text == "" {
		return nil
	}

	p.next++
	id := p.next
	if err := p.backend.Speak(id, text, BackendRate(p.rate)); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendFailure, err)
	}

	p.current = id
	p.state = Speaking
	p.text = text
	p.elapsed = 0
	p.progress = 0
	p.speakingSince = p.now()
	p.emit(Started)
	return nil
}

// Pause is valid only while Speaking; it reports whether playback paused.
func (p *Player) Pause() bool {
	if p.state != Speaking {
		return false
	}
	if err := p.backend.Pause(); err != nil {
		log.Printf("speech: pause failed: %v", err)
		return false
	}
	p.elapsed += p.now().Sub(p.speakingSince)
	p.state = Paused
	p.emit(PausedEvent)
	return true
}

// Resume is valid only while Paused; it reports whether playback resumed.
func (p *Player) Resume() bool {
	if p.state != Paused {
		return false
	}
	if err := p.backend.Resume(); err != nil {
		log.Printf("speech: resume failed: %v", err)
		return false
	}
	p.speakingSince = p.now()
	p.state = Speaking
	p.emit(ResumedEvent)
	return true
}

// Stop cancels the in-flight utterance, if any.
func (p *Player) Stop() {
	if p.state == Idle {
		return
	}
	if err := p.backend.Stop(); err != nil {
		log.Printf("speech: stop failed: %v", err)
	}
	p.finish(Cancelled)
}

// SetRate clamps, persists and applies the rate to the in-flight utterance.
func (p *Player) SetRate(rate float32) {
	p.rate = clampRate(rate)
	if p.store != nil {
		if err := p.store.SaveSpeechRate(p.rate); err != nil {
			log.Printf("speech: failed to persist rate: %v", err)
		}
	}
	if p.state != Idle {
		if err := p.backend.SetRate(BackendRate(p.rate)); err != nil {
			log.Printf("speech: failed to apply rate to current utterance: %v", err)
		}
	}
}

// Handle applies a backend lifecycle event. Events for any utterance other
// than the current one are stale and ignored, which is what keeps terminal
// delivery exactly-once when Stop already ended the utterance.
func (p *Player) Handle(ev BackendEvent) {
	if p.state == Idle || ev.Utterance != p.current {
		return
	}
	switch ev.Kind {
	case Finished:
		p.finish(Finished)
	case Cancelled:
		if ev.Err != nil {
			log.Printf("speech: utterance %d ended with error: %v", ev.Utterance, ev.Err)
		}
		p.finish(Cancelled)
	case PausedEvent:
		if p.state == Speaking {
			p.elapsed += p.now().Sub(p.speakingSince)
			p.state = Paused
			p.emit(PausedEvent)
		}
	case ResumedEvent:
		if p.state == Paused {
			p.speakingSince = p.now()
			p.state = Speaking
			p.emit(ResumedEvent)
		}
	}
}

// Drain returns and clears the events published since the last call.
func (p *Player) Drain() []Event {
	out := p.outbox
	p.outbox = nil
	return out
}

// Progress is an estimate in [0,1] derived from unpaused speaking time. It is
// not a measurement of the utterance.
func (p *Player) Progress() float64 {
	if p.state == Idle {
		return p.progress
	}
	elapsed := p.elapsed
	if p.state == Speaking {
		elapsed += p.now().Sub(p.speakingSince)
	}
	return min(elapsed.Seconds()*progressPerSecond, 1.0)
}

func (p *Player) finish(kind EventKind) {
	p.emit(kind)
	p.state = Idle
	p.text = ""
	p.current = 0
	p.elapsed = 0
	if kind == Finished {
		p.progress = 1.0
	} else {
		p.progress = 0
	}
}

func (p *Player) emit(kind EventKind) {
	p.outbox = append(p.outbox, Event{Kind: kind, Utterance: p.current, Text: p.text})
}

// BackendRate converts the 0.0x-2.0x multiplier to the normalized 0-1 scale
// backends map onto their native ranges (1.0x → 0.5).
func BackendRate(multiplier float32) float32 {
	r := multiplier * 0.5
	if r < 0 {
		return 0
	}
	if r > 1 {
		return 1
	}
	return r
}

func clampRate(r float32) float32 {
	if r < MinRate {
		return MinRate
	}
	if r > MaxRate {
		return MaxRate
	}
	return r
}
