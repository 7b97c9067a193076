// Package eventloop is the single goroutine that owns selection capture,
// auto-read scheduling and playback. Timers, pointer events, backend events
// and commands all arrive as messages and are handled one at a time.
package eventloop

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"text-listener/src/accessibility"
	"text-listener/src/autoread"
	"text-listener/src/capture"
	"text-listener/src/hotkey"
	"text-listener/src/logutil"
	"text-listener/src/selection"
	"text-listener/src/speech"
)

const logTextLen = 60

var errLoopStopped = errors.New("engine stopped")

// Preferences persists settings changed at runtime.
type Preferences interface {
	speech.RateStore
	SaveAutoRead(enabled bool) error
	SaveShortcut(key string, modifiers []string) error
}

// Notifier shows a user-facing error. Only manual reads use it.
type Notifier func(title, message string)

type Options struct {
	Source    accessibility.Source
	Clipboard selection.Clipboard
	Backend   speech.Backend
	Prefs     Preferences
	Observer  Observer
	Notify    Notifier
	// Shortcut is the live shortcut matcher; SetShortcut rebinds it.
	Shortcut *hotkey.Matcher
	Clock    Clock
	Timing   Timing
	AutoRead bool
	Rate     float32
}

type msgKind int

const (
	msgPoll msgKind = iota
	msgPointer
	msgRecheck
	msgStable
	msgAutoRead
)

type message struct {
	kind msgKind
	down bool
	gen  uint64
}

// Loop is the single-threaded coordinator of the engine.
type Loop struct {
	clock    Clock
	timing   Timing
	prefs    Preferences
	observer Observer
	notify   Notifier
	source   accessibility.Source
	shortcut *hotkey.Matcher

	poller     *selection.Poller
	capturer   *selection.Capturer
	classifier *capture.Classifier
	scheduler  *autoread.Scheduler
	player     *speech.Player

	msgs          chan message
	cmds          chan Command
	backendEvents <-chan speech.BackendEvent
	done          chan struct{}
	doneOnce      sync.Once

	permission bool
	recheckGen uint64
	published  Status
	started    bool

	pollTimer    Timer
	recheckTimer Timer
	stableTimer  Timer
	readTimer    Timer
}

func New(opts Options) *Loop {
	if opts.Clock == nil {
		opts.Clock = SystemClock()
	}
	if opts.Timing == (Timing{}) {
		opts.Timing = DefaultTiming
	}
	if opts.Notify == nil {
		opts.Notify = func(title, message string) { log.Printf("%s: %s", title, message) }
	}
	if opts.Source == nil {
		opts.Source = accessibility.ClipboardOnly()
	}

	l := &Loop{
		clock:      opts.Clock,
		timing:     opts.Timing,
		prefs:      opts.Prefs,
		observer:   opts.Observer,
		notify:     opts.Notify,
		source:     opts.Source,
		shortcut:   opts.Shortcut,
		poller:     selection.NewPoller(opts.Source, opts.Clock.Now),
		capturer:   selection.NewCapturer(opts.Source, opts.Clipboard),
		classifier: capture.New(opts.Timing.Debounce),
		scheduler:  autoread.New(opts.Timing.AutoReadDelay, opts.AutoRead),
		msgs:       make(chan message, 64),
		cmds:       make(chan Command, 16),
		done:       make(chan struct{}),
		permission: true,
	}

	var store speech.RateStore
	if opts.Prefs != nil {
		store = opts.Prefs
	}
	l.player = speech.NewPlayer(opts.Backend, opts.Rate, store, opts.Clock.Now)
	l.backendEvents = opts.Backend.Events()
	return l
}

// Post queues a command. It returns false once the loop has stopped.
func (l *Loop) Post(c Command) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.cmds <- c:
		return true
	case <-l.done:
		return false
	}
}

// PointerChanged is called by the input hook on primary button press/release.
func (l *Loop) PointerChanged(down bool) {
	l.deliver(message{kind: msgPointer, down: down})
}

// Run processes messages until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	l.start()
	defer l.shutdown()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m := <-l.msgs:
			l.handleMessage(m)
		case c := <-l.cmds:
			c.apply(l)
		case ev, ok := <-l.backendEvents:
			if !ok {
				log.Printf("Speech backend event stream closed")
				l.backendEvents = nil
				continue
			}
			l.player.Handle(ev)
		}
		l.afterStep()
	}
}

func (l *Loop) start() {
	if l.started {
		return
	}
	l.started = true
	log.Printf("Engine started: auto-read=%v rate=%.2f", l.scheduler.Enabled(), l.player.Rate())
	l.armPoll()
	l.published = l.status()
	if l.observer != nil {
		l.observer.StatusChanged(l.published)
	}
}

func (l *Loop) shutdown() {
	l.doneOnce.Do(func() { close(l.done) })
	stopTimer(&l.pollTimer)
	stopTimer(&l.recheckTimer)
	stopTimer(&l.stableTimer)
	stopTimer(&l.readTimer)
	l.player.Stop()
	l.afterStep()
	log.Printf("Engine stopped")
}

func (l *Loop) handleMessage(m message) {
	switch m.kind {
	case msgPoll:
		l.handlePoll()
	case msgPointer:
		l.handlePointer(m.down)
	case msgRecheck:
		l.handleRecheck(m.gen)
	case msgStable:
		l.handleStable(m.gen)
	case msgAutoRead:
		l.handleAutoRead(autoread.Token(m.gen))
	}
}

func (l *Loop) handlePoll() {
	defer l.armPoll()

	snap, outcome := l.poller.Poll()
	switch outcome {
	case selection.NoPermission:
		l.permissionLost()
	case selection.NoSelection:
		l.permissionGranted()
		if l.classifier.Clear() {
			l.scheduler.ClearGuard()
			stopTimer(&l.stableTimer)
			log.Printf("Selection cleared")
		}
	case selection.Observed:
		l.permissionGranted()
		l.observe(snap)
	}
}

func (l *Loop) observe(snap selection.Snapshot) {
	verdict, gen := l.classifier.Observe(snap)
	if !verdict.Accepted() {
		return
	}
	// A changed selection always gets a fresh chance to be read.
	l.scheduler.ClearGuard()
	log.Printf("Selection captured (%s): %q", verdict, logutil.Sanitize(snap.Text, logTextLen))

	switch verdict {
	case capture.HeldForRelease:
		stopTimer(&l.stableTimer)
	case capture.AwaitingStable:
		stopTimer(&l.stableTimer)
		l.stableTimer = l.after(l.timing.KeyboardStable, message{kind: msgStable, gen: gen})
	}
}

func (l *Loop) handleStable(gen uint64) {
	text, ok := l.classifier.KeyboardStable(gen)
	if !ok {
		return
	}
	l.schedule(text)
}

func (l *Loop) handlePointer(down bool) {
	if down {
		l.classifier.PointerDown()
		l.recheckGen++
		stopTimer(&l.recheckTimer)
		stopTimer(&l.stableTimer)
		l.cancelAutoRead()
		return
	}

	if text, ok := l.classifier.PointerUp(); ok {
		l.finalize(text)
		return
	}
	if !l.scheduler.Enabled() {
		return
	}
	l.recheckGen++
	stopTimer(&l.recheckTimer)
	l.recheckTimer = l.after(l.timing.PointerRecheck, message{kind: msgRecheck, gen: l.recheckGen})
}

// handleRecheck looks once more for a selection the poller had not yet seen
// when the pointer was released.
func (l *Loop) handleRecheck(gen uint64) {
	if gen != l.recheckGen || l.classifier.PointerIsDown() {
		return
	}
	snap, outcome := l.poller.Poll()
	if outcome != selection.Observed {
		return
	}
	if l.classifier.Adopt(snap.Text, snap.ObservedAt) {
		l.scheduler.ClearGuard()
	}
	l.finalize(snap.Text)
}

// finalize schedules a selection settled by the pointer path. The keyboard
// stabilization timer for the same selection is retired first so the text
// is not handed to the scheduler twice.
func (l *Loop) finalize(text string) {
	l.classifier.Finalized()
	stopTimer(&l.stableTimer)
	l.schedule(text)
}

func (l *Loop) schedule(text string) {
	read, reason := l.scheduler.Schedule(text, l.clock.Now(), l.player.Active())
	if reason != autoread.NotSkipped {
		if reason != autoread.Disabled {
			log.Printf("Auto-read skipped: %s", reason)
		}
		return
	}
	stopTimer(&l.readTimer)
	l.readTimer = l.after(read.FireAt.Sub(l.clock.Now()), message{kind: msgAutoRead, gen: uint64(read.Token)})
}

func (l *Loop) handleAutoRead(tok autoread.Token) {
	text, ok := l.scheduler.Fire(tok, l.classifier.CapturedText(), l.player.Active())
	if !ok {
		return
	}
	log.Printf("Auto-reading: %q", logutil.Sanitize(text, logTextLen))
	if err := l.player.Speak(text); err != nil {
		// Auto-read is best effort; failures are never surfaced.
		log.Printf("Auto-read failed: %v", err)
	}
}

func (l *Loop) cancelAutoRead() {
	l.scheduler.Cancel()
	stopTimer(&l.readTimer)
}

func (l *Loop) readSelection() error {
	l.cancelAutoRead()

	c, err := l.capturer.Capture(l.classifier.CapturedText())
	if err != nil {
		log.Printf("Manual read failed: %v", err)
		title := "Nothing to read"
		if errors.Is(err, selection.ErrPermissionDenied) {
			title = "Accessibility permission required"
		}
		l.notify(title, err.Error())
		return err
	}
	if c.FromAccessibility() {
		l.classifier.Adopt(c.Text, l.clock.Now())
	}

	log.Printf("Reading selection from %s: %q", c.Origin, logutil.Sanitize(c.Text, logTextLen))
	if err := l.player.Speak(c.Text); err != nil {
		log.Printf("Manual read failed: %v", err)
		l.notify("Speech failed", err.Error())
		return err
	}
	return nil
}

func (l *Loop) permissionLost() {
	if l.permission {
		log.Printf("Accessibility permission missing; selection tracking paused")
	}
	l.permission = false
	l.classifier.Clear()
	l.scheduler.ClearGuard()
	l.cancelAutoRead()
	l.recheckGen++
	stopTimer(&l.recheckTimer)
	stopTimer(&l.stableTimer)
}

func (l *Loop) permissionGranted() {
	if !l.permission {
		log.Printf("Accessibility permission granted")
	}
	l.permission = true
}

// afterStep drains playback events and publishes status changes.
func (l *Loop) afterStep() {
	for _, ev := range l.player.Drain() {
		log.Printf("Playback %s (utterance %d)", ev.Kind, ev.Utterance)
		if ev.Kind.Terminal() {
			l.scheduler.ClearGuard()
		}
	}

	s := l.status()
	if s.sameView(l.published) {
		return
	}
	l.published = s
	if l.observer != nil {
		l.observer.StatusChanged(s)
	}
}

func (l *Loop) status() Status {
	return Status{
		State:      l.player.State(),
		Text:       l.player.CurrentText(),
		Rate:       l.player.Rate(),
		AutoRead:   l.scheduler.Enabled(),
		Permission: l.permission,
		Progress:   l.player.Progress(),
		Shortcut:   l.shortcutLabel(),
	}
}

func (l *Loop) shortcutLabel() string {
	if l.shortcut == nil {
		return ""
	}
	return l.shortcut.Shortcut().String()
}

func (l *Loop) armPoll() {
	select {
	case <-l.done:
		return
	default:
	}
	l.pollTimer = l.after(l.timing.Poll, message{kind: msgPoll})
}

func (l *Loop) after(d time.Duration, m message) Timer {
	return l.clock.AfterFunc(d, func() { l.deliver(m) })
}

func (l *Loop) deliver(m message) {
	select {
	case l.msgs <- m:
	case <-l.done:
	}
}

func stopTimer(t *Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}
