package speech

import (
	"fmt"
	"log"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"
)

const (
	// wpmScale maps normalized 0.5 to 175 words per minute, the default of
	// both say and espeak.
	wpmScale = 350
	minWPM   = 80
)

// commandBackend speaks by running a synthesizer process per utterance. Text
// goes over stdin so it is never parsed as flags. A process speaks at a fixed
// rate, so SetRate replaces the running process with one that speaks the
// words not yet heard at the new rate.
type commandBackend struct {
	name  string
	path  string
	voice string
	now   func() time.Time

	events chan BackendEvent
	closed chan struct{}

	mu        sync.Mutex
	rate      float32
	cur       *utterance
	closeOnce sync.Once
}

// utterance is one synthesizer process. A rate change retires it (replaced)
// and starts a successor under the same id, so the id still ends exactly once.
type utterance struct {
	id       uint64
	cmd      *exec.Cmd
	text     string
	wpm      int
	stopped  bool
	replaced bool

	// Speaking time is spoken plus the time since resumedAt while not paused.
	spoken        time.Duration
	resumedAt     time.Time
	paused        bool
	restartResume bool
}

func newCommandBackend(name, path, voice string) *commandBackend {
	return &commandBackend{
		name:   name,
		path:   path,
		voice:  voice,
		now:    time.Now,
		rate:   BackendRate(DefaultRate),
		events: make(chan BackendEvent, 8),
		closed: make(chan struct{}),
	}
}

func (b *commandBackend) Events() <-chan BackendEvent { return b.events }

func (b *commandBackend) Speak(id uint64, text string, rate float32) error {
	select {
	case <-b.closed:
		return ErrClosed
	default:
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.stopLocked()
	b.rate = rate
	u, err := b.startLocked(id, text)
	if err != nil {
		return err
	}
	b.cur = u
	return nil
}

func (b *commandBackend) startLocked(id uint64, text string) (*utterance, error) {
	wpm := wordsPerMinute(b.rate)
	cmd := exec.Command(b.path, b.args(wpm)...)
	cmd.Stdin = strings.NewReader(text)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", b.name, err)
	}
	u := &utterance{id: id, cmd: cmd, text: text, wpm: wpm, resumedAt: b.now()}
	go b.wait(u)
	return u, nil
}

func wordsPerMinute(rate float32) int {
	return max(int(rate*wpmScale), minWPM)
}

func (b *commandBackend) args(wpm int) []string {
	switch b.name {
	case BackendSay:
		args := []string{"-r", strconv.Itoa(wpm)}
		if b.voice != "" {
			args = append(args, "-v", b.voice)
		}
		return append(args, "-f", "-")
	default:
		args := []string{"-s", strconv.Itoa(wpm)}
		if b.voice != "" {
			args = append(args, "-v", b.voice)
		}
		return append(args, "--stdin")
	}
}

func (b *commandBackend) wait(u *utterance) {
	err := u.cmd.Wait()

	b.mu.Lock()
	stopped, replaced := u.stopped, u.replaced
	if b.cur == u {
		b.cur = nil
	}
	b.mu.Unlock()

	if replaced {
		return
	}
	ev := BackendEvent{Kind: Finished, Utterance: u.id}
	switch {
	case stopped:
		ev.Kind = Cancelled
	case err != nil:
		ev.Kind = Cancelled
		ev.Err = fmt.Errorf("%s exited: %w", b.name, err)
	}
	b.emit(ev)
}

func (b *commandBackend) emit(ev BackendEvent) {
	select {
	case b.events <- ev:
	case <-b.closed:
	}
}

func (b *commandBackend) Pause() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cur == nil || b.cur.paused {
		return nil
	}
	if err := suspendProcess(b.cur.cmd.Process); err != nil {
		return err
	}
	b.cur.spoken += b.now().Sub(b.cur.resumedAt)
	b.cur.paused = true
	return nil
}

func (b *commandBackend) Resume() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	u := b.cur
	if u == nil || !u.paused {
		return nil
	}
	u.paused = false
	u.resumedAt = b.now()
	if u.restartResume {
		u.restartResume = false
		if err := b.restartLocked(); err != nil {
			return err
		}
		if b.cur != u {
			return nil
		}
	}
	return continueProcess(u.cmd.Process)
}

func (b *commandBackend) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopLocked()
	return nil
}

func (b *commandBackend) stopLocked() {
	if b.cur == nil {
		return
	}
	b.cur.stopped = true
	b.killLocked(b.cur)
	b.cur = nil
}

func (b *commandBackend) killLocked(u *utterance) {
	// A suspended process must be continued before it can handle the kill on
	// some platforms.
	_ = continueProcess(u.cmd.Process)
	if err := u.cmd.Process.Kill(); err != nil {
		log.Printf("speech: kill %s: %v", b.name, err)
	}
}

// SetRate restarts the current utterance at the new rate. A paused utterance
// restarts when it resumes.
func (b *commandBackend) SetRate(rate float32) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rate = rate
	u := b.cur
	if u == nil || u.wpm == wordsPerMinute(rate) {
		return nil
	}
	if u.paused {
		u.restartResume = true
		return nil
	}
	return b.restartLocked()
}

// restartLocked replaces the current process with one speaking the rest of
// its text at b.rate.
func (b *commandBackend) restartLocked() error {
	old := b.cur
	elapsed := old.spoken
	if !old.paused {
		elapsed += b.now().Sub(old.resumedAt)
	}
	rest := remainingText(old.text, elapsed, old.wpm)
	if rest == "" {
		return nil
	}

	old.replaced = true
	b.killLocked(old)
	b.cur = nil

	u, err := b.startLocked(old.id, rest)
	if err != nil {
		go b.emit(BackendEvent{Kind: Cancelled, Utterance: old.id, Err: err})
		return err
	}
	b.cur = u
	log.Printf("speech: %s restarted at %d wpm with %d of %d bytes left", b.name, u.wpm, len(rest), len(old.text))
	return nil
}

// remainingText drops the words a synthesizer speaking at wpm has said after
// elapsed, cutting at a word boundary. It returns "" once nothing is left.
func remainingText(text string, elapsed time.Duration, wpm int) string {
	said := int(elapsed.Minutes() * float64(wpm))
	rest := strings.TrimLeftFunc(text, unicode.IsSpace)
	for ; said > 0 && rest != ""; said-- {
		end := strings.IndexFunc(rest, unicode.IsSpace)
		if end < 0 {
			return ""
		}
		rest = strings.TrimLeftFunc(rest[end:], unicode.IsSpace)
	}
	return rest
}

func (b *commandBackend) Close() error {
	b.closeOnce.Do(func() {
		_ = b.Stop()
		close(b.closed)
	})
	return nil
}
