// Package session performs one standalone read: obtain text, speak it, and
// wait for the utterance to end. It backs `text-listener read` when no
// resident answers, and the speak CLI.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"text-listener/src/notification"
	"text-listener/src/speech"
)

var ErrInterrupted = errors.New("playback interrupted")

const defaultDeadline = 30 * time.Minute

// TextFunc produces the text to read.
type TextFunc func() (string, error)

type ResultTarget interface {
	OnSuccess(res Result) error
	OnFailure(err error) error
}

type Options struct {
	Text    TextFunc
	Backend speech.Backend
	Rate    float32
	// Deadline bounds the whole playback; zero means thirty minutes.
	Deadline time.Duration
	Target   ResultTarget
}

type Result struct {
	Text     string
	Finished bool
	Duration time.Duration
}

func Execute(ctx context.Context, opts Options) (Result, error) {
	if opts.Text == nil {
		return Result{}, errors.New("text source is required")
	}
	if opts.Backend == nil {
		return Result{}, errors.New("speech backend is required")
	}
	target := opts.Target
	if target == nil {
		target = nopTarget{}
	}

	text, err := opts.Text()
	if err == nil && text == "" {
		err = errors.New("nothing to read")
	}
	if err != nil {
		_ = target.OnFailure(err)
		return Result{}, err
	}

	deadline := opts.Deadline
	if deadline <= 0 {
		deadline = defaultDeadline
	}
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	start := time.Now()
	player := speech.NewPlayer(opts.Backend, opts.Rate, nil, nil)
	if err := player.Speak(text); err != nil {
		_ = target.OnFailure(err)
		return Result{}, err
	}
	log.Printf("session: speaking %d chars at %.2fx", len([]rune(text)), player.Rate())

	res, err := wait(ctx, player, opts.Backend.Events())
	res.Text = text
	res.Duration = time.Since(start)
	if err != nil {
		_ = target.OnFailure(err)
		return res, err
	}
	if err := target.OnSuccess(res); err != nil {
		return res, err
	}
	return res, nil
}

// wait feeds backend events to the player until the utterance ends.
func wait(ctx context.Context, player *speech.Player, events <-chan speech.BackendEvent) (Result, error) {
	for {
		select {
		case <-ctx.Done():
			player.Stop()
			return Result{}, fmt.Errorf("%w: %v", ErrInterrupted, ctx.Err())
		case ev, ok := <-events:
			if !ok {
				return Result{}, fmt.Errorf("%w: backend closed", ErrInterrupted)
			}
			player.Handle(ev)
		}
		for _, ev := range player.Drain() {
			switch ev.Kind {
			case speech.Finished:
				return Result{Finished: true}, nil
			case speech.Cancelled:
				return Result{}, fmt.Errorf("%w: utterance cancelled", ErrInterrupted)
			}
		}
	}
}

type nopTarget struct{}

func (nopTarget) OnSuccess(Result) error { return nil }
func (nopTarget) OnFailure(error) error  { return nil }

// NotifyTarget surfaces failures the way the resident does for manual reads.
type NotifyTarget struct{}

func (NotifyTarget) OnSuccess(Result) error { return nil }

func (NotifyTarget) OnFailure(err error) error {
	if !errors.Is(err, ErrInterrupted) {
		notification.ShowError("Nothing to read", err.Error())
	}
	return nil
}

// StdoutTarget echoes the text that was read.
type StdoutTarget struct {
	Writer io.Writer
}

func (t StdoutTarget) OnSuccess(res Result) error {
	w := t.Writer
	if w == nil {
		w = os.Stdout
	}
	_, err := fmt.Fprint(w, res.Text)
	return err
}

func (t StdoutTarget) OnFailure(err error) error {
	return nil
}
