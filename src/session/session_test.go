package session

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"text-listener/src/speech"
)

// autoBackend ends every utterance with the configured kind.
type autoBackend struct {
	end      speech.EventKind
	speakErr error
	stops    int
	events   chan speech.BackendEvent
}

func newAutoBackend(end speech.EventKind) *autoBackend {
	return &autoBackend{end: end, events: make(chan speech.BackendEvent, 4)}
}

func (b *autoBackend) Speak(id uint64, text string, rate float32) error {
	if b.speakErr != nil {
		return b.speakErr
	}
	if b.end == speech.Finished || b.end == speech.Cancelled {
		b.events <- speech.BackendEvent{Kind: b.end, Utterance: id}
	}
	return nil
}
func (b *autoBackend) Pause() error                       { return nil }
func (b *autoBackend) Resume() error                      { return nil }
func (b *autoBackend) Stop() error                        { b.stops++; return nil }
func (b *autoBackend) SetRate(float32) error              { return nil }
func (b *autoBackend) Events() <-chan speech.BackendEvent { return b.events }
func (b *autoBackend) Close() error                       { return nil }

func text(s string) TextFunc {
	return func() (string, error) { return s, nil }
}

type recordingTarget struct {
	success []Result
	failure []error
}

func (r *recordingTarget) OnSuccess(res Result) error { r.success = append(r.success, res); return nil }
func (r *recordingTarget) OnFailure(err error) error  { r.failure = append(r.failure, err); return nil }

func TestExecuteFinished(t *testing.T) {
	target := &recordingTarget{}
	res, err := Execute(context.Background(), Options{
		Text:    text("hello"),
		Backend: newAutoBackend(speech.Finished),
		Rate:    1.0,
		Target:  target,
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !res.Finished || res.Text != "hello" {
		t.Errorf("result = %+v", res)
	}
	if len(target.success) != 1 || len(target.failure) != 0 {
		t.Errorf("target calls = %d success / %d failure", len(target.success), len(target.failure))
	}
}

func TestExecuteCancelledByBackend(t *testing.T) {
	_, err := Execute(context.Background(), Options{
		Text:    text("hello"),
		Backend: newAutoBackend(speech.Cancelled),
	})
	if !errors.Is(err, ErrInterrupted) {
		t.Errorf("err = %v, expected ErrInterrupted", err)
	}
}

func TestExecuteDeadline(t *testing.T) {
	b := newAutoBackend(speech.Started)
	_, err := Execute(context.Background(), Options{
		Text:     text("never ends"),
		Backend:  b,
		Deadline: 20 * time.Millisecond,
	})
	if !errors.Is(err, ErrInterrupted) {
		t.Fatalf("err = %v, expected ErrInterrupted", err)
	}
	if b.stops != 1 {
		t.Errorf("deadline must stop playback, stops = %d", b.stops)
	}
}

func TestExecuteTextErrors(t *testing.T) {
	want := errors.New("no text selected")
	target := &recordingTarget{}
	_, err := Execute(context.Background(), Options{
		Text:    func() (string, error) { return "", want },
		Backend: newAutoBackend(speech.Finished),
		Target:  target,
	})
	if !errors.Is(err, want) {
		t.Errorf("err = %v, expected %v", err, want)
	}
	if len(target.failure) != 1 {
		t.Errorf("failure must reach the target")
	}

	if _, err := Execute(context.Background(), Options{Text: text(""), Backend: newAutoBackend(speech.Finished)}); err == nil {
		t.Errorf("empty text must fail")
	}
}

func TestExecuteSpeakFailure(t *testing.T) {
	b := newAutoBackend(speech.Finished)
	b.speakErr = errors.New("device busy")
	_, err := Execute(context.Background(), Options{Text: text("x"), Backend: b})
	if !errors.Is(err, speech.ErrBackendFailure) {
		t.Errorf("err = %v, expected ErrBackendFailure", err)
	}
}

func TestStdoutTarget(t *testing.T) {
	var buf bytes.Buffer
	if err := (StdoutTarget{Writer: &buf}).OnSuccess(Result{Text: "read me"}); err != nil {
		t.Fatalf("OnSuccess: %v", err)
	}
	if buf.String() != "read me" {
		t.Errorf("stdout = %q", buf.String())
	}
}
