//go:build windows

package speech

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/go-ole/go-ole"
	"github.com/go-ole/go-ole/oleutil"
)

// SpeechVoiceSpeakFlags
const (
	svsfAsync              = 1
	svsfPurgeBeforeSpeak   = 2
	svsfIsNotXML           = 16
	sapiPollInterval       = 50 * time.Millisecond
	sapiMinRate, sapiRange = -10, 20
)

// sapiBackend drives SAPI.SpVoice. COM objects are apartment bound, so every
// call runs on one locked OS thread that also polls for utterance completion.
type sapiBackend struct {
	calls  chan func(*ole.IDispatch)
	events chan BackendEvent
	closed chan struct{}
	done   chan struct{}

	closeOnce sync.Once

	// Owned by the COM goroutine.
	current uint64
	paused  bool
}

func newSAPIBackend(voice string) (Backend, error) {
	b := &sapiBackend{
		calls:  make(chan func(*ole.IDispatch)),
		events: make(chan BackendEvent, 8),
		closed: make(chan struct{}),
		done:   make(chan struct{}),
	}

	ready := make(chan error, 1)
	go b.run(voice, ready)
	if err := <-ready; err != nil {
		return nil, fmt.Errorf("%w: sapi: %v", ErrNoBackend, err)
	}
	return b, nil
}

func (b *sapiBackend) run(voiceName string, ready chan<- error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(b.done)

	if err := ole.CoInitialize(0); err != nil {
		ready <- fmt.Errorf("CoInitialize: %w", err)
		return
	}
	defer ole.CoUninitialize()

	unknown, err := oleutil.CreateObject("SAPI.SpVoice")
	if err != nil {
		ready <- fmt.Errorf("create SAPI.SpVoice: %w", err)
		return
	}
	defer unknown.Release()

	voice, err := unknown.QueryInterface(ole.IID_IDispatch)
	if err != nil {
		ready <- fmt.Errorf("query IDispatch: %w", err)
		return
	}
	defer voice.Release()

	if voiceName != "" {
		selectVoice(voice, voiceName)
	}
	ready <- nil

	ticker := time.NewTicker(sapiPollInterval)
	defer ticker.Stop()

	for {
		select {
		case f := <-b.calls:
			f(voice)
		case <-ticker.C:
			b.poll(voice)
		case <-b.closed:
			_, _ = oleutil.CallMethod(voice, "Speak", "", svsfAsync|svsfPurgeBeforeSpeak)
			return
		}
	}
}

// selectVoice picks the first installed voice whose description contains name.
func selectVoice(voice *ole.IDispatch, name string) {
	res, err := oleutil.CallMethod(voice, "GetVoices", "Name="+name, "")
	if err != nil {
		return
	}
	tokens := res.ToIDispatch()
	defer tokens.Release()

	countVar, err := oleutil.GetProperty(tokens, "Count")
	if err != nil || countVar.Val == 0 {
		return
	}
	item, err := oleutil.CallMethod(tokens, "Item", 0)
	if err != nil {
		return
	}
	token := item.ToIDispatch()
	defer token.Release()
	_, _ = oleutil.PutPropertyRef(voice, "Voice", token)
}

func (b *sapiBackend) poll(voice *ole.IDispatch) {
	if b.current == 0 || b.paused {
		return
	}
	res, err := oleutil.CallMethod(voice, "WaitUntilDone", 0)
	if err != nil {
		b.emit(BackendEvent{Kind: Cancelled, Utterance: b.current, Err: err})
		b.current = 0
		return
	}
	if done, ok := res.Value().(bool); ok && done {
		b.emit(BackendEvent{Kind: Finished, Utterance: b.current})
		b.current = 0
	}
}

func (b *sapiBackend) emit(ev BackendEvent) {
	select {
	case b.events <- ev:
	case <-b.closed:
	}
}

// do runs f on the COM goroutine and waits for its result.
func (b *sapiBackend) do(f func(voice *ole.IDispatch) error) error {
	res := make(chan error, 1)
	select {
	case b.calls <- func(v *ole.IDispatch) { res <- f(v) }:
	case <-b.closed:
		return ErrClosed
	}
	return <-res
}

func (b *sapiBackend) Events() <-chan BackendEvent { return b.events }

func (b *sapiBackend) Speak(id uint64, text string, rate float32) error {
	return b.do(func(voice *ole.IDispatch) error {
		if b.paused {
			_, _ = oleutil.CallMethod(voice, "Resume")
			b.paused = false
		}
		if _, err := oleutil.PutProperty(voice, "Rate", sapiRate(rate)); err != nil {
			return fmt.Errorf("set rate: %w", err)
		}
		if _, err := oleutil.CallMethod(voice, "Speak", text, svsfAsync|svsfPurgeBeforeSpeak|svsfIsNotXML); err != nil {
			return fmt.Errorf("speak: %w", err)
		}
		b.current = id
		return nil
	})
}

func (b *sapiBackend) Pause() error {
	return b.do(func(voice *ole.IDispatch) error {
		if b.current == 0 || b.paused {
			return nil
		}
		if _, err := oleutil.CallMethod(voice, "Pause"); err != nil {
			return err
		}
		b.paused = true
		return nil
	})
}

func (b *sapiBackend) Resume() error {
	return b.do(func(voice *ole.IDispatch) error {
		if !b.paused {
			return nil
		}
		if _, err := oleutil.CallMethod(voice, "Resume"); err != nil {
			return err
		}
		b.paused = false
		return nil
	})
}

// Stop purges the queue. The stopped utterance gets no event of its own; the
// Player already ended it.
func (b *sapiBackend) Stop() error {
	return b.do(func(voice *ole.IDispatch) error {
		if b.paused {
			_, _ = oleutil.CallMethod(voice, "Resume")
			b.paused = false
		}
		b.current = 0
		_, err := oleutil.CallMethod(voice, "Speak", "", svsfAsync|svsfPurgeBeforeSpeak)
		return err
	})
}

func (b *sapiBackend) SetRate(rate float32) error {
	return b.do(func(voice *ole.IDispatch) error {
		_, err := oleutil.PutProperty(voice, "Rate", sapiRate(rate))
		return err
	})
}

func (b *sapiBackend) Close() error {
	b.closeOnce.Do(func() { close(b.closed) })
	<-b.done
	return nil
}

// sapiRate maps normalized 0..1 onto SpVoice's -10..10.
func sapiRate(normalized float32) int {
	return sapiMinRate + int(normalized*sapiRange+0.5)
}
