package speech

import (
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

var (
	ErrNoBackend = errors.New("no speech synthesis backend available")
	ErrClosed    = errors.New("speech backend closed")
)

// BackendEvent reports a lifecycle change of one backend utterance. Started,
// PausedEvent and ResumedEvent are optional; every utterance the backend
// accepted ends with exactly one Finished or Cancelled.
type BackendEvent struct {
	Kind      EventKind
	Utterance uint64
	Err       error
}

// Backend is a platform speech synthesizer. Rates are normalized to 0..1.
// Speak replaces whatever the backend was saying.
type Backend interface {
	Speak(id uint64, text string, rate float32) error
	Pause() error
	Resume() error
	Stop() error
	SetRate(rate float32) error
	Events() <-chan BackendEvent
	Close() error
}

// Backend names accepted by NewBackend.
const (
	BackendAuto     = "auto"
	BackendSay      = "say"
	BackendEspeakNG = "espeak-ng"
	BackendEspeak   = "espeak"
	BackendSAPI     = "sapi"
)

// NewBackend builds the named backend. "auto" picks SAPI on Windows, say on
// macOS and the first espeak variant found on PATH elsewhere.
func NewBackend(name, voice string) (Backend, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = BackendAuto
	}

	switch name {
	case BackendSAPI:
		return newSAPIBackend(voice)
	case BackendSay, BackendEspeakNG, BackendEspeak:
		path, err := exec.LookPath(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrNoBackend, name, err)
		}
		return newCommandBackend(name, path, voice), nil
	case BackendAuto:
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", ErrNoBackend, name)
	}

	if runtime.GOOS == "windows" {
		return newSAPIBackend(voice)
	}
	candidates := []string{BackendEspeakNG, BackendEspeak}
	if runtime.GOOS == "darwin" {
		candidates = []string{BackendSay}
	}
	for _, c := range candidates {
		if path, err := exec.LookPath(c); err == nil {
			return newCommandBackend(c, path, voice), nil
		}
	}
	return nil, fmt.Errorf("%w: tried %s", ErrNoBackend, strings.Join(candidates, ", "))
}
