package speech

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func TestRemainingText(t *testing.T) {
	const text = "one two  three four\nfive six"
	tests := []struct {
		name    string
		in      string
		elapsed time.Duration
		wpm     int
		want    string
	}{
		{"nothing said", text, 0, 175, text},
		{"under one word", text, 300 * time.Millisecond, 175, text},
		{"two words", text, 700 * time.Millisecond, 175, "three four\nfive six"},
		{"across a newline", text, time.Minute, 4, "five six"},
		{"all said", text, time.Minute, 600, ""},
		{"multibyte text", " grün größer straße", time.Minute, 1, "größer straße"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := remainingText(tt.in, tt.elapsed, tt.wpm); got != tt.want {
				t.Errorf("remainingText = %q, expected %q", got, tt.want)
			}
		})
	}
}

// fakeSynth writes a script that logs its arguments and stdin, then keeps
// running until killed.
func fakeSynth(t *testing.T) (path, logPath string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
	dir := t.TempDir()
	logPath = filepath.Join(dir, "calls.log")
	path = filepath.Join(dir, "synth")
	script := "#!/bin/sh\n{ echo \"$*\"; cat; echo; echo ---; } >> \"" + logPath + "\"\nexec sleep 30\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path, logPath
}

// waitCalls polls the log until n invocations are recorded.
func waitCalls(t *testing.T, logPath string, n int) []string {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		data, _ := os.ReadFile(logPath)
		calls := strings.Split(string(data), "---\n")
		calls = calls[:len(calls)-1]
		if len(calls) >= n {
			return calls
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("synthesizer not invoked %d times", n)
	return nil
}

func TestCommandBackendSetRateRestarts(t *testing.T) {
	path, logPath := fakeSynth(t)
	clock := newFakeClock()
	b := newCommandBackend(BackendEspeakNG, path, "")
	b.now = clock.now
	defer b.Close()

	if err := b.Speak(7, "one two three four five six", BackendRate(1.0)); err != nil {
		t.Fatalf("Speak: %v", err)
	}
	waitCalls(t, logPath, 1)

	// 175 wpm for 1.4s is four words.
	clock.advance(1400 * time.Millisecond)
	if err := b.SetRate(BackendRate(2.0)); err != nil {
		t.Fatalf("SetRate: %v", err)
	}
	calls := waitCalls(t, logPath, 2)
	if !strings.HasPrefix(calls[0], "-s 175 --stdin\none two three") {
		t.Errorf("first call = %q", calls[0])
	}
	if calls[1] != "-s 350 --stdin\nfive six\n" {
		t.Errorf("restart call = %q, expected the rest at 350 wpm", calls[1])
	}

	// Same rate again leaves the process alone.
	if err := b.SetRate(BackendRate(2.0)); err != nil {
		t.Fatalf("SetRate: %v", err)
	}

	if err := b.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	select {
	case ev := <-b.Events():
		if ev.Utterance != 7 || ev.Kind != Cancelled {
			t.Errorf("event = %+v, expected utterance 7 cancelled", ev)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("no terminal event after Stop")
	}
	select {
	case ev := <-b.Events():
		t.Errorf("unexpected second event %+v", ev)
	case <-time.After(200 * time.Millisecond):
	}
	if got := len(waitCalls(t, logPath, 2)); got != 2 {
		t.Errorf("synthesizer invoked %d times, expected 2", got)
	}
}

func TestCommandBackendRateChangeWhilePaused(t *testing.T) {
	path, logPath := fakeSynth(t)
	clock := newFakeClock()
	b := newCommandBackend(BackendEspeakNG, path, "")
	b.now = clock.now
	defer b.Close()

	if err := b.Speak(3, "alpha beta gamma delta", BackendRate(1.0)); err != nil {
		t.Fatalf("Speak: %v", err)
	}
	waitCalls(t, logPath, 1)

	// 175 wpm for 0.7s is two words; time spent paused does not count.
	clock.advance(700 * time.Millisecond)
	if err := b.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	clock.advance(10 * time.Second)
	if err := b.SetRate(BackendRate(0.5)); err != nil {
		t.Fatalf("SetRate: %v", err)
	}
	time.Sleep(100 * time.Millisecond)
	if got := len(waitCalls(t, logPath, 1)); got != 1 {
		t.Fatalf("paused utterance restarted early (%d calls)", got)
	}

	if err := b.Resume(); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	calls := waitCalls(t, logPath, 2)
	if calls[1] != "-s 87 --stdin\ngamma delta\n" {
		t.Errorf("restart call = %q, expected the rest at 87 wpm", calls[1])
	}
}
