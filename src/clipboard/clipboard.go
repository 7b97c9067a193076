package clipboard

import (
	"strings"
	"sync"

	"golang.design/x/clipboard"
)

var (
	mu          sync.Mutex
	initialized bool
)

func Init() error {
	mu.Lock()
	defer mu.Unlock()
	if err := clipboard.Init(); err != nil {
		return err
	}
	initialized = true
	return nil
}

// Write performs a mutex-guarded clipboard write to prevent corruption under parallel writes.
func Write(text string) error {
	mu.Lock()
	defer mu.Unlock()
	if !initialized {
		return ErrUnavailable
	}
	clipboard.Write(clipboard.FmtText, []byte(text))
	return nil
}

// ReadText returns the clipboard's text content. ok is false when the
// clipboard is unavailable, holds no text, or only whitespace.
func ReadText() (string, bool) {
	mu.Lock()
	defer mu.Unlock()
	if !initialized {
		return "", false
	}
	text := string(clipboard.Read(clipboard.FmtText))
	if strings.TrimSpace(text) == "" {
		return "", false
	}
	return text, true
}

// Reader adapts the package-level clipboard to the selection.Clipboard interface.
type Reader struct{}

func (Reader) ReadText() (string, bool) { return ReadText() }
