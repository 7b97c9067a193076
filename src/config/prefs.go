package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/joho/godotenv"
)

const (
	keySpeechRate        = "speechRate"
	keyAutoRead          = "autoReadOnSelection"
	keyShortcutKey       = "shortcutKey"
	keyShortcutModifiers = "shortcutModifiers"
)

// Prefs persists user-changed settings to a small dotenv-format file so they
// survive restarts. Writes rewrite the whole file.
type Prefs struct {
	path string

	mu     sync.Mutex
	values map[string]string
}

// OpenPrefs reads the prefs file at path. A missing file is not an error.
// An empty path yields an in-memory store that never touches disk.
func OpenPrefs(path string) (*Prefs, error) {
	p := &Prefs{path: path, values: map[string]string{}}
	if path == "" {
		return p, nil
	}
	values, err := godotenv.Read(path)
	if err != nil {
		if os.IsNotExist(err) {
			return p, nil
		}
		return nil, fmt.Errorf("read prefs %s: %w", path, err)
	}
	p.values = values
	return p, nil
}

func (p *Prefs) Path() string { return p.path }

// SaveSpeechRate stores the rate multiplier for the next session.
func (p *Prefs) SaveSpeechRate(rate float32) error {
	return p.set(keySpeechRate, strconv.FormatFloat(float64(ClampRate(rate)), 'f', 2, 32))
}

func (p *Prefs) SaveAutoRead(enabled bool) error {
	return p.set(keyAutoRead, strconv.FormatBool(enabled))
}

func (p *Prefs) SaveShortcut(key string, modifiers []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values[keyShortcutKey] = key
	p.values[keyShortcutModifiers] = strings.Join(modifiers, ",")
	return p.flushLocked()
}

// SpeechRate returns the stored rate, or ok=false when none was saved.
func (p *Prefs) SpeechRate() (float32, bool) {
	p.mu.Lock()
	v, ok := p.values[keySpeechRate]
	p.mu.Unlock()
	if !ok {
		return 0, false
	}
	r := parseRate(v, 0)
	return r, r > 0
}

func (p *Prefs) set(key, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values[key] = value
	return p.flushLocked()
}

func (p *Prefs) flushLocked() error {
	if p.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return fmt.Errorf("create prefs dir: %w", err)
	}
	if err := godotenv.Write(p.values, p.path); err != nil {
		return fmt.Errorf("write prefs %s: %w", p.path, err)
	}
	return nil
}
