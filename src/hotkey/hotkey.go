// Package hotkey parses the global "read selection" shortcut and matches it
// against the key events of the input hook.
package hotkey

import (
	"errors"
	"fmt"
	"log"
	"slices"
	"strings"
	"sync"

	gohook "github.com/robotn/gohook"
)

var (
	ErrUnknownKey  = errors.New("unknown key")
	ErrNoModifier  = errors.New("shortcut needs at least one modifier")
	ErrSystemCombo = errors.New("shortcut conflicts with a system shortcut")
)

// Canonical modifier names, in display order.
const (
	Cmd   = "cmd"
	Shift = "shift"
	Alt   = "alt"
	Ctrl  = "ctrl"
)

var modifierOrder = []string{Cmd, Shift, Alt, Ctrl}

var modifierSymbols = map[string]string{
	Cmd:   "⌘",
	Shift: "⇧",
	Alt:   "⌥",
	Ctrl:  "⌃",
}

var systemCombos = []Shortcut{
	{Key: "q", Modifiers: []string{Cmd}},
	{Key: "w", Modifiers: []string{Cmd}},
	{Key: "m", Modifiers: []string{Cmd}},
	{Key: "h", Modifiers: []string{Cmd}},
	{Key: "tab", Modifiers: []string{Cmd}},
	{Key: "tab", Modifiers: []string{Alt}},
	{Key: "f4", Modifiers: []string{Alt}},
}

// Shortcut is a key plus the exact set of modifiers that must be held.
type Shortcut struct {
	Key       string
	Modifiers []string
}

// Default is Cmd+Shift+R.
var Default = Shortcut{Key: "r", Modifiers: []string{Cmd, Shift}}

// New normalizes and validates a shortcut.
func New(key string, modifiers []string) (Shortcut, error) {
	key = strings.ToLower(strings.TrimSpace(key))
	if len(keyNameToKeycodes(key)) == 0 || isModifier(key) {
		return Shortcut{}, fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}

	var mods []string
	for _, m := range modifiers {
		name := normalizeModifier(m)
		if name == "" {
			return Shortcut{}, fmt.Errorf("%w: modifier %q", ErrUnknownKey, m)
		}
		if !slices.Contains(mods, name) {
			mods = append(mods, name)
		}
	}
	if len(mods) == 0 {
		return Shortcut{}, ErrNoModifier
	}
	slices.SortFunc(mods, func(a, b string) int {
		return slices.Index(modifierOrder, a) - slices.Index(modifierOrder, b)
	})

	s := Shortcut{Key: key, Modifiers: mods}
	for _, sys := range systemCombos {
		if s.Equal(sys) {
			return Shortcut{}, fmt.Errorf("%w: %s", ErrSystemCombo, s.Combo())
		}
	}
	return s, nil
}

// Parse accepts a combo like "Ctrl+Shift+R".
func Parse(combo string) (Shortcut, error) {
	parts := parseHotkey(combo)
	if len(parts) == 0 {
		return Shortcut{}, fmt.Errorf("%w: empty shortcut", ErrUnknownKey)
	}
	return New(parts[len(parts)-1], parts[:len(parts)-1])
}

func (s Shortcut) Equal(o Shortcut) bool {
	return s.Key == o.Key && slices.Equal(s.Modifiers, o.Modifiers)
}

// String is the compact symbol form shown in menus, e.g. "⌘⇧R".
func (s Shortcut) String() string {
	var b strings.Builder
	for _, m := range s.Modifiers {
		b.WriteString(modifierSymbols[m])
	}
	b.WriteString(strings.ToUpper(s.Key))
	return b.String()
}

// Combo is the textual form accepted by Parse, e.g. "Cmd+Shift+R".
func (s Shortcut) Combo() string {
	parts := make([]string, 0, len(s.Modifiers)+1)
	for _, m := range s.Modifiers {
		parts = append(parts, strings.ToUpper(m[:1])+m[1:])
	}
	return strings.Join(append(parts, strings.ToUpper(s.Key)), "+")
}

// parseHotkey converts "Ctrl+Alt+q" to normalized key names.
func parseHotkey(combo string) []string {
	var keys []string
	for _, part := range strings.Split(strings.ToLower(combo), "+") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if m := normalizeModifier(part); m != "" {
			keys = append(keys, m)
			continue
		}
		keys = append(keys, part)
	}
	return keys
}

func normalizeModifier(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "cmd", "command", "win", "super", "meta":
		return Cmd
	case "shift":
		return Shift
	case "alt", "option", "opt":
		return Alt
	case "ctrl", "control":
		return Ctrl
	default:
		return ""
	}
}

func isModifier(name string) bool { return normalizeModifier(name) != "" }

// Matcher recognizes a Shortcut in a stream of hook events. Feed is called
// from the input hook goroutine and Set from the loop, hence the mutex.
type Matcher struct {
	mu       sync.Mutex
	shortcut Shortcut
	keyCodes []uint16
	pressed  map[uint16]bool
}

func NewMatcher(s Shortcut) *Matcher {
	m := &Matcher{pressed: make(map[uint16]bool)}
	m.Set(s)
	return m
}

// Set rebinds the matcher.
func (m *Matcher) Set(s Shortcut) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shortcut = s
	m.keyCodes = keyNameToKeycodes(s.Key)
	log.Printf("Shortcut bound to %s", s.Combo())
}

func (m *Matcher) Shortcut() Shortcut {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shortcut
}

// Feed records the key event and reports whether it completed the shortcut:
// the main key went down while exactly the configured modifiers were held.
// KeyDown is a press (repeated while held), KeyUp a release; KeyHold is a
// typed character and is ignored.
func (m *Matcher) Feed(ev gohook.Event) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch ev.Kind {
	case gohook.KeyDown:
		if ev.Keycode == 0 {
			return false
		}
		repeat := m.pressed[ev.Keycode]
		m.pressed[ev.Keycode] = true
		if repeat || !slices.Contains(m.keyCodes, ev.Keycode) {
			return false
		}
		return m.modifiersMatchLocked()
	case gohook.KeyUp:
		delete(m.pressed, ev.Keycode)
	}
	return false
}

func (m *Matcher) modifiersMatchLocked() bool {
	for _, mod := range modifierOrder {
		held := false
		for _, code := range keyNameToKeycodes(mod) {
			if m.pressed[code] {
				held = true
				break
			}
		}
		if held != slices.Contains(m.shortcut.Modifiers, mod) {
			return false
		}
	}
	return true
}

// keyNameToKeycodes maps a key name to libuiohook virtual key codes, the
// platform independent Keycode carried by gohook events. Modifiers return
// both the left and right variants.
func keyNameToKeycodes(name string) []uint16 {
	name = strings.ToLower(strings.TrimSpace(name))
	if codes, ok := modifierCodes[normalizeModifier(name)]; ok {
		return codes
	}
	if code, ok := keyCodes[name]; ok {
		return []uint16{code}
	}
	return nil
}

var modifierCodes = map[string][]uint16{
	Cmd:   {0x0E5B, 0x0E5C},
	Shift: {0x002A, 0x0036},
	Alt:   {0x0038, 0x0E38},
	Ctrl:  {0x001D, 0x0E1D},
}

var keyCodes = map[string]uint16{
	"esc": 0x0001, "escape": 0x0001,

	"1": 0x0002, "2": 0x0003, "3": 0x0004, "4": 0x0005, "5": 0x0006,
	"6": 0x0007, "7": 0x0008, "8": 0x0009, "9": 0x000A, "0": 0x000B,

	"q": 0x0010, "w": 0x0011, "e": 0x0012, "r": 0x0013, "t": 0x0014,
	"y": 0x0015, "u": 0x0016, "i": 0x0017, "o": 0x0018, "p": 0x0019,
	"a": 0x001E, "s": 0x001F, "d": 0x0020, "f": 0x0021, "g": 0x0022,
	"h": 0x0023, "j": 0x0024, "k": 0x0025, "l": 0x0026,
	"z": 0x002C, "x": 0x002D, "c": 0x002E, "v": 0x002F, "b": 0x0030,
	"n": 0x0031, "m": 0x0032,

	"f1": 0x003B, "f2": 0x003C, "f3": 0x003D, "f4": 0x003E, "f5": 0x003F,
	"f6": 0x0040, "f7": 0x0041, "f8": 0x0042, "f9": 0x0043, "f10": 0x0044,
	"f11": 0x0057, "f12": 0x0058,

	"backspace": 0x000E,
	"tab":       0x000F,
	"enter":     0x001C, "return": 0x001C,
	"space":  0x0039,
	"insert": 0x0E52, "ins": 0x0E52,
	"delete": 0x0E53, "del": 0x0E53,
	"home":   0x0E47,
	"end":    0x0E4F,
	"pageup": 0x0E49, "pgup": 0x0E49,
	"pagedown": 0x0E51, "pgdn": 0x0E51,
	"up":    0xE048,
	"left":  0xE04B,
	"right": 0xE04D,
	"down":  0xE050,
}
