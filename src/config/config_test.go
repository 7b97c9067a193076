package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	t.Setenv("ENABLE_FILE_LOGGING", "true")
	t.Setenv("SPEECH_RATE", "1.5")
	t.Setenv("AUTO_READ_ON_SELECTION", "true")
	t.Setenv("SHORTCUT_KEY", "T")
	t.Setenv("SHORTCUT_MODIFIERS", "Ctrl, Alt")
	t.Setenv("SPEECH_BACKEND", "espeak-ng")
	t.Setenv("SINGLEINSTANCE_PORT_START", "49600")
	t.Setenv("SINGLEINSTANCE_PORT_END", "49610")

	cfg, err := LoadWithOptions(LoadOptions{SkipPrefs: true})
	if err != nil {
		t.Fatalf("Failed to load configuration: %v", err)
	}

	if !cfg.EnableFileLogging {
		t.Errorf("Expected EnableFileLogging to be true, got %v", cfg.EnableFileLogging)
	}
	if cfg.SpeechRate != 1.5 {
		t.Errorf("Expected SpeechRate to be 1.5, got %v", cfg.SpeechRate)
	}
	if !cfg.AutoReadOnSelection {
		t.Errorf("Expected AutoReadOnSelection to be true")
	}
	if cfg.ShortcutKey != "T" {
		t.Errorf("Expected ShortcutKey to be 'T', got '%s'", cfg.ShortcutKey)
	}
	if len(cfg.ShortcutModifiers) != 2 || cfg.ShortcutModifiers[0] != "ctrl" || cfg.ShortcutModifiers[1] != "alt" {
		t.Errorf("Expected modifiers [ctrl alt], got %v", cfg.ShortcutModifiers)
	}
	if cfg.SpeechBackend != "espeak-ng" {
		t.Errorf("Expected SpeechBackend 'espeak-ng', got '%s'", cfg.SpeechBackend)
	}
	if cfg.PortStart != 49600 || cfg.PortEnd != 49610 {
		t.Errorf("Expected ports 49600-49610, got %d-%d", cfg.PortStart, cfg.PortEnd)
	}
}

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"SPEECH_RATE", "AUTO_READ_ON_SELECTION", "SHORTCUT_KEY", "SHORTCUT_MODIFIERS", "SPEECH_BACKEND", "SINGLEINSTANCE_PORT_START", "SINGLEINSTANCE_PORT_END"} {
		t.Setenv(k, "")
	}

	cfg, err := LoadWithOptions(LoadOptions{SkipPrefs: true})
	if err != nil {
		t.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.SpeechRate != DefaultSpeechRate {
		t.Errorf("Expected default rate 1.0, got %v", cfg.SpeechRate)
	}
	if cfg.AutoReadOnSelection {
		t.Errorf("Expected auto-read disabled by default")
	}
	if cfg.ShortcutKey != "R" {
		t.Errorf("Expected default shortcut key R, got %q", cfg.ShortcutKey)
	}
	if len(cfg.ShortcutModifiers) != 2 || cfg.ShortcutModifiers[0] != "cmd" || cfg.ShortcutModifiers[1] != "shift" {
		t.Errorf("Expected default modifiers [cmd shift], got %v", cfg.ShortcutModifiers)
	}
	if cfg.SpeechBackend != "auto" {
		t.Errorf("Expected backend auto, got %q", cfg.SpeechBackend)
	}
	if cfg.PortStart != DefaultPortStart || cfg.PortEnd != DefaultPortEnd {
		t.Errorf("Expected default ports, got %d-%d", cfg.PortStart, cfg.PortEnd)
	}
}

func TestParseRate(t *testing.T) {
	tests := []struct {
		in   string
		want float32
	}{
		{"", 1.0},
		{"garbage", 1.0},
		{"0", 1.0},
		{"-1", 1.0},
		{"0.5", 0.5},
		{"2", 2.0},
		{"3.5", 2.0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := parseRate(tt.in, 1.0); got != tt.want {
				t.Errorf("parseRate(%q) = %v, expected %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestPrefsOverrideEnvironment(t *testing.T) {
	t.Setenv("SPEECH_RATE", "1.0")
	t.Setenv("AUTO_READ_ON_SELECTION", "false")

	path := filepath.Join(t.TempDir(), "nested", "prefs.env")
	prefs, err := OpenPrefs(path)
	if err != nil {
		t.Fatalf("OpenPrefs: %v", err)
	}
	if err := prefs.SaveSpeechRate(1.7); err != nil {
		t.Fatalf("SaveSpeechRate: %v", err)
	}
	if err := prefs.SaveAutoRead(true); err != nil {
		t.Fatalf("SaveAutoRead: %v", err)
	}
	if err := prefs.SaveShortcut("L", []string{"ctrl", "alt"}); err != nil {
		t.Fatalf("SaveShortcut: %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("prefs file not written: %v", err)
	}

	cfg, err := LoadWithOptions(LoadOptions{PrefsPathOverride: path})
	if err != nil {
		t.Fatalf("LoadWithOptions: %v", err)
	}
	if cfg.SpeechRate != 1.7 {
		t.Errorf("Expected persisted rate 1.7, got %v", cfg.SpeechRate)
	}
	if !cfg.AutoReadOnSelection {
		t.Errorf("Expected persisted auto-read true")
	}
	if cfg.ShortcutKey != "L" || len(cfg.ShortcutModifiers) != 2 {
		t.Errorf("Expected persisted shortcut L ctrl+alt, got %q %v", cfg.ShortcutKey, cfg.ShortcutModifiers)
	}

	reopened, err := OpenPrefs(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if r, ok := reopened.SpeechRate(); !ok || r != 1.7 {
		t.Errorf("Expected reopened rate 1.7, got %v ok=%v", r, ok)
	}
}

func TestOpenPrefsMissingFile(t *testing.T) {
	prefs, err := OpenPrefs(filepath.Join(t.TempDir(), "absent.env"))
	if err != nil {
		t.Fatalf("Expected missing prefs file to be tolerated, got %v", err)
	}
	if _, ok := prefs.SpeechRate(); ok {
		t.Errorf("Expected no stored rate")
	}
}

func TestInMemoryPrefs(t *testing.T) {
	prefs, err := OpenPrefs("")
	if err != nil {
		t.Fatalf("OpenPrefs: %v", err)
	}
	if err := prefs.SaveSpeechRate(0.8); err != nil {
		t.Fatalf("SaveSpeechRate: %v", err)
	}
	if r, ok := prefs.SpeechRate(); !ok || r != 0.8 {
		t.Errorf("Expected in-memory rate 0.8, got %v", r)
	}
}
