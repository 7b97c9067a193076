package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	EnvPathEnvVar = "TEXT_LISTENER_ENV"

	DefaultSpeechRate        = float32(1.0)
	MinSpeechRate            = float32(0.0)
	MaxSpeechRate            = float32(2.0)
	DefaultShortcutKey       = "R"
	DefaultShortcutModifiers = "cmd,shift"
	DefaultSpeechBackend     = "auto"
	// Loopback range for the single-instance control port.
	DefaultPortStart = 49500
	DefaultPortEnd   = 49550
)

type LoadOptions struct {
	EnvPathOverride   string
	PrefsPathOverride string
	// SkipPrefs ignores the persisted preferences file (tests, one-shot CLI runs).
	SkipPrefs bool
}

type Config struct {
	EnableFileLogging   bool
	SpeechRate          float32
	AutoReadOnSelection bool
	ShortcutKey         string
	ShortcutModifiers   []string
	SpeechBackend       string
	SpeechVoice         string
	PrefsPath           string
	// PortStart is bound by the resident; clients scan PortStart..PortEnd.
	PortStart int
	PortEnd   int
}

func Load() (*Config, error) {
	return LoadWithOptions(LoadOptions{})
}

func LoadWithOptions(opts LoadOptions) (*Config, error) {
	// Sources in priority order (highest last):
	// 1) process environment / .env next to the executable (or TEXT_LISTENER_ENV)
	// 2) persisted preferences written by the running app
	envPath := resolveEnvPath(opts)
	if envPath != "" {
		_ = godotenv.Load(envPath)
	}

	cfg := &Config{
		EnableFileLogging:   strings.ToLower(os.Getenv("ENABLE_FILE_LOGGING")) == "true",
		SpeechRate:          parseRate(os.Getenv("SPEECH_RATE"), DefaultSpeechRate),
		AutoReadOnSelection: parseBool(os.Getenv("AUTO_READ_ON_SELECTION"), false),
		ShortcutKey:         getEnvWithDefault("SHORTCUT_KEY", DefaultShortcutKey),
		ShortcutModifiers:   splitList(getEnvWithDefault("SHORTCUT_MODIFIERS", DefaultShortcutModifiers)),
		SpeechBackend:       strings.ToLower(getEnvWithDefault("SPEECH_BACKEND", DefaultSpeechBackend)),
		SpeechVoice:         os.Getenv("SPEECH_VOICE"),
		PrefsPath:           resolvePrefsPath(opts),
		PortStart:           parseInt(os.Getenv("SINGLEINSTANCE_PORT_START"), DefaultPortStart),
		PortEnd:             parseInt(os.Getenv("SINGLEINSTANCE_PORT_END"), DefaultPortEnd),
	}

	if !opts.SkipPrefs && cfg.PrefsPath != "" {
		if values, err := godotenv.Read(cfg.PrefsPath); err == nil {
			applyPrefs(cfg, values)
		}
	}

	return cfg, nil
}

func applyPrefs(cfg *Config, values map[string]string) {
	if v, ok := values[keySpeechRate]; ok {
		cfg.SpeechRate = parseRate(v, cfg.SpeechRate)
	}
	if v, ok := values[keyAutoRead]; ok {
		cfg.AutoReadOnSelection = parseBool(v, cfg.AutoReadOnSelection)
	}
	if v := strings.TrimSpace(values[keyShortcutKey]); v != "" {
		cfg.ShortcutKey = v
	}
	if v := strings.TrimSpace(values[keyShortcutModifiers]); v != "" {
		cfg.ShortcutModifiers = splitList(v)
	}
}

func resolveEnvPath(opts LoadOptions) string {
	if p := strings.TrimSpace(opts.EnvPathOverride); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
		return ""
	}

	if execPath, err := os.Executable(); err == nil {
		exeEnv := filepath.Join(filepath.Dir(execPath), ".env")
		if _, err := os.Stat(exeEnv); err == nil {
			return exeEnv
		}
	}

	if alt := os.Getenv(EnvPathEnvVar); alt != "" {
		if _, err := os.Stat(alt); err == nil {
			return alt
		}
	}

	return ""
}

func resolvePrefsPath(opts LoadOptions) string {
	if p := strings.TrimSpace(opts.PrefsPathOverride); p != "" {
		return p
	}
	if p := strings.TrimSpace(os.Getenv("PREFS_PATH")); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "text-listener", "prefs.env")
}

// ClampRate limits a speech rate multiplier to the supported 0.0x-2.0x range.
func ClampRate(r float32) float32 {
	if r < MinSpeechRate {
		return MinSpeechRate
	}
	if r > MaxSpeechRate {
		return MaxSpeechRate
	}
	return r
}

// parseRate treats zero as "unset" the same way the saved-rate lookup always has:
// a stored 0 falls back to the default instead of muting speech entirely.
func parseRate(v string, def float32) float32 {
	v = strings.TrimSpace(v)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 32)
	if err != nil || f <= 0 {
		return def
	}
	return ClampRate(float32(f))
}

func parseInt(v string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return n
}

func parseBool(v string, def bool) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return b
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, strings.ToLower(trimmed))
		}
	}
	return out
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
