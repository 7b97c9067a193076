// Package runtimeinit wires configuration, logging and the platform
// services shared by the resident and the standalone read.
package runtimeinit

import (
	"fmt"
	"log"

	"text-listener/src/accessibility"
	"text-listener/src/clipboard"
	"text-listener/src/config"
	"text-listener/src/hotkey"
	"text-listener/src/selection"
	"text-listener/src/speech"
)

type Options struct {
	LoadOptions  config.LoadOptions
	SetupLogging func(bool)
	// NewBackend and InitClipboard default to the platform implementations.
	NewBackend    func(name, voice string) (speech.Backend, error)
	InitClipboard func() error
}

type Runtime struct {
	Config    *config.Config
	Prefs     *config.Prefs
	Shortcut  hotkey.Shortcut
	Source    accessibility.Source
	Clipboard selection.Clipboard
	Backend   speech.Backend
}

func Bootstrap(opts Options) (*Runtime, error) {
	cfg, err := config.LoadWithOptions(opts.LoadOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if opts.SetupLogging != nil {
		opts.SetupLogging(cfg.EnableFileLogging)
	}

	prefs, err := config.OpenPrefs(cfg.PrefsPath)
	if err != nil {
		// Settings changes will not survive a restart, everything else works.
		log.Printf("Preferences unavailable (%v); using in-memory preferences", err)
		prefs, _ = config.OpenPrefs("")
	}

	newBackend := opts.NewBackend
	if newBackend == nil {
		newBackend = speech.NewBackend
	}
	backend, err := newBackend(cfg.SpeechBackend, cfg.SpeechVoice)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize speech: %w", err)
	}

	rt := &Runtime{
		Config:   cfg,
		Prefs:    prefs,
		Shortcut: shortcutFromConfig(cfg),
		Source:   accessibility.NewPlatformSource(),
		Backend:  backend,
	}

	initClipboard := opts.InitClipboard
	if initClipboard == nil {
		initClipboard = clipboard.Init
	}
	if err := initClipboard(); err != nil {
		log.Printf("Clipboard unavailable (%v); manual reads use accessibility only", err)
	} else {
		rt.Clipboard = clipboard.Reader{}
	}

	log.Printf("Runtime ready: backend=%s rate=%.2f auto-read=%v shortcut=%s",
		cfg.SpeechBackend, cfg.SpeechRate, cfg.AutoReadOnSelection, rt.Shortcut.Combo())
	return rt, nil
}

func (r *Runtime) Close() error {
	if r.Backend == nil {
		return nil
	}
	return r.Backend.Close()
}

func shortcutFromConfig(cfg *config.Config) hotkey.Shortcut {
	s, err := hotkey.New(cfg.ShortcutKey, cfg.ShortcutModifiers)
	if err != nil {
		log.Printf("Invalid shortcut %s+%v (%v); using %s", cfg.ShortcutKey, cfg.ShortcutModifiers, err, hotkey.Default.Combo())
		return hotkey.Default
	}
	return s
}
