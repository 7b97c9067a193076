// Package tray is the status-bar menu of the resident. It only presents
// engine status and posts commands; all state lives in the event loop.
package tray

import (
	"fmt"
	"log"

	"github.com/getlantern/systray"

	"text-listener/src/eventloop"
	"text-listener/src/notification"
	"text-listener/src/speech"
)

type Config struct {
	// Shortcut is the display form of the read shortcut, e.g. "⌘⇧R".
	Shortcut string
	Post     func(eventloop.Command) bool
	OnExit   func()
}

type menuID int

const (
	menuRead menuID = iota
	menuPause
	menuStop
	menuAutoRead
	menuFaster
	menuSlower
	menuQuit
)

type Tray struct {
	cfg     Config
	updates chan eventloop.Status
	last    eventloop.Status

	mRead, mPause, mStop, mAuto, mRate, mFaster, mSlower, mQuit *systray.MenuItem
}

func New(cfg Config) *Tray {
	if cfg.Post == nil {
		cfg.Post = func(eventloop.Command) bool { return false }
	}
	return &Tray{cfg: cfg, updates: make(chan eventloop.Status, 1)}
}

// Run blocks until Quit. On macOS it must be called from the main goroutine.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) Quit() {
	systray.Quit()
}

// StatusChanged keeps only the newest status; the render goroutine picks it up.
func (t *Tray) StatusChanged(s eventloop.Status) {
	select {
	case <-t.updates:
	default:
	}
	select {
	case t.updates <- s:
	default:
	}
}

func (t *Tray) onReady() {
	systray.SetIcon(iconBytes())
	systray.SetTitle("")
	systray.SetTooltip(notification.AppName)

	t.mRead = systray.AddMenuItem(readTitle(t.cfg.Shortcut), "Read the selected text aloud")
	t.mPause = systray.AddMenuItem("Pause", "Pause or resume speech")
	t.mStop = systray.AddMenuItem("Stop", "Stop speaking")
	systray.AddSeparator()
	t.mAuto = systray.AddMenuItem("Read on Selection", "Read new selections automatically")
	t.mRate = systray.AddMenuItem(rateTitle(speech.DefaultRate), "Current speech rate")
	t.mRate.Disable()
	t.mFaster = systray.AddMenuItem("Faster", "Increase the speech rate")
	t.mSlower = systray.AddMenuItem("Slower", "Decrease the speech rate")
	systray.AddSeparator()
	t.mQuit = systray.AddMenuItem("Quit", "Quit "+notification.AppName)

	t.render(t.last)
	go t.renderLoop()
	go t.clickLoop()
	log.Printf("Tray ready")
}

func (t *Tray) onExit() {
	if t.cfg.OnExit != nil {
		t.cfg.OnExit()
	}
}

func (t *Tray) renderLoop() {
	for s := range t.updates {
		t.render(s)
	}
}

func (t *Tray) render(s eventloop.Status) {
	t.last = s
	shortcut := shortcutLabel(s, t.cfg.Shortcut)
	systray.SetTooltip(tooltip(s, shortcut))
	t.mRead.SetTitle(readTitle(shortcut))
	t.mPause.SetTitle(pauseTitle(s.State))
	if s.State == speech.Idle {
		t.mPause.Disable()
		t.mStop.Disable()
	} else {
		t.mPause.Enable()
		t.mStop.Enable()
	}
	if s.AutoRead {
		t.mAuto.Check()
	} else {
		t.mAuto.Uncheck()
	}
	t.mRate.SetTitle(rateTitle(s.Rate))
}

func (t *Tray) clickLoop() {
	for {
		var id menuID
		select {
		case <-t.mRead.ClickedCh:
			id = menuRead
		case <-t.mPause.ClickedCh:
			id = menuPause
		case <-t.mStop.ClickedCh:
			id = menuStop
		case <-t.mAuto.ClickedCh:
			id = menuAutoRead
		case <-t.mFaster.ClickedCh:
			id = menuFaster
		case <-t.mSlower.ClickedCh:
			id = menuSlower
		case <-t.mQuit.ClickedCh:
			log.Printf("Quit requested from tray")
			systray.Quit()
			return
		}
		// Auto-read toggles against the checkbox the user saw.
		cmd := commandFor(id, t.mAuto.Checked())
		if cmd != nil && !t.cfg.Post(cmd) {
			log.Printf("Tray command dropped: engine stopped")
		}
	}
}

// commandFor maps a menu click to the engine command it requests.
func commandFor(id menuID, autoReadChecked bool) eventloop.Command {
	switch id {
	case menuRead:
		return eventloop.ReadSelection{}
	case menuPause:
		return eventloop.TogglePause{}
	case menuStop:
		return eventloop.Stop{}
	case menuAutoRead:
		return eventloop.SetAutoRead{Enabled: !autoReadChecked}
	case menuFaster:
		return eventloop.AdjustRate{Delta: eventloop.RateStep}
	case menuSlower:
		return eventloop.AdjustRate{Delta: -eventloop.RateStep}
	default:
		return nil
	}
}

// shortcutLabel prefers the loop's live binding over the one known at startup.
func shortcutLabel(s eventloop.Status, initial string) string {
	if s.Shortcut != "" {
		return s.Shortcut
	}
	return initial
}

func readTitle(shortcut string) string {
	if shortcut == "" {
		return "Read Selection"
	}
	return fmt.Sprintf("Read Selection  %s", shortcut)
}

func pauseTitle(state speech.State) string {
	if state == speech.Paused {
		return "Resume"
	}
	return "Pause"
}

func rateTitle(rate float32) string {
	return fmt.Sprintf("Speed: %.1fx", rate)
}

func tooltip(s eventloop.Status, shortcut string) string {
	switch {
	case !s.Permission:
		return notification.AppName + " - accessibility permission required"
	case s.State == speech.Speaking:
		return fmt.Sprintf("%s - speaking (%.0f%%, %.1fx)", notification.AppName, s.Progress*100, s.Rate)
	case s.State == speech.Paused:
		return notification.AppName + " - paused"
	case shortcut != "":
		return fmt.Sprintf("%s - press %s to read the selection", notification.AppName, shortcut)
	default:
		return notification.AppName
	}
}
