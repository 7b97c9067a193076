// Package inputhook runs the single global gohook listener and fans its
// events out to the pointer tracker and the shortcut matcher.
package inputhook

import (
	"context"
	"log"

	gohook "github.com/robotn/gohook"
)

// leftButton is libuiohook's MOUSE_BUTTON1.
const leftButton = 1

// Handlers receive events on the hook goroutine and must not block.
type Handlers struct {
	OnPointer func(down bool)
	OnKey     func(ev gohook.Event)
}

// Start begins listening until ctx is cancelled. It returns false when the
// platform hook could not be installed.
func Start(ctx context.Context, h Handlers) bool {
	evChan := gohook.Start()
	if evChan == nil {
		log.Printf("ERROR: gohook.Start() returned nil channel")
		return false
	}
	log.Printf("Input hook started")

	go func() {
		<-ctx.Done()
		gohook.End()
	}()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("PANIC in input hook goroutine: %v", r)
			}
		}()
		for ev := range evChan {
			dispatch(ev, h)
		}
		log.Printf("Input hook event channel closed")
	}()
	return true
}

func dispatch(ev gohook.Event, h Handlers) {
	if down, ok := PointerTransition(ev); ok {
		if h.OnPointer != nil {
			h.OnPointer(down)
		}
		return
	}
	if isKeyEvent(ev) && h.OnKey != nil {
		h.OnKey(ev)
	}
}

// PointerTransition reports whether ev is a primary button press or release.
// gohook kinds carry libuiohook's event ids: MouseDown is PRESSED, MouseHold
// is RELEASED and MouseUp is CLICKED. CLICKED only follows a press without a
// drag, so it never marks the end of a selection.
func PointerTransition(ev gohook.Event) (down bool, ok bool) {
	if ev.Button != leftButton {
		return false, false
	}
	switch ev.Kind {
	case gohook.MouseDown:
		return true, true
	case gohook.MouseHold:
		return false, true
	default:
		return false, false
	}
}

// isKeyEvent accepts key presses and releases. KeyHold is libuiohook's TYPED
// event, which carries a character rather than a key code.
func isKeyEvent(ev gohook.Event) bool {
	return ev.Kind == gohook.KeyDown || ev.Kind == gohook.KeyUp
}
