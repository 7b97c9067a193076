package inputhook

import (
	"testing"

	gohook "github.com/robotn/gohook"
)

func TestPointerTransition(t *testing.T) {
	tests := []struct {
		name     string
		ev       gohook.Event
		wantDown bool
		wantOK   bool
	}{
		{"left press", gohook.Event{Kind: gohook.MouseDown, Button: 1}, true, true},
		{"left release", gohook.Event{Kind: gohook.MouseHold, Button: 1}, false, true},
		{"left click", gohook.Event{Kind: gohook.MouseUp, Button: 1}, false, false},
		{"right press", gohook.Event{Kind: gohook.MouseDown, Button: 2}, false, false},
		{"drag", gohook.Event{Kind: gohook.MouseDrag, Button: 1}, false, false},
		{"move", gohook.Event{Kind: gohook.MouseMove}, false, false},
		{"key", gohook.Event{Kind: gohook.KeyDown, Keycode: 0x13}, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			down, ok := PointerTransition(tt.ev)
			if down != tt.wantDown || ok != tt.wantOK {
				t.Errorf("PointerTransition = %v/%v, expected %v/%v", down, ok, tt.wantDown, tt.wantOK)
			}
		})
	}
}

func collect(events ...gohook.Event) ([]bool, int) {
	var pointer []bool
	var keys int
	h := Handlers{
		OnPointer: func(down bool) { pointer = append(pointer, down) },
		OnKey:     func(gohook.Event) { keys++ },
	}
	for _, ev := range events {
		dispatch(ev, h)
	}
	return pointer, keys
}

func TestDispatchDragSelection(t *testing.T) {
	// A drag produces PRESSED, DRAGGED..., RELEASED and no CLICKED.
	pointer, _ := collect(
		gohook.Event{Kind: gohook.MouseDown, Button: 1},
		gohook.Event{Kind: gohook.MouseDrag, Button: 1},
		gohook.Event{Kind: gohook.MouseDrag, Button: 1},
		gohook.Event{Kind: gohook.MouseHold, Button: 1},
	)
	if len(pointer) != 2 || !pointer[0] || pointer[1] {
		t.Errorf("pointer transitions = %v, expected [true false]", pointer)
	}
}

func TestDispatchPlainClick(t *testing.T) {
	// A click without movement adds CLICKED after RELEASED.
	pointer, _ := collect(
		gohook.Event{Kind: gohook.MouseDown, Button: 1},
		gohook.Event{Kind: gohook.MouseHold, Button: 1},
		gohook.Event{Kind: gohook.MouseUp, Button: 1},
	)
	if len(pointer) != 2 || !pointer[0] || pointer[1] {
		t.Errorf("pointer transitions = %v, expected [true false]", pointer)
	}
}

func TestDispatchKeys(t *testing.T) {
	_, keys := collect(
		gohook.Event{Kind: gohook.KeyDown, Keycode: 0x13},
		gohook.Event{Kind: gohook.KeyHold, Keychar: 'r'},
		gohook.Event{Kind: gohook.KeyUp, Keycode: 0x13},
	)
	if keys != 2 {
		t.Errorf("key events = %d, expected 2 (press and release)", keys)
	}

	// Missing handlers are tolerated.
	dispatch(gohook.Event{Kind: gohook.MouseDown, Button: 1}, Handlers{})
}
