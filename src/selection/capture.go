package selection

import (
	"fmt"

	"text-listener/src/accessibility"
)

// Clipboard is the read side of the system clipboard.
type Clipboard interface {
	ReadText() (string, bool)
}

// Origin records which step of the capture chain produced the text.
type Origin int

const (
	FromAutoCapture Origin = iota
	FromFocusedSelection
	FromFocusedValue
	FromTreeSearch
	FromClipboard
)

func (o Origin) String() string {
	switch o {
	case FromAutoCapture:
		return "auto-capture"
	case FromFocusedSelection:
		return "focused-selection"
	case FromFocusedValue:
		return "focused-value"
	case FromTreeSearch:
		return "tree-search"
	case FromClipboard:
		return "clipboard"
	default:
		return "unknown"
	}
}

type Capture struct {
	Text   string
	Origin Origin
}

// FromAccessibility reports whether the text came from a live accessibility query.
func (c Capture) FromAccessibility() bool {
	return c.Origin == FromFocusedSelection || c.Origin == FromFocusedValue || c.Origin == FromTreeSearch
}

// Capturer is the manual (shortcut / menu) capture path.
type Capturer struct {
	src       accessibility.Source
	clipboard Clipboard
}

func NewCapturer(src accessibility.Source, clipboard Clipboard) *Capturer {
	return &Capturer{src: src, clipboard: clipboard}
}

// Capture resolves the text to read: the auto-captured selection, then a live
// accessibility query (focused selection, focused value, tree search), then
// the clipboard.
func (c *Capturer) Capture(autoCaptured string) (Capture, error) {
	if autoCaptured != "" {
		return Capture{Text: autoCaptured, Origin: FromAutoCapture}, nil
	}

	if !c.src.HasPermission() {
		return Capture{}, ErrPermissionDenied
	}

	q := accessibility.Begin(c.src)
	if text := accessibility.FocusedSelectedText(q); text != "" {
		return Capture{Text: text, Origin: FromFocusedSelection}, nil
	}
	if text := accessibility.FocusedValue(q); text != "" {
		return Capture{Text: text, Origin: FromFocusedValue}, nil
	}
	if text := accessibility.SearchSelectedText(q, q.Windows()); text != "" {
		return Capture{Text: text, Origin: FromTreeSearch}, nil
	}

	if c.clipboard != nil {
		if text, ok := c.clipboard.ReadText(); ok {
			return Capture{Text: text, Origin: FromClipboard}, nil
		}
	}
	return Capture{}, fmt.Errorf("%w: %w", ErrNoSelection, ErrEmptyClipboard)
}
