// Package accessibility exposes the foreground application's UI element tree
// as a small capability interface, and the selected-text queries built on it.
package accessibility

import "time"

const (
	// MaxSearchNodes bounds a single tree search so polling stays cheap on
	// applications with very large element trees.
	MaxSearchNodes = 2000
	MaxSearchDepth = 32

	// QueryBudget caps the wall time of one selection lookup across all of
	// its calls. It is shorter than the poll interval.
	QueryBudget = 100 * time.Millisecond
)

// Node is an opaque handle to an element of a UI tree. Only the Source that
// produced a Node knows how to interpret it.
type Node any

// Source is a platform accessibility service.
type Source interface {
	// HasPermission reports whether this process may read other applications' UI trees.
	HasPermission() bool
	// Focused returns the focused element of the foreground application.
	Focused() (Node, bool)
	// Windows returns the root elements searched when the focused element has no selection.
	Windows() []Node
	// SelectedTextOf returns the element's selected text, if it exposes one.
	SelectedTextOf(n Node) (string, bool)
	// ValueOf returns the element's full text value (text fields).
	ValueOf(n Node) (string, bool)
	ChildrenOf(n Node) []Node
}

// FocusedSelectedText returns the selected text of the focused element, or "".
func FocusedSelectedText(src Source) string {
	n, ok := src.Focused()
	if !ok {
		return ""
	}
	if text, ok := src.SelectedTextOf(n); ok && text != "" {
		return text
	}
	return ""
}

// FocusedValue returns the focused element's value attribute, or "".
func FocusedValue(src Source) string {
	n, ok := src.Focused()
	if !ok {
		return ""
	}
	if text, ok := src.ValueOf(n); ok && text != "" {
		return text
	}
	return ""
}

// Scoper is implemented by sources that can bind their own calls to a
// deadline. Scope returns a view of the source for a single lookup.
type Scoper interface {
	Scope(deadline time.Time) Source
}

// Query is a Source view for one lookup. It resolves the focused element and
// the window list at most once, and answers every call with nothing once its
// deadline has passed.
type Query struct {
	src      Source
	deadline time.Time
	now      func() time.Time

	focused     Node
	focusedOK   bool
	focusedDone bool
	windows     []Node
	windowsDone bool
}

// Begin starts a lookup bounded by QueryBudget.
func Begin(src Source) *Query {
	return NewQuery(src, QueryBudget, time.Now)
}

func NewQuery(src Source, budget time.Duration, now func() time.Time) *Query {
	if now == nil {
		now = time.Now
	}
	deadline := now().Add(budget)
	if sc, ok := src.(Scoper); ok {
		src = sc.Scope(deadline)
	}
	return &Query{src: src, deadline: deadline, now: now}
}

// Expired reports whether the lookup ran out of time.
func (q *Query) Expired() bool { return !q.now().Before(q.deadline) }

func (q *Query) HasPermission() bool { return q.src.HasPermission() }

func (q *Query) Focused() (Node, bool) {
	if !q.focusedDone && !q.Expired() {
		q.focused, q.focusedOK = q.src.Focused()
		q.focusedDone = true
	}
	return q.focused, q.focusedOK
}

func (q *Query) Windows() []Node {
	if !q.windowsDone && !q.Expired() {
		q.windows = q.src.Windows()
		q.windowsDone = true
	}
	return q.windows
}

func (q *Query) SelectedTextOf(n Node) (string, bool) {
	if q.Expired() {
		return "", false
	}
	return q.src.SelectedTextOf(n)
}

func (q *Query) ValueOf(n Node) (string, bool) {
	if q.Expired() {
		return "", false
	}
	return q.src.ValueOf(n)
}

func (q *Query) ChildrenOf(n Node) []Node {
	if q.Expired() {
		return nil
	}
	return q.src.ChildrenOf(n)
}

// SelectedText runs the focused-element query and falls back to a tree search,
// all within one QueryBudget.
func SelectedText(src Source) string {
	return Begin(src).SelectedText()
}

func (q *Query) SelectedText() string {
	if text := FocusedSelectedText(q); text != "" {
		return text
	}
	return SearchSelectedText(q, q.Windows())
}

type frame struct {
	node  Node
	depth int
}

// SearchSelectedText walks each root depth-first in pre-order and returns the
// first non-empty selection found. The walk visits at most MaxSearchNodes
// elements, does not descend below MaxSearchDepth and stops when src is an
// expired Query.
func SearchSelectedText(src Source, roots []Node) string {
	stack := make([]frame, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, frame{node: roots[i]})
	}

	expired := func() bool { return false }
	if q, ok := src.(*Query); ok {
		expired = q.Expired
	}

	visited := 0
	for len(stack) > 0 && visited < MaxSearchNodes && !expired() {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		visited++

		if text, ok := src.SelectedTextOf(top.node); ok && text != "" {
			return text
		}
		if top.depth >= MaxSearchDepth {
			continue
		}
		children := src.ChildrenOf(top.node)
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, frame{node: children[i], depth: top.depth + 1})
		}
	}
	return ""
}
