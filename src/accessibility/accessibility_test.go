package accessibility

import (
	"fmt"
	"testing"
	"time"
)

type fakeElement struct {
	selected string
	value    string
	children []string
}

type fakeTree struct {
	permitted bool
	focused   string
	windows   []string
	elements  map[string]fakeElement
	visits    int

	focusedCalls int
	windowCalls  int
	calls        int
	// tick, when set, runs on every call; tests use it to advance a fake clock.
	tick func()
}

func (f *fakeTree) count() {
	f.calls++
	if f.tick != nil {
		f.tick()
	}
}

func (f *fakeTree) HasPermission() bool { return f.permitted }

func (f *fakeTree) Focused() (Node, bool) {
	f.focusedCalls++
	f.count()
	if f.focused == "" {
		return nil, false
	}
	return f.focused, true
}

func (f *fakeTree) Windows() []Node {
	f.windowCalls++
	f.count()
	out := make([]Node, len(f.windows))
	for i, w := range f.windows {
		out[i] = w
	}
	return out
}

func (f *fakeTree) SelectedTextOf(n Node) (string, bool) {
	f.visits++
	f.count()
	e := f.elements[n.(string)]
	return e.selected, e.selected != ""
}

func (f *fakeTree) ValueOf(n Node) (string, bool) {
	e := f.elements[n.(string)]
	return e.value, e.value != ""
}

func (f *fakeTree) ChildrenOf(n Node) []Node {
	f.count()
	e := f.elements[n.(string)]
	out := make([]Node, len(e.children))
	for i, c := range e.children {
		out[i] = c
	}
	return out
}

func TestSearchSelectedTextPreOrder(t *testing.T) {
	tree := &fakeTree{
		windows: []string{"w1", "w2"},
		elements: map[string]fakeElement{
			"w1":   {children: []string{"a", "b"}},
			"a":    {children: []string{"a1"}},
			"a1":   {selected: "deep first"},
			"b":    {selected: "shallow second"},
			"w2":   {selected: "other window"},
			"miss": {},
		},
	}

	got := SearchSelectedText(tree, tree.Windows())
	if got != "deep first" {
		t.Errorf("SearchSelectedText = %q, expected %q", got, "deep first")
	}
}

func TestSearchSelectedTextNoSelection(t *testing.T) {
	tree := &fakeTree{
		windows:  []string{"w1"},
		elements: map[string]fakeElement{"w1": {children: []string{"a"}}, "a": {}},
	}
	if got := SearchSelectedText(tree, tree.Windows()); got != "" {
		t.Errorf("Expected empty result, got %q", got)
	}
}

func TestSearchSelectedTextBounded(t *testing.T) {
	// A single chain deeper than MaxSearchDepth with the selection at the bottom.
	elements := map[string]fakeElement{}
	for i := 0; i < MaxSearchDepth+5; i++ {
		elements[fmt.Sprintf("n%d", i)] = fakeElement{children: []string{fmt.Sprintf("n%d", i+1)}}
	}
	elements[fmt.Sprintf("n%d", MaxSearchDepth+5)] = fakeElement{selected: "too deep"}
	tree := &fakeTree{windows: []string{"n0"}, elements: elements}

	if got := SearchSelectedText(tree, tree.Windows()); got != "" {
		t.Errorf("Expected depth bound to stop the walk, got %q", got)
	}

	// A wide fan-out larger than MaxSearchNodes.
	wide := map[string]fakeElement{}
	var kids []string
	for i := 0; i < MaxSearchNodes+10; i++ {
		kids = append(kids, fmt.Sprintf("k%d", i))
	}
	wide["root"] = fakeElement{children: kids}
	wide[kids[len(kids)-1]] = fakeElement{selected: "last"}
	wideTree := &fakeTree{windows: []string{"root"}, elements: wide}

	if got := SearchSelectedText(wideTree, wideTree.Windows()); got != "" {
		t.Errorf("Expected node bound to stop the walk, got %q", got)
	}
	if wideTree.visits > MaxSearchNodes {
		t.Errorf("Visited %d nodes, limit is %d", wideTree.visits, MaxSearchNodes)
	}
}

func TestSelectedTextPrefersFocused(t *testing.T) {
	tree := &fakeTree{
		focused: "f",
		windows: []string{"w"},
		elements: map[string]fakeElement{
			"f": {selected: "focused"},
			"w": {selected: "window"},
		},
	}
	if got := SelectedText(tree); got != "focused" {
		t.Errorf("SelectedText = %q, expected focused", got)
	}

	tree.elements["f"] = fakeElement{value: "field value"}
	if got := SelectedText(tree); got != "window" {
		t.Errorf("SelectedText = %q, expected tree fallback", got)
	}
	if got := FocusedValue(tree); got != "field value" {
		t.Errorf("FocusedValue = %q, expected field value", got)
	}
}

func TestClipboardOnlySource(t *testing.T) {
	src := ClipboardOnly()
	if !src.HasPermission() {
		t.Errorf("clipboard-only source should report permission")
	}
	if got := SelectedText(src); got != "" {
		t.Errorf("Expected no selection, got %q", got)
	}
}

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func TestQueryResolvesOnce(t *testing.T) {
	tree := &fakeTree{
		focused: "f",
		windows: []string{"w"},
		elements: map[string]fakeElement{
			"f": {value: "field"},
			"w": {children: []string{"a"}},
			"a": {},
		},
	}
	q := NewQuery(tree, time.Hour, nil)
	if got := q.SelectedText(); got != "" {
		t.Fatalf("SelectedText = %q, expected nothing", got)
	}
	FocusedValue(q)
	SearchSelectedText(q, q.Windows())
	if tree.focusedCalls != 1 {
		t.Errorf("Focused called %d times, expected 1", tree.focusedCalls)
	}
	if tree.windowCalls != 1 {
		t.Errorf("Windows called %d times, expected 1", tree.windowCalls)
	}
}

func TestQueryDeadline(t *testing.T) {
	tests := []struct {
		name      string
		perCall   time.Duration
		budget    time.Duration
		wantText  string
		wantCalls int
	}{
		// Focused, SelectedTextOf(f), Windows, then SelectedTextOf and
		// ChildrenOf per node until the budget runs out.
		{"fast tree finds selection", time.Millisecond, 100 * time.Millisecond, "deep", 0},
		{"slow tree stops at deadline", 30 * time.Millisecond, 100 * time.Millisecond, "", 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			elements := map[string]fakeElement{"f": {}}
			const depth = 20
			for i := 0; i < depth; i++ {
				elements[fmt.Sprintf("n%d", i)] = fakeElement{children: []string{fmt.Sprintf("n%d", i+1)}}
			}
			elements[fmt.Sprintf("n%d", depth)] = fakeElement{selected: "deep"}

			clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
			tree := &fakeTree{focused: "f", windows: []string{"n0"}, elements: elements}
			tree.tick = func() { clock.now = clock.now.Add(tt.perCall) }

			q := NewQuery(tree, tt.budget, clock.Now)
			if got := q.SelectedText(); got != tt.wantText {
				t.Errorf("SelectedText = %q, expected %q", got, tt.wantText)
			}
			if tt.wantCalls > 0 && tree.calls != tt.wantCalls {
				t.Errorf("source saw %d calls, expected %d", tree.calls, tt.wantCalls)
			}
			if !q.Expired() && tt.wantText == "" {
				t.Errorf("lookup should have used its whole budget")
			}
		})
	}
}

type scopedTree struct {
	fakeTree
	scoped []time.Time
}

func (s *scopedTree) Scope(deadline time.Time) Source {
	s.scoped = append(s.scoped, deadline)
	return &s.fakeTree
}

func TestQueryScopesSource(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	src := &scopedTree{fakeTree: fakeTree{elements: map[string]fakeElement{}}}
	NewQuery(src, QueryBudget, clock.Now).SelectedText()
	if len(src.scoped) != 1 || !src.scoped[0].Equal(clock.now.Add(QueryBudget)) {
		t.Errorf("Scope deadlines = %v, expected one at now+%v", src.scoped, QueryBudget)
	}
}
