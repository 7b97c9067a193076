//go:build linux

package accessibility

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
)

const (
	a11yBusName     = "org.a11y.Bus"
	a11yBusPath     = "/org/a11y/bus"
	registryBusName = "org.a11y.atspi.Registry"
	rootPath        = dbus.ObjectPath("/org/a11y/atspi/accessible/root")

	ifaceAccessible = "org.a11y.atspi.Accessible"
	ifaceCollection = "org.a11y.atspi.Collection"
	ifaceText       = "org.a11y.atspi.Text"

	// AT-SPI StateType bit positions within the first state word.
	stateActive  = 1
	stateFocused = 12

	// Collection MatchType and SortOrder values.
	matchAll      = 1
	sortCanonical = 1

	callTimeout = 50 * time.Millisecond
)

var errQueryExpired = errors.New("accessibility: query deadline passed")

type atspiNode struct {
	bus  string
	path dbus.ObjectPath
}

type childRef struct {
	Name string
	Path dbus.ObjectPath
}

// matchRule is the Collection MatchRule struct, signature (aiia{ss}iaiiasib).
type matchRule struct {
	States         []int32
	StateMatch     int32
	Attributes     map[string]string
	AttributeMatch int32
	Roles          []int32
	RoleMatch      int32
	Interfaces     []string
	InterfaceMatch int32
	Invert         bool
}

var focusedRule = matchRule{
	States:         []int32{1 << stateFocused, 0},
	StateMatch:     matchAll,
	Attributes:     map[string]string{},
	AttributeMatch: matchAll,
	Roles:          []int32{},
	RoleMatch:      matchAll,
	Interfaces:     []string{},
	InterfaceMatch: matchAll,
}

// atspiBus holds the D-Bus connections shared by every query.
type atspiBus struct {
	session *dbus.Conn

	mu   sync.Mutex
	a11y *dbus.Conn
}

// atspiSource reads the desktop accessibility tree over the AT-SPI D-Bus. A
// scoped source carries the deadline of one lookup and caches its window list.
type atspiSource struct {
	bus      *atspiBus
	deadline time.Time

	windows     []atspiNode
	windowsDone bool
}

// NewPlatformSource connects to AT-SPI. When the session bus is unreachable it
// falls back to a clipboard-only source.
func NewPlatformSource() Source {
	session, err := dbus.ConnectSessionBus()
	if err != nil {
		log.Printf("accessibility: session bus unavailable (%v), clipboard only", err)
		return ClipboardOnly()
	}
	return &atspiSource{bus: &atspiBus{session: session}}
}

func (s *atspiSource) Scope(deadline time.Time) Source {
	return &atspiSource{bus: s.bus, deadline: deadline}
}

// callContext bounds one call by callTimeout and by the lookup deadline.
func (s *atspiSource) callContext() (context.Context, context.CancelFunc, error) {
	d := time.Now().Add(callTimeout)
	if !s.deadline.IsZero() {
		if !time.Now().Before(s.deadline) {
			return nil, nil, errQueryExpired
		}
		if s.deadline.Before(d) {
			d = s.deadline
		}
	}
	ctx, cancel := context.WithDeadline(context.Background(), d)
	return ctx, cancel, nil
}

// HasPermission reports the org.a11y.Status.IsEnabled toggle, the desktop's
// equivalent of an accessibility grant.
func (s *atspiSource) HasPermission() bool {
	ctx, cancel, err := s.callContext()
	if err != nil {
		return false
	}
	defer cancel()
	var v dbus.Variant
	err = s.bus.session.Object(a11yBusName, a11yBusPath).
		CallWithContext(ctx, "org.freedesktop.DBus.Properties.Get", 0, "org.a11y.Status", "IsEnabled").
		Store(&v)
	if err != nil {
		return false
	}
	enabled, _ := v.Value().(bool)
	if !enabled {
		return false
	}
	return s.bus.conn() != nil
}

// conn lazily opens the accessibility bus and drops it on failure so the next
// poll reconnects.
func (b *atspiBus) conn() *dbus.Conn {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.a11y != nil && b.a11y.Connected() {
		return b.a11y
	}
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	var addr string
	if err := b.session.Object(a11yBusName, a11yBusPath).CallWithContext(ctx, "org.a11y.Bus.GetAddress", 0).Store(&addr); err != nil {
		log.Printf("accessibility: GetAddress failed: %v", err)
		return nil
	}
	c, err := dbus.Connect(addr)
	if err != nil {
		log.Printf("accessibility: connect %s failed: %v", addr, err)
		return nil
	}
	b.a11y = c
	return c
}

func (s *atspiSource) call(n atspiNode, method string, args ...any) *dbus.Call {
	ctx, cancel, err := s.callContext()
	if err != nil {
		return &dbus.Call{Err: err}
	}
	defer cancel()
	c := s.bus.conn()
	if c == nil {
		return &dbus.Call{Err: dbus.ErrClosed}
	}
	return c.Object(n.bus, n.path).CallWithContext(ctx, method, 0, args...)
}

func (s *atspiSource) children(n atspiNode) []atspiNode {
	var refs []childRef
	if err := s.call(n, ifaceAccessible+".GetChildren").Store(&refs); err != nil {
		return nil
	}
	out := make([]atspiNode, 0, len(refs))
	for _, r := range refs {
		out = append(out, atspiNode{bus: r.Name, path: r.Path})
	}
	return out
}

func (s *atspiSource) hasState(n atspiNode, bit uint) bool {
	var words []uint32
	if err := s.call(n, ifaceAccessible+".GetState").Store(&words); err != nil || len(words) == 0 {
		return false
	}
	return words[0]&(1<<bit) != 0
}

// activeWindows enumerates the active top-level frames of every registered
// application. A scoped source does this once.
func (s *atspiSource) activeWindows() []atspiNode {
	if s.windowsDone {
		return s.windows
	}
	var out []atspiNode
	for _, app := range s.children(atspiNode{bus: registryBusName, path: rootPath}) {
		for _, frame := range s.children(app) {
			if s.hasState(frame, stateActive) {
				out = append(out, frame)
			}
		}
	}
	if !s.deadline.IsZero() {
		s.windows, s.windowsDone = out, true
	}
	return out
}

func (s *atspiSource) Windows() []Node {
	windows := s.activeWindows()
	out := make([]Node, len(windows))
	for i, w := range windows {
		out[i] = w
	}
	return out
}

// Focused asks each active window's Collection for the element carrying the
// FOCUSED state.
func (s *atspiSource) Focused() (Node, bool) {
	for _, w := range s.activeWindows() {
		if n, ok := s.focusedIn(w); ok {
			return n, true
		}
	}
	return nil, false
}

func (s *atspiSource) focusedIn(w atspiNode) (atspiNode, bool) {
	var refs []childRef
	err := s.call(w, ifaceCollection+".GetMatches", focusedRule, uint32(sortCanonical), int32(1), false).Store(&refs)
	if err == nil {
		if len(refs) == 0 {
			return atspiNode{}, false
		}
		return atspiNode{bus: refs[0].Name, path: refs[0].Path}, true
	}
	if errors.Is(err, errQueryExpired) {
		return atspiNode{}, false
	}
	// Toolkits without Collection support get a bounded walk.
	stack := []atspiNode{w}
	visited := 0
	for len(stack) > 0 && visited < MaxSearchNodes {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		visited++
		if s.hasState(n, stateFocused) {
			return n, true
		}
		if s.expired() {
			return atspiNode{}, false
		}
		stack = append(stack, s.children(n)...)
	}
	return atspiNode{}, false
}

func (s *atspiSource) expired() bool {
	return !s.deadline.IsZero() && !time.Now().Before(s.deadline)
}

func (s *atspiSource) SelectedTextOf(node Node) (string, bool) {
	n, ok := node.(atspiNode)
	if !ok {
		return "", false
	}
	var count int32
	if err := s.call(n, ifaceText+".GetNSelections").Store(&count); err != nil || count <= 0 {
		return "", false
	}
	var start, end int32
	if err := s.call(n, ifaceText+".GetSelection", int32(0)).Store(&start, &end); err != nil || end <= start {
		return "", false
	}
	var text string
	if err := s.call(n, ifaceText+".GetText", start, end).Store(&text); err != nil {
		return "", false
	}
	return text, text != ""
}

func (s *atspiSource) ValueOf(node Node) (string, bool) {
	n, ok := node.(atspiNode)
	if !ok {
		return "", false
	}
	var text string
	if err := s.call(n, ifaceText+".GetText", int32(0), int32(-1)).Store(&text); err != nil {
		return "", false
	}
	return text, text != ""
}

func (s *atspiSource) ChildrenOf(node Node) []Node {
	n, ok := node.(atspiNode)
	if !ok {
		return nil
	}
	children := s.children(n)
	out := make([]Node, len(children))
	for i, c := range children {
		out[i] = c
	}
	return out
}
