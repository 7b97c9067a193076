// Package singleinstance lets one resident own the engine and lets later
// invocations remote-control it over loopback TCP.
package singleinstance

import (
	"context"
	"strings"
)

// Action is a remote-control request understood by the resident.
type Action string

const (
	ActionRead   Action = "READ"
	ActionStop   Action = "STOP"
	ActionPause  Action = "PAUSE"
	ActionResume Action = "RESUME"
	ActionStatus Action = "STATUS"
	// ActionShortcut rebinds the read shortcut; its argument is a combo such as "Ctrl+Alt+R".
	ActionShortcut Action = "SHORTCUT"
)

var actions = []Action{ActionRead, ActionStop, ActionPause, ActionResume, ActionStatus, ActionShortcut}

// ParseAction accepts an action name in any case.
func ParseAction(s string) (Action, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for _, a := range actions {
		if string(a) == s {
			return a, true
		}
	}
	return "", false
}

// Server owns the TCP endpoint and hands accepted requests to the loop.
type Server interface {
	// Start binds the first port of the configured range; a bound port means
	// another resident owns the engine.
	Start(ctx context.Context) error
	// Port returns the bound TCP port, or 0 if not started.
	Port() int
	// Next returns the next accepted request, or the ctx error.
	Next(ctx context.Context) (Conn, error)
	Close() error
}

// Conn is one client request awaiting its reply.
type Conn interface {
	Request() Request
	RespondSuccess(text string) error
	RespondError(msg string) error
	Close() error
}

// Request is one line on the wire: the action, then an optional argument
// separated by a space.
type Request struct {
	Action Action
	Arg    string
}

// ParseRequest reads a request line without its trailing newline.
func ParseRequest(line string) (Request, bool) {
	name, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	action, ok := ParseAction(name)
	if !ok {
		return Request{}, false
	}
	arg = strings.TrimSpace(arg)
	if (action == ActionShortcut) != (arg != "") {
		return Request{}, false
	}
	return Request{Action: action, Arg: arg}, true
}

func (r Request) line() string {
	if r.Arg == "" {
		return string(r.Action) + "\n"
	}
	return string(r.Action) + " " + r.Arg + "\n"
}

// Client delegates a request to a resident server.
type Client interface {
	// Send scans the port range for a resident and delivers req. If no
	// resident answers it returns delegated=false, err=nil.
	Send(ctx context.Context, req Request) (delegated bool, reply string, err error)
}

func NewServer(ports PortRange) Server { return newTcpServer(ports) }

func NewClient(ports PortRange) Client { return &tcpClient{ports: ports} }
