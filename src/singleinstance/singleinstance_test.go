package singleinstance

import (
	"context"
	"testing"
	"time"
)

func testPorts(port int) PortRange { return PortRange{Start: port, End: port} }

func TestServerClientRoundTrip(t *testing.T) {
	ports := testPorts(49731)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	srv := NewServer(ports)
	if err := srv.Start(ctx); err != nil {
		t.Skipf("loopback TCP unavailable in this environment: %v", err)
	}
	defer srv.Close()

	type outcome struct {
		delegated bool
		reply     string
		err       error
	}
	done := make(chan outcome, 1)
	go func() {
		delegated, reply, err := NewClient(ports).Send(ctx, Request{Action: ActionStatus})
		done <- outcome{delegated, reply, err}
	}()

	conn, err := srv.Next(ctx)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if conn.Request().Action != ActionStatus {
		t.Errorf("action = %q, expected STATUS", conn.Request().Action)
	}
	if err := conn.RespondSuccess("state=idle"); err != nil {
		t.Fatalf("respond: %v", err)
	}
	_ = conn.Close()

	got := <-done
	if got.err != nil || !got.delegated || got.reply != "state=idle" {
		t.Errorf("Send = %v/%q/%v, expected delegated with state=idle", got.delegated, got.reply, got.err)
	}
}

func TestErrorResponse(t *testing.T) {
	ports := testPorts(49732)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	srv := NewServer(ports)
	if err := srv.Start(ctx); err != nil {
		t.Skipf("loopback TCP unavailable in this environment: %v", err)
	}
	defer srv.Close()

	go func() {
		conn, err := srv.Next(ctx)
		if err != nil {
			return
		}
		_ = conn.RespondError("no text selected")
		_ = conn.Close()
	}()

	delegated, _, err := NewClient(ports).Send(ctx, Request{Action: ActionRead})
	if !delegated {
		t.Fatalf("expected delegation")
	}
	if err == nil || err.Error() != "no text selected" {
		t.Errorf("err = %v, expected resident message", err)
	}
}

func TestNoResident(t *testing.T) {
	ports := testPorts(49733)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	delegated, _, err := NewClient(ports).Send(ctx, Request{Action: ActionStop})
	if delegated || err != nil {
		t.Errorf("Send = %v/%v, expected no delegation and no error", delegated, err)
	}
}

func TestParseAction(t *testing.T) {
	tests := []struct {
		in   string
		want Action
		ok   bool
	}{
		{"read", ActionRead, true},
		{" Pause ", ActionPause, true},
		{"STATUS", ActionStatus, true},
		{"shortcut", ActionShortcut, true},
		{"STDOUT", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseAction(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseAction(%q) = %q/%v, expected %q/%v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestShortcutRequestRoundTrip(t *testing.T) {
	ports := testPorts(49734)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	srv := NewServer(ports)
	if err := srv.Start(ctx); err != nil {
		t.Skipf("loopback TCP unavailable in this environment: %v", err)
	}
	defer srv.Close()

	go func() {
		conn, err := srv.Next(ctx)
		if err != nil {
			return
		}
		_ = conn.RespondSuccess(conn.Request().Arg)
		_ = conn.Close()
	}()

	delegated, reply, err := NewClient(ports).Send(ctx, Request{Action: ActionShortcut, Arg: "Ctrl+Alt+R"})
	if !delegated || err != nil || reply != "Ctrl+Alt+R" {
		t.Errorf("Send = %v/%q/%v, expected the argument echoed", delegated, reply, err)
	}
}

func TestFindResident(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// The resident owns the start port; a client configured with a wider
	// range still finds it.
	srv := NewServer(PortRange{Start: 49735, End: 49737})
	if err := srv.Start(ctx); err != nil {
		t.Skipf("loopback TCP unavailable in this environment: %v", err)
	}
	defer srv.Close()

	port, ok := PortRange{Start: 49737, End: 49735}.FindResident(ctx)
	if !ok || port != 49735 {
		t.Errorf("FindResident = %d/%v, expected 49735", port, ok)
	}
	if _, ok := testPorts(49738).FindResident(ctx); ok {
		t.Errorf("FindResident found a resident on an unused port")
	}
}

func TestParseRequest(t *testing.T) {
	tests := []struct {
		line string
		want Request
		ok   bool
	}{
		{"READ", Request{Action: ActionRead}, true},
		{"status ", Request{Action: ActionStatus}, true},
		{"SHORTCUT Ctrl+Alt+R", Request{Action: ActionShortcut, Arg: "Ctrl+Alt+R"}, true},
		{"SHORTCUT", Request{}, false},
		{"READ now", Request{}, false},
		{"PING", Request{}, false},
	}
	for _, tt := range tests {
		got, ok := ParseRequest(tt.line)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseRequest(%q) = %+v/%v, expected %+v/%v", tt.line, got, ok, tt.want, tt.ok)
		}
	}
	if line := (Request{Action: ActionShortcut, Arg: "Alt+F9"}).line(); line != "SHORTCUT Alt+F9\n" {
		t.Errorf("line = %q", line)
	}
}

func TestPortRangeNormalized(t *testing.T) {
	tests := []struct {
		in, want PortRange
	}{
		{PortRange{49500, 49550}, PortRange{49500, 49550}},
		{PortRange{49550, 49500}, PortRange{49500, 49550}},
		{PortRange{80, 70000}, PortRange{1024, 65535}},
	}
	for _, tt := range tests {
		if got := tt.in.normalized(); got != tt.want {
			t.Errorf("normalized(%v) = %v, expected %v", tt.in, got, tt.want)
		}
	}
}
