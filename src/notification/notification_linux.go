//go:build linux

package notification

import (
	"fmt"

	"github.com/godbus/dbus/v5"
)

const (
	notifyDest  = "org.freedesktop.Notifications"
	notifyPath  = dbus.ObjectPath("/org/freedesktop/Notifications")
	notifyCall  = notifyDest + ".Notify"
	urgencyHint = "urgency"
	urgencyNorm = byte(1)
)

// show sends a desktop notification over the session bus.
func show(title, message string) error {
	conn, err := dbus.SessionBus()
	if err != nil {
		return fmt.Errorf("session bus: %w", err)
	}
	hints := map[string]dbus.Variant{urgencyHint: dbus.MakeVariant(urgencyNorm)}
	call := conn.Object(notifyDest, notifyPath).Call(notifyCall, 0,
		AppName, uint32(0), "dialog-warning", title, message,
		[]string{}, hints, int32(expireMillis),
	)
	if call.Err != nil {
		return fmt.Errorf("notify: %w", call.Err)
	}
	return nil
}
