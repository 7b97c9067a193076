// Package notification surfaces user-facing errors, such as a manual read
// with nothing selected, through the desktop's native mechanism.
package notification

import "log"

const (
	AppName       = "Text Listener"
	maxMessageLen = 200
	expireMillis  = 5000
)

// ShowError displays title/message without blocking the caller.
func ShowError(title, message string) {
	if r := []rune(message); len(r) > maxMessageLen {
		message = string(r[:maxMessageLen]) + "..."
	}
	log.Printf("notification: %s: %s", title, message)
	go func() {
		if err := show(title, message); err != nil {
			log.Printf("Failed to show notification: %v", err)
		}
	}()
}
