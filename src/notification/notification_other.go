//go:build !linux && !windows

package notification

// show is a no-op; ShowError already logged the message.
func show(title, message string) error { return nil }
