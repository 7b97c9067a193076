//go:build !linux

package accessibility

import "log"

// NewPlatformSource returns the clipboard-only source; native accessibility
// trees are only read on Linux (AT-SPI).
func NewPlatformSource() Source {
	log.Printf("accessibility: no native backend on this platform, clipboard only")
	return ClipboardOnly()
}
