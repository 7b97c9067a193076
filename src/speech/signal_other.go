//go:build !unix

package speech

import (
	"errors"
	"os"
)

var errSuspendUnsupported = errors.New("pausing a synthesizer process is not supported on this platform")

func suspendProcess(*os.Process) error { return errSuspendUnsupported }

func continueProcess(*os.Process) error { return nil }
