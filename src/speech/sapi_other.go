//go:build !windows

package speech

import "fmt"

func newSAPIBackend(string) (Backend, error) {
	return nil, fmt.Errorf("%w: sapi is only available on windows", ErrNoBackend)
}
