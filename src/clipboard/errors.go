package clipboard

import "errors"

// ErrUnavailable is returned when Init has not succeeded (headless session, no display).
var ErrUnavailable = errors.New("clipboard unavailable")
