package publisher

import "errors"

// ErrUnavailable reports a publisher backend that could not be reached.
var ErrUnavailable = errors.New("publisher backend unavailable")
