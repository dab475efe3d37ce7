package source

import "errors"

// ErrBadPattern reports a file selection pattern that does not parse.
var ErrBadPattern = errors.New("invalid file pattern")
