package skeleton

import "errors"

// ErrMalformed marks input that cannot be decoded into a Record.
var ErrMalformed = errors.New("malformed skeleton record")
