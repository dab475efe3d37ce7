package library

import "errors"

var (
	// ErrNoMatch is returned by a search that cannot produce any candidate,
	// either because the library is empty or no entry shares a joint with
	// the input.
	ErrNoMatch = errors.New("no match possible")

	// ErrBadPattern reports a file selection pattern that does not parse.
	ErrBadPattern = errors.New("invalid file pattern")

	// ErrManifest wraps failures to read or decode a sequence manifest.
	ErrManifest = errors.New("invalid sequence manifest")

	// ErrSkipped marks a source file that was left out of a load result.
	ErrSkipped = errors.New("skeleton file skipped")
)
