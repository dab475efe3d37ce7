package replay

import "errors"

var (
	// ErrUnhealthy reports a server that failed its health check.
	ErrUnhealthy = errors.New("server unhealthy")

	// ErrStatus reports an unexpected HTTP status.
	ErrStatus = errors.New("unexpected status")

	// ErrNoFrames reports a replay directory without usable frames.
	ErrNoFrames = errors.New("no frames to replay")
)
