package service

import "errors"

var (
	// ErrNotStarted is returned by session operations before Start.
	ErrNotStarted = errors.New("service not started")

	// ErrSessionNotFound reports an unknown or expired session id.
	ErrSessionNotFound = errors.New("session not found")

	// ErrBackpressure reports a frame rejected because its shard queue is full
	// or closed.
	ErrBackpressure = errors.New("frame queue unavailable")
)
