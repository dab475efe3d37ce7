package repository

import "errors"

// Sentinel kinds for session and history errors.
var (
	ErrNotFound = errors.New("session not found")
	ErrExists   = errors.New("session already exists")
	ErrHistory  = errors.New("history storage failure")
)
