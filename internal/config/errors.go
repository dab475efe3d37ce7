package config

import "errors"

var (
	// ErrInvalidConfig marks values rejected by Validate.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrLoadConfig marks provider, parser or decode failures.
	ErrLoadConfig = errors.New("load config failed")
)
