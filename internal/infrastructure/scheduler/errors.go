package scheduler

import "errors"

var (
	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid scheduler configuration")

	// ErrInvalidState is returned when the last-sync file cannot be parsed
	ErrInvalidState = errors.New("invalid last-sync state")
)
