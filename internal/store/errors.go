package store

import "errors"

var (
	ErrNotFound = errors.New("not found")

	// ErrUnavailable wraps connectivity-level failures so callers can abort
	// a whole batch and retry on the next tick.
	ErrUnavailable = errors.New("store unavailable")
)
