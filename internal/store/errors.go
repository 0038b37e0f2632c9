package store

import "errors"

var (
	// ErrNotFound is returned when a requested record does not exist
	ErrNotFound = errors.New("record not found")

	// ErrConflict is returned when a profile already has a run in flight
	ErrConflict = errors.New("profile already has an active scrape run")

	// ErrInvalidTransition is returned for illegal run state changes
	ErrInvalidTransition = errors.New("invalid scrape run transition")

	// ErrDuplicate is returned when a unique constraint would be violated
	ErrDuplicate = errors.New("record already exists")
)
