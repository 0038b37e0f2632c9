package scraper

import (
	"errors"
	"fmt"
)

// TransientError marks a recoverable network or backend failure. The
// poller keeps its schedule on transient errors instead of stopping.
type TransientError struct {
	Op  string
	Err error
}

// Error implements the error interface
func (e *TransientError) Error() string {
	return fmt.Sprintf("transient %s failure: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is a recoverable query failure
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
