package shared

import "errors"

var (
	// ErrNotFound indicates a referenced row does not exist or is inactive.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates malformed or out-of-range input.
	ErrValidation = errors.New("validation failed")
	// ErrConcurrencyConflict indicates a lost update was detected while
	// committing; the caller should retry the whole operation.
	ErrConcurrencyConflict = errors.New("concurrency conflict, retry the operation")
)
