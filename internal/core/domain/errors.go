package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrTokenRequired indicates no API token was configured for the live client.
	ErrTokenRequired = errors.New("api token required")

	// ErrRunAborted indicates a run stopped before processing all cases.
	ErrRunAborted = errors.New("run aborted")
)
