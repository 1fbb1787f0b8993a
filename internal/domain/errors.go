package domain

import "errors"

var (
	// ErrInvalidInput is returned for malformed or non-positive input values.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnknownType is returned when a (category, activity type) pair is not in the factor table.
	ErrUnknownType = errors.New("unknown activity type")
	// ErrProfileNotFound is returned when a referenced profile does not exist.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrStorageFailure wraps unexpected errors from the underlying store.
	ErrStorageFailure = errors.New("storage failure")
	// ErrConflict is returned when concurrent-update retries are exhausted.
	ErrConflict = errors.New("conflicting concurrent update")
)
