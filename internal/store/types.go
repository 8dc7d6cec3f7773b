package store

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrBatchFull is returned when the target batch filled up between the
	// caller's snapshot read and the join write. Retryable: re-read the
	// snapshot and re-evaluate the assignment.
	ErrBatchFull = errors.New("batch filled concurrently")
)
