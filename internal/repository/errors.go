package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrStaleWrite is returned when a guarded update finds the record no
	// longer in the expected state.
	ErrStaleWrite = errors.New("entity was modified concurrently")

	// ErrDuplicateTicket is returned when a ticket number is already taken.
	ErrDuplicateTicket = errors.New("ticket number already exists")
)
