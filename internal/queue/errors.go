package queue

import "errors"

var (
	// ErrStatusConflict is returned when a compare-and-set transition finds
	// the item in a different status than expected.
	ErrStatusConflict = errors.New("queue: item status changed concurrently")
	// ErrTerminal is returned when a caller attempts to move an item out of
	// a terminal status.
	ErrTerminal = errors.New("queue: item already in terminal status")
	// ErrInvalidItem is returned when an item violates a structural invariant.
	ErrInvalidItem = errors.New("queue: invalid item")
)
