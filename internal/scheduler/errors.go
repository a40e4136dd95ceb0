package scheduler

import "errors"

var (
	// ErrAlreadyStarted is returned when Run is called more than once.
	ErrAlreadyStarted = errors.New("scheduler already started")

	// ErrUnknownStrategy is returned by ParseStrategy for an unknown name.
	ErrUnknownStrategy = errors.New("unknown strategy")

	// ErrPanic wraps a panic recovered from a unit of work.
	ErrPanic = errors.New("unit of work panicked")
)
