package presence

import "errors"

var (
	// ErrNotAssigned means the officer has no roster entry on the target event.
	ErrNotAssigned = errors.New("officer not assigned to event")
	// ErrAlreadyCheckedIn rejects a repeated check-in attempt.
	ErrAlreadyCheckedIn = errors.New("officer already checked in")
	// ErrInvalidTransition rejects an operation the state machine does not
	// allow from the entry's current status, e.g. a ping before check-in.
	ErrInvalidTransition = errors.New("invalid presence transition")
)
