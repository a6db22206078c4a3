package actor

import "errors"

var (
	// ErrStopped is returned when delivering to or calling an exited actor.
	ErrStopped = errors.New("actor: stopped")

	// ErrInboxFull is returned by Deliver when the mailbox has no room.
	ErrInboxFull = errors.New("actor: inbox full")

	// ErrHandlerPanic is returned by Call when the closure panicked.
	ErrHandlerPanic = errors.New("actor: handler panicked")
)
