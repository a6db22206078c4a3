package bus

import "errors"

var (
	// ErrClosed is returned by operations on a closed session or broker.
	ErrClosed = errors.New("bus: session closed")

	// ErrInvalidTopic is returned for empty topics and filters.
	ErrInvalidTopic = errors.New("bus: topic cannot be empty")

	// ErrDuplicateClient is returned when a client id is already connected.
	ErrDuplicateClient = errors.New("bus: client id already connected")
)
