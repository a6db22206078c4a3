package group

import "errors"

var (
	// ErrInvalidID is returned for group id 0, which is reserved for
	// unassigned devices, and negative ids.
	ErrInvalidID = errors.New("group: id must be positive")

	// ErrMalformedPayload is returned when a command or member snapshot
	// cannot be decoded.
	ErrMalformedPayload = errors.New("group: malformed payload")

	// ErrInvalidValue is returned for out-of-range setpoints and blind positions.
	ErrInvalidValue = errors.New("group: invalid value")

	// ErrModeMismatch is returned for manual commands while the group is Auto.
	ErrModeMismatch = errors.New("group: command requires manual mode")

	// ErrUnknownField is returned for command topics without a handler.
	ErrUnknownField = errors.New("group: unknown field")

	// ErrUnknownRule is returned by SetRule for names other than
	// temperature, brightness and presence.
	ErrUnknownRule = errors.New("group: unknown rule")

	// ErrUnknownKind is returned when adding a member of an unsupported kind.
	ErrUnknownKind = errors.New("group: unknown member kind")
)
