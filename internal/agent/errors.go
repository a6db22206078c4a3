package agent

import "errors"

// Inbound update errors. None of them reach the bus: the node loop logs them
// and leaves state unchanged.
var (
	// ErrMalformedPayload is returned when a payload cannot be decoded.
	ErrMalformedPayload = errors.New("agent: malformed payload")

	// ErrInvalidValue is returned for well-formed values outside their domain,
	// such as blind position 3 or fin orientation "+30".
	ErrInvalidValue = errors.New("agent: invalid value")

	// ErrModeMismatch is returned when an automatic update arrives in Manual
	// mode or a manual update arrives in Auto mode. It is informational.
	ErrModeMismatch = errors.New("agent: update does not match control mode")

	// ErrUnknownField is returned for fields without a handler.
	ErrUnknownField = errors.New("agent: unknown field")

	// ErrEmptyBool is returned by ParseBool for blank input.
	ErrEmptyBool = errors.New("agent: empty boolean")

	// ErrInvalidBool is returned by ParseBool for text outside the accepted set.
	ErrInvalidBool = errors.New("agent: invalid boolean")

	// ErrUnknownKind is returned by ParseKind.
	ErrUnknownKind = errors.New("agent: unknown device kind")
)
