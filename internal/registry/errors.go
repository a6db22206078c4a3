package registry

import "errors"

// Domain-specific errors for the registry.
var (
	// ErrDeviceNotFound is returned when no agent has the given identity.
	ErrDeviceNotFound = errors.New("device not found")

	// ErrGroupNotFound is returned when no group has the given id.
	ErrGroupNotFound = errors.New("group not found")

	// ErrDeviceExists is returned when plugging an identity that is in use.
	ErrDeviceExists = errors.New("device already exists")

	// ErrGroupExists is returned when creating a group whose id is taken.
	ErrGroupExists = errors.New("group already exists")

	// ErrWrongKind is returned when a command targets a device of another kind.
	ErrWrongKind = errors.New("wrong device kind")

	// ErrInvalidValue is returned when a command value is out of range.
	ErrInvalidValue = errors.New("invalid value")

	// ErrNotStarted is returned when an operation needs a started registry.
	ErrNotStarted = errors.New("registry not started")
)
