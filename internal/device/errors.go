package device

import "errors"

// Domain-specific errors for device operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrUnknownDevice is returned when a device id is not in the registry.
	// Cues for unknown devices are logged and dropped, never fatal.
	ErrUnknownDevice = errors.New("device: unknown device")

	// ErrDuplicateDevice is returned at registry load when two descriptors
	// share an id. This is a startup configuration error and is fatal.
	ErrDuplicateDevice = errors.New("device: duplicate device id")

	// ErrInvalidDescriptor is returned at registry load when a descriptor
	// is malformed. This is a startup configuration error and is fatal.
	ErrInvalidDescriptor = errors.New("device: invalid descriptor")
)
