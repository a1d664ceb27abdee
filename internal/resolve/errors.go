package resolve

import "errors"

// Domain-specific errors for cue resolution.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrUnsupportedKind is returned when a cue's kind is not in the
	// target device's capability set. The cue is logged and dropped,
	// never fatal.
	ErrUnsupportedKind = errors.New("resolve: unsupported cue kind for device")
)
