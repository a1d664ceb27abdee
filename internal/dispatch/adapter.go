package dispatch

import (
	"context"

	"github.com/admiral-vulcan/musictolight-core/internal/cue"
	"github.com/admiral-vulcan/musictolight-core/internal/device"
)

// Adapter delivers a resolved payload to one device over its native
// protocol. Implementations must be safe for concurrent use: the
// dispatcher sends to different devices from separate goroutines.
type Adapter interface {
	// Protocol returns the protocol class this adapter serves.
	Protocol() device.ProtocolClass

	// Send encodes and transmits the payload to the device described by
	// desc. It must respect ctx cancellation and return an error wrapping
	// ErrSendFailed on transport problems.
	Send(ctx context.Context, desc *device.Descriptor, p cue.Payload) error
}
