package device

import (
	"time"

	"github.com/admiral-vulcan/musictolight-core/internal/cue"
)

// ProtocolClass identifies which transport adapter drives a device.
// The set is closed: adapters are resolved once at registry load,
// never via runtime type inspection.
type ProtocolClass string

// ProtocolClass constants.
const (
	// ProtocolDMX is a lighting fixture behind the Art-Net DMX gateway.
	ProtocolDMX ProtocolClass = "dmx"

	// ProtocolPixelUDP is an LED strip or matrix speaking the binary
	// pixel protocol over UDP.
	ProtocolPixelUDP ProtocolClass = "pixel-udp"

	// ProtocolRFTrigger is a binary actuator (fog machine) driven by
	// short string commands over UDP.
	ProtocolRFTrigger ProtocolClass = "rf-trigger"
)

// AllProtocolClasses returns all valid protocol classes.
func AllProtocolClasses() []ProtocolClass {
	return []ProtocolClass{ProtocolDMX, ProtocolPixelUDP, ProtocolRFTrigger}
}

// Valid reports whether p is a known protocol class.
func (p ProtocolClass) Valid() bool {
	switch p {
	case ProtocolDMX, ProtocolPixelUDP, ProtocolRFTrigger:
		return true
	default:
		return false
	}
}

// Descriptor is the immutable description of one physical device, loaded
// once at startup from the registry file. It is read-only after load, so
// no locking is required anywhere it is consumed.
type Descriptor struct {
	// ID is the unique logical device identifier (e.g. "scanner_1").
	ID string `yaml:"id"`

	// Protocol selects the transport adapter.
	Protocol ProtocolClass `yaml:"protocol"`

	// Host/Port address the device or its gateway on the network.
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// DMX addressing (ProtocolDMX only).
	Universe    int `yaml:"universe"`
	BaseAddress int `yaml:"base_address"`
	Channels    int `yaml:"channels"`

	// Pixels is the LED count (ProtocolPixelUDP only).
	Pixels int `yaml:"pixels"`

	// Capabilities lists the cue kinds the device accepts.
	// Blackout and recover are implicit for every device.
	Capabilities []cue.Kind `yaml:"capabilities"`

	// MinIntervalMS is the minimum gap between non-critical updates,
	// in milliseconds.
	MinIntervalMS int `yaml:"min_interval_ms"`

	// MaxPayload bounds the encoded payload size in bytes.
	MaxPayload int `yaml:"max_payload"`
}

// MinInterval returns the minimum inter-update interval as a Duration.
func (d *Descriptor) MinInterval() time.Duration {
	return time.Duration(d.MinIntervalMS) * time.Millisecond
}

// Accepts reports whether the device accepts cues of the given kind.
// Every device accepts blackout and recover; a device that could not be
// blacked out would be a safety hole.
func (d *Descriptor) Accepts(kind cue.Kind) bool {
	if kind == cue.KindBlackout || kind == cue.KindRecover {
		return true
	}
	for _, k := range d.Capabilities {
		if k == kind {
			return true
		}
	}
	return false
}

// SafePayload returns the device's defined safe "off" value.
func (d *Descriptor) SafePayload() cue.Payload {
	return cue.Blackout()
}

// Availability is the delivery state of a device.
type Availability string

// Availability constants.
const (
	// AvailabilityUp means the device receives all updates.
	AvailabilityUp Availability = "up"

	// AvailabilityDegraded means repeated transport failures; only
	// critical (blackout/recovery) updates are attempted.
	AvailabilityDegraded Availability = "degraded"

	// AvailabilityBlackedOut means the device was forced to its safe
	// value and only an explicit recovery cue may bring it back.
	AvailabilityBlackedOut Availability = "blacked-out"
)

// Record is one device's last-known-state bookkeeping.
// Copies are returned to callers; the store owns the mutable original.
type Record struct {
	// Payload is the last committed full-state payload.
	Payload cue.Payload

	// LastSent is when the last successful dispatch completed.
	LastSent time.Time

	// Failures counts consecutive transport failures since the last
	// successful commit.
	Failures int

	Availability Availability
}
