package cue

import (
	"bytes"
	"time"
)

// Kind classifies the intent a cue carries.
type Kind string

// Kind constants.
const (
	// KindColor sets RGB colour plus dimmer and strobe on a fixture.
	KindColor Kind = "color"

	// KindMotion positions a moving head (pan/tilt/speed).
	KindMotion Kind = "motion"

	// KindPattern runs a built-in pattern (code, speed, colour, intensity).
	KindPattern Kind = "pattern"

	// KindFrame carries an opaque pixel frame for an LED strip or matrix.
	KindFrame Kind = "frame"

	// KindTrigger switches a binary actuator (fog machine) on or off.
	KindTrigger Kind = "trigger"

	// KindBlackout forces the device's safe "off" payload.
	KindBlackout Kind = "blackout"

	// KindRecover is the explicit, authorised cue that releases a device
	// from blacked-out availability. Routine updates never do this.
	KindRecover Kind = "recover"
)

// AllKinds returns all valid cue kinds.
func AllKinds() []Kind {
	return []Kind{
		KindColor, KindMotion, KindPattern, KindFrame,
		KindTrigger, KindBlackout, KindRecover,
	}
}

// Valid reports whether k is a known cue kind.
func (k Kind) Valid() bool {
	switch k {
	case KindColor, KindMotion, KindPattern, KindFrame,
		KindTrigger, KindBlackout, KindRecover:
		return true
	default:
		return false
	}
}

// RGB is an 8-bit-per-channel colour.
type RGB struct {
	R uint8 `json:"r" yaml:"r"`
	G uint8 `json:"g" yaml:"g"`
	B uint8 `json:"b" yaml:"b"`
}

// Payload is the kind-specific content of a cue. It always describes the
// full desired device state, never a delta, so duplicate or late packets
// are harmless (last-write-wins at the actuator).
//
// Only the fields relevant to Kind are meaningful; the rest stay zero.
type Payload struct {
	Kind Kind

	// Colour fixtures (KindColor).
	Color  RGB
	Dimmer uint8
	Strobe uint8

	// Moving heads (KindMotion).
	Pan   uint8
	Tilt  uint8
	Speed uint8

	// Built-in patterns (KindPattern).
	Pattern   uint8
	Intensity uint8

	// Pixel strips and matrices (KindFrame). Opaque to the core;
	// the adapter wraps it in the wire protocol unchanged.
	Frame []byte

	// Binary actuators (KindTrigger).
	On bool
}

// Equal reports whether two payloads are bit-for-bit identical.
// The rate/change gate uses this to suppress redundant network traffic.
func (p Payload) Equal(other Payload) bool {
	return p.Kind == other.Kind &&
		p.Color == other.Color &&
		p.Dimmer == other.Dimmer &&
		p.Strobe == other.Strobe &&
		p.Pan == other.Pan &&
		p.Tilt == other.Tilt &&
		p.Speed == other.Speed &&
		p.Pattern == other.Pattern &&
		p.Intensity == other.Intensity &&
		p.On == other.On &&
		bytes.Equal(p.Frame, other.Frame)
}

// Clone returns an independent copy of the payload.
// Frame bytes are copied so the original can be reused by the producer.
func (p Payload) Clone() Payload {
	cpy := p
	if p.Frame != nil {
		cpy.Frame = make([]byte, len(p.Frame))
		copy(cpy.Frame, p.Frame)
	}
	return cpy
}

// Blackout returns the safe "everything off" payload.
func Blackout() Payload {
	return Payload{Kind: KindBlackout}
}

// Recovery returns the payload for an authorised recovery cue.
// It carries no state of its own; it exists to clear blacked-out
// availability and restore the device to its safe value.
func Recovery() Payload {
	return Payload{Kind: KindRecover}
}

// Cue is a device-agnostic statement of intent. Cues are immutable once
// created; a new cue supersedes, never mutates, a prior one for the same
// device.
type Cue struct {
	// DeviceID is the logical target device.
	DeviceID string

	// Priority ranks concurrent cues; higher wins.
	Priority int

	// Source names the producer that emitted the cue, for diagnostics.
	Source string

	// ProducerIndex is the producer's registration index. It is the final
	// tie-break in conflict resolution (lower index wins), which keeps
	// resolution fully deterministic.
	ProducerIndex int

	// At is the creation time. time.Time carries a monotonic clock
	// reading when obtained from time.Now, so staleness comparisons are
	// immune to wall-clock adjustments.
	At time.Time

	Payload Payload
}

// New creates a cue stamped with the current monotonic time. The
// payload is cloned so the producer may reuse its buffers. The producer
// registration index is assigned at enqueue, not here; mappers do not
// know their own declaration order.
func New(deviceID string, priority int, source string, payload Payload) Cue {
	return Cue{
		DeviceID: deviceID,
		Priority: priority,
		Source:   source,
		At:       time.Now(),
		Payload:  payload.Clone(),
	}
}

// Kind returns the payload kind.
func (c Cue) Kind() Kind {
	return c.Payload.Kind
}

// Supersedes reports whether c wins over other under the resolver's total
// order: higher priority first, then newer timestamp, then lower producer
// registration index. Identical inputs always produce identical winners.
func (c Cue) Supersedes(other Cue) bool {
	if c.Priority != other.Priority {
		return c.Priority > other.Priority
	}
	if !c.At.Equal(other.At) {
		return c.At.After(other.At)
	}
	return c.ProducerIndex < other.ProducerIndex
}
