// Package cue defines the device-agnostic intent model for the dispatch
// core.
//
// A Cue is an immutable statement of desired device state emitted by a
// producer (audio mapper, show-state mapper). Cues carry a priority, a
// monotonic timestamp and the emitting producer's registration index;
// together these give the conflict resolver a deterministic total order.
//
// Queue provides the bounded per-device buffer between producers and the
// dispatch tick: non-blocking pushes, drop-oldest on overflow.
//
// # Key Types
//
//   - Cue: immutable intent (device id, kind, payload, priority, source)
//   - Payload: kind-specific full-state content, bytewise comparable
//   - Queue: bounded per-device FIFO with drop-oldest policy
package cue
