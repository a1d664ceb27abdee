// Package engine runs the core's heartbeat: a fixed-period loop that
// turns pending cues into transport dispatches.
//
// Per tick:
//
//	mode snapshot → resolve (≤1 update/device) → gate → dispatch
//
// The loop never blocks on a device. The dispatcher bounds its own
// batch with a deadline shorter than the tick period, so a stalled
// adapter costs at most one tick of lag for its own device.
package engine
