// Package watchdog owns the show's safety state machine.
//
// States:
//
//	Normal ──(panic flag / heartbeat loss)──▶ Panic
//	Panic ──(blackout fan-out complete)─────▶ BlackoutForced
//	BlackoutForced ──(authorised recovery)──▶ Normal
//
// The watchdog is the sole authority for clearing a device's
// blacked-out availability. Routine cue flow can never resurrect a
// blacked-out rig; only Recover does, and the API layer authenticates
// who may call it.
//
// Heartbeat supervision runs on its own goroutine with the same
// start/stop discipline as the rest of the long-running components:
// a done channel, a wait group and an idempotent Stop.
package watchdog
