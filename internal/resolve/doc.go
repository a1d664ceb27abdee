// Package resolve turns concurrently pending cues into at most one
// update per device per dispatch tick.
//
// Architecture:
//
//	┌─────────────────────────────────────────────────────┐
//	│            Resolver (resolver.go)                    │
//	│  per tick, per device:                               │
//	│  1. panic? → forced blackout, skip everything else   │
//	│  2. drain bounded pending queue                      │
//	│  3. drop unsupported kinds (logged, not fatal)       │
//	│  4. pick winner: priority ↓, timestamp ↓, producer ↑ │
//	│  5. chill mode clamps pattern/frame intensity        │
//	└──────────────────────┬──────────────────────────────┘
//	                       ▼
//	┌─────────────────────────────────────────────────────┐
//	│               Gate (gate.go)                         │
//	│  blackout guard → identical-payload suppression →    │
//	│  min-interval rate limit (critical bypasses)         │
//	└─────────────────────────────────────────────────────┘
//
// ModeState (modes.go) carries the global show flags (panic, chill,
// strobe, colour selection) as a versioned struct; the engine snapshots
// it once per tick so resolution never sees a torn read.
//
// # Thread Safety
//
// ModeState is safe for concurrent use. Resolver and Gate are driven
// from the single engine tick goroutine; their inputs (queue, store)
// are themselves concurrency-safe.
package resolve
