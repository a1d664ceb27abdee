// Package dispatch delivers resolved device updates over the rig's
// native transports.
//
// Architecture:
//
//	┌──────────────────────────────────────────────────┐
//	│           Dispatcher (dispatcher.go)              │
//	│  one goroutine per device per tick                │
//	│  retry chain with exponential backoff             │
//	│  success → state store commit                     │
//	│  exhausted → mark failed, report upstream         │
//	└───────┬──────────────┬───────────────┬───────────┘
//	        ▼              ▼               ▼
//	┌─────────────┐ ┌─────────────┐ ┌──────────────┐
//	│ ArtNet      │ │ Pixel       │ │ Trigger      │
//	│ (artnet.go) │ │ (pixel.go)  │ │ (trigger.go) │
//	│ Art-DMX/UDP │ │ "mls_" UDP  │ │ text UDP     │
//	└─────────────┘ └─────────────┘ └──────────────┘
//
// Failure isolation is the package's core guarantee: a dead fixture
// burns its own retry chain while every other device's delivery
// proceeds untouched, and the batch deadline caps how long one tick
// can wait on stragglers.
package dispatch
