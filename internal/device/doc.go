// Package device holds the static device registry and the per-device
// state store for the dispatch core.
//
// The Registry maps logical device ids to immutable descriptors loaded
// once at startup from a YAML file; it has no logic beyond lookup and is
// lock-free because it never changes after load.
//
// The StateStore is the single owner of last-committed device state.
// Every mutation for a given device id is serialized behind that
// device's lock while different devices proceed concurrently, which is
// what lets the transport dispatcher fan out one goroutine per device
// without interleaving anyone's bookkeeping.
//
// # Key Types
//
//   - Descriptor: immutable device description (protocol, addressing,
//     capabilities, rate limit)
//   - Registry: id → Descriptor lookup, insertion order preserved
//   - Record: last committed payload, last-sent time, failure counter,
//     availability (up / degraded / blacked-out)
//   - StateStore: serialized-per-device mutation of Records
package device
