// Package mqtt wraps paho.mqtt.golang for the core's broker traffic.
//
// Topic scheme:
//
//	mtl/audio/state        audio analysis feed (in)
//	mtl/show/state         operator show control feed (in)
//	mtl/heartbeat/+        producer liveness (in)
//	mtl/system/status      core online/offline, retained + LWT (out)
//	mtl/device/{id}/state  device availability, retained (out)
//
// The client restores subscriptions after a reconnect and recovers
// from handler panics, so a malformed feed message cannot take the
// whole core down.
package mqtt
