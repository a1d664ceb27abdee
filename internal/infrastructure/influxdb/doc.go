// Package influxdb ships show telemetry to InfluxDB v2: engine tick
// timings, dispatch outcomes and safety transitions.
//
// Telemetry is optional and best-effort. When disabled in config the
// core runs without it; when the server is unreachable, writes are
// dropped by the batching layer and reported through SetOnError. The
// cue path never waits on a telemetry write.
package influxdb
