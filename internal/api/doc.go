// Package api exposes the operator-facing control surface over HTTP
// and WebSocket.
//
// Routes:
//
//	GET  /v1/status    safety state, device availability summary
//	GET  /v1/devices   registry entries with live state
//	GET  /v1/journal   safety event history (?limit=N)
//	POST /v1/panic     force a show-wide blackout (unauthenticated)
//	POST /v1/recover   leave the forced blackout (JWT, operator role)
//	GET  /v1/ws        live feed of availability changes and transitions
//
// The asymmetry between panic and recover is deliberate: anyone on the
// network may stop the show, but only an authenticated operator may
// bring it back after a forced blackout.
package api
