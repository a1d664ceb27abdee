package watchdog

import "errors"

var (
	// ErrHeartbeatLost indicates a producer missed its heartbeat window
	// and the watchdog escalated to panic.
	ErrHeartbeatLost = errors.New("watchdog: producer heartbeat lost")

	// ErrNotBlackedOut indicates a recovery was requested while the show
	// was not in the blackout-forced state.
	ErrNotBlackedOut = errors.New("watchdog: recovery only valid from forced blackout")

	// ErrAlreadyRunning indicates Start was called twice.
	ErrAlreadyRunning = errors.New("watchdog: already running")
)
