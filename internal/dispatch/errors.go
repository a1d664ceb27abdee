package dispatch

import "errors"

var (
	// ErrNoAdapter indicates no transport adapter is registered for the
	// device's protocol class.
	ErrNoAdapter = errors.New("dispatch: no adapter for protocol")

	// ErrSendFailed indicates the transport adapter could not deliver
	// the payload after all retries.
	ErrSendFailed = errors.New("dispatch: send failed")

	// ErrPayloadTooLarge indicates an encoded payload exceeds the
	// device's declared maximum.
	ErrPayloadTooLarge = errors.New("dispatch: payload exceeds device maximum")
)
