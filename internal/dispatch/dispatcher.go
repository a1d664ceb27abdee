package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/admiral-vulcan/musictolight-core/internal/device"
	"github.com/admiral-vulcan/musictolight-core/internal/resolve"
)

// Logger is the interface the dispatcher needs for diagnostics.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Result records the outcome of one delivery attempt chain.
type Result struct {
	TraceID  string
	DeviceID string
	Attempts int
	Elapsed  time.Duration
	Err      error
}

// Dispatcher fans resolved updates out to transport adapters, one
// goroutine per device, so a slow or dead device never delays the rest
// of the rig.
//
// Each delivery gets a bounded retry chain with exponential backoff.
// Success commits the payload to the state store; exhausting the chain
// marks the device failed and reports the failure upstream.
type Dispatcher struct {
	adapters map[device.ProtocolClass]Adapter
	registry *device.Registry
	store    *device.StateStore

	retries     int
	backoff     time.Duration
	sendTimeout time.Duration
	deadline    time.Duration

	logger Logger

	callbackMutex sync.Mutex
	onFailure     func(deviceID string, err error)
	onResult      func(Result)
}

// Options configures a Dispatcher.
type Options struct {
	// Retries is the number of re-attempts after the first failure.
	Retries int

	// Backoff is the delay before the first retry; it doubles per
	// attempt.
	Backoff time.Duration

	// SendTimeout bounds a single adapter send.
	SendTimeout time.Duration

	// Deadline bounds how long Dispatch waits for the whole batch.
	// Deliveries still in flight when it expires finish in the
	// background and commit or fail on their own.
	Deadline time.Duration

	// Logger receives diagnostics (nil for no logging).
	Logger Logger
}

// NewDispatcher creates a dispatcher over the given adapters.
//
// Parameters:
//   - registry: Device registry for descriptor lookup
//   - store: State store receiving commits and failure marks
//   - adapters: One adapter per protocol class in use
//   - opts: Retry, timeout and logging options
func NewDispatcher(registry *device.Registry, store *device.StateStore, adapters []Adapter, opts Options) *Dispatcher {
	byProtocol := make(map[device.ProtocolClass]Adapter, len(adapters))
	for _, a := range adapters {
		byProtocol[a.Protocol()] = a
	}
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	return &Dispatcher{
		adapters:    byProtocol,
		registry:    registry,
		store:       store,
		retries:     opts.Retries,
		backoff:     opts.Backoff,
		sendTimeout: opts.SendTimeout,
		deadline:    opts.Deadline,
		logger:      logger,
	}
}

// SetOnFailure registers a callback invoked when a delivery chain is
// exhausted. The safety watchdog uses it to track failing devices.
func (d *Dispatcher) SetOnFailure(fn func(deviceID string, err error)) {
	d.callbackMutex.Lock()
	defer d.callbackMutex.Unlock()
	d.onFailure = fn
}

// SetOnResult registers a callback invoked with every delivery outcome,
// successful or not. Telemetry hangs off this.
func (d *Dispatcher) SetOnResult(fn func(Result)) {
	d.callbackMutex.Lock()
	defer d.callbackMutex.Unlock()
	d.onResult = fn
}

// Dispatch delivers one tick's updates concurrently, one goroutine per
// device.
//
// It returns once every delivery has finished or the batch deadline has
// passed, whichever comes first. Late deliveries are abandoned, not
// cancelled: their outcome still lands in the state store so the next
// tick's gate sees the truth.
func (d *Dispatcher) Dispatch(ctx context.Context, updates []resolve.Update) {
	if len(updates) == 0 {
		return
	}

	traceID := uuid.NewString()
	var wg sync.WaitGroup
	for _, u := range updates {
		wg.Add(1)
		go func(u resolve.Update) {
			defer wg.Done()
			d.deliver(ctx, traceID, u)
		}(u)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(d.deadline)
	defer timer.Stop()

	select {
	case <-done:
	case <-timer.C:
		d.logger.Warn("dispatch deadline passed with deliveries in flight",
			"trace_id", traceID, "deadline", d.deadline)
	case <-ctx.Done():
	}
}

// deliver runs the retry chain for one device update.
func (d *Dispatcher) deliver(ctx context.Context, traceID string, u resolve.Update) {
	started := time.Now()

	desc, err := d.registry.Describe(u.DeviceID)
	if err != nil {
		d.logger.Error("dropping update", "error", err, "device", u.DeviceID, "trace_id", traceID)
		return
	}

	adapter, ok := d.adapters[desc.Protocol]
	if !ok {
		err := fmt.Errorf("%w: %s", ErrNoAdapter, desc.Protocol)
		d.logger.Error("dropping update", "error", err, "device", u.DeviceID, "trace_id", traceID)
		d.fail(traceID, u.DeviceID, 0, time.Since(started), err)
		return
	}

	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= d.retries; attempt++ {
		attempts++
		sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
		lastErr = adapter.Send(sendCtx, desc, u.Payload)
		cancel()

		if lastErr == nil {
			if err := d.store.Commit(u.DeviceID, u.Payload, time.Now()); err != nil {
				d.logger.Error("committing state", "error", err, "device", u.DeviceID)
			}
			d.emit(Result{
				TraceID:  traceID,
				DeviceID: u.DeviceID,
				Attempts: attempts,
				Elapsed:  time.Since(started),
			})
			return
		}

		if attempt == d.retries {
			break
		}
		wait := d.backoff << attempt
		d.logger.Debug("retrying delivery",
			"device", u.DeviceID, "attempt", attempts, "backoff", wait, "error", lastErr)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			lastErr = ctx.Err()
			attempt = d.retries
		}
	}

	d.fail(traceID, u.DeviceID, attempts, time.Since(started), lastErr)
}

// fail marks the device failed, reports upstream and emits the result.
func (d *Dispatcher) fail(traceID, deviceID string, attempts int, elapsed time.Duration, err error) {
	if !errors.Is(err, ErrSendFailed) && !errors.Is(err, ErrNoAdapter) {
		err = fmt.Errorf("%w: %v", ErrSendFailed, err)
	}

	rec, markErr := d.store.MarkFailed(deviceID)
	if markErr != nil {
		d.logger.Error("marking failure", "error", markErr, "device", deviceID)
	}
	d.logger.Warn("delivery failed",
		"device", deviceID,
		"attempts", attempts,
		"failures", rec.Failures,
		"availability", rec.Availability,
		"error", err,
		"trace_id", traceID,
	)

	d.callbackMutex.Lock()
	onFailure := d.onFailure
	d.callbackMutex.Unlock()
	if onFailure != nil {
		onFailure(deviceID, err)
	}

	d.emit(Result{
		TraceID:  traceID,
		DeviceID: deviceID,
		Attempts: attempts,
		Elapsed:  elapsed,
		Err:      err,
	})
}

func (d *Dispatcher) emit(r Result) {
	d.callbackMutex.Lock()
	onResult := d.onResult
	d.callbackMutex.Unlock()
	if onResult != nil {
		onResult(r)
	}
}
