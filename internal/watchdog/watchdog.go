package watchdog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/admiral-vulcan/musictolight-core/internal/cue"
	"github.com/admiral-vulcan/musictolight-core/internal/device"
	"github.com/admiral-vulcan/musictolight-core/internal/resolve"
)

// State is the watchdog's safety state.
type State string

const (
	// StateNormal: producers healthy, cues flow.
	StateNormal State = "normal"

	// StatePanic: escalation in progress, blackout fan-out underway.
	StatePanic State = "panic"

	// StateBlackoutForced: every device blacked out and held there
	// until an authorised recovery.
	StateBlackoutForced State = "blackout-forced"
)

// Transition describes one safety state change for the journal and the
// live broadcast hub.
type Transition struct {
	From   State
	To     State
	Reason string
	Actor  string
	At     time.Time
}

// Logger is the interface the watchdog needs for diagnostics.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Dispatcher is the slice of the transport dispatcher the watchdog
// needs to force blackouts without going through the resolver.
type Dispatcher interface {
	Dispatch(ctx context.Context, updates []resolve.Update)
}

// Watchdog supervises producer liveness and owns the show's safety
// state machine.
//
// Escalation path: a panic flag or a missed heartbeat moves Normal to
// Panic, the watchdog fans a forced blackout out to every device, marks
// them blacked out and settles in BlackoutForced. Only an authorised
// recovery call leaves that state; routine cue flow cannot.
//
// Thread Safety:
//   - All exported methods are safe for concurrent use.
type Watchdog struct {
	registry   *device.Registry
	store      *device.StateStore
	dispatcher Dispatcher
	modes      *resolve.ModeState

	heartbeatTimeout time.Duration
	checkInterval    time.Duration
	sources          []string

	logger Logger

	mu         sync.Mutex
	state      State
	since      time.Time
	heartbeats map[string]time.Time
	failures   uint64

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
	running  bool

	callbackMutex sync.Mutex
	onTransition  func(Transition)
}

// Options configures a Watchdog.
type Options struct {
	// HeartbeatTimeout is how long a producer may stay silent before
	// the watchdog escalates to panic.
	HeartbeatTimeout time.Duration

	// CheckInterval is how often heartbeats are inspected.
	CheckInterval time.Duration

	// Sources names the producers whose heartbeats are required.
	Sources []string

	// Logger receives diagnostics (nil for no logging).
	Logger Logger
}

// New creates a watchdog in the Normal state. Call Start to run the
// startup blackout and begin heartbeat supervision.
func New(registry *device.Registry, store *device.StateStore, dispatcher Dispatcher, modes *resolve.ModeState, opts Options) *Watchdog {
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	return &Watchdog{
		registry:         registry,
		store:            store,
		dispatcher:       dispatcher,
		modes:            modes,
		heartbeatTimeout: opts.HeartbeatTimeout,
		checkInterval:    opts.CheckInterval,
		sources:          opts.Sources,
		logger:           logger,
		state:            StateNormal,
		since:            time.Now(),
		heartbeats:       make(map[string]time.Time),
		done:             make(chan struct{}),
	}
}

// SetOnTransition registers a callback invoked on every safety state
// change. The journal and the websocket hub hang off this.
func (w *Watchdog) SetOnTransition(fn func(Transition)) {
	w.callbackMutex.Lock()
	defer w.callbackMutex.Unlock()
	w.onTransition = fn
}

// Start runs the startup blackout and launches the heartbeat check
// loop.
//
// The startup blackout puts every fixture in a known dark state before
// the first producer cue, then clears devices to available so routine
// cues can flow. A rig that comes up mid-pattern from a previous crash
// is the alternative.
func (w *Watchdog) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return ErrAlreadyRunning
	}
	w.running = true
	now := time.Now()
	for _, source := range w.sources {
		w.heartbeats[source] = now
	}
	w.mu.Unlock()

	w.dispatcher.Dispatch(ctx, w.blackoutUpdates("startup"))
	for _, desc := range w.registry.All() {
		if err := w.store.ClearBlackout(desc.ID); err != nil {
			w.logger.Error("clearing startup blackout", "error", err, "device", desc.ID)
		}
	}
	w.logger.Info("startup blackout complete", "devices", w.registry.Count())

	w.wg.Add(1)
	go w.checkLoop(ctx)
	return nil
}

// Stop terminates the heartbeat loop and waits for it to exit.
func (w *Watchdog) Stop() {
	w.stopOnce.Do(func() { close(w.done) })
	w.wg.Wait()
}

// Heartbeat records liveness for a producer source.
func (w *Watchdog) Heartbeat(source string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.heartbeats[source] = time.Now()
}

// State returns the current safety state.
func (w *Watchdog) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Status reports the safety state, how long it has held and the total
// transport failures seen.
func (w *Watchdog) Status() (state State, since time.Time, failures uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state, w.since, w.failures
}

// ReportFailure records a transport failure for diagnostics. The state
// store has already tracked the per-device consequence; the watchdog
// keeps the show-wide tally.
func (w *Watchdog) ReportFailure(deviceID string, err error) {
	w.mu.Lock()
	w.failures++
	total := w.failures
	w.mu.Unlock()
	w.logger.Warn("transport failure reported",
		"device", deviceID, "error", err, "total_failures", total)
}

// TriggerPanic escalates to panic and forces a blackout on every
// device. A no-op outside the Normal state.
func (w *Watchdog) TriggerPanic(ctx context.Context, reason, actor string) {
	w.mu.Lock()
	if w.state != StateNormal {
		w.mu.Unlock()
		return
	}
	w.state = StatePanic
	w.since = time.Now()
	w.mu.Unlock()

	w.modes.SetPanic(true)
	w.logger.Error("panic triggered", "reason", reason, "actor", actor)
	w.emit(Transition{From: StateNormal, To: StatePanic, Reason: reason, Actor: actor, At: time.Now()})

	// Blackout fan-out bypasses the resolver entirely; the dispatcher's
	// failure isolation still applies, so one dead fixture cannot stall
	// the rest of the rig going dark.
	w.dispatcher.Dispatch(ctx, w.blackoutUpdates("panic"))

	w.mu.Lock()
	for _, desc := range w.registry.All() {
		if err := w.store.MarkBlackedOut(desc.ID); err != nil {
			w.logger.Error("marking blackout", "error", err, "device", desc.ID)
		}
	}
	w.state = StateBlackoutForced
	w.since = time.Now()
	w.mu.Unlock()

	w.emit(Transition{From: StatePanic, To: StateBlackoutForced, Reason: reason, Actor: actor, At: time.Now()})
}

// Recover leaves the forced blackout after an authorised request.
//
// Returns ErrNotBlackedOut unless the show is in BlackoutForced. On
// success every device gets an explicit recovery write, returns to
// available, the panic flag clears and heartbeat windows restart from
// now. Claiming the Normal state up front makes a concurrent second
// Recover fail instead of double fanning out.
func (w *Watchdog) Recover(ctx context.Context, actor string) error {
	w.mu.Lock()
	if w.state != StateBlackoutForced {
		state := w.state
		w.mu.Unlock()
		return fmt.Errorf("%w: state %s", ErrNotBlackedOut, state)
	}
	now := time.Now()
	for _, source := range w.sources {
		w.heartbeats[source] = now
	}
	w.state = StateNormal
	w.since = now
	w.mu.Unlock()

	// Recovery fan-out outside the mutex, like the panic fan-out: a
	// committed recovery write puts each device back to available with
	// its safe value on the wire. ClearBlackout covers any device whose
	// send failed.
	w.dispatcher.Dispatch(ctx, w.recoveryUpdates(actor))
	for _, desc := range w.registry.All() {
		if err := w.store.ClearBlackout(desc.ID); err != nil {
			w.logger.Error("clearing blackout", "error", err, "device", desc.ID)
		}
	}

	w.modes.SetPanic(false)
	w.logger.Info("show recovered", "actor", actor)
	w.emit(Transition{From: StateBlackoutForced, To: StateNormal, Reason: "recovery", Actor: actor, At: now})
	return nil
}

// checkLoop inspects heartbeats until Stop or context cancellation.
func (w *Watchdog) checkLoop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.checkHeartbeats(ctx)
		case <-w.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// checkHeartbeats escalates if any required source went silent.
func (w *Watchdog) checkHeartbeats(ctx context.Context) {
	w.mu.Lock()
	if w.state != StateNormal {
		w.mu.Unlock()
		return
	}
	var silent string
	var last time.Time
	now := time.Now()
	for _, source := range w.sources {
		hb := w.heartbeats[source]
		if now.Sub(hb) > w.heartbeatTimeout {
			silent = source
			last = hb
			break
		}
	}
	w.mu.Unlock()

	if silent == "" {
		return
	}
	reason := fmt.Sprintf("%v: %s silent for %v", ErrHeartbeatLost, silent, now.Sub(last).Round(time.Millisecond))
	w.TriggerPanic(ctx, reason, "watchdog")
}

// recoveryUpdates builds the forced recovery write for every device.
func (w *Watchdog) recoveryUpdates(actor string) []resolve.Update {
	devices := w.registry.All()
	updates := make([]resolve.Update, 0, len(devices))
	for _, desc := range devices {
		updates = append(updates, resolve.Update{
			DeviceID: desc.ID,
			Payload:  cue.Recovery(),
			Forced:   true,
			Source:   "recovery:" + actor,
		})
	}
	return updates
}

// blackoutUpdates builds a forced blackout for every registered device.
func (w *Watchdog) blackoutUpdates(source string) []resolve.Update {
	devices := w.registry.All()
	updates := make([]resolve.Update, 0, len(devices))
	for _, desc := range devices {
		updates = append(updates, resolve.Update{
			DeviceID: desc.ID,
			Payload:  cue.Blackout(),
			Forced:   true,
			Source:   source,
		})
	}
	return updates
}

func (w *Watchdog) emit(t Transition) {
	w.callbackMutex.Lock()
	fn := w.onTransition
	w.callbackMutex.Unlock()
	if fn != nil {
		fn(t)
	}
}
