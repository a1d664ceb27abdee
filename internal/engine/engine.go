package engine

import (
	"context"
	"sync"
	"time"

	"github.com/admiral-vulcan/musictolight-core/internal/resolve"
)

// Dispatcher is the slice of the transport dispatcher the engine needs.
type Dispatcher interface {
	Dispatch(ctx context.Context, updates []resolve.Update)
}

// Logger is the interface the engine needs for diagnostics.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}

// TickStats summarises one tick for telemetry.
type TickStats struct {
	Duration   time.Duration
	Resolved   int
	Suppressed int
	Dispatched int
}

// Engine drives the fixed-period dispatch loop: snapshot modes,
// resolve pending cues, gate the survivors, hand them to the
// dispatcher.
//
// Panic needs no special casing here. The mode snapshot carries the
// panic flag into the resolver, which answers with forced blackouts;
// on later ticks the gate suppresses the already-committed blackout
// payloads, so a panicked show idles instead of hammering the rig.
type Engine struct {
	resolver   *resolve.Resolver
	gate       *resolve.Gate
	dispatcher Dispatcher
	modes      *resolve.ModeState

	tick   time.Duration
	logger Logger

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	callbackMutex sync.Mutex
	onTick        func(TickStats)
}

// New creates an engine. Call Start to begin ticking.
//
// Parameters:
//   - resolver: Conflict resolver draining the shared cue queue
//   - gate: Rate/change gate
//   - dispatcher: Transport dispatcher receiving survivors
//   - modes: Mode state snapshotted once per tick
//   - tick: Tick period
//   - logger: Logger instance (nil for no logging)
func New(resolver *resolve.Resolver, gate *resolve.Gate, dispatcher Dispatcher, modes *resolve.ModeState, tick time.Duration, logger Logger) *Engine {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Engine{
		resolver:   resolver,
		gate:       gate,
		dispatcher: dispatcher,
		modes:      modes,
		tick:       tick,
		logger:     logger,
		done:       make(chan struct{}),
	}
}

// SetOnTick registers a callback invoked with every tick's stats.
func (e *Engine) SetOnTick(fn func(TickStats)) {
	e.callbackMutex.Lock()
	defer e.callbackMutex.Unlock()
	e.onTick = fn
}

// Start launches the tick loop on its own goroutine.
func (e *Engine) Start(ctx context.Context) {
	e.logger.Info("engine starting", "tick", e.tick)
	e.wg.Add(1)
	go e.loop(ctx)
}

// Stop terminates the loop and waits for the current tick to finish.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.done) })
	e.wg.Wait()
	e.logger.Info("engine stopped")
}

func (e *Engine) loop(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.runTick(ctx)
		case <-e.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// runTick executes one resolve-gate-dispatch pass.
func (e *Engine) runTick(ctx context.Context) {
	started := time.Now()

	modes := e.modes.Snapshot()
	resolved := e.resolver.Resolve(modes)
	survivors := e.gate.Filter(started, resolved)
	if len(survivors) > 0 {
		e.dispatcher.Dispatch(ctx, survivors)
	}

	stats := TickStats{
		Duration:   time.Since(started),
		Resolved:   len(resolved),
		Suppressed: len(resolved) - len(survivors),
		Dispatched: len(survivors),
	}

	e.callbackMutex.Lock()
	onTick := e.onTick
	e.callbackMutex.Unlock()
	if onTick != nil {
		onTick(stats)
	}

	if stats.Duration > e.tick {
		e.logger.Debug("tick overran its period",
			"duration", stats.Duration, "tick", e.tick)
	}
}
