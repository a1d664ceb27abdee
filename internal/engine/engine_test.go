package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/admiral-vulcan/musictolight-core/internal/cue"
	"github.com/admiral-vulcan/musictolight-core/internal/device"
	"github.com/admiral-vulcan/musictolight-core/internal/resolve"
)

// captureDispatcher records every dispatched batch and commits it so
// the gate's suppression sees realistic committed state.
type captureDispatcher struct {
	store *device.StateStore

	mu      sync.Mutex
	batches [][]resolve.Update
}

func (c *captureDispatcher) Dispatch(_ context.Context, updates []resolve.Update) {
	c.mu.Lock()
	c.batches = append(c.batches, updates)
	c.mu.Unlock()
	for _, u := range updates {
		_ = c.store.Commit(u.DeviceID, u.Payload, time.Now())
	}
}

func (c *captureDispatcher) batchCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.batches)
}

func engineFixture(t *testing.T) (*Engine, *cue.Queue, *captureDispatcher, *resolve.ModeState, *device.StateStore) {
	t.Helper()
	reg, err := device.NewRegistry([]device.Descriptor{
		{ID: "t36_spot", Protocol: device.ProtocolDMX, Host: "127.0.0.1", Port: 6454,
			BaseAddress: 24, Channels: 5, Capabilities: []cue.Kind{cue.KindColor}},
	})
	if err != nil {
		t.Fatalf("NewRegistry() error: %v", err)
	}
	store := device.NewStateStore(reg, 3)
	if err := store.ClearBlackout("t36_spot"); err != nil {
		t.Fatalf("ClearBlackout() error: %v", err)
	}

	queue := cue.NewQueue(8)
	resolver := resolve.NewResolver(reg, queue, 128, nil)
	gate := resolve.NewGate(reg, store, 90, nil)
	disp := &captureDispatcher{store: store}
	modes := resolve.NewModeState()

	e := New(resolver, gate, disp, modes, 5*time.Millisecond, nil)
	return e, queue, disp, modes, store
}

func TestEngine_TickDispatchesPendingCue(t *testing.T) {
	e, queue, disp, _, _ := engineFixture(t)

	queue.Push(cue.Cue{
		DeviceID: "t36_spot", Priority: 1, At: time.Now(), Source: "show",
		Payload: cue.Payload{Kind: cue.KindColor, Color: cue.RGB{R: 255}, Dimmer: 200},
	})

	e.Start(context.Background())
	defer e.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for disp.batchCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("engine never dispatched the pending cue")
		}
		time.Sleep(5 * time.Millisecond)
	}

	disp.mu.Lock()
	first := disp.batches[0]
	disp.mu.Unlock()
	if len(first) != 1 || first[0].DeviceID != "t36_spot" {
		t.Errorf("first batch = %+v", first)
	}
	if !first[0].Changed {
		t.Error("dispatched updates must have passed the gate")
	}
}

func TestEngine_IdleTicksDispatchNothing(t *testing.T) {
	e, _, disp, _, _ := engineFixture(t)

	e.Start(context.Background())
	time.Sleep(50 * time.Millisecond)
	e.Stop()

	if disp.batchCount() != 0 {
		t.Errorf("idle engine dispatched %d batches, want 0", disp.batchCount())
	}
}

func TestEngine_PanicSettlesAfterOneBlackout(t *testing.T) {
	e, queue, disp, modes, store := engineFixture(t)

	// The spot is lit when the panic hits.
	lit := cue.Payload{Kind: cue.KindColor, Color: cue.RGB{R: 255}, Dimmer: 200}
	if err := store.Commit("t36_spot", lit, time.Now()); err != nil {
		t.Fatalf("Commit() error: %v", err)
	}
	modes.SetPanic(true)

	queue.Push(cue.Cue{
		DeviceID: "t36_spot", Priority: 99, At: time.Now(),
		Payload: cue.Payload{Kind: cue.KindColor, Color: cue.RGB{G: 255}},
	})

	e.Start(context.Background())
	time.Sleep(100 * time.Millisecond)
	e.Stop()

	// First tick dispatches the forced blackout; later ticks suppress
	// the identical payload instead of re-sending it.
	if disp.batchCount() != 1 {
		t.Fatalf("dispatched %d batches under panic, want exactly 1", disp.batchCount())
	}
	disp.mu.Lock()
	first := disp.batches[0]
	disp.mu.Unlock()
	if first[0].Payload.Kind != cue.KindBlackout {
		t.Errorf("panic dispatch kind = %q, want blackout", first[0].Payload.Kind)
	}
}

func TestEngine_OnTickStats(t *testing.T) {
	e, queue, _, _, _ := engineFixture(t)

	var mu sync.Mutex
	var stats []TickStats
	e.SetOnTick(func(s TickStats) {
		mu.Lock()
		stats = append(stats, s)
		mu.Unlock()
	})

	queue.Push(cue.Cue{
		DeviceID: "t36_spot", Priority: 1, At: time.Now(),
		Payload: cue.Payload{Kind: cue.KindColor, Color: cue.RGB{B: 255}, Dimmer: 100},
	})

	e.Start(context.Background())
	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(stats)
		mu.Unlock()
		if n >= 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("engine never reported tick stats")
		}
		time.Sleep(5 * time.Millisecond)
	}
	e.Stop()

	mu.Lock()
	defer mu.Unlock()
	if stats[0].Resolved != 1 || stats[0].Dispatched != 1 {
		t.Errorf("first tick stats = %+v, want 1 resolved, 1 dispatched", stats[0])
	}
}

func TestEngine_StopIsIdempotent(t *testing.T) {
	e, _, _, _, _ := engineFixture(t)
	e.Start(context.Background())
	e.Stop()
	e.Stop()
}
