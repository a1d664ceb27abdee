package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/admiral-vulcan/musictolight-core/internal/cue"
	"github.com/admiral-vulcan/musictolight-core/internal/device"
	"github.com/admiral-vulcan/musictolight-core/internal/resolve"
)

// fakeAdapter counts sends per device and fails the devices named in
// failing. A positive delay simulates a slow transport.
type fakeAdapter struct {
	protocol device.ProtocolClass
	delay    time.Duration

	mu      sync.Mutex
	sends   map[string]int
	failing map[string]bool
}

func newFakeAdapter(protocol device.ProtocolClass) *fakeAdapter {
	return &fakeAdapter{
		protocol: protocol,
		sends:    make(map[string]int),
		failing:  make(map[string]bool),
	}
}

func (f *fakeAdapter) Protocol() device.ProtocolClass { return f.protocol }

func (f *fakeAdapter) Send(ctx context.Context, desc *device.Descriptor, p cue.Payload) error {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends[desc.ID]++
	if f.failing[desc.ID] {
		return ErrSendFailed
	}
	return nil
}

func (f *fakeAdapter) sendCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sends[id]
}

func dispatchRegistry(t *testing.T) *device.Registry {
	t.Helper()
	reg, err := device.NewRegistry([]device.Descriptor{
		{ID: "t36_spot", Protocol: device.ProtocolDMX, Host: "127.0.0.1", Port: 6454,
			BaseAddress: 24, Channels: 5, Capabilities: []cue.Kind{cue.KindColor}},
		{ID: "scanner_1", Protocol: device.ProtocolDMX, Host: "127.0.0.1", Port: 6454,
			BaseAddress: 1, Channels: 6, Capabilities: []cue.Kind{cue.KindMotion}},
	})
	if err != nil {
		t.Fatalf("NewRegistry() error: %v", err)
	}
	return reg
}

func dispatchStore(t *testing.T, reg *device.Registry) *device.StateStore {
	t.Helper()
	store := device.NewStateStore(reg, 3)
	for _, desc := range reg.All() {
		if err := store.ClearBlackout(desc.ID); err != nil {
			t.Fatalf("ClearBlackout(%s) error: %v", desc.ID, err)
		}
	}
	return store
}

func TestDispatcher_SuccessCommitsState(t *testing.T) {
	reg := dispatchRegistry(t)
	store := dispatchStore(t, reg)
	adapter := newFakeAdapter(device.ProtocolDMX)

	d := NewDispatcher(reg, store, []Adapter{adapter}, Options{
		Retries: 2, Backoff: time.Millisecond,
		SendTimeout: 50 * time.Millisecond, Deadline: time.Second,
	})

	payload := cue.Payload{Kind: cue.KindColor, Color: cue.RGB{R: 255}, Dimmer: 100}
	d.Dispatch(context.Background(), []resolve.Update{
		{DeviceID: "t36_spot", Payload: payload},
	})

	if got := adapter.sendCount("t36_spot"); got != 1 {
		t.Errorf("send count = %d, want 1", got)
	}
	rec, err := store.Current("t36_spot")
	if err != nil {
		t.Fatalf("Current() error: %v", err)
	}
	if !rec.Payload.Equal(payload) {
		t.Error("committed payload must match the delivered payload")
	}
	if rec.LastSent.IsZero() {
		t.Error("LastSent must be stamped on commit")
	}
	if rec.Failures != 0 {
		t.Errorf("failures = %d, want 0", rec.Failures)
	}
}

func TestDispatcher_RetriesThenMarksFailed(t *testing.T) {
	reg := dispatchRegistry(t)
	store := dispatchStore(t, reg)
	adapter := newFakeAdapter(device.ProtocolDMX)
	adapter.failing["t36_spot"] = true

	d := NewDispatcher(reg, store, []Adapter{adapter}, Options{
		Retries: 2, Backoff: time.Millisecond,
		SendTimeout: 50 * time.Millisecond, Deadline: time.Second,
	})

	var failedDevice string
	var failedErr error
	d.SetOnFailure(func(deviceID string, err error) {
		failedDevice = deviceID
		failedErr = err
	})

	d.Dispatch(context.Background(), []resolve.Update{
		{DeviceID: "t36_spot", Payload: cue.Payload{Kind: cue.KindColor, Color: cue.RGB{R: 255}}},
	})

	// Initial attempt plus two retries.
	if got := adapter.sendCount("t36_spot"); got != 3 {
		t.Errorf("send count = %d, want 3", got)
	}
	if failedDevice != "t36_spot" {
		t.Errorf("failure reported for %q, want t36_spot", failedDevice)
	}
	if !errors.Is(failedErr, ErrSendFailed) {
		t.Errorf("failure error = %v, want ErrSendFailed", failedErr)
	}
	rec, err := store.Current("t36_spot")
	if err != nil {
		t.Fatalf("Current() error: %v", err)
	}
	if rec.Failures != 1 {
		t.Errorf("failures = %d, want 1", rec.Failures)
	}
}

func TestDispatcher_FailureIsolation(t *testing.T) {
	// A dead device must not block or poison its neighbour's delivery.
	reg := dispatchRegistry(t)
	store := dispatchStore(t, reg)
	adapter := newFakeAdapter(device.ProtocolDMX)
	adapter.failing["t36_spot"] = true

	d := NewDispatcher(reg, store, []Adapter{adapter}, Options{
		Retries: 2, Backoff: time.Millisecond,
		SendTimeout: 50 * time.Millisecond, Deadline: time.Second,
	})

	motion := cue.Payload{Kind: cue.KindMotion, Pan: 80}
	d.Dispatch(context.Background(), []resolve.Update{
		{DeviceID: "t36_spot", Payload: cue.Payload{Kind: cue.KindColor, Color: cue.RGB{R: 255}}},
		{DeviceID: "scanner_1", Payload: motion},
	})

	scanner, err := store.Current("scanner_1")
	if err != nil {
		t.Fatalf("Current() error: %v", err)
	}
	if !scanner.Payload.Equal(motion) {
		t.Error("healthy device must commit despite its neighbour failing")
	}
	if scanner.Failures != 0 {
		t.Errorf("scanner failures = %d, want 0", scanner.Failures)
	}

	spot, err := store.Current("t36_spot")
	if err != nil {
		t.Fatalf("Current() error: %v", err)
	}
	if spot.Failures != 1 {
		t.Errorf("spot failures = %d, want 1", spot.Failures)
	}
}

func TestDispatcher_DeadlineDoesNotBlockOnStragglers(t *testing.T) {
	reg := dispatchRegistry(t)
	store := dispatchStore(t, reg)
	adapter := newFakeAdapter(device.ProtocolDMX)
	adapter.delay = 300 * time.Millisecond

	d := NewDispatcher(reg, store, []Adapter{adapter}, Options{
		Retries: 0, Backoff: time.Millisecond,
		SendTimeout: time.Second, Deadline: 20 * time.Millisecond,
	})

	var committed atomic.Bool
	d.SetOnResult(func(r Result) {
		if r.Err == nil {
			committed.Store(true)
		}
	})

	started := time.Now()
	d.Dispatch(context.Background(), []resolve.Update{
		{DeviceID: "t36_spot", Payload: cue.Payload{Kind: cue.KindColor, Color: cue.RGB{R: 255}}},
	})
	elapsed := time.Since(started)

	if elapsed > 200*time.Millisecond {
		t.Errorf("Dispatch blocked %v past its deadline", elapsed)
	}

	// The straggler still finishes in the background and commits.
	deadline := time.Now().Add(2 * time.Second)
	for !committed.Load() {
		if time.Now().After(deadline) {
			t.Fatal("abandoned delivery never completed")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestDispatcher_NoAdapterForProtocol(t *testing.T) {
	reg := dispatchRegistry(t)
	store := dispatchStore(t, reg)

	d := NewDispatcher(reg, store, nil, Options{
		Retries: 2, Backoff: time.Millisecond,
		SendTimeout: 50 * time.Millisecond, Deadline: time.Second,
	})

	var reported error
	d.SetOnFailure(func(_ string, err error) { reported = err })

	d.Dispatch(context.Background(), []resolve.Update{
		{DeviceID: "t36_spot", Payload: cue.Blackout()},
	})

	if !errors.Is(reported, ErrNoAdapter) {
		t.Errorf("reported error = %v, want ErrNoAdapter", reported)
	}
}
