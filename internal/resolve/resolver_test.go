package resolve

import (
	"testing"
	"time"

	"github.com/admiral-vulcan/musictolight-core/internal/cue"
	"github.com/admiral-vulcan/musictolight-core/internal/device"
)

func testRegistry(t *testing.T) *device.Registry {
	t.Helper()
	reg, err := device.NewRegistry([]device.Descriptor{
		{
			ID: "scanner_1", Protocol: device.ProtocolDMX,
			Host: "192.168.1.151", Port: 6454,
			BaseAddress: 1, Channels: 6,
			Capabilities:  []cue.Kind{cue.KindMotion, cue.KindPattern},
			MinIntervalMS: 50,
		},
		{
			ID: "t36_spot", Protocol: device.ProtocolDMX,
			Host: "192.168.1.151", Port: 6454,
			BaseAddress: 24, Channels: 5,
			Capabilities:  []cue.Kind{cue.KindColor},
			MinIntervalMS: 33,
		},
		{
			ID: "strip_main", Protocol: device.ProtocolPixelUDP,
			Host: "192.168.1.153", Port: 4210, Pixels: 270,
			Capabilities:  []cue.Kind{cue.KindFrame, cue.KindColor, cue.KindPattern},
			MinIntervalMS: 50,
		},
	})
	if err != nil {
		t.Fatalf("NewRegistry() error: %v", err)
	}
	return reg
}

func TestResolver_PriorityWinsOverRecency(t *testing.T) {
	// Scenario: {priority 1, pan=10, t=100} vs {priority 5, pan=80, t=95}
	// → pan=80 wins (priority beats recency).
	reg := testRegistry(t)
	q := cue.NewQueue(8)
	r := NewResolver(reg, q, 128, nil)

	base := time.Now()
	q.Push(cue.Cue{
		DeviceID: "scanner_1", Priority: 5, At: base.Add(95 * time.Millisecond),
		Payload: cue.Payload{Kind: cue.KindMotion, Pan: 80},
	})
	q.Push(cue.Cue{
		DeviceID: "scanner_1", Priority: 1, At: base.Add(100 * time.Millisecond),
		Payload: cue.Payload{Kind: cue.KindMotion, Pan: 10},
	})

	updates := r.Resolve(Modes{})
	if len(updates) != 1 {
		t.Fatalf("expected 1 update, got %d", len(updates))
	}
	if updates[0].Payload.Pan != 80 {
		t.Errorf("pan = %d, want 80 (priority must beat recency)", updates[0].Payload.Pan)
	}
}

func TestResolver_Determinism(t *testing.T) {
	// Identical pending sets must produce identical winners, every time.
	reg := testRegistry(t)
	base := time.Now()

	pending := []cue.Cue{
		{DeviceID: "strip_main", Priority: 3, ProducerIndex: 1, At: base, Source: "show",
			Payload: cue.Payload{Kind: cue.KindColor, Color: cue.RGB{G: 255}}},
		{DeviceID: "strip_main", Priority: 3, ProducerIndex: 0, At: base, Source: "audio",
			Payload: cue.Payload{Kind: cue.KindColor, Color: cue.RGB{R: 255}}},
		{DeviceID: "strip_main", Priority: 2, ProducerIndex: 0, At: base.Add(time.Second), Source: "audio",
			Payload: cue.Payload{Kind: cue.KindColor, Color: cue.RGB{B: 255}}},
	}

	const runs = 50
	for i := 0; i < runs; i++ {
		q := cue.NewQueue(8)
		r := NewResolver(reg, q, 128, nil)
		for _, c := range pending {
			q.Push(c)
		}

		updates := r.Resolve(Modes{})
		if len(updates) != 1 {
			t.Fatalf("run %d: expected 1 update, got %d", i, len(updates))
		}
		// Equal priority and timestamp: producer index 0 must win.
		if updates[0].Payload.Color != (cue.RGB{R: 255}) {
			t.Fatalf("run %d: winner colour = %+v, want producer 0's red", i, updates[0].Payload.Color)
		}
		if updates[0].Source != "audio" {
			t.Fatalf("run %d: winner source = %q, want audio", i, updates[0].Source)
		}
	}
}

func TestResolver_PanicPrecedence(t *testing.T) {
	// Scenario: panic=true with a pending red cue → blackout, not red.
	reg := testRegistry(t)
	q := cue.NewQueue(8)
	r := NewResolver(reg, q, 128, nil)

	q.Push(cue.Cue{
		DeviceID: "t36_spot", Priority: 99, At: time.Now(),
		Payload: cue.Payload{Kind: cue.KindColor, Color: cue.RGB{R: 255}},
	})

	updates := r.Resolve(Modes{Panic: true})
	if len(updates) != reg.Count() {
		t.Fatalf("panic must force one update per device: got %d, want %d",
			len(updates), reg.Count())
	}
	for _, u := range updates {
		if u.Payload.Kind != cue.KindBlackout {
			t.Errorf("%s: kind = %q, want blackout", u.DeviceID, u.Payload.Kind)
		}
		if !u.Forced {
			t.Errorf("%s: panic updates must be forced", u.DeviceID)
		}
	}

	// The pending red cue must not survive the panic tick.
	if q.Len("t36_spot") != 0 {
		t.Error("pending cues must be discarded under panic")
	}
}

func TestResolver_EmptyQueueMeansNoUpdate(t *testing.T) {
	reg := testRegistry(t)
	q := cue.NewQueue(8)
	r := NewResolver(reg, q, 128, nil)

	updates := r.Resolve(Modes{})
	if len(updates) != 0 {
		t.Errorf("no pending cues must yield no updates (not blackouts), got %d", len(updates))
	}
}

func TestResolver_UnsupportedKindDropped(t *testing.T) {
	reg := testRegistry(t)
	q := cue.NewQueue(8)
	r := NewResolver(reg, q, 128, nil)

	// scanner_1 accepts motion/pattern, not color.
	q.Push(cue.Cue{
		DeviceID: "scanner_1", Priority: 9, At: time.Now(),
		Payload: cue.Payload{Kind: cue.KindColor, Color: cue.RGB{R: 255}},
	})
	q.Push(cue.Cue{
		DeviceID: "scanner_1", Priority: 1, At: time.Now(),
		Payload: cue.Payload{Kind: cue.KindMotion, Pan: 40},
	})

	updates := r.Resolve(Modes{})
	if len(updates) != 1 {
		t.Fatalf("expected 1 update, got %d", len(updates))
	}
	// The higher-priority colour cue is unsupported; motion must win.
	if updates[0].Payload.Kind != cue.KindMotion {
		t.Errorf("kind = %q, want motion", updates[0].Payload.Kind)
	}
}

func TestResolver_ChillClampsIntensity(t *testing.T) {
	reg := testRegistry(t)

	tests := []struct {
		name      string
		chill     bool
		payload   cue.Payload
		wantLevel uint8
	}{
		{
			name:      "pattern clamped under chill",
			chill:     true,
			payload:   cue.Payload{Kind: cue.KindPattern, Pattern: 3, Intensity: 255},
			wantLevel: 128,
		},
		{
			name:      "frame clamped under chill",
			chill:     true,
			payload:   cue.Payload{Kind: cue.KindFrame, Frame: []byte{1}, Intensity: 200},
			wantLevel: 128,
		},
		{
			name:      "below ceiling untouched",
			chill:     true,
			payload:   cue.Payload{Kind: cue.KindPattern, Intensity: 100},
			wantLevel: 100,
		},
		{
			name:      "no chill no clamp",
			chill:     false,
			payload:   cue.Payload{Kind: cue.KindPattern, Intensity: 255},
			wantLevel: 255,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := cue.NewQueue(8)
			r := NewResolver(reg, q, 128, nil)
			q.Push(cue.Cue{DeviceID: "strip_main", Priority: 1, At: time.Now(), Payload: tt.payload})

			updates := r.Resolve(Modes{Chill: tt.chill})
			if len(updates) != 1 {
				t.Fatalf("expected 1 update, got %d", len(updates))
			}
			if updates[0].Payload.Intensity != tt.wantLevel {
				t.Errorf("intensity = %d, want %d", updates[0].Payload.Intensity, tt.wantLevel)
			}
		})
	}
}

func TestResolver_StrobeDisabledZeroesStrobe(t *testing.T) {
	reg := testRegistry(t)
	q := cue.NewQueue(8)
	r := NewResolver(reg, q, 128, nil)

	q.Push(cue.Cue{
		DeviceID: "t36_spot", Priority: 1, At: time.Now(),
		Payload: cue.Payload{Kind: cue.KindColor, Color: cue.RGB{R: 255}, Strobe: 180},
	})

	updates := r.Resolve(Modes{StrobeEnabled: false})
	if len(updates) != 1 {
		t.Fatalf("expected 1 update, got %d", len(updates))
	}
	if updates[0].Payload.Strobe != 0 {
		t.Errorf("strobe = %d, want 0 when strobe mode is disabled", updates[0].Payload.Strobe)
	}
}

func TestModeState_ApplyLastWriteWins(t *testing.T) {
	m := NewModeState()
	v0 := m.Snapshot().Version

	on := true
	m.Apply(Delta{Chill: &on})
	off := false
	snap := m.Apply(Delta{Chill: &off})

	if snap.Chill {
		t.Error("chill should reflect the last write")
	}
	if snap.Version != v0+2 {
		t.Errorf("version = %d, want %d", snap.Version, v0+2)
	}
	if !snap.StrobeEnabled {
		t.Error("unset fields must be preserved")
	}
}
