package resolve

import (
	"sync"

	"github.com/admiral-vulcan/musictolight-core/internal/cue"
)

// Modes is an immutable snapshot of the global show mode flags.
//
// The resolver takes one snapshot per dispatch tick, so a mid-tick
// change never produces a torn read. Version increases on every change
// and lets diagnostics correlate decisions with mode updates.
//
// Invariant: Panic, when true, overrides every other flag and forces
// blackout updates for all devices regardless of pending cues.
type Modes struct {
	Version       uint64
	Panic         bool
	Chill         bool
	StrobeEnabled bool
	Primary       cue.RGB
	Secondary     cue.RGB
}

// Delta is a partial mode update from the show-state feed.
// Nil fields are left unchanged; set fields are last-write-wins.
type Delta struct {
	Panic         *bool
	Chill         *bool
	StrobeEnabled *bool
	Primary       *cue.RGB
	Secondary     *cue.RGB
}

// ModeState holds the current show modes behind a lock.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type ModeState struct {
	mu  sync.RWMutex
	cur Modes
}

// NewModeState returns mode state with show defaults: strobe allowed,
// red/blue colour selection, no panic, no chill.
func NewModeState() *ModeState {
	return &ModeState{
		cur: Modes{
			StrobeEnabled: true,
			Primary:       cue.RGB{R: 255},
			Secondary:     cue.RGB{B: 255},
		},
	}
}

// Snapshot returns the current modes by value.
func (m *ModeState) Snapshot() Modes {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cur
}

// Apply merges a delta into the current modes, last-write-wins per
// field, and returns the resulting snapshot.
func (m *ModeState) Apply(d Delta) Modes {
	m.mu.Lock()
	defer m.mu.Unlock()

	if d.Panic != nil {
		m.cur.Panic = *d.Panic
	}
	if d.Chill != nil {
		m.cur.Chill = *d.Chill
	}
	if d.StrobeEnabled != nil {
		m.cur.StrobeEnabled = *d.StrobeEnabled
	}
	if d.Primary != nil {
		m.cur.Primary = *d.Primary
	}
	if d.Secondary != nil {
		m.cur.Secondary = *d.Secondary
	}
	m.cur.Version++
	return m.cur
}

// SetPanic sets or clears the panic flag and returns the new snapshot.
func (m *ModeState) SetPanic(on bool) Modes {
	return m.Apply(Delta{Panic: &on})
}
