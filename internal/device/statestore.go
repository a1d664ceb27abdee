package device

import (
	"fmt"
	"sync"
	"time"

	"github.com/admiral-vulcan/musictolight-core/internal/cue"
)

// StateStore owns every device's last-committed state. All other
// components read through it and never cache their own copy.
//
// Mutations are serialized per device: no two calls for the same device
// id interleave. Mutations across different devices proceed concurrently,
// which permits full fan-out parallelism during a dispatch tick.
//
// Records are created at construction with a blacked-out initial value
// (a device whose state we have never confirmed must be treated as dark)
// and are never deleted during the process lifetime.
type StateStore struct {
	threshold int

	// mu guards the map itself; each entry carries its own lock.
	// The map is never modified after construction, so reads only
	// need the RLock to satisfy the race detector on start-up order.
	mu     sync.RWMutex
	states map[string]*deviceState

	// onDegraded is invoked (outside the per-device lock) when repeated
	// failures flip a device to degraded. Optional.
	onDegraded   func(deviceID string, failures int)
	onDegradedMu sync.RWMutex
}

// deviceState pairs a record with its per-device lock.
type deviceState struct {
	mu   sync.Mutex
	safe cue.Payload
	rec  Record
}

// NewStateStore creates a store with one record per registered device.
//
// Parameters:
//   - registry: Source of device ids and safe payloads
//   - failureThreshold: Consecutive failures after which a device is
//     marked degraded (default 3)
func NewStateStore(registry *Registry, failureThreshold int) *StateStore {
	if failureThreshold < 1 {
		failureThreshold = 3
	}

	s := &StateStore{
		threshold: failureThreshold,
		states:    make(map[string]*deviceState, registry.Count()),
	}

	for _, d := range registry.All() {
		s.states[d.ID] = &deviceState{
			safe: d.SafePayload(),
			rec: Record{
				Payload:      d.SafePayload(),
				Availability: AvailabilityBlackedOut,
			},
		}
	}

	return s
}

// SetOnDegraded registers a callback for degraded transitions.
// The callback runs outside the per-device lock.
func (s *StateStore) SetOnDegraded(fn func(deviceID string, failures int)) {
	s.onDegradedMu.Lock()
	s.onDegraded = fn
	s.onDegradedMu.Unlock()
}

// Current returns a copy of the device's state record.
func (s *StateStore) Current(deviceID string) (Record, error) {
	st, err := s.lookup(deviceID)
	if err != nil {
		return Record{}, err
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	return cloneRecord(st.rec), nil
}

// Commit atomically replaces the device's payload and timestamp and
// resets the failure counter after a successful dispatch.
//
// Availability follows the committed payload: a blackout commit marks
// the device blacked-out, a recovery commit (or any routine commit on a
// degraded device) restores it to up. Commits never clear blacked-out
// availability except through an explicit recovery payload; that is the
// gate's and watchdog's contract, enforced here as a second line.
func (s *StateStore) Commit(deviceID string, payload cue.Payload, at time.Time) error {
	st, err := s.lookup(deviceID)
	if err != nil {
		return err
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	st.rec.LastSent = at
	st.rec.Failures = 0

	switch payload.Kind {
	case cue.KindBlackout:
		st.rec.Payload = st.safe
		st.rec.Availability = AvailabilityBlackedOut
	case cue.KindRecover:
		st.rec.Payload = st.safe
		st.rec.Availability = AvailabilityUp
	default:
		st.rec.Payload = payload.Clone()
		if st.rec.Availability == AvailabilityDegraded {
			st.rec.Availability = AvailabilityUp
		}
	}

	return nil
}

// MarkFailed increments the device's consecutive-failure counter.
// When the counter exceeds the configured threshold the device flips to
// degraded and the onDegraded callback (if any) fires.
func (s *StateStore) MarkFailed(deviceID string) (Record, error) {
	st, err := s.lookup(deviceID)
	if err != nil {
		return Record{}, err
	}

	var degraded bool
	st.mu.Lock()
	st.rec.Failures++
	if st.rec.Failures > s.threshold && st.rec.Availability == AvailabilityUp {
		st.rec.Availability = AvailabilityDegraded
		degraded = true
	}
	rec := cloneRecord(st.rec)
	st.mu.Unlock()

	if degraded {
		s.onDegradedMu.RLock()
		fn := s.onDegraded
		s.onDegradedMu.RUnlock()
		if fn != nil {
			fn(deviceID, rec.Failures)
		}
	}

	return rec, nil
}

// MarkBlackedOut forces the device's record to its safe value.
// Called by the safety watchdog when it forces a blackout.
func (s *StateStore) MarkBlackedOut(deviceID string) error {
	st, err := s.lookup(deviceID)
	if err != nil {
		return err
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	st.rec.Payload = st.safe
	st.rec.Availability = AvailabilityBlackedOut
	return nil
}

// ClearBlackout restores a blacked-out device to up.
//
// The safety watchdog is the single authority permitted to call this;
// routine dispatch paths go through Commit with a recovery payload.
func (s *StateStore) ClearBlackout(deviceID string) error {
	st, err := s.lookup(deviceID)
	if err != nil {
		return err
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if st.rec.Availability == AvailabilityBlackedOut {
		st.rec.Availability = AvailabilityUp
		st.rec.Failures = 0
	}
	return nil
}

// Snapshot returns a copy of every device's record, keyed by id.
// Used by the status API; not part of the dispatch hot path.
func (s *StateStore) Snapshot() map[string]Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]Record, len(s.states))
	for id, st := range s.states {
		st.mu.Lock()
		out[id] = cloneRecord(st.rec)
		st.mu.Unlock()
	}
	return out
}

// lookup finds the per-device state entry.
func (s *StateStore) lookup(deviceID string) (*deviceState, error) {
	s.mu.RLock()
	st, ok := s.states[deviceID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDevice, deviceID)
	}
	return st, nil
}

// cloneRecord copies a record, including its payload frame.
func cloneRecord(r Record) Record {
	cpy := r
	cpy.Payload = r.Payload.Clone()
	return cpy
}
