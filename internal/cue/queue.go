package cue

import "sync"

// Queue holds pending cues per device between dispatch ticks.
//
// Producers push concurrently and never block: each device's pending list
// is bounded, and the oldest cue is dropped first on overflow so memory
// stays bounded under producer bursts. The resolver drains a device's
// list once per tick.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Queue struct {
	mu       sync.Mutex
	capacity int
	pending  map[string][]Cue
	dropped  map[string]uint64
}

// NewQueue creates a queue with the given per-device capacity.
// Capacity values below 1 are treated as 1.
func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{
		capacity: capacity,
		pending:  make(map[string][]Cue),
		dropped:  make(map[string]uint64),
	}
}

// Push appends a cue to its device's pending list.
// If the list is full the oldest cue is discarded and counted.
func (q *Queue) Push(c Cue) {
	q.mu.Lock()
	defer q.mu.Unlock()

	list := q.pending[c.DeviceID]
	if len(list) >= q.capacity {
		// Drop-oldest keeps the freshest intent under bursts.
		over := len(list) - q.capacity + 1
		list = list[over:]
		q.dropped[c.DeviceID] += uint64(over)
	}
	q.pending[c.DeviceID] = append(list, c)
}

// Drain removes and returns all pending cues for a device, in arrival order.
// Returns nil if nothing is pending.
func (q *Queue) Drain(deviceID string) []Cue {
	q.mu.Lock()
	defer q.mu.Unlock()

	list := q.pending[deviceID]
	if len(list) == 0 {
		return nil
	}
	delete(q.pending, deviceID)
	return list
}

// Len returns the number of cues currently pending for a device.
func (q *Queue) Len(deviceID string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending[deviceID])
}

// Dropped returns the total number of cues discarded for a device since
// startup. Exposed for diagnostics and telemetry.
func (q *Queue) Dropped(deviceID string) uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped[deviceID]
}
