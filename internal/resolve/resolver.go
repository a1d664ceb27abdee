package resolve

import (
	"github.com/admiral-vulcan/musictolight-core/internal/cue"
	"github.com/admiral-vulcan/musictolight-core/internal/device"
)

// Logger is the interface the resolver needs for diagnostics.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger discards all log output.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Update is the single winning intent for one device within one
// dispatch tick. It exists only for the duration of the tick.
type Update struct {
	DeviceID string
	Payload  cue.Payload

	// Priority of the winning cue; the gate compares it against the
	// critical threshold for rate-limit bypass.
	Priority int

	// Forced marks updates originating from panic handling or the
	// safety watchdog rather than from producer cues.
	Forced bool

	// Changed is set by the rate/change gate when the payload differs
	// from the device's last committed state.
	Changed bool

	// Source names the producer that won, for diagnostics.
	Source string
}

// Resolver merges concurrently pending cues into at most one Update per
// device per tick.
//
// Resolution is deterministic: highest priority wins, ties break to the
// newest timestamp, remaining ties to the lowest producer registration
// index. Identical inputs always yield identical outputs.
type Resolver struct {
	registry     *device.Registry
	queue        *cue.Queue
	chillCeiling uint8
	logger       Logger
}

// NewResolver creates a resolver over the given registry and cue queue.
//
// Parameters:
//   - registry: Device registry (iteration order = file order)
//   - queue: Pending cue queue shared with producers
//   - chillCeiling: Intensity ceiling applied to pattern/frame cues
//     while chill mode is active
//   - logger: Logger instance (nil for no logging)
func NewResolver(registry *device.Registry, queue *cue.Queue, chillCeiling uint8, logger Logger) *Resolver {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Resolver{
		registry:     registry,
		queue:        queue,
		chillCeiling: chillCeiling,
		logger:       logger,
	}
}

// Resolve runs one resolution pass over every registered device.
//
// Panic is checked first: when active, every device gets a forced
// blackout update and pending cues are discarded unread (they are stale
// by definition once the show has panicked).
//
// An empty pending set yields no update for that device; devices retain
// their last committed state absent new intent.
func (r *Resolver) Resolve(modes Modes) []Update {
	devices := r.registry.All()
	updates := make([]Update, 0, len(devices))

	for _, desc := range devices {
		if modes.Panic {
			// Discard whatever the producers queued; the watchdog has
			// already decided the outcome for this tick.
			r.queue.Drain(desc.ID)
			updates = append(updates, Update{
				DeviceID: desc.ID,
				Payload:  cue.Blackout(),
				Forced:   true,
				Source:   "panic",
			})
			continue
		}

		pending := r.queue.Drain(desc.ID)
		if len(pending) == 0 {
			continue
		}

		winner, ok := r.selectWinner(desc, pending)
		if !ok {
			continue
		}

		payload := winner.Payload
		if modes.Chill {
			payload = r.applyChill(payload)
		}
		if !modes.StrobeEnabled && payload.Kind == cue.KindColor && payload.Strobe > 0 {
			payload.Strobe = 0
		}

		updates = append(updates, Update{
			DeviceID: desc.ID,
			Payload:  payload,
			Priority: winner.Priority,
			Source:   winner.Source,
		})
	}

	return updates
}

// selectWinner filters unsupported kinds and picks the winning cue
// under the deterministic total order.
func (r *Resolver) selectWinner(desc *device.Descriptor, pending []cue.Cue) (cue.Cue, bool) {
	var winner cue.Cue
	found := false

	for _, c := range pending {
		if !desc.Accepts(c.Kind()) {
			r.logger.Warn("dropping cue",
				"error", ErrUnsupportedKind,
				"device", desc.ID,
				"kind", c.Kind(),
				"source", c.Source,
			)
			continue
		}
		if !found || c.Supersedes(winner) {
			winner = c
			found = true
		}
	}

	return winner, found
}

// applyChill clamps pattern and frame intensity to the configured
// ceiling. Other kinds pass through untouched.
func (r *Resolver) applyChill(p cue.Payload) cue.Payload {
	switch p.Kind {
	case cue.KindPattern, cue.KindFrame:
		if p.Intensity > r.chillCeiling {
			p = p.Clone()
			p.Intensity = r.chillCeiling
		}
	default:
	}
	return p
}
