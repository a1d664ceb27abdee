package resolve

import (
	"time"

	"github.com/admiral-vulcan/musictolight-core/internal/cue"
	"github.com/admiral-vulcan/musictolight-core/internal/device"
)

// Gate suppresses redundant or over-frequent updates before they reach
// the transport dispatcher.
//
// Three rules, applied in order per update:
//  1. A blacked-out device accepts only blackout/recovery updates;
//     routine updates are suppressed so blackout never flaps.
//  2. A payload bit-for-bit identical to the last committed state is
//     suppressed (no network traffic for unchanged state).
//  3. An update inside the device's minimum inter-update interval is
//     suppressed unless its priority exceeds the critical threshold or
//     it is a blackout/recovery/forced update.
type Gate struct {
	registry         *device.Registry
	store            *device.StateStore
	criticalPriority int
	logger           Logger
}

// NewGate creates a gate over the given registry and state store.
//
// Parameters:
//   - registry: Device registry for rate-limit lookup
//   - store: State store holding last committed payloads
//   - criticalPriority: Priority above which rate limiting is bypassed
//   - logger: Logger instance (nil for no logging)
func NewGate(registry *device.Registry, store *device.StateStore, criticalPriority int, logger Logger) *Gate {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Gate{
		registry:         registry,
		store:            store,
		criticalPriority: criticalPriority,
		logger:           logger,
	}
}

// Filter returns the updates that survive suppression, with Changed set.
//
// Suppression decisions for one device never affect another; a lookup
// failure drops that update only.
func (g *Gate) Filter(now time.Time, updates []Update) []Update {
	survivors := make([]Update, 0, len(updates))

	for _, u := range updates {
		if g.pass(now, &u) {
			u.Changed = true
			survivors = append(survivors, u)
		}
	}

	return survivors
}

// pass applies the suppression rules to a single update.
func (g *Gate) pass(now time.Time, u *Update) bool {
	rec, err := g.store.Current(u.DeviceID)
	if err != nil {
		g.logger.Warn("dropping update", "error", err, "device", u.DeviceID)
		return false
	}

	critical := u.Forced || u.Priority > g.criticalPriority ||
		u.Payload.Kind == cue.KindBlackout || u.Payload.Kind == cue.KindRecover

	// Rule 1: blacked-out devices only leave that state via an explicit
	// recovery; routine updates must not resurrect them.
	if rec.Availability == device.AvailabilityBlackedOut {
		if u.Payload.Kind != cue.KindBlackout && u.Payload.Kind != cue.KindRecover {
			g.logger.Debug("suppressing update for blacked-out device",
				"device", u.DeviceID, "kind", u.Payload.Kind)
			return false
		}
	}

	// Degraded devices receive only critical updates.
	if rec.Availability == device.AvailabilityDegraded && !critical {
		g.logger.Debug("suppressing non-critical update for degraded device",
			"device", u.DeviceID)
		return false
	}

	// Rule 2: identical payload, nothing to send.
	if u.Payload.Equal(rec.Payload) {
		return false
	}

	// Rule 3: minimum inter-update interval, unless critical.
	if !critical {
		desc, err := g.registry.Describe(u.DeviceID)
		if err != nil {
			g.logger.Warn("dropping update", "error", err, "device", u.DeviceID)
			return false
		}
		if !rec.LastSent.IsZero() && now.Sub(rec.LastSent) < desc.MinInterval() {
			g.logger.Debug("suppressing over-frequent update",
				"device", u.DeviceID,
				"elapsed", now.Sub(rec.LastSent),
				"min_interval", desc.MinInterval(),
			)
			return false
		}
	}

	return true
}
