package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteTick records one engine tick: how long it took and how many
// updates each pipeline stage produced.
//
// The write is non-blocking; points are batched and sent
// asynchronously.
func (c *Client) WriteTick(duration time.Duration, resolved, suppressed, dispatched int) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"engine_tick",
		map[string]string{},
		map[string]interface{}{
			"duration_us": duration.Microseconds(),
			"resolved":    resolved,
			"suppressed":  suppressed,
			"dispatched":  dispatched,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteDispatch records the outcome of one delivery chain.
//
// Parameters:
//   - deviceID: Device identifier
//   - success: Whether the payload was delivered
//   - attempts: How many sends the chain used
//   - elapsed: Wall time from first attempt to outcome
func (c *Client) WriteDispatch(deviceID string, success bool, attempts int, elapsed time.Duration) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"dispatch",
		map[string]string{
			"device_id": deviceID,
		},
		map[string]interface{}{
			"success":    success,
			"attempts":   attempts,
			"elapsed_us": elapsed.Microseconds(),
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteSafetyEvent records a watchdog state transition.
func (c *Client) WriteSafetyEvent(from, to, reason string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"safety",
		map[string]string{
			"from": from,
			"to":   to,
		},
		map[string]interface{}{
			"reason": reason,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}
