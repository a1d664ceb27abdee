package mqtt

import "strings"

// topicPrefix roots every topic the core publishes or subscribes to.
const topicPrefix = "mtl"

// Topics builds the topic strings used across the core. A struct
// rather than free functions so call sites read as a namespace:
//
//	mqtt.Topics{}.AudioState()
type Topics struct{}

// AudioState is the audio analysis feed: RMS, peak and band energy
// published by the listener process.
func (Topics) AudioState() string {
	return topicPrefix + "/audio/state"
}

// ShowState is the operator-facing show control feed: colour
// selection, chill, strobe and panic flags.
func (Topics) ShowState() string {
	return topicPrefix + "/show/state"
}

// Heartbeat is the liveness topic for one producer source.
func (Topics) Heartbeat(source string) string {
	return topicPrefix + "/heartbeat/" + source
}

// AllHeartbeats matches every producer's heartbeat topic.
func (Topics) AllHeartbeats() string {
	return topicPrefix + "/heartbeat/+"
}

// SystemStatus carries the core's online/offline status, retained so
// late subscribers see the current state. The broker publishes the
// LWT here on an unexpected disconnect.
func (Topics) SystemStatus() string {
	return topicPrefix + "/system/status"
}

// DeviceState carries one device's availability, retained.
func (Topics) DeviceState(deviceID string) string {
	return topicPrefix + "/device/" + deviceID + "/state"
}

// HeartbeatSource extracts the producer source from a heartbeat topic.
// Returns "" if the topic is not a heartbeat topic.
func (Topics) HeartbeatSource(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != topicPrefix || parts[1] != "heartbeat" {
		return ""
	}
	return parts[2]
}
