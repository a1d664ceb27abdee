package mqtt

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/admiral-vulcan/musictolight-core/internal/infrastructure/config"
)

func TestTopics(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"audio state", Topics{}.AudioState(), "mtl/audio/state"},
		{"show state", Topics{}.ShowState(), "mtl/show/state"},
		{"heartbeat", Topics{}.Heartbeat("audio"), "mtl/heartbeat/audio"},
		{"all heartbeats", Topics{}.AllHeartbeats(), "mtl/heartbeat/+"},
		{"system status", Topics{}.SystemStatus(), "mtl/system/status"},
		{"device state", Topics{}.DeviceState("t36_spot"), "mtl/device/t36_spot/state"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestHeartbeatSource(t *testing.T) {
	tests := []struct {
		topic string
		want  string
	}{
		{"mtl/heartbeat/audio", "audio"},
		{"mtl/heartbeat/show", "show"},
		{"mtl/audio/state", ""},
		{"other/heartbeat/audio", ""},
		{"mtl/heartbeat", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if got := (Topics{}).HeartbeatSource(tt.topic); got != tt.want {
			t.Errorf("HeartbeatSource(%q) = %q, want %q", tt.topic, got, tt.want)
		}
	}
}

func TestPublishValidation(t *testing.T) {
	c := &Client{subscriptions: make(map[string]subscription)}

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		wantErr error
	}{
		{"empty topic", "", []byte("x"), 1, ErrInvalidTopic},
		{"invalid qos", "mtl/show/state", []byte("x"), 3, ErrInvalidQoS},
		{"not connected", "mtl/show/state", []byte("x"), 1, ErrNotConnected},
		{"oversized payload", "mtl/show/state", make([]byte, maxPayloadSize+1), 1, ErrPublishFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Publish(tt.topic, tt.payload, tt.qos, false)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Publish() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSubscribeValidation(t *testing.T) {
	c := &Client{subscriptions: make(map[string]subscription)}
	handler := func(string, []byte) error { return nil }

	if err := c.Subscribe("", 1, handler); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty topic = %v, want ErrInvalidTopic", err)
	}
	if err := c.Subscribe("mtl/audio/state", 3, handler); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("bad qos = %v, want ErrInvalidQoS", err)
	}
	if err := c.Subscribe("mtl/audio/state", 1, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("nil handler = %v, want ErrSubscribeFailed", err)
	}
	if err := c.Subscribe("mtl/audio/state", 1, handler); !errors.Is(err, ErrNotConnected) {
		t.Errorf("disconnected = %v, want ErrNotConnected", err)
	}
	if c.SubscriptionCount() != 0 {
		t.Errorf("failed subscribes must not be tracked, count = %d", c.SubscriptionCount())
	}
}

func TestBuildClientOptions(t *testing.T) {
	cfg := config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "broker.local",
			Port:     1883,
			ClientID: "mtl-core",
		},
		Auth: config.MQTTAuthConfig{Username: "mtl", Password: "secret"},
		QoS:  1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     60,
		},
	}

	opts := buildClientOptions(cfg)
	if len(opts.Servers) != 1 {
		t.Fatalf("servers = %d, want 1", len(opts.Servers))
	}
	if got := opts.Servers[0].String(); got != "tcp://broker.local:1883" {
		t.Errorf("broker URL = %q", got)
	}
	if opts.ClientID != "mtl-core" {
		t.Errorf("client id = %q", opts.ClientID)
	}
	if opts.Username != "mtl" {
		t.Errorf("username = %q", opts.Username)
	}
	if !opts.AutoReconnect {
		t.Error("auto-reconnect must be enabled")
	}
}

func TestBuildClientOptionsTLS(t *testing.T) {
	cfg := config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{Host: "broker.local", Port: 8883, TLS: true, ClientID: "mtl-core"},
	}
	opts := buildClientOptions(cfg)
	if got := opts.Servers[0].Scheme; got != "ssl" {
		t.Errorf("scheme = %q, want ssl", got)
	}
	if opts.TLSConfig == nil {
		t.Fatal("TLS config must be set")
	}
}

func TestStatusPayloads(t *testing.T) {
	online := buildOnlinePayload("mtl-core")
	if !strings.Contains(online, `"status":"online"`) || !strings.Contains(online, `"client_id":"mtl-core"`) {
		t.Errorf("online payload = %s", online)
	}
	offline := buildOfflinePayload("mtl-core")
	if !strings.Contains(offline, `"reason":"graceful_shutdown"`) {
		t.Errorf("offline payload = %s", offline)
	}
}

func TestSetLoggerConcurrency(t *testing.T) {
	c := &Client{subscriptions: make(map[string]subscription)}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.SetLogger(nil)
			_ = c.getLogger()
		}()
	}
	wg.Wait()
}
