package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// testSecret satisfies the 32-character minimum for api.jwt_secret.
const testSecret = "0123456789abcdef0123456789abcdef"

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("writing config file: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfigFile(t, `
api:
  jwt_secret: `+testSecret+`
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Engine.TickMS != 30 {
		t.Errorf("expected default tick_ms 30, got %d", cfg.Engine.TickMS)
	}
	if cfg.Dispatch.FailureThreshold != 3 {
		t.Errorf("expected default failure_threshold 3, got %d", cfg.Dispatch.FailureThreshold)
	}
	if cfg.Watchdog.HeartbeatTimeoutMS != 2000 {
		t.Errorf("expected default heartbeat_timeout_ms 2000, got %d", cfg.Watchdog.HeartbeatTimeoutMS)
	}
	if got := cfg.TickPeriod(); got != 30*time.Millisecond {
		t.Errorf("TickPeriod() = %v, want 30ms", got)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
engine:
  tick_ms: 50
  queue_capacity: 16
dispatch:
  deadline_ms: 40
api:
  jwt_secret: `+testSecret+`
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Engine.TickMS != 50 {
		t.Errorf("tick_ms = %d, want 50", cfg.Engine.TickMS)
	}
	if cfg.Engine.QueueCapacity != 16 {
		t.Errorf("queue_capacity = %d, want 16", cfg.Engine.QueueCapacity)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `
mqtt:
  broker:
    host: from-file
api:
  jwt_secret: `+testSecret+`
`)

	t.Setenv("MTL_MQTT_HOST", "from-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.MQTT.Broker.Host != "from-env" {
		t.Errorf("broker host = %q, want %q", cfg.MQTT.Broker.Host, "from-env")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "valid config",
			mutate:  func(_ *Config) {},
			wantErr: "",
		},
		{
			name:    "missing jwt secret",
			mutate:  func(c *Config) { c.API.JWTSecret = "" },
			wantErr: "jwt_secret is required",
		},
		{
			name:    "short jwt secret",
			mutate:  func(c *Config) { c.API.JWTSecret = "short" },
			wantErr: "at least 32 characters",
		},
		{
			name:    "zero tick period",
			mutate:  func(c *Config) { c.Engine.TickMS = 0 },
			wantErr: "tick_ms must be positive",
		},
		{
			name:    "deadline not shorter than tick",
			mutate:  func(c *Config) { c.Dispatch.DeadlineMS = 30 },
			wantErr: "deadline_ms must be shorter",
		},
		{
			name:    "invalid qos",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: "mqtt.qos",
		},
		{
			name:    "chill ceiling out of range",
			mutate:  func(c *Config) { c.Engine.ChillCeiling = 300 },
			wantErr: "chill_ceiling",
		},
		{
			name:    "zero heartbeat timeout",
			mutate:  func(c *Config) { c.Watchdog.HeartbeatTimeoutMS = 0 },
			wantErr: "heartbeat_timeout_ms",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.API.JWTSecret = testSecret
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error %q does not contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestDurationAccessors(t *testing.T) {
	cfg := defaultConfig()

	if got := cfg.DispatchDeadline(); got != 20*time.Millisecond {
		t.Errorf("DispatchDeadline() = %v, want 20ms", got)
	}
	if got := cfg.HeartbeatTimeout(); got != 2*time.Second {
		t.Errorf("HeartbeatTimeout() = %v, want 2s", got)
	}
	if got := cfg.ReadTimeout(); got != 15*time.Second {
		t.Errorf("ReadTimeout() = %v, want 15s", got)
	}
}
