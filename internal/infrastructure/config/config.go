package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for MusicToLight Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Show      ShowConfig     `yaml:"show"`
	Registry  RegistryConfig `yaml:"registry"`
	Engine    EngineConfig   `yaml:"engine"`
	Dispatch  DispatchConfig `yaml:"dispatch"`
	Watchdog  WatchdogConfig `yaml:"watchdog"`
	Producers []string       `yaml:"producers"`
	Mapping   MappingConfig  `yaml:"mapping"`
	MQTT      MQTTConfig     `yaml:"mqtt"`
	InfluxDB  InfluxDBConfig `yaml:"influxdb"`
	Database  DatabaseConfig `yaml:"database"`
	API       APIConfig      `yaml:"api"`
	Logging   LoggingConfig  `yaml:"logging"`
}

// ShowConfig contains installation-specific information.
type ShowConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// RegistryConfig locates the static device registry file.
type RegistryConfig struct {
	Path string `yaml:"path"`
}

// EngineConfig contains dispatch tick settings.
type EngineConfig struct {
	// TickMS is the fixed dispatch tick period in milliseconds.
	// 20-50ms keeps the show perceptually real-time.
	TickMS int `yaml:"tick_ms"`

	// QueueCapacity bounds each device's pending cue queue.
	// Oldest cues are dropped first under producer bursts.
	QueueCapacity int `yaml:"queue_capacity"`

	// ChillCeiling is the maximum intensity for pattern/frame cues
	// while chill mode is active (0-255).
	ChillCeiling int `yaml:"chill_ceiling"`

	// CriticalPriority is the priority above which updates bypass
	// per-device rate limiting.
	CriticalPriority int `yaml:"critical_priority"`
}

// DispatchConfig contains transport dispatcher settings.
type DispatchConfig struct {
	// Retries is how many times a failed send is retried before the
	// device's failure counter is incremented.
	Retries int `yaml:"retries"`

	// BackoffMS is the initial retry backoff in milliseconds (doubles per attempt).
	BackoffMS int `yaml:"backoff_ms"`

	// SendTimeoutMS is the per-attempt adapter send timeout in milliseconds.
	SendTimeoutMS int `yaml:"send_timeout_ms"`

	// DeadlineMS bounds how long a tick waits for in-flight sends.
	// Must be shorter than engine.tick_ms; laggards complete asynchronously.
	DeadlineMS int `yaml:"deadline_ms"`

	// FailureThreshold is the consecutive-failure count after which a
	// device is marked degraded.
	FailureThreshold int `yaml:"failure_threshold"`
}

// WatchdogConfig contains safety watchdog settings.
type WatchdogConfig struct {
	// HeartbeatTimeoutMS is how long a producer may stay silent before
	// the watchdog escalates to panic, in milliseconds.
	HeartbeatTimeoutMS int `yaml:"heartbeat_timeout_ms"`

	// CheckIntervalMS is the watchdog's own timer period in milliseconds.
	CheckIntervalMS int `yaml:"check_interval_ms"`
}

// MappingConfig names the registry devices each producer drives.
type MappingConfig struct {
	// Strip is the pixel strip receiving the audio level meter.
	Strip string `yaml:"strip"`

	// Scanner is the moving-head fixture following the beat.
	Scanner string `yaml:"scanner"`

	// Spot is the colour wash fixture driven by show state.
	Spot string `yaml:"spot"`

	// Fog is the fog machine trigger.
	Fog string `yaml:"fog"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// InfluxDBConfig contains telemetry sink settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// DatabaseConfig contains SQLite show journal settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// APIConfig contains HTTP control surface settings.
type APIConfig struct {
	Host      string           `yaml:"host"`
	Port      int              `yaml:"port"`
	JWTSecret string           `yaml:"jwt_secret"`
	Timeouts  APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: MTL_SECTION_KEY
// For example: MTL_MQTT_HOST, MTL_API_JWT_SECRET
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Show: ShowConfig{
			ID:   "show-001",
			Name: "MusicToLight",
		},
		Registry: RegistryConfig{
			Path: "./configs/devices.yaml",
		},
		Engine: EngineConfig{
			TickMS:           30,
			QueueCapacity:    64,
			ChillCeiling:     128,
			CriticalPriority: 90,
		},
		Dispatch: DispatchConfig{
			Retries:          2,
			BackoffMS:        25,
			SendTimeoutMS:    200,
			DeadlineMS:       20,
			FailureThreshold: 3,
		},
		Watchdog: WatchdogConfig{
			HeartbeatTimeoutMS: 2000,
			CheckIntervalMS:    250,
		},
		Producers: []string{"audio", "show"},
		Mapping: MappingConfig{
			Strip:   "strip_main",
			Scanner: "scanner_1",
			Spot:    "t36_spot",
			Fog:     "fog_main",
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "mtl-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		Database: DatabaseConfig{
			Path:        "./data/mtl-journal.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  15,
				Write: 15,
				Idle:  60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: MTL_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MTL_REGISTRY_PATH"); v != "" {
		cfg.Registry.Path = v
	}

	if v := os.Getenv("MTL_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("MTL_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("MTL_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("MTL_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("MTL_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Recovery authorisation secret (IMPORTANT: always override in production)
	if v := os.Getenv("MTL_JWT_SECRET"); v != "" {
		cfg.API.JWTSecret = v
	}
}

// Validate checks the configuration for errors and safety issues.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Show.ID == "" {
		errs = append(errs, "show.id is required")
	}
	if c.Registry.Path == "" {
		errs = append(errs, "registry.path is required")
	}

	if c.Engine.TickMS <= 0 {
		errs = append(errs, "engine.tick_ms must be positive")
	}
	if c.Engine.QueueCapacity <= 0 {
		errs = append(errs, "engine.queue_capacity must be positive")
	}
	if c.Engine.ChillCeiling < 0 || c.Engine.ChillCeiling > 255 {
		errs = append(errs, "engine.chill_ceiling must be between 0 and 255")
	}

	if c.Dispatch.Retries < 0 {
		errs = append(errs, "dispatch.retries must not be negative")
	}
	if c.Dispatch.FailureThreshold <= 0 {
		errs = append(errs, "dispatch.failure_threshold must be positive")
	}
	// The tick must never wait longer than its own period for a send.
	if c.Dispatch.DeadlineMS >= c.Engine.TickMS {
		errs = append(errs, "dispatch.deadline_ms must be shorter than engine.tick_ms")
	}

	if c.Watchdog.HeartbeatTimeoutMS <= 0 {
		errs = append(errs, "watchdog.heartbeat_timeout_ms must be positive")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// Recovery from forced blackout is an authenticated operation.
	// An empty or weak secret would let anyone clear a safety blackout
	// on a rig of physical actuators.
	const minJWTSecretLength = 32
	if c.API.JWTSecret == "" {
		errs = append(errs, "api.jwt_secret is required (set MTL_JWT_SECRET environment variable)")
	} else if len(c.API.JWTSecret) < minJWTSecretLength {
		errs = append(errs, "api.jwt_secret must be at least 32 characters")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// TickPeriod returns the dispatch tick period as a Duration.
func (c *Config) TickPeriod() time.Duration {
	return time.Duration(c.Engine.TickMS) * time.Millisecond
}

// DispatchDeadline returns the per-tick dispatch deadline as a Duration.
func (c *Config) DispatchDeadline() time.Duration {
	return time.Duration(c.Dispatch.DeadlineMS) * time.Millisecond
}

// SendTimeout returns the per-attempt adapter send timeout as a Duration.
func (c *Config) SendTimeout() time.Duration {
	return time.Duration(c.Dispatch.SendTimeoutMS) * time.Millisecond
}

// RetryBackoff returns the initial retry backoff as a Duration.
func (c *Config) RetryBackoff() time.Duration {
	return time.Duration(c.Dispatch.BackoffMS) * time.Millisecond
}

// HeartbeatTimeout returns the producer heartbeat timeout as a Duration.
func (c *Config) HeartbeatTimeout() time.Duration {
	return time.Duration(c.Watchdog.HeartbeatTimeoutMS) * time.Millisecond
}

// WatchdogInterval returns the watchdog check interval as a Duration.
func (c *Config) WatchdogInterval() time.Duration {
	return time.Duration(c.Watchdog.CheckIntervalMS) * time.Millisecond
}

// ReadTimeout returns the API read timeout as a Duration.
func (c *Config) ReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// WriteTimeout returns the API write timeout as a Duration.
func (c *Config) WriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// IdleTimeout returns the API idle timeout as a Duration.
func (c *Config) IdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
