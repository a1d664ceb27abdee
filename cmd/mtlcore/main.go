// MusicToLight Core - Show Control Dispatch Engine
//
// This is the main entry point for the MusicToLight core process. The
// core sits between the audio/show producers on MQTT and the physical
// rig (Art-Net DMX fixtures, pixel strips, fog machine), resolving
// conflicting cues, rate limiting updates and enforcing blackout safety.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/admiral-vulcan/musictolight-core/internal/api"
	"github.com/admiral-vulcan/musictolight-core/internal/cue"
	"github.com/admiral-vulcan/musictolight-core/internal/device"
	"github.com/admiral-vulcan/musictolight-core/internal/dispatch"
	"github.com/admiral-vulcan/musictolight-core/internal/engine"
	"github.com/admiral-vulcan/musictolight-core/internal/infrastructure/config"
	"github.com/admiral-vulcan/musictolight-core/internal/infrastructure/database"
	"github.com/admiral-vulcan/musictolight-core/internal/infrastructure/influxdb"
	"github.com/admiral-vulcan/musictolight-core/internal/infrastructure/logging"
	"github.com/admiral-vulcan/musictolight-core/internal/infrastructure/mqtt"
	"github.com/admiral-vulcan/musictolight-core/internal/journal"
	"github.com/admiral-vulcan/musictolight-core/internal/producer"
	"github.com/admiral-vulcan/musictolight-core/internal/resolve"
	"github.com/admiral-vulcan/musictolight-core/internal/watchdog"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// shutdownTimeout bounds the graceful HTTP shutdown at exit.
const shutdownTimeout = 5 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting MusicToLight core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)

	// Static device registry: the rig is fixed hardware, loaded once.
	registry, err := device.LoadRegistry(cfg.Registry.Path)
	if err != nil {
		return fmt.Errorf("loading device registry: %w", err)
	}
	log.Info("device registry loaded", "path", cfg.Registry.Path, "devices", registry.Count())

	// Open the show journal database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	journalRepo, err := journal.NewRepository(ctx, db)
	if err != nil {
		return fmt.Errorf("initialising journal: %w", err)
	}

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log)
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	// Connect to InfluxDB (optional telemetry sink)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			// The show runs without telemetry; a dark rig does not.
			log.Warn("InfluxDB unavailable, telemetry disabled", "error", err)
			influxClient = nil
		} else {
			defer func() {
				log.Info("closing InfluxDB connection")
				if closeErr := influxClient.Close(); closeErr != nil {
					log.Error("error closing InfluxDB", "error", closeErr)
				}
			}()
			influxClient.SetOnError(func(err error) {
				log.Error("InfluxDB write error", "error", err)
			})
			log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
		}
	} else {
		log.Info("InfluxDB disabled")
	}

	// Core state: store, modes, cue queue
	store := device.NewStateStore(registry, cfg.Dispatch.FailureThreshold)
	modes := resolve.NewModeState()
	queue := cue.NewQueue(cfg.Engine.QueueCapacity)

	// Transport adapters, one per protocol class
	artnet := dispatch.NewArtNetAdapter()
	pixel := dispatch.NewPixelAdapter()
	trigger := dispatch.NewTriggerAdapter()
	defer func() {
		for _, c := range []interface{ Close() error }{artnet, pixel, trigger} {
			if closeErr := c.Close(); closeErr != nil {
				log.Error("error closing adapter", "error", closeErr)
			}
		}
	}()

	dispatcher := dispatch.NewDispatcher(registry, store,
		[]dispatch.Adapter{artnet, pixel, trigger},
		dispatch.Options{
			Retries:     cfg.Dispatch.Retries,
			Backoff:     cfg.RetryBackoff(),
			SendTimeout: cfg.SendTimeout(),
			Deadline:    cfg.DispatchDeadline(),
			Logger:      log,
		})

	// Safety watchdog
	wd := watchdog.New(registry, store, dispatcher, modes, watchdog.Options{
		HeartbeatTimeout: cfg.HeartbeatTimeout(),
		CheckInterval:    cfg.WatchdogInterval(),
		Sources:          cfg.Producers,
		Logger:           log,
	})

	// Control surface
	server, err := api.New(api.Deps{
		Config:   cfg.API,
		Registry: registry,
		Store:    store,
		Safety:   wd,
		Journal:  journalRepo,
		Logger:   log,
	})
	if err != nil {
		return fmt.Errorf("creating api server: %w", err)
	}

	wireCallbacks(ctx, log, wd, dispatcher, store, server, journalRepo, influxClient, mqttClient)

	// Resolver, gate and engine
	resolver := resolve.NewResolver(registry, queue, uint8(cfg.Engine.ChillCeiling), log)
	gate := resolve.NewGate(registry, store, cfg.Engine.CriticalPriority, log)
	eng := engine.New(resolver, gate, dispatcher, modes, cfg.TickPeriod(), log)
	if influxClient != nil {
		eng.SetOnTick(func(s engine.TickStats) {
			influxClient.WriteTick(s.Duration, s.Resolved, s.Suppressed, s.Dispatched)
		})
	}

	// Producers: audio analysis and show control feeds
	manager := producer.NewManager(registry, queue, wd, cfg.Producers, log)
	if err := registerProducers(manager, cfg, modes, wd); err != nil {
		return fmt.Errorf("registering producers: %w", err)
	}
	if err := manager.Start(mqttClient, byte(cfg.MQTT.QoS)); err != nil {
		return fmt.Errorf("starting producers: %w", err)
	}

	// Startup blackout puts the rig in a known state before the first cue
	if err := wd.Start(ctx); err != nil {
		return fmt.Errorf("starting watchdog: %w", err)
	}
	defer func() {
		log.Info("stopping watchdog")
		wd.Stop()
	}()

	eng.Start(ctx)
	defer func() {
		log.Info("stopping engine")
		eng.Stop()
	}()

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting api server: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if closeErr := server.Close(shutdownCtx); closeErr != nil {
			log.Error("error closing api server", "error", closeErr)
		}
	}()

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	publishDeviceStates(log, store, mqttClient)

	log.Info("initialisation complete, show control active")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	log.Info("MusicToLight core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses MTL_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("MTL_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// wireCallbacks connects the event sides of the components: journal
// entries, telemetry, retained MQTT availability and the live feed.
func wireCallbacks(
	ctx context.Context,
	log *logging.Logger,
	wd *watchdog.Watchdog,
	dispatcher *dispatch.Dispatcher,
	store *device.StateStore,
	server *api.Server,
	journalRepo *journal.Repository,
	influxClient *influxdb.Client,
	mqttClient *mqtt.Client,
) {
	wd.SetOnTransition(func(t watchdog.Transition) {
		event := journal.Event{
			Kind:   transitionKind(t),
			Reason: t.Reason,
			Actor:  t.Actor,
		}
		if err := journalRepo.Record(ctx, event); err != nil {
			log.Error("recording transition", "error", err)
		}
		if influxClient != nil {
			influxClient.WriteSafetyEvent(string(t.From), string(t.To), t.Reason)
		}
		server.BroadcastTransition(t)
		publishDeviceStates(log, store, mqttClient)
	})

	dispatcher.SetOnFailure(wd.ReportFailure)
	if influxClient != nil {
		dispatcher.SetOnResult(func(r dispatch.Result) {
			influxClient.WriteDispatch(r.DeviceID, r.Err == nil, r.Attempts, r.Elapsed)
		})
	}

	store.SetOnDegraded(func(deviceID string, failures int) {
		event := journal.Event{
			Kind:     journal.KindDegraded,
			DeviceID: deviceID,
			Reason:   fmt.Sprintf("%d consecutive transport failures", failures),
		}
		if err := journalRepo.Record(ctx, event); err != nil {
			log.Error("recording degradation", "error", err)
		}
		if rec, err := store.Current(deviceID); err == nil {
			server.BroadcastDevice(deviceID, rec)
			publishDeviceState(log, mqttClient, deviceID, rec)
		}
	})
}

// transitionKind maps a watchdog transition to its journal kind.
func transitionKind(t watchdog.Transition) journal.EventKind {
	switch t.To {
	case watchdog.StatePanic:
		return journal.KindPanic
	case watchdog.StateBlackoutForced:
		return journal.KindBlackoutForced
	default:
		return journal.KindRecovery
	}
}

// registerProducers builds the feed mappers and registers them with the
// manager under their declared names.
func registerProducers(manager *producer.Manager, cfg *config.Config, modes *resolve.ModeState, wd *watchdog.Watchdog) error {
	topics := mqtt.Topics{}

	audioEmit, err := manager.Emitter("audio")
	if err != nil {
		return err
	}
	audio := producer.NewAudioMapper(cfg.Mapping.Strip, cfg.Mapping.Scanner, modes, audioEmit)
	if err := manager.Register(audio, topics.AudioState()); err != nil {
		return err
	}

	showEmit, err := manager.Emitter("show")
	if err != nil {
		return err
	}
	show := producer.NewShowMapper(cfg.Mapping.Spot, cfg.Mapping.Fog, modes, wd, showEmit)
	return manager.Register(show, topics.ShowState())
}

// publishDeviceStates publishes every device's availability, retained,
// so dashboards and late subscribers see the current rig state.
func publishDeviceStates(log *logging.Logger, store *device.StateStore, mqttClient *mqtt.Client) {
	for id, rec := range store.Snapshot() {
		publishDeviceState(log, mqttClient, id, rec)
	}
}

func publishDeviceState(log *logging.Logger, mqttClient *mqtt.Client, id string, rec device.Record) {
	payload, err := json.Marshal(map[string]any{
		"availability": string(rec.Availability),
		"failures":     rec.Failures,
		"last_sent":    rec.LastSent,
	})
	if err != nil {
		return
	}
	topic := mqtt.Topics{}.DeviceState(id)
	if err := mqttClient.PublishRetained(topic, payload); err != nil {
		log.Warn("publishing device state", "error", err, "device", id)
	}
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}
