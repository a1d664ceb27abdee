package producer

import (
	"fmt"

	"github.com/admiral-vulcan/musictolight-core/internal/cue"
	"github.com/admiral-vulcan/musictolight-core/internal/device"
	"github.com/admiral-vulcan/musictolight-core/internal/infrastructure/mqtt"
)

// EmitFunc is the sink a mapper pushes cues into. The manager stamps
// the producer's declaration index before the cue reaches the queue.
type EmitFunc func(c cue.Cue)

// Source is one cue producer: a named feed with a topic and a message
// handler.
type Source interface {
	Name() string
	Handle(payload []byte) error
}

// Liveness is the slice of the watchdog the manager needs to report
// producer heartbeats.
type Liveness interface {
	Heartbeat(source string)
}

// Broker is the slice of the MQTT client the manager needs.
type Broker interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// Logger is the interface the manager needs for diagnostics.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Manager owns producer registration and feed subscriptions.
//
// The declaration order from config is the tie-break order in the
// resolver: the first declared producer wins a full priority and
// timestamp tie. Registration of a source not in the declared list is
// an error; a typo in config should fail loudly at startup.
type Manager struct {
	registry *device.Registry
	queue    *cue.Queue
	liveness Liveness
	logger   Logger

	declared []string
	sources  map[string]registeredSource
}

type registeredSource struct {
	source Source
	topic  string
	index  int
}

// NewManager creates a manager for the declared producer names.
func NewManager(registry *device.Registry, queue *cue.Queue, liveness Liveness, declared []string, logger Logger) *Manager {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Manager{
		registry: registry,
		queue:    queue,
		liveness: liveness,
		logger:   logger,
		declared: declared,
		sources:  make(map[string]registeredSource),
	}
}

// Index returns the declaration index for a producer name.
func (m *Manager) Index(name string) (int, error) {
	for i, d := range m.declared {
		if d == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: %q not in declared producers %v", ErrUnknownSource, name, m.declared)
}

// Emitter returns the cue sink for a declared producer. Cues for
// devices missing from the registry are dropped and logged; a feed
// must never crash the core over a stale device id.
func (m *Manager) Emitter(name string) (EmitFunc, error) {
	index, err := m.Index(name)
	if err != nil {
		return nil, err
	}
	return func(c cue.Cue) {
		if _, err := m.registry.Describe(c.DeviceID); err != nil {
			m.logger.Warn("dropping cue", "error", err, "device", c.DeviceID, "source", name)
			return
		}
		c.ProducerIndex = index
		c.Source = name
		m.queue.Push(c)
	}, nil
}

// Register binds a source to its feed topic. The source's name must be
// in the declared producer list.
func (m *Manager) Register(source Source, topic string) error {
	index, err := m.Index(source.Name())
	if err != nil {
		return err
	}
	m.sources[source.Name()] = registeredSource{source: source, topic: topic, index: index}
	return nil
}

// Start subscribes every registered source to its feed and wires the
// shared heartbeat topic. A feed message doubles as a heartbeat for
// its source.
func (m *Manager) Start(broker Broker, qos byte) error {
	for name, reg := range m.sources {
		name, reg := name, reg
		err := broker.Subscribe(reg.topic, qos, func(_ string, payload []byte) error {
			m.liveness.Heartbeat(name)
			return reg.source.Handle(payload)
		})
		if err != nil {
			return fmt.Errorf("subscribing %s feed: %w", name, err)
		}
	}

	err := broker.Subscribe(mqtt.Topics{}.AllHeartbeats(), qos, func(topic string, _ []byte) error {
		source := mqtt.Topics{}.HeartbeatSource(topic)
		if source == "" {
			return fmt.Errorf("%w: heartbeat on %q", ErrUnknownSource, topic)
		}
		m.liveness.Heartbeat(source)
		return nil
	})
	if err != nil {
		return fmt.Errorf("subscribing heartbeats: %w", err)
	}
	return nil
}
