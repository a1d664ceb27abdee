package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/admiral-vulcan/musictolight-core/internal/device"
	"github.com/admiral-vulcan/musictolight-core/internal/infrastructure/config"
	"github.com/admiral-vulcan/musictolight-core/internal/journal"
	"github.com/admiral-vulcan/musictolight-core/internal/watchdog"
)

// Logger is the interface the server needs for diagnostics.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Safety is the slice of the watchdog the HTTP surface exposes.
type Safety interface {
	Status() (state watchdog.State, since time.Time, failures uint64)
	TriggerPanic(ctx context.Context, reason, actor string)
	Recover(ctx context.Context, actor string) error
}

// Journal is the read side of the event journal.
type Journal interface {
	List(ctx context.Context, limit int) ([]journal.Event, error)
	CountByKind(ctx context.Context, kind journal.EventKind) (int, error)
}

// Deps contains everything the server needs.
type Deps struct {
	Config   config.APIConfig
	Registry *device.Registry
	Store    *device.StateStore
	Safety   Safety
	Journal  Journal
	Logger   Logger
}

// Server is the operator-facing HTTP and WebSocket surface.
type Server struct {
	cfg       config.APIConfig
	registry  *device.Registry
	store     *device.StateStore
	safety    Safety
	journal   Journal
	logger    Logger
	hub       *Hub
	jwtSecret string

	httpServer *http.Server
}

// New validates dependencies and creates the server. Call Start to
// begin serving.
func New(deps Deps) (*Server, error) {
	if deps.Registry == nil {
		return nil, fmt.Errorf("api: registry is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("api: state store is required")
	}
	if deps.Safety == nil {
		return nil, fmt.Errorf("api: safety watchdog is required")
	}
	if deps.Config.JWTSecret == "" {
		return nil, fmt.Errorf("api: jwt secret is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	return &Server{
		cfg:       deps.Config,
		registry:  deps.Registry,
		store:     deps.Store,
		safety:    deps.Safety,
		journal:   deps.Journal,
		logger:    logger,
		hub:       NewHub(logger),
		jwtSecret: deps.Config.JWTSecret,
	}, nil
}

// Hub returns the live event hub so the wiring layer can broadcast
// watchdog transitions and device availability changes.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Router builds the HTTP routing tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Route("/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/devices", s.handleDevices)
		r.Get("/journal", s.handleJournal)

		// Panic is unauthenticated on purpose: stopping the show must
		// never wait on a credential.
		r.Post("/panic", s.handlePanic)
		r.Post("/recover", s.requireOperator(s.handleRecover))

		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// Start begins listening in the background. Errors other than a clean
// shutdown are logged, not returned; the process keeps running on the
// MQTT side even if the control surface dies.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout: time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:  time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	s.logger.Info("api server starting", "addr", addr)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server failed", "error", err)
		}
	}()

	return nil
}

// Close shuts the server down gracefully and disconnects all
// WebSocket clients.
func (s *Server) Close(ctx context.Context) error {
	s.hub.closeAll()
	if s.httpServer == nil {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down api server: %w", err)
	}
	s.logger.Info("api server stopped")
	return nil
}
