package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-sim/internal/bus"
	"github.com/nerrad567/gray-logic-sim/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-sim/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-sim/internal/registry"
	"github.com/nerrad567/gray-logic-sim/internal/topic"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// HealthChecker is a dependency whose health is reported on /healthz.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config config.APIConfig
	Logger *logging.Logger
	Switch *registry.Switch

	// Bus opens the session the snapshot stream listens on. Optional:
	// without it the WebSocket endpoint only ever sends responses.
	Bus bus.Connector

	// Checks are reported by name on /healthz.
	Checks map[string]HealthChecker

	Version string
}

// Server is the HTTP API server of the simulator.
type Server struct {
	cfg       config.APIConfig
	logger    *logging.Logger
	sw        *registry.Switch
	connector bus.Connector
	checks    map[string]HealthChecker
	version   string
	startTime time.Time

	server  *http.Server
	hub     *Hub
	session bus.Session
	cancel  context.CancelFunc
}

// New creates a new API server with the given dependencies.
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Switch == nil {
		return nil, fmt.Errorf("switch is required")
	}

	return &Server{
		cfg:       deps.Config,
		logger:    deps.Logger,
		sw:        deps.Switch,
		connector: deps.Bus,
		checks:    deps.Checks,
		version:   deps.Version,
		startTime: time.Now(),
		hub:       NewHub(deps.Logger),
	}, nil
}

// Start subscribes the snapshot stream and launches the HTTP listener in a
// background goroutine. The server can be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)
	go s.hub.Run(srvCtx)

	if err := s.subscribeSnapshots(); err != nil {
		s.logger.Warn("snapshot stream disabled", "error", err)
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.session != nil {
		if err := s.session.Close(); err != nil && !errors.Is(err, bus.ErrClosed) {
			s.logger.Warn("closing snapshot stream session", "error", err)
		}
	}
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}

// subscribeSnapshots relays every agent and group snapshot to WebSocket
// clients subscribed to the snapshot channel of its kind.
func (s *Server) subscribeSnapshots() error {
	if s.connector == nil {
		return nil
	}
	session, err := s.connector.Connect("api-" + uuid.NewString()[:8])
	if err != nil {
		return fmt.Errorf("connecting snapshot session: %w", err)
	}
	if err := session.Subscribe(topic.AllSnapshots(), s.relaySnapshot); err != nil {
		session.Close() //nolint:errcheck // already failing
		return fmt.Errorf("subscribing to snapshots: %w", err)
	}
	s.session = session
	return nil
}
