// Package api provides the HTTP REST API and WebSocket server for
// PowerMon Core.
//
// It exposes the monitoring, panel, relay, alert, and usage endpoints
// consumed by the dashboard, plus a WebSocket feed of live readings.
//
// The server follows the same lifecycle pattern as the other
// infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Handlers validate and delegate; business logic lives in the
// telemetry and relay packages.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/balixgaruda/powermon-core/internal/infrastructure/config"
	"github.com/balixgaruda/powermon-core/internal/infrastructure/logging"
	"github.com/balixgaruda/powermon-core/internal/ingest"
	"github.com/balixgaruda/powermon-core/internal/relay"
	"github.com/balixgaruda/powermon-core/internal/telemetry"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight
// requests to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// PipelineStats exposes the ingest counters for the health endpoint.
type PipelineStats interface {
	Stats() ingest.Stats
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config        config.APIConfig
	Logger        *logging.Logger
	Store         telemetry.Store
	History       *telemetry.HistoryCache
	Coordinator   *relay.Coordinator
	Resolver      *relay.Resolver
	RelayLog      relay.LogRepository
	Pipeline      PipelineStats // optional
	DefaultDevice string        // fallback esp_id for queries that omit it
	Version       string
}

// Server is the HTTP API server for PowerMon Core.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg           config.APIConfig
	logger        *logging.Logger
	store         telemetry.Store
	history       *telemetry.HistoryCache
	coordinator   *relay.Coordinator
	resolver      *relay.Resolver
	relayLog      relay.LogRepository
	pipeline      PipelineStats
	defaultDevice string
	version       string

	server *http.Server
	hub    *Hub
	cancel context.CancelFunc
}

// New creates a new API server with the given dependencies.
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("telemetry store is required")
	}
	if deps.History == nil {
		return nil, fmt.Errorf("history cache is required")
	}
	if deps.Coordinator == nil {
		return nil, fmt.Errorf("relay coordinator is required")
	}
	if deps.Resolver == nil {
		return nil, fmt.Errorf("relay resolver is required")
	}

	return &Server{
		cfg:           deps.Config,
		logger:        deps.Logger,
		store:         deps.Store,
		history:       deps.History,
		coordinator:   deps.Coordinator,
		resolver:      deps.Resolver,
		relayLog:      deps.RelayLog,
		pipeline:      deps.Pipeline,
		defaultDevice: deps.DefaultDevice,
		version:       deps.Version,
	}, nil
}

// Hub returns the WebSocket hub, creating it if needed. The hub is
// exposed so the ingest pipeline can broadcast stored readings.
func (s *Server) Hub() *Hub {
	if s.hub == nil {
		s.hub = NewHub(s.cfg.WebSocket, s.logger)
	}
	return s.hub
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub and launches the HTTP listener in a
// background goroutine. The server is stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.Hub().Run(srvCtx)

	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       s.cfg.GetReadTimeout(),
		ReadHeaderTimeout: s.cfg.GetReadTimeout(),
		WriteTimeout:      s.cfg.GetWriteTimeout(),
		IdleTimeout:       s.cfg.GetIdleTimeout(),
	}

	go func() {
		err := s.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete, then
// forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
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
