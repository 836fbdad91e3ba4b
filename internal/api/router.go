package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
//
// Routes are flat, matching the paths the dashboard already calls.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)

	// Telemetry
	r.Get("/monitoring", s.handleGetMonitoring)
	r.Post("/monitoring", s.handlePostMonitoring)
	r.Get("/monitoring/history", s.handleMonitoringHistory)
	r.Get("/panels", s.handleListPanels)
	r.Get("/usage", s.handleUsage)

	// Relay control
	r.Post("/relay", s.handlePostRelay)
	r.Get("/relay/status/{relay_id}", s.handleRelayStatus)
	r.Get("/relay/log", s.handleRelayLog)

	// Alerts
	r.Get("/alerts", s.handleListAlerts)
	r.Post("/alert", s.handlePostAlert)

	// Live dashboard feed
	r.Get("/ws", s.handleWebSocket)

	return r
}

// handleRoot returns the service banner.
func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service": "powermon",
		"version": s.version,
	})
}

// handleHealth returns the server health status and pipeline counters.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	body := map[string]any{
		"status":  "ok",
		"version": s.version,
	}
	if s.pipeline != nil {
		body["ingest"] = s.pipeline.Stats()
	}
	writeJSON(w, http.StatusOK, body)
}
