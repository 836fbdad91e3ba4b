package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/balixgaruda/powermon-core/internal/relay"
	"github.com/balixgaruda/powermon-core/internal/telemetry"
)

// Relay command defaults for requests that omit fields. These match
// what single-panel dashboards have always sent.
const (
	defaultRelayID     = "Relay-1"
	defaultReason      = "MANUAL"
	defaultInitiatedBy = "user"
)

// handlePostRelay accepts a relay switch command.
func (s *Server) handlePostRelay(w http.ResponseWriter, r *http.Request) {
	var cmd relay.Command
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if cmd.RelayID == "" {
		cmd.RelayID = defaultRelayID
	}
	if cmd.Reason == "" {
		cmd.Reason = defaultReason
	}
	if cmd.InitiatedBy == "" {
		cmd.InitiatedBy = defaultInitiatedBy
	}

	result, err := s.coordinator.IssueCommand(r.Context(), cmd)
	if err != nil {
		if errors.Is(err, relay.ErrInvalidCommand) {
			writeError(w, http.StatusBadRequest, ErrCodeValidation, "command must be ON or OFF")
			return
		}
		s.logger.Error("relay command failed", "relay_id", cmd.RelayID, "error", err)
		writeInternalError(w, "failed to execute relay command")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleRelayStatus returns the current relay state for a relay identifier.
func (s *Server) handleRelayStatus(w http.ResponseWriter, r *http.Request) {
	relayID := chi.URLParam(r, "relay_id")

	espID, err := s.resolver.Resolve(relayID)
	if err != nil {
		writeNotFound(w, "unknown relay "+relayID)
		return
	}

	reading, err := s.store.LatestFor(r.Context(), espID)
	if err != nil {
		if errors.Is(err, telemetry.ErrNoReadings) {
			writeNotFound(w, "no readings for device "+espID)
			return
		}
		s.logger.Error("relay status query failed", "esp_id", espID, "error", err)
		writeInternalError(w, "failed to query relay status")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"relay_id":     relayID,
		"esp_id":       espID,
		"relay_status": reading.RelayStatus,
	})
}

// handleRelayLog returns recent relay log entries, newest first.
func (s *Server) handleRelayLog(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	entries, err := s.relayLog.List(r.Context(), limit)
	if err != nil {
		s.logger.Error("relay log query failed", "error", err)
		writeInternalError(w, "failed to query relay log")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"total":   len(entries),
		"entries": entries,
	})
}
