package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/balixgaruda/powermon-core/internal/telemetry"
)

// handleListAlerts returns all alerts, newest first.
func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := s.store.ListAlerts(r.Context())
	if err != nil {
		s.logger.Error("alert listing failed", "error", err)
		writeInternalError(w, "failed to query alerts")
		return
	}

	if alerts == nil {
		alerts = []telemetry.Alert{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"total":  len(alerts),
		"alerts": alerts,
	})
}

// handlePostAlert records a new alert.
func (s *Server) handlePostAlert(w http.ResponseWriter, r *http.Request) {
	var alert telemetry.Alert
	if err := json.NewDecoder(r.Body).Decode(&alert); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	var missing []string
	if alert.AlertType == "" {
		missing = append(missing, "alert_type")
	}
	if alert.ESPID == "" {
		missing = append(missing, "esp_id")
	}
	if alert.Description == "" {
		missing = append(missing, "description")
	}
	if len(missing) > 0 {
		writeError(w, http.StatusBadRequest, ErrCodeValidation,
			"missing required fields: "+strings.Join(missing, ", "))
		return
	}

	if err := s.store.InsertAlert(r.Context(), &alert); err != nil {
		s.logger.Error("alert insert failed", "esp_id", alert.ESPID, "error", err)
		writeInternalError(w, "failed to store alert")
		return
	}

	writeJSON(w, http.StatusCreated, alert)
}
