package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/balixgaruda/powermon-core/internal/ingest"
	"github.com/balixgaruda/powermon-core/internal/telemetry"
)

// Usage query bounds (hours).
const (
	defaultUsageHours = 24
	maxUsageHours     = 168
)

// deviceParam returns the esp_id query parameter, falling back to the
// configured default device.
func (s *Server) deviceParam(r *http.Request) string {
	if espID := r.URL.Query().Get("esp_id"); espID != "" {
		return espID
	}
	return s.defaultDevice
}

// handleGetMonitoring returns the latest reading for a device.
func (s *Server) handleGetMonitoring(w http.ResponseWriter, r *http.Request) {
	espID := s.deviceParam(r)

	reading, err := s.store.LatestFor(r.Context(), espID)
	if err != nil {
		if errors.Is(err, telemetry.ErrNoReadings) {
			writeNotFound(w, "no readings for device "+espID)
			return
		}
		s.logger.Error("latest reading query failed", "esp_id", espID, "error", err)
		writeInternalError(w, "failed to query readings")
		return
	}

	writeJSON(w, http.StatusOK, reading)
}

// handlePostMonitoring accepts a telemetry report over HTTP.
//
// This is the fallback ingestion path for panels without broker access;
// the payload format matches the MQTT sensor reports.
func (s *Server) handlePostMonitoring(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeBadRequest(w, "failed to read request body")
		return
	}

	reading, err := ingest.ParseReadingStrict(s.defaultDevice, body)
	if err != nil {
		var missing *ingest.MissingFieldsError
		if errors.As(err, &missing) {
			writeError(w, http.StatusBadRequest, ErrCodeValidation, missing.Error())
			return
		}
		writeBadRequest(w, err.Error())
		return
	}

	if err := s.store.InsertReading(r.Context(), reading); err != nil {
		s.logger.Error("reading insert failed", "esp_id", reading.ESPID, "error", err)
		writeInternalError(w, "failed to store reading")
		return
	}
	s.history.Record(*reading)

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "sensor data recorded",
		"esp_id":  reading.ESPID,
		"status":  "OK",
	})
}

// handleMonitoringHistory returns the recent in-memory window for a device.
func (s *Server) handleMonitoringHistory(w http.ResponseWriter, r *http.Request) {
	espID := s.deviceParam(r)

	readings := s.history.History(espID)

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		if limit < len(readings) {
			readings = readings[len(readings)-limit:]
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"esp_id":   espID,
		"count":    len(readings),
		"readings": readings,
	})
}

// handleListPanels returns the latest reading for every known panel.
func (s *Server) handleListPanels(w http.ResponseWriter, r *http.Request) {
	readings, err := s.store.AllLatest(r.Context())
	if err != nil {
		s.logger.Error("panel listing failed", "error", err)
		writeInternalError(w, "failed to query panels")
		return
	}

	if readings == nil {
		readings = []telemetry.Reading{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"total_panels": len(readings),
		"panels":       readings,
	})
}

// handleUsage returns per-hour power aggregation for a device.
func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	espID := s.deviceParam(r)

	hours := defaultUsageHours
	if hoursStr := r.URL.Query().Get("hours"); hoursStr != "" {
		parsed, err := strconv.Atoi(hoursStr)
		if err != nil || parsed < 1 || parsed > maxUsageHours {
			writeBadRequest(w, "hours must be between 1 and 168")
			return
		}
		hours = parsed
	}

	since := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)
	buckets, err := s.store.UsageSince(r.Context(), espID, since)
	if err != nil {
		s.logger.Error("usage query failed", "esp_id", espID, "error", err)
		writeInternalError(w, "failed to query usage")
		return
	}

	if buckets == nil {
		buckets = []telemetry.UsageBucket{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"esp_id": espID,
		"hours":  hours,
		"usage":  buckets,
	})
}
