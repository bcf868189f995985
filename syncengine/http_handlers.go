// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package syncengine

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
)

// ClientAuthenticator validates inbound dashboard/operator requests.
// Implementations should validate auth (e.g., JWT) and return the caller's
// identity for audit logging.
type ClientAuthenticator interface {
	GetUserID(r *http.Request) (string, error)
}

// HTTPHandlers provides the inbound HTTP surface of the sync engine.
type HTTPHandlers struct {
	engine        *Engine
	authenticator ClientAuthenticator
	logger        *slog.Logger
}

// NewHTTPHandlers creates a new instance of sync handlers.
func NewHTTPHandlers(engine *Engine, authenticator ClientAuthenticator, logger *slog.Logger) *HTTPHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPHandlers{
		engine:        engine,
		authenticator: authenticator,
		logger:        logger,
	}
}

// HandleTriggerSync starts one sync run for a (facility, dataType) key.
// Fire-and-forget: a second trigger while the key runs gets an immediate
// "already_running" acknowledgement.
func (h *HTTPHandlers) HandleTriggerSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Only POST method is allowed")
		return
	}
	userID, err := h.authenticator.GetUserID(r)
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, "authentication_failed", err.Error())
		return
	}

	facilityID := r.URL.Query().Get("facility")
	if facilityID == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "facility is required")
		return
	}
	dataType, err := ParseDataType(r.URL.Query().Get("dataType"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	mode := ModeIncremental
	if m := r.URL.Query().Get("mode"); m != "" {
		if m != string(ModeIncremental) && m != string(ModeFull) {
			h.writeError(w, http.StatusBadRequest, "invalid_request", "mode must be incremental or full")
			return
		}
		mode = SyncMode(m)
	}

	started, err := h.engine.TriggerSync(r.Context(), facilityID, dataType, mode, RunManual)
	if err != nil {
		h.logger.Error("Failed to trigger sync", "error", err,
			"facility_id", facilityID, "data_type", dataType, "user_id", userID)
		h.writeError(w, http.StatusInternalServerError, "trigger_failed", "Failed to trigger sync")
		return
	}

	resp := TriggerSyncResponse{
		FacilityID: facilityID,
		DataType:   dataType,
		Started:    started,
		Status:     "started",
	}
	if !started {
		resp.Status = "already_running"
	}
	h.writeJSON(w, http.StatusAccepted, resp)
}

// HandleTriggerSyncAll fans out one attempt per configured data type.
func (h *HTTPHandlers) HandleTriggerSyncAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Only POST method is allowed")
		return
	}
	userID, err := h.authenticator.GetUserID(r)
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, "authentication_failed", err.Error())
		return
	}

	facilityID := r.URL.Query().Get("facility")
	if facilityID == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "facility is required")
		return
	}
	mode := ModeIncremental
	if r.URL.Query().Get("mode") == string(ModeFull) {
		mode = ModeFull
	}

	results, err := h.engine.TriggerSyncAll(r.Context(), facilityID, mode)
	if err != nil {
		h.logger.Error("Failed to trigger sync all", "error", err,
			"facility_id", facilityID, "user_id", userID)
		h.writeError(w, http.StatusInternalServerError, "trigger_failed", "Failed to trigger sync")
		return
	}
	h.writeJSON(w, http.StatusAccepted, TriggerSyncAllResponse{
		FacilityID: facilityID,
		Results:    results,
	})
}

// HandleSyncStatus returns the read-only status snapshot for a facility.
func (h *HTTPHandlers) HandleSyncStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Only GET method is allowed")
		return
	}
	if _, err := h.authenticator.GetUserID(r); err != nil {
		h.writeError(w, http.StatusUnauthorized, "authentication_failed", err.Error())
		return
	}

	facilityID := r.URL.Query().Get("facility")
	if facilityID == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "facility is required")
		return
	}

	statuses, err := h.engine.SyncStatus(r.Context(), facilityID)
	if err != nil {
		h.logger.Error("Failed to read sync status", "error", err, "facility_id", facilityID)
		h.writeError(w, http.StatusInternalServerError, "status_failed", "Failed to read sync status")
		return
	}
	out := make([]SyncStatusResponse, 0, len(statuses))
	for _, st := range statuses {
		out = append(out, statusResponse(st))
	}
	h.writeJSON(w, http.StatusOK, out)
}

// HandleSyncLogs returns recent log entries, newest first, globally or for
// one facility.
func (h *HTTPHandlers) HandleSyncLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Only GET method is allowed")
		return
	}
	if _, err := h.authenticator.GetUserID(r); err != nil {
		h.writeError(w, http.StatusUnauthorized, "authentication_failed", err.Error())
		return
	}

	limit := 100
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid_request", "limit must be an integer")
			return
		}
		if parsed < 1 || parsed > 1000 {
			h.writeError(w, http.StatusBadRequest, "invalid_request", "limit must be between 1 and 1000")
			return
		}
		limit = parsed
	}
	facilityID := r.URL.Query().Get("facility")

	entries, err := h.engine.SyncLogs(r.Context(), facilityID, limit)
	if err != nil {
		h.logger.Error("Failed to read sync logs", "error", err)
		h.writeError(w, http.StatusInternalServerError, "logs_failed", "Failed to read sync logs")
		return
	}
	out := make([]SyncLogResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, logResponse(entry))
	}
	h.writeJSON(w, http.StatusOK, out)
}

// HandleConfigureSchedule toggles whether cadence timers act on a facility.
func (h *HTTPHandlers) HandleConfigureSchedule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Only POST method is allowed")
		return
	}
	userID, err := h.authenticator.GetUserID(r)
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, "authentication_failed", err.Error())
		return
	}

	var req ScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Failed to parse schedule request")
		return
	}
	if req.FacilityID == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "facilityId is required")
		return
	}

	if err := h.engine.ConfigureSchedule(r.Context(), req.FacilityID, req.Enabled); err != nil {
		h.logger.Error("Failed to configure schedule", "error", err,
			"facility_id", req.FacilityID, "user_id", userID)
		h.writeError(w, http.StatusInternalServerError, "schedule_failed", "Failed to configure schedule")
		return
	}
	h.writeJSON(w, http.StatusOK, req)
}

func (h *HTTPHandlers) writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("Failed to encode response", "error", err)
	}
}

// writeError writes a standardized error response.
func (h *HTTPHandlers) writeError(w http.ResponseWriter, statusCode int, errorCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errorResponse := ErrorResponse{
		Error:   errorCode,
		Message: message,
	}
	_ = json.NewEncoder(w).Encode(errorResponse)

	h.logger.Debug("HTTP error response",
		"status_code", statusCode,
		"error_code", errorCode,
		"message", message)
}
