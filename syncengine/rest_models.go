// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package syncengine

import "time"

// REST API request/response models for the inbound sync surface consumed
// by dashboards and operator tooling.

// TriggerSyncResponse acknowledges a manual trigger. Completion is observed
// via the status endpoint, not this response.
type TriggerSyncResponse struct {
	FacilityID string   `json:"facilityId"`
	DataType   DataType `json:"dataType"`
	Started    bool     `json:"started"`
	Status     string   `json:"status"` // "started" or "already_running"
}

// TriggerSyncAllResponse acknowledges a facility-wide fan-out.
type TriggerSyncAllResponse struct {
	FacilityID string          `json:"facilityId"`
	Results    []TriggerResult `json:"results"`
}

// SyncStatusResponse is the dashboard view of one status row.
type SyncStatusResponse struct {
	FacilityID   string     `json:"facilityId"`
	DataType     DataType   `json:"dataType"`
	Status       string     `json:"status"`
	LastSyncAt   *time.Time `json:"lastSyncAt"`
	LastSyncMode SyncMode   `json:"lastSyncMode,omitempty"`
	ItemCount    int        `json:"itemCount"`
	LastError    *string    `json:"lastError,omitempty"`
	ErrorClass   *string    `json:"errorClass,omitempty"`
}

// SyncLogResponse is the dashboard view of one audit log entry.
type SyncLogResponse struct {
	ID          string    `json:"id"`
	FacilityID  string    `json:"facilityId"`
	DataType    DataType  `json:"dataType"`
	RunType     RunType   `json:"runType"`
	Timestamp   time.Time `json:"timestamp"`
	Status      string    `json:"status"`
	ItemsSynced int       `json:"itemsSynced"`
	Error       *string   `json:"error,omitempty"`
}

// ScheduleRequest toggles the cadence timers for one facility.
type ScheduleRequest struct {
	FacilityID string `json:"facilityId"`
	Enabled    bool   `json:"enabled"`
}

// ErrorResponse is the standardized error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func statusResponse(st SyncStatus) SyncStatusResponse {
	return SyncStatusResponse{
		FacilityID:   st.FacilityID,
		DataType:     st.DataType,
		Status:       st.Status,
		LastSyncAt:   st.LastSyncAt,
		LastSyncMode: st.LastSyncMode,
		ItemCount:    st.ItemCount,
		LastError:    st.LastError,
		ErrorClass:   st.ErrorClass,
	}
}

func logResponse(entry SyncLogEntry) SyncLogResponse {
	return SyncLogResponse{
		ID:          entry.ID.String(),
		FacilityID:  entry.FacilityID,
		DataType:    entry.DataType,
		RunType:     entry.RunType,
		Timestamp:   entry.Timestamp,
		Status:      entry.Status,
		ItemsSynced: entry.ItemsSynced,
		Error:       entry.Error,
	}
}
