// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package syncengine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

// stubAuthenticator accepts every request unless rejection is forced.
type stubAuthenticator struct {
	userID string
	err    error
}

func (a *stubAuthenticator) GetUserID(r *http.Request) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	return a.userID, nil
}

func newTestHandlers(t *testing.T, upstream *fakeUpstream, auth ClientAuthenticator) (*HTTPHandlers, Store) {
	t.Helper()
	store := NewMemStore()
	require.NoError(t, store.UpsertFacility(context.Background(), testFacility()))
	engine := newTestEngine(t, store, upstream)
	if auth == nil {
		auth = &stubAuthenticator{userID: "operator-1"}
	}
	return NewHTTPHandlers(engine, auth, testLogger()), store
}

func TestHandleTriggerSync(t *testing.T) {
	upstream := newFakeUpstream(t)
	upstream.setPages("/packages/v2/active", fakePackages(1, 2))
	handlers, store := newTestHandlers(t, upstream, nil)

	req := httptest.NewRequest(http.MethodPost, "/sync/trigger?facility=fac-1&dataType=packages", nil)
	w := httptest.NewRecorder()
	handlers.HandleTriggerSync(w, req)

	require.Equal(t, http.StatusAccepted, w.Code)
	var resp TriggerSyncResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Equal(t, "fac-1", resp.FacilityID)
	require.Equal(t, DataTypePackages, resp.DataType)
	require.True(t, resp.Started)
	require.Equal(t, "started", resp.Status)

	awaitStatus(t, store, "fac-1", DataTypePackages, StSuccess)
}

func TestHandleTriggerSyncAlreadyRunning(t *testing.T) {
	upstream := newFakeUpstream(t)
	upstream.setPages("/packages/v2/active", fakePackages(1, 1))
	gate := make(chan struct{})
	upstream.setGate(gate)
	handlers, store := newTestHandlers(t, upstream, nil)

	first := httptest.NewRecorder()
	handlers.HandleTriggerSync(first, httptest.NewRequest(http.MethodPost, "/sync/trigger?facility=fac-1&dataType=packages", nil))
	require.Equal(t, http.StatusAccepted, first.Code)

	second := httptest.NewRecorder()
	handlers.HandleTriggerSync(second, httptest.NewRequest(http.MethodPost, "/sync/trigger?facility=fac-1&dataType=packages", nil))
	require.Equal(t, http.StatusAccepted, second.Code)

	var resp TriggerSyncResponse
	require.NoError(t, json.NewDecoder(second.Body).Decode(&resp))
	require.False(t, resp.Started)
	require.Equal(t, "already_running", resp.Status)

	close(gate)
	awaitStatus(t, store, "fac-1", DataTypePackages, StSuccess)
}

func TestHandleTriggerSyncValidation(t *testing.T) {
	handlers, _ := newTestHandlers(t, newFakeUpstream(t), nil)

	tests := []struct {
		name   string
		method string
		url    string
		code   int
	}{
		{"wrong method", http.MethodGet, "/sync/trigger?facility=fac-1&dataType=packages", http.StatusMethodNotAllowed},
		{"missing facility", http.MethodPost, "/sync/trigger?dataType=packages", http.StatusBadRequest},
		{"unknown data type", http.MethodPost, "/sync/trigger?facility=fac-1&dataType=bogus", http.StatusBadRequest},
		{"bad mode", http.MethodPost, "/sync/trigger?facility=fac-1&dataType=packages&mode=sideways", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			handlers.HandleTriggerSync(w, httptest.NewRequest(tt.method, tt.url, nil))
			require.Equal(t, tt.code, w.Code)

			var resp ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			require.NotEmpty(t, resp.Error)
		})
	}
}

func TestHandlersRejectUnauthenticated(t *testing.T) {
	authErr := &stubAuthenticator{err: fmt.Errorf("authorization header required")}
	handlers, _ := newTestHandlers(t, newFakeUpstream(t), authErr)

	calls := []struct {
		name    string
		method  string
		url     string
		handler func(http.ResponseWriter, *http.Request)
	}{
		{"trigger", http.MethodPost, "/sync/trigger?facility=fac-1&dataType=packages", handlers.HandleTriggerSync},
		{"trigger all", http.MethodPost, "/sync/trigger-all?facility=fac-1", handlers.HandleTriggerSyncAll},
		{"status", http.MethodGet, "/sync/status?facility=fac-1", handlers.HandleSyncStatus},
		{"logs", http.MethodGet, "/sync/logs", handlers.HandleSyncLogs},
		{"schedule", http.MethodPost, "/sync/schedule", handlers.HandleConfigureSchedule},
	}
	for _, c := range calls {
		t.Run(c.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c.handler(w, httptest.NewRequest(c.method, c.url, nil))
			require.Equal(t, http.StatusUnauthorized, w.Code)

			var resp ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			require.Equal(t, "authentication_failed", resp.Error)
		})
	}
}

func TestHandleTriggerSyncAll(t *testing.T) {
	upstream := newFakeUpstream(t)
	handlers, store := newTestHandlers(t, upstream, nil)

	w := httptest.NewRecorder()
	handlers.HandleTriggerSyncAll(w, httptest.NewRequest(http.MethodPost, "/sync/trigger-all?facility=fac-1", nil))
	require.Equal(t, http.StatusAccepted, w.Code)

	var resp TriggerSyncAllResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Equal(t, "fac-1", resp.FacilityID)
	require.Len(t, resp.Results, len(AllDataTypes()))
	for _, res := range resp.Results {
		require.True(t, res.Started)
	}

	for _, dt := range AllDataTypes() {
		awaitStatus(t, store, "fac-1", dt, StSuccess)
	}
}

func TestHandleSyncStatus(t *testing.T) {
	upstream := newFakeUpstream(t)
	upstream.setPages("/packages/v2/active", fakePackages(1, 2))
	handlers, store := newTestHandlers(t, upstream, nil)

	trigger := httptest.NewRecorder()
	handlers.HandleTriggerSync(trigger, httptest.NewRequest(http.MethodPost, "/sync/trigger?facility=fac-1&dataType=packages", nil))
	awaitStatus(t, store, "fac-1", DataTypePackages, StSuccess)

	w := httptest.NewRecorder()
	handlers.HandleSyncStatus(w, httptest.NewRequest(http.MethodGet, "/sync/status?facility=fac-1", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var statuses []SyncStatusResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&statuses))
	require.Len(t, statuses, 1)
	require.Equal(t, DataTypePackages, statuses[0].DataType)
	require.Equal(t, StSuccess, statuses[0].Status)
	require.Equal(t, 2, statuses[0].ItemCount)
	require.NotNil(t, statuses[0].LastSyncAt)

	missing := httptest.NewRecorder()
	handlers.HandleSyncStatus(missing, httptest.NewRequest(http.MethodGet, "/sync/status", nil))
	require.Equal(t, http.StatusBadRequest, missing.Code)
}

func TestHandleSyncLogs(t *testing.T) {
	upstream := newFakeUpstream(t)
	upstream.setPages("/packages/v2/active", fakePackages(1, 1))
	handlers, store := newTestHandlers(t, upstream, nil)

	trigger := httptest.NewRecorder()
	handlers.HandleTriggerSync(trigger, httptest.NewRequest(http.MethodPost, "/sync/trigger?facility=fac-1&dataType=packages", nil))
	awaitStatus(t, store, "fac-1", DataTypePackages, StSuccess)

	w := httptest.NewRecorder()
	handlers.HandleSyncLogs(w, httptest.NewRequest(http.MethodGet, "/sync/logs?facility=fac-1&limit=10", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var logs []SyncLogResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&logs))
	require.Len(t, logs, 1)
	require.Equal(t, StSuccess, logs[0].Status)
	require.Equal(t, RunManual, logs[0].RunType)
	require.Equal(t, 1, logs[0].ItemsSynced)

	badLimit := httptest.NewRecorder()
	handlers.HandleSyncLogs(badLimit, httptest.NewRequest(http.MethodGet, "/sync/logs?limit=5000", nil))
	require.Equal(t, http.StatusBadRequest, badLimit.Code)

	notNumeric := httptest.NewRecorder()
	handlers.HandleSyncLogs(notNumeric, httptest.NewRequest(http.MethodGet, "/sync/logs?limit=ten", nil))
	require.Equal(t, http.StatusBadRequest, notNumeric.Code)
}

func TestHandleConfigureSchedule(t *testing.T) {
	handlers, store := newTestHandlers(t, newFakeUpstream(t), nil)

	body, err := json.Marshal(ScheduleRequest{FacilityID: "fac-1", Enabled: false})
	require.NoError(t, err)
	w := httptest.NewRecorder()
	handlers.HandleConfigureSchedule(w, httptest.NewRequest(http.MethodPost, "/sync/schedule", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, w.Code)

	f, err := store.GetFacility(context.Background(), "fac-1")
	require.NoError(t, err)
	require.False(t, f.SyncEnabled)

	noFacility := httptest.NewRecorder()
	handlers.HandleConfigureSchedule(noFacility, httptest.NewRequest(http.MethodPost, "/sync/schedule", bytes.NewReader([]byte(`{"enabled":true}`))))
	require.Equal(t, http.StatusBadRequest, noFacility.Code)

	badJSON := httptest.NewRecorder()
	handlers.HandleConfigureSchedule(badJSON, httptest.NewRequest(http.MethodPost, "/sync/schedule", bytes.NewReader([]byte(`{`))))
	require.Equal(t, http.StatusBadRequest, badJSON.Code)
}
