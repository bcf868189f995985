// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package syncengine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

type statusKeyT struct {
	facilityID string
	dataType   DataType
}

type recordKeyT struct {
	facilityID string
	dataType   DataType
	upstreamID int64
}

// MemStore is an in-memory Store for tests and ephemeral embedding. All
// operations are guarded by a single mutex; ClaimSync is therefore atomic.
type MemStore struct {
	mu         sync.Mutex
	facilities map[string]Facility
	statuses   map[statusKeyT]SyncStatus
	logs       []SyncLogEntry
	records    map[recordKeyT]Record
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		facilities: make(map[string]Facility),
		statuses:   make(map[statusKeyT]SyncStatus),
		records:    make(map[recordKeyT]Record),
	}
}

func (m *MemStore) ListFacilities(_ context.Context) ([]Facility, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Facility, 0, len(m.facilities))
	for _, f := range m.facilities {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemStore) GetFacility(_ context.Context, facilityID string) (*Facility, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.facilities[facilityID]
	if !ok {
		return nil, fmt.Errorf("facility %s not found", facilityID)
	}
	return &f, nil
}

func (m *MemStore) UpsertFacility(_ context.Context, f Facility) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.facilities[f.ID] = f
	return nil
}

func (m *MemStore) SetSyncEnabled(_ context.Context, facilityID string, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.facilities[facilityID]
	if !ok {
		return fmt.Errorf("facility %s not found", facilityID)
	}
	f.SyncEnabled = enabled
	m.facilities[facilityID] = f
	return nil
}

func (m *MemStore) DeactivateFacility(_ context.Context, facilityID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.facilities[facilityID]
	if !ok {
		return fmt.Errorf("facility %s not found", facilityID)
	}
	f.SyncEnabled = false
	m.facilities[facilityID] = f
	for key, st := range m.statuses {
		if key.facilityID != facilityID {
			continue
		}
		st.Status = StIdle
		st.LastError = nil
		st.ErrorClass = nil
		st.UpdatedAt = time.Now().UTC()
		m.statuses[key] = st
	}
	return nil
}

func (m *MemStore) ClaimSync(_ context.Context, facilityID string, dataType DataType, mode SyncMode) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := statusKeyT{facilityID, dataType}
	st, ok := m.statuses[key]
	if ok && st.Status == StRunning {
		return false, nil
	}
	if !ok {
		st = SyncStatus{FacilityID: facilityID, DataType: dataType}
	}
	st.Status = StRunning
	st.LastSyncMode = mode
	st.UpdatedAt = time.Now().UTC()
	m.statuses[key] = st
	return true, nil
}

func (m *MemStore) FinishSyncSuccess(_ context.Context, facilityID string, dataType DataType, mode SyncMode, syncedAt time.Time, itemCount int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := statusKeyT{facilityID, dataType}
	st := m.statuses[key]
	st.FacilityID = facilityID
	st.DataType = dataType
	st.Status = StSuccess
	t := syncedAt
	st.LastSyncAt = &t
	st.LastSyncMode = mode
	st.ItemCount = itemCount
	st.LastError = nil
	st.ErrorClass = nil
	st.UpdatedAt = time.Now().UTC()
	m.statuses[key] = st
	return nil
}

func (m *MemStore) FinishSyncError(_ context.Context, facilityID string, dataType DataType, mode SyncMode, class ErrorClass, message string, itemCount int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := statusKeyT{facilityID, dataType}
	st := m.statuses[key]
	st.FacilityID = facilityID
	st.DataType = dataType
	st.Status = StError
	st.LastSyncMode = mode
	st.ItemCount = itemCount
	msg := message
	st.LastError = &msg
	cls := string(class)
	st.ErrorClass = &cls
	st.UpdatedAt = time.Now().UTC()
	m.statuses[key] = st
	return nil
}

func (m *MemStore) ListSyncStatuses(_ context.Context) ([]SyncStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SyncStatus, 0, len(m.statuses))
	for _, st := range m.statuses {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FacilityID != out[j].FacilityID {
			return out[i].FacilityID < out[j].FacilityID
		}
		return out[i].DataType < out[j].DataType
	})
	return out, nil
}

func (m *MemStore) FacilitySyncStatuses(_ context.Context, facilityID string) ([]SyncStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []SyncStatus
	for key, st := range m.statuses {
		if key.facilityID == facilityID {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DataType < out[j].DataType })
	return out, nil
}

func (m *MemStore) AppendSyncLog(_ context.Context, entry SyncLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, entry)
	return nil
}

func (m *MemStore) ListSyncLogs(_ context.Context, facilityID string, limit int) ([]SyncLogEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []SyncLogEntry
	for _, entry := range m.logs {
		if facilityID != "" && entry.FacilityID != facilityID {
			continue
		}
		out = append(out, entry)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemStore) UpsertRecords(_ context.Context, facilityID string, dataType DataType, batch []Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range batch {
		key := recordKeyT{facilityID, dataType, rec.UpstreamID}
		if existing, ok := m.records[key]; ok && existing.LastModified.After(rec.LastModified) {
			continue
		}
		m.records[key] = rec
	}
	return nil
}

func (m *MemStore) CountRecords(_ context.Context, facilityID string, dataType DataType) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for key := range m.records {
		if key.facilityID == facilityID && key.dataType == dataType {
			count++
		}
	}
	return count, nil
}
