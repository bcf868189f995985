// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package syncengine

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestMemStoreClaimExclusivity(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	claimed, err := store.ClaimSync(ctx, "fac-1", DataTypePackages, ModeIncremental)
	require.NoError(t, err)
	require.True(t, claimed)

	claimed, err = store.ClaimSync(ctx, "fac-1", DataTypePackages, ModeIncremental)
	require.NoError(t, err)
	require.False(t, claimed)

	// A different key claims independently.
	claimed, err = store.ClaimSync(ctx, "fac-1", DataTypeSalesReceipts, ModeIncremental)
	require.NoError(t, err)
	require.True(t, claimed)

	// Finishing releases the claim.
	require.NoError(t, store.FinishSyncSuccess(ctx, "fac-1", DataTypePackages, ModeIncremental, time.Now().UTC(), 5))
	claimed, err = store.ClaimSync(ctx, "fac-1", DataTypePackages, ModeIncremental)
	require.NoError(t, err)
	require.True(t, claimed)
}

func TestMemStoreClaimUnderConcurrency(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claimed, err := store.ClaimSync(ctx, "fac-1", DataTypePackages, ModeIncremental)
			require.NoError(t, err)
			if claimed {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), wins.Load())
}

func TestMemStoreFinishSuccessClearsError(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	_, err := store.ClaimSync(ctx, "fac-1", DataTypePackages, ModeIncremental)
	require.NoError(t, err)
	require.NoError(t, store.FinishSyncError(ctx, "fac-1", DataTypePackages, ModeIncremental, ClassUpstreamServerError, "upstream server error", 3))

	statuses, err := store.FacilitySyncStatuses(ctx, "fac-1")
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	require.Equal(t, StError, statuses[0].Status)
	require.NotNil(t, statuses[0].LastError)
	require.Nil(t, statuses[0].LastSyncAt)

	_, err = store.ClaimSync(ctx, "fac-1", DataTypePackages, ModeIncremental)
	require.NoError(t, err)
	syncedAt := time.Now().UTC()
	require.NoError(t, store.FinishSyncSuccess(ctx, "fac-1", DataTypePackages, ModeIncremental, syncedAt, 10))

	statuses, err = store.FacilitySyncStatuses(ctx, "fac-1")
	require.NoError(t, err)
	require.Equal(t, StSuccess, statuses[0].Status)
	require.Nil(t, statuses[0].LastError)
	require.Nil(t, statuses[0].ErrorClass)
	require.Equal(t, 10, statuses[0].ItemCount)
	require.True(t, syncedAt.Equal(*statuses[0].LastSyncAt))
}

func TestMemStoreLogsNewestFirstWithLimit(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()
	base := time.Date(2025, 8, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, store.AppendSyncLog(ctx, SyncLogEntry{
			ID:          uuid.New(),
			FacilityID:  "fac-1",
			DataType:    DataTypePackages,
			RunType:     RunManual,
			Timestamp:   base.Add(time.Duration(i) * time.Minute),
			Status:      StSuccess,
			ItemsSynced: i,
		}))
	}
	require.NoError(t, store.AppendSyncLog(ctx, SyncLogEntry{
		ID:         uuid.New(),
		FacilityID: "fac-2",
		DataType:   DataTypePackages,
		RunType:    RunManual,
		Timestamp:  base.Add(10 * time.Minute),
		Status:     StError,
	}))

	logs, err := store.ListSyncLogs(ctx, "", 3)
	require.NoError(t, err)
	require.Len(t, logs, 3)
	require.Equal(t, "fac-2", logs[0].FacilityID)
	require.True(t, logs[0].Timestamp.After(logs[1].Timestamp))
	require.True(t, logs[1].Timestamp.After(logs[2].Timestamp))

	logs, err = store.ListSyncLogs(ctx, "fac-1", 10)
	require.NoError(t, err)
	require.Len(t, logs, 5)
	for _, entry := range logs {
		require.Equal(t, "fac-1", entry.FacilityID)
	}
}

func TestMemStoreUpsertRecordsLastWriteWins(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()
	older := time.Date(2025, 8, 1, 10, 0, 0, 0, time.UTC)
	newer := older.Add(time.Hour)

	require.NoError(t, store.UpsertRecords(ctx, "fac-1", DataTypePackages, []Record{{
		UpstreamID:   1,
		Label:        "L1",
		LastModified: newer,
		SyncedAt:     newer,
		Payload:      json.RawMessage(`{"v":"new"}`),
	}}))

	// A stale write must not clobber the fresher record.
	require.NoError(t, store.UpsertRecords(ctx, "fac-1", DataTypePackages, []Record{{
		UpstreamID:   1,
		Label:        "L1-stale",
		LastModified: older,
		SyncedAt:     newer,
		Payload:      json.RawMessage(`{"v":"old"}`),
	}}))

	rec := store.records[recordKeyT{"fac-1", DataTypePackages, 1}]
	require.Equal(t, "L1", rec.Label)
	require.Contains(t, string(rec.Payload), "new")

	count, err := store.CountRecords(ctx, "fac-1", DataTypePackages)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestMemStoreFacilityLifecycle(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	f := testFacility()
	require.NoError(t, store.UpsertFacility(ctx, f))

	got, err := store.GetFacility(ctx, f.ID)
	require.NoError(t, err)
	require.Equal(t, f, *got)

	// Credential rotation replaces the whole set.
	f.VendorKey = "vendor-key-2"
	f.UserKey = "user-key-2"
	require.NoError(t, store.UpsertFacility(ctx, f))
	got, err = store.GetFacility(ctx, f.ID)
	require.NoError(t, err)
	require.Equal(t, "vendor-key-2", got.VendorKey)

	require.NoError(t, store.SetSyncEnabled(ctx, f.ID, false))
	got, err = store.GetFacility(ctx, f.ID)
	require.NoError(t, err)
	require.False(t, got.SyncEnabled)

	_, err = store.GetFacility(ctx, "missing")
	require.Error(t, err)
	require.Error(t, store.SetSyncEnabled(ctx, "missing", true))
}
