// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package syncengine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/greenledger/metrcsync/metrc"
)

func newSchedulerTestEngine(t *testing.T, store Store, upstream *fakeUpstream, tune func(*Config)) *Engine {
	t.Helper()
	config := DefaultConfig()
	config.RunTimeout = 10 * time.Second
	config.Governor = GovernorConfig{RequestsPerMinute: 6000, Burst: 100, WaitTimeout: time.Second, MinRequestsPerMinute: 6}
	config.ClientFactory = func(f Facility) (*metrc.Client, error) {
		creds := metrc.Credentials{
			VendorKey:     f.VendorKey,
			UserKey:       f.UserKey,
			LicenseNumber: f.LicenseNumber,
		}
		return metrc.NewClientWithBaseURL(creds, upstream.srv.URL, nil, testLogger())
	}
	tune(config)

	engine, err := NewEngine(store, config, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })
	return engine
}

func TestSchedulerRunsIncrementalCadence(t *testing.T) {
	upstream := newFakeUpstream(t)
	store := NewMemStore()
	require.NoError(t, store.UpsertFacility(context.Background(), testFacility()))
	engine := newSchedulerTestEngine(t, store, upstream, func(c *Config) {
		c.IncrementalInterval = 50 * time.Millisecond
		c.FullInterval = time.Hour
		c.RetryInterval = time.Hour
	})

	scheduler := NewScheduler(engine, testLogger())
	scheduler.Start(context.Background())
	defer scheduler.Stop()

	for _, dt := range AllDataTypes() {
		st := awaitStatus(t, store, "fac-1", dt, StSuccess)
		require.Equal(t, ModeIncremental, st.LastSyncMode)
	}

	logs, err := store.ListSyncLogs(context.Background(), "fac-1", 100)
	require.NoError(t, err)
	require.NotEmpty(t, logs)
	require.Equal(t, RunHourlyIncremental, logs[0].RunType)
}

func TestSchedulerSkipsDisabledFacility(t *testing.T) {
	upstream := newFakeUpstream(t)
	store := NewMemStore()
	disabled := testFacility()
	disabled.SyncEnabled = false
	require.NoError(t, store.UpsertFacility(context.Background(), disabled))
	engine := newSchedulerTestEngine(t, store, upstream, func(c *Config) {
		c.IncrementalInterval = 30 * time.Millisecond
		c.FullInterval = time.Hour
		c.RetryInterval = time.Hour
	})

	scheduler := NewScheduler(engine, testLogger())
	scheduler.Start(context.Background())
	defer scheduler.Stop()

	time.Sleep(200 * time.Millisecond)
	statuses, err := store.ListSyncStatuses(context.Background())
	require.NoError(t, err)
	require.Empty(t, statuses)
}

func TestSchedulerCadenceLeavesErrorKeysToRetry(t *testing.T) {
	upstream := newFakeUpstream(t)
	store := NewMemStore()
	require.NoError(t, store.UpsertFacility(context.Background(), testFacility()))

	// Every data type is parked in a retryable error state.
	ctx := context.Background()
	for _, dt := range AllDataTypes() {
		_, err := store.ClaimSync(ctx, "fac-1", dt, ModeIncremental)
		require.NoError(t, err)
		require.NoError(t, store.FinishSyncError(ctx, "fac-1", dt, ModeIncremental, ClassUpstreamServerError, "upstream server error", 0))
	}

	engine := newSchedulerTestEngine(t, store, upstream, func(c *Config) {
		c.IncrementalInterval = 30 * time.Millisecond
		c.FullInterval = time.Hour
		c.RetryInterval = time.Hour
	})

	scheduler := NewScheduler(engine, testLogger())
	scheduler.Start(context.Background())
	defer scheduler.Stop()

	time.Sleep(200 * time.Millisecond)
	// The incremental cadence must not have touched the error keys.
	require.Empty(t, upstream.requests("/packages/v2/active"))
	statuses, err := store.ListSyncStatuses(ctx)
	require.NoError(t, err)
	for _, st := range statuses {
		require.Equal(t, StError, st.Status)
	}
}

func TestSchedulerRetriesRetryableErrors(t *testing.T) {
	upstream := newFakeUpstream(t)
	store := NewMemStore()
	require.NoError(t, store.UpsertFacility(context.Background(), testFacility()))

	ctx := context.Background()
	_, err := store.ClaimSync(ctx, "fac-1", DataTypePackages, ModeIncremental)
	require.NoError(t, err)
	require.NoError(t, store.FinishSyncError(ctx, "fac-1", DataTypePackages, ModeIncremental, ClassUpstreamServerError, "upstream server error", 0))

	engine := newSchedulerTestEngine(t, store, upstream, func(c *Config) {
		c.IncrementalInterval = time.Hour
		c.FullInterval = time.Hour
		c.RetryInterval = 30 * time.Millisecond
	})

	scheduler := NewScheduler(engine, testLogger())
	scheduler.Start(context.Background())
	defer scheduler.Stop()

	st := awaitStatus(t, store, "fac-1", DataTypePackages, StSuccess)
	require.Equal(t, ModeIncremental, st.LastSyncMode)

	logs, err := store.ListSyncLogs(ctx, "fac-1", 10)
	require.NoError(t, err)
	require.NotEmpty(t, logs)
	require.Equal(t, RunRetry, logs[0].RunType)
}

func TestSchedulerNeverRetriesCredentialErrors(t *testing.T) {
	upstream := newFakeUpstream(t)
	store := NewMemStore()
	require.NoError(t, store.UpsertFacility(context.Background(), testFacility()))

	ctx := context.Background()
	_, err := store.ClaimSync(ctx, "fac-1", DataTypePackages, ModeIncremental)
	require.NoError(t, err)
	require.NoError(t, store.FinishSyncError(ctx, "fac-1", DataTypePackages, ModeIncremental, ClassAuthenticationFailed, "bad credentials", 0))

	engine := newSchedulerTestEngine(t, store, upstream, func(c *Config) {
		c.IncrementalInterval = time.Hour
		c.FullInterval = time.Hour
		c.RetryInterval = 30 * time.Millisecond
	})

	scheduler := NewScheduler(engine, testLogger())
	scheduler.Start(context.Background())
	defer scheduler.Stop()

	time.Sleep(200 * time.Millisecond)
	require.Empty(t, upstream.requests("/packages/v2/active"))

	statuses, err := store.FacilitySyncStatuses(ctx, "fac-1")
	require.NoError(t, err)
	require.Equal(t, StError, statuses[0].Status)
}

func TestSchedulerStopIsIdempotent(t *testing.T) {
	engine := newSchedulerTestEngine(t, NewMemStore(), newFakeUpstream(t), func(c *Config) {})
	scheduler := NewScheduler(engine, testLogger())

	scheduler.Stop() // never started
	scheduler.Start(context.Background())
	scheduler.Start(context.Background()) // second start is a no-op
	scheduler.Stop()
	scheduler.Stop()
}
