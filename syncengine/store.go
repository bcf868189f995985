// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package syncengine

import (
	"context"
	"time"
)

// Store is the persistence layer behind the engine. It is deliberately
// dumb: claiming discipline, window computation and retry eligibility all
// live in the orchestrator. Implementations must make ClaimSync atomic and
// record upserts transactional per batch.
type Store interface {
	// Facilities and credentials.

	ListFacilities(ctx context.Context) ([]Facility, error)
	GetFacility(ctx context.Context, facilityID string) (*Facility, error)
	// UpsertFacility replaces the whole facility row. Credential rotation is
	// whole-set replacement; there is no partial credential update.
	UpsertFacility(ctx context.Context, f Facility) error
	// SetSyncEnabled toggles whether cadence timers act on this facility.
	// Stored statuses are left untouched.
	SetSyncEnabled(ctx context.Context, facilityID string, enabled bool) error
	// DeactivateFacility disables scheduling and resets the facility's
	// status rows to idle. Status rows are never deleted.
	DeactivateFacility(ctx context.Context, facilityID string) error

	// Sync status. One row per (facility, dataType), upsert semantics.

	// ClaimSync atomically moves the key to running, succeeding only if the
	// key is not already running. This is the engine's exclusivity lock.
	ClaimSync(ctx context.Context, facilityID string, dataType DataType, mode SyncMode) (bool, error)
	// FinishSyncSuccess records a successful run: lastSyncAt advances to the
	// run's start time so the next incremental window leaves no gap.
	FinishSyncSuccess(ctx context.Context, facilityID string, dataType DataType, mode SyncMode, syncedAt time.Time, itemCount int) error
	// FinishSyncError records a failed run. lastSyncAt is left unchanged so
	// no time window is ever skipped.
	FinishSyncError(ctx context.Context, facilityID string, dataType DataType, mode SyncMode, class ErrorClass, message string, itemCount int) error
	ListSyncStatuses(ctx context.Context) ([]SyncStatus, error)
	FacilitySyncStatuses(ctx context.Context, facilityID string) ([]SyncStatus, error)

	// Sync log. Append-only audit trail.

	AppendSyncLog(ctx context.Context, entry SyncLogEntry) error
	// ListSyncLogs returns entries ordered by timestamp descending, capped
	// at limit. Empty facilityID means all facilities.
	ListSyncLogs(ctx context.Context, facilityID string, limit int) ([]SyncLogEntry, error)

	// Normalized records.

	// UpsertRecords writes one batch transactionally: all or nothing.
	// Conflicts resolve last-write-wins by upstream LastModified.
	UpsertRecords(ctx context.Context, facilityID string, dataType DataType, batch []Record) error
	// CountRecords reports how many local records exist for the key.
	CountRecords(ctx context.Context, facilityID string, dataType DataType) (int, error)
}
