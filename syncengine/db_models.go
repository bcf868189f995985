// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package syncengine

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Persisted entity models shared by the store implementations.

// Facility is a licensed business location together with its Metrc
// credential set. Credentials are owned exclusively by the facility row and
// rotated by whole-set replacement. Key material must never appear in logs.
type Facility struct {
	ID            string `db:"id"`
	Name          string `db:"name"`
	LicenseNumber string `db:"license_number"`
	VendorKey     string `db:"vendor_key"`
	UserKey       string `db:"user_key"`
	Environment   string `db:"environment"` // sandbox or production
	SyncEnabled   bool   `db:"sync_enabled"`
}

// SyncStatus is the mutable bookkeeping row for one (facility, dataType)
// key. Upsert semantics; mutated only by the orchestrator at run start/end.
type SyncStatus struct {
	FacilityID   string     `db:"facility_id"`
	DataType     DataType   `db:"data_type"`
	Status       string     `db:"status"` // idle, running, success, error
	LastSyncAt   *time.Time `db:"last_sync_at"`
	LastSyncMode SyncMode   `db:"last_sync_mode"`
	ItemCount    int        `db:"item_count"`
	LastError    *string    `db:"last_error"`
	ErrorClass   *string    `db:"error_class"`
	UpdatedAt    time.Time  `db:"updated_at"`
}

// SyncLogEntry is one append-only audit record per completed or failed run.
// Never edited or deleted by normal operation.
type SyncLogEntry struct {
	ID          uuid.UUID `db:"id"`
	FacilityID  string    `db:"facility_id"`
	DataType    DataType  `db:"data_type"`
	RunType     RunType   `db:"run_type"`
	Timestamp   time.Time `db:"ts"`
	Status      string    `db:"status"` // success or error
	ItemsSynced int       `db:"items_synced"`
	Error       *string   `db:"error"`
}

// Record is a normalized local copy of one upstream entity. Payload holds
// the full upstream JSON so fields outside the local schema survive intact.
// Conflict resolution is last-write-wins by upstream LastModified.
type Record struct {
	UpstreamID   int64           `db:"upstream_id"`
	Label        string          `db:"label"`
	LastModified time.Time       `db:"last_modified"`
	SyncedAt     time.Time       `db:"synced_at"`
	Payload      json.RawMessage `db:"payload"`
}

// SyncTarget identifies one unit of sync work. Immutable; consumed by
// exactly one executor invocation.
type SyncTarget struct {
	FacilityID string
	DataType   DataType
	Mode       SyncMode
}

// SyncWindow bounds an incremental run's upstream query. A zero Start means
// no lower bound (full sync or first-ever incremental).
type SyncWindow struct {
	Start time.Time
	End   time.Time
}
