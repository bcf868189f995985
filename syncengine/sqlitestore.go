// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package syncengine

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore is an embedded Store implementation for single-node
// deployments and local development. Semantics match PgStore; claims rely
// on SQLite's serialized writes plus the same conditional upsert.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates the store and initializes its schema. The db
// lifecycle stays with the caller.
func NewSQLiteStore(db *sql.DB, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &SQLiteStore{db: db, logger: logger}
	if err := s.initializeSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize sqlite sync schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initializeSchema() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS facilities (
			id             TEXT PRIMARY KEY,
			name           TEXT NOT NULL DEFAULT '',
			license_number TEXT NOT NULL,
			vendor_key     TEXT NOT NULL,
			user_key       TEXT NOT NULL,
			environment    TEXT NOT NULL CHECK (environment IN ('sandbox','production')),
			sync_enabled   INTEGER NOT NULL DEFAULT 1
		)`,
		`CREATE TABLE IF NOT EXISTS sync_status (
			facility_id    TEXT NOT NULL,
			data_type      TEXT NOT NULL,
			status         TEXT NOT NULL CHECK (status IN ('idle','running','success','error')),
			last_sync_at   DATETIME,
			last_sync_mode TEXT NOT NULL DEFAULT '',
			item_count     INTEGER NOT NULL DEFAULT 0,
			last_error     TEXT,
			error_class    TEXT,
			updated_at     DATETIME NOT NULL,
			PRIMARY KEY (facility_id, data_type)
		)`,
		`CREATE TABLE IF NOT EXISTS sync_log (
			id           TEXT PRIMARY KEY,
			facility_id  TEXT NOT NULL,
			data_type    TEXT NOT NULL,
			run_type     TEXT NOT NULL,
			ts           DATETIME NOT NULL,
			status       TEXT NOT NULL CHECK (status IN ('success','error')),
			items_synced INTEGER NOT NULL DEFAULT 0,
			error        TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS sync_log_ts_idx ON sync_log (ts DESC)`,
		`CREATE TABLE IF NOT EXISTS records (
			facility_id   TEXT NOT NULL,
			data_type     TEXT NOT NULL,
			upstream_id   INTEGER NOT NULL,
			label         TEXT NOT NULL,
			last_modified DATETIME NOT NULL,
			synced_at     DATETIME NOT NULL,
			payload       TEXT NOT NULL,
			PRIMARY KEY (facility_id, data_type, upstream_id)
		)`,
	}
	for i, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return fmt.Errorf("schema migration %d failed: %w", i, err)
		}
	}
	return nil
}

func (s *SQLiteStore) ListFacilities(ctx context.Context) ([]Facility, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, license_number, vendor_key, user_key, environment, sync_enabled
		FROM facilities ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query facilities: %w", err)
	}
	defer rows.Close()

	var out []Facility
	for rows.Next() {
		var f Facility
		if err := rows.Scan(&f.ID, &f.Name, &f.LicenseNumber, &f.VendorKey, &f.UserKey, &f.Environment, &f.SyncEnabled); err != nil {
			return nil, fmt.Errorf("failed to scan facility: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetFacility(ctx context.Context, facilityID string) (*Facility, error) {
	var f Facility
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, license_number, vendor_key, user_key, environment, sync_enabled
		FROM facilities WHERE id = ?
	`, facilityID).Scan(&f.ID, &f.Name, &f.LicenseNumber, &f.VendorKey, &f.UserKey, &f.Environment, &f.SyncEnabled)
	if err != nil {
		return nil, fmt.Errorf("failed to load facility %s: %w", facilityID, err)
	}
	return &f, nil
}

func (s *SQLiteStore) UpsertFacility(ctx context.Context, f Facility) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO facilities (id, name, license_number, vendor_key, user_key, environment, sync_enabled)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			license_number = excluded.license_number,
			vendor_key = excluded.vendor_key,
			user_key = excluded.user_key,
			environment = excluded.environment,
			sync_enabled = excluded.sync_enabled
	`, f.ID, f.Name, f.LicenseNumber, f.VendorKey, f.UserKey, f.Environment, f.SyncEnabled)
	if err != nil {
		return fmt.Errorf("failed to upsert facility %s: %w", f.ID, err)
	}
	return nil
}

func (s *SQLiteStore) SetSyncEnabled(ctx context.Context, facilityID string, enabled bool) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE facilities SET sync_enabled = ? WHERE id = ?
	`, enabled, facilityID)
	if err != nil {
		return fmt.Errorf("failed to set sync_enabled for %s: %w", facilityID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("facility %s not found", facilityID)
	}
	return nil
}

func (s *SQLiteStore) DeactivateFacility(ctx context.Context, facilityID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin deactivate tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE facilities SET sync_enabled = 0 WHERE id = ?`, facilityID); err != nil {
		return fmt.Errorf("failed to disable facility %s: %w", facilityID, err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE sync_status SET status = 'idle', last_error = NULL, error_class = NULL, updated_at = ?
		WHERE facility_id = ?
	`, time.Now().UTC(), facilityID); err != nil {
		return fmt.Errorf("failed to reset statuses for %s: %w", facilityID, err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) ClaimSync(ctx context.Context, facilityID string, dataType DataType, mode SyncMode) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_status (facility_id, data_type, status, last_sync_mode, updated_at)
		VALUES (?, ?, 'running', ?, ?)
		ON CONFLICT (facility_id, data_type) DO UPDATE SET
			status = 'running',
			last_sync_mode = excluded.last_sync_mode,
			updated_at = excluded.updated_at
		WHERE sync_status.status <> 'running'
	`, facilityID, string(dataType), string(mode), time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("failed to claim sync for %s/%s: %w", facilityID, dataType, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *SQLiteStore) FinishSyncSuccess(ctx context.Context, facilityID string, dataType DataType, mode SyncMode, syncedAt time.Time, itemCount int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE sync_status SET
			status = 'success',
			last_sync_at = ?,
			last_sync_mode = ?,
			item_count = ?,
			last_error = NULL,
			error_class = NULL,
			updated_at = ?
		WHERE facility_id = ? AND data_type = ?
	`, syncedAt, string(mode), itemCount, time.Now().UTC(), facilityID, string(dataType))
	if err != nil {
		return fmt.Errorf("failed to record sync success for %s/%s: %w", facilityID, dataType, err)
	}
	return nil
}

func (s *SQLiteStore) FinishSyncError(ctx context.Context, facilityID string, dataType DataType, mode SyncMode, class ErrorClass, message string, itemCount int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE sync_status SET
			status = 'error',
			last_sync_mode = ?,
			item_count = ?,
			last_error = ?,
			error_class = ?,
			updated_at = ?
		WHERE facility_id = ? AND data_type = ?
	`, string(mode), itemCount, message, string(class), time.Now().UTC(), facilityID, string(dataType))
	if err != nil {
		return fmt.Errorf("failed to record sync error for %s/%s: %w", facilityID, dataType, err)
	}
	return nil
}

func (s *SQLiteStore) ListSyncStatuses(ctx context.Context) ([]SyncStatus, error) {
	return s.querySyncStatuses(ctx, `
		SELECT facility_id, data_type, status, last_sync_at, last_sync_mode, item_count, last_error, error_class, updated_at
		FROM sync_status ORDER BY facility_id, data_type
	`)
}

func (s *SQLiteStore) FacilitySyncStatuses(ctx context.Context, facilityID string) ([]SyncStatus, error) {
	return s.querySyncStatuses(ctx, `
		SELECT facility_id, data_type, status, last_sync_at, last_sync_mode, item_count, last_error, error_class, updated_at
		FROM sync_status WHERE facility_id = ? ORDER BY data_type
	`, facilityID)
}

func (s *SQLiteStore) querySyncStatuses(ctx context.Context, query string, args ...any) ([]SyncStatus, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync statuses: %w", err)
	}
	defer rows.Close()

	var out []SyncStatus
	for rows.Next() {
		var st SyncStatus
		var dataType, mode string
		var lastSyncAt sql.NullTime
		if err := rows.Scan(&st.FacilityID, &dataType, &st.Status, &lastSyncAt, &mode, &st.ItemCount, &st.LastError, &st.ErrorClass, &st.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan sync status: %w", err)
		}
		st.DataType = DataType(dataType)
		st.LastSyncMode = SyncMode(mode)
		if lastSyncAt.Valid {
			t := lastSyncAt.Time
			st.LastSyncAt = &t
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) AppendSyncLog(ctx context.Context, entry SyncLogEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_log (id, facility_id, data_type, run_type, ts, status, items_synced, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.ID.String(), entry.FacilityID, string(entry.DataType), string(entry.RunType), entry.Timestamp, entry.Status, entry.ItemsSynced, entry.Error)
	if err != nil {
		return fmt.Errorf("failed to append sync log entry: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListSyncLogs(ctx context.Context, facilityID string, limit int) ([]SyncLogEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, facility_id, data_type, run_type, ts, status, items_synced, error
		FROM sync_log
	`
	args := []any{}
	if facilityID != "" {
		query += ` WHERE facility_id = ? ORDER BY ts DESC LIMIT ?`
		args = append(args, facilityID, limit)
	} else {
		query += ` ORDER BY ts DESC LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync logs: %w", err)
	}
	defer rows.Close()

	var out []SyncLogEntry
	for rows.Next() {
		var entry SyncLogEntry
		var id, dataType, runType string
		if err := rows.Scan(&id, &entry.FacilityID, &dataType, &runType, &entry.Timestamp, &entry.Status, &entry.ItemsSynced, &entry.Error); err != nil {
			return nil, fmt.Errorf("failed to scan sync log entry: %w", err)
		}
		parsed, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("failed to parse sync log id %q: %w", id, err)
		}
		entry.ID = parsed
		entry.DataType = DataType(dataType)
		entry.RunType = RunType(runType)
		out = append(out, entry)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) UpsertRecords(ctx context.Context, facilityID string, dataType DataType, batch []Record) error {
	if len(batch) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin record batch tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records (facility_id, data_type, upstream_id, label, last_modified, synced_at, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (facility_id, data_type, upstream_id) DO UPDATE SET
			label = excluded.label,
			last_modified = excluded.last_modified,
			synced_at = excluded.synced_at,
			payload = excluded.payload
		WHERE excluded.last_modified >= records.last_modified
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare record upsert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range batch {
		if _, err := stmt.ExecContext(ctx, facilityID, string(dataType), rec.UpstreamID, rec.Label, rec.LastModified, rec.SyncedAt, string(rec.Payload)); err != nil {
			return fmt.Errorf("failed to upsert record %d: %w", rec.UpstreamID, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) CountRecords(ctx context.Context, facilityID string, dataType DataType) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT count(*) FROM records WHERE facility_id = ? AND data_type = ?
	`, facilityID, string(dataType)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count records for %s/%s: %w", facilityID, dataType, err)
	}
	return count, nil
}
