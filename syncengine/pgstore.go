// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package syncengine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgStore is the production Store implementation on PostgreSQL.
type PgStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPgStore creates the store and initializes its schema. The pool's
// lifecycle stays with the caller.
func NewPgStore(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) (*PgStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &PgStore{pool: pool, logger: logger}
	err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		return s.initializeSchemaInTx(ctx, tx)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize sync schema: %w", err)
	}
	return s, nil
}

// Pool returns the underlying connection pool for advanced queries.
func (s *PgStore) Pool() *pgxpool.Pool {
	return s.pool
}

func (s *PgStore) ListFacilities(ctx context.Context) ([]Facility, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, license_number, vendor_key, user_key, environment, sync_enabled
		FROM metrcsync.facilities
		ORDER BY id
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

func (s *PgStore) GetFacility(ctx context.Context, facilityID string) (*Facility, error) {
	var f Facility
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, license_number, vendor_key, user_key, environment, sync_enabled
		FROM metrcsync.facilities
		WHERE id = $1
	`, facilityID).Scan(&f.ID, &f.Name, &f.LicenseNumber, &f.VendorKey, &f.UserKey, &f.Environment, &f.SyncEnabled)
	if err != nil {
		return nil, fmt.Errorf("failed to load facility %s: %w", facilityID, err)
	}
	return &f, nil
}

func (s *PgStore) UpsertFacility(ctx context.Context, f Facility) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO metrcsync.facilities (id, name, license_number, vendor_key, user_key, environment, sync_enabled)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			license_number = EXCLUDED.license_number,
			vendor_key = EXCLUDED.vendor_key,
			user_key = EXCLUDED.user_key,
			environment = EXCLUDED.environment,
			sync_enabled = EXCLUDED.sync_enabled
	`, f.ID, f.Name, f.LicenseNumber, f.VendorKey, f.UserKey, f.Environment, f.SyncEnabled)
	if err != nil {
		return fmt.Errorf("failed to upsert facility %s: %w", f.ID, err)
	}
	return nil
}

func (s *PgStore) SetSyncEnabled(ctx context.Context, facilityID string, enabled bool) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE metrcsync.facilities SET sync_enabled = $2 WHERE id = $1
	`, facilityID, enabled)
	if err != nil {
		return fmt.Errorf("failed to set sync_enabled for %s: %w", facilityID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("facility %s not found", facilityID)
	}
	return nil
}

func (s *PgStore) DeactivateFacility(ctx context.Context, facilityID string) error {
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			UPDATE metrcsync.facilities SET sync_enabled = FALSE WHERE id = $1
		`, facilityID); err != nil {
			return err
		}
		// Status rows are reset, never deleted.
		_, err := tx.Exec(ctx, `
			UPDATE metrcsync.sync_status
			SET status = 'idle', last_error = NULL, error_class = NULL, updated_at = now()
			WHERE facility_id = $1
		`, facilityID)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to deactivate facility %s: %w", facilityID, err)
	}
	return nil
}

// ClaimSync implements the exclusivity lock: the upsert only takes effect
// when the current status is not already running, so concurrent claims for
// one key resolve to a single winner.
func (s *PgStore) ClaimSync(ctx context.Context, facilityID string, dataType DataType, mode SyncMode) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO metrcsync.sync_status (facility_id, data_type, status, last_sync_mode, updated_at)
		VALUES ($1, $2, 'running', $3, now())
		ON CONFLICT (facility_id, data_type) DO UPDATE SET
			status = 'running',
			last_sync_mode = $3,
			updated_at = now()
		WHERE sync_status.status <> 'running'
	`, facilityID, string(dataType), string(mode))
	if err != nil {
		return false, fmt.Errorf("failed to claim sync for %s/%s: %w", facilityID, dataType, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PgStore) FinishSyncSuccess(ctx context.Context, facilityID string, dataType DataType, mode SyncMode, syncedAt time.Time, itemCount int) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE metrcsync.sync_status SET
			status = 'success',
			last_sync_at = $3,
			last_sync_mode = $4,
			item_count = $5,
			last_error = NULL,
			error_class = NULL,
			updated_at = now()
		WHERE facility_id = $1 AND data_type = $2
	`, facilityID, string(dataType), syncedAt, string(mode), itemCount)
	if err != nil {
		return fmt.Errorf("failed to record sync success for %s/%s: %w", facilityID, dataType, err)
	}
	return nil
}

// FinishSyncError leaves last_sync_at untouched so the next incremental
// window still starts from the last successful point.
func (s *PgStore) FinishSyncError(ctx context.Context, facilityID string, dataType DataType, mode SyncMode, class ErrorClass, message string, itemCount int) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE metrcsync.sync_status SET
			status = 'error',
			last_sync_mode = $3,
			item_count = $4,
			last_error = $5,
			error_class = $6,
			updated_at = now()
		WHERE facility_id = $1 AND data_type = $2
	`, facilityID, string(dataType), string(mode), itemCount, message, string(class))
	if err != nil {
		return fmt.Errorf("failed to record sync error for %s/%s: %w", facilityID, dataType, err)
	}
	return nil
}

func (s *PgStore) ListSyncStatuses(ctx context.Context) ([]SyncStatus, error) {
	return s.querySyncStatuses(ctx, `
		SELECT facility_id, data_type, status, last_sync_at, last_sync_mode, item_count, last_error, error_class, updated_at
		FROM metrcsync.sync_status
		ORDER BY facility_id, data_type
	`)
}

func (s *PgStore) FacilitySyncStatuses(ctx context.Context, facilityID string) ([]SyncStatus, error) {
	return s.querySyncStatuses(ctx, `
		SELECT facility_id, data_type, status, last_sync_at, last_sync_mode, item_count, last_error, error_class, updated_at
		FROM metrcsync.sync_status
		WHERE facility_id = $1
		ORDER BY data_type
	`, facilityID)
}

func (s *PgStore) querySyncStatuses(ctx context.Context, sql string, args ...any) ([]SyncStatus, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync statuses: %w", err)
	}
	defer rows.Close()

	var out []SyncStatus
	for rows.Next() {
		var st SyncStatus
		var dataType, mode string
		if err := rows.Scan(&st.FacilityID, &dataType, &st.Status, &st.LastSyncAt, &mode, &st.ItemCount, &st.LastError, &st.ErrorClass, &st.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan sync status: %w", err)
		}
		st.DataType = DataType(dataType)
		st.LastSyncMode = SyncMode(mode)
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *PgStore) AppendSyncLog(ctx context.Context, entry SyncLogEntry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO metrcsync.sync_log (id, facility_id, data_type, run_type, ts, status, items_synced, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, entry.ID, entry.FacilityID, string(entry.DataType), string(entry.RunType), entry.Timestamp, entry.Status, entry.ItemsSynced, entry.Error)
	if err != nil {
		return fmt.Errorf("failed to append sync log entry: %w", err)
	}
	return nil
}

func (s *PgStore) ListSyncLogs(ctx context.Context, facilityID string, limit int) ([]SyncLogEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	sql := `
		SELECT id, facility_id, data_type, run_type, ts, status, items_synced, error
		FROM metrcsync.sync_log
	`
	args := []any{}
	if facilityID != "" {
		sql += ` WHERE facility_id = $1 ORDER BY ts DESC LIMIT $2`
		args = append(args, facilityID, limit)
	} else {
		sql += ` ORDER BY ts DESC LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync logs: %w", err)
	}
	defer rows.Close()

	var out []SyncLogEntry
	for rows.Next() {
		var entry SyncLogEntry
		var dataType, runType string
		if err := rows.Scan(&entry.ID, &entry.FacilityID, &dataType, &runType, &entry.Timestamp, &entry.Status, &entry.ItemsSynced, &entry.Error); err != nil {
			return nil, fmt.Errorf("failed to scan sync log entry: %w", err)
		}
		entry.DataType = DataType(dataType)
		entry.RunType = RunType(runType)
		out = append(out, entry)
	}
	return out, rows.Err()
}

// UpsertRecords writes one batch in a single transaction. Conflicts resolve
// last-write-wins by upstream last_modified, which also makes re-running a
// full sync idempotent.
func (s *PgStore) UpsertRecords(ctx context.Context, facilityID string, dataType DataType, batch []Record) error {
	if len(batch) == 0 {
		return nil
	}
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		b := &pgx.Batch{}
		for _, rec := range batch {
			b.Queue(`
				INSERT INTO metrcsync.records (facility_id, data_type, upstream_id, label, last_modified, synced_at, payload)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
				ON CONFLICT (facility_id, data_type, upstream_id) DO UPDATE SET
					label = EXCLUDED.label,
					last_modified = EXCLUDED.last_modified,
					synced_at = EXCLUDED.synced_at,
					payload = EXCLUDED.payload
				WHERE EXCLUDED.last_modified >= records.last_modified
			`, facilityID, string(dataType), rec.UpstreamID, rec.Label, rec.LastModified, rec.SyncedAt, rec.Payload)
		}
		br := tx.SendBatch(ctx, b)
		defer br.Close()
		for range batch {
			if _, err := br.Exec(); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to upsert %d %s records for %s: %w", len(batch), dataType, facilityID, err)
	}
	return nil
}

func (s *PgStore) CountRecords(ctx context.Context, facilityID string, dataType DataType) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT count(*) FROM metrcsync.records WHERE facility_id = $1 AND data_type = $2
	`, facilityID, string(dataType)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count records for %s/%s: %w", facilityID, dataType, err)
	}
	return count, nil
}
