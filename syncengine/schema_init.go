// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package syncengine

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// initializeSchemaInTx creates the engine's tables within an existing
// transaction.
func (s *PgStore) initializeSchemaInTx(ctx context.Context, tx pgx.Tx) error {
	migrations := []string{
		// Dedicated schema for all engine state.
		/*language=postgresql*/ `CREATE SCHEMA IF NOT EXISTS metrcsync`,

		// Facilities with their credential sets. Credentials are rotated by
		// whole-row replacement.
		/*language=postgresql*/ `CREATE TABLE IF NOT EXISTS metrcsync.facilities (
			id             TEXT      PRIMARY KEY,
			name           TEXT      NOT NULL DEFAULT '',
			license_number TEXT      NOT NULL,
			vendor_key     TEXT      NOT NULL,
			user_key       TEXT      NOT NULL,
			environment    TEXT      NOT NULL CHECK (environment IN ('sandbox','production')),
			sync_enabled   BOOLEAN   NOT NULL DEFAULT TRUE
		)`,

		// Per-(facility, dataType) status. Upsert semantics; rows are reset,
		// never deleted.
		/*language=postgresql*/ `CREATE TABLE IF NOT EXISTS metrcsync.sync_status (
			facility_id    TEXT        NOT NULL,
			data_type      TEXT        NOT NULL,
			status         TEXT        NOT NULL CHECK (status IN ('idle','running','success','error')),
			last_sync_at   TIMESTAMPTZ,
			last_sync_mode TEXT        NOT NULL DEFAULT '',
			item_count     INTEGER     NOT NULL DEFAULT 0,
			last_error     TEXT,
			error_class    TEXT,
			updated_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (facility_id, data_type)
		)`,

		// Append-only audit trail of sync runs.
		/*language=postgresql*/ `CREATE TABLE IF NOT EXISTS metrcsync.sync_log (
			id           UUID        PRIMARY KEY,
			facility_id  TEXT        NOT NULL,
			data_type    TEXT        NOT NULL,
			run_type     TEXT        NOT NULL,
			ts           TIMESTAMPTZ NOT NULL,
			status       TEXT        NOT NULL CHECK (status IN ('success','error')),
			items_synced INTEGER     NOT NULL DEFAULT 0,
			error        TEXT
		)`,
		/*language=postgresql*/ `CREATE INDEX IF NOT EXISTS sync_log_ts_idx
			ON metrcsync.sync_log (ts DESC)`,
		/*language=postgresql*/ `CREATE INDEX IF NOT EXISTS sync_log_facility_ts_idx
			ON metrcsync.sync_log (facility_id, ts DESC)`,

		// Normalized upstream records. Payload keeps the full upstream JSON
		// so unknown fields are preserved rather than silently dropped.
		/*language=postgresql*/ `CREATE TABLE IF NOT EXISTS metrcsync.records (
			facility_id   TEXT        NOT NULL,
			data_type     TEXT        NOT NULL,
			upstream_id   BIGINT      NOT NULL,
			label         TEXT        NOT NULL,
			last_modified TIMESTAMPTZ NOT NULL,
			synced_at     TIMESTAMPTZ NOT NULL,
			payload       JSONB       NOT NULL,
			PRIMARY KEY (facility_id, data_type, upstream_id)
		)`,
		/*language=postgresql*/ `CREATE INDEX IF NOT EXISTS records_label_idx
			ON metrcsync.records (facility_id, data_type, label)`,
	}

	for i, migration := range migrations {
		if _, err := tx.Exec(ctx, migration); err != nil {
			return fmt.Errorf("schema migration %d failed: %w", i, err)
		}
	}
	return nil
}
