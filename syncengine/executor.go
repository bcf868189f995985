// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package syncengine

import (
	"context"
	"log/slog"
	"time"

	"github.com/greenledger/metrcsync/metrc"
)

// Env carries the per-run collaborators an executor needs. The engine
// builds one Env per run; executors hold no state of their own.
type Env struct {
	Client    *metrc.Client
	Store     Store
	Governor  *Governor
	Logger    *slog.Logger
	PageSize  int
	BatchSize int
	Now       func() time.Time
}

// Executor translates one sync target into paginated upstream queries and
// transactional local writes. One implementation per data type; all share
// the fetch-window / map-record / write-batch contract. Executors never
// decide retryability - every failure propagates to the engine.
type Executor interface {
	DataType() DataType
	// Run returns the number of records committed, which on failure is the
	// partial count written before the error.
	Run(ctx context.Context, env Env, target SyncTarget, window SyncWindow) (int, error)
}

// pageFetcher fetches one upstream page and maps it to normalized records.
// Mapping is pure: the same upstream record always yields the same local
// record shape.
type pageFetcher func(ctx context.Context, env Env, q metrc.ListQuery) ([]Record, error)

// pagedExecutor implements the shared page loop: fetch pages in upstream
// order until a short page, accumulate mapped records, flush in bounded
// transactional batches. A batch failure aborts the remaining pages rather
// than skipping ahead.
type pagedExecutor struct {
	dataType DataType
	fetch    pageFetcher
}

func (e *pagedExecutor) DataType() DataType {
	return e.dataType
}

func (e *pagedExecutor) Run(ctx context.Context, env Env, target SyncTarget, window SyncWindow) (int, error) {
	written := 0
	batch := make([]Record, 0, env.BatchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := env.Store.UpsertRecords(ctx, target.FacilityID, e.dataType, batch); err != nil {
			return &SyncError{
				Class:   ClassStorageError,
				Message: "failed to commit a batch of " + string(e.dataType) + " records",
				Err:     err,
			}
		}
		written += len(batch)
		batch = batch[:0]
		return nil
	}

	key := env.Client.Credentials().Key()
	for page := 1; ; page++ {
		if err := env.Governor.Acquire(ctx, key); err != nil {
			return written, err
		}

		q := metrc.ListQuery{
			Page:              page,
			PageSize:          env.PageSize,
			LastModifiedStart: window.Start,
			LastModifiedEnd:   window.End,
		}
		records, err := e.fetch(ctx, env, q)
		if err != nil {
			return written, err
		}

		now := env.Now()
		for _, rec := range records {
			rec.SyncedAt = now
			batch = append(batch, rec)
			if len(batch) >= env.BatchSize {
				if err := flush(); err != nil {
					return written, err
				}
			}
		}

		// Short page means end of results.
		if len(records) < env.PageSize {
			break
		}
	}

	if err := flush(); err != nil {
		return written, err
	}
	return written, nil
}

// defaultExecutors builds the closed set of per-data-type executors.
func defaultExecutors() map[DataType]Executor {
	execs := []Executor{
		newPackagesExecutor(),
		newVegetativePlantsExecutor(),
		newFloweringPlantsExecutor(),
		newPlantBatchesExecutor(),
		newIncomingTransfersExecutor(),
		newOutgoingTransfersExecutor(),
		newSalesReceiptsExecutor(),
		newSalesDeliveriesExecutor(),
	}
	byType := make(map[DataType]Executor, len(execs))
	for _, ex := range execs {
		byType[ex.DataType()] = ex
	}
	return byType
}
