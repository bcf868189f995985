// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

// Package syncengine implements the Metrc synchronization engine: a rate
// governed, per-facility scheduler and executor family that pulls
// regulatory records into local storage and keeps an auditable, resumable
// record of every sync attempt.
package syncengine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/greenledger/metrcsync/metrc"
)

// ClientFactory builds an upstream client for one facility's credentials.
// Overridable in config so tests can point the engine at a mock upstream.
type ClientFactory func(f Facility) (*metrc.Client, error)

// Config holds engine configuration. Cadences and ceilings are deliberately
// configuration rather than constants: Metrc's published limits are not
// encoded anywhere authoritative.
type Config struct {
	IncrementalInterval time.Duration // hourly incremental cadence
	FullInterval        time.Duration // daily full cadence
	RetryInterval       time.Duration // coarser cadence re-attempting failed keys
	RunTimeout          time.Duration // overall deadline per executor invocation

	PageSize       int // upstream page size
	WriteBatchSize int // records per local write transaction

	Governor      GovernorConfig
	ClientFactory ClientFactory // nil = real Metrc endpoints

	Metrics       RunMetricsRecorder // optional per-run observation hook
	LogRunTimings bool
}

// DefaultConfig returns conservative defaults.
func DefaultConfig() *Config {
	return &Config{
		IncrementalInterval: time.Hour,
		FullInterval:        24 * time.Hour,
		RetryInterval:       6 * time.Hour,
		RunTimeout:          10 * time.Minute,
		PageSize:            100,
		WriteBatchSize:      50,
		Governor:            DefaultGovernorConfig(),
	}
}

// Engine is the sync orchestrator. It decides when and whether to run a
// sync, serializes concurrent attempts per (facility, dataType) key via the
// store's claim mechanism, and owns the retry policy. Executors for
// different keys run fully in parallel; there is no global lock.
type Engine struct {
	store     Store
	governor  *Governor
	config    *Config
	logger    *slog.Logger
	executors map[DataType]Executor
	clients   ClientFactory

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewEngine creates an engine on top of the given store.
func NewEngine(store Store, config *Config, logger *slog.Logger) (*Engine, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	clients := config.ClientFactory
	if clients == nil {
		clients = func(f Facility) (*metrc.Client, error) {
			creds := metrc.Credentials{
				VendorKey:     f.VendorKey,
				UserKey:       f.UserKey,
				LicenseNumber: f.LicenseNumber,
			}
			return metrc.NewClient(creds, metrc.Environment(f.Environment), nil, logger)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		store:     store,
		governor:  NewGovernor(config.Governor, logger),
		config:    config,
		logger:    logger,
		executors: defaultExecutors(),
		clients:   clients,
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// Close cancels in-flight runs and waits for their bookkeeping to finish.
// Safe to call multiple times.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	e.cancel()
	e.wg.Wait()
	e.logger.Debug("Sync engine shutdown complete")
	return nil
}

func (e *Engine) checkClosed() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return errors.New("sync engine has been closed")
	}
	return nil
}

// Governor exposes the rate governor, mainly for calibration inspection.
func (e *Engine) Governor() *Governor {
	return e.governor
}

// TriggerSync attempts to start one sync run for the key. The claim is
// taken synchronously; the run itself is dispatched in the background, so
// callers observe completion via the status store rather than this call.
// Returns false when the key is already running - that is an
// acknowledgement, not an error.
func (e *Engine) TriggerSync(ctx context.Context, facilityID string, dataType DataType, mode SyncMode, runType RunType) (bool, error) {
	if err := e.checkClosed(); err != nil {
		return false, err
	}
	executor, ok := e.executors[dataType]
	if !ok {
		return false, fmt.Errorf("no executor for data type %q", dataType)
	}
	facility, err := e.store.GetFacility(ctx, facilityID)
	if err != nil {
		return false, fmt.Errorf("failed to load facility: %w", err)
	}

	claimed, err := e.store.ClaimSync(ctx, facilityID, dataType, mode)
	if err != nil {
		return false, fmt.Errorf("failed to claim sync: %w", err)
	}
	if !claimed {
		e.logger.Debug("Sync claim rejected, already running",
			"facility_id", facilityID, "data_type", dataType)
		return false, nil
	}

	// Read lastSyncAt after the claim: while the claim is held nothing else
	// can advance it, so the window boundary is stable.
	lastSyncAt, err := e.lastSyncAt(ctx, facilityID, dataType)
	if err != nil {
		msg := "failed to read sync status for window computation"
		_ = e.store.FinishSyncError(ctx, facilityID, dataType, mode, ClassInternal, msg, 0)
		return false, fmt.Errorf("%s: %w", msg, err)
	}

	target := SyncTarget{FacilityID: facilityID, DataType: dataType, Mode: mode}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.runSync(*facility, executor, target, runType, lastSyncAt)
	}()
	return true, nil
}

// TriggerResult reports whether one fan-out target was dispatched.
type TriggerResult struct {
	DataType DataType `json:"dataType"`
	Started  bool     `json:"started"`
}

// TriggerSyncAll fans out one attempt per configured data type for the
// facility and returns once all are dispatched, not complete.
func (e *Engine) TriggerSyncAll(ctx context.Context, facilityID string, mode SyncMode) ([]TriggerResult, error) {
	results := make([]TriggerResult, 0, len(AllDataTypes()))
	for _, dt := range AllDataTypes() {
		started, err := e.TriggerSync(ctx, facilityID, dt, mode, RunManual)
		if err != nil {
			return results, err
		}
		results = append(results, TriggerResult{DataType: dt, Started: started})
	}
	return results, nil
}

func (e *Engine) lastSyncAt(ctx context.Context, facilityID string, dataType DataType) (*time.Time, error) {
	statuses, err := e.store.FacilitySyncStatuses(ctx, facilityID)
	if err != nil {
		return nil, err
	}
	for _, st := range statuses {
		if st.DataType == dataType {
			return st.LastSyncAt, nil
		}
	}
	return nil, nil
}

// runSync executes one claimed run end to end and records its outcome. The
// claim is always released here, through either the success or error path.
func (e *Engine) runSync(f Facility, executor Executor, target SyncTarget, runType RunType, lastSyncAt *time.Time) {
	runCtx, cancel := context.WithTimeout(e.ctx, e.config.RunTimeout)
	defer cancel()

	start := time.Now().UTC()
	var window SyncWindow
	if target.Mode == ModeIncremental {
		if lastSyncAt != nil {
			window.Start = *lastSyncAt
		}
		window.End = start
	}

	count := 0
	client, err := e.clients(f)
	if err == nil {
		env := Env{
			Client:    client,
			Store:     e.store,
			Governor:  e.governor,
			Logger:    e.logger,
			PageSize:  e.config.PageSize,
			BatchSize: e.config.WriteBatchSize,
			Now:       func() time.Time { return time.Now().UTC() },
		}
		count, err = executor.Run(runCtx, env, target, window)
	}
	duration := time.Since(start)

	// Bookkeeping uses a fresh context: an expired run deadline must not
	// prevent recording the outcome and releasing the claim.
	bkCtx, bkCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer bkCancel()

	if err != nil {
		class := Classify(err)
		if class == ClassRateLimitExceeded && client != nil {
			e.governor.Tighten(client.Credentials().Key())
		}
		msg := classifiedMessage(class, err)
		if ferr := e.store.FinishSyncError(bkCtx, target.FacilityID, target.DataType, target.Mode, class, msg, count); ferr != nil {
			e.logger.Error("Failed to record sync error status", "error", ferr,
				"facility_id", target.FacilityID, "data_type", target.DataType)
		}
		e.appendLog(bkCtx, target, runType, StError, count, &msg)
		e.logger.Error("Sync run failed",
			"facility_id", target.FacilityID,
			"data_type", target.DataType,
			"mode", target.Mode,
			"run_type", runType,
			"class", class,
			"items_synced", count,
			"error", err,
		)
		e.observeRun(bkCtx, target, runType, duration, count, class)
		return
	}

	if ferr := e.store.FinishSyncSuccess(bkCtx, target.FacilityID, target.DataType, target.Mode, start, count); ferr != nil {
		e.logger.Error("Failed to record sync success status", "error", ferr,
			"facility_id", target.FacilityID, "data_type", target.DataType)
	}
	e.appendLog(bkCtx, target, runType, StSuccess, count, nil)
	e.logger.Info("Sync run completed",
		"facility_id", target.FacilityID,
		"data_type", target.DataType,
		"mode", target.Mode,
		"run_type", runType,
		"items_synced", count,
		"duration", duration,
	)
	e.observeRun(bkCtx, target, runType, duration, count, "")
}

func (e *Engine) appendLog(ctx context.Context, target SyncTarget, runType RunType, status string, count int, errMsg *string) {
	entry := SyncLogEntry{
		ID:          uuid.New(),
		FacilityID:  target.FacilityID,
		DataType:    target.DataType,
		RunType:     runType,
		Timestamp:   time.Now().UTC(),
		Status:      status,
		ItemsSynced: count,
		Error:       errMsg,
	}
	if err := e.store.AppendSyncLog(ctx, entry); err != nil {
		e.logger.Error("Failed to append sync log entry", "error", err,
			"facility_id", target.FacilityID, "data_type", target.DataType)
	}
}

// SyncStatus returns the per-data-type status snapshot for one facility.
func (e *Engine) SyncStatus(ctx context.Context, facilityID string) ([]SyncStatus, error) {
	return e.store.FacilitySyncStatuses(ctx, facilityID)
}

// SyncLogs returns recent log entries, newest first. Empty facilityID means
// all facilities.
func (e *Engine) SyncLogs(ctx context.Context, facilityID string, limit int) ([]SyncLogEntry, error) {
	return e.store.ListSyncLogs(ctx, facilityID, limit)
}

// ConfigureSchedule toggles whether cadence timers act on this facility.
// Disabled facilities are skipped by every tick without altering their
// stored status.
func (e *Engine) ConfigureSchedule(ctx context.Context, facilityID string, enabled bool) error {
	return e.store.SetSyncEnabled(ctx, facilityID, enabled)
}

// DeactivateFacility disables scheduling and resets the facility's status
// rows to idle.
func (e *Engine) DeactivateFacility(ctx context.Context, facilityID string) error {
	return e.store.DeactivateFacility(ctx, facilityID)
}
