// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package syncengine

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Scheduler drives the engine from a small set of independent timers:
// hourly incremental, daily full, and a coarser retry cadence for keys in
// error state. All timers funnel into Engine.TriggerSync, so the claim
// discipline applies uniformly regardless of trigger source.
type Scheduler struct {
	engine *Engine
	logger *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// NewScheduler creates a scheduler for the engine. Cadences come from the
// engine's config.
func NewScheduler(engine *Engine, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{engine: engine, logger: logger}
}

// Start launches the cadence loops. Safe to call once; Stop shuts them down.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	cfg := s.engine.config
	s.spawnLoop(loopCtx, cfg.IncrementalInterval, func(ctx context.Context) {
		s.cadenceTick(ctx, ModeIncremental, RunHourlyIncremental)
	})
	s.spawnLoop(loopCtx, cfg.FullInterval, func(ctx context.Context) {
		s.cadenceTick(ctx, ModeFull, RunDailyFull)
	})
	s.spawnLoop(loopCtx, cfg.RetryInterval, s.retryTick)

	s.logger.Info("Sync scheduler started",
		"incremental_interval", cfg.IncrementalInterval,
		"full_interval", cfg.FullInterval,
		"retry_interval", cfg.RetryInterval,
	)
}

// Stop halts the cadence loops. In-flight runs keep going until the engine
// is closed.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
	s.logger.Debug("Sync scheduler stopped")
}

func (s *Scheduler) spawnLoop(ctx context.Context, interval time.Duration, tick func(context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		// Small jitter so independent deployments do not tick in lockstep.
		if err := sleepWithContext(ctx, jitter(interval, 0.05)); err != nil {
			return
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				tick(ctx)
			}
		}
	}()
}

// cadenceTick attempts one run per enabled facility and data type. Keys in
// error state are left to the retry cadence; keys already running lose the
// claim race and are skipped, never queued.
func (s *Scheduler) cadenceTick(ctx context.Context, mode SyncMode, runType RunType) {
	facilities, err := s.engine.store.ListFacilities(ctx)
	if err != nil {
		s.logger.Error("Scheduler failed to list facilities", "error", err)
		return
	}
	statuses, err := s.engine.store.ListSyncStatuses(ctx)
	if err != nil {
		s.logger.Error("Scheduler failed to list sync statuses", "error", err)
		return
	}
	byKey := statusIndex(statuses)

	for _, f := range facilities {
		if !f.SyncEnabled {
			continue
		}
		for _, dt := range AllDataTypes() {
			if st, ok := byKey[statusKey(f.ID, dt)]; ok && st.Status == StError {
				continue
			}
			if _, err := s.engine.TriggerSync(ctx, f.ID, dt, mode, runType); err != nil {
				s.logger.Error("Scheduler trigger failed", "error", err,
					"facility_id", f.ID, "data_type", dt, "run_type", runType)
			}
		}
	}
}

// retryTick re-attempts keys currently in error state, skipping classes
// that need operator action (bad credentials, permission mismatch).
func (s *Scheduler) retryTick(ctx context.Context) {
	facilities, err := s.engine.store.ListFacilities(ctx)
	if err != nil {
		s.logger.Error("Scheduler failed to list facilities", "error", err)
		return
	}
	enabled := make(map[string]bool, len(facilities))
	for _, f := range facilities {
		enabled[f.ID] = f.SyncEnabled
	}

	statuses, err := s.engine.store.ListSyncStatuses(ctx)
	if err != nil {
		s.logger.Error("Scheduler failed to list sync statuses", "error", err)
		return
	}

	for _, st := range statuses {
		if st.Status != StError || !enabled[st.FacilityID] {
			continue
		}
		if st.ErrorClass != nil && !Retryable(ErrorClass(*st.ErrorClass)) {
			continue
		}
		mode := st.LastSyncMode
		if mode == "" {
			mode = ModeIncremental
		}
		if _, err := s.engine.TriggerSync(ctx, st.FacilityID, st.DataType, mode, RunRetry); err != nil {
			s.logger.Error("Scheduler retry trigger failed", "error", err,
				"facility_id", st.FacilityID, "data_type", st.DataType)
		}
	}
}

func statusKey(facilityID string, dataType DataType) string {
	return facilityID + "|" + string(dataType)
}

func statusIndex(statuses []SyncStatus) map[string]SyncStatus {
	byKey := make(map[string]SyncStatus, len(statuses))
	for _, st := range statuses {
		byKey[statusKey(st.FacilityID, st.DataType)] = st
	}
	return byKey
}
