// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package syncengine

import (
	"context"
	"time"
)

// RunTiming describes one completed or failed sync run.
type RunTiming struct {
	FacilityID  string
	DataType    DataType
	Mode        SyncMode
	RunType     RunType
	Duration    time.Duration
	ItemsSynced int
	Error       bool
	ErrorClass  ErrorClass // empty on success
}

// RunMetricsRecorder receives per-run observations. Wire it to whatever
// metrics backend the host application uses.
type RunMetricsRecorder interface {
	ObserveRun(ctx context.Context, timing RunTiming)
}

// RunMetricsRecorderFunc adapts a function to RunMetricsRecorder.
type RunMetricsRecorderFunc func(ctx context.Context, timing RunTiming)

func (f RunMetricsRecorderFunc) ObserveRun(ctx context.Context, timing RunTiming) {
	f(ctx, timing)
}

func (e *Engine) observeRun(ctx context.Context, target SyncTarget, runType RunType, duration time.Duration, count int, class ErrorClass) {
	if e.config.Metrics == nil && !e.config.LogRunTimings {
		return
	}
	timing := RunTiming{
		FacilityID:  target.FacilityID,
		DataType:    target.DataType,
		Mode:        target.Mode,
		RunType:     runType,
		Duration:    duration,
		ItemsSynced: count,
		Error:       class != "",
		ErrorClass:  class,
	}
	if e.config.Metrics != nil {
		e.config.Metrics.ObserveRun(ctx, timing)
	}
	if e.config.LogRunTimings {
		e.logger.Debug("Run timing",
			"facility_id", timing.FacilityID,
			"data_type", timing.DataType,
			"mode", timing.Mode,
			"run_type", timing.RunType,
			"duration", timing.Duration,
			"items_synced", timing.ItemsSynced,
			"error", timing.Error,
		)
	}
}
