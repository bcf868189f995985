// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package syncengine

import "fmt"

// DataType identifies one synchronized Metrc data family. Each value has
// exactly one executor.
type DataType string

const (
	DataTypePackages          DataType = "packages"
	DataTypePlantsVegetative  DataType = "plants_vegetative"
	DataTypePlantsFlowering   DataType = "plants_flowering"
	DataTypePlantBatches      DataType = "plantBatches"
	DataTypeTransfersIncoming DataType = "transfers_incoming"
	DataTypeTransfersOutgoing DataType = "transfers_outgoing"
	DataTypeSalesReceipts     DataType = "salesReceipts"
	DataTypeSalesDeliveries   DataType = "salesDeliveries"
)

// AllDataTypes returns every configured data type, in dispatch order.
func AllDataTypes() []DataType {
	return []DataType{
		DataTypePackages,
		DataTypePlantsVegetative,
		DataTypePlantsFlowering,
		DataTypePlantBatches,
		DataTypeTransfersIncoming,
		DataTypeTransfersOutgoing,
		DataTypeSalesReceipts,
		DataTypeSalesDeliveries,
	}
}

// ParseDataType validates an externally supplied data type string.
func ParseDataType(s string) (DataType, error) {
	for _, dt := range AllDataTypes() {
		if string(dt) == s {
			return dt, nil
		}
	}
	return "", fmt.Errorf("unknown data type %q", s)
}

// SyncMode selects the query window shape for a run.
type SyncMode string

const (
	ModeIncremental SyncMode = "incremental" // records modified since last successful sync
	ModeFull        SyncMode = "full"        // all currently active records
)

// RunType records which cadence (or trigger) started a run.
type RunType string

const (
	RunHourlyIncremental RunType = "hourly_incremental"
	RunDailyFull         RunType = "daily_full"
	RunRetry             RunType = "retry"
	RunManual            RunType = "manual"
)

// Status constants for sync status rows and log entries.
const (
	StIdle    = "idle"
	StRunning = "running"
	StSuccess = "success"
	StError   = "error"
)
