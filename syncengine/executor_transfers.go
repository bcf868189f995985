// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package syncengine

import (
	"context"

	"github.com/greenledger/metrcsync/metrc"
)

func newIncomingTransfersExecutor() Executor {
	return &pagedExecutor{
		dataType: DataTypeTransfersIncoming,
		fetch: func(ctx context.Context, env Env, q metrc.ListQuery) ([]Record, error) {
			transfers, err := env.Client.IncomingTransfers(ctx, q)
			if err != nil {
				return nil, err
			}
			return mapTransfers(transfers)
		},
	}
}

func newOutgoingTransfersExecutor() Executor {
	return &pagedExecutor{
		dataType: DataTypeTransfersOutgoing,
		fetch: func(ctx context.Context, env Env, q metrc.ListQuery) ([]Record, error) {
			transfers, err := env.Client.OutgoingTransfers(ctx, q)
			if err != nil {
				return nil, err
			}
			return mapTransfers(transfers)
		},
	}
}

func mapTransfers(transfers []metrc.Transfer) ([]Record, error) {
	out := make([]Record, 0, len(transfers))
	for _, t := range transfers {
		rec, err := mapTransfer(t)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// mapTransfer normalizes one upstream transfer manifest. Pure.
func mapTransfer(t metrc.Transfer) (Record, error) {
	if t.ID == 0 {
		return Record{}, mappingError("transfer", t.ID, "missing Id")
	}
	if t.ManifestNumber == "" {
		return Record{}, mappingError("transfer", t.ID, "missing ManifestNumber")
	}
	if t.LastModified.IsZero() {
		return Record{}, mappingError("transfer", t.ID, "missing LastModified")
	}
	return Record{
		UpstreamID:   t.ID,
		Label:        t.ManifestNumber,
		LastModified: t.LastModified,
		Payload:      t.Raw,
	}, nil
}
