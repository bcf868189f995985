// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package syncengine

import (
	"context"

	"github.com/greenledger/metrcsync/metrc"
)

func newSalesReceiptsExecutor() Executor {
	return &pagedExecutor{dataType: DataTypeSalesReceipts, fetch: fetchSalesReceiptsPage}
}

func newSalesDeliveriesExecutor() Executor {
	return &pagedExecutor{dataType: DataTypeSalesDeliveries, fetch: fetchSalesDeliveriesPage}
}

func fetchSalesReceiptsPage(ctx context.Context, env Env, q metrc.ListQuery) ([]Record, error) {
	receipts, err := env.Client.ActiveSalesReceipts(ctx, q)
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(receipts))
	for _, r := range receipts {
		rec, err := mapSalesReceipt(r)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// mapSalesReceipt normalizes one upstream sales receipt. Pure.
func mapSalesReceipt(r metrc.SalesReceipt) (Record, error) {
	if r.ID == 0 {
		return Record{}, mappingError("sales receipt", r.ID, "missing Id")
	}
	if r.ReceiptNumber == "" {
		return Record{}, mappingError("sales receipt", r.ID, "missing ReceiptNumber")
	}
	if r.LastModified.IsZero() {
		return Record{}, mappingError("sales receipt", r.ID, "missing LastModified")
	}
	return Record{
		UpstreamID:   r.ID,
		Label:        r.ReceiptNumber,
		LastModified: r.LastModified,
		Payload:      r.Raw,
	}, nil
}

func fetchSalesDeliveriesPage(ctx context.Context, env Env, q metrc.ListQuery) ([]Record, error) {
	deliveries, err := env.Client.SalesDeliveries(ctx, q)
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(deliveries))
	for _, d := range deliveries {
		rec, err := mapSalesDelivery(d)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// mapSalesDelivery normalizes one upstream sales delivery. Pure.
func mapSalesDelivery(d metrc.SalesDelivery) (Record, error) {
	if d.ID == 0 {
		return Record{}, mappingError("sales delivery", d.ID, "missing Id")
	}
	if d.DeliveryNumber == "" {
		return Record{}, mappingError("sales delivery", d.ID, "missing DeliveryNumber")
	}
	if d.LastModified.IsZero() {
		return Record{}, mappingError("sales delivery", d.ID, "missing LastModified")
	}
	return Record{
		UpstreamID:   d.ID,
		Label:        d.DeliveryNumber,
		LastModified: d.LastModified,
		Payload:      d.Raw,
	}, nil
}
