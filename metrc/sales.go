// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package metrc

import (
	"context"
	"encoding/json"
)

const (
	pathActiveSalesReceipts = "/sales/v2/receipts/active"
	pathSalesDeliveries     = "/sales/v2/deliveries/active"
)

// ActiveSalesReceipts fetches one page of active sales receipts.
func (c *Client) ActiveSalesReceipts(ctx context.Context, q ListQuery) ([]SalesReceipt, error) {
	raws, err := c.listRaw(ctx, pathActiveSalesReceipts, q)
	if err != nil {
		return nil, err
	}
	out := make([]SalesReceipt, 0, len(raws))
	for _, raw := range raws {
		var r SalesReceipt
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, decodeError(pathActiveSalesReceipts, err)
		}
		r.Raw = raw
		out = append(out, r)
	}
	return out, nil
}

// SalesDeliveries fetches one page of active sales deliveries.
func (c *Client) SalesDeliveries(ctx context.Context, q ListQuery) ([]SalesDelivery, error) {
	raws, err := c.listRaw(ctx, pathSalesDeliveries, q)
	if err != nil {
		return nil, err
	}
	out := make([]SalesDelivery, 0, len(raws))
	for _, raw := range raws {
		var d SalesDelivery
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, decodeError(pathSalesDeliveries, err)
		}
		d.Raw = raw
		out = append(out, d)
	}
	return out, nil
}
