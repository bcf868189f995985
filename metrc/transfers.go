// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package metrc

import (
	"context"
	"encoding/json"
)

const (
	pathIncomingTransfers = "/transfers/v2/incoming"
	pathOutgoingTransfers = "/transfers/v2/outgoing"
)

// IncomingTransfers fetches one page of incoming transfer manifests.
// Incoming manifests are shared data: pass a LicenseNumber override in q to
// read them on behalf of another license the credential pair can see.
func (c *Client) IncomingTransfers(ctx context.Context, q ListQuery) ([]Transfer, error) {
	return c.listTransfers(ctx, pathIncomingTransfers, q)
}

// OutgoingTransfers fetches one page of outgoing transfer manifests.
func (c *Client) OutgoingTransfers(ctx context.Context, q ListQuery) ([]Transfer, error) {
	return c.listTransfers(ctx, pathOutgoingTransfers, q)
}

func (c *Client) listTransfers(ctx context.Context, path string, q ListQuery) ([]Transfer, error) {
	raws, err := c.listRaw(ctx, path, q)
	if err != nil {
		return nil, err
	}
	out := make([]Transfer, 0, len(raws))
	for _, raw := range raws {
		var t Transfer
		if err := json.Unmarshal(raw, &t); err != nil {
			return nil, decodeError(path, err)
		}
		t.Raw = raw
		out = append(out, t)
	}
	return out, nil
}
