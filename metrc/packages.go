// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package metrc

import (
	"context"
	"encoding/json"
)

const pathActivePackages = "/packages/v2/active"

// ActivePackages fetches one page of active packages for the client's
// facility, optionally bounded by a lastModified window.
func (c *Client) ActivePackages(ctx context.Context, q ListQuery) ([]Package, error) {
	raws, err := c.listRaw(ctx, pathActivePackages, q)
	if err != nil {
		return nil, err
	}
	out := make([]Package, 0, len(raws))
	for _, raw := range raws {
		var p Package
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, decodeError(pathActivePackages, err)
		}
		p.Raw = raw
		out = append(out, p)
	}
	return out, nil
}
