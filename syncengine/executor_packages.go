// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package syncengine

import (
	"context"

	"github.com/greenledger/metrcsync/metrc"
)

func newPackagesExecutor() Executor {
	return &pagedExecutor{dataType: DataTypePackages, fetch: fetchPackagesPage}
}

func fetchPackagesPage(ctx context.Context, env Env, q metrc.ListQuery) ([]Record, error) {
	pkgs, err := env.Client.ActivePackages(ctx, q)
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(pkgs))
	for _, p := range pkgs {
		rec, err := mapPackage(p)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// mapPackage normalizes one upstream package. Pure.
func mapPackage(p metrc.Package) (Record, error) {
	if p.ID == 0 {
		return Record{}, mappingError("package", p.ID, "missing Id")
	}
	if p.Label == "" {
		return Record{}, mappingError("package", p.ID, "missing Label")
	}
	if p.LastModified.IsZero() {
		return Record{}, mappingError("package", p.ID, "missing LastModified")
	}
	return Record{
		UpstreamID:   p.ID,
		Label:        p.Label,
		LastModified: p.LastModified,
		Payload:      p.Raw,
	}, nil
}
