// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package syncengine

import (
	"context"

	"github.com/greenledger/metrcsync/metrc"
)

func newVegetativePlantsExecutor() Executor {
	return &pagedExecutor{
		dataType: DataTypePlantsVegetative,
		fetch: func(ctx context.Context, env Env, q metrc.ListQuery) ([]Record, error) {
			plants, err := env.Client.VegetativePlants(ctx, q)
			if err != nil {
				return nil, err
			}
			return mapPlants(plants)
		},
	}
}

func newFloweringPlantsExecutor() Executor {
	return &pagedExecutor{
		dataType: DataTypePlantsFlowering,
		fetch: func(ctx context.Context, env Env, q metrc.ListQuery) ([]Record, error) {
			plants, err := env.Client.FloweringPlants(ctx, q)
			if err != nil {
				return nil, err
			}
			return mapPlants(plants)
		},
	}
}

func newPlantBatchesExecutor() Executor {
	return &pagedExecutor{dataType: DataTypePlantBatches, fetch: fetchPlantBatchesPage}
}

func mapPlants(plants []metrc.Plant) ([]Record, error) {
	out := make([]Record, 0, len(plants))
	for _, p := range plants {
		rec, err := mapPlant(p)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// mapPlant normalizes one upstream plant. Pure.
func mapPlant(p metrc.Plant) (Record, error) {
	if p.ID == 0 {
		return Record{}, mappingError("plant", p.ID, "missing Id")
	}
	if p.Label == "" {
		return Record{}, mappingError("plant", p.ID, "missing Label")
	}
	if p.LastModified.IsZero() {
		return Record{}, mappingError("plant", p.ID, "missing LastModified")
	}
	return Record{
		UpstreamID:   p.ID,
		Label:        p.Label,
		LastModified: p.LastModified,
		Payload:      p.Raw,
	}, nil
}

func fetchPlantBatchesPage(ctx context.Context, env Env, q metrc.ListQuery) ([]Record, error) {
	batches, err := env.Client.ActivePlantBatches(ctx, q)
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(batches))
	for _, b := range batches {
		rec, err := mapPlantBatch(b)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// mapPlantBatch normalizes one upstream plant batch. Batches carry a Name
// rather than a tag label. Pure.
func mapPlantBatch(b metrc.PlantBatch) (Record, error) {
	if b.ID == 0 {
		return Record{}, mappingError("plant batch", b.ID, "missing Id")
	}
	if b.Name == "" {
		return Record{}, mappingError("plant batch", b.ID, "missing Name")
	}
	if b.LastModified.IsZero() {
		return Record{}, mappingError("plant batch", b.ID, "missing LastModified")
	}
	return Record{
		UpstreamID:   b.ID,
		Label:        b.Name,
		LastModified: b.LastModified,
		Payload:      b.Raw,
	}, nil
}
