// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package metrc

import (
	"context"
	"encoding/json"
)

const (
	pathVegetativePlants   = "/plants/v2/vegetative"
	pathFloweringPlants    = "/plants/v2/flowering"
	pathActivePlantBatches = "/plantbatches/v2/active"
)

// VegetativePlants fetches one page of plants in the vegetative phase.
func (c *Client) VegetativePlants(ctx context.Context, q ListQuery) ([]Plant, error) {
	return c.listPlants(ctx, pathVegetativePlants, q)
}

// FloweringPlants fetches one page of plants in the flowering phase.
func (c *Client) FloweringPlants(ctx context.Context, q ListQuery) ([]Plant, error) {
	return c.listPlants(ctx, pathFloweringPlants, q)
}

func (c *Client) listPlants(ctx context.Context, path string, q ListQuery) ([]Plant, error) {
	raws, err := c.listRaw(ctx, path, q)
	if err != nil {
		return nil, err
	}
	out := make([]Plant, 0, len(raws))
	for _, raw := range raws {
		var p Plant
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, decodeError(path, err)
		}
		p.Raw = raw
		out = append(out, p)
	}
	return out, nil
}

// ActivePlantBatches fetches one page of active plant batches.
func (c *Client) ActivePlantBatches(ctx context.Context, q ListQuery) ([]PlantBatch, error) {
	raws, err := c.listRaw(ctx, pathActivePlantBatches, q)
	if err != nil {
		return nil, err
	}
	out := make([]PlantBatch, 0, len(raws))
	for _, raw := range raws {
		var b PlantBatch
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, decodeError(pathActivePlantBatches, err)
		}
		b.Raw = raw
		out = append(out, b)
	}
	return out, nil
}
