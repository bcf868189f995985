// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package metrc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// PagedResponse is the upstream page envelope shared by the v2 list
// endpoints. Data elements are kept raw so additional upstream fields
// survive normalization without schema changes.
type PagedResponse struct {
	Data          []json.RawMessage `json:"Data"`
	Total         int               `json:"Total"`
	TotalRecords  int               `json:"TotalRecords"`
	PageSize      int               `json:"PageSize"`
	RecordsOnPage int               `json:"RecordsOnPage"`
}

// ListQuery bounds one paginated list request. Zero-value fields are
// omitted from the query string; a zero window means "all active records"
// (full sync).
type ListQuery struct {
	Page              int
	PageSize          int
	LastModifiedStart time.Time
	LastModifiedEnd   time.Time
	LicenseNumber     string // overrides the client's own license when set
}

func (q ListQuery) values() url.Values {
	v := url.Values{}
	if q.Page > 0 {
		v.Set("pageNumber", strconv.Itoa(q.Page))
	}
	if q.PageSize > 0 {
		v.Set("pageSize", strconv.Itoa(q.PageSize))
	}
	if !q.LastModifiedStart.IsZero() {
		v.Set("lastModifiedStart", q.LastModifiedStart.UTC().Format(time.RFC3339))
	}
	if !q.LastModifiedEnd.IsZero() {
		v.Set("lastModifiedEnd", q.LastModifiedEnd.UTC().Format(time.RFC3339))
	}
	if q.LicenseNumber != "" {
		v.Set("licenseNumber", q.LicenseNumber)
	}
	return v
}

// listRaw fetches one page and returns its raw elements.
func (c *Client) listRaw(ctx context.Context, path string, q ListQuery) ([]json.RawMessage, error) {
	var page PagedResponse
	if err := c.Get(ctx, path, q.values(), &page); err != nil {
		return nil, err
	}
	return page.Data, nil
}

// Package is an upstream package record.
type Package struct {
	ID                int64           `json:"Id"`
	Label             string          `json:"Label"`
	PackageType       string          `json:"PackageType"`
	Quantity          float64         `json:"Quantity"`
	UnitOfMeasureName string          `json:"UnitOfMeasureName"`
	ProductName       string          `json:"ProductName"`
	PackagedDate      string          `json:"PackagedDate"`
	LastModified      time.Time       `json:"LastModified"`
	Raw               json.RawMessage `json:"-"`
}

// Plant is an upstream individual plant record.
type Plant struct {
	ID           int64           `json:"Id"`
	Label        string          `json:"Label"`
	State        string          `json:"State"`
	GrowthPhase  string          `json:"GrowthPhase"`
	StrainName   string          `json:"StrainName"`
	PlantedDate  string          `json:"PlantedDate"`
	LastModified time.Time       `json:"LastModified"`
	Raw          json.RawMessage `json:"-"`
}

// PlantBatch is an upstream plant batch record.
type PlantBatch struct {
	ID           int64           `json:"Id"`
	Name         string          `json:"Name"`
	Type         string          `json:"Type"`
	Count        int             `json:"Count"`
	StrainName   string          `json:"StrainName"`
	PlantedDate  string          `json:"PlantedDate"`
	LastModified time.Time       `json:"LastModified"`
	Raw          json.RawMessage `json:"-"`
}

// Transfer is an upstream transfer manifest record.
type Transfer struct {
	ID                           int64           `json:"Id"`
	ManifestNumber               string          `json:"ManifestNumber"`
	ShipperFacilityLicenseNumber string          `json:"ShipperFacilityLicenseNumber"`
	ShipperFacilityName          string          `json:"ShipperFacilityName"`
	DeliveryCount                int             `json:"DeliveryCount"`
	PackageCount                 int             `json:"PackageCount"`
	CreatedDateTime              time.Time       `json:"CreatedDateTime"`
	LastModified                 time.Time       `json:"LastModified"`
	Raw                          json.RawMessage `json:"-"`
}

// SalesReceipt is an upstream sales receipt record.
type SalesReceipt struct {
	ID            int64           `json:"Id"`
	ReceiptNumber string          `json:"ReceiptNumber"`
	SalesDateTime time.Time       `json:"SalesDateTime"`
	TotalPackages int             `json:"TotalPackages"`
	TotalPrice    float64         `json:"TotalPrice"`
	LastModified  time.Time       `json:"LastModified"`
	Raw           json.RawMessage `json:"-"`
}

// SalesDelivery is an upstream sales delivery record.
type SalesDelivery struct {
	ID             int64           `json:"Id"`
	DeliveryNumber string          `json:"DeliveryNumber"`
	RecipientName  string          `json:"RecipientName"`
	SalesDateTime  time.Time       `json:"SalesDateTime"`
	TotalPrice     float64         `json:"TotalPrice"`
	LastModified   time.Time       `json:"LastModified"`
	Raw            json.RawMessage `json:"-"`
}

func decodeError(path string, err error) error {
	return fmt.Errorf("failed to decode record from %s: %w", path, err)
}
