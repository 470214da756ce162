package models

import (
	"encoding/json"
	"strings"
	"time"
)

// MarketSnapshot is one row per run per market/property-type filter.
type MarketSnapshot struct {
	ID              int64           `json:"id,omitempty" db:"id"`
	SnapshotDate    time.Time       `json:"snapshot_date" db:"snapshot_date"`
	MarketArea      string          `json:"market_area" db:"market_area"`
	PropertyType    string          `json:"property_type" db:"property_type"`
	TotalProperties int             `json:"total_properties" db:"total_properties"`
	TotalSuites     int             `json:"total_suites" db:"total_suites"`
	Notes           string          `json:"notes" db:"notes"`
	RawData         json.RawMessage `json:"raw_data" db:"raw_data"`
	CreatedAt       *time.Time      `json:"created_at,omitempty" db:"created_at"`
}

// SuiteSnapshot is one row per suite observed in a run. It references its
// MarketSnapshot through (SnapshotDate, MarketArea, PropertyType).
type SuiteSnapshot struct {
	ID           int64           `json:"id,omitempty" db:"id"`
	SnapshotDate time.Time       `json:"snapshot_date" db:"snapshot_date"`
	CrexiAssetID string          `json:"crexi_asset_id" db:"crexi_asset_id"`
	CrexiSuiteID string          `json:"crexi_suite_id" db:"crexi_suite_id"`
	MarketArea   string          `json:"market_area" db:"market_area"`
	PropertyType string          `json:"property_type" db:"property_type"`
	SuiteSize    *float64        `json:"suite_size" db:"suite_size"`
	LeaseRate    *float64        `json:"lease_rate" db:"lease_rate"`
	RateType     string          `json:"rate_type" db:"rate_type"`
	Status       string          `json:"status" db:"status"`
	Address      *string         `json:"address" db:"address"`
	City         *string         `json:"city" db:"city"`
	State        *string         `json:"state" db:"state"`
	Zip          *string         `json:"zip" db:"zip"`
	RawData      json.RawMessage `json:"raw_data" db:"raw_data"`
	CreatedAt    *time.Time      `json:"created_at,omitempty" db:"created_at"`
}

// RawListing is one listing as returned upstream. Fields holds the decoded
// object for lookups; Data is the exact bytes it was decoded from.
type RawListing struct {
	Fields map[string]any  `json:"-"`
	Data   json.RawMessage `json:"data"`
}

// Filter is the upstream query scope.
type Filter struct {
	MarketArea      string   `yaml:"market_area"`
	PropertyTypes   []string `yaml:"property_types"`
	TransactionType string   `yaml:"transaction_type"`
	Status          string   `yaml:"status"`
	PageSize        int      `yaml:"page_size"`
}

// PropertyTypeLabel is the value stored in the property_type column of the
// market row.
func (f Filter) PropertyTypeLabel() string {
	return strings.Join(f.PropertyTypes, ", ")
}
