package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"crexi_sync/models"
)

// SnapshotMeta identifies the snapshot every row of a run belongs to. The
// same value is passed to every stage so all rows share one timestamp.
type SnapshotMeta struct {
	SnapshotDate time.Time
	MarketArea   string
	PropertyType string
	Source       string
}

func NewSnapshotMeta(filter models.Filter, source string, now time.Time) SnapshotMeta {
	return SnapshotMeta{
		SnapshotDate: now.UTC(),
		MarketArea:   filter.MarketArea,
		PropertyType: filter.PropertyTypeLabel(),
		Source:       source,
	}
}

// ListingContribution is what one listing adds to the market row counts.
type ListingContribution struct {
	Properties int
	Suites     int
}

func (c ListingContribution) Add(other ListingContribution) ListingContribution {
	return ListingContribution{
		Properties: c.Properties + other.Properties,
		Suites:     c.Suites + other.Suites,
	}
}

var (
	assetIDKeys  = []string{"id", "assetId"}
	suiteIDKeys  = []string{"id", "suiteId"}
	sizeKeys     = []string{"size", "squareFeet", "sqft", "suiteSize"}
	rateKeys     = []string{"rate", "leaseRate", "askingRate"}
	addressKeys  = []string{"address", "streetAddress", "address1"}
	cityKeys     = []string{"city"}
	stateKeys    = []string{"state", "stateCode"}
	zipKeys      = []string{"zip", "zipCode", "postalCode"}
	locationKeys = []string{"location", "address"}
)

// Flatten maps one raw listing to its count contribution and suite rows.
// A listing without a suites field is its own single suite. Suite entries
// that are not objects are skipped and not counted.
func Flatten(listing models.RawListing, meta SnapshotMeta) (ListingContribution, []models.SuiteSnapshot) {
	fields := listing.Fields
	if fields == nil {
		fields = map[string]any{}
	}

	var suites []map[string]any
	ownSuite := false
	if list, ok := models.ListField(fields, "suites"); ok {
		for _, entry := range list {
			if suite, ok := entry.(map[string]any); ok {
				suites = append(suites, suite)
			}
		}
	} else {
		suites = []map[string]any{fields}
		ownSuite = true
	}

	assetID, _ := models.StringField(fields, assetIDKeys...)
	locations := locationSources(fields)

	rows := make([]models.SuiteSnapshot, 0, len(suites))
	for _, suite := range suites {
		sources := append(append([]map[string]any{}, locations...), suite)

		var suiteID string
		if !ownSuite {
			suiteID, _ = models.StringField(suite, suiteIDKeys...)
		}
		rateType, _ := models.StringField(suite, "rateType")
		status, _ := models.StringField(suite, "status")

		rows = append(rows, models.SuiteSnapshot{
			SnapshotDate: meta.SnapshotDate,
			CrexiAssetID: assetID,
			CrexiSuiteID: suiteID,
			MarketArea:   meta.MarketArea,
			PropertyType: meta.PropertyType,
			SuiteSize:    nonNegative(optionalFloat(suite, sizeKeys...)),
			LeaseRate:    optionalFloat(suite, rateKeys...),
			RateType:     rateType,
			Status:       status,
			Address:      firstString(sources, addressKeys...),
			City:         firstString(sources, cityKeys...),
			State:        firstState(sources),
			Zip:          firstString(sources, zipKeys...),
			RawData:      listing.Data,
		})
	}

	return ListingContribution{Properties: 1, Suites: len(rows)}, rows
}

// FlattenAll flattens listings in order and totals their contributions.
func FlattenAll(listings []models.RawListing, meta SnapshotMeta) (ListingContribution, []models.SuiteSnapshot) {
	var total ListingContribution
	var rows []models.SuiteSnapshot
	for _, l := range listings {
		c, suiteRows := Flatten(l, meta)
		total = total.Add(c)
		rows = append(rows, suiteRows...)
	}
	return total, rows
}

// BuildMarketSnapshot assembles the market row. raw_data is a JSON array of
// the page bodies exactly as received.
func BuildMarketSnapshot(meta SnapshotMeta, totals ListingContribution, pages []json.RawMessage) models.MarketSnapshot {
	notes := "Synced from Crexi API"
	if meta.Source != "" {
		notes = fmt.Sprintf("Synced from Crexi API (%s)", meta.Source)
	}

	return models.MarketSnapshot{
		SnapshotDate:    meta.SnapshotDate,
		MarketArea:      meta.MarketArea,
		PropertyType:    meta.PropertyType,
		TotalProperties: max(totals.Properties, 0),
		TotalSuites:     max(totals.Suites, 0),
		Notes:           notes,
		RawData:         joinPages(pages),
	}
}

func joinPages(pages []json.RawMessage) json.RawMessage {
	var b bytes.Buffer
	b.WriteByte('[')
	for i, p := range pages {
		if i > 0 {
			b.WriteByte(',')
		}
		b.Write(p)
	}
	b.WriteByte(']')
	return b.Bytes()
}

// locationSources lists the listing-level objects that may carry address
// parts, most specific last: the listing, its location object(s).
func locationSources(listing map[string]any) []map[string]any {
	sources := []map[string]any{listing}
	if loc, ok := models.ObjectField(listing, locationKeys...); ok {
		sources = append(sources, loc)
	}
	if locs, ok := models.ListField(listing, "locations"); ok && len(locs) > 0 {
		if loc, ok := locs[0].(map[string]any); ok {
			sources = append(sources, loc)
		}
	}
	return sources
}

func firstString(sources []map[string]any, keys ...string) *string {
	for _, src := range sources {
		if v, ok := models.StringField(src, keys...); ok {
			return &v
		}
	}
	return nil
}

func firstState(sources []map[string]any) *string {
	for _, src := range sources {
		if v, ok := models.StringField(src, stateKeys...); ok {
			return &v
		}
		if obj, ok := models.ObjectField(src, stateKeys...); ok {
			if v, ok := models.StringField(obj, "code", "abbreviation", "name"); ok {
				return &v
			}
		}
	}
	return nil
}

func optionalFloat(obj map[string]any, keys ...string) *float64 {
	if v, ok := models.FloatField(obj, keys...); ok {
		return &v
	}
	return nil
}

func nonNegative(v *float64) *float64 {
	if v == nil || *v < 0 {
		return nil
	}
	return v
}
