package crexi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"crexi_sync/models"
)

var (
	listKeys  = []string{"results", "data", "listings", "items"}
	tokenKeys = []string{"nextPageToken", "nextToken", "cursor", "next"}
	totalKeys = []string{"total", "totalCount", "totalResults", "totalRecords"}
	pageKeys  = []string{"paging", "pagination", "meta"}
)

var errNoListings = errors.New("response has no listings array")

// page is one decoded search response.
type page struct {
	Listings  []models.RawListing
	NextToken string
	Total     int
	HasTotal  bool
}

func parsePage(body []byte) (*page, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, errors.New("empty response body")
	}

	if trimmed[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("decode listings array: %w", err)
		}
		return &page{Listings: decodeListings(items)}, nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	meta, err := decodeObject(trimmed)
	if err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	items, err := findListings(raw)
	if err != nil {
		return nil, err
	}

	p := &page{Listings: decodeListings(items)}
	p.NextToken = findToken(meta)
	p.Total, p.HasTotal = findTotal(meta)
	return p, nil
}

// findListings locates the listings array, descending into a wrapping
// object such as {"data": {"results": [...]}}.
func findListings(raw map[string]json.RawMessage) ([]json.RawMessage, error) {
	for _, key := range listKeys {
		value, ok := rawLookup(raw, key)
		if !ok {
			continue
		}
		value = bytes.TrimSpace(value)
		if len(value) == 0 {
			continue
		}
		switch value[0] {
		case '[':
			var items []json.RawMessage
			if err := json.Unmarshal(value, &items); err != nil {
				return nil, fmt.Errorf("decode %s: %w", key, err)
			}
			return items, nil
		case '{':
			var nested map[string]json.RawMessage
			if err := json.Unmarshal(value, &nested); err != nil {
				return nil, fmt.Errorf("decode %s: %w", key, err)
			}
			if items, err := findListings(nested); err == nil {
				return items, nil
			}
		}
	}
	return nil, errNoListings
}

func rawLookup(raw map[string]json.RawMessage, key string) (json.RawMessage, bool) {
	if v, ok := raw[key]; ok {
		return v, true
	}
	for k, v := range raw {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return nil, false
}

func decodeListings(items []json.RawMessage) []models.RawListing {
	listings := make([]models.RawListing, 0, len(items))
	for _, item := range items {
		fields, err := decodeObject(item)
		if err != nil {
			continue
		}
		listings = append(listings, models.RawListing{Fields: fields, Data: item})
	}
	return listings
}

func decodeObject(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, errors.New("not a JSON object")
	}
	return obj, nil
}

func findToken(meta map[string]any) string {
	if token, ok := models.StringField(meta, tokenKeys...); ok {
		return token
	}
	if paging, ok := models.ObjectField(meta, pageKeys...); ok {
		if token, ok := models.StringField(paging, tokenKeys...); ok {
			return token
		}
	}
	if data, ok := models.ObjectField(meta, "data"); ok {
		return findToken(data)
	}
	return ""
}

func findTotal(meta map[string]any) (int, bool) {
	if total, ok := models.IntField(meta, totalKeys...); ok {
		return total, true
	}
	if paging, ok := models.ObjectField(meta, pageKeys...); ok {
		if total, ok := models.IntField(paging, totalKeys...); ok {
			return total, true
		}
	}
	if data, ok := models.ObjectField(meta, "data"); ok {
		return findTotal(data)
	}
	return 0, false
}
