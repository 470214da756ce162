package scraper

import (
	"context"
	"encoding/json"

	"crexi_sync/models"
)

// Handler produces the full listing set for one filter. A result is only
// returned when every page was fetched; partial results are discarded.
type Handler interface {
	ID() string
	Scrape(ctx context.Context, filter models.Filter) (*ScrapeResult, error)
}

type ScrapeResult struct {
	Endpoint string
	Listings []models.RawListing
	Pages    []json.RawMessage
}
