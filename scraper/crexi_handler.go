package scraper

import (
	"context"
	"log"

	"crexi_sync/crexi"
	"crexi_sync/models"
)

// CrexiHandler discovers a working endpoint, then drains every page of
// search results from it.
type CrexiHandler struct {
	prober     *crexi.Prober
	fetcher    *crexi.Fetcher
	candidates []crexi.Candidate

	endpoint *crexi.Endpoint
}

func NewCrexiHandler(prober *crexi.Prober, fetcher *crexi.Fetcher, candidates []crexi.Candidate) *CrexiHandler {
	return &CrexiHandler{
		prober:     prober,
		fetcher:    fetcher,
		candidates: candidates,
	}
}

func (h *CrexiHandler) ID() string {
	return "crexi"
}

func (h *CrexiHandler) Scrape(ctx context.Context, filter models.Filter) (*ScrapeResult, error) {
	// The winning candidate is reused for the rest of the process.
	if h.endpoint == nil {
		ep, err := h.prober.Probe(ctx, h.candidates, filter)
		if err != nil {
			return nil, err
		}
		h.endpoint = ep
	}

	it := h.fetcher.Listings(h.endpoint, filter)
	var listings []models.RawListing
	for it.Next(ctx) {
		listings = append(listings, it.Listing())
	}
	if err := it.Err(); err != nil {
		log.Printf("API: aborting after %d pages, %d listings discarded", it.PagesFetched(), len(listings))
		return nil, err
	}

	log.Printf("API: %d listings across %d pages", len(listings), it.PagesFetched())
	return &ScrapeResult{
		Endpoint: h.endpoint.Candidate.String(),
		Listings: listings,
		Pages:    it.Pages(),
	}, nil
}
