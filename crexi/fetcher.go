package crexi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"crexi_sync/models"
)

// Fetcher pages through search results on a discovered endpoint.
type Fetcher struct {
	client   *http.Client
	apiKey   string
	maxPages int
}

// NewFetcher returns a Fetcher. maxPages caps the number of pages requested;
// zero means no cap.
func NewFetcher(client *http.Client, apiKey string, maxPages int) *Fetcher {
	return &Fetcher{client: client, apiKey: apiKey, maxPages: maxPages}
}

// Listings starts a fresh iteration from page 1. Nothing is requested until
// the first call to Next.
func (f *Fetcher) Listings(ep *Endpoint, filter models.Filter) *ListingIterator {
	return &ListingIterator{
		fetcher: f,
		ep:      ep,
		filter:  filter,
	}
}

// ListingIterator yields raw listings one at a time, fetching pages lazily.
// It is finite and not restartable.
type ListingIterator struct {
	fetcher *Fetcher
	ep      *Endpoint
	filter  models.Filter

	page     int
	seen     int
	fullPage int
	token    string
	nextURL  string
	buf      []models.RawListing
	cur      models.RawListing
	rawPages []json.RawMessage
	done     bool
	err      error
}

// Next advances to the next listing. It returns false when the upstream has
// no more results or a page request failed; check Err afterwards.
func (it *ListingIterator) Next(ctx context.Context) bool {
	for len(it.buf) == 0 {
		if it.done || it.err != nil {
			return false
		}
		it.fetchPage(ctx)
	}
	it.cur = it.buf[0]
	it.buf = it.buf[1:]
	return true
}

func (it *ListingIterator) Listing() models.RawListing {
	return it.cur
}

// Err returns the *FetchError that ended iteration, if any.
func (it *ListingIterator) Err() error {
	return it.err
}

// Pages returns every page body received so far, unmodified, in order.
func (it *ListingIterator) Pages() []json.RawMessage {
	return it.rawPages
}

// PagesFetched is the number of successful page requests.
func (it *ListingIterator) PagesFetched() int {
	return len(it.rawPages)
}

func (it *ListingIterator) fetchPage(ctx context.Context) {
	f := it.fetcher
	if f.maxPages > 0 && it.page >= f.maxPages {
		log.Printf("Fetch: reached page cap (%d), stopping", f.maxPages)
		it.done = true
		return
	}
	it.page++

	pageSize := it.filter.PageSize
	target := it.ep.Candidate.URL()

	var req *http.Request
	var err error
	if it.nextURL != "" {
		target = it.nextURL
		req, err = newRequest(ctx, it.nextURL, it.ep.Candidate.Auth, f.apiKey)
	} else {
		params := searchParams(it.filter, pageSize)
		switch it.ep.Paging {
		case PagingToken:
			if it.token != "" {
				params.Set("pageToken", it.token)
			}
		default:
			params.Set("offset", strconv.Itoa(it.seen))
		}
		req, err = newSearchRequest(ctx, it.ep.Candidate, f.apiKey, params)
	}
	if err != nil {
		it.fail(0, target, err)
		return
	}

	log.Printf("Fetch: page %d from %s", it.page, target)

	resp, err := f.client.Do(req)
	if err != nil {
		it.fail(0, target, err)
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		it.fail(resp.StatusCode, target, fmt.Errorf("read body: %w", err))
		return
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		it.fail(resp.StatusCode, target, errors.New(summarizeBody(resp.Header.Get("Content-Type"), body, f.apiKey)))
		return
	}

	pg, err := parsePage(body)
	if err != nil {
		it.fail(resp.StatusCode, target, err)
		return
	}

	it.rawPages = append(it.rawPages, json.RawMessage(body))
	it.buf = append(it.buf, pg.Listings...)
	it.seen += len(pg.Listings)
	if it.fullPage == 0 {
		it.fullPage = len(pg.Listings)
	}

	log.Printf("Fetch: page %d: %d listings (total: %d)", it.page, len(pg.Listings), it.seen)

	// Servers may clamp the page size below what was asked for, so a short
	// page is measured against the first page actually served.
	switch {
	case len(pg.Listings) == 0:
		it.done = true
	case pg.HasTotal && it.seen >= pg.Total:
		it.done = true
	case it.ep.Paging == PagingToken:
		it.setToken(pg.NextToken, target)
	case len(pg.Listings) < it.fullPage:
		it.done = true
	}
}

// fail ends iteration with a FetchError. The API key is masked in the URL and
// the cause.
func (it *ListingIterator) fail(status int, target string, err error) {
	apiKey := it.fetcher.apiKey
	if masked := redactKey(err.Error(), apiKey); masked != err.Error() {
		err = errors.New(masked)
	}
	it.err = &FetchError{
		Page:       it.page,
		StatusCode: status,
		URL:        redactKey(target, apiKey),
		Err:        err,
	}
}

// setToken records the cursor for the next page. A cursor equal to the one
// just used means the upstream is not advancing.
func (it *ListingIterator) setToken(token, target string) {
	prevToken, prevURL := it.token, it.nextURL
	it.token, it.nextURL = "", ""
	switch {
	case token == "":
		it.done = true
	case strings.HasPrefix(token, "http://") || strings.HasPrefix(token, "https://"):
		if token == prevURL || token == target {
			it.fail(0, target, fmt.Errorf("next page link did not advance: %s", token))
			return
		}
		it.nextURL = token
	default:
		if token == prevToken {
			it.fail(0, target, fmt.Errorf("page token did not advance: %q", token))
			return
		}
		it.token = token
	}
}
