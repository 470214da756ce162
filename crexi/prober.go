package crexi

import (
	"bytes"
	"context"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"crexi_sync/models"
)

const (
	maxBodyBytes  = 32 << 20
	maxExcerptLen = 100
	probePageSize = 1
	userAgent     = "crexi-sync/1.0"
)

// Paging is the pagination scheme an endpoint speaks.
type Paging string

const (
	PagingOffset Paging = "offset"
	PagingToken  Paging = "token"
)

// Endpoint is a validated candidate. It is discovered once per run and
// passed to the Fetcher.
type Endpoint struct {
	Candidate Candidate
	Paging    Paging
}

// Prober tries candidates in order until one answers with a listings
// response.
type Prober struct {
	client *http.Client
	apiKey string
}

func NewProber(client *http.Client, apiKey string) *Prober {
	return &Prober{client: client, apiKey: apiKey}
}

// Probe returns the first candidate whose probe request succeeds. Each
// candidate is tried once; later candidates are not contacted after a
// success.
func (p *Prober) Probe(ctx context.Context, candidates []Candidate, filter models.Filter) (*Endpoint, error) {
	var attempts []Attempt

	for _, c := range candidates {
		attempt, paging, ok := p.try(ctx, c, filter)
		attempt.Message = redactKey(attempt.Message, p.apiKey)
		if ok {
			log.Printf("Probe: %s -> %d, using %s paging", c, attempt.StatusCode, paging)
			return &Endpoint{Candidate: c, Paging: paging}, nil
		}
		log.Printf("Probe: %s", attempt)
		attempts = append(attempts, attempt)

		if ctx.Err() != nil {
			break
		}
	}

	return nil, &EndpointDiscoveryError{Attempts: attempts}
}

func (p *Prober) try(ctx context.Context, c Candidate, filter models.Filter) (Attempt, Paging, bool) {
	attempt := Attempt{Candidate: c}

	req, err := newSearchRequest(ctx, c, p.apiKey, searchParams(filter, probePageSize))
	if err != nil {
		attempt.Message = err.Error()
		return attempt, "", false
	}

	resp, err := p.client.Do(req)
	if err != nil {
		attempt.Message = excerpt(redactKey(err.Error(), p.apiKey))
		return attempt, "", false
	}
	defer resp.Body.Close()

	attempt.StatusCode = resp.StatusCode
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		attempt.Message = "read body: " + err.Error()
		return attempt, "", false
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		attempt.Message = summarizeBody(resp.Header.Get("Content-Type"), body, p.apiKey)
		return attempt, "", false
	}

	pg, err := parsePage(body)
	if err != nil {
		attempt.Message = "success status but not a listings response: " + err.Error()
		return attempt, "", false
	}

	paging := PagingOffset
	if pg.NextToken != "" {
		paging = PagingToken
	}
	return attempt, paging, true
}

func searchParams(filter models.Filter, pageSize int) url.Values {
	params := url.Values{}
	params.Set("market", filter.MarketArea)
	for _, t := range filter.PropertyTypes {
		params.Add("propertyType", t)
	}
	if filter.TransactionType != "" {
		params.Set("transactionType", filter.TransactionType)
	}
	if filter.Status != "" {
		params.Set("status", filter.Status)
	}
	params.Set("limit", strconv.Itoa(pageSize))
	return params
}

func newSearchRequest(ctx context.Context, c Candidate, apiKey string, params url.Values) (*http.Request, error) {
	return newRequest(ctx, c.URL()+"?"+params.Encode(), c.Auth, apiKey)
}

func newRequest(ctx context.Context, rawURL string, auth AuthScheme, apiKey string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	auth.Apply(req, apiKey)
	return req, nil
}

// summarizeBody turns an error body into a one-line message. HTML pages are
// reduced to their title, JSON errors to their message field. The API key is
// masked before anything is cut short.
func summarizeBody(contentType string, body []byte, apiKey string) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return "empty body"
	}

	if strings.Contains(contentType, "html") || trimmed[0] == '<' {
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(trimmed))
		if err == nil {
			title := strings.TrimSpace(doc.Find("title").First().Text())
			if title == "" {
				title = strings.TrimSpace(doc.Find("h1").First().Text())
			}
			if title != "" {
				return excerpt(redactKey(title, apiKey))
			}
		}
	}

	if trimmed[0] == '{' {
		if obj, err := decodeObject(trimmed); err == nil {
			if msg, ok := models.StringField(obj, "message", "error", "detail", "title"); ok {
				return excerpt(redactKey(msg, apiKey))
			}
		}
	}

	return excerpt(redactKey(string(trimmed), apiKey))
}

func excerpt(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) > maxExcerptLen {
		return string([]rune(s)[:maxExcerptLen]) + "..."
	}
	return s
}

// redactKey keeps the API key out of error text. Transport errors embed the
// request URL for query-parameter auth, and some upstreams echo the key back
// in error bodies and next links.
func redactKey(s, apiKey string) string {
	if apiKey == "" {
		return s
	}
	s = strings.ReplaceAll(s, url.QueryEscape(apiKey), "****")
	return strings.ReplaceAll(s, apiKey, "****")
}
