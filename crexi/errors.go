package crexi

import (
	"fmt"
	"strings"
)

// Attempt records the outcome of probing one candidate.
type Attempt struct {
	Candidate  Candidate
	StatusCode int // 0 when the request never got a response
	Message    string
}

func (a Attempt) String() string {
	if a.StatusCode == 0 {
		return fmt.Sprintf("%s: request failed: %s", a.Candidate, a.Message)
	}
	if a.Message == "" {
		return fmt.Sprintf("%s: %d", a.Candidate, a.StatusCode)
	}
	return fmt.Sprintf("%s: %d %s", a.Candidate, a.StatusCode, a.Message)
}

// EndpointDiscoveryError means no candidate combination returned a usable
// listings response.
type EndpointDiscoveryError struct {
	Attempts []Attempt
}

func (e *EndpointDiscoveryError) Error() string {
	return fmt.Sprintf("no working Crexi endpoint found after %d attempts", len(e.Attempts))
}

// Report is the per-attempt diagnostic, one line per candidate.
func (e *EndpointDiscoveryError) Report() string {
	var b strings.Builder
	for _, a := range e.Attempts {
		b.WriteString("  ")
		b.WriteString(a.String())
		b.WriteString("\n")
	}
	return b.String()
}

// StatusCounts groups attempts by status code; transport failures count as 0.
func (e *EndpointDiscoveryError) StatusCounts() map[int]int {
	counts := make(map[int]int)
	for _, a := range e.Attempts {
		counts[a.StatusCode]++
	}
	return counts
}

// FetchError is a listings page failure after discovery succeeded.
type FetchError struct {
	Page       int
	StatusCode int
	URL        string
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch page %d from %s: status %d: %v", e.Page, e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch page %d from %s: %v", e.Page, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
