package crexi

import (
	"fmt"
	"net/http"
	"strings"
)

// AuthScheme names how the API key is attached to a request.
type AuthScheme string

const (
	AuthBearer  AuthScheme = "bearer"
	AuthXAPIKey AuthScheme = "x-api-key"
	AuthAPIKey  AuthScheme = "api-key"
	AuthQuery   AuthScheme = "query"
)

const apiKeyParam = "api_key"

func ParseAuthScheme(s string) (AuthScheme, error) {
	switch AuthScheme(strings.ToLower(strings.TrimSpace(s))) {
	case AuthBearer:
		return AuthBearer, nil
	case AuthXAPIKey:
		return AuthXAPIKey, nil
	case AuthAPIKey:
		return AuthAPIKey, nil
	case AuthQuery:
		return AuthQuery, nil
	default:
		return "", fmt.Errorf("unknown auth scheme: %q", s)
	}
}

// Apply attaches apiKey to req.
func (a AuthScheme) Apply(req *http.Request, apiKey string) {
	switch a {
	case AuthBearer:
		req.Header.Set("Authorization", "Bearer "+apiKey)
	case AuthXAPIKey:
		req.Header.Set("x-api-key", apiKey)
	case AuthAPIKey:
		req.Header.Set("api-key", apiKey)
	case AuthQuery:
		q := req.URL.Query()
		q.Set(apiKeyParam, apiKey)
		req.URL.RawQuery = q.Encode()
	}
}

// Candidate is one (base URL, search path, auth scheme) combination tried
// during endpoint discovery.
type Candidate struct {
	BaseURL string
	Path    string
	Auth    AuthScheme
}

func (c Candidate) URL() string {
	return strings.TrimRight(c.BaseURL, "/") + "/" + strings.TrimLeft(c.Path, "/")
}

func (c Candidate) String() string {
	return fmt.Sprintf("%s [%s]", c.URL(), c.Auth)
}

// BuildCandidates crosses the lists in priority order: base URL, then path,
// then auth scheme.
func BuildCandidates(baseURLs, paths, schemes []string) ([]Candidate, error) {
	auths := make([]AuthScheme, 0, len(schemes))
	for _, s := range schemes {
		a, err := ParseAuthScheme(s)
		if err != nil {
			return nil, err
		}
		auths = append(auths, a)
	}

	candidates := make([]Candidate, 0, len(baseURLs)*len(paths)*len(auths))
	for _, base := range baseURLs {
		for _, path := range paths {
			for _, auth := range auths {
				candidates = append(candidates, Candidate{BaseURL: base, Path: path, Auth: auth})
			}
		}
	}
	return candidates, nil
}
