// Package registry confirms package existence against the public NPM
// registry and resolves detected version strings to published versions.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// DefaultBaseURL is the public NPM registry endpoint.
const DefaultBaseURL = "https://registry.npmjs.org"

// defaultLookupsPerSecond throttles registry traffic. Lookups are sequential
// anyway; the limiter just spaces them out.
const defaultLookupsPerSecond = 4

// ErrNotFound indicates the registry has no package under the given name.
var ErrNotFound = errors.New("package not found in registry")

// PackageInfo describes a published package as seen by the registry.
type PackageInfo struct {
	Name     string
	Versions []string
	Latest   string
}

// HasVersion reports whether version is among the published versions.
func (p *PackageInfo) HasVersion(version string) bool {
	for _, v := range p.Versions {
		if v == version {
			return true
		}
	}
	return false
}

// Client looks up package existence and published versions. Implementations
// must return ErrNotFound for unknown names so callers can distinguish a miss
// from a transport failure, though the pipeline treats both as non-fatal.
type Client interface {
	Lookup(ctx context.Context, name string) (*PackageInfo, error)
}

// HTTPClient queries an NPM-compatible registry over HTTP.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// NewHTTPClient builds a client for the given registry base URL. The timeout
// applies per lookup.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(defaultLookupsPerSecond), 1),
	}
}

// registryDocument is the subset of the registry's package metadata we read.
type registryDocument struct {
	Name     string                     `json:"name"`
	Versions map[string]json.RawMessage `json:"versions"`
	DistTags map[string]string          `json:"dist-tags"`
}

// Lookup fetches the package metadata document for name. Scoped and plain
// names are both escaped into a single path segment, matching registry
// conventions.
func (c *HTTPClient) Lookup(ctx context.Context, name string) (*PackageInfo, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	endpoint := c.baseURL + "/" + url.PathEscape(name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build lookup request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("registry lookup for %s: %w", name, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("registry lookup for %s: unexpected status %d", name, resp.StatusCode)
	}

	var doc registryDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode registry response for %s: %w", name, err)
	}

	info := &PackageInfo{
		Name:     doc.Name,
		Versions: make([]string, 0, len(doc.Versions)),
		Latest:   doc.DistTags["latest"],
	}
	for v := range doc.Versions {
		info.Versions = append(info.Versions, v)
	}
	sort.Strings(info.Versions)

	return info, nil
}
