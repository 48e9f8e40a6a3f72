package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/giygas/medcompare-api/entities"
	"github.com/giygas/medcompare-api/interfaces"
	"github.com/giygas/medcompare-api/logging"
	"github.com/giygas/medcompare-api/metrics"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sony/gobreaker"
)

// SearchOptions configures a SearchClient
type SearchOptions struct {
	BaseURL   string
	Timeout   time.Duration
	CacheSize int
	CacheTTL  time.Duration
	Breaker   BreakerSettings
	// HTTPClient overrides the default client, mostly for tests
	HTTPClient *http.Client
}

// SearchClient looks medications up on the search service. Successful lookups
// are cached by normalized name; a nil cache disables caching.
type SearchClient struct {
	baseURL string
	http    *http.Client
	cache   *expirable.LRU[string, entities.LookupResponse]
	breaker *gobreaker.CircuitBreaker
}

// Compile-time check to ensure SearchClient implements interfaces.SearchClient
var _ interfaces.SearchClient = (*SearchClient)(nil)

// NewSearchClient creates a search client
func NewSearchClient(opts SearchOptions) *SearchClient {
	c := &SearchClient{
		baseURL: opts.BaseURL,
		http:    newHTTPClient(opts.Timeout, opts.HTTPClient),
		// Engine errors (not found, malformed payload) are answers, not outages
		breaker: newBreaker("search", opts.Breaker, func(err error) bool {
			return err == nil || entities.KindOf(err) != 0
		}),
	}
	if opts.CacheSize > 0 {
		c.cache = expirable.NewLRU[string, entities.LookupResponse](opts.CacheSize, nil, opts.CacheTTL)
	}
	return c
}

// Breaker exposes the breaker state for health reporting
func (c *SearchClient) Breaker() interfaces.BreakerReporter {
	return breakerState{cb: c.breaker}
}

func cacheKey(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// Lookup fetches GET {base}/api/search?name=. A response without
// original_medicine is a MalformedResponse error; a missing alternative list
// becomes empty.
func (c *SearchClient) Lookup(ctx context.Context, name string) (*entities.LookupResponse, error) {
	key := cacheKey(name)
	if c.cache != nil {
		if cached, ok := c.cache.Get(key); ok {
			logging.Debug("Search cache hit", "name", key)
			return cloneLookup(cached), nil
		}
	}

	res, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetch(ctx, name)
	})
	metrics.ObserveUpstream("search", err)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("search service unavailable: %w", err)
		}
		return nil, err
	}

	resp := res.(*entities.LookupResponse)
	if c.cache != nil {
		c.cache.Add(key, *cloneLookup(*resp))
	}
	return resp, nil
}

func (c *SearchClient) fetch(ctx context.Context, name string) (*entities.LookupResponse, error) {
	u := joinURL(c.baseURL, "/api/search") + "?" + url.Values{"name": {name}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build search request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read search response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		e := entities.NewError(entities.KindMissingContext, "lookup", "no medication found for %q", name)
		e.Status = http.StatusNotFound
		return nil, e
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("search service returned status %d: %s", resp.StatusCode, detailMessage(body, "no detail"))
	}

	var out entities.LookupResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, entities.WrapError(entities.KindMalformedResponse, "lookup", err)
	}
	if out.OriginalMedicine == nil {
		return nil, entities.NewError(entities.KindMalformedResponse, "lookup", "response for %q has no original_medicine", name)
	}
	if out.AlternativeMedicines == nil {
		out.AlternativeMedicines = []entities.Medication{}
	}
	out.FetchedAt = time.Now()
	return &out, nil
}

func cloneLookup(r entities.LookupResponse) *entities.LookupResponse {
	out := entities.LookupResponse{
		AlternativeMedicines: make([]entities.Medication, len(r.AlternativeMedicines)),
		FetchedAt:            r.FetchedAt,
	}
	if r.OriginalMedicine != nil {
		o := r.OriginalMedicine.Clone()
		out.OriginalMedicine = &o
	}
	for i, m := range r.AlternativeMedicines {
		out.AlternativeMedicines[i] = m.Clone()
	}
	return &out
}
