package marketplace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sidpendyala/marketmaker/internal/metrics"
	domain "github.com/sidpendyala/marketmaker/pkg/types"
)

const (
	defaultAPIHost = "real-time-ebay-data.p.rapidapi.com"
	defaultBaseURL = "https://" + defaultAPIHost

	searchSortNewlyListed = "13"
	searchSortCheapest    = "15"
)

// RapidAPIClient implements Client against the real-time eBay data
// RapidAPI service. The service proxies regular eBay search and product
// URLs, so requests carry an encoded www.ebay.com URL as a parameter.
type RapidAPIClient struct {
	apiKey      string
	baseURL     string
	client      *http.Client
	rateLimiter *RateLimiter
}

// RapidAPIOption configures the RapidAPIClient.
type RapidAPIOption func(*RapidAPIClient)

// WithBaseURL overrides the default API endpoint. Tests point this at a
// local httptest server.
func WithBaseURL(u string) RapidAPIOption {
	return func(c *RapidAPIClient) {
		c.baseURL = u
	}
}

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(hc *http.Client) RapidAPIOption {
	return func(c *RapidAPIClient) {
		c.client = hc
	}
}

// WithRateLimiter injects a rate limiter covering per-second and daily
// call limits. When set, every upstream request goes through Wait()
// first.
func WithRateLimiter(r *RateLimiter) RapidAPIOption {
	return func(c *RapidAPIClient) {
		c.rateLimiter = r
	}
}

// NewRapidAPIClient creates a marketplace client using the given
// RapidAPI key.
func NewRapidAPIClient(apiKey string, opts ...RapidAPIOption) *RapidAPIClient {
	c := &RapidAPIClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *RapidAPIClient) configured() bool {
	return c.apiKey != "" && c.apiKey != "your_rapidapi_key_here"
}

// SearchSold implements Client.SearchSold: sold and completed listings,
// newest first.
func (c *RapidAPIClient) SearchSold(ctx context.Context, query string) ([]domain.Listing, error) {
	searchURL := buildSearchURL(query, url.Values{
		"LH_Sold":     {"1"},
		"LH_Complete": {"1"},
		"_sop":        {searchSortNewlyListed},
	})
	return c.search(ctx, searchURL, domain.StatusSold)
}

// SearchActive implements Client.SearchActive: Buy-It-Now listings,
// price plus shipping ascending.
func (c *RapidAPIClient) SearchActive(ctx context.Context, query string) ([]domain.Listing, error) {
	searchURL := buildSearchURL(query, url.Values{
		"LH_BIN": {"1"},
		"_sop":   {searchSortCheapest},
	})
	return c.search(ctx, searchURL, domain.StatusActive)
}

type searchResponse struct {
	Body struct {
		Products []apiProduct `json:"products"`
	} `json:"body"`
	Products []apiProduct `json:"products"`
}

func (c *RapidAPIClient) search(
	ctx context.Context,
	marketplaceURL string,
	status domain.ListingStatus,
) ([]domain.Listing, error) {
	body, err := c.get(ctx, "/search_get.php", marketplaceURL)
	if err != nil {
		return nil, err
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: parsing search response: %v", ErrUpstream, err)
	}

	products := resp.Body.Products
	if len(products) == 0 {
		products = resp.Products
	}

	listings := make([]domain.Listing, 0, len(products))
	for _, p := range products {
		listing := normalizeProduct(p, status)
		if listing.Price > 0 {
			listings = append(listings, listing)
		}
	}
	return listings, nil
}

type productResponse struct {
	Body      map[string]json.RawMessage `json:"body"`
	Condition string                     `json:"condition"`
}

// ScrapeCondition implements Client.ScrapeCondition by fetching the
// listing's product page through the proxy.
func (c *RapidAPIClient) ScrapeCondition(
	ctx context.Context,
	listingURL string,
) (*domain.ConditionInfo, error) {
	if listingURL == "" {
		return nil, nil
	}

	body, err := c.get(ctx, "/product_get.php", listingURL)
	if err != nil {
		return nil, err
	}

	var resp productResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: parsing product response: %v", ErrUpstream, err)
	}

	conditionText := resp.Condition
	if raw, ok := resp.Body["condition"]; ok {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			conditionText = s
		}
	}
	return conditionFromText(conditionText), nil
}

// get performs one proxied request and returns the raw body.
func (c *RapidAPIClient) get(ctx context.Context, path, targetURL string) ([]byte, error) {
	if !c.configured() {
		return nil, ErrNotConfigured
	}

	if c.rateLimiter != nil {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			if errors.Is(err, ErrDailyLimitReached) {
				metrics.MarketplaceDailyLimitHits.Inc()
			}
			return nil, fmt.Errorf("rate limit: %w", err)
		}
		metrics.MarketplaceAPICallsTotal.Inc()
		metrics.MarketplaceDailyUsage.Set(float64(c.rateLimiter.DailyCount()))
	}

	u := fmt.Sprintf("%s%s?%s", c.baseURL, path,
		url.Values{"url": {targetURL}}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating HTTP request: %w", err)
	}
	req.Header.Set("x-rapidapi-key", c.apiKey)
	req.Header.Set("x-rapidapi-host", defaultAPIHost)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response body: %v", ErrUpstream, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, string(body))
	}
	return body, nil
}

// buildSearchURL assembles a www.ebay.com search URL for the proxy.
func buildSearchURL(query string, extra url.Values) string {
	params := url.Values{"_nkw": {query}}
	for k, vs := range extra {
		for _, v := range vs {
			params.Add(k, v)
		}
	}
	return "https://www.ebay.com/sch/i.html?" + params.Encode()
}
