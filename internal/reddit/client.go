// Package reddit reads a subreddit JSON listing.
package reddit

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/lepinkainen/subreddit-ingest/pkg/api"
)

// ClientConfig configures the listing client
type ClientConfig struct {
	URL         string        // Listing endpoint, e.g. https://www.reddit.com/r/wordpress.json
	UserAgent   string        // Reddit throttles generic user agents
	Timeout     time.Duration // Per-request timeout
	MinInterval time.Duration // Minimum delay between requests
	HTTPClient  *http.Client  // Optional, e.g. an OAuth client
}

// Client fetches a single listing endpoint
type Client struct {
	client  *api.Client
	feedURL string
}

// NewClient creates a listing client
func NewClient(cfg ClientConfig) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	var limiter api.RateLimiter = api.NewNoOpRateLimiter()
	if cfg.MinInterval > 0 {
		limiter = api.NewIntervalRateLimiter(cfg.MinInterval)
	}

	return &Client{
		client: api.NewClient(&api.ClientConfig{
			BaseClient:     httpClient,
			RateLimiter:    limiter,
			UserAgent:      cfg.UserAgent,
			DefaultHeaders: map[string]string{"Accept": "application/json"},
		}),
		feedURL: cfg.URL,
	}
}

// ListingURL returns the request URL, adding before=<cursor> when the cursor is set
func (c *Client) ListingURL(before string) (string, error) {
	u, err := url.Parse(c.feedURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse listing URL: %w", err)
	}
	if before == "" {
		return u.String(), nil
	}

	query := u.Query()
	query.Set("before", before)
	u.RawQuery = query.Encode()
	return u.String(), nil
}

// FetchListing fetches and decodes the listing. Malformed bodies return a *JSONError.
func (c *Client) FetchListing(ctx context.Context, before string) (*Listing, error) {
	requestURL, err := c.ListingURL(before)
	if err != nil {
		return nil, err
	}

	body, err := c.client.Get(ctx, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch listing: %w", err)
	}

	listing, err := DecodeListing(body)
	if err != nil {
		return nil, err
	}

	slog.Debug("Fetched listing", "url", requestURL, "count", len(listing.Data.Children), "before", before)
	return listing, nil
}
