// Package api provides the rate-limited HTTP client used to read remote listings.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// DefaultMaxBodyBytes caps how much of a response body is read
const DefaultMaxBodyBytes = 8 << 20

// ErrBodyTooLarge is returned when a response body is longer than the configured limit
var ErrBodyTooLarge = errors.New("response body exceeds limit")

// ClientConfig configures the HTTP client
type ClientConfig struct {
	BaseClient     *http.Client
	RateLimiter    RateLimiter
	UserAgent      string
	DefaultHeaders map[string]string
	MaxBodyBytes   int64
}

// Client provides HTTP GETs with rate limiting and standard headers. It never retries.
type Client struct {
	client         *http.Client
	rateLimiter    RateLimiter
	userAgent      string
	defaultHeaders map[string]string
	maxBodyBytes   int64
}

// NewClient creates a new HTTP client with the provided configuration
func NewClient(config *ClientConfig) *Client {
	if config == nil {
		config = &ClientConfig{}
	}
	if config.BaseClient == nil {
		config.BaseClient = &http.Client{Timeout: 30 * time.Second}
	}
	if config.RateLimiter == nil {
		config.RateLimiter = NewNoOpRateLimiter()
	}
	if config.UserAgent == "" {
		config.UserAgent = "subreddit-ingest/1.0"
	}
	if config.DefaultHeaders == nil {
		config.DefaultHeaders = make(map[string]string)
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = DefaultMaxBodyBytes
	}

	return &Client{
		client:         config.BaseClient,
		rateLimiter:    config.RateLimiter,
		userAgent:      config.UserAgent,
		defaultHeaders: config.DefaultHeaders,
		maxBodyBytes:   config.MaxBodyBytes,
	}
}

// Get performs a single HTTP GET and returns the raw response body.
// Non-200 responses are returned as *HTTPError.
func (c *Client) Get(ctx context.Context, url string, additionalHeaders map[string]string) ([]byte, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	for key, value := range c.defaultHeaders {
		req.Header.Set(key, value)
	}
	// additional headers override defaults
	for key, value := range additionalHeaders {
		req.Header.Set(key, value)
	}

	start := time.Now()
	res, err := c.client.Do(req)
	duration := time.Since(start)
	if err != nil {
		c.logAPICall(url, duration, err)
		return nil, fmt.Errorf("failed to perform GET request: %w", err)
	}
	defer func() {
		if closeErr := res.Body.Close(); closeErr != nil {
			slog.Error("Failed to close response body", "error", closeErr)
		}
	}()

	if err := EnsureStatusOK(res); err != nil {
		c.logAPICall(url, duration, err)
		return nil, err
	}

	// one extra byte tells an oversized body apart from one that fits exactly
	body, err := io.ReadAll(io.LimitReader(res.Body, c.maxBodyBytes+1))
	if err != nil {
		c.logAPICall(url, duration, err)
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(body)) > c.maxBodyBytes {
		err := fmt.Errorf("%w: more than %d bytes", ErrBodyTooLarge, c.maxBodyBytes)
		c.logAPICall(url, duration, err)
		return nil, err
	}

	c.logAPICall(url, duration, nil)
	return body, nil
}

func (c *Client) logAPICall(url string, duration time.Duration, err error) {
	if err != nil {
		slog.Warn("API call failed", "url", url, "duration", duration, "error", err)
		return
	}
	slog.Debug("API call completed", "url", url, "duration", duration)
}
