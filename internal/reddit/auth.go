package reddit

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// OAuthHost serves listings for OAuth-authenticated requests
const OAuthHost = "oauth.reddit.com"

// OAuthConfig holds app-only credentials for Reddit's client credentials grant
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	UserAgent    string
}

// NewOAuthHTTPClient creates an HTTP client that fetches and refreshes an app-only token
func NewOAuthHTTPClient(ctx context.Context, cfg OAuthConfig, timeout time.Duration) *http.Client {
	ccConfig := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		Scopes:       []string{"read"},
		AuthStyle:    oauth2.AuthStyleInHeader,
	}

	// Token requests go through a client that carries the configured User-Agent
	tokenClient := &http.Client{
		Timeout:   timeout,
		Transport: &userAgentTransport{userAgent: cfg.UserAgent, base: http.DefaultTransport},
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, tokenClient)

	client := ccConfig.Client(ctx)
	client.Timeout = timeout
	return client
}

// OAuthListingURL rewrites a public listing URL to the OAuth API host
func OAuthListingURL(listingURL string) (string, error) {
	u, err := url.Parse(listingURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse listing URL: %w", err)
	}
	u.Host = OAuthHost
	u.Scheme = "https"
	return u.String(), nil
}

type userAgentTransport struct {
	userAgent string
	base      http.RoundTripper
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.userAgent == "" {
		return t.base.RoundTrip(req)
	}
	clone := req.Clone(req.Context())
	clone.Header.Set("User-Agent", t.userAgent)
	return t.base.RoundTrip(clone)
}
