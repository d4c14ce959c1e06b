package sitemap

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client fetches the site snapshot from a JSON endpoint.
type Client struct {
	url        string
	httpClient *http.Client
}

// NewClient creates a Client for the given snapshot endpoint.
// If httpClient is nil a client with a 30 second timeout is used.
func NewClient(url string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{url: url, httpClient: httpClient}
}

// Pages fetches and decodes the snapshot.
func (c *Client) Pages(ctx context.Context) ([]Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("sitemap: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sitemap: fetch %s: %w", c.url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sitemap: fetch %s: unexpected status %d", c.url, resp.StatusCode)
	}

	var pages []Page
	if err := json.NewDecoder(resp.Body).Decode(&pages); err != nil {
		return nil, fmt.Errorf("sitemap: decode snapshot: %w", err)
	}
	return pages, nil
}
