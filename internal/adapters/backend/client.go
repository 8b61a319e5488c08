// Package backend talks to the telemetry/cluster data source.
package backend

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPDoer is the subset of http.Client the Client needs.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Client issues GET requests against a base URL.
type Client struct {
	baseURL string
	doer    HTTPDoer
}

// NewClient builds a client. A nil doer uses NewDefaultHTTPClient.
func NewClient(baseURL string, doer HTTPDoer) *Client {
	if doer == nil {
		doer = NewDefaultHTTPClient(0)
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		doer:    doer,
	}
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) buildURL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}

// Get fetches path and returns the status code and body.
func (c *Client) Get(ctx context.Context, path string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.buildURL(path), nil)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.doer.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, body, nil
}

// NewDefaultHTTPClient returns an *http.Client with the given timeout.
func NewDefaultHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}
