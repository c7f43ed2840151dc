// Package client provides an HTTP client for querying the collector.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sashwatreded/integrity-check/pkg/collector/store"
)

// DefaultTimeout bounds a single collector request.
const DefaultTimeout = 10 * time.Second

// Client queries a collector over HTTP.
type Client struct {
	endpoint string
	http     *http.Client
}

// New builds a client for the collector at endpoint, e.g.
// "http://127.0.0.1:8440".
func New(endpoint string) *Client {
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		http:     &http.Client{Timeout: DefaultTimeout},
	}
}

// Query holds optional filters for listing events.
type Query struct {
	Root  string
	Type  string
	Limit int
}

type listResponse struct {
	Count  int                 `json:"count"`
	Events []store.StoredEvent `json:"events"`
}

// ListEvents fetches stored events from the collector, newest first.
func (c *Client) ListEvents(ctx context.Context, q Query) ([]store.StoredEvent, error) {
	params := url.Values{}
	if q.Root != "" {
		params.Set("root", q.Root)
	}
	if q.Type != "" {
		params.Set("type", q.Type)
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}

	u := c.endpoint + "/api/v1/events"
	if enc := params.Encode(); enc != "" {
		u += "?" + enc
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("client: build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("client: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("client: collector returned %s: %s",
			resp.Status, strings.TrimSpace(string(body)))
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return nil, fmt.Errorf("client: decode response: %w", err)
	}
	return lr.Events, nil
}

// Health reports whether the collector answers its health endpoint.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/healthz", nil)
	if err != nil {
		return fmt.Errorf("client: build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("client: request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("client: collector returned %s", resp.Status)
	}
	return nil
}
