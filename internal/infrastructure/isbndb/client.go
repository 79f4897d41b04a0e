package isbndb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"BookMentions/internal/domain"
	"BookMentions/internal/metrics"
	"BookMentions/internal/ports"
)

// DefaultEndpoint is the bulk book lookup endpoint.
const DefaultEndpoint = "https://api2.isbndb.com/books"

// Client looks up book metadata for batches of ISBNs.
type Client struct {
	endpoint string
	token    string
	http     *http.Client
	metrics  *metrics.Metrics
}

var _ ports.MetadataClient = (*Client)(nil)

// NewClient creates a reusable HTTP client.
func NewClient(endpoint, token string, m *metrics.Metrics) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{
		endpoint: endpoint,
		token:    token,
		http:     &http.Client{Timeout: 60 * time.Second},
		metrics:  m,
	}
}

// LookupBatch posts one comma-joined batch and returns the books found.
// Failures wrap domain.ErrUpstream so callers can fall back to older data.
func (c *Client) LookupBatch(ctx context.Context, isbns []string) ([]domain.RawBook, error) {
	if len(isbns) == 0 {
		return nil, nil
	}
	books, err := c.post(ctx, "isbns="+strings.Join(isbns, ","))
	c.metrics.APICall("isbndb", err)
	return books, err
}

func (c *Client) post(ctx context.Context, body string) ([]domain.RawBook, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", c.token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: do request: %v", domain.ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%w: %w", domain.ErrUpstream, domain.ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: isbndb status %s", domain.ErrUpstream, resp.Status)
	}

	var payload struct {
		Data []domain.RawBook `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", domain.ErrUpstream, err)
	}
	return payload.Data, nil
}
