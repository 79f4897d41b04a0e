// Package commoncrawl discovers web-archive crawls and builds the statements
// that pull book product URLs out of the archive's columnar index.
package commoncrawl

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"BookMentions/internal/domain"
	"BookMentions/internal/metrics"
	"BookMentions/internal/ports"
)

// DefaultCollInfo lists crawls newest first.
const DefaultCollInfo = "https://index.commoncrawl.org/collinfo.json"

// Index reads the crawl collection list.
type Index struct {
	url     string
	http    *http.Client
	metrics *metrics.Metrics
}

var _ ports.ArchiveIndex = (*Index)(nil)

// NewIndex creates an index client for collInfoURL.
func NewIndex(collInfoURL string, m *metrics.Metrics) *Index {
	if collInfoURL == "" {
		collInfoURL = DefaultCollInfo
	}
	return &Index{url: collInfoURL, http: &http.Client{Timeout: 30 * time.Second}, metrics: m}
}

// LatestCrawl returns the id of the newest crawl.
func (i *Index) LatestCrawl(ctx context.Context) (string, error) {
	id, err := i.latest(ctx)
	i.metrics.APICall("collinfo", err)
	return id, err
}

func (i *Index) latest(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, i.url, nil)
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	resp, err := i.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: collinfo: %v", domain.ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: collinfo status %s", domain.ErrUpstream, resp.Status)
	}

	var crawls []struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&crawls); err != nil {
		return "", fmt.Errorf("%w: decode collinfo: %v", domain.ErrUpstream, err)
	}
	if len(crawls) == 0 || crawls[0].ID == "" {
		return "", fmt.Errorf("%w: collinfo lists no crawls", domain.ErrUpstream)
	}
	return crawls[0].ID, nil
}
