// Package twitter asks the recent-counts endpoint how often a query was
// mentioned over the last seven days.
package twitter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"BookMentions/internal/domain"
	"BookMentions/internal/metrics"
	"BookMentions/internal/ports"
)

const tooManyRequests = "Too Many Requests"

// ErrUnexpectedResponse is returned for bodies carrying neither counts nor an
// error title.
var ErrUnexpectedResponse = errors.New("unexpected counts response")

// Counter calls the counts endpoint with a bearer token.
type Counter struct {
	bearer  string
	http    *http.Client
	metrics *metrics.Metrics
}

var _ ports.MentionCounter = (*Counter)(nil)

// NewCounter creates a counter.
func NewCounter(bearer string, m *metrics.Metrics) *Counter {
	return &Counter{
		bearer:  bearer,
		http:    &http.Client{Timeout: 30 * time.Second},
		metrics: m,
	}
}

type countsResponse struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Data   []struct {
		Start time.Time `json:"start"`
		End   time.Time `json:"end"`
	} `json:"data"`
	Meta *struct {
		TotalTweetCount int64 `json:"total_tweet_count"`
	} `json:"meta"`
}

// Count requests the total for requestURL. Rate limiting and rejections are
// outcomes, not errors; errors mean the request could not be made or read.
func (c *Counter) Count(ctx context.Context, requestURL string) (domain.MentionCount, error) {
	res, err := c.get(ctx, requestURL)
	c.metrics.APICall("counts", err)
	return res, err
}

func (c *Counter) get(ctx context.Context, requestURL string) (domain.MentionCount, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return domain.MentionCount{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.bearer)

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.MentionCount{}, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return domain.MentionCount{Outcome: domain.MentionRateLimited, Reason: tooManyRequests}, nil
	}

	var body countsResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&body)
	if resp.StatusCode != http.StatusOK {
		return rejected(resp.Status, body), nil
	}
	if decodeErr != nil {
		return domain.MentionCount{}, fmt.Errorf("decode response (%s): %w", resp.Status, decodeErr)
	}

	switch {
	case body.Title == tooManyRequests:
		return domain.MentionCount{Outcome: domain.MentionRateLimited, Reason: body.Title}, nil
	case body.Title != "":
		return rejected(resp.Status, body), nil
	case body.Meta != nil:
		out := domain.MentionCount{Outcome: domain.MentionCounted, Total: body.Meta.TotalTweetCount}
		if len(body.Data) > 0 {
			out.Start = body.Data[0].Start
			out.End = body.Data[len(body.Data)-1].End
		}
		return out, nil
	default:
		return domain.MentionCount{}, fmt.Errorf("%w: status %s", ErrUnexpectedResponse, resp.Status)
	}
}

// rejected is a permanent failure for the query: any non-429 error status,
// with or without a readable body.
func rejected(status string, body countsResponse) domain.MentionCount {
	reason := body.Title
	if reason == "" {
		reason = status
	}
	if body.Detail != "" {
		reason += ": " + body.Detail
	}
	return domain.MentionCount{Outcome: domain.MentionRejected, Reason: reason}
}
