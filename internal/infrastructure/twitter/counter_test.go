package twitter

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"BookMentions/internal/domain"
)

func serve(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCountOutcomes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		body    string
		outcome domain.MentionOutcome
		total   int64
		reason  string
	}{
		{
			name:    "counted",
			status:  http.StatusOK,
			body:    `{"data":[{"start":"2024-03-01T00:00:00Z","end":"2024-03-02T00:00:00Z","tweet_count":4},{"start":"2024-03-02T00:00:00Z","end":"2024-03-03T00:00:00Z","tweet_count":6}],"meta":{"total_tweet_count":10}}`,
			outcome: domain.MentionCounted,
			total:   10,
		},
		{
			name:    "rate limited by title",
			status:  http.StatusOK,
			body:    `{"title":"Too Many Requests","status":429}`,
			outcome: domain.MentionRateLimited,
			reason:  "Too Many Requests",
		},
		{
			name:    "rate limited by status",
			status:  http.StatusTooManyRequests,
			body:    `not json`,
			outcome: domain.MentionRateLimited,
			reason:  "Too Many Requests",
		},
		{
			name:    "rejected",
			status:  http.StatusBadRequest,
			body:    `{"title":"Invalid Request","detail":"query too long"}`,
			outcome: domain.MentionRejected,
			reason:  "Invalid Request: query too long",
		},
		{
			name:    "error page",
			status:  http.StatusServiceUnavailable,
			body:    `<html>upstream down</html>`,
			outcome: domain.MentionRejected,
			reason:  "503 Service Unavailable",
		},
		{
			name:    "error without title",
			status:  http.StatusBadRequest,
			body:    `{"errors":[{"message":"bad query"}]}`,
			outcome: domain.MentionRejected,
			reason:  "400 Bad Request",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := serve(t, tt.status, tt.body)
			got, err := NewCounter("tok", nil).Count(context.Background(), srv.URL+"/2/tweets/counts/recent?query=(a%20b)")
			require.NoError(t, err)
			assert.Equal(t, tt.outcome, got.Outcome)
			assert.Equal(t, tt.total, got.Total)
			assert.Equal(t, tt.reason, got.Reason)
		})
	}
}

func TestCountWindow(t *testing.T) {
	t.Parallel()

	srv := serve(t, http.StatusOK, `{"data":[{"start":"2024-03-01T00:00:00Z","end":"2024-03-02T00:00:00Z"},{"start":"2024-03-02T00:00:00Z","end":"2024-03-08T00:00:00Z"}],"meta":{"total_tweet_count":3}}`)
	got, err := NewCounter("tok", nil).Count(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), got.Start.UTC())
	assert.Equal(t, time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC), got.End.UTC())
}

func TestCountUnexpectedBody(t *testing.T) {
	t.Parallel()

	srv := serve(t, http.StatusOK, `{}`)
	_, err := NewCounter("tok", nil).Count(context.Background(), srv.URL)
	require.ErrorIs(t, err, ErrUnexpectedResponse)
}
