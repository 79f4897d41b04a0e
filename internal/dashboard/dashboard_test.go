package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"BookMentions/internal/dataset"
	"BookMentions/internal/domain"
	"BookMentions/internal/infrastructure/objectstore"
	"BookMentions/internal/metrics"
)

var ranked = []domain.RankedBook{
	{Rank: 1, ShortenedTitle: "War and Peace", Authors: "Leo Tolstoy", Year: 1869, Mentions: 80},
	{Rank: 2, ShortenedTitle: "Dune", Authors: "Frank Herbert", Year: 1965, Mentions: 60},
	{Rank: 3, ShortenedTitle: "Anna Karenina", Authors: "Leo Tolstoy", Year: 1878, Mentions: 10},
}

type fixture struct {
	store  *dataset.Store
	layout dataset.Layout
	cache  *Cache
	clock  time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store:  dataset.NewStore(objectstore.NewMemoryStore()),
		layout: dataset.NewLayout("", ""),
		clock:  time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	f.cache = NewCache(f.store, f.layout, time.Hour, nil)
	f.cache.now = func() time.Time { return f.clock }
	return f
}

func (f *fixture) publish(t *testing.T, books []domain.RankedBook, tracked int) {
	t.Helper()

	ctx := context.Background()
	require.NoError(t, dataset.Put(ctx, f.store, f.layout.ServedTop(), books))
	require.NoError(t, dataset.Put(ctx, f.store, f.layout.ServedBooks(), make([]domain.BookRecord, tracked)))
}

func (f *fixture) router(ledger *stubLedger) http.Handler {
	h := NewHandler(f.cache, nil, nil)
	if ledger != nil {
		h = NewHandler(f.cache, ledger, nil)
	}
	h.now = func() time.Time { return f.clock }
	return NewRouter(h, metrics.New().Handler(), []string{"*"}, nil)
}

type stubLedger struct {
	runs []domain.RunRecord
	err  error
}

func (l *stubLedger) SaveRun(context.Context, domain.RunRecord) error { return nil }

func (l *stubLedger) RecentRuns(_ context.Context, limit int) ([]domain.RunRecord, error) {
	if l.err != nil {
		return nil, l.err
	}
	return l.runs[:min(limit, len(l.runs))], nil
}

func get(t *testing.T, h http.Handler, path string, out any) int {
	t.Helper()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	if out != nil && rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
	}
	return rec.Code
}

func TestTopBooks(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.publish(t, ranked, 1234)
	h := f.router(nil)

	var resp topBooksResponse
	require.Equal(t, http.StatusOK, get(t, h, "/api/v1/topbooks", &resp))
	assert.Equal(t, 1234, resp.BooksTracked)
	assert.Equal(t, ranked, resp.Books)
	assert.NotEmpty(t, resp.Version)

	require.Equal(t, http.StatusOK, get(t, h, "/api/v1/topbooks?limit=1", &resp))
	assert.Len(t, resp.Books, 1)

	assert.Equal(t, http.StatusBadRequest, get(t, h, "/api/v1/topbooks?limit=zero", nil))
}

func TestTopBooksBeforeFirstPublish(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	assert.Equal(t, http.StatusNotFound, get(t, f.router(nil), "/api/v1/topbooks", nil))
}

func TestCacheReloadsOnlyOnNewVersionAfterTTL(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	f.publish(t, ranked, 3)

	first, err := f.cache.Current(ctx)
	require.NoError(t, err)

	f.publish(t, ranked[:1], 3)
	cached, err := f.cache.Current(ctx)
	require.NoError(t, err)
	assert.Same(t, first, cached, "within TTL the stored version is not rechecked")

	f.clock = f.clock.Add(2 * time.Hour)
	fresh, err := f.cache.Current(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, first.Version, fresh.Version)
	assert.Len(t, fresh.Books, 1)

	f.clock = f.clock.Add(2 * time.Hour)
	same, err := f.cache.Current(ctx)
	require.NoError(t, err)
	assert.Same(t, fresh, same, "unchanged version keeps the loaded snapshot")
}

func TestCacheServesStaleWhenSnapshotDisappears(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	f.publish(t, ranked, 3)
	first, err := f.cache.Current(ctx)
	require.NoError(t, err)

	require.NoError(t, f.store.Delete(ctx, f.layout.ServedTop()))
	f.clock = f.clock.Add(2 * time.Hour)
	stale, err := f.cache.Current(ctx)
	require.NoError(t, err)
	assert.Same(t, first, stale)
}

func TestStats(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.publish(t, ranked, 3)
	h := f.router(nil)

	var authors statsResponse
	require.Equal(t, http.StatusOK, get(t, h, "/api/v1/stats/authors", &authors))
	require.NotEmpty(t, authors.Buckets)
	assert.Equal(t, "Leo Tolstoy", authors.Buckets[0].Label)
	assert.EqualValues(t, 90, authors.Buckets[0].Mentions)

	var years statsResponse
	require.Equal(t, http.StatusOK, get(t, h, "/api/v1/stats/years", &years))
	assert.Len(t, years.Buckets, 3)
	assert.Equal(t, "1869", years.Buckets[0].Label)

	var eras statsResponse
	require.Equal(t, http.StatusOK, get(t, h, "/api/v1/stats/eras", &eras))
	require.NotEmpty(t, eras.Buckets)
	assert.Equal(t, "-10000 - 1900", eras.Buckets[0].Label)
	assert.EqualValues(t, 90, eras.Buckets[0].Mentions)
	assert.Equal(t, "2000 - 2024", eras.Buckets[len(eras.Buckets)-1].Label)
}

func TestRuns(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	started := f.clock.Add(-time.Minute)
	ledger := &stubLedger{runs: []domain.RunRecord{
		{ID: uuid.New(), Command: "count", State: "counting_books", Counted: 12, StartedAt: started, FinishedAt: f.clock},
		{ID: uuid.New(), Command: "extract", StartedAt: started},
	}}
	h := f.router(ledger)

	var runs []runResponse
	require.Equal(t, http.StatusOK, get(t, h, "/api/v1/runs?limit=5", &runs))
	require.Len(t, runs, 2)
	assert.Equal(t, 12, runs[0].Counted)
	require.NotNil(t, runs[0].FinishedAt)
	assert.Nil(t, runs[1].FinishedAt)

	ledger.err = errors.New("db down")
	assert.Equal(t, http.StatusInternalServerError, get(t, h, "/api/v1/runs", nil))

	var empty []runResponse
	require.Equal(t, http.StatusOK, get(t, f.router(nil), "/api/v1/runs", &empty))
	assert.Empty(t, empty)
}

func TestHealthAndMetrics(t *testing.T) {
	t.Parallel()

	h := newFixture(t).router(nil)
	assert.Equal(t, http.StatusOK, get(t, h, "/health", nil))
	assert.Equal(t, http.StatusOK, get(t, h, "/metrics", nil))
}
