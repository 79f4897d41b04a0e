package usecase

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"BookMentions/internal/dataset"
	"BookMentions/internal/domain"
	"BookMentions/internal/infrastructure/commoncrawl"
	"BookMentions/internal/infrastructure/objectstore"
	"BookMentions/internal/ports"
)

const (
	testCrawl   = "CC-MAIN-2024-18"
	testDatestr = "20240501100000"
)

var testNow = func() time.Time { return time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC) }

type extractFixture struct {
	store    *dataset.Store
	layout   dataset.Layout
	engine   *fakeEngine
	metadata *fakeMetadata
	topic    *memTopic
	deps     ExtractorDeps
}

func newExtractFixture(t *testing.T) *extractFixture {
	t.Helper()

	f := &extractFixture{
		store:  dataset.NewStore(objectstore.NewMemoryStore()),
		layout: dataset.NewLayout("", ""),
		engine: &fakeEngine{pollsBeforeDone: 1},
		metadata: &fakeMetadata{books: map[string]domain.RawBook{
			"0142437247": rawBook("0142437247", "Moby Dick", "1851", 720, "Herman Melville"),
			"1400079985": rawBook("1400079985", "War and Peace", "2008-10-14", 1296, "Leo Tolstoy"),
			"0000000001": rawBook("0000000001", "Untitled", "2001", 10),
		}},
		topic: &memTopic{name: "preparedbatch"},
	}
	f.deps = ExtractorDeps{
		Index:        fakeIndex{crawl: testCrawl},
		Engine:       f.engine,
		Statements:   func(d string) ports.StatementSet { return commoncrawl.NewStatements("ccindex", "ccindex.ccindex", d) },
		Metadata:     f.metadata,
		Store:        f.store,
		Layout:       f.layout,
		Bucket:       "bookmentions",
		Publisher:    NewPublisher(f.topic, nil, nil),
		ChunkSize:    2,
		PollInterval: time.Millisecond,
		PollTimeout:  time.Second,
		Now:          testNow,
	}
	return f
}

// unloadISBNs writes what the unload statement would leave in the bucket.
func (f *extractFixture) unloadISBNs(t *testing.T, isbns ...string) {
	t.Helper()

	var lines bytes.Buffer
	for _, isbn := range isbns {
		fmt.Fprintf(&lines, "{\"isbn\":%q}\n", isbn)
	}
	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	_, err := zw.Write(lines.Bytes())
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	key := f.layout.ArchiveOutput("json", testCrawl, testDatestr) + "/20240501_000000_00001.gz"
	require.NoError(t, f.store.Objects().Put(context.Background(), key, gz.Bytes(), "application/gzip"))
}

func TestExtractFresh(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newExtractFixture(t)
	f.unloadISBNs(t, "0142437247", "1400079985", "0142437247", "0000000001")
	require.NoError(t, dataset.Put(ctx, f.store, f.layout.TopCounts().MostRecent+"/part.json", []domain.CountResult{{RequestURL: "x"}}))

	report, err := NewExtractor(f.deps).Extract(ctx)
	require.NoError(t, err)

	assert.Equal(t, ExtractFresh, report.Outcome)
	assert.Equal(t, testCrawl, report.Crawl)
	assert.Equal(t, 3, report.ISBNs)
	assert.Equal(t, 2, report.Books)
	assert.Equal(t, 1, report.Transform.NoAuthors)

	require.Len(t, f.engine.statements, 3)
	assert.True(t, strings.HasPrefix(f.engine.statements[0], "DROP TABLE IF EXISTS ccindex.books_"+testDatestr))
	assert.True(t, strings.HasPrefix(f.engine.statements[1], "CREATE TABLE"))
	assert.True(t, strings.HasPrefix(f.engine.statements[2], "UNLOAD"))
	assert.Equal(t, "s3://bookmentions/data/extracted/warc/drop/"+testCrawl+"/"+testDatestr+"/", f.engine.outputs[0])
	assert.Len(t, f.metadata.calls, 2, "isbns looked up in chunks")

	raw, err := dataset.Read[domain.RawBook](ctx, f.store, f.layout.RawBooks())
	require.NoError(t, err)
	assert.Len(t, raw, 3)

	require.Len(t, f.topic.calls, 1)
	assert.Equal(t, []string{
		endpoint + "(dick%20herman%20melville%20moby)%20OR%20(and%20leo%20peace%20tolstoy%20war)",
	}, f.topic.messages())
	assert.Equal(t, 1, report.Publish.Published)

	exists, err := f.store.Exists(ctx, f.layout.TopCounts().MostRecent)
	require.NoError(t, err)
	assert.False(t, exists, "cycle reset clears staged top counts")
}

func TestExtractFallsBackOnUpstreamFailure(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newExtractFixture(t)
	f.deps.Index = fakeIndex{err: fmt.Errorf("%w: collinfo status 503", domain.ErrUpstream)}
	require.NoError(t, dataset.Append(ctx, f.store, f.layout.RawBooks(), []domain.RawBook{
		rawBook("0142437247", "Moby Dick", "1851", 720, "Herman Melville"),
	}))

	report, err := NewExtractor(f.deps).Extract(ctx)
	require.NoError(t, err)

	assert.Equal(t, ExtractFallback, report.Outcome)
	assert.Empty(t, f.engine.statements)
	assert.Equal(t, []string{endpoint + "(dick%20herman%20melville%20moby)"}, f.topic.messages())
}

func TestExtractFallbackWithoutSnapshot(t *testing.T) {
	t.Parallel()

	f := newExtractFixture(t)
	f.deps.Index = fakeIndex{err: domain.ErrUpstream}

	_, err := NewExtractor(f.deps).Extract(context.Background())
	require.ErrorIs(t, err, domain.ErrNoSnapshot)
	assert.Empty(t, f.topic.calls)
}

func TestExtractStatementFailureIsFatal(t *testing.T) {
	t.Parallel()

	f := newExtractFixture(t)
	f.engine.final = domain.StatementFailed
	require.NoError(t, dataset.Append(context.Background(), f.store, f.layout.RawBooks(), []domain.RawBook{
		rawBook("0142437247", "Moby Dick", "1851", 720, "Herman Melville"),
	}))

	_, err := NewExtractor(f.deps).Extract(context.Background())
	require.ErrorIs(t, err, domain.ErrStatementFailed)
	assert.Len(t, f.engine.statements, 1)
	assert.Empty(t, f.topic.calls, "no fallback after a statement failure")
}

func TestExtractStatementTimeout(t *testing.T) {
	t.Parallel()

	f := newExtractFixture(t)
	f.engine.pollsBeforeDone = -1
	f.deps.PollTimeout = 20 * time.Millisecond

	_, err := NewExtractor(f.deps).Extract(context.Background())
	require.ErrorIs(t, err, domain.ErrStatementTimeout)
}

func TestExtractOutcomeFillsRun(t *testing.T) {
	t.Parallel()

	run := domain.NewRunRecord("extract", testNow())
	ExtractReport{Outcome: ExtractFallback, Dropped: 2, Publish: PublishReport{Published: 5, Failed: 1}}.Fill(&run)
	assert.Equal(t, "fallback", run.State)
	assert.Equal(t, 5, run.Published)
	assert.Equal(t, 1, run.PublishFailures)
	assert.Equal(t, 2, run.Dropped)
}
