package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"BookMentions/internal/dataset"
	"BookMentions/internal/domain"
	"BookMentions/internal/metrics"
	"BookMentions/internal/ports"
	"BookMentions/internal/querybuilder"
)

// DateStamp names the artifacts of one extraction run.
const DateStamp = "20060102150405"

// ExtractOutcome tells whether an extraction used fresh archive data.
type ExtractOutcome int

const (
	ExtractFresh ExtractOutcome = iota
	// ExtractFallback reused the last stored book snapshot after an upstream failure.
	ExtractFallback
)

func (o ExtractOutcome) String() string {
	if o == ExtractFallback {
		return "fallback"
	}
	return "fresh"
}

// ExtractReport summarizes one extraction.
type ExtractReport struct {
	Outcome   ExtractOutcome
	Crawl     string
	ISBNs     int
	Books     int
	Batches   int
	Dropped   int
	Transform querybuilder.TransformStats
	Publish   PublishReport
}

// Fill copies the report into a run record.
func (r ExtractReport) Fill(run *domain.RunRecord) {
	run.State = r.Outcome.String()
	run.Published = r.Publish.Published
	run.PublishFailures = r.Publish.Failed
	run.Dropped = r.Dropped
}

// ExtractorDeps wires the extraction stage.
type ExtractorDeps struct {
	Index      ports.ArchiveIndex
	Engine     ports.QueryEngine
	Statements func(datestr string) ports.StatementSet
	Metadata   ports.MetadataClient
	Store      *dataset.Store
	Layout     dataset.Layout

	// Bucket is the object-store bucket the query engine writes into.
	Bucket string

	Batcher      querybuilder.Batcher
	Publisher    *Publisher
	ChunkSize    int
	PollInterval time.Duration
	PollTimeout  time.Duration
	Metrics      *metrics.Metrics
	Logger       *slog.Logger
	Now          func() time.Time
}

// Extractor pulls book identifiers out of the web archive, enriches them,
// and publishes batched bookset queries.
type Extractor struct {
	deps ExtractorDeps
	log  *slog.Logger
}

// NewExtractor fills defaults for unset deps.
func NewExtractor(deps ExtractorDeps) *Extractor {
	if deps.ChunkSize <= 0 {
		deps.ChunkSize = 1000
	}
	if deps.PollInterval <= 0 {
		deps.PollInterval = 2 * time.Second
	}
	if deps.PollTimeout <= 0 {
		deps.PollTimeout = 30 * time.Minute
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Batcher.Endpoint == "" {
		deps.Batcher = querybuilder.NewBatcher()
	}
	return &Extractor{deps: deps, log: orDiscard(deps.Logger)}
}

type isbnRow struct {
	ISBN string `json:"isbn"`
}

// Extract runs one extraction. Upstream HTTP failures fall back to the stored
// raw books; statement and storage failures are returned.
func (e *Extractor) Extract(ctx context.Context) (ExtractReport, error) {
	var report ExtractReport
	datestr := e.deps.Now().UTC().Format(DateStamp)

	raw, err := e.fresh(ctx, datestr, &report)
	switch {
	case err == nil:
		report.Outcome = ExtractFresh
	case errors.Is(err, domain.ErrUpstream):
		e.log.Warn("archive extraction failed, using stored books", "error", err)
		report.Outcome = ExtractFallback
		raw, err = dataset.Read[domain.RawBook](ctx, e.deps.Store, e.deps.Layout.RawBooks())
		if err != nil {
			return report, fmt.Errorf("read stored books: %w", err)
		}
		if len(raw) == 0 {
			return report, fmt.Errorf("fallback: %w: %s", domain.ErrNoSnapshot, e.deps.Layout.RawBooks())
		}
	default:
		return report, err
	}

	transformed, stats := querybuilder.Transform(raw)
	report.Transform = stats
	e.log.Info("transformed books", "input", stats.Input, "kept", len(transformed),
		"too_few_words", stats.TooFewWords, "author_only", stats.AuthorOnly)
	if err := dataset.Append(ctx, e.deps.Store, e.deps.Layout.TransformedBooks(), transformed); err != nil {
		return report, fmt.Errorf("store transformed books: %w", err)
	}

	books, err := dataset.Read[domain.BookRecord](ctx, e.deps.Store, e.deps.Layout.TransformedBooks())
	if err != nil {
		return report, fmt.Errorf("read transformed books: %w", err)
	}
	books = querybuilder.DedupeByQuery(books)
	report.Books = len(books)

	fragments := make([]string, 0, len(books))
	for _, b := range books {
		fragments = append(fragments, b.Query)
	}
	batches := e.deps.Batcher.Build(fragments)
	report.Batches = len(batches.URLs)
	report.Dropped = len(batches.Dropped)
	e.deps.Metrics.Dropped(report.Dropped)
	if report.Dropped > 0 {
		e.log.Warn("queries over the length limit dropped", "count", report.Dropped)
	}

	report.Publish, err = e.deps.Publisher.Publish(ctx, batches.URLs)
	if err != nil {
		return report, fmt.Errorf("publish booksets: %w", err)
	}

	// A new cycle starts: clear what the counting stage keys its state on.
	for _, prefix := range []string{e.deps.Layout.TopCounts().MostRecent, e.deps.Layout.Counts(string(domain.StageBook)).MostRecent} {
		if err := e.deps.Store.Delete(ctx, prefix); err != nil {
			return report, fmt.Errorf("reset cycle: %w", err)
		}
	}

	e.log.Info("extraction done", "outcome", report.Outcome, "books", report.Books,
		"batches", report.Batches, "published", report.Publish.Published)
	return report, nil
}

func (e *Extractor) fresh(ctx context.Context, datestr string, report *ExtractReport) ([]domain.RawBook, error) {
	crawl, err := e.deps.Index.LatestCrawl(ctx)
	if err != nil {
		return nil, fmt.Errorf("latest crawl: %w", err)
	}
	report.Crawl = crawl
	layout := e.deps.Layout

	stmts := e.deps.Statements(datestr)
	create, err := stmts.Create(crawl, e.location(layout.ArchiveOutput("parquet", crawl, datestr)))
	if err != nil {
		return nil, err
	}
	unload, err := stmts.Unload(e.location(layout.ArchiveOutput("json", crawl, datestr)))
	if err != nil {
		return nil, err
	}

	for _, st := range []struct{ kind, sql string }{
		{"drop", stmts.Drop()},
		{"create", create},
		{"unload", unload},
	} {
		e.log.Info("running statement", "kind", st.kind, "crawl", crawl)
		if err := e.execute(ctx, st.sql, e.location(layout.ArchiveOutput(st.kind, crawl, datestr))); err != nil {
			return nil, fmt.Errorf("%s statement: %w", st.kind, err)
		}
	}

	rows, err := dataset.Read[isbnRow](ctx, e.deps.Store, layout.ArchiveOutput("json", crawl, datestr))
	if err != nil {
		return nil, fmt.Errorf("read unloaded isbns: %w", err)
	}
	isbns := uniqueISBNs(rows)
	report.ISBNs = len(isbns)

	var raw []domain.RawBook
	for start := 0; start < len(isbns); start += e.deps.ChunkSize {
		end := min(start+e.deps.ChunkSize, len(isbns))
		books, err := e.deps.Metadata.LookupBatch(ctx, isbns[start:end])
		if err != nil {
			return nil, fmt.Errorf("lookup isbns %d-%d: %w", start, end, err)
		}
		raw = append(raw, books...)
	}
	if err := dataset.Append(ctx, e.deps.Store, layout.RawBooks(), raw); err != nil {
		return nil, fmt.Errorf("store raw books: %w", err)
	}
	return raw, nil
}

// execute starts a statement and polls it until it ends or PollTimeout passes.
func (e *Extractor) execute(ctx context.Context, statement, output string) error {
	id, err := e.deps.Engine.Start(ctx, statement, output)
	if err != nil {
		return fmt.Errorf("start: %w", err)
	}

	deadline := time.NewTimer(e.deps.PollTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(e.deps.PollInterval)
	defer ticker.Stop()

	for {
		st, err := e.deps.Engine.Status(ctx, id)
		if err != nil {
			return fmt.Errorf("status %s: %w", id, err)
		}
		switch st.State {
		case domain.StatementSucceeded:
			return nil
		case domain.StatementFailed, domain.StatementCancelled:
			return fmt.Errorf("%w: %s %s: %s", domain.ErrStatementFailed, id, st.State, st.Reason)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("%w: %s still %s after %s", domain.ErrStatementTimeout, id, st.State, e.deps.PollTimeout)
		case <-ticker.C:
		}
	}
}

func (e *Extractor) location(key string) string {
	return "s3://" + e.deps.Bucket + "/" + key + "/"
}

func uniqueISBNs(rows []isbnRow) []string {
	seen := make(map[string]struct{}, len(rows))
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		if r.ISBN == "" {
			continue
		}
		if _, ok := seen[r.ISBN]; ok {
			continue
		}
		seen[r.ISBN] = struct{}{}
		out = append(out, r.ISBN)
	}
	return out
}
