package ports

import (
	"context"
	"io"
	"time"

	"BookMentions/internal/domain"
)

// ObjectInfo describes one stored object.
type ObjectInfo struct {
	Key          string
	ETag         string
	LastModified time.Time
}

// ObjectStore is the bucket every stage reads from and writes to.
type ObjectStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Stat(ctx context.Context, key string) (ObjectInfo, error)
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	DeletePrefix(ctx context.Context, prefix string) error
}

// Queue is a durable work queue drained by the counting stage.
type Queue interface {
	Name() string
	Depth(ctx context.Context) (int, error)
	Receive(ctx context.Context, max int) ([]domain.QueueMessage, error)
	Delete(ctx context.Context, msg domain.QueueMessage) error
	// Release makes a received message visible again without deleting it.
	Release(ctx context.Context, msg domain.QueueMessage) error
}

// Topic fans published entries out to its subscribed queue.
type Topic interface {
	Name() string
	PublishBatch(ctx context.Context, entries []domain.PublishEntry) (failed int, err error)
}

// QueryEngine runs SQL statements asynchronously against archive data.
type QueryEngine interface {
	Start(ctx context.Context, statement, outputLocation string) (string, error)
	Status(ctx context.Context, executionID string) (domain.StatementStatus, error)
}

// StatementSet builds the SQL of one extraction run.
type StatementSet interface {
	Drop() string
	Create(crawl, location string) (string, error)
	Unload(location string) (string, error)
}

// ArchiveIndex resolves the crawl to extract from.
type ArchiveIndex interface {
	LatestCrawl(ctx context.Context) (string, error)
}

// MetadataClient enriches ISBNs with book metadata.
type MetadataClient interface {
	LookupBatch(ctx context.Context, isbns []string) ([]domain.RawBook, error)
}

// MentionCounter asks the external mention API for a query's recent total.
type MentionCounter interface {
	Count(ctx context.Context, requestURL string) (domain.MentionCount, error)
}

// Notifier delivers operational alerts.
type Notifier interface {
	Alert(ctx context.Context, subject, body string) error
}

// RunLedger persists an audit record for each invocation.
type RunLedger interface {
	SaveRun(ctx context.Context, run domain.RunRecord) error
	RecentRuns(ctx context.Context, limit int) ([]domain.RunRecord, error)
}

// EditionSource returns the curated earliest-edition list.
type EditionSource interface {
	FetchEditions(ctx context.Context) ([]domain.EarliestEdition, error)
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
