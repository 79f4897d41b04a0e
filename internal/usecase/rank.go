package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"BookMentions/internal/dataset"
	"BookMentions/internal/domain"
	"BookMentions/internal/metrics"
	"BookMentions/internal/ports"
	"BookMentions/internal/ranking"
)

// RankerDeps wires the final ranking stage.
type RankerDeps struct {
	Store        *dataset.Store
	Layout       dataset.Layout
	Ranker       *ranking.Ranker
	BooksetQueue ports.Queue
	BookQueue    ports.Queue
	Notifier     ports.Notifier
	Metrics      *metrics.Metrics
	Logger       *slog.Logger
	Now          func() time.Time
}

// RankStage joins the staged top counts with book metadata and publishes the
// ranked list the dashboard serves.
type RankStage struct {
	deps RankerDeps
	log  *slog.Logger
}

// NewRankStage fills defaults for unset deps.
func NewRankStage(deps RankerDeps) *RankStage {
	if deps.Ranker == nil {
		deps.Ranker = ranking.NewRanker()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &RankStage{deps: deps, log: orDiscard(deps.Logger)}
}

// Run returns the number of ranked books written.
func (r *RankStage) Run(ctx context.Context) (int, error) {
	layout := r.deps.Layout
	store := r.deps.Store

	checkBacklog(ctx, r.log, r.deps.Notifier, false, r.deps.BooksetQueue, r.deps.BookQueue)

	counts, err := dataset.Read[domain.CountResult](ctx, store, layout.Counts(string(domain.StageBook)).MostRecent)
	if err != nil {
		return 0, fmt.Errorf("read book counts: %w", err)
	}
	if err := dataset.PutCountsCSV(ctx, store, layout.CountsCSV(), ranking.LatestByRequest(counts)); err != nil {
		return 0, fmt.Errorf("copy counts: %w", err)
	}

	books, err := dataset.Read[domain.BookRecord](ctx, store, layout.TransformedBooks())
	if err != nil {
		return 0, fmt.Errorf("read books: %w", err)
	}
	books = ranking.UniqueBooks(books)
	if err := dataset.Put(ctx, store, layout.ServedBooks(), books); err != nil {
		return 0, fmt.Errorf("serve books: %w", err)
	}

	top, err := dataset.Read[domain.CountResult](ctx, store, layout.TopCounts().MostRecent)
	if err != nil {
		return 0, fmt.Errorf("read top counts: %w", err)
	}
	if len(top) == 0 {
		return 0, fmt.Errorf("%w: %s", domain.ErrNoSnapshot, layout.TopCounts().MostRecent)
	}

	joined := ranking.Join(top, books)
	if err := dataset.Append(ctx, store, layout.TransformedTop().All, joined); err != nil {
		return 0, fmt.Errorf("archive joined: %w", err)
	}
	if err := dataset.Put(ctx, store, layout.TransformedTop().MostRecent, joined); err != nil {
		return 0, fmt.Errorf("store joined: %w", err)
	}

	editions, err := dataset.Read[domain.EarliestEdition](ctx, store, layout.Editions())
	if err != nil {
		return 0, fmt.Errorf("read editions: %w", err)
	}
	if len(editions) == 0 {
		r.log.Warn("no earliest-edition list, using metadata years", "key", layout.Editions())
	}

	ranked := r.deps.Ranker.Rank(joined, editions)
	datestr := r.deps.Now().UTC().Format(DateStamp)
	for _, key := range []string{layout.ServedTop(), layout.ServedTopArchive(datestr)} {
		if err := dataset.Put(ctx, store, key, ranked); err != nil {
			return 0, fmt.Errorf("publish ranked: %w", err)
		}
	}
	r.deps.Metrics.Ranked(len(ranked))

	r.log.Info("ranked", "counts", len(top), "joined", len(joined), "ranked", len(ranked))
	return len(ranked), nil
}

// checkBacklog alerts when queues hold work at a point where they should be
// empty. With both set, it alerts only if every queue is non-empty.
func checkBacklog(ctx context.Context, log *slog.Logger, notifier ports.Notifier, both bool, queues ...ports.Queue) {
	var (
		busy  []string
		total int
	)
	for _, q := range queues {
		if q == nil {
			continue
		}
		depth, err := q.Depth(ctx)
		if err != nil {
			log.Warn("queue depth unavailable", "queue", q.Name(), "error", err)
			continue
		}
		total++
		if depth > 0 {
			busy = append(busy, fmt.Sprintf("%s has %d messages", q.Name(), depth))
		}
	}
	if len(busy) == 0 || (both && len(busy) < total) {
		return
	}

	body := strings.Join(busy, "\n")
	log.Warn("queues are not empty", "queues", body)
	if notifier == nil {
		return
	}
	if err := notifier.Alert(ctx, "Queues Are Not Empty", body); err != nil {
		log.Warn("alert not sent", "error", err)
	}
}
