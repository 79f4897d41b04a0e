package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"BookMentions/internal/dataset"
	"BookMentions/internal/domain"
	"BookMentions/internal/ports"
)

// EditionsImporter stores the curated earliest-edition list the ranker reads.
type EditionsImporter struct {
	source ports.EditionSource
	store  *dataset.Store
	layout dataset.Layout
	log    *slog.Logger
}

// NewEditionsImporter binds a source to the store.
func NewEditionsImporter(source ports.EditionSource, store *dataset.Store, layout dataset.Layout, logger *slog.Logger) *EditionsImporter {
	return &EditionsImporter{source: source, store: store, layout: layout, log: orDiscard(logger)}
}

// Import replaces the stored list. An empty scrape keeps the previous list.
func (i *EditionsImporter) Import(ctx context.Context) (int, error) {
	editions, err := i.source.FetchEditions(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch editions: %w", err)
	}
	if len(editions) == 0 {
		return 0, fmt.Errorf("fetch editions: %w: source returned no entries", domain.ErrNoSnapshot)
	}
	if err := dataset.Put(ctx, i.store, i.layout.Editions(), editions); err != nil {
		return 0, fmt.Errorf("store editions: %w", err)
	}
	i.log.Info("editions imported", "count", len(editions), "key", i.layout.Editions())
	return len(editions), nil
}
