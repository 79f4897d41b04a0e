// Package dashboard serves the published ranked list and its statistics.
package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"BookMentions/internal/dataset"
	"BookMentions/internal/domain"
)

// DefaultTTL is how long a snapshot is served before its version is rechecked.
const DefaultTTL = time.Hour

// Snapshot is one published ranked list and the content version it was read at.
type Snapshot struct {
	Version      string
	Books        []domain.RankedBook
	BooksTracked int
	LoadedAt     time.Time
}

// Cache holds the current snapshot. It rechecks the stored object's version
// at most once per TTL and reloads only when the version changed.
type Cache struct {
	store  *dataset.Store
	layout dataset.Layout
	ttl    time.Duration
	now    func() time.Time
	log    *slog.Logger

	mu        sync.Mutex
	current   *Snapshot
	checkedAt time.Time
}

// NewCache builds an empty cache; non-positive ttl means DefaultTTL.
func NewCache(store *dataset.Store, layout dataset.Layout, ttl time.Duration, logger *slog.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Cache{store: store, layout: layout, ttl: ttl, now: time.Now, log: logger}
}

// Current returns the latest snapshot. When the store is unreachable a
// previously loaded snapshot is served stale.
func (c *Cache) Current(ctx context.Context) (*Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.current != nil && now.Sub(c.checkedAt) < c.ttl {
		return c.current, nil
	}

	version, err := c.store.Version(ctx, c.layout.ServedTop())
	if err != nil {
		if c.current != nil {
			c.log.Warn("snapshot version check failed, serving stale", "error", err)
			return c.current, nil
		}
		return nil, err
	}
	c.checkedAt = now
	if c.current != nil && c.current.Version == version {
		return c.current, nil
	}

	snap, err := c.load(ctx, version, now)
	if err != nil {
		if c.current != nil {
			c.log.Warn("snapshot reload failed, serving stale", "error", err)
			return c.current, nil
		}
		return nil, err
	}
	c.log.Info("snapshot loaded", "version", version, "books", len(snap.Books))
	c.current = snap
	return snap, nil
}

func (c *Cache) load(ctx context.Context, version string, now time.Time) (*Snapshot, error) {
	ranked, err := dataset.Read[domain.RankedBook](ctx, c.store, c.layout.ServedTop())
	if err != nil {
		return nil, fmt.Errorf("read ranked list: %w", err)
	}
	tracked, err := dataset.Read[domain.BookRecord](ctx, c.store, c.layout.ServedBooks())
	if err != nil {
		return nil, fmt.Errorf("read served books: %w", err)
	}
	return &Snapshot{Version: version, Books: ranked, BooksTracked: len(tracked), LoadedAt: now}, nil
}
