package storage

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"BookMentions/internal/domain"
	"BookMentions/internal/ports"
)

const schema = `CREATE TABLE IF NOT EXISTS pipeline_runs (
	id               UUID PRIMARY KEY,
	command          TEXT NOT NULL,
	state            TEXT NOT NULL DEFAULT '',
	counted          INTEGER NOT NULL DEFAULT 0,
	skipped          INTEGER NOT NULL DEFAULT 0,
	published        INTEGER NOT NULL DEFAULT 0,
	publish_failures INTEGER NOT NULL DEFAULT 0,
	dropped          INTEGER NOT NULL DEFAULT 0,
	error            TEXT NOT NULL DEFAULT '',
	started_at       TIMESTAMPTZ NOT NULL,
	finished_at      TIMESTAMPTZ
)`

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var runColumns = []string{
	"id", "command", "state", "counted", "skipped", "published",
	"publish_failures", "dropped", "error", "started_at", "finished_at",
}

// DB is the subset of *pgxpool.Pool the repository needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresRepository persists one audit row per pipeline invocation.
type PostgresRepository struct {
	db DB
}

var _ ports.RunLedger = (*PostgresRepository)(nil)

// NewPostgresRepository wires a pool; a nil pool turns every call into a no-op.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		return &PostgresRepository{}
	}
	return &PostgresRepository{db: pool}
}

// EnsureSchema creates the runs table when missing.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if r.db == nil {
		return nil
	}
	if _, err := r.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create runs table: %w", err)
	}
	return nil
}

// SaveRun upserts the run snapshot.
func (r *PostgresRepository) SaveRun(ctx context.Context, run domain.RunRecord) error {
	if r.db == nil {
		return nil
	}

	query, args, err := saveRunQuery(run)
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert run: %w", err)
	}
	return nil
}

// RecentRuns returns the newest runs first.
func (r *PostgresRepository) RecentRuns(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	if r.db == nil {
		return nil, nil
	}

	query, args, err := recentRunsQuery(limit)
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.RunRecord
	for rows.Next() {
		var (
			run      domain.RunRecord
			finished *time.Time
		)
		if err := rows.Scan(
			&run.ID, &run.Command, &run.State, &run.Counted, &run.Skipped, &run.Published,
			&run.PublishFailures, &run.Dropped, &run.Error, &run.StartedAt, &finished,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if finished != nil {
			run.FinishedAt = *finished
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return runs, nil
}

func saveRunQuery(run domain.RunRecord) (string, []any, error) {
	var finished any
	if !run.FinishedAt.IsZero() {
		finished = run.FinishedAt
	}
	return psql.Insert("pipeline_runs").
		Columns(runColumns...).
		Values(run.ID, run.Command, run.State, run.Counted, run.Skipped, run.Published,
			run.PublishFailures, run.Dropped, run.Error, run.StartedAt, finished).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			state = EXCLUDED.state,
			counted = EXCLUDED.counted,
			skipped = EXCLUDED.skipped,
			published = EXCLUDED.published,
			publish_failures = EXCLUDED.publish_failures,
			dropped = EXCLUDED.dropped,
			error = EXCLUDED.error,
			finished_at = EXCLUDED.finished_at`).
		ToSql()
}

func recentRunsQuery(limit int) (string, []any, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return psql.Select(runColumns...).
		From("pipeline_runs").
		OrderBy("started_at DESC").
		Limit(uint64(limit)).
		ToSql()
}
