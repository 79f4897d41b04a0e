package usecase

import (
	"context"
	"log/slog"
	"time"

	"BookMentions/internal/domain"
	"BookMentions/internal/metrics"
	"BookMentions/internal/ports"
)

// RunRecorder times a command and persists its outcome to the ledger.
type RunRecorder struct {
	ledger  ports.RunLedger
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewRunRecorder accepts a nil ledger; runs are then only measured.
func NewRunRecorder(ledger ports.RunLedger, m *metrics.Metrics, logger *slog.Logger) *RunRecorder {
	return &RunRecorder{ledger: ledger, metrics: m, logger: orDiscard(logger), now: time.Now}
}

// Record runs fn, lets it fill the record, and saves the result. A ledger
// failure is logged; fn's error is returned unchanged.
func (r *RunRecorder) Record(ctx context.Context, command string, fn func(context.Context, *domain.RunRecord) error) error {
	if r == nil {
		run := domain.NewRunRecord(command, time.Now())
		return fn(ctx, &run)
	}

	run := domain.NewRunRecord(command, r.now())
	err := fn(ctx, &run)
	run.FinishedAt = r.now()
	if err != nil {
		run.Error = err.Error()
	}
	r.metrics.ObserveCommand(command, run.FinishedAt.Sub(run.StartedAt), err)

	if r.ledger != nil {
		if lerr := r.ledger.SaveRun(context.WithoutCancel(ctx), run); lerr != nil {
			r.logger.Warn("run not recorded", "run", run.ID, "error", lerr)
		}
	}
	return err
}
