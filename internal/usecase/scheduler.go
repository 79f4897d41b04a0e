package usecase

import (
	"context"
	"log/slog"
	"time"

	"BookMentions/internal/domain"
	"BookMentions/internal/ports"
)

// Scheduler wires the interval driver with the counting orchestrator.
type Scheduler struct {
	driver       ports.Scheduler
	orchestrator *Orchestrator
	recorder     *RunRecorder
	logger       *slog.Logger
	// afterRun is called once per tick, e.g. to push metrics.
	afterRun func(context.Context)
}

// NewScheduler returns a helper to start/stop recurring counting steps.
func NewScheduler(driver ports.Scheduler, orchestrator *Orchestrator, recorder *RunRecorder, logger *slog.Logger) *Scheduler {
	return &Scheduler{driver: driver, orchestrator: orchestrator, recorder: recorder, logger: orDiscard(logger)}
}

// AfterRun registers a hook run after every tick.
func (s *Scheduler) AfterRun(fn func(context.Context)) { s.afterRun = fn }

// Start registers the orchestrator with the provided scheduler. The driver
// never overlaps jobs, which the stateless orchestrator relies on.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.orchestrator == nil {
		return nil
	}

	job := func(trigger time.Time) {
		err := s.recorder.Record(ctx, "count", func(ctx context.Context, run *domain.RunRecord) error {
			report, err := s.orchestrator.Step(ctx)
			report.Fill(run)
			return err
		})
		if err != nil {
			s.logger.Error("counting step failed", "trigger", trigger, "error", err)
		}
		if s.afterRun != nil {
			s.afterRun(ctx)
		}
	}

	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
