package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"BookMentions/internal/dataset"
	"BookMentions/internal/domain"
	"BookMentions/internal/metrics"
	"BookMentions/internal/ports"
	"BookMentions/internal/querybuilder"
	"BookMentions/internal/ranking"
)

// OrchestratorDeps wires the counting cycle.
type OrchestratorDeps struct {
	Store        *dataset.Store
	Layout       dataset.Layout
	BooksetQueue ports.Queue
	BookQueue    ports.Queue

	// BookPublisher fills BookQueue with exploded bookset queries.
	BookPublisher *Publisher
	Drainer       *Drainer
	// Ranker runs once book counts are staged; nil leaves ranking to the rank command.
	Ranker   *RankStage
	Notifier ports.Notifier

	// CandidateSize is how many booksets are exploded and book counts staged.
	CandidateSize int

	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// StepReport describes one orchestrator invocation.
type StepReport struct {
	State           domain.CountingState
	Counted         int
	Skipped         int
	Published       int
	PublishFailures int
	Ranked          int
}

// Fill copies the report into a run record.
func (r StepReport) Fill(run *domain.RunRecord) {
	run.State = r.State.String()
	run.Counted = r.Counted
	run.Skipped = r.Skipped
	run.Published = r.Published
	run.PublishFailures = r.PublishFailures
}

// Orchestrator advances the two-pass counting cycle by one unit of work per
// Step. It keeps no state of its own: every Step re-derives the phase from
// queue depths and stored datasets, so invocations must not overlap.
type Orchestrator struct {
	deps OrchestratorDeps
	log  *slog.Logger
}

// NewOrchestrator builds the counting orchestrator.
func NewOrchestrator(deps OrchestratorDeps) *Orchestrator {
	if deps.CandidateSize <= 0 {
		deps.CandidateSize = ranking.CandidateSize
	}
	return &Orchestrator{deps: deps, log: orDiscard(deps.Logger)}
}

// Observe gathers the facts the counting state is derived from.
func (o *Orchestrator) Observe(ctx context.Context) (domain.CycleFacts, error) {
	var (
		facts domain.CycleFacts
		err   error
	)
	if facts.BooksetDepth, err = o.deps.BooksetQueue.Depth(ctx); err != nil {
		return facts, fmt.Errorf("bookset depth: %w", err)
	}
	if facts.BookDepth, err = o.deps.BookQueue.Depth(ctx); err != nil {
		return facts, fmt.Errorf("book depth: %w", err)
	}
	if facts.BookCountsExist, err = o.deps.Store.Exists(ctx, o.deps.Layout.Counts(string(domain.StageBook)).MostRecent); err != nil {
		return facts, err
	}
	if facts.TopBooksExist, err = o.deps.Store.Exists(ctx, o.deps.Layout.TopCounts().MostRecent); err != nil {
		return facts, err
	}
	return facts, nil
}

// Step performs the work of the current state.
func (o *Orchestrator) Step(ctx context.Context) (StepReport, error) {
	facts, err := o.Observe(ctx)
	if err != nil {
		return StepReport{}, err
	}
	report := StepReport{State: domain.NextState(facts)}
	o.log.Info("counting state", "state", report.State,
		"bookset_depth", facts.BooksetDepth, "book_depth", facts.BookDepth)

	if facts.BooksetDepth > 0 && facts.BookDepth > 0 {
		checkBacklog(ctx, o.log, o.deps.Notifier, true, o.deps.BooksetQueue, o.deps.BookQueue)
	}

	switch report.State {
	case domain.StateAwaitExtract:
		err = o.awaitExtract(ctx, &report)
	case domain.StateCountingBooksets:
		err = o.countBooksets(ctx, facts, &report)
	case domain.StateCountingBooks:
		err = o.count(ctx, o.deps.BookQueue, domain.StageBook, &report)
	case domain.StateReadyForRanking:
		err = o.stageTop(ctx, &report)
	case domain.StateIdle:
		o.log.Info("cycle complete, waiting for the next extraction")
	}
	return report, err
}

func (o *Orchestrator) awaitExtract(ctx context.Context, report *StepReport) error {
	exists, err := o.deps.Store.Exists(ctx, o.deps.Layout.Counts(string(domain.StageBookset)).MostRecent)
	if err != nil {
		return err
	}
	if !exists {
		o.log.Info("no bookset counts yet, waiting for extraction")
		return nil
	}
	return o.publishExploded(ctx, report)
}

func (o *Orchestrator) countBooksets(ctx context.Context, facts domain.CycleFacts, report *StepReport) error {
	res, err := o.drainAndStore(ctx, o.deps.BooksetQueue, domain.StageBookset, report)
	if err != nil {
		return err
	}
	if !res.RanOut || facts.BookDepth > 0 {
		return nil
	}
	return o.publishExploded(ctx, report)
}

func (o *Orchestrator) count(ctx context.Context, q ports.Queue, stage domain.Stage, report *StepReport) error {
	_, err := o.drainAndStore(ctx, q, stage, report)
	return err
}

func (o *Orchestrator) drainAndStore(ctx context.Context, q ports.Queue, stage domain.Stage, report *StepReport) (DrainResult, error) {
	res, err := o.deps.Drainer.Drain(ctx, q, stage)
	report.Counted += len(res.Counts)
	report.Skipped += len(res.Skipped)

	// Counted messages are already deleted, so store what was collected even
	// when the drain stopped early.
	paths := o.deps.Layout.Counts(string(stage))
	if serr := o.storeCounts(ctx, paths, res); serr != nil {
		if err != nil {
			return res, fmt.Errorf("%w (store after drain error: %v)", err, serr)
		}
		return res, serr
	}
	if err != nil {
		return res, fmt.Errorf("drain %s: %w", stage, err)
	}
	return res, nil
}

func (o *Orchestrator) storeCounts(ctx context.Context, paths dataset.CountPaths, res DrainResult) error {
	if err := dataset.Append(ctx, o.deps.Store, paths.All, res.Counts); err != nil {
		return fmt.Errorf("archive counts: %w", err)
	}
	if err := dataset.Append(ctx, o.deps.Store, paths.MostRecent, res.Counts); err != nil {
		return fmt.Errorf("store counts: %w", err)
	}
	if err := dataset.Append(ctx, o.deps.Store, paths.Skipped, res.Skipped); err != nil {
		return fmt.Errorf("store skipped: %w", err)
	}
	return nil
}

// publishExploded splits the best booksets into single-book queries and
// queues them for the second pass.
func (o *Orchestrator) publishExploded(ctx context.Context, report *StepReport) error {
	recent := o.deps.Layout.Counts(string(domain.StageBookset)).MostRecent
	counts, err := dataset.Read[domain.CountResult](ctx, o.deps.Store, recent)
	if err != nil {
		return fmt.Errorf("read bookset counts: %w", err)
	}

	top := ranking.TopCounts(counts, o.deps.CandidateSize)
	urls := make([]string, 0, len(top))
	for _, c := range top {
		urls = append(urls, c.RequestURL)
	}
	exploded := querybuilder.Explode(urls)

	pub, err := o.deps.BookPublisher.Publish(ctx, exploded)
	report.Published += pub.Published
	report.PublishFailures += pub.Failed
	if err != nil {
		return fmt.Errorf("publish books: %w", err)
	}

	if err := o.deps.Store.Delete(ctx, recent); err != nil {
		return err
	}
	o.log.Info("book queries queued", "booksets", len(top), "books", len(exploded))
	return nil
}

// stageTop stages the best book counts and, if wired, ranks them.
func (o *Orchestrator) stageTop(ctx context.Context, report *StepReport) error {
	counts, err := dataset.Read[domain.CountResult](ctx, o.deps.Store, o.deps.Layout.Counts(string(domain.StageBook)).MostRecent)
	if err != nil {
		return fmt.Errorf("read book counts: %w", err)
	}
	top := ranking.TopCounts(counts, o.deps.CandidateSize)

	paths := o.deps.Layout.TopCounts()
	if err := dataset.Append(ctx, o.deps.Store, paths.All, top); err != nil {
		return fmt.Errorf("archive top counts: %w", err)
	}
	if err := dataset.Replace(ctx, o.deps.Store, paths.MostRecent, top); err != nil {
		return fmt.Errorf("store top counts: %w", err)
	}
	o.log.Info("top counts staged", "count", len(top))

	if o.deps.Ranker == nil {
		return nil
	}
	n, err := o.deps.Ranker.Run(ctx)
	report.Ranked = n
	if err != nil {
		return fmt.Errorf("rank: %w", err)
	}
	return nil
}
