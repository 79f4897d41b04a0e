package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"BookMentions/internal/config"
	"BookMentions/internal/dashboard"
	"BookMentions/internal/domain"
	"BookMentions/internal/infrastructure/aws"
	"BookMentions/internal/infrastructure/commoncrawl"
	"BookMentions/internal/infrastructure/isbndb"
	"BookMentions/internal/infrastructure/parser"
	"BookMentions/internal/infrastructure/scheduler"
	"BookMentions/internal/infrastructure/twitter"
	"BookMentions/internal/logging"
	"BookMentions/internal/ports"
	"BookMentions/internal/querybuilder"
	"BookMentions/internal/ranking"
	"BookMentions/internal/usecase"
)

const shutdownTimeout = 15 * time.Second

// Extract pulls fresh books from the archive and publishes bookset queries.
func (a *Application) Extract(ctx context.Context) error {
	msg, err := a.messaging(ctx)
	if err != nil {
		return err
	}
	clients, err := a.awsClients(ctx)
	if err != nil {
		return err
	}

	cfg := a.cfg
	extractor := usecase.NewExtractor(usecase.ExtractorDeps{
		Index:  commoncrawl.NewIndex(cfg.Archive.CollInfoURL, a.metrics),
		Engine: aws.NewAthenaEngine(clients.Athena, cfg.Engine.WorkGroup, cfg.Engine.Catalog, cfg.Engine.Database),
		Statements: func(datestr string) ports.StatementSet {
			st := commoncrawl.NewStatements(cfg.Engine.Database, cfg.Engine.SourceTable, datestr)
			if cfg.Archive.URLPattern != "" {
				st.URLPattern = cfg.Archive.URLPattern
			}
			return st
		},
		Metadata:     isbndb.NewClient(cfg.ISBNDB.Endpoint, cfg.ISBNDB.Token, a.metrics),
		Store:        a.store,
		Layout:       a.layout,
		Bucket:       cfg.Storage.Bucket,
		Batcher:      a.batcher(),
		Publisher:    usecase.NewPublisher(msg.booksetTopic, a.metrics, logging.Component(a.log, "publisher")),
		ChunkSize:    cfg.ISBNDB.ChunkSize,
		PollInterval: cfg.Engine.PollInterval,
		PollTimeout:  cfg.Engine.PollTimeout,
		Metrics:      a.metrics,
		Logger:       logging.Component(a.log, "extract"),
	})

	return a.recorder.Record(ctx, "extract", func(ctx context.Context, run *domain.RunRecord) error {
		report, err := extractor.Extract(ctx)
		report.Fill(run)
		return err
	})
}

// Count advances the counting cycle by one step.
func (a *Application) Count(ctx context.Context) error {
	orchestrator, err := a.orchestrator(ctx)
	if err != nil {
		return err
	}
	return a.recorder.Record(ctx, "count", func(ctx context.Context, run *domain.RunRecord) error {
		report, err := orchestrator.Step(ctx)
		report.Fill(run)
		return err
	})
}

// Rank ranks the staged top counts regardless of the cycle state.
func (a *Application) Rank(ctx context.Context) error {
	stage, err := a.rankStage(ctx)
	if err != nil {
		return err
	}
	return a.recorder.Record(ctx, "rank", func(ctx context.Context, run *domain.RunRecord) error {
		n, err := stage.Run(ctx)
		run.State = fmt.Sprintf("ranked %d", n)
		return err
	})
}

// Run steps the counting cycle on the configured interval until ctx ends.
func (a *Application) Run(ctx context.Context) error {
	orchestrator, err := a.orchestrator(ctx)
	if err != nil {
		return err
	}

	sched := usecase.NewScheduler(
		scheduler.NewIntervalScheduler(a.cfg.Scheduler.Interval),
		orchestrator,
		a.recorder,
		logging.Component(a.log, "scheduler"),
	)
	sched.AfterRun(func(ctx context.Context) {
		if err := a.PushMetrics(ctx); err != nil {
			a.log.Warn("metrics not pushed", "error", err)
		}
	})
	if err := sched.Start(ctx); err != nil {
		return err
	}
	a.log.Info("scheduler started", "interval", a.cfg.Scheduler.Interval)

	<-ctx.Done()
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return sched.Stop(stopCtx)
}

// Dashboard serves the API until ctx ends.
func (a *Application) Dashboard(ctx context.Context) error {
	log := logging.Component(a.log, "dashboard")
	cache := dashboard.NewCache(a.store, a.layout, a.cfg.Dashboard.CacheTTL, log)
	handler := dashboard.NewHandler(cache, a.ledger, log)

	srv := &http.Server{
		Addr:              a.cfg.Dashboard.Addr,
		Handler:           dashboard.NewRouter(handler, a.metrics.Handler(), a.cfg.Dashboard.AllowedOrigins, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}

// ImportEditions refreshes the earliest-edition list used by ranking.
func (a *Application) ImportEditions(ctx context.Context) error {
	scraper := parser.NewEditionsScraper(nil, a.cfg.Editions.ListURL, a.cfg.Editions.MaxPages)
	importer := usecase.NewEditionsImporter(scraper, a.store, a.layout, logging.Component(a.log, "editions"))

	return a.recorder.Record(ctx, "import-editions", func(ctx context.Context, run *domain.RunRecord) error {
		n, err := importer.Import(ctx)
		run.State = fmt.Sprintf("imported %d", n)
		return err
	})
}

// PushMetrics sends this process's metrics to the Pushgateway, if configured.
func (a *Application) PushMetrics(ctx context.Context) error {
	return a.metrics.Push(ctx, a.cfg.Metrics.PushgatewayURL, a.cfg.Metrics.Job)
}

func (a *Application) batcher() querybuilder.Batcher {
	return querybuilder.Batcher{Endpoint: a.cfg.Twitter.Endpoint, MaxLength: a.cfg.Twitter.MaxQueryLength}
}

func (a *Application) rankStage(ctx context.Context) (*usecase.RankStage, error) {
	msg, err := a.messaging(ctx)
	if err != nil {
		return nil, err
	}
	notifier, err := a.notifier(ctx)
	if err != nil {
		return nil, err
	}

	return usecase.NewRankStage(usecase.RankerDeps{
		Store:        a.store,
		Layout:       a.layout,
		Ranker:       newRanker(a.cfg.Ranking),
		BooksetQueue: msg.booksetQueue,
		BookQueue:    msg.bookQueue,
		Notifier:     notifier,
		Metrics:      a.metrics,
		Logger:       logging.Component(a.log, "rank"),
	}), nil
}

func newRanker(cfg config.RankingConfig) *ranking.Ranker {
	return ranking.NewRanker(
		ranking.WithSize(cfg.FinalSize),
		ranking.WithDenylist(cfg.Denylist),
		ranking.WithYearOverrides(cfg.YearOverrides),
	)
}

func (a *Application) orchestrator(ctx context.Context) (*usecase.Orchestrator, error) {
	msg, err := a.messaging(ctx)
	if err != nil {
		return nil, err
	}
	notifier, err := a.notifier(ctx)
	if err != nil {
		return nil, err
	}
	stage, err := a.rankStage(ctx)
	if err != nil {
		return nil, err
	}

	tw := a.cfg.Twitter
	drainer := usecase.NewDrainer(twitter.NewCounter(tw.Bearer, a.metrics), usecase.DrainConfig{
		Rounds:          tw.Rounds,
		BatchSize:       tw.BatchSize,
		RateLimitPause:  tw.RateLimitPause,
		RequestInterval: tw.RequestInterval,
	}, a.metrics, logging.Component(a.log, "drain"))

	return usecase.NewOrchestrator(usecase.OrchestratorDeps{
		Store:         a.store,
		Layout:        a.layout,
		BooksetQueue:  msg.booksetQueue,
		BookQueue:     msg.bookQueue,
		BookPublisher: usecase.NewPublisher(msg.bookTopic, a.metrics, logging.Component(a.log, "publisher")),
		Drainer:       drainer,
		Ranker:        stage,
		Notifier:      notifier,
		CandidateSize: a.cfg.Ranking.CandidateSize,
		Metrics:       a.metrics,
		Logger:        logging.Component(a.log, "count"),
	}), nil
}
