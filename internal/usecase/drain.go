package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"BookMentions/internal/domain"
	"BookMentions/internal/metrics"
	"BookMentions/internal/ports"
)

// DrainConfig bounds one drain call.
type DrainConfig struct {
	Rounds          int
	BatchSize       int
	RateLimitPause  time.Duration
	RequestInterval time.Duration
}

// DefaultDrainConfig matches the mention API's limits.
func DefaultDrainConfig() DrainConfig {
	return DrainConfig{
		Rounds:          10,
		BatchSize:       10,
		RateLimitPause:  15 * time.Second,
		RequestInterval: 500 * time.Millisecond,
	}
}

// DrainResult is what one drain call collected.
type DrainResult struct {
	Counts  []domain.CountResult
	Skipped []domain.SkippedQuery
	// RanOut is set once a receive returned nothing.
	RanOut bool
}

// Drainer consumes request URLs from a queue and counts their mentions.
type Drainer struct {
	counter ports.MentionCounter
	cfg     DrainConfig
	limiter *rate.Limiter
	sleep   func(context.Context, time.Duration) error
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewDrainer builds a drainer. Zero config fields take their defaults.
func NewDrainer(counter ports.MentionCounter, cfg DrainConfig, m *metrics.Metrics, logger *slog.Logger) *Drainer {
	def := DefaultDrainConfig()
	if cfg.Rounds <= 0 {
		cfg.Rounds = def.Rounds
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	limit := rate.Inf
	if cfg.RequestInterval > 0 {
		limit = rate.Every(cfg.RequestInterval)
	}
	return &Drainer{
		counter: counter,
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, 1),
		sleep:   sleepCtx,
		metrics: m,
		logger:  orDiscard(logger),
	}
}

// Drain polls q for up to cfg.Rounds batches. Counted messages are deleted;
// rate-limited ones are released for a later round; rejected ones are
// recorded as skipped and left on the queue.
func (d *Drainer) Drain(ctx context.Context, q ports.Queue, stage domain.Stage) (DrainResult, error) {
	var res DrainResult
	for round := 0; round < d.cfg.Rounds; round++ {
		msgs, err := q.Receive(ctx, d.cfg.BatchSize)
		if err != nil {
			return res, fmt.Errorf("receive from %s: %w", q.Name(), err)
		}
		if len(msgs) == 0 {
			res.RanOut = true
			continue
		}
		for _, msg := range msgs {
			if err := d.handle(ctx, q, stage, msg, &res); err != nil {
				return res, err
			}
		}
	}

	d.logger.Info("drained", "queue", q.Name(), "stage", stage,
		"counted", len(res.Counts), "skipped", len(res.Skipped), "ran_out", res.RanOut)
	return res, nil
}

func (d *Drainer) handle(ctx context.Context, q ports.Queue, stage domain.Stage, msg domain.QueueMessage, res *DrainResult) error {
	requestURL := MessageURL(msg.Body)

	mc, err := d.counter.Count(ctx, requestURL)
	if err != nil {
		d.logger.Warn("count failed, releasing message", "queue", q.Name(), "error", err)
		d.release(ctx, q, msg)
		return nil
	}
	d.metrics.Mention(string(stage), mc.Outcome.String())

	switch mc.Outcome {
	case domain.MentionCounted:
		if err := q.Delete(ctx, msg); err != nil {
			return fmt.Errorf("%w: %s: %v", domain.ErrDeleteFailed, msg.ID, err)
		}
		d.metrics.Deleted(q.Name())
		res.Counts = append(res.Counts, domain.CountResult{
			RequestURL: requestURL,
			StartDate:  mc.Start,
			EndDate:    mc.End,
			TotalCount: mc.Total,
		})
		d.logger.Debug("counted", "queue", q.Name(), "total", mc.Total)
		if err := d.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("pace requests: %w", err)
		}
	case domain.MentionRateLimited:
		d.logger.Warn("rate limited, pausing", "queue", q.Name(), "pause", d.cfg.RateLimitPause)
		if err := d.sleep(ctx, d.cfg.RateLimitPause); err != nil {
			return fmt.Errorf("rate limit pause: %w", err)
		}
		d.release(ctx, q, msg)
	case domain.MentionRejected:
		d.logger.Warn("query skipped", "queue", q.Name(), "reason", mc.Reason)
		res.Skipped = append(res.Skipped, domain.SkippedQuery{Query: requestURL})
	default:
		d.logger.Warn("unclassified count response, releasing message", "queue", q.Name(), "outcome", mc.Outcome)
		d.release(ctx, q, msg)
	}
	return nil
}

func (d *Drainer) release(ctx context.Context, q ports.Queue, msg domain.QueueMessage) {
	if err := q.Release(ctx, msg); err != nil {
		d.logger.Warn("release failed", "queue", q.Name(), "error", err)
	}
}

// MessageURL returns the request URL carried by a queue message body. Bodies
// delivered through a topic subscription arrive wrapped in a JSON envelope.
func MessageURL(body string) string {
	body = strings.TrimSpace(body)
	if strings.HasPrefix(body, "https") {
		return body
	}
	var envelope struct {
		Message string `json:"Message"`
	}
	if err := json.Unmarshal([]byte(body), &envelope); err != nil || envelope.Message == "" {
		return body
	}
	return envelope.Message
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
