package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"BookMentions/internal/domain"
	"BookMentions/internal/metrics"
	"BookMentions/internal/ports"
)

// PublishBatchSize is the most entries one publish call accepts.
const PublishBatchSize = 10

// PublishReport counts accepted and rejected entries.
type PublishReport struct {
	Published int
	Failed    int
}

// Publisher sends request URLs to a topic in groups of PublishBatchSize.
type Publisher struct {
	topic   ports.Topic
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewPublisher binds a topic.
func NewPublisher(topic ports.Topic, m *metrics.Metrics, logger *slog.Logger) *Publisher {
	return &Publisher{topic: topic, metrics: m, logger: orDiscard(logger)}
}

// Publish sends urls in order. Each entry's ID is its index in the group and
// its GroupID the group index. Entries the topic rejects are counted, not
// retried; a failed call aborts the rest.
func (p *Publisher) Publish(ctx context.Context, urls []string) (PublishReport, error) {
	var report PublishReport
	if p == nil || p.topic == nil || len(urls) == 0 {
		return report, nil
	}

	for group, start := 0, 0; start < len(urls); group, start = group+1, start+PublishBatchSize {
		end := min(start+PublishBatchSize, len(urls))
		entries := make([]domain.PublishEntry, 0, end-start)
		for i, u := range urls[start:end] {
			entries = append(entries, domain.PublishEntry{
				ID:      strconv.Itoa(i),
				Message: u,
				GroupID: strconv.Itoa(group),
			})
		}

		failed, err := p.topic.PublishBatch(ctx, entries)
		if err != nil {
			return report, fmt.Errorf("publish group %d to %s: %w", group, p.topic.Name(), err)
		}
		report.Published += len(entries) - failed
		report.Failed += failed
		p.metrics.Published(p.topic.Name(), len(entries)-failed, failed)
	}

	if report.Failed > 0 {
		p.logger.Warn("publish failures", "topic", p.topic.Name(), "failed", report.Failed)
	}
	p.logger.Info("published", "topic", p.topic.Name(), "count", report.Published)
	return report, nil
}

func orDiscard(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.New(slog.DiscardHandler)
	}
	return l
}
