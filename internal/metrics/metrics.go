// Package metrics holds the Prometheus collectors of one pipeline
// invocation. All methods are safe on a nil *Metrics.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "bookmentions"

// Metrics groups the collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	mentions        *prometheus.CounterVec
	droppedQueries  prometheus.Counter
	published       *prometheus.CounterVec
	deletedMessages *prometheus.CounterVec
	rankedBooks     prometheus.Gauge
	storageOps      *prometheus.CounterVec
	apiCalls        *prometheus.CounterVec
	commandDuration *prometheus.HistogramVec
}

// New registers all collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		mentions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mention_requests_total",
			Help:      "Mention-count responses by counting stage and outcome",
		}, []string{"stage", "outcome"}),
		droppedQueries: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_queries_total",
			Help:      "Query fragments longer than the request limit",
		}),
		published: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "published_messages_total",
			Help:      "Published queue entries by topic and status",
		}, []string{"topic", "status"}),
		deletedMessages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deleted_messages_total",
			Help:      "Queue messages deleted after counting",
		}, []string{"queue"}),
		rankedBooks: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ranked_books",
			Help:      "Rows in the last published top list",
		}),
		storageOps: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_operations_total",
			Help:      "Object storage operations",
		}, []string{"operation", "status"}),
		apiCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_calls_total",
			Help:      "Calls made to external services",
		}, []string{"endpoint", "status"}),
		commandDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Help:      "Duration of one CLI command",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 14),
		}, []string{"command", "status"}),
	}
}

func status(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

// Mention records one mention-count outcome.
func (m *Metrics) Mention(stage, outcome string) {
	if m == nil {
		return
	}
	m.mentions.WithLabelValues(stage, outcome).Inc()
}

// Dropped records fragments that could not fit in any request.
func (m *Metrics) Dropped(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.droppedQueries.Add(float64(n))
}

// Published records a publish call's delivered and failed entries.
func (m *Metrics) Published(topic string, ok, failed int) {
	if m == nil {
		return
	}
	m.published.WithLabelValues(topic, "success").Add(float64(ok))
	m.published.WithLabelValues(topic, "failure").Add(float64(failed))
}

// Deleted records one deleted queue message.
func (m *Metrics) Deleted(queue string) {
	if m == nil {
		return
	}
	m.deletedMessages.WithLabelValues(queue).Inc()
}

// Ranked sets the size of the published list.
func (m *Metrics) Ranked(n int) {
	if m == nil {
		return
	}
	m.rankedBooks.Set(float64(n))
}

// StorageOp records an object storage call.
func (m *Metrics) StorageOp(op string, err error) {
	if m == nil {
		return
	}
	m.storageOps.WithLabelValues(op, status(err)).Inc()
}

// APICall records an external API call.
func (m *Metrics) APICall(endpoint string, err error) {
	if m == nil {
		return
	}
	m.apiCalls.WithLabelValues(endpoint, status(err)).Inc()
}

// ObserveCommand records how long a command ran.
func (m *Metrics) ObserveCommand(command string, took time.Duration, err error) {
	if m == nil {
		return
	}
	m.commandDuration.WithLabelValues(command, status(err)).Observe(took.Seconds())
}

// Handler serves the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Gatherer exposes the registry.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	if m == nil {
		return prometheus.NewRegistry()
	}
	return m.registry
}

// Push sends the collected values to a Pushgateway. Batch invocations exit
// before any scrape could reach them.
func (m *Metrics) Push(ctx context.Context, gatewayURL, job string) error {
	if m == nil || gatewayURL == "" {
		return nil
	}
	if err := push.New(gatewayURL, job).Gatherer(m.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
