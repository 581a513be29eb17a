package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups all Prometheus instruments used across the application.
// Registered once at startup via New(); passed by pointer wherever needed.
type Metrics struct {
	DeliveriesSent      prometheus.Counter
	DeliveriesRetried   prometheus.Counter
	DeliveriesAbandoned prometheus.Counter
	DeliveryLatency     prometheus.Histogram
	QueueDepth          prometheus.Gauge
	IssuesPublished     prometheus.Counter
}

// New registers all instruments with the given Prometheus registerer and
// returns the populated Metrics struct.
// Using a custom registry (instead of prometheus.DefaultRegisterer) keeps
// tests isolated and avoids global state.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		DeliveriesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "deliveries_sent_total",
			Help: "Total number of successfully delivered issue emails.",
		}),

		DeliveriesRetried: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "deliveries_retried_total",
			Help: "Total number of failed send attempts left in the queue for retry.",
		}),

		DeliveriesAbandoned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "deliveries_abandoned_total",
			Help: "Total number of tasks removed without delivery (retry budget exhausted or unrenderable).",
		}),

		DeliveryLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "delivery_processing_seconds",
			Help:    "Per-task processing latency from claim to transport ack.",
			Buckets: prometheus.DefBuckets,
		}),

		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "delivery_queue_depth",
			Help: "Current number of pending delivery tasks.",
		}),

		IssuesPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "issues_published_total",
			Help: "Total number of newsletter issues accepted for delivery.",
		}),
	}

	reg.MustRegister(
		m.DeliveriesSent,
		m.DeliveriesRetried,
		m.DeliveriesAbandoned,
		m.DeliveryLatency,
		m.QueueDepth,
		m.IssuesPublished,
	)

	return m
}

// WorkerHooks returns the metric callback functions expected by
// dispatch.MetricHooks. Centralises the prometheus observation calls so the
// dispatch package stays free of prometheus imports.
func (m *Metrics) WorkerHooks() (
	onSent func(latency time.Duration),
	onRetried func(),
	onAbandoned func(),
) {
	onSent = func(latency time.Duration) {
		m.DeliveriesSent.Inc()
		m.DeliveryLatency.Observe(latency.Seconds())
	}
	onRetried = func() {
		m.DeliveriesRetried.Inc()
	}
	onAbandoned = func() {
		m.DeliveriesAbandoned.Inc()
	}
	return
}
