package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the workflow collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry            *prometheus.Registry
	decisionsTotal      *prometheus.CounterVec
	transitionsTotal    *prometheus.CounterVec
	purchaseOrdersTotal prometheus.Counter
	outboxDeliveries    *prometheus.CounterVec
	extractionJobs      *prometheus.CounterVec
	extractionDuration  *prometheus.HistogramVec
}

// New registers the collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		decisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "procurement_decisions_total",
				Help: "Approval decisions recorded, by level and action",
			},
			[]string{"level", "action"},
		),
		transitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "procurement_operations_total",
				Help: "Workflow operations, by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		purchaseOrdersTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "procurement_purchase_orders_total",
				Help: "Purchase orders issued",
			},
		),
		outboxDeliveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "procurement_outbox_deliveries_total",
				Help: "Outbox delivery attempts, by event type and result",
			},
			[]string{"event_type", "result"},
		),
		extractionJobs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "procurement_extraction_jobs_total",
				Help: "Finished extraction jobs, by document kind and status",
			},
			[]string{"kind", "status"},
		),
		extractionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "procurement_extraction_duration_seconds",
				Help:    "Duration of one extraction attempt",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"kind"},
		),
	}
	m.registry.MustRegister(
		m.decisionsTotal,
		m.transitionsTotal,
		m.purchaseOrdersTotal,
		m.outboxDeliveries,
		m.extractionJobs,
		m.extractionDuration,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Decision(level, action string) {
	if m == nil {
		return
	}
	m.decisionsTotal.WithLabelValues(level, action).Inc()
}

// Operation counts a workflow call; outcome is "ok" or an error kind.
func (m *Metrics) Operation(operation, outcome string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) PurchaseOrderIssued() {
	if m == nil {
		return
	}
	m.purchaseOrdersTotal.Inc()
}

func (m *Metrics) OutboxDelivery(eventType, result string) {
	if m == nil {
		return
	}
	m.outboxDeliveries.WithLabelValues(eventType, result).Inc()
}

func (m *Metrics) ExtractionJob(kind, status string) {
	if m == nil {
		return
	}
	m.extractionJobs.WithLabelValues(kind, status).Inc()
}

func (m *Metrics) ExtractionAttempt(kind string, seconds float64) {
	if m == nil {
		return
	}
	m.extractionDuration.WithLabelValues(kind).Observe(seconds)
}
