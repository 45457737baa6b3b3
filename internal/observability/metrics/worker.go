package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/flipscout/internal/core/domain"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	processTotal    *prometheus.CounterVec
	processDuration *prometheus.HistogramVec
	processInFlight prometheus.Gauge
	queueLag        *prometheus.HistogramVec
	tierTotal       *prometheus.CounterVec
	visualOutcomes  *prometheus.CounterVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	processTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "scan_process_total",
			Help:      "Processed scans by outcome (success, rejected, retryable, error).",
		},
		[]string{"service", "status"},
	)
	processDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "scan_process_duration_seconds",
			Help:      "Scan processing duration in seconds by outcome.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30, 60, 120},
		},
		[]string{"service", "status"},
	)
	processInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "scan_process_in_flight",
			Help:      "Number of in-flight scan processing tasks.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between scan submission and processing start.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)
	tierTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "tier_total",
			Help:      "Identification results by confidence tier.",
		},
		[]string{"service", "tier"},
	)
	visualOutcomes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "visual",
			Name:      "match_total",
			Help:      "Visual matching sessions by category and outcome.",
		},
		[]string{"service", "category", "outcome"},
	)

	registry.MustRegister(processTotal, processDuration, processInFlight, queueLag, tierTotal, visualOutcomes)

	return &WorkerMetrics{
		registry:        registry,
		processTotal:    processTotal,
		processDuration: processDuration,
		processInFlight: processInFlight,
		queueLag:        queueLag,
		tierTotal:       tierTotal,
		visualOutcomes:  visualOutcomes,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *WorkerMetrics) StartScan() {
	m.processInFlight.Inc()
}

func (m *WorkerMetrics) FinishScan(service string, duration time.Duration, err error) {
	m.processInFlight.Dec()
	outcome := scanOutcome(err)
	m.processTotal.WithLabelValues(service, outcome).Inc()
	m.processDuration.WithLabelValues(service, outcome).Observe(duration.Seconds())
}

// scanOutcome separates scans that can never succeed (bad input, unknown id)
// from outages that a redelivery may fix.
func scanOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case domain.IsKind(err, domain.ErrInvalidInput),
		domain.IsKind(err, domain.ErrInvalidVector),
		domain.IsKind(err, domain.ErrScanNotFound):
		return "rejected"
	case domain.IsKind(err, domain.ErrTemporary):
		return "retryable"
	}
	return "error"
}

func (m *WorkerMetrics) ObserveQueueLag(service string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(service).Observe(lag.Seconds())
}

func (m *WorkerMetrics) RecordTier(service, tier string) {
	m.tierTotal.WithLabelValues(service, tier).Inc()
}

func (m *WorkerMetrics) RecordVisualOutcome(service, category, outcome string) {
	m.visualOutcomes.WithLabelValues(service, category, outcome).Inc()
}
