package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "flipscout"

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge
	rateLimited     *prometheus.CounterVec

	decisionsTotal  *prometheus.CounterVec
	decisionMargin  *prometheus.HistogramVec
	compsTotal      *prometheus.CounterVec
	compsCleaned    *prometheus.HistogramVec
	scansSubmitted  *prometheus.CounterVec
	libraryIndexed  *prometheus.CounterVec
	opportunityRank *prometheus.HistogramVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	rateLimited := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		},
		[]string{"service", "path"},
	)
	decisionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decision",
			Name:      "total",
			Help:      "Decisions by verdict and skip reason.",
		},
		[]string{"service", "verdict", "reason"},
	)
	decisionMargin := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "decision",
			Name:      "margin_percent",
			Help:      "Distribution of computed margins for decisions with a market value.",
			Buckets:   []float64{-50, -25, 0, 10, 20, 25, 35, 50, 75, 100, 200},
		},
		[]string{"service", "verdict"},
	)
	compsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "comps",
			Name:      "lookups_total",
			Help:      "Comps resolutions by provenance.",
		},
		[]string{"service", "source"},
	)
	compsCleaned := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "comps",
			Name:      "cleaned_count",
			Help:      "Sold comps surviving cleaning per lookup.",
			Buckets:   []float64{0, 1, 2, 3, 5, 10, 20, 50},
		},
		[]string{"service"},
	)
	scansSubmitted := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "submitted_total",
			Help:      "Scans accepted by input kind.",
		},
		[]string{"service", "input"},
	)
	libraryIndexed := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "library",
			Name:      "images_indexed_total",
			Help:      "Reference images added to the visual library.",
		},
		[]string{"service", "category"},
	)
	opportunityRank := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rank",
			Name:      "batch_size",
			Help:      "Opportunities per ranking request.",
			Buckets:   []float64{1, 2, 5, 10, 20, 50, 100},
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		rateLimited,
		decisionsTotal,
		decisionMargin,
		compsTotal,
		compsCleaned,
		scansSubmitted,
		libraryIndexed,
		opportunityRank,
	)

	return &HTTPServerMetrics{
		registry:        registry,
		requestTotal:    requestTotal,
		requestDuration: requestDuration,
		requestInFlight: requestInFlight,
		rateLimited:     rateLimited,
		decisionsTotal:  decisionsTotal,
		decisionMargin:  decisionMargin,
		compsTotal:      compsTotal,
		compsCleaned:    compsCleaned,
		scansSubmitted:  scansSubmitted,
		libraryIndexed:  libraryIndexed,
		opportunityRank: opportunityRank,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry is exposed for tests.
func (m *HTTPServerMetrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// normalizePath keeps scan ids out of label values.
func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/scans/") && strings.HasSuffix(path, "/confirm"):
		return "/v1/scans/{scan_id}/confirm"
	case strings.HasPrefix(path, "/v1/scans/"):
		return "/v1/scans/{scan_id}"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordRateLimited(service, path string) {
	m.rateLimited.WithLabelValues(service, normalizePath(path)).Inc()
}

func (m *HTTPServerMetrics) RecordDecision(service, verdict, reason string, marginPercent float64, hasMarketValue bool) {
	if reason == "" {
		reason = "none"
	}
	m.decisionsTotal.WithLabelValues(service, verdict, reason).Inc()
	if hasMarketValue {
		m.decisionMargin.WithLabelValues(service, verdict).Observe(marginPercent)
	}
}

func (m *HTTPServerMetrics) RecordComps(service, source string, cleaned int) {
	if source == "" {
		source = "unknown"
	}
	m.compsTotal.WithLabelValues(service, source).Inc()
	m.compsCleaned.WithLabelValues(service).Observe(float64(cleaned))
}

func (m *HTTPServerMetrics) RecordScanSubmitted(service, input string) {
	m.scansSubmitted.WithLabelValues(service, input).Inc()
}

func (m *HTTPServerMetrics) RecordLibraryImage(service, category string) {
	m.libraryIndexed.WithLabelValues(service, category).Inc()
}

func (m *HTTPServerMetrics) RecordRankBatch(service string, size int) {
	m.opportunityRank.WithLabelValues(service).Observe(float64(size))
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}
