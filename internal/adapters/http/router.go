package httpadapter

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kirillkom/flipscout/internal/config"
	"github.com/kirillkom/flipscout/internal/core/ports"
	"github.com/kirillkom/flipscout/internal/observability/metrics"
)

const (
	serviceName         = "flipscout-api"
	maxJSONBodyBytes    = 1 << 20
	multipartOverhead   = 1 << 20
	defaultUploadBytes  = 10 << 20
	defaultMaxInFlight  = 64
	defaultBackpressure = 250 * time.Millisecond
)

// Services are the inbound ports the router serves.
type Services struct {
	Decisions ports.DecisionService
	Intake    ports.ScanIntake
	Scans     ports.ScanReader
	Confirmer ports.ScanConfirmer
	Library   ports.LibraryIndexer
}

type Router struct {
	services         Services
	metrics          *metrics.HTTPServerMetrics
	logger           *zap.Logger
	limiter          *rate.Limiter
	maxUploadBytes   int64
	maxInFlight      int
	backpressureWait time.Duration
}

func NewRouter(cfg config.APIConfig, services Services, httpMetrics *metrics.HTTPServerMetrics, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	rt := &Router{
		services:         services,
		metrics:          httpMetrics,
		logger:           logger.Named("http"),
		maxUploadBytes:   cfg.MaxUploadBytes,
		maxInFlight:      cfg.MaxInFlight,
		backpressureWait: cfg.BackpressureWait,
	}
	if rt.maxUploadBytes <= 0 {
		rt.maxUploadBytes = defaultUploadBytes
	}
	if rt.maxInFlight <= 0 {
		rt.maxInFlight = defaultMaxInFlight
	}
	if rt.backpressureWait <= 0 {
		rt.backpressureWait = defaultBackpressure
	}
	if cfg.RateLimitRPS > 0 {
		burst := cfg.RateLimitBurst
		if burst <= 0 {
			burst = 1
		}
		rt.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), burst)
	}
	return rt
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	mux.HandleFunc("POST /v1/decisions", rt.decide)
	mux.HandleFunc("POST /v1/comps/summary", rt.summarizeComps)
	mux.HandleFunc("POST /v1/opportunities/rank", rt.rankOpportunities)

	mux.HandleFunc("POST /v1/scans", rt.submitScan)
	mux.HandleFunc("GET /v1/scans/{scan_id}", rt.getScan)
	mux.HandleFunc("POST /v1/scans/{scan_id}/confirm", rt.confirmScan)

	mux.HandleFunc("POST /v1/library/images", rt.indexLibraryImage)
	mux.HandleFunc("GET /v1/library/stats", rt.libraryStats)

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.maxInFlight, rt.backpressureWait)
	handler = rt.rateLimitMiddleware(handler)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(rt.logger, handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	body := http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		case errors.Is(err, io.EOF):
			writeError(w, http.StatusBadRequest, "request body is required")
		default:
			writeError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		}
		return false
	}
	return true
}

func (rt *Router) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		rt.logger.Error("request failed",
			zap.String("request_id", requestIDFromContext(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeError(w, status, err.Error())
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
