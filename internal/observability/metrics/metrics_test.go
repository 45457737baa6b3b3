package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/flipscout/internal/core/domain"
)

func TestHTTPMiddlewareNormalizesScanPaths(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	handler := m.Middleware("api", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	for _, path := range []string{"/v1/scans/a", "/v1/scans/b", "/v1/scans/c/confirm"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requestTotal.WithLabelValues("api", http.MethodGet, "/v1/scans/{scan_id}", "202")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestTotal.WithLabelValues("api", http.MethodGet, "/v1/scans/{scan_id}/confirm", "202")))
}

func TestRecordDecisionLabels(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	m.RecordDecision("api", "flip", "", 64.1, true)
	m.RecordDecision("api", "skip", "no_valid_comps", 0, false)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.decisionsTotal.WithLabelValues("api", "flip", "none")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.decisionsTotal.WithLabelValues("api", "skip", "no_valid_comps")))

	count, err := testutil.GatherAndCount(m.Registry(), "flipscout_decision_margin_percent")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestWorkerMetricsTrackInFlight(t *testing.T) {
	m := NewWorkerMetrics("worker")
	m.StartScan()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.processInFlight))

	m.FinishScan("worker", 10*time.Millisecond, errors.New("boom"))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.processInFlight))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.processTotal.WithLabelValues("worker", "error")))

	m.RecordTier("worker", "HIGH")
	m.RecordVisualOutcome("worker", "watch", "auto_selected")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tierTotal.WithLabelValues("worker", "HIGH")))
}

func TestScanOutcome(t *testing.T) {
	assert.Equal(t, "success", scanOutcome(nil))
	assert.Equal(t, "rejected", scanOutcome(domain.WrapError(domain.ErrInvalidVector, "embed", errors.New("zero norm"))))
	assert.Equal(t, "rejected", scanOutcome(domain.ErrScanNotFound))
	assert.Equal(t, "retryable", scanOutcome(domain.WrapError(domain.ErrTemporary, "ollama", errors.New("503"))))
	assert.Equal(t, "error", scanOutcome(errors.New("boom")))
}
