package httpadapter

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/flipscout/internal/config"
)

func TestRateLimitRejectsBurstAndCountsIt(t *testing.T) {
	handler := newTestDeps().handler(config.APIConfig{RateLimitRPS: 1, RateLimitBurst: 1})

	first := serve(handler, http.MethodGet, "/v1/library/stats?category=watch", "")
	require.Equal(t, http.StatusOK, first.Code)

	limited := serve(handler, http.MethodGet, "/v1/library/stats?category=watch", "")
	require.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.NotEmpty(t, limited.Header().Get("Retry-After"))

	// Probes and scrapes stay reachable while clients are throttled.
	assert.Equal(t, http.StatusOK, serve(handler, http.MethodGet, "/healthz", "").Code)
	scrape := serve(handler, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, scrape.Code)
	assert.Contains(t, scrape.Body.String(), `flipscout_http_rate_limited_total{path="/v1/library/stats",service="flipscout-api"} 1`)
}

func TestBackpressureShedsLoadWhenSaturated(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan int, 1)

	slowScan := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		started <- struct{}{}
		<-release
		w.WriteHeader(http.StatusAccepted)
	})
	handler := backpressureMiddleware(slowScan, 1, 20*time.Millisecond)

	go func() {
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/v1/scans", nil))
		done <- res.Code
	}()
	<-started

	shed := httptest.NewRecorder()
	handler.ServeHTTP(shed, httptest.NewRequest(http.MethodPost, "/v1/scans", nil))
	require.Equal(t, http.StatusServiceUnavailable, shed.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(shed.Body.Bytes(), &body))
	assert.NotEmpty(t, body["error"])

	close(release)
	select {
	case code := <-done:
		assert.Equal(t, http.StatusAccepted, code)
	case <-time.After(time.Second):
		t.Fatal("in-flight scan submission never completed")
	}
}

func TestBackpressureDisabledWithoutLimit(t *testing.T) {
	calls := 0
	handler := backpressureMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusNoContent)
	}), 0, time.Millisecond)

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/library/stats", nil))
	assert.Equal(t, http.StatusNoContent, res.Code)
	assert.Equal(t, 1, calls)
}

func TestRequestIDEchoedOrGenerated(t *testing.T) {
	handler := newTestDeps().handler(config.APIConfig{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "scan-req-123")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	assert.Equal(t, "scan-req-123", res.Header().Get(requestIDHeader))

	generated := serve(handler, http.MethodGet, "/healthz", "")
	assert.Len(t, generated.Header().Get(requestIDHeader), 36)
}
