package httpadapter

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/flipscout/internal/config"
	"github.com/kirillkom/flipscout/internal/core/domain"
	"github.com/kirillkom/flipscout/internal/core/ports"
)

func ptr(v float64) *float64 { return &v }

func serve(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)
	return res
}

func TestHealthzEndpoint(t *testing.T) {
	res := serve(newTestDeps().handler(config.APIConfig{}), http.MethodGet, "/healthz", "")

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if res.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected request id header")
	}
}

func TestDecideReturnsReportAndRecordsMetrics(t *testing.T) {
	deps := newTestDeps()
	reason := domain.SkipLowMargin
	deps.decisions.report = &ports.DecisionReport{
		Decision: domain.DecisionResult{
			Verdict:       domain.VerdictSkip,
			SkipReason:    &reason,
			MarginPercent: 15,
			MarketValue:   ptr(100),
		},
		Comps: &domain.CompsResult{Source: domain.CompsSourceCached, CleanedCount: 4},
	}
	h := deps.handler(config.APIConfig{})

	res := serve(h, http.MethodPost, "/v1/decisions", `{"input":{"purchase_price":60,"inbound_shipping":5,"outbound_shipping":7},"comps":{"query":"seiko skx007"}}`)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())

	var got ports.DecisionReport
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &got))
	assert.Equal(t, domain.VerdictSkip, got.Decision.Verdict)
	assert.Equal(t, 60.0, deps.decisions.got.Input.PurchasePrice)
	require.NotNil(t, deps.decisions.got.Comps)
	assert.Equal(t, "seiko skx007", deps.decisions.got.Comps.Query)

	registry := deps.metrics.Registry()
	count, err := testutil.GatherAndCount(registry, "flipscout_decision_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestDecideRejectsMalformedJSON(t *testing.T) {
	h := newTestDeps().handler(config.APIConfig{})

	for _, body := range []string{"", "{", `{"input":{"purchase_price":1},"bogus":true}`} {
		res := serve(h, http.MethodPost, "/v1/decisions", body)
		assert.Equal(t, http.StatusBadRequest, res.Code, body)
	}
}

func TestDecideMethodNotAllowed(t *testing.T) {
	res := serve(newTestDeps().handler(config.APIConfig{}), http.MethodGet, "/v1/decisions", "")
	assert.Equal(t, http.StatusMethodNotAllowed, res.Code)
}

func TestSummarizeCompsRequiresQueryOrComps(t *testing.T) {
	deps := newTestDeps()
	deps.decisions.comps = domain.CompsResult{Query: "rolex", Source: domain.CompsSourceSoldAPI, CleanedCount: 12}
	h := deps.handler(config.APIConfig{})

	res := serve(h, http.MethodPost, "/v1/comps/summary", `{"query":"  "}`)
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = serve(h, http.MethodPost, "/v1/comps/summary", `{"query":"rolex"}`)
	require.Equal(t, http.StatusOK, res.Code)
	var got domain.CompsResult
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &got))
	assert.Equal(t, 12, got.CleanedCount)
}

func TestRankOpportunities(t *testing.T) {
	h := newTestDeps().handler(config.APIConfig{})

	res := serve(h, http.MethodPost, "/v1/opportunities/rank", `{"opportunities":[{"id":"a","purchase_price":5},{"id":"b","purchase_price":9}]}`)
	require.Equal(t, http.StatusOK, res.Code)

	var got struct {
		Ranked []domain.RankedOpportunity `json:"ranked"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &got))
	require.Len(t, got.Ranked, 2)
	assert.Equal(t, "a", got.Ranked[0].Opportunity.ID)
}
