package httpadapter

import (
	"net/http"
	"strings"

	"github.com/kirillkom/flipscout/internal/core/domain"
	"github.com/kirillkom/flipscout/internal/core/ports"
)

const maxRankBatch = 500

func (rt *Router) decide(w http.ResponseWriter, r *http.Request) {
	var req ports.DecideRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	report, err := rt.services.Decisions.Decide(r.Context(), req)
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}

	if rt.metrics != nil {
		reason := ""
		if report.Decision.SkipReason != nil {
			reason = string(*report.Decision.SkipReason)
		}
		rt.metrics.RecordDecision(serviceName, string(report.Decision.Verdict), reason,
			report.Decision.MarginPercent, report.Decision.MarketValue != nil)
		if report.Comps != nil {
			rt.metrics.RecordComps(serviceName, string(report.Comps.Source), report.Comps.CleanedCount)
		}
	}
	writeJSON(w, http.StatusOK, report)
}

func (rt *Router) summarizeComps(w http.ResponseWriter, r *http.Request) {
	var req ports.CompsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Query) == "" && len(req.Manual) == 0 {
		writeError(w, http.StatusBadRequest, "query or comps are required")
		return
	}

	result, err := rt.services.Decisions.Summarize(r.Context(), req)
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordComps(serviceName, string(result.Source), result.CleanedCount)
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) rankOpportunities(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Opportunities []domain.Opportunity `json:"opportunities"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Opportunities) > maxRankBatch {
		writeError(w, http.StatusBadRequest, "too many opportunities in one request")
		return
	}

	ranked := rt.services.Decisions.Rank(r.Context(), req.Opportunities)
	if rt.metrics != nil {
		rt.metrics.RecordRankBatch(serviceName, len(req.Opportunities))
	}
	writeJSON(w, http.StatusOK, map[string]any{"ranked": ranked})
}
