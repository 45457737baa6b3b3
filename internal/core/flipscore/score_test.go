package flipscore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/flipscout/internal/core/domain"
)

func spread(v float64) *float64 { return &v }

func flipOpportunity(id string, purchase, netProfit float64, comps *domain.CompsResult) domain.Opportunity {
	return domain.Opportunity{
		ID:            id,
		PurchasePrice: purchase,
		Decision:      domain.DecisionResult{Verdict: domain.VerdictFlip, NetProfit: netProfit, Confidence: 80},
		Comps:         comps,
	}
}

func TestScoreStrongOpportunity(t *testing.T) {
	comps := &domain.CompsResult{CleanedCount: 25, SpreadPercent: spread(10), Source: domain.CompsSourceSoldAPI}
	got := Score(flipOpportunity("a", 20, 120, comps))

	assert.Equal(t, 100.0, got.Score)
	assert.Equal(t, 6.0, got.ROIMultiple)
	assert.Equal(t, []string{"3x+ return", "tight spread", "well-comped", "$50+ profit"}, got.Badges)
}

func TestScoreComponentsAndWeights(t *testing.T) {
	comps := &domain.CompsResult{CleanedCount: 4, SpreadPercent: spread(50), Source: domain.CompsSourceSoldAPI}
	got := Score(flipOpportunity("b", 20, 10, comps))

	assert.InDelta(t, 40, got.Components.ROI, 0.0001)
	assert.InDelta(t, 55, got.Components.CompsData, 0.0001)
	assert.InDelta(t, 35, got.Components.Profit, 0.0001)
	assert.InDelta(t, 70, got.Components.SpreadRisk, 0.0001)
	// 0.4*40 + 0.25*55 + 0.2*35 + 0.15*70
	assert.InDelta(t, 47.25, got.Score, 0.06)
	assert.Empty(t, got.Badges)
}

func TestScoreUsesDecisionConfidenceWithoutComps(t *testing.T) {
	got := Score(flipOpportunity("c", 10, 10, nil))

	assert.InDelta(t, 80, got.Components.CompsData, 0.0001)
	assert.InDelta(t, unknownSpread, got.Components.SpreadRisk, 0.0001)
}

func TestScoreLossIsZeroROI(t *testing.T) {
	op := domain.Opportunity{ID: "d", PurchasePrice: 50, Decision: domain.DecisionResult{Verdict: domain.VerdictSkip, NetProfit: -20}}
	got := Score(op)

	assert.Equal(t, 0.0, got.Components.ROI)
	assert.Equal(t, 0.0, got.Components.Profit)
	assert.GreaterOrEqual(t, got.Score, 0.0)
}

func TestScoreVolatileBadge(t *testing.T) {
	comps := &domain.CompsResult{CleanedCount: 3, SpreadPercent: spread(180), Source: domain.CompsSourceManual}
	got := Score(flipOpportunity("e", 100, 250, comps))

	assert.Contains(t, got.Badges, "2x+ return")
	assert.Contains(t, got.Badges, "volatile pricing")
	assert.InDelta(t, 55*0.7, got.Components.CompsData, 0.0001)
}

func TestRankKeepsVerdictsAndPutsFlipsFirst(t *testing.T) {
	skip := domain.SkipLowMargin
	ops := []domain.Opportunity{
		{ID: "skip-rich", PurchasePrice: 1, Decision: domain.DecisionResult{Verdict: domain.VerdictSkip, NetProfit: 500, SkipReason: &skip}},
		flipOpportunity("flip-small", 50, 15, nil),
		flipOpportunity("flip-big", 20, 100, nil),
		flipOpportunity("flip-big-twin", 20, 100, nil),
	}

	ranked := Rank(ops)

	require.Len(t, ranked, 4)
	ids := []string{ranked[0].Opportunity.ID, ranked[1].Opportunity.ID, ranked[2].Opportunity.ID, ranked[3].Opportunity.ID}
	assert.Equal(t, []string{"flip-big", "flip-big-twin", "flip-small", "skip-rich"}, ids)
	assert.Equal(t, 1, ranked[0].Rank)
	assert.Equal(t, domain.VerdictSkip, ranked[3].Opportunity.Decision.Verdict)
	assert.Greater(t, ranked[3].FlipScore.Score, ranked[2].FlipScore.Score)
}
