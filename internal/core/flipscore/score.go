package flipscore

import (
	"math"
	"sort"

	"github.com/kirillkom/flipscout/internal/core/domain"
)

const (
	WeightROI        = 0.40
	WeightCompsData  = 0.25
	WeightProfit     = 0.20
	WeightSpreadRisk = 0.15

	// maxROIMultiple stands in for an unbounded return on a free item.
	maxROIMultiple = 3.0
	unknownSpread  = 50.0
)

type point struct{ x, y float64 }

var (
	roiCurve    = []point{{0, 0}, {0.5, 40}, {1, 70}, {2, 90}, {3, 100}}
	profitCurve = []point{{0, 0}, {5, 20}, {15, 50}, {40, 80}, {100, 100}}
	spreadCurve = []point{{0, 100}, {20, 100}, {50, 70}, {100, 40}, {200, 10}, {300, 0}}
)

var sourceWeight = map[domain.CompsSource]float64{
	domain.CompsSourceSoldAPI: 1.0,
	domain.CompsSourceCached:  0.9,
	domain.CompsSourceManual:  0.7,
}

// Score rates one opportunity for ordering. It never changes the verdict.
func Score(op domain.Opportunity) domain.FlipScore {
	roi := roiMultiple(op.PurchasePrice, op.Decision.NetProfit)
	components := domain.FlipScoreComponents{
		ROI:        interpolate(roi, roiCurve),
		CompsData:  compsDataScore(op),
		Profit:     interpolate(op.Decision.NetProfit, profitCurve),
		SpreadRisk: spreadScore(op.Comps),
	}
	score := WeightROI*components.ROI +
		WeightCompsData*components.CompsData +
		WeightProfit*components.Profit +
		WeightSpreadRisk*components.SpreadRisk

	return domain.FlipScore{
		Score:       math.Round(clamp(score)*10) / 10,
		ROIMultiple: math.Round(roi*100) / 100,
		Components:  components,
		Badges:      badges(op, roi),
	}
}

// Rank orders opportunities: flips before skips, then by score, then by id.
func Rank(ops []domain.Opportunity) []domain.RankedOpportunity {
	ranked := make([]domain.RankedOpportunity, 0, len(ops))
	for _, op := range ops {
		ranked = append(ranked, domain.RankedOpportunity{Opportunity: op, FlipScore: Score(op)})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Opportunity.Decision.IsFlip() != b.Opportunity.Decision.IsFlip() {
			return a.Opportunity.Decision.IsFlip()
		}
		if a.FlipScore.Score != b.FlipScore.Score {
			return a.FlipScore.Score > b.FlipScore.Score
		}
		return a.Opportunity.ID < b.Opportunity.ID
	})
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked
}

func roiMultiple(purchase, netProfit float64) float64 {
	if netProfit <= 0 {
		return 0
	}
	if purchase <= 0 {
		return maxROIMultiple
	}
	return netProfit / purchase
}

func compsDataScore(op domain.Opportunity) float64 {
	if op.Comps == nil {
		return float64(op.Decision.Confidence)
	}
	weight, ok := sourceWeight[op.Comps.Source]
	if !ok {
		weight = sourceWeight[domain.CompsSourceManual]
	}
	return clamp(countScore(op.Comps.CleanedCount) * weight)
}

func countScore(n int) float64 {
	switch {
	case n <= 0:
		return 0
	case n < 3:
		return 30
	case n < 5:
		return 55
	case n < 10:
		return 75
	case n < 20:
		return 90
	default:
		return 100
	}
}

func spreadScore(comps *domain.CompsResult) float64 {
	if comps == nil || comps.SpreadPercent == nil {
		return unknownSpread
	}
	return interpolate(*comps.SpreadPercent, spreadCurve)
}

func badges(op domain.Opportunity, roi float64) []string {
	var out []string
	switch {
	case roi >= 3:
		out = append(out, "3x+ return")
	case roi >= 2:
		out = append(out, "2x+ return")
	}
	if op.Comps != nil && op.Comps.SpreadPercent != nil {
		switch spread := *op.Comps.SpreadPercent; {
		case spread <= 20:
			out = append(out, "tight spread")
		case spread > 100:
			out = append(out, "volatile pricing")
		}
	}
	if op.Comps != nil && op.Comps.CleanedCount >= 10 {
		out = append(out, "well-comped")
	}
	if op.Decision.NetProfit >= 50 {
		out = append(out, "$50+ profit")
	}
	return out
}

// interpolate is piecewise linear over ascending x and clamps at both ends.
func interpolate(x float64, curve []point) float64 {
	if math.IsNaN(x) || x <= curve[0].x {
		return curve[0].y
	}
	for i := 1; i < len(curve); i++ {
		if x <= curve[i].x {
			lo, hi := curve[i-1], curve[i]
			return lo.y + (x-lo.x)/(hi.x-lo.x)*(hi.y-lo.y)
		}
	}
	return curve[len(curve)-1].y
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}
