package decision

import (
	"fmt"
	"math"

	"github.com/kirillkom/flipscout/internal/core/domain"
)

// Engine applies the ordered buy/skip gates. It holds no mutable state and
// is safe for concurrent use.
type Engine struct {
	params Params
}

func NewEngine(params Params) (*Engine, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Engine{params: params}, nil
}

func (e *Engine) Params() Params {
	return e.params
}

// Evaluate runs the engine with DefaultParams.
func Evaluate(in domain.DecisionInput) (domain.DecisionResult, error) {
	return (&Engine{params: DefaultParams()}).Evaluate(in)
}

// Evaluate returns a verdict for one purchase. Unprofitable inputs produce a
// skip result; malformed inputs produce an error wrapping domain.ErrInvalidInput.
func (e *Engine) Evaluate(in domain.DecisionInput) (domain.DecisionResult, error) {
	feeRate, err := e.validate(in)
	if err != nil {
		return domain.DecisionResult{}, err
	}

	result := domain.DecisionResult{
		MarketValue: copyFloat(in.MarketValue),
		Trace:       make([]domain.GateCheck, 0, 4),
	}

	if in.MarketValue == nil || *in.MarketValue <= 0 {
		result.Trace = append(result.Trace, domain.GateCheck{
			Gate:   string(domain.SkipNoValidComps),
			Passed: false,
			Detail: describeMissingMarketValue(in.MarketValue),
		})
		return skip(result, domain.SkipNoValidComps), nil
	}
	marketValue := *in.MarketValue
	result.Trace = append(result.Trace, domain.GateCheck{
		Gate:   string(domain.SkipNoValidComps),
		Passed: true,
		Detail: fmt.Sprintf("market value %.2f", marketValue),
	})

	fees := marketValue * feeRate
	targetProfit := marketValue * e.params.TargetMarginRate
	headroom := marketValue - fees - in.OutboundShipping - e.params.FixedCosts - in.InboundShipping - targetProfit
	// Gates compare unrounded amounts; rounding is for the reported values only.
	maxBuy := math.Floor(e.params.SafetyFactor*headroom + floatSlack)
	netProfit := marketValue - (in.PurchasePrice + in.InboundShipping) - fees - in.OutboundShipping
	marginPercent := netProfit / marketValue * 100

	result.PlatformFees = roundCents(fees)
	result.MaxBuy = math.Max(maxBuy, 0)
	result.NetProfit = roundCents(netProfit)
	result.MarginPercent = roundCents(marginPercent)
	result.Confidence = e.confidence(in.DataSource, marginPercent)

	if maxBuy <= 0 {
		result.Trace = append(result.Trace, domain.GateCheck{
			Gate:   string(domain.SkipMaxBuyTooLow),
			Passed: false,
			Detail: fmt.Sprintf("max buy %.0f after %.0f%% safety factor leaves no room to buy", maxBuy, e.params.SafetyFactor*100),
		})
		return skip(result, domain.SkipMaxBuyTooLow), nil
	}
	result.Trace = append(result.Trace, domain.GateCheck{
		Gate:   string(domain.SkipMaxBuyTooLow),
		Passed: true,
		Detail: fmt.Sprintf("max buy %.0f", maxBuy),
	})

	if netProfit <= floatSlack {
		result.Trace = append(result.Trace, domain.GateCheck{
			Gate:   string(domain.SkipNegativeProfit),
			Passed: false,
			Detail: fmt.Sprintf("net profit %.4f is not positive", netProfit),
		})
		return skip(result, domain.SkipNegativeProfit), nil
	}
	result.Trace = append(result.Trace, domain.GateCheck{
		Gate:   string(domain.SkipNegativeProfit),
		Passed: true,
		Detail: fmt.Sprintf("net profit %.2f", netProfit),
	})

	if marginPercent < e.params.MinMarginPercent-floatSlack {
		result.Trace = append(result.Trace, domain.GateCheck{
			Gate:   string(domain.SkipLowMargin),
			Passed: false,
			Detail: fmt.Sprintf("margin %.4f%% below %.0f%%", marginPercent, e.params.MinMarginPercent),
		})
		return skip(result, domain.SkipLowMargin), nil
	}
	result.Trace = append(result.Trace, domain.GateCheck{
		Gate:   string(domain.SkipLowMargin),
		Passed: true,
		Detail: fmt.Sprintf("margin %.2f%% meets %.0f%%", marginPercent, e.params.MinMarginPercent),
	})

	result.Verdict = domain.VerdictFlip
	return result, nil
}

func (e *Engine) validate(in domain.DecisionInput) (float64, error) {
	if invalidAmount(in.PurchasePrice) {
		return 0, fmt.Errorf("%w: purchase price must be a finite non-negative number", domain.ErrInvalidInput)
	}
	if invalidAmount(in.InboundShipping) {
		return 0, fmt.Errorf("%w: inbound shipping must be a finite non-negative number", domain.ErrInvalidInput)
	}
	if invalidAmount(in.OutboundShipping) {
		return 0, fmt.Errorf("%w: outbound shipping must be a finite non-negative number", domain.ErrInvalidInput)
	}
	if in.MarketValue != nil && (math.IsNaN(*in.MarketValue) || math.IsInf(*in.MarketValue, 0)) {
		return 0, fmt.Errorf("%w: market value must be finite", domain.ErrInvalidInput)
	}
	if !in.DataSource.Valid() {
		return 0, fmt.Errorf("%w: unknown data source confidence %q", domain.ErrInvalidInput, in.DataSource)
	}
	feeRate := e.params.DefaultFeeRate
	if in.FeeRate != nil {
		feeRate = *in.FeeRate
	}
	if math.IsNaN(feeRate) || feeRate < 0 || feeRate >= 1 {
		return 0, fmt.Errorf("%w: fee rate %v outside [0,1)", domain.ErrInvalidInput, feeRate)
	}
	return feeRate, nil
}

// confidence grows with the margin's distance from the threshold in either
// direction and is reduced for weaker market value sources.
func (e *Engine) confidence(source domain.DataSourceConfidence, marginPercent float64) int {
	if source == domain.DataSourceNone {
		return 0
	}
	base := clamp(50+2*math.Abs(marginPercent-e.params.MinMarginPercent), 0, 100)
	score := int(math.Round(base))
	switch source {
	case domain.DataSourceMedium:
		score -= e.params.MediumSourcePenalty
	case domain.DataSourceLow:
		score -= e.params.LowSourcePenalty
	}
	if score < e.params.ConfidenceFloor {
		score = e.params.ConfidenceFloor
	}
	return score
}

func skip(result domain.DecisionResult, reason domain.SkipReason) domain.DecisionResult {
	result.Verdict = domain.VerdictSkip
	result.SkipReason = &reason
	return result
}

func describeMissingMarketValue(mv *float64) string {
	if mv == nil {
		return "no market value estimate"
	}
	return fmt.Sprintf("market value %.2f is not positive", *mv)
}

func invalidAmount(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0) || v < 0
}

// floatSlack absorbs binary floating point error in sums of cent amounts. It
// is orders of magnitude below the smallest real difference such sums produce.
const floatSlack = 1e-9

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}
