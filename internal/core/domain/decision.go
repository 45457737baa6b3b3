package domain

type Verdict string

const (
	VerdictFlip Verdict = "flip"
	VerdictSkip Verdict = "skip"
)

type SkipReason string

const (
	SkipNoValidComps   SkipReason = "no_valid_comps"
	SkipMaxBuyTooLow   SkipReason = "max_buy_too_low"
	SkipNegativeProfit SkipReason = "negative_profit"
	SkipLowMargin      SkipReason = "low_margin"
)

// DataSourceConfidence describes how trustworthy the market value estimate is.
type DataSourceConfidence string

const (
	DataSourceUnspecified DataSourceConfidence = ""
	DataSourceHigh        DataSourceConfidence = "high"
	DataSourceMedium      DataSourceConfidence = "medium"
	DataSourceLow         DataSourceConfidence = "low"
	DataSourceNone        DataSourceConfidence = "none"
)

func (c DataSourceConfidence) Valid() bool {
	switch c {
	case DataSourceUnspecified, DataSourceHigh, DataSourceMedium, DataSourceLow, DataSourceNone:
		return true
	}
	return false
}

type DecisionInput struct {
	PurchasePrice    float64              `json:"purchase_price"`
	InboundShipping  float64              `json:"inbound_shipping"`
	MarketValue      *float64             `json:"market_value"`
	FeeRate          *float64             `json:"fee_rate,omitempty"`
	OutboundShipping float64              `json:"outbound_shipping"`
	DataSource       DataSourceConfidence `json:"data_source,omitempty"`
}

// GateCheck is one line of the decision trace.
type GateCheck struct {
	Gate   string `json:"gate"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

type DecisionResult struct {
	Verdict       Verdict     `json:"verdict"`
	MarginPercent float64     `json:"margin_percent"`
	NetProfit     float64     `json:"net_profit"`
	Confidence    int         `json:"confidence"`
	MaxBuy        float64     `json:"max_buy"`
	MarketValue   *float64    `json:"market_value"`
	PlatformFees  float64     `json:"platform_fees"`
	SkipReason    *SkipReason `json:"skip_reason,omitempty"`
	Trace         []GateCheck `json:"trace"`
}

func (r DecisionResult) IsFlip() bool {
	return r.Verdict == VerdictFlip
}
