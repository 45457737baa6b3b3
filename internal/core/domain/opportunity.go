package domain

// Opportunity is one evaluated item competing for the reseller's budget.
type Opportunity struct {
	ID            string         `json:"id"`
	Title         string         `json:"title,omitempty"`
	PurchasePrice float64        `json:"purchase_price"`
	Decision      DecisionResult `json:"decision"`
	Comps         *CompsResult   `json:"comps,omitempty"`
}

type FlipScoreComponents struct {
	ROI        float64 `json:"roi"`
	CompsData  float64 `json:"comps_data"`
	Profit     float64 `json:"profit"`
	SpreadRisk float64 `json:"spread_risk"`
}

type FlipScore struct {
	Score       float64             `json:"score"`
	ROIMultiple float64             `json:"roi_multiple"`
	Components  FlipScoreComponents `json:"components"`
	Badges      []string            `json:"badges,omitempty"`
}

type RankedOpportunity struct {
	Rank        int         `json:"rank"`
	Opportunity Opportunity `json:"opportunity"`
	FlipScore   FlipScore   `json:"flip_score"`
}
