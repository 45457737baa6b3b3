package domain

import "time"

// CompsSource records where a set of sold comps came from.
type CompsSource string

const (
	CompsSourceSoldAPI CompsSource = "sold_api"
	CompsSourceCached  CompsSource = "cached"
	CompsSourceManual  CompsSource = "manual"
)

// Shipping is either free or a fixed amount paid by the buyer.
type Shipping struct {
	Free   bool    `json:"free"`
	Amount float64 `json:"amount,omitempty"`
}

func FreeShipping() Shipping { return Shipping{Free: true} }

func ShippingOf(amount float64) Shipping { return Shipping{Amount: amount} }

// Cost returns the amount added to the sale price.
func (s Shipping) Cost() float64 {
	if s.Free {
		return 0
	}
	return s.Amount
}

type SoldComp struct {
	Price     float64   `json:"price"`
	Shipping  Shipping  `json:"shipping"`
	SoldAt    time.Time `json:"sold_at"`
	Condition string    `json:"condition"`
	Title     string    `json:"title,omitempty"`
	ImageURL  string    `json:"image_url,omitempty"`
}

// TotalPrice is what the buyer paid including shipping.
func (c SoldComp) TotalPrice() float64 {
	return c.Price + c.Shipping.Cost()
}

type ConditionBucket string

const (
	ConditionNewLike ConditionBucket = "new_like"
	ConditionUsed    ConditionBucket = "used"
)

// PriceStats are nullable summary statistics over one cleaned set of prices.
type PriceStats struct {
	Low           *float64 `json:"low"`
	Median        *float64 `json:"median"`
	High          *float64 `json:"high"`
	SpreadPercent *float64 `json:"spread_percent"`
	Count         int      `json:"count"`
}

type CompsResult struct {
	Query         string      `json:"query,omitempty"`
	Low           *float64    `json:"low"`
	Median        *float64    `json:"median"`
	High          *float64    `json:"high"`
	SpreadPercent *float64    `json:"spread_percent"`
	NewLike       PriceStats  `json:"new_like"`
	Used          PriceStats  `json:"used"`
	CleanedCount  int         `json:"cleaned_count"`
	RawCount      int         `json:"raw_count"`
	ExcludedCount int         `json:"excluded_count"`
	OutlierCount  int         `json:"outlier_count"`
	Source        CompsSource `json:"source"`
	Message       string      `json:"message,omitempty"`
}

// HasMarketValue reports whether the cleaned set produced a median.
func (r CompsResult) HasMarketValue() bool {
	return r.Median != nil
}
