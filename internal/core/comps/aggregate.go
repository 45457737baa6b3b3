package comps

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/kirillkom/flipscout/internal/core/domain"
)

const (
	DefaultIQRMultiplier  = 1.5
	DefaultMinReliable    = 3
	minSamplesForTrimming = 4
)

var DefaultExclusionKeywords = []string{
	"parts", "for parts", "repair", "broken", "bundle", "lot", "as is", "not working",
}

// Rules control which comps survive cleaning. A zero MaxAge disables the
// recency window; AsOf must be set when it is enabled so the result stays
// a function of its inputs.
type Rules struct {
	ExclusionKeywords []string
	IQRMultiplier     float64
	MinReliable       int
	MaxAge            time.Duration
	AsOf              time.Time
}

func DefaultRules() Rules {
	keywords := make([]string, len(DefaultExclusionKeywords))
	copy(keywords, DefaultExclusionKeywords)
	return Rules{
		ExclusionKeywords: keywords,
		IQRMultiplier:     DefaultIQRMultiplier,
		MinReliable:       DefaultMinReliable,
	}
}

func (r Rules) normalize() Rules {
	if r.IQRMultiplier <= 0 {
		r.IQRMultiplier = DefaultIQRMultiplier
	}
	if r.MinReliable <= 0 {
		r.MinReliable = DefaultMinReliable
	}
	return r
}

// Aggregate cleans a set of sold comps and summarizes the survivors.
func Aggregate(soldComps []domain.SoldComp, rules Rules, source domain.CompsSource) domain.CompsResult {
	rules = rules.normalize()
	keywords := normalizeKeywords(rules.ExclusionKeywords)

	var (
		all      []float64
		newLike  []float64
		used     []float64
		excluded int
	)
	for _, comp := range soldComps {
		if !usable(comp, rules) || excludedByTitle(comp.Title, keywords) {
			excluded++
			continue
		}
		total := comp.TotalPrice()
		all = append(all, total)
		if ClassifyCondition(comp.Condition) == domain.ConditionNewLike {
			newLike = append(newLike, total)
		} else {
			used = append(used, total)
		}
	}

	cleaned := trimOutliers(all, rules.IQRMultiplier)
	overall := summarize(cleaned)

	result := domain.CompsResult{
		Low:           overall.Low,
		Median:        overall.Median,
		High:          overall.High,
		SpreadPercent: overall.SpreadPercent,
		NewLike:       summarize(trimOutliers(newLike, rules.IQRMultiplier)),
		Used:          summarize(trimOutliers(used, rules.IQRMultiplier)),
		CleanedCount:  len(cleaned),
		RawCount:      len(soldComps),
		ExcludedCount: excluded,
		OutlierCount:  len(all) - len(cleaned),
		Source:        source,
	}
	switch {
	case result.CleanedCount == 0:
		result.Message = "no usable sold comps after filtering"
	case result.CleanedCount < rules.MinReliable:
		result.Message = fmt.Sprintf("only %d sold comps after filtering; market value is low reliability", result.CleanedCount)
	}
	return result
}

func usable(comp domain.SoldComp, rules Rules) bool {
	total := comp.TotalPrice()
	if math.IsNaN(total) || math.IsInf(total, 0) || comp.Price <= 0 || comp.Shipping.Cost() < 0 {
		return false
	}
	if rules.MaxAge > 0 && !rules.AsOf.IsZero() && !comp.SoldAt.IsZero() {
		if comp.SoldAt.Before(rules.AsOf.Add(-rules.MaxAge)) {
			return false
		}
	}
	return true
}

func normalizeKeywords(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	for _, keyword := range keywords {
		if normalized := normalizeText(keyword); normalized != "" {
			out = append(out, " "+normalized+" ")
		}
	}
	return out
}

// excludedByTitle matches whole words so "lot" does not hit "pilot".
func excludedByTitle(title string, keywords []string) bool {
	if title == "" || len(keywords) == 0 {
		return false
	}
	padded := " " + normalizeText(title) + " "
	for _, keyword := range keywords {
		if strings.Contains(padded, keyword) {
			return true
		}
	}
	return false
}

func normalizeText(text string) string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	return strings.Join(fields, " ")
}

// trimOutliers returns a sorted copy with values outside the Tukey fences removed.
func trimOutliers(values []float64, multiplier float64) []float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	if len(sorted) < minSamplesForTrimming {
		return sorted
	}

	q1 := quantile(sorted, 0.25)
	q3 := quantile(sorted, 0.75)
	iqr := q3 - q1
	lower, upper := q1-multiplier*iqr, q3+multiplier*iqr

	kept := make([]float64, 0, len(sorted))
	for _, v := range sorted {
		if v >= lower && v <= upper {
			kept = append(kept, v)
		}
	}
	return kept
}

// quantile uses linear interpolation between closest ranks on sorted input.
func quantile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := p * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func summarize(sorted []float64) domain.PriceStats {
	stats := domain.PriceStats{Count: len(sorted)}
	if len(sorted) == 0 {
		return stats
	}
	low := sorted[0]
	high := sorted[len(sorted)-1]
	mid := median(sorted)
	spread := 0.0
	if mid > 0 {
		spread = (high - low) / mid * 100
	}
	stats.Low = &low
	stats.High = &high
	stats.Median = &mid
	stats.SpreadPercent = &spread
	return stats
}
