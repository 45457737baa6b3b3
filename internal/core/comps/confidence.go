package comps

import "github.com/kirillkom/flipscout/internal/core/domain"

const (
	highConfidenceMinComps  = 10
	highConfidenceMaxSpread = 60.0
)

// SourceConfidence grades how far a comps result can be trusted as a market value.
// Manually entered comps never grade above medium.
func SourceConfidence(result domain.CompsResult) domain.DataSourceConfidence {
	var grade domain.DataSourceConfidence
	switch {
	case result.Median == nil || result.CleanedCount == 0:
		return domain.DataSourceNone
	case result.CleanedCount >= highConfidenceMinComps && result.SpreadPercent != nil && *result.SpreadPercent <= highConfidenceMaxSpread:
		grade = domain.DataSourceHigh
	case result.CleanedCount >= DefaultMinReliable:
		grade = domain.DataSourceMedium
	default:
		grade = domain.DataSourceLow
	}
	if result.Source == domain.CompsSourceManual && grade == domain.DataSourceHigh {
		return domain.DataSourceMedium
	}
	return grade
}
