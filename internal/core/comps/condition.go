package comps

import (
	"strings"

	"github.com/kirillkom/flipscout/internal/core/domain"
)

// newLikeConditions lists marketplace condition strings that price like new stock.
var newLikeConditions = map[string]struct{}{
	"new":                      {},
	"brand new":                {},
	"new with tags":            {},
	"new with box":             {},
	"new without tags":         {},
	"new other":                {},
	"factory sealed":           {},
	"sealed":                   {},
	"nib":                      {},
	"nwt":                      {},
	"bnib":                     {},
	"like new":                 {},
	"like_new":                 {},
	"open box":                 {},
	"mint":                     {},
	"manufacturer refurbished": {},
	"certified refurbished":    {},
}

// ClassifyCondition maps a raw condition string onto a price bucket.
// Anything unrecognized is treated as used.
func ClassifyCondition(raw string) domain.ConditionBucket {
	normalized := strings.Join(strings.Fields(strings.ToLower(strings.ReplaceAll(raw, "-", " "))), " ")
	if _, ok := newLikeConditions[normalized]; ok {
		return domain.ConditionNewLike
	}
	if _, ok := newLikeConditions[strings.ReplaceAll(normalized, " ", "_")]; ok {
		return domain.ConditionNewLike
	}
	return domain.ConditionUsed
}
