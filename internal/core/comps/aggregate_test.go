package comps

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/flipscout/internal/core/domain"
)

func sold(price float64, condition, title string) domain.SoldComp {
	return domain.SoldComp{Price: price, Shipping: domain.FreeShipping(), Condition: condition, Title: title}
}

func TestAggregateEmptyHasNullStats(t *testing.T) {
	result := Aggregate(nil, DefaultRules(), domain.CompsSourceSoldAPI)

	assert.Nil(t, result.Median)
	assert.Nil(t, result.Low)
	assert.Nil(t, result.High)
	assert.Nil(t, result.SpreadPercent)
	assert.Equal(t, 0, result.CleanedCount)
	assert.NotEmpty(t, result.Message)
	assert.Equal(t, domain.CompsSourceSoldAPI, result.Source)
}

func TestAggregateTrimsOutliers(t *testing.T) {
	input := []domain.SoldComp{
		sold(100, "used", "Seiko SKX007"),
		sold(102, "used", "Seiko SKX007 diver"),
		sold(98, "used", "Seiko SKX007 jubilee"),
		sold(101, "used", "Seiko SKX007 box"),
		sold(99, "used", "Seiko SKX007 papers"),
		sold(500, "used", "Seiko SKX007 gold"),
	}

	result := Aggregate(input, DefaultRules(), domain.CompsSourceSoldAPI)

	require.NotNil(t, result.Median)
	assert.Equal(t, 5, result.CleanedCount)
	assert.Equal(t, 6, result.RawCount)
	assert.Equal(t, 1, result.OutlierCount)
	assert.InDelta(t, 100, *result.Median, 0.0001)
	assert.InDelta(t, 98, *result.Low, 0.0001)
	assert.InDelta(t, 102, *result.High, 0.0001)
	assert.InDelta(t, 4, *result.SpreadPercent, 0.0001)
	assert.Empty(t, result.Message)
}

func TestAggregateAddsShippingUnlessFree(t *testing.T) {
	input := []domain.SoldComp{
		{Price: 20, Shipping: domain.ShippingOf(5), Condition: "used"},
		{Price: 25, Shipping: domain.FreeShipping(), Condition: "used"},
		{Price: 22, Shipping: domain.ShippingOf(3), Condition: "used"},
	}

	result := Aggregate(input, DefaultRules(), domain.CompsSourceSoldAPI)

	require.NotNil(t, result.Median)
	assert.InDelta(t, 25, *result.Median, 0.0001)
	assert.InDelta(t, 0, *result.SpreadPercent, 0.0001)
}

func TestAggregateExcludesKeywordsByWord(t *testing.T) {
	input := []domain.SoldComp{
		sold(40, "used", "Lot of 3 vintage watches"),
		sold(45, "used", "Pilot chronograph watch"),
		sold(10, "used", "Watch for parts / repair"),
		sold(50, "used", "Bundle: watch + straps"),
		sold(47, "used", "Pilot watch 42mm"),
	}

	result := Aggregate(input, DefaultRules(), domain.CompsSourceSoldAPI)

	assert.Equal(t, 3, result.ExcludedCount)
	assert.Equal(t, 2, result.CleanedCount)
	require.NotNil(t, result.Median)
	assert.InDelta(t, 46, *result.Median, 0.0001)
	assert.Contains(t, result.Message, "low reliability")
}

func TestAggregateStratifiesByCondition(t *testing.T) {
	input := []domain.SoldComp{
		sold(200, "New with tags", "Jordan 1"),
		sold(210, "Brand New", "Jordan 1"),
		sold(190, "NIB", "Jordan 1"),
		sold(120, "Pre-owned", "Jordan 1"),
		sold(110, "used", "Jordan 1"),
		sold(130, "", "Jordan 1"),
	}

	result := Aggregate(input, DefaultRules(), domain.CompsSourceSoldAPI)

	require.NotNil(t, result.NewLike.Median)
	require.NotNil(t, result.Used.Median)
	assert.Equal(t, 3, result.NewLike.Count)
	assert.Equal(t, 3, result.Used.Count)
	assert.InDelta(t, 200, *result.NewLike.Median, 0.0001)
	assert.InDelta(t, 120, *result.Used.Median, 0.0001)
	assert.InDelta(t, 160, *result.Median, 0.0001)
}

func TestAggregateIgnoresInputOrder(t *testing.T) {
	input := []domain.SoldComp{
		sold(12, "used", "a"), sold(15, "new", "b"), sold(14, "used", "c"),
		sold(90, "used", "d"), sold(13, "used", "e"), sold(16, "new", "f"),
	}
	reversed := make([]domain.SoldComp, len(input))
	for i := range input {
		reversed[len(input)-1-i] = input[i]
	}

	assert.Equal(t, Aggregate(input, DefaultRules(), domain.CompsSourceSoldAPI), Aggregate(reversed, DefaultRules(), domain.CompsSourceSoldAPI))
}

func TestAggregateDoesNotMutateInput(t *testing.T) {
	input := []domain.SoldComp{sold(30, "used", "x"), sold(10, "used", "y"), sold(20, "used", "z")}
	Aggregate(input, DefaultRules(), domain.CompsSourceManual)
	assert.Equal(t, 30.0, input[0].Price)
	assert.Equal(t, 10.0, input[1].Price)
}

func TestAggregateRecencyWindow(t *testing.T) {
	asOf := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	input := []domain.SoldComp{
		{Price: 50, Shipping: domain.FreeShipping(), SoldAt: asOf.AddDate(0, 0, -5)},
		{Price: 55, Shipping: domain.FreeShipping(), SoldAt: asOf.AddDate(0, 0, -20)},
		{Price: 10, Shipping: domain.FreeShipping(), SoldAt: asOf.AddDate(-1, 0, 0)},
	}
	rules := DefaultRules()
	rules.MaxAge = 90 * 24 * time.Hour
	rules.AsOf = asOf

	result := Aggregate(input, rules, domain.CompsSourceSoldAPI)

	assert.Equal(t, 2, result.CleanedCount)
	assert.Equal(t, 1, result.ExcludedCount)
}

func TestAggregateMedianNullIffEmptyProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	titles := []string{"clean listing", "for parts", "nice item", "bundle deal", ""}
	for i := 0; i < 500; i++ {
		n := rng.Intn(12)
		input := make([]domain.SoldComp, 0, n)
		for j := 0; j < n; j++ {
			input = append(input, domain.SoldComp{
				Price:     rng.Float64()*400 - 20,
				Shipping:  domain.ShippingOf(rng.Float64() * 15),
				Condition: []string{"new", "used"}[rng.Intn(2)],
				Title:     titles[rng.Intn(len(titles))],
			})
		}

		result := Aggregate(input, DefaultRules(), domain.CompsSourceSoldAPI)

		assert.Equal(t, result.CleanedCount == 0, result.Median == nil)
		if result.Low != nil && result.High != nil {
			require.NotNil(t, result.SpreadPercent)
			assert.GreaterOrEqual(t, *result.SpreadPercent, 0.0)
			assert.LessOrEqual(t, *result.Low, *result.Median)
			assert.LessOrEqual(t, *result.Median, *result.High)
		}
	}
}

func TestClassifyCondition(t *testing.T) {
	assert.Equal(t, domain.ConditionNewLike, ClassifyCondition(" Brand New "))
	assert.Equal(t, domain.ConditionNewLike, ClassifyCondition("like-new"))
	assert.Equal(t, domain.ConditionNewLike, ClassifyCondition("like_new"))
	assert.Equal(t, domain.ConditionUsed, ClassifyCondition("Pre-Owned"))
	assert.Equal(t, domain.ConditionUsed, ClassifyCondition("mystery"))
}

func TestSourceConfidence(t *testing.T) {
	spread := func(v float64) *float64 { return &v }
	median := 100.0

	cases := []struct {
		name   string
		result domain.CompsResult
		want   domain.DataSourceConfidence
	}{
		{"empty", domain.CompsResult{}, domain.DataSourceNone},
		{"thin", domain.CompsResult{Median: &median, CleanedCount: 2, SpreadPercent: spread(5)}, domain.DataSourceLow},
		{"some", domain.CompsResult{Median: &median, CleanedCount: 5, SpreadPercent: spread(5)}, domain.DataSourceMedium},
		{"deep", domain.CompsResult{Median: &median, CleanedCount: 12, SpreadPercent: spread(30)}, domain.DataSourceHigh},
		{"deep but volatile", domain.CompsResult{Median: &median, CleanedCount: 12, SpreadPercent: spread(90)}, domain.DataSourceMedium},
		{"manual capped", domain.CompsResult{Median: &median, CleanedCount: 12, SpreadPercent: spread(10), Source: domain.CompsSourceManual}, domain.DataSourceMedium},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, SourceConfidence(tc.result))
		})
	}
}
