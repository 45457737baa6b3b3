package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/flipscout/internal/core/domain"
	"github.com/kirillkom/flipscout/internal/core/ports"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	// config.Load reads ./config.yaml; keep the test independent of the checkout.
	t.Chdir(t.TempDir())

	var out bytes.Buffer
	cmd := newRootCmd(strings.NewReader(stdin), &out)
	cmd.SetArgs(args)
	cmd.SetErr(&bytes.Buffer{})
	err := cmd.Execute()
	return out.String(), err
}

func TestDecideWithMarketValue(t *testing.T) {
	out, err := run(t, "", "decide", "--price", "8", "--market-value", "35", "--fee-rate", "0.13")
	require.NoError(t, err)

	var report ports.DecisionReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, domain.VerdictFlip, report.Decision.Verdict)
	assert.InDelta(t, 22.45, report.Decision.NetProfit, 0.001)
}

func TestDecideFromCompsOnStdin(t *testing.T) {
	sold := `[{"price":30,"condition":"used"},{"price":35,"condition":"used"},{"price":40,"condition":"used"}]`
	out, err := run(t, sold, "decide", "--price", "8", "--comps", "-", "--query", "skx007")
	require.NoError(t, err)

	var report ports.DecisionReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	require.NotNil(t, report.Comps)
	assert.Equal(t, 3, report.Comps.CleanedCount)
	require.NotNil(t, report.Decision.MarketValue)
	assert.InDelta(t, 35, *report.Decision.MarketValue, 0.001)
}

func TestDecideRequiresPrice(t *testing.T) {
	_, err := run(t, "", "decide", "--market-value", "35")
	require.Error(t, err)
}

func TestCompsYAMLOutput(t *testing.T) {
	sold := `[{"price":30},{"price":32},{"price":34},{"price":36},{"price":400,"title":"lot of 10"}]`
	out, err := run(t, sold, "comps", "--format", "yaml", "--query", "skx007")
	require.NoError(t, err)
	assert.Contains(t, out, "cleaned_count: 4")
	assert.Contains(t, out, "query: skx007")
}

func TestRankFromStdin(t *testing.T) {
	ops := `[{"id":"b","purchase_price":60,"decision":{"verdict":"skip"}},{"id":"a","purchase_price":8,"decision":{"verdict":"flip","net_profit":22.45}}]`
	out, err := run(t, ops, "rank")
	require.NoError(t, err)

	var ranked []domain.RankedOpportunity
	require.NoError(t, json.Unmarshal([]byte(out), &ranked))
	require.Len(t, ranked, 2)
	assert.Equal(t, "a", ranked[0].Opportunity.ID)
	assert.Equal(t, 1, ranked[0].Rank)
}

func TestUnknownFormat(t *testing.T) {
	_, err := run(t, "", "decide", "--price", "8", "--market-value", "35", "--format", "xml")
	require.Error(t, err)
}
