package bootstrap

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kirillkom/flipscout/internal/config"
	"github.com/kirillkom/flipscout/internal/core/decision"
	"github.com/kirillkom/flipscout/internal/infrastructure/resilience"
)

func TestDecisionParamsKeepDefaultsForZeroValues(t *testing.T) {
	p := DecisionParams(config.DecisionConfig{FixedCosts: 7.5, MinMarginPercent: 30})

	want := decision.DefaultParams()
	want.FixedCosts = 7.5
	want.MinMarginPercent = 30
	assert.Equal(t, want, p)
	require.NoError(t, p.Validate())
}

func TestCompsRulesCopiesKeywords(t *testing.T) {
	keywords := []string{"replica"}
	rules := CompsRules(config.CompsConfig{ExclusionKeywords: keywords, MaxAge: 24 * time.Hour})
	keywords[0] = "changed"

	assert.Equal(t, []string{"replica"}, rules.ExclusionKeywords)
	assert.Equal(t, 24*time.Hour, rules.MaxAge)
}

func TestMatcherConfigCarriesDimension(t *testing.T) {
	cfg := MatcherConfig(config.MatcherConfig{HighThreshold: 0.9, TopN: 3}, 512)
	assert.Equal(t, 512, cfg.Dimension)
	assert.InDelta(t, 0.9, cfg.HighThreshold, 1e-9)
	assert.Equal(t, 3, cfg.TopN)
	assert.Equal(t, 20, cfg.MinReferenceImages)
}

func TestResilienceConfigHonorsDisabledBreaker(t *testing.T) {
	cfg := ResilienceConfig(config.ResilienceConfig{RetryMaxAttempts: 5})
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, resilience.DefaultConfig().Retry.MaxBackoff, cfg.Retry.MaxBackoff)
	assert.False(t, cfg.Breaker.Enabled)
}

func TestNewOfflineDecisions(t *testing.T) {
	uc, err := NewOfflineDecisions(config.Config{Comps: config.CompsConfig{Mode: "live"}}, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, uc)
}
