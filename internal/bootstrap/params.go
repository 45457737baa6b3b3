package bootstrap

import (
	"github.com/kirillkom/flipscout/internal/config"
	"github.com/kirillkom/flipscout/internal/core/comps"
	"github.com/kirillkom/flipscout/internal/core/decision"
	"github.com/kirillkom/flipscout/internal/core/pipeline"
	"github.com/kirillkom/flipscout/internal/core/visual"
	"github.com/kirillkom/flipscout/internal/infrastructure/resilience"
)

// DecisionParams overlays configured values on the calibrated defaults.
// Zero values keep the default.
func DecisionParams(cfg config.DecisionConfig) decision.Params {
	p := decision.DefaultParams()
	if cfg.SafetyFactor > 0 {
		p.SafetyFactor = cfg.SafetyFactor
	}
	if cfg.FixedCosts > 0 {
		p.FixedCosts = cfg.FixedCosts
	}
	if cfg.TargetMarginRate > 0 {
		p.TargetMarginRate = cfg.TargetMarginRate
	}
	if cfg.MinMarginPercent > 0 {
		p.MinMarginPercent = cfg.MinMarginPercent
	}
	if cfg.DefaultFeeRate > 0 {
		p.DefaultFeeRate = cfg.DefaultFeeRate
	}
	if cfg.MediumSourcePenalty > 0 {
		p.MediumSourcePenalty = cfg.MediumSourcePenalty
	}
	if cfg.LowSourcePenalty > 0 {
		p.LowSourcePenalty = cfg.LowSourcePenalty
	}
	if cfg.ConfidenceFloor > 0 {
		p.ConfidenceFloor = cfg.ConfidenceFloor
	}
	return p
}

func CompsRules(cfg config.CompsConfig) comps.Rules {
	rules := comps.DefaultRules()
	if len(cfg.ExclusionKeywords) > 0 {
		rules.ExclusionKeywords = append([]string(nil), cfg.ExclusionKeywords...)
	}
	rules.MaxAge = cfg.MaxAge
	return rules
}

func MatcherConfig(cfg config.MatcherConfig, dimension int) visual.Config {
	out := visual.DefaultConfig()
	out.Dimension = dimension
	if cfg.HighThreshold > 0 {
		out.HighThreshold = cfg.HighThreshold
	}
	if cfg.MediumThreshold > 0 {
		out.MediumThreshold = cfg.MediumThreshold
	}
	if cfg.LowThreshold > 0 {
		out.LowThreshold = cfg.LowThreshold
	}
	if cfg.MinSeparation > 0 {
		out.MinSeparation = cfg.MinSeparation
	}
	if cfg.MinReferenceImages > 0 {
		out.MinReferenceImages = cfg.MinReferenceImages
	}
	if cfg.MinCatalogItems > 0 {
		out.MinCatalogItems = cfg.MinCatalogItems
	}
	if cfg.TopN > 0 {
		out.TopN = cfg.TopN
	}
	return out
}

func PipelineConfig(cfg config.PipelineConfig) pipeline.Config {
	return pipeline.Config{
		TopK:                 cfg.TopK,
		MaxSelectable:        cfg.MaxSelectable,
		IncompatibleBrandCap: cfg.IncompatibleBrandCap,
	}
}

func ResilienceConfig(cfg config.ResilienceConfig) resilience.Config {
	out := resilience.DefaultConfig()
	if cfg.RetryMaxAttempts > 0 {
		out.Retry.MaxAttempts = cfg.RetryMaxAttempts
	}
	if cfg.RetryInitialBackoff > 0 {
		out.Retry.InitialBackoff = cfg.RetryInitialBackoff
	}
	if cfg.RetryMaxBackoff > 0 {
		out.Retry.MaxBackoff = cfg.RetryMaxBackoff
	}
	if cfg.BreakerOpenTimeout > 0 {
		out.Breaker.OpenTimeout = cfg.BreakerOpenTimeout
	}
	out.Breaker.Enabled = cfg.BreakerEnabled
	return out
}
