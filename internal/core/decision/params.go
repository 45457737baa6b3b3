package decision

import (
	"fmt"

	"github.com/kirillkom/flipscout/internal/core/domain"
)

const (
	// DefaultSafetyFactor is the haircut applied to the computed max buy.
	DefaultSafetyFactor = 0.8
	// DefaultFixedCosts covers packing material and handling per flip.
	DefaultFixedCosts       = 5.0
	DefaultTargetMarginRate = 0.25
	DefaultMinMarginPercent = 25.0
	// DefaultFeeRate applies when the caller does not name a platform fee.
	DefaultFeeRate = 0.13

	DefaultMediumSourcePenalty = 15
	DefaultLowSourcePenalty    = 25
	DefaultConfidenceFloor     = 25
)

// Params are the tunable constants of the engine. Values may be overridden
// per category; DefaultParams preserves the calibrated defaults.
type Params struct {
	SafetyFactor        float64 `mapstructure:"safety_factor"`
	FixedCosts          float64 `mapstructure:"fixed_costs"`
	TargetMarginRate    float64 `mapstructure:"target_margin_rate"`
	MinMarginPercent    float64 `mapstructure:"min_margin_percent"`
	DefaultFeeRate      float64 `mapstructure:"default_fee_rate"`
	MediumSourcePenalty int     `mapstructure:"medium_source_penalty"`
	LowSourcePenalty    int     `mapstructure:"low_source_penalty"`
	ConfidenceFloor     int     `mapstructure:"confidence_floor"`
}

func DefaultParams() Params {
	return Params{
		SafetyFactor:        DefaultSafetyFactor,
		FixedCosts:          DefaultFixedCosts,
		TargetMarginRate:    DefaultTargetMarginRate,
		MinMarginPercent:    DefaultMinMarginPercent,
		DefaultFeeRate:      DefaultFeeRate,
		MediumSourcePenalty: DefaultMediumSourcePenalty,
		LowSourcePenalty:    DefaultLowSourcePenalty,
		ConfidenceFloor:     DefaultConfidenceFloor,
	}
}

func (p Params) Validate() error {
	switch {
	case p.SafetyFactor <= 0 || p.SafetyFactor > 1:
		return fmt.Errorf("%w: safety factor %v outside (0,1]", domain.ErrInvalidInput, p.SafetyFactor)
	case p.FixedCosts < 0:
		return fmt.Errorf("%w: fixed costs must not be negative", domain.ErrInvalidInput)
	case p.TargetMarginRate < 0 || p.TargetMarginRate >= 1:
		return fmt.Errorf("%w: target margin rate %v outside [0,1)", domain.ErrInvalidInput, p.TargetMarginRate)
	case p.DefaultFeeRate < 0 || p.DefaultFeeRate >= 1:
		return fmt.Errorf("%w: default fee rate %v outside [0,1)", domain.ErrInvalidInput, p.DefaultFeeRate)
	case p.MediumSourcePenalty < 0 || p.LowSourcePenalty < 0:
		return fmt.Errorf("%w: source penalties must not be negative", domain.ErrInvalidInput)
	case p.ConfidenceFloor < 0 || p.ConfidenceFloor > 100:
		return fmt.Errorf("%w: confidence floor %d outside 0..100", domain.ErrInvalidInput, p.ConfidenceFloor)
	}
	return nil
}
