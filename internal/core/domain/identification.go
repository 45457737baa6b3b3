package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

type Category string

const (
	CategoryWatch       Category = "watch"
	CategoryCard        Category = "trading_card"
	CategoryVehicle     Category = "vehicle"
	CategoryCollectible Category = "collectible"
	CategoryGeneral     Category = "general"
)

func ParseCategory(raw string) (Category, error) {
	switch c := Category(strings.ToLower(strings.TrimSpace(raw))); c {
	case CategoryWatch, CategoryCard, CategoryVehicle, CategoryCollectible, CategoryGeneral:
		return c, nil
	}
	return "", fmt.Errorf("%w: unknown category %q", ErrInvalidInput, raw)
}

// ObjectType is the closed set the first pipeline stage classifies into.
type ObjectType string

const (
	ObjectWatch       ObjectType = "watch"
	ObjectCard        ObjectType = "trading_card"
	ObjectVehicle     ObjectType = "vehicle"
	ObjectCollectible ObjectType = "collectible"
	ObjectSneaker     ObjectType = "sneaker"
	ObjectHandbag     ObjectType = "handbag"
	ObjectElectronics ObjectType = "electronics"
	ObjectToy         ObjectType = "toy"
	ObjectApparel     ObjectType = "apparel"
	ObjectOther       ObjectType = "other"
)

var objectTypes = []ObjectType{
	ObjectWatch, ObjectCard, ObjectVehicle, ObjectCollectible, ObjectSneaker,
	ObjectHandbag, ObjectElectronics, ObjectToy, ObjectApparel, ObjectOther,
}

// ObjectTypes returns the closed object type set in a stable order.
func ObjectTypes() []ObjectType {
	out := make([]ObjectType, len(objectTypes))
	copy(out, objectTypes)
	return out
}

func (t ObjectType) Valid() bool {
	for _, known := range objectTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Category maps an object type onto the candidate category enum.
func (t ObjectType) Category() Category {
	switch t {
	case ObjectWatch:
		return CategoryWatch
	case ObjectCard:
		return CategoryCard
	case ObjectVehicle:
		return CategoryVehicle
	case ObjectCollectible, ObjectToy:
		return CategoryCollectible
	default:
		return CategoryGeneral
	}
}

type ConfidenceTier string

const (
	TierLow       ConfidenceTier = "LOW"
	TierMedium    ConfidenceTier = "MEDIUM"
	TierHigh      ConfidenceTier = "HIGH"
	TierConfirmed ConfidenceTier = "CONFIRMED"
)

const (
	TierMediumFloor    = 0.60
	TierHighFloor      = 0.80
	TierConfirmedFloor = 0.90
)

// TierFor maps a 0..1 confidence onto closed-open contiguous tiers.
func TierFor(confidence float64) ConfidenceTier {
	switch {
	case confidence >= TierConfirmedFloor:
		return TierConfirmed
	case confidence >= TierHighFloor:
		return TierHigh
	case confidence >= TierMediumFloor:
		return TierMedium
	default:
		return TierLow
	}
}

type PipelineStage int

const (
	StageNone PipelineStage = iota
	StageObjectType
	StageBrand
	StageLine
	StageCandidates
	StageAggregation
)

func (s PipelineStage) String() string {
	switch s {
	case StageNone:
		return "none"
	case StageObjectType:
		return "object_type"
	case StageBrand:
		return "brand"
	case StageLine:
		return "line"
	case StageCandidates:
		return "candidates"
	case StageAggregation:
		return "aggregation"
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

func (s PipelineStage) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *PipelineStage) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for candidate := StageNone; candidate <= StageAggregation; candidate++ {
		if candidate.String() == raw {
			*s = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown pipeline stage %q", raw)
}

type ObjectTypeResult struct {
	Type       ObjectType `json:"type"`
	Confidence float64    `json:"confidence"`
	IsForced   bool       `json:"is_forced"`
	ForcedBy   string     `json:"forced_by,omitempty"`
}

type BrandResult struct {
	Brand        string  `json:"brand"`
	Confidence   float64 `json:"confidence"`
	Compatible   bool    `json:"compatible"`
	Incompatible string  `json:"incompatibility,omitempty"`
}

type LineResult struct {
	Line       string  `json:"line"`
	Confidence float64 `json:"confidence"`
}

type CandidateSet struct {
	Candidates    []ScanCandidate `json:"candidates"`
	TopConfidence float64         `json:"top_confidence"`
}

// Disclosure is what a requester may see at a given tier.
type Disclosure struct {
	Tier                ConfidenceTier  `json:"tier"`
	Label               string          `json:"label"`
	ObjectType          ObjectType      `json:"object_type,omitempty"`
	Brand               string          `json:"brand,omitempty"`
	Candidates          []ScanCandidate `json:"candidates,omitempty"`
	Confirmed           *ScanCandidate  `json:"confirmed,omitempty"`
	ManualEntryRequired bool            `json:"manual_entry_required"`
}

type IdentificationPipelineResult struct {
	Stage                PipelineStage     `json:"stage"`
	ObjectType           *ObjectTypeResult `json:"object_type,omitempty"`
	Brand                *BrandResult      `json:"brand,omitempty"`
	Line                 *LineResult       `json:"line,omitempty"`
	Candidates           *CandidateSet     `json:"candidates,omitempty"`
	AggregatedConfidence float64           `json:"aggregated_confidence"`
	Tier                 ConfidenceTier    `json:"tier,omitempty"`
	Disclosure           *Disclosure       `json:"disclosure,omitempty"`
	PipelineLocked       bool              `json:"pipeline_locked"`
}

// StageObservation is the raw evidence a classifier produced for one scan.
// The pipeline decides what of it may be locked.
type StageObservation struct {
	ObjectProbabilities map[ObjectType]float64 `json:"object_probabilities"`
	Signals             []string               `json:"signals,omitempty"`
	Brand               string                 `json:"brand,omitempty"`
	BrandConfidence     float64                `json:"brand_confidence,omitempty"`
	Line                string                 `json:"line,omitempty"`
	LineConfidence      float64                `json:"line_confidence,omitempty"`
	Text                string                 `json:"text,omitempty"`
}
