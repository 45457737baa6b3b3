package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// CandidateMetadata is implemented only by the per-category metadata variants.
type CandidateMetadata interface {
	Category() Category
	isCandidateMetadata()
}

type WatchMetadata struct {
	Brand      string  `json:"brand,omitempty"`
	Model      string  `json:"model,omitempty"`
	Reference  string  `json:"reference,omitempty"`
	Movement   string  `json:"movement,omitempty"`
	CaseSizeMM float64 `json:"case_size_mm,omitempty"`
}

type CardMetadata struct {
	Game       string `json:"game,omitempty"`
	Player     string `json:"player,omitempty"`
	Set        string `json:"set,omitempty"`
	Year       int    `json:"year,omitempty"`
	CardNumber string `json:"card_number,omitempty"`
	Parallel   string `json:"parallel,omitempty"`
	Grade      string `json:"grade,omitempty"`
}

type VehicleMetadata struct {
	Make  string `json:"make,omitempty"`
	Model string `json:"model,omitempty"`
	Year  int    `json:"year,omitempty"`
	Trim  string `json:"trim,omitempty"`
}

type CollectibleMetadata struct {
	Franchise    string `json:"franchise,omitempty"`
	Series       string `json:"series,omitempty"`
	Manufacturer string `json:"manufacturer,omitempty"`
	Edition      string `json:"edition,omitempty"`
}

func (WatchMetadata) Category() Category       { return CategoryWatch }
func (CardMetadata) Category() Category        { return CategoryCard }
func (VehicleMetadata) Category() Category     { return CategoryVehicle }
func (CollectibleMetadata) Category() Category { return CategoryCollectible }

func (WatchMetadata) isCandidateMetadata()       {}
func (CardMetadata) isCandidateMetadata()        {}
func (VehicleMetadata) isCandidateMetadata()     {}
func (CollectibleMetadata) isCandidateMetadata() {}

type CandidateProvenance struct {
	Stage         PipelineStage `json:"stage"`
	Source        string        `json:"source,omitempty"`
	AutoConfirmed bool          `json:"auto_confirmed"`
}

type ScanCandidate struct {
	ID          string              `json:"id"`
	Title       string              `json:"title"`
	Category    Category            `json:"category"`
	Confidence  int                 `json:"confidence"`
	Identifiers []string            `json:"identifiers,omitempty"`
	Metadata    CandidateMetadata   `json:"metadata,omitempty"`
	Provenance  CandidateProvenance `json:"provenance"`
}

// NewScanCandidate rejects metadata that belongs to a different category.
// General candidates carry no metadata.
func NewScanCandidate(id, title string, category Category, confidence int, meta CandidateMetadata, provenance CandidateProvenance) (ScanCandidate, error) {
	if strings.TrimSpace(title) == "" {
		return ScanCandidate{}, fmt.Errorf("%w: candidate title is required", ErrInvalidInput)
	}
	if confidence < 0 || confidence > 100 {
		return ScanCandidate{}, fmt.Errorf("%w: candidate confidence %d outside 0..100", ErrInvalidInput, confidence)
	}
	if err := CheckMetadata(category, meta); err != nil {
		return ScanCandidate{}, err
	}
	return ScanCandidate{
		ID:         id,
		Title:      title,
		Category:   category,
		Confidence: confidence,
		Metadata:   meta,
		Provenance: provenance,
	}, nil
}

// CheckMetadata rejects metadata belonging to a category other than category.
func CheckMetadata(category Category, meta CandidateMetadata) error {
	if meta == nil {
		return nil
	}
	if category == CategoryGeneral {
		return fmt.Errorf("%w: general candidates carry no metadata", ErrInvalidInput)
	}
	if meta.Category() != category {
		return fmt.Errorf("%w: %s metadata on %s candidate", ErrInvalidInput, meta.Category(), category)
	}
	return nil
}

type scanCandidateJSON struct {
	ID          string              `json:"id"`
	Title       string              `json:"title"`
	Category    Category            `json:"category"`
	Confidence  int                 `json:"confidence"`
	Identifiers []string            `json:"identifiers,omitempty"`
	Metadata    json.RawMessage     `json:"metadata,omitempty"`
	Provenance  CandidateProvenance `json:"provenance"`
}

func (c ScanCandidate) MarshalJSON() ([]byte, error) {
	wire := scanCandidateJSON{
		ID:          c.ID,
		Title:       c.Title,
		Category:    c.Category,
		Confidence:  c.Confidence,
		Identifiers: c.Identifiers,
		Provenance:  c.Provenance,
	}
	if c.Metadata != nil {
		raw, err := json.Marshal(c.Metadata)
		if err != nil {
			return nil, err
		}
		wire.Metadata = raw
	}
	return json.Marshal(wire)
}

// UnmarshalJSON decodes metadata into the variant keyed by category.
func (c *ScanCandidate) UnmarshalJSON(data []byte) error {
	var wire scanCandidateJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	var meta CandidateMetadata
	if len(wire.Metadata) > 0 && string(wire.Metadata) != "null" {
		var err error
		meta, err = decodeMetadata(wire.Category, wire.Metadata)
		if err != nil {
			return err
		}
	}
	*c = ScanCandidate{
		ID:          wire.ID,
		Title:       wire.Title,
		Category:    wire.Category,
		Confidence:  wire.Confidence,
		Identifiers: wire.Identifiers,
		Metadata:    meta,
		Provenance:  wire.Provenance,
	}
	return nil
}

func decodeMetadata(category Category, raw json.RawMessage) (CandidateMetadata, error) {
	switch category {
	case CategoryWatch:
		var m WatchMetadata
		err := json.Unmarshal(raw, &m)
		return m, err
	case CategoryCard:
		var m CardMetadata
		err := json.Unmarshal(raw, &m)
		return m, err
	case CategoryVehicle:
		var m VehicleMetadata
		err := json.Unmarshal(raw, &m)
		return m, err
	case CategoryCollectible:
		var m CollectibleMetadata
		err := json.Unmarshal(raw, &m)
		return m, err
	}
	return nil, fmt.Errorf("%w: %s candidates carry no metadata", ErrInvalidInput, category)
}
