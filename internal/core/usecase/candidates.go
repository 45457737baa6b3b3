package usecase

import (
	"math"
	"strings"

	"github.com/kirillkom/flipscout/internal/catalog"
	"github.com/kirillkom/flipscout/internal/core/domain"
)

const (
	sourceVisual  = "visual"
	sourceCatalog = "catalog"
	// brandOnlyDiscount applies when no line corroborates the brand.
	brandOnlyDiscount = 0.75
)

// buildCandidates turns visual matches and the locked brand/line into
// stage 4 candidates for the locked category.
func buildCandidates(
	category domain.Category,
	brand domain.BrandResult,
	line domain.LineResult,
	visual *domain.VisualMatchSession,
	text string,
) []domain.ScanCandidate {
	identifiers := catalog.Identifiers(text)
	meta := metadataFor(category, brand.Brand, line.Line, identifiers)
	out := make([]domain.ScanCandidate, 0, 6)

	if visual != nil && visual.Category == category {
		for _, m := range visual.Matches {
			title := m.Title
			if title == "" {
				title = m.ItemID
			}
			c, err := domain.NewScanCandidate(
				sourceVisual+":"+m.ItemID,
				title,
				category,
				percent(m.Score),
				meta,
				domain.CandidateProvenance{Stage: domain.StageCandidates, Source: sourceVisual},
			)
			if err != nil {
				continue
			}
			c.Identifiers = identifiers
			out = append(out, c)
		}
	}

	if brand.Brand != "" {
		title := strings.TrimSpace(brand.Brand + " " + line.Line)
		confidence := brand.Confidence * brandOnlyDiscount
		if line.Line != "" {
			confidence = math.Min(brand.Confidence, line.Confidence)
		}
		c, err := domain.NewScanCandidate(
			sourceCatalog+":"+slug(title),
			title,
			category,
			percent(confidence),
			meta,
			domain.CandidateProvenance{Stage: domain.StageCandidates, Source: sourceCatalog},
		)
		if err == nil {
			c.Identifiers = identifiers
			out = append(out, c)
		}
	}
	return out
}

func metadataFor(category domain.Category, brand, line string, identifiers []string) domain.CandidateMetadata {
	first := ""
	if len(identifiers) > 0 {
		first = identifiers[0]
	}
	switch category {
	case domain.CategoryWatch:
		return domain.WatchMetadata{Brand: brand, Model: line, Reference: first}
	case domain.CategoryCard:
		return domain.CardMetadata{Game: brand, Set: line, CardNumber: first}
	case domain.CategoryVehicle:
		return domain.VehicleMetadata{Make: brand, Model: line}
	case domain.CategoryCollectible:
		return domain.CollectibleMetadata{Manufacturer: brand, Series: line}
	}
	return nil
}

func percent(v float64) int {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v >= 1 {
		return 100
	}
	return int(math.Round(v * 100))
}

func slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
