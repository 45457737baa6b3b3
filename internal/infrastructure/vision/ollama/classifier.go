package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/kirillkom/flipscout/internal/core/domain"
)

// StageClassifier asks a multimodal model for per-stage evidence.
type StageClassifier struct {
	client *Client
}

func NewStageClassifier(client *Client) *StageClassifier {
	return &StageClassifier{client: client}
}

type observationJSON struct {
	ObjectProbabilities map[string]float64 `json:"object_probabilities"`
	Signals             []string           `json:"signals"`
	Brand               string             `json:"brand"`
	BrandConfidence     float64            `json:"brand_confidence"`
	Line                string             `json:"line"`
	LineConfidence      float64            `json:"line_confidence"`
	Text                string             `json:"text"`
}

func (c *StageClassifier) Observe(ctx context.Context, image []byte, text string) (domain.StageObservation, error) {
	if len(image) == 0 && strings.TrimSpace(text) == "" {
		return domain.StageObservation{}, fmt.Errorf("%w: nothing to observe", domain.ErrInvalidInput)
	}
	var images [][]byte
	if len(image) > 0 {
		images = [][]byte{image}
	}

	respText, err := c.client.generateJSON(ctx, buildObservationPrompt(text), images)
	if err != nil {
		return domain.StageObservation{}, err
	}

	var raw observationJSON
	if err := json.Unmarshal([]byte(extractJSONObject(respText)), &raw); err != nil {
		return domain.StageObservation{}, fmt.Errorf("parse observation json: %w", err)
	}
	return sanitize(raw, text), nil
}

// sanitize drops unknown object types and clamps every probability into [0,1]
// so the pipeline never sees model noise as invalid input.
func sanitize(raw observationJSON, text string) domain.StageObservation {
	obs := domain.StageObservation{
		ObjectProbabilities: make(map[domain.ObjectType]float64, len(raw.ObjectProbabilities)),
		Brand:               strings.TrimSpace(raw.Brand),
		BrandConfidence:     clampUnit(raw.BrandConfidence),
		Line:                strings.TrimSpace(raw.Line),
		LineConfidence:      clampUnit(raw.LineConfidence),
		Text:                strings.TrimSpace(strings.Join([]string{text, raw.Text}, " ")),
	}
	for name, prob := range raw.ObjectProbabilities {
		t := domain.ObjectType(strings.ToLower(strings.TrimSpace(name)))
		if !t.Valid() {
			continue
		}
		obs.ObjectProbabilities[t] = clampUnit(prob)
	}
	for _, s := range raw.Signals {
		if s = strings.TrimSpace(s); s != "" {
			obs.Signals = append(obs.Signals, s)
		}
	}
	if obs.Brand == "" {
		obs.BrandConfidence = 0
	}
	if obs.Line == "" {
		obs.LineConfidence = 0
	}
	return obs
}

func clampUnit(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return math.Min(v, 1)
}
