package domain

import "time"

type MatchOutcome string

const (
	OutcomeAutoSelected     MatchOutcome = "auto_selected"
	OutcomeUserRequired     MatchOutcome = "user_required"
	OutcomeNoConfidentMatch MatchOutcome = "no_confident_match"
	OutcomeLibraryBuilding  MatchOutcome = "library_building"
)

type ConfidenceBucket string

const (
	BucketHigh   ConfidenceBucket = "high"
	BucketMedium ConfidenceBucket = "medium"
	BucketLow    ConfidenceBucket = "low"
)

// LibraryImage is one reference photo of a catalog item in the visual library.
type LibraryImage struct {
	ID          string    `json:"id"`
	ItemID      string    `json:"item_id"`
	Title       string    `json:"title"`
	Category    Category  `json:"category"`
	StoragePath string    `json:"storage_path,omitempty"`
	Primary     bool      `json:"primary"`
	CreatedAt   time.Time `json:"created_at"`
}

// ImageHit is a single nearest-neighbor result from the vector index.
type ImageHit struct {
	ImageID    string  `json:"image_id"`
	ItemID     string  `json:"item_id"`
	Title      string  `json:"title,omitempty"`
	Similarity float64 `json:"similarity"`
}

// ItemNeighbors holds the reference-image similarities of one catalog item.
type ItemNeighbors struct {
	ItemID       string    `json:"item_id"`
	Title        string    `json:"title,omitempty"`
	Similarities []float64 `json:"similarities"`
}

type LibraryStats struct {
	Category   Category `json:"category"`
	ItemCount  int      `json:"item_count"`
	ImageCount int      `json:"image_count"`
}

type VisualMatch struct {
	ItemID          string  `json:"item_id"`
	Title           string  `json:"title,omitempty"`
	Score           float64 `json:"score"`
	BestSimilarity  float64 `json:"best_similarity"`
	TopThreeAverage float64 `json:"top_three_average"`
	Support         int     `json:"support"`
}

type VisualMatchSession struct {
	Category       Category         `json:"category"`
	QueryDimension int              `json:"query_dimension"`
	Matches        []VisualMatch    `json:"matches"`
	BestScore      float64          `json:"best_score"`
	ScoreGap       float64          `json:"score_gap"`
	Outcome        MatchOutcome     `json:"outcome"`
	Confidence     ConfidenceBucket `json:"confidence"`
	Selected       *VisualMatch     `json:"selected,omitempty"`
}
