package domain

import "time"

type ScanStatus string

const (
	ScanUploaded   ScanStatus = "uploaded"
	ScanProcessing ScanStatus = "processing"
	ScanReady      ScanStatus = "ready"
	ScanFailed     ScanStatus = "failed"
	ScanConfirmed  ScanStatus = "confirmed"
)

// Terminal reports whether the scan can no longer change.
func (s ScanStatus) Terminal() bool {
	return s == ScanFailed || s == ScanConfirmed
}

type ScanInput string

const (
	InputPhoto   ScanInput = "photo"
	InputListing ScanInput = "listing"
	InputText    ScanInput = "text"
)

type ScanSession struct {
	ID                   string                        `json:"id"`
	Input                ScanInput                     `json:"input"`
	CategoryHint         Category                      `json:"category_hint,omitempty"`
	Text                 string                        `json:"text,omitempty"`
	ListingURL           string                        `json:"listing_url,omitempty"`
	PhotoPath            string                        `json:"photo_path,omitempty"`
	MimeType             string                        `json:"mime_type,omitempty"`
	Status               ScanStatus                    `json:"status"`
	Error                string                        `json:"error,omitempty"`
	Visual               *VisualMatchSession           `json:"visual,omitempty"`
	Identification       *IdentificationPipelineResult `json:"identification,omitempty"`
	ConfirmedCandidateID string                        `json:"confirmed_candidate_id,omitempty"`
	CreatedAt            time.Time                     `json:"created_at"`
	UpdatedAt            time.Time                     `json:"updated_at"`
}

// Listing is the subset of a marketplace listing used for identification.
type Listing struct {
	ID        string   `json:"id"`
	URL       string   `json:"url"`
	Title     string   `json:"title"`
	Price     float64  `json:"price"`
	Condition string   `json:"condition,omitempty"`
	ImageURLs []string `json:"image_urls,omitempty"`
}
