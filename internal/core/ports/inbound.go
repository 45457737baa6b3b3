package ports

import (
	"context"
	"io"

	"github.com/kirillkom/flipscout/internal/core/domain"
)

// CompsRequest asks for comps either by query or with manually entered sales.
type CompsRequest struct {
	Query    string            `json:"query"`
	Category domain.Category   `json:"category,omitempty"`
	Manual   []domain.SoldComp `json:"comps,omitempty"`
}

type DecideRequest struct {
	Input domain.DecisionInput `json:"input"`
	Comps *CompsRequest        `json:"comps,omitempty"`
}

type DecisionReport struct {
	Comps     *domain.CompsResult   `json:"comps,omitempty"`
	Decision  domain.DecisionResult `json:"decision"`
	FlipScore domain.FlipScore      `json:"flip_score"`
}

// DecisionService is the inbound contract for buy/skip decisions.
type DecisionService interface {
	Decide(ctx context.Context, req DecideRequest) (*DecisionReport, error)
	Summarize(ctx context.Context, req CompsRequest) (domain.CompsResult, error)
	Rank(ctx context.Context, opportunities []domain.Opportunity) []domain.RankedOpportunity
}

// ScanIntake is the inbound contract for scan submission.
type ScanIntake interface {
	SubmitPhoto(ctx context.Context, category domain.Category, mimeType string, body io.Reader) (*domain.ScanSession, error)
	SubmitListing(ctx context.Context, category domain.Category, listingURL string) (*domain.ScanSession, error)
	SubmitText(ctx context.Context, category domain.Category, text string) (*domain.ScanSession, error)
}

// ScanReader is the inbound read model for scan state.
type ScanReader interface {
	GetByID(ctx context.Context, id string) (*domain.ScanSession, error)
}

// ScanConfirmer records the user's pick among disclosed candidates.
type ScanConfirmer interface {
	Confirm(ctx context.Context, scanID, candidateID string) (*domain.ScanSession, error)
}

// ScanProcessor is the inbound contract for asynchronous scan processing.
type ScanProcessor interface {
	ProcessByID(ctx context.Context, scanID string) error
}

// LibraryIndexer adds reference photos to the visual library.
type LibraryIndexer interface {
	IndexReference(ctx context.Context, image domain.LibraryImage, body io.Reader) (*domain.LibraryImage, error)
	Stats(ctx context.Context, category domain.Category) (domain.LibraryStats, error)
}
