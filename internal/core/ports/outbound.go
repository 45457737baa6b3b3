package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/flipscout/internal/core/domain"
)

// ScanRepository persists and reads scan session state.
type ScanRepository interface {
	Create(ctx context.Context, scan *domain.ScanSession) error
	GetByID(ctx context.Context, id string) (*domain.ScanSession, error)
	UpdateStatus(ctx context.Context, id string, status domain.ScanStatus, errMessage string) error
	SaveResult(ctx context.Context, id string, visual *domain.VisualMatchSession, result *domain.IdentificationPipelineResult) error
	Confirm(ctx context.Context, id, candidateID string) error
}

// ObjectStorage stores scan and reference photos.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes scan requests.
type MessageQueue interface {
	PublishScanRequested(ctx context.Context, scanID string) error
	SubscribeScanRequested(ctx context.Context, handler func(context.Context, string) error) error
}

// ImageEmbedder turns a photo into a fixed-length feature vector.
type ImageEmbedder interface {
	EmbedImage(ctx context.Context, image []byte) ([]float32, error)
	Dimension() int
}

// VisualLibrary is the vector-indexed store of catalog reference images.
type VisualLibrary interface {
	IndexImage(ctx context.Context, image domain.LibraryImage, vector []float32) error
	SearchImages(ctx context.Context, category domain.Category, vector []float32, limit int) ([]domain.ImageHit, error)
	SearchItemImages(ctx context.Context, category domain.Category, itemID string, vector []float32, limit int) ([]domain.ImageHit, error)
	Stats(ctx context.Context, category domain.Category) (domain.LibraryStats, error)
}

// StageClassifier extracts stage evidence from a photo and/or text.
type StageClassifier interface {
	Observe(ctx context.Context, image []byte, text string) (domain.StageObservation, error)
}

// ListingFetcher resolves a marketplace listing link and its photos.
type ListingFetcher interface {
	FetchListing(ctx context.Context, rawURL string) (domain.Listing, error)
	FetchImage(ctx context.Context, rawURL string) ([]byte, error)
}

type SoldQuery struct {
	Keywords string
	Category domain.Category
	Limit    int
}

// SoldListingSource returns recent sold listings for a query.
type SoldListingSource interface {
	SearchSold(ctx context.Context, query SoldQuery) ([]domain.SoldComp, error)
}

// CompsCache stores aggregated comps by query key.
type CompsCache interface {
	Get(ctx context.Context, key string) (*domain.CompsResult, bool, error)
	Set(ctx context.Context, key string, result domain.CompsResult, ttl time.Duration) error
}
