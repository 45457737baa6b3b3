package usecase

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kirillkom/flipscout/internal/core/domain"
	"github.com/kirillkom/flipscout/internal/core/ports"
	"github.com/kirillkom/flipscout/internal/core/visual"
)

var _ ports.LibraryIndexer = (*VisualLibraryUseCase)(nil)

// VisualLibraryUseCase grows the reference-photo library that visual
// matching searches.
type VisualLibraryUseCase struct {
	storage  ports.ObjectStorage
	embedder ports.ImageEmbedder
	library  ports.VisualLibrary
	matcher  *visual.Matcher
	logger   *zap.Logger
	now      func() time.Time
}

func NewVisualLibraryUseCase(
	storage ports.ObjectStorage,
	embedder ports.ImageEmbedder,
	library ports.VisualLibrary,
	matcher *visual.Matcher,
	logger *zap.Logger,
) *VisualLibraryUseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VisualLibraryUseCase{
		storage:  storage,
		embedder: embedder,
		library:  library,
		matcher:  matcher,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// IndexReference embeds and stores one reference photo. The first photo of
// an item becomes its primary image.
func (uc *VisualLibraryUseCase) IndexReference(ctx context.Context, image domain.LibraryImage, body io.Reader) (*domain.LibraryImage, error) {
	image.ItemID = strings.TrimSpace(image.ItemID)
	image.Title = strings.TrimSpace(image.Title)
	if image.ItemID == "" {
		return nil, fmt.Errorf("%w: item_id is required", domain.ErrInvalidInput)
	}
	if image.Title == "" {
		return nil, fmt.Errorf("%w: title is required", domain.ErrInvalidInput)
	}
	category, err := domain.ParseCategory(string(image.Category))
	if err != nil {
		return nil, err
	}
	image.Category = category

	data, mimeType, err := readPhoto(body)
	if err != nil {
		return nil, err
	}
	vector, err := uc.embedder.EmbedImage(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("embed reference: %w", err)
	}
	if err := uc.matcher.ValidateVector(vector); err != nil {
		return nil, err
	}

	existing, err := uc.library.SearchItemImages(ctx, category, image.ItemID, vector, 1)
	if err != nil {
		return nil, fmt.Errorf("lookup item images: %w", err)
	}
	image.Primary = len(existing) == 0
	image.ID = uuid.NewString()
	image.CreatedAt = uc.now()
	image.StoragePath = fmt.Sprintf("library/%s/%s/%s%s", category, slug(image.ItemID), image.ID, imageExtensions[mimeType])

	if err := uc.storage.Save(ctx, image.StoragePath, newReader(data)); err != nil {
		return nil, fmt.Errorf("save reference photo: %w", err)
	}
	if err := uc.library.IndexImage(ctx, image, vector); err != nil {
		return nil, fmt.Errorf("index reference photo: %w", err)
	}

	uc.logger.Info("reference image indexed",
		zap.String("image_id", image.ID),
		zap.String("item_id", image.ItemID),
		zap.String("category", string(category)),
		zap.Bool("primary", image.Primary),
	)
	return &image, nil
}

func (uc *VisualLibraryUseCase) Stats(ctx context.Context, category domain.Category) (domain.LibraryStats, error) {
	category, err := domain.ParseCategory(string(category))
	if err != nil {
		return domain.LibraryStats{}, err
	}
	return uc.library.Stats(ctx, category)
}
