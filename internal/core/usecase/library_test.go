package usecase

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/flipscout/internal/core/domain"
	"github.com/kirillkom/flipscout/internal/core/visual"
)

func TestIndexReferenceMarksFirstImagePrimary(t *testing.T) {
	storage := newStorageFake()
	library := &libraryFake{itemHits: map[string][]domain.ImageHit{}}
	uc := NewVisualLibraryUseCase(storage, &embedderFake{vector: []float32{1, 0}}, library, visual.NewMatcher(visual.DefaultConfig()), nil)

	image, err := uc.IndexReference(context.Background(), domain.LibraryImage{
		ItemID:   " Sub 16610 ",
		Title:    "Rolex Submariner 16610",
		Category: "watch",
	}, bytes.NewReader(pngHeader))
	require.NoError(t, err)

	assert.True(t, image.Primary)
	assert.Equal(t, "Sub 16610", image.ItemID)
	assert.NotEmpty(t, image.ID)
	assert.Equal(t, "library/watch/sub-16610/"+image.ID+".png", image.StoragePath)
	assert.Contains(t, storage.objects, image.StoragePath)
	require.Len(t, library.indexed, 1)
	assert.Equal(t, *image, library.indexed[0])

	library.itemHits["Sub 16610"] = []domain.ImageHit{{ItemID: "Sub 16610", Similarity: 0.9}}
	second, err := uc.IndexReference(context.Background(), domain.LibraryImage{
		ItemID:   "Sub 16610",
		Title:    "Rolex Submariner 16610",
		Category: "watch",
	}, bytes.NewReader(pngHeader))
	require.NoError(t, err)
	assert.False(t, second.Primary)
}

func TestIndexReferenceValidation(t *testing.T) {
	uc := NewVisualLibraryUseCase(newStorageFake(), &embedderFake{vector: []float32{1, 0}}, &libraryFake{}, visual.NewMatcher(visual.DefaultConfig()), nil)
	ctx := context.Background()

	_, err := uc.IndexReference(ctx, domain.LibraryImage{Title: "x", Category: "watch"}, bytes.NewReader(pngHeader))
	assert.True(t, domain.IsKind(err, domain.ErrInvalidInput))

	_, err = uc.IndexReference(ctx, domain.LibraryImage{ItemID: "x", Category: "watch"}, bytes.NewReader(pngHeader))
	assert.True(t, domain.IsKind(err, domain.ErrInvalidInput))

	_, err = uc.IndexReference(ctx, domain.LibraryImage{ItemID: "x", Title: "x", Category: "boat"}, bytes.NewReader(pngHeader))
	assert.True(t, domain.IsKind(err, domain.ErrInvalidInput))

	bad := NewVisualLibraryUseCase(newStorageFake(), &embedderFake{vector: []float32{0, 0}}, &libraryFake{}, visual.NewMatcher(visual.DefaultConfig()), nil)
	_, err = bad.IndexReference(ctx, domain.LibraryImage{ItemID: "x", Title: "x", Category: "watch"}, bytes.NewReader(pngHeader))
	assert.True(t, domain.IsKind(err, domain.ErrInvalidVector))
}

func TestLibraryStats(t *testing.T) {
	library := &libraryFake{stats: domain.LibraryStats{ItemCount: 3, ImageCount: 9}}
	uc := NewVisualLibraryUseCase(newStorageFake(), &embedderFake{}, library, visual.NewMatcher(visual.DefaultConfig()), nil)

	stats, err := uc.Stats(context.Background(), "Watch")
	require.NoError(t, err)
	assert.Equal(t, domain.LibraryStats{Category: domain.CategoryWatch, ItemCount: 3, ImageCount: 9}, stats)

	_, err = uc.Stats(context.Background(), "")
	assert.True(t, domain.IsKind(err, domain.ErrInvalidInput))
}
