package usecase

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/kirillkom/flipscout/internal/core/domain"
	"github.com/kirillkom/flipscout/internal/core/ports"
)

const maxScanTextRunes = 4000

var _ ports.ScanIntake = (*ScanIntakeUseCase)(nil)

type ScanIntakeUseCase struct {
	repo    ports.ScanRepository
	storage ports.ObjectStorage
	queue   ports.MessageQueue
	now     func() time.Time
}

func NewScanIntakeUseCase(
	repo ports.ScanRepository,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
) *ScanIntakeUseCase {
	return &ScanIntakeUseCase{
		repo:    repo,
		storage: storage,
		queue:   queue,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SubmitPhoto stores the photo and queues it. The declared MIME type is
// ignored in favor of the sniffed one.
func (uc *ScanIntakeUseCase) SubmitPhoto(ctx context.Context, category domain.Category, _ string, body io.Reader) (*domain.ScanSession, error) {
	category, err := validCategory(category)
	if err != nil {
		return nil, err
	}
	data, mimeType, err := readPhoto(body)
	if err != nil {
		return nil, err
	}

	scan := uc.newScan(domain.InputPhoto, category)
	scan.MimeType = mimeType
	scan.PhotoPath = fmt.Sprintf("scans/%s%s", scan.ID, imageExtensions[mimeType])

	if err := uc.storage.Save(ctx, scan.PhotoPath, newReader(data)); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}
	return uc.register(ctx, scan)
}

func (uc *ScanIntakeUseCase) SubmitListing(ctx context.Context, category domain.Category, listingURL string) (*domain.ScanSession, error) {
	category, err := validCategory(category)
	if err != nil {
		return nil, err
	}
	listingURL = strings.TrimSpace(listingURL)
	u, err := url.Parse(listingURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: invalid listing url %q", domain.ErrInvalidInput, listingURL)
	}

	scan := uc.newScan(domain.InputListing, category)
	scan.ListingURL = listingURL
	return uc.register(ctx, scan)
}

func (uc *ScanIntakeUseCase) SubmitText(ctx context.Context, category domain.Category, text string) (*domain.ScanSession, error) {
	category, err := validCategory(category)
	if err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: text is required", domain.ErrInvalidInput)
	}
	if utf8.RuneCountInString(text) > maxScanTextRunes {
		return nil, fmt.Errorf("%w: text exceeds %d characters", domain.ErrInvalidInput, maxScanTextRunes)
	}

	scan := uc.newScan(domain.InputText, category)
	scan.Text = text
	return uc.register(ctx, scan)
}

func (uc *ScanIntakeUseCase) newScan(input domain.ScanInput, category domain.Category) *domain.ScanSession {
	now := uc.now()
	return &domain.ScanSession{
		ID:           uuid.NewString(),
		Input:        input,
		CategoryHint: category,
		Status:       domain.ScanUploaded,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func (uc *ScanIntakeUseCase) register(ctx context.Context, scan *domain.ScanSession) (*domain.ScanSession, error) {
	if err := uc.repo.Create(ctx, scan); err != nil {
		return nil, fmt.Errorf("create scan: %w", err)
	}
	if err := uc.queue.PublishScanRequested(ctx, scan.ID); err != nil {
		return nil, fmt.Errorf("publish scan request: %w", err)
	}
	return scan, nil
}
