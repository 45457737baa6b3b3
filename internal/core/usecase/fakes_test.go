package usecase

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/kirillkom/flipscout/internal/core/domain"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01")

type statusCall struct {
	status domain.ScanStatus
	errMsg string
}

type scanRepoFake struct {
	mu          sync.Mutex
	scans       map[string]*domain.ScanSession
	createErr   error
	saveErr     error
	confirmErr  error
	statusCalls []statusCall
	confirmed   string
}

func newScanRepoFake(scans ...*domain.ScanSession) *scanRepoFake {
	f := &scanRepoFake{scans: make(map[string]*domain.ScanSession)}
	for _, s := range scans {
		f.scans[s.ID] = s
	}
	return f
}

func (f *scanRepoFake) Create(_ context.Context, scan *domain.ScanSession) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	copyScan := *scan
	f.scans[scan.ID] = &copyScan
	return nil
}

func (f *scanRepoFake) GetByID(_ context.Context, id string) (*domain.ScanSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	scan, ok := f.scans[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrScanNotFound, "get scan", io.EOF)
	}
	copyScan := *scan
	return &copyScan, nil
}

func (f *scanRepoFake) UpdateStatus(_ context.Context, id string, status domain.ScanStatus, errMessage string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls = append(f.statusCalls, statusCall{status: status, errMsg: errMessage})
	if scan, ok := f.scans[id]; ok {
		scan.Status = status
		scan.Error = errMessage
	}
	return nil
}

func (f *scanRepoFake) SaveResult(_ context.Context, id string, visual *domain.VisualMatchSession, result *domain.IdentificationPipelineResult) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	scan := f.scans[id]
	scan.Visual = visual
	scan.Identification = result
	scan.Status = domain.ScanReady
	return nil
}

func (f *scanRepoFake) Confirm(_ context.Context, id, candidateID string) error {
	if f.confirmErr != nil {
		return f.confirmErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confirmed = candidateID
	scan := f.scans[id]
	scan.Status = domain.ScanConfirmed
	scan.ConfirmedCandidateID = candidateID
	return nil
}

type storageFake struct {
	mu      sync.Mutex
	objects map[string][]byte
	saveErr error
}

func newStorageFake() *storageFake {
	return &storageFake{objects: make(map[string][]byte)}
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	body, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = body
	return nil
}

func (f *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	body, ok := f.objects[key]
	if !ok {
		return nil, domain.ErrLookupFailed
	}
	return io.NopCloser(bytes.NewReader(body)), nil
}

type queueFake struct {
	published  []string
	publishErr error
}

func (f *queueFake) PublishScanRequested(_ context.Context, scanID string) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, scanID)
	return nil
}

func (f *queueFake) SubscribeScanRequested(context.Context, func(context.Context, string) error) error {
	return nil
}

type embedderFake struct {
	vector []float32
	err    error
}

func (f *embedderFake) EmbedImage(context.Context, []byte) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

func (f *embedderFake) Dimension() int { return len(f.vector) }

type libraryFake struct {
	mu        sync.Mutex
	hits      []domain.ImageHit
	itemHits  map[string][]domain.ImageHit
	stats     domain.LibraryStats
	indexed   []domain.LibraryImage
	searchErr error
}

func (f *libraryFake) IndexImage(_ context.Context, image domain.LibraryImage, _ []float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexed = append(f.indexed, image)
	return nil
}

func (f *libraryFake) SearchImages(context.Context, domain.Category, []float32, int) ([]domain.ImageHit, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.hits, nil
}

func (f *libraryFake) SearchItemImages(_ context.Context, _ domain.Category, itemID string, _ []float32, limit int) ([]domain.ImageHit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	hits := f.itemHits[itemID]
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (f *libraryFake) Stats(_ context.Context, category domain.Category) (domain.LibraryStats, error) {
	stats := f.stats
	stats.Category = category
	return stats, nil
}

type classifierFake struct {
	obs domain.StageObservation
	err error
}

func (f *classifierFake) Observe(context.Context, []byte, string) (domain.StageObservation, error) {
	if f.err != nil {
		return domain.StageObservation{}, f.err
	}
	return f.obs, nil
}

type listingFake struct {
	listing  domain.Listing
	image    []byte
	err      error
	imageErr error
}

func (f *listingFake) FetchListing(context.Context, string) (domain.Listing, error) {
	if f.err != nil {
		return domain.Listing{}, f.err
	}
	return f.listing, nil
}

func (f *listingFake) FetchImage(context.Context, string) ([]byte, error) {
	if f.imageErr != nil {
		return nil, f.imageErr
	}
	return f.image, nil
}

type observerFake struct {
	results []domain.IdentificationPipelineResult
}

func (f *observerFake) ObserveScan(result domain.IdentificationPipelineResult, _ *domain.VisualMatchSession) {
	f.results = append(f.results, result)
}
