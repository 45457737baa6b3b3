package httpadapter

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/kirillkom/flipscout/internal/config"
	"github.com/kirillkom/flipscout/internal/core/domain"
	"github.com/kirillkom/flipscout/internal/core/ports"
	"github.com/kirillkom/flipscout/internal/observability/metrics"
)

type decisionFake struct {
	report *ports.DecisionReport
	comps  domain.CompsResult
	err    error
	got    ports.DecideRequest
}

func (f *decisionFake) Decide(_ context.Context, req ports.DecideRequest) (*ports.DecisionReport, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return f.report, nil
}

func (f *decisionFake) Summarize(context.Context, ports.CompsRequest) (domain.CompsResult, error) {
	if f.err != nil {
		return domain.CompsResult{}, f.err
	}
	return f.comps, nil
}

func (f *decisionFake) Rank(_ context.Context, ops []domain.Opportunity) []domain.RankedOpportunity {
	out := make([]domain.RankedOpportunity, 0, len(ops))
	for i, op := range ops {
		out = append(out, domain.RankedOpportunity{Rank: i + 1, Opportunity: op})
	}
	return out
}

type intakeFake struct {
	category domain.Category
	photo    []byte
	text     string
	listing  string
	err      error
}

func (f *intakeFake) SubmitPhoto(_ context.Context, category domain.Category, _ string, body io.Reader) (*domain.ScanSession, error) {
	if f.err != nil {
		return nil, f.err
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	f.category = category
	f.photo = raw
	return &domain.ScanSession{ID: "scan-photo", Input: domain.InputPhoto, CategoryHint: category, Status: domain.ScanUploaded}, nil
}

func (f *intakeFake) SubmitListing(_ context.Context, category domain.Category, listingURL string) (*domain.ScanSession, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.category = category
	f.listing = listingURL
	return &domain.ScanSession{ID: "scan-listing", Input: domain.InputListing, ListingURL: listingURL, Status: domain.ScanUploaded}, nil
}

func (f *intakeFake) SubmitText(_ context.Context, category domain.Category, text string) (*domain.ScanSession, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.category = category
	f.text = text
	return &domain.ScanSession{ID: "scan-text", Input: domain.InputText, Text: text, Status: domain.ScanUploaded}, nil
}

type scansFake struct {
	scan       *domain.ScanSession
	err        error
	confirmErr error
	candidate  string
}

func (f *scansFake) GetByID(_ context.Context, id string) (*domain.ScanSession, error) {
	if f.err != nil {
		return nil, f.err
	}
	scan := *f.scan
	scan.ID = id
	return &scan, nil
}

func (f *scansFake) Confirm(_ context.Context, scanID, candidateID string) (*domain.ScanSession, error) {
	if f.confirmErr != nil {
		return nil, f.confirmErr
	}
	f.candidate = candidateID
	return &domain.ScanSession{ID: scanID, Status: domain.ScanConfirmed, ConfirmedCandidateID: candidateID}, nil
}

type libraryFake struct {
	got   domain.LibraryImage
	photo []byte
	err   error
}

func (f *libraryFake) IndexReference(_ context.Context, image domain.LibraryImage, body io.Reader) (*domain.LibraryImage, error) {
	if f.err != nil {
		return nil, f.err
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	f.got = image
	f.photo = raw
	image.ID = "img-1"
	image.Primary = true
	image.CreatedAt = time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	return &image, nil
}

func (f *libraryFake) Stats(_ context.Context, category domain.Category) (domain.LibraryStats, error) {
	if f.err != nil {
		return domain.LibraryStats{}, f.err
	}
	return domain.LibraryStats{Category: category, ItemCount: 2, ImageCount: 7}, nil
}

type testDeps struct {
	decisions *decisionFake
	intake    *intakeFake
	scans     *scansFake
	library   *libraryFake
	metrics   *metrics.HTTPServerMetrics
}

func newTestDeps() *testDeps {
	return &testDeps{
		decisions: &decisionFake{},
		intake:    &intakeFake{},
		scans:     &scansFake{scan: &domain.ScanSession{Status: domain.ScanReady}},
		library:   &libraryFake{},
		metrics:   metrics.NewHTTPServerMetrics(serviceName),
	}
}

func (d *testDeps) handler(cfg config.APIConfig) http.Handler {
	return NewRouter(cfg, Services{
		Decisions: d.decisions,
		Intake:    d.intake,
		Scans:     d.scans,
		Confirmer: d.scans,
		Library:   d.library,
	}, d.metrics, nil).Handler()
}
