package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/kirillkom/flipscout/internal/core/domain"
	"github.com/kirillkom/flipscout/internal/core/ports"
)

var (
	_ ports.ScanConfirmer = (*ConfirmScanUseCase)(nil)
	_ ports.ScanReader    = (*ConfirmScanUseCase)(nil)
)

// ConfirmScanUseCase records which disclosed candidate the user picked.
type ConfirmScanUseCase struct {
	repo ports.ScanRepository
}

func NewConfirmScanUseCase(repo ports.ScanRepository) *ConfirmScanUseCase {
	return &ConfirmScanUseCase{repo: repo}
}

func (uc *ConfirmScanUseCase) GetByID(ctx context.Context, id string) (*domain.ScanSession, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: scan id is required", domain.ErrInvalidInput)
	}
	return uc.repo.GetByID(ctx, id)
}

// Confirm accepts only a candidate that was disclosed as selectable, and only
// while the scan sits at the high tier.
func (uc *ConfirmScanUseCase) Confirm(ctx context.Context, scanID, candidateID string) (*domain.ScanSession, error) {
	candidateID = strings.TrimSpace(candidateID)
	if candidateID == "" {
		return nil, fmt.Errorf("%w: candidate id is required", domain.ErrInvalidInput)
	}
	scan, err := uc.GetByID(ctx, scanID)
	if err != nil {
		return nil, err
	}

	switch scan.Status {
	case domain.ScanReady:
	case domain.ScanConfirmed:
		return nil, fmt.Errorf("%w: scan %s is already confirmed", domain.ErrConflict, scan.ID)
	default:
		return nil, fmt.Errorf("%w: scan %s is %s", domain.ErrConflict, scan.ID, scan.Status)
	}

	result := scan.Identification
	if result == nil || result.Disclosure == nil {
		return nil, fmt.Errorf("%w: scan %s has no identification", domain.ErrConflict, scan.ID)
	}
	if result.Disclosure.Tier != domain.TierHigh {
		return nil, fmt.Errorf("%w: %s tier scans cannot be confirmed", domain.ErrConflict, result.Disclosure.Tier)
	}
	if !disclosed(result.Disclosure.Candidates, candidateID) {
		return nil, fmt.Errorf("%w: candidate %q was not offered", domain.ErrInvalidInput, candidateID)
	}

	if err := uc.repo.Confirm(ctx, scan.ID, candidateID); err != nil {
		return nil, fmt.Errorf("confirm scan: %w", err)
	}
	return uc.repo.GetByID(ctx, scan.ID)
}

func disclosed(candidates []domain.ScanCandidate, id string) bool {
	for _, c := range candidates {
		if c.ID == id {
			return true
		}
	}
	return false
}
