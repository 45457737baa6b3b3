package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/flipscout/internal/catalog"
	"github.com/kirillkom/flipscout/internal/core/domain"
	"github.com/kirillkom/flipscout/internal/core/pipeline"
	"github.com/kirillkom/flipscout/internal/core/ports"
	"github.com/kirillkom/flipscout/internal/core/visual"
)

const (
	defaultNeighborsPerItem = 8
	neighborFanOut          = 4
)

// ScanObserver receives every finished identification. Used for metrics.
type ScanObserver interface {
	ObserveScan(result domain.IdentificationPipelineResult, match *domain.VisualMatchSession)
}

type ProcessScanDeps struct {
	Repo       ports.ScanRepository
	Storage    ports.ObjectStorage
	Embedder   ports.ImageEmbedder
	Library    ports.VisualLibrary
	Classifier ports.StageClassifier
	Listings   ports.ListingFetcher
	Dataset    *catalog.Dataset
	Matcher    *visual.Matcher
	Observer   ScanObserver
	Logger     *zap.Logger
}

type ProcessScanConfig struct {
	Pipeline         pipeline.Config
	NeighborsPerItem int
}

var _ ports.ScanProcessor = (*ProcessScanUseCase)(nil)

// ProcessScanUseCase gathers evidence for a scan and runs it through the
// staged identification pipeline.
type ProcessScanUseCase struct {
	deps ProcessScanDeps
	cfg  ProcessScanConfig
}

func NewProcessScanUseCase(deps ProcessScanDeps, cfg ProcessScanConfig) *ProcessScanUseCase {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if cfg.NeighborsPerItem <= 0 {
		cfg.NeighborsPerItem = defaultNeighborsPerItem
	}
	return &ProcessScanUseCase{deps: deps, cfg: cfg}
}

// evidence is everything gathered for one scan before the pipeline runs.
type evidence struct {
	observation domain.StageObservation
	visual      *domain.VisualMatchSession
}

func (uc *ProcessScanUseCase) ProcessByID(ctx context.Context, scanID string) error {
	start := time.Now()
	scan, err := uc.deps.Repo.GetByID(ctx, scanID)
	if err != nil {
		return fmt.Errorf("fetch scan by id: %w", err)
	}
	if scan.Status == domain.ScanConfirmed {
		uc.deps.Logger.Info("scan already confirmed, skipping", zap.String("scan_id", scanID))
		return nil
	}

	if err := uc.deps.Repo.UpdateStatus(ctx, scanID, domain.ScanProcessing, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	ev, result, err := uc.identify(ctx, scan)
	if err == nil {
		err = uc.persist(ctx, scanID, ev.visual, &result)
	}
	if err != nil {
		if failErr := uc.markFailed(ctx, scanID, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if uc.deps.Observer != nil {
		uc.deps.Observer.ObserveScan(result, ev.visual)
	}
	uc.deps.Logger.Info("scan identified",
		zap.String("scan_id", scanID),
		zap.String("input", string(scan.Input)),
		zap.String("tier", string(result.Tier)),
		zap.Float64("confidence", result.AggregatedConfidence),
		zap.Duration("took", time.Since(start)),
	)
	return nil
}

func (uc *ProcessScanUseCase) identify(ctx context.Context, scan *domain.ScanSession) (evidence, domain.IdentificationPipelineResult, error) {
	ev, err := uc.gather(ctx, scan)
	if err != nil {
		return evidence{}, domain.IdentificationPipelineResult{}, err
	}
	result, err := uc.runPipeline(ev)
	if err != nil {
		return evidence{}, domain.IdentificationPipelineResult{}, err
	}
	return ev, result, nil
}

func (uc *ProcessScanUseCase) gather(ctx context.Context, scan *domain.ScanSession) (evidence, error) {
	switch scan.Input {
	case domain.InputPhoto:
		rc, err := uc.deps.Storage.Open(ctx, scan.PhotoPath)
		if err != nil {
			return evidence{}, fmt.Errorf("open scan photo: %w", err)
		}
		photo, err := readStored(rc)
		if err != nil {
			return evidence{}, err
		}
		return uc.fromPhoto(ctx, scan.CategoryHint, photo, scan.Text)

	case domain.InputListing:
		if uc.deps.Listings == nil {
			return evidence{}, fmt.Errorf("%w: listing lookups are not configured", domain.ErrLookupFailed)
		}
		listing, err := uc.deps.Listings.FetchListing(ctx, scan.ListingURL)
		if err != nil {
			return evidence{}, fmt.Errorf("fetch listing: %w", err)
		}
		text := strings.TrimSpace(listing.Title + " " + listing.Condition)
		if len(listing.ImageURLs) > 0 {
			photo, err := uc.deps.Listings.FetchImage(ctx, listing.ImageURLs[0])
			if err == nil {
				return uc.fromPhoto(ctx, scan.CategoryHint, photo, text)
			}
			uc.deps.Logger.Warn("listing photo unavailable, using title only",
				zap.String("scan_id", scan.ID),
				zap.Error(err),
			)
		}
		return evidence{observation: uc.heuristics(text)}, nil

	case domain.InputText:
		return evidence{observation: uc.heuristics(scan.Text)}, nil
	}
	return evidence{}, fmt.Errorf("%w: unknown scan input %q", domain.ErrInvalidInput, scan.Input)
}

// fromPhoto runs visual matching and the stage classifier concurrently.
// Text heuristics fill in whatever the classifier leaves blank.
func (uc *ProcessScanUseCase) fromPhoto(ctx context.Context, category domain.Category, photo []byte, text string) (evidence, error) {
	var (
		ev  evidence
		obs domain.StageObservation
	)
	g, gctx := errgroup.WithContext(ctx)

	if uc.deps.Embedder != nil && uc.deps.Library != nil && uc.deps.Matcher != nil {
		g.Go(func() error {
			match, err := uc.matchVisual(gctx, category, photo)
			if err != nil {
				return err
			}
			ev.visual = &match
			return nil
		})
	}
	if uc.deps.Classifier != nil {
		g.Go(func() error {
			observed, err := uc.deps.Classifier.Observe(gctx, photo, text)
			if err != nil {
				return fmt.Errorf("observe photo: %w", err)
			}
			obs = observed
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return evidence{}, err
	}

	ev.observation = mergeObservations(obs, uc.heuristics(strings.TrimSpace(text+" "+obs.Text)))
	return ev, nil
}

func (uc *ProcessScanUseCase) matchVisual(ctx context.Context, category domain.Category, photo []byte) (domain.VisualMatchSession, error) {
	if category == "" {
		category = domain.CategoryGeneral
	}
	vector, err := uc.deps.Embedder.EmbedImage(ctx, photo)
	if err != nil {
		return domain.VisualMatchSession{}, fmt.Errorf("embed photo: %w", err)
	}
	if err := uc.deps.Matcher.ValidateVector(vector); err != nil {
		return domain.VisualMatchSession{}, err
	}

	stats, err := uc.deps.Library.Stats(ctx, category)
	if err != nil {
		return domain.VisualMatchSession{}, fmt.Errorf("library stats: %w", err)
	}
	topN := uc.deps.Matcher.Config().TopN
	hits, err := uc.deps.Library.SearchImages(ctx, category, vector, topN*uc.cfg.NeighborsPerItem)
	if err != nil {
		return domain.VisualMatchSession{}, fmt.Errorf("search library: %w", err)
	}

	candidates := visual.GroupHits(hits)
	if len(candidates) > topN {
		candidates = candidates[:topN]
	}
	neighbors, err := uc.itemNeighbors(ctx, category, vector, candidates)
	if err != nil {
		return domain.VisualMatchSession{}, err
	}
	return uc.deps.Matcher.Match(vector, category, neighbors, stats)
}

// itemNeighbors re-queries each candidate item's own reference images so
// every item is scored on the same number of neighbors.
func (uc *ProcessScanUseCase) itemNeighbors(ctx context.Context, category domain.Category, vector []float32, items []domain.ItemNeighbors) ([]domain.ItemNeighbors, error) {
	out := make([]domain.ItemNeighbors, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(neighborFanOut)
	for i, item := range items {
		g.Go(func() error {
			hits, err := uc.deps.Library.SearchItemImages(gctx, category, item.ItemID, vector, uc.cfg.NeighborsPerItem)
			if err != nil {
				return fmt.Errorf("search item %s: %w", item.ItemID, err)
			}
			out[i] = domain.ItemNeighbors{ItemID: item.ItemID, Title: item.Title}
			for _, h := range hits {
				out[i].Similarities = append(out[i].Similarities, h.Similarity)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// heuristics derives stage evidence from text alone using the catalog dataset.
func (uc *ProcessScanUseCase) heuristics(text string) domain.StageObservation {
	obs := domain.StageObservation{
		ObjectProbabilities: uc.deps.Dataset.ObjectTypeScores(text),
		Text:                text,
	}
	if brand, ok := uc.deps.Dataset.FindBrand(text); ok {
		obs.Brand = brand.Brand
		obs.BrandConfidence = brand.Confidence
		if line, ok := uc.deps.Dataset.FindLine(brand.Brand, text); ok {
			obs.Line = line.Line
			obs.LineConfidence = line.Confidence
		}
	}
	return obs
}

func mergeObservations(primary, fallback domain.StageObservation) domain.StageObservation {
	out := primary
	if len(out.ObjectProbabilities) == 0 {
		out.ObjectProbabilities = fallback.ObjectProbabilities
	}
	if out.Brand == "" {
		out.Brand = fallback.Brand
		out.BrandConfidence = fallback.BrandConfidence
	}
	if out.Line == "" && strings.EqualFold(out.Brand, fallback.Brand) {
		out.Line = fallback.Line
		out.LineConfidence = fallback.LineConfidence
	}
	out.Text = fallback.Text
	return out
}

func (uc *ProcessScanUseCase) runPipeline(ev evidence) (domain.IdentificationPipelineResult, error) {
	obs := ev.observation
	p := pipeline.New(uc.deps.Dataset, uc.cfg.Pipeline)

	objectType, err := p.LockObjectType(obs.ObjectProbabilities, obs.Signals, obs.Text)
	if err != nil {
		return domain.IdentificationPipelineResult{}, fmt.Errorf("lock object type: %w", err)
	}
	brand, err := p.InferBrand(obs.Brand, obs.BrandConfidence)
	if err != nil {
		return domain.IdentificationPipelineResult{}, fmt.Errorf("infer brand: %w", err)
	}
	line, err := p.InferLine(obs.Line, obs.LineConfidence)
	if err != nil {
		return domain.IdentificationPipelineResult{}, fmt.Errorf("infer line: %w", err)
	}

	candidates := buildCandidates(objectType.Type.Category(), brand, line, ev.visual, obs.Text)
	if _, err := p.GenerateCandidates(candidates); err != nil {
		return domain.IdentificationPipelineResult{}, fmt.Errorf("generate candidates: %w", err)
	}
	return p.Aggregate()
}

func (uc *ProcessScanUseCase) persist(ctx context.Context, scanID string, match *domain.VisualMatchSession, result *domain.IdentificationPipelineResult) error {
	if err := uc.deps.Repo.SaveResult(ctx, scanID, match, result); err != nil {
		return fmt.Errorf("save scan result: %w", err)
	}
	return nil
}

func (uc *ProcessScanUseCase) markFailed(ctx context.Context, scanID string, processErr error) error {
	if processErr == nil {
		return nil
	}
	// The scan may have been confirmed concurrently; leave it alone.
	err := uc.deps.Repo.UpdateStatus(ctx, scanID, domain.ScanFailed, processErr.Error())
	if errors.Is(err, domain.ErrConflict) {
		return nil
	}
	return err
}
