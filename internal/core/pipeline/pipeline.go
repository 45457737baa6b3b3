package pipeline

import (
	"fmt"
	"math"
	"sort"

	"github.com/kirillkom/flipscout/internal/catalog"
	"github.com/kirillkom/flipscout/internal/core/domain"
)

const (
	DefaultTopK                 = 5
	DefaultMaxSelectable        = 3
	DefaultIncompatibleBrandCap = 0.5
)

type Config struct {
	TopK                 int
	MaxSelectable        int
	IncompatibleBrandCap float64
}

func DefaultConfig() Config {
	return Config{
		TopK:                 DefaultTopK,
		MaxSelectable:        DefaultMaxSelectable,
		IncompatibleBrandCap: DefaultIncompatibleBrandCap,
	}
}

// Pipeline identifies one scan. Its stage index only advances: every stage
// runs exactly once, in order, and a locked stage cannot be revisited.
// A Pipeline is not safe for concurrent use.
type Pipeline struct {
	cfg     Config
	dataset *catalog.Dataset
	stage   domain.PipelineStage
	result  domain.IdentificationPipelineResult
}

func New(dataset *catalog.Dataset, cfg Config) *Pipeline {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.MaxSelectable <= 0 {
		cfg.MaxSelectable = DefaultMaxSelectable
	}
	if cfg.IncompatibleBrandCap <= 0 {
		cfg.IncompatibleBrandCap = DefaultIncompatibleBrandCap
	}
	return &Pipeline{cfg: cfg, dataset: dataset}
}

// Stage is the last locked stage.
func (p *Pipeline) Stage() domain.PipelineStage {
	return p.stage
}

// Result returns a copy of the state so far.
func (p *Pipeline) Result() domain.IdentificationPipelineResult {
	return p.result
}

func (p *Pipeline) enter(stage domain.PipelineStage) error {
	switch {
	case p.stage >= stage:
		return fmt.Errorf("%w: %s", domain.ErrStageLocked, stage)
	case p.stage != stage-1:
		return fmt.Errorf("%w: %s requires %s", domain.ErrStageOrder, stage, stage-1)
	}
	return nil
}

func (p *Pipeline) lock(stage domain.PipelineStage) {
	p.stage = stage
	p.result.Stage = stage
}

// LockObjectType runs stage 1. Override rules from the dataset force a type
// with full confidence; otherwise the most probable type wins, ties broken
// by name.
func (p *Pipeline) LockObjectType(probabilities map[domain.ObjectType]float64, signals []string, text string) (domain.ObjectTypeResult, error) {
	if err := p.enter(domain.StageObjectType); err != nil {
		return domain.ObjectTypeResult{}, err
	}
	for t, prob := range probabilities {
		if !t.Valid() {
			return domain.ObjectTypeResult{}, fmt.Errorf("%w: unknown object type %q", domain.ErrInvalidInput, t)
		}
		if err := checkConfidence(prob); err != nil {
			return domain.ObjectTypeResult{}, err
		}
	}

	var res domain.ObjectTypeResult
	if forced, rule, ok := p.dataset.ForcedObjectType(signals, text); ok {
		res = domain.ObjectTypeResult{Type: forced, Confidence: 1, IsForced: true, ForcedBy: rule}
	} else {
		res = domain.ObjectTypeResult{Type: domain.ObjectOther}
		for _, t := range sortedTypes(probabilities) {
			if prob := probabilities[t]; prob > res.Confidence {
				res = domain.ObjectTypeResult{Type: t, Confidence: prob}
			}
		}
	}

	p.result.ObjectType = &res
	p.lock(domain.StageObjectType)
	return res, nil
}

// InferBrand runs stage 2. A brand the dataset says cannot make the locked
// object type is flagged and its confidence capped.
func (p *Pipeline) InferBrand(brand string, confidence float64) (domain.BrandResult, error) {
	if err := p.enter(domain.StageBrand); err != nil {
		return domain.BrandResult{}, err
	}
	if err := checkConfidence(confidence); err != nil {
		return domain.BrandResult{}, err
	}

	res := domain.BrandResult{Brand: brand, Confidence: confidence, Compatible: true}
	if known, ok := p.dataset.Brand(brand); ok {
		res.Brand = known.Name
		objectType := p.result.ObjectType.Type
		if _, allowed := p.dataset.BrandAllows(known.Name, objectType); !allowed {
			res.Compatible = false
			res.Incompatible = fmt.Sprintf("%s does not make %s items", known.Name, objectType)
			res.Confidence = math.Min(res.Confidence, p.cfg.IncompatibleBrandCap)
		}
	}

	p.result.Brand = &res
	p.lock(domain.StageBrand)
	return res, nil
}

// InferLine runs stage 3, canonicalizing the line within the locked brand.
func (p *Pipeline) InferLine(line string, confidence float64) (domain.LineResult, error) {
	if err := p.enter(domain.StageLine); err != nil {
		return domain.LineResult{}, err
	}
	if err := checkConfidence(confidence); err != nil {
		return domain.LineResult{}, err
	}

	res := domain.LineResult{Line: line, Confidence: confidence}
	if canonical, ok := p.dataset.CanonicalLine(p.result.Brand.Brand, line); ok {
		res.Line = canonical
	}

	p.result.Line = &res
	p.lock(domain.StageLine)
	return res, nil
}

// GenerateCandidates runs stage 4, keeping the top K candidates. Every
// candidate and its metadata must belong to the locked object type's category.
func (p *Pipeline) GenerateCandidates(candidates []domain.ScanCandidate) (domain.CandidateSet, error) {
	if err := p.enter(domain.StageCandidates); err != nil {
		return domain.CandidateSet{}, err
	}
	category := p.result.ObjectType.Type.Category()
	ranked := make([]domain.ScanCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Category != category {
			return domain.CandidateSet{}, fmt.Errorf("%w: %s candidate %q for locked %s", domain.ErrInvalidInput, c.Category, c.ID, p.result.ObjectType.Type)
		}
		if c.Confidence < 0 || c.Confidence > 100 {
			return domain.CandidateSet{}, fmt.Errorf("%w: candidate %q confidence %d", domain.ErrInvalidInput, c.ID, c.Confidence)
		}
		if err := domain.CheckMetadata(category, c.Metadata); err != nil {
			return domain.CandidateSet{}, fmt.Errorf("candidate %q: %w", c.ID, err)
		}
		c.Provenance.Stage = domain.StageCandidates
		c.Provenance.AutoConfirmed = false
		ranked = append(ranked, c)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Confidence != ranked[j].Confidence {
			return ranked[i].Confidence > ranked[j].Confidence
		}
		return ranked[i].ID < ranked[j].ID
	})
	if len(ranked) > p.cfg.TopK {
		ranked = ranked[:p.cfg.TopK]
	}

	res := domain.CandidateSet{Candidates: ranked}
	if len(ranked) > 0 {
		res.TopConfidence = float64(ranked[0].Confidence) / 100
	}

	p.result.Candidates = &res
	p.lock(domain.StageCandidates)
	return res, nil
}

// Aggregate runs stage 5: the weakest stage bounds the final confidence,
// which picks the tier and with it what may be disclosed.
func (p *Pipeline) Aggregate() (domain.IdentificationPipelineResult, error) {
	if err := p.enter(domain.StageAggregation); err != nil {
		return domain.IdentificationPipelineResult{}, err
	}

	confidence := math.Min(
		math.Min(p.result.ObjectType.Confidence, p.result.Brand.Confidence),
		math.Min(p.result.Line.Confidence, p.result.Candidates.TopConfidence),
	)
	tier := domain.TierFor(confidence)
	disclosure := p.disclose(tier)

	p.result.AggregatedConfidence = confidence
	p.result.Tier = tier
	p.result.Disclosure = &disclosure
	p.result.PipelineLocked = true
	p.lock(domain.StageAggregation)
	return p.result, nil
}

func (p *Pipeline) disclose(tier domain.ConfidenceTier) domain.Disclosure {
	objectType := p.result.ObjectType.Type
	brand := p.result.Brand.Brand
	out := domain.Disclosure{Tier: tier, Label: p.dataset.Label(objectType)}

	switch tier {
	case domain.TierLow:
		out.ManualEntryRequired = true
	case domain.TierMedium:
		out.ObjectType = objectType
		out.Brand = brand
		if brand != "" {
			out.Label = brand + " " + p.dataset.Label(objectType)
		}
	case domain.TierHigh:
		out.ObjectType = objectType
		out.Brand = brand
		out.Label = joinNonEmpty(brand, p.result.Line.Line)
		n := len(p.result.Candidates.Candidates)
		if n > p.cfg.MaxSelectable {
			n = p.cfg.MaxSelectable
		}
		out.Candidates = append([]domain.ScanCandidate(nil), p.result.Candidates.Candidates[:n]...)
	case domain.TierConfirmed:
		confirmed := p.result.Candidates.Candidates[0]
		confirmed.Provenance.Stage = domain.StageAggregation
		confirmed.Provenance.AutoConfirmed = true
		out.ObjectType = objectType
		out.Brand = brand
		out.Label = confirmed.Title
		out.Candidates = []domain.ScanCandidate{confirmed}
		out.Confirmed = &confirmed
	}
	return out
}

func checkConfidence(v float64) error {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return fmt.Errorf("%w: stage confidence %v outside [0,1]", domain.ErrInvalidInput, v)
	}
	return nil
}

func sortedTypes(probabilities map[domain.ObjectType]float64) []domain.ObjectType {
	out := make([]domain.ObjectType, 0, len(probabilities))
	for t := range probabilities {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func joinNonEmpty(parts ...string) string {
	out := ""
	for _, part := range parts {
		if part == "" {
			continue
		}
		if out != "" {
			out += " "
		}
		out += part
	}
	return out
}
