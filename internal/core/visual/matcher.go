package visual

import (
	"fmt"
	"math"
	"sort"

	"github.com/kirillkom/flipscout/internal/core/domain"
)

type Config struct {
	Dimension          int     `mapstructure:"dimension"`
	HighThreshold      float64 `mapstructure:"high_threshold"`
	MediumThreshold    float64 `mapstructure:"medium_threshold"`
	LowThreshold       float64 `mapstructure:"low_threshold"`
	MinSeparation      float64 `mapstructure:"min_separation"`
	MinReferenceImages int     `mapstructure:"min_reference_images"`
	MinCatalogItems    int     `mapstructure:"min_catalog_items"`
	MinHighSupport     int     `mapstructure:"min_high_support"`
	TopN               int     `mapstructure:"top_n"`
	SupportSaturation  int     `mapstructure:"support_saturation"`
	BestWeight         float64 `mapstructure:"best_weight"`
	TopThreeWeight     float64 `mapstructure:"top_three_weight"`
	SupportWeight      float64 `mapstructure:"support_weight"`
}

func DefaultConfig() Config {
	return Config{
		HighThreshold:      0.85,
		MediumThreshold:    0.70,
		LowThreshold:       0.55,
		MinSeparation:      0.05,
		MinReferenceImages: 20,
		MinCatalogItems:    10,
		MinHighSupport:     3,
		TopN:               5,
		SupportSaturation:  5,
		BestWeight:         0.6,
		TopThreeWeight:     0.3,
		SupportWeight:      0.1,
	}
}

func (c Config) normalize() Config {
	d := DefaultConfig()
	if c.HighThreshold <= 0 {
		c.HighThreshold = d.HighThreshold
	}
	if c.MediumThreshold <= 0 {
		c.MediumThreshold = d.MediumThreshold
	}
	if c.LowThreshold <= 0 {
		c.LowThreshold = d.LowThreshold
	}
	if c.MinSeparation < 0 {
		c.MinSeparation = d.MinSeparation
	}
	if c.TopN <= 0 {
		c.TopN = d.TopN
	}
	if c.SupportSaturation <= 0 {
		c.SupportSaturation = d.SupportSaturation
	}
	if c.MinHighSupport <= 0 {
		c.MinHighSupport = d.MinHighSupport
	}
	if c.BestWeight+c.TopThreeWeight+c.SupportWeight <= 0 {
		c.BestWeight, c.TopThreeWeight, c.SupportWeight = d.BestWeight, d.TopThreeWeight, d.SupportWeight
	}
	return c
}

type Matcher struct {
	cfg Config
}

func NewMatcher(cfg Config) *Matcher {
	return &Matcher{cfg: cfg.normalize()}
}

func (m *Matcher) Config() Config {
	return m.cfg
}

// ValidateVector rejects vectors the embedding collaborator should never produce.
func (m *Matcher) ValidateVector(query []float32) error {
	if len(query) == 0 {
		return fmt.Errorf("%w: empty vector", domain.ErrInvalidVector)
	}
	if m.cfg.Dimension > 0 && len(query) != m.cfg.Dimension {
		return fmt.Errorf("%w: dimension %d, expected %d", domain.ErrInvalidVector, len(query), m.cfg.Dimension)
	}
	var norm float64
	for i, v := range query {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: non-finite component at %d", domain.ErrInvalidVector, i)
		}
		norm += f * f
	}
	if norm == 0 {
		return fmt.Errorf("%w: zero vector", domain.ErrInvalidVector)
	}
	return nil
}

// Match ranks catalog items by their reference-image similarities and decides
// whether the best one can be accepted without asking the user.
func (m *Matcher) Match(query []float32, category domain.Category, neighbors []domain.ItemNeighbors, stats domain.LibraryStats) (domain.VisualMatchSession, error) {
	if err := m.ValidateVector(query); err != nil {
		return domain.VisualMatchSession{}, err
	}

	matches := make([]domain.VisualMatch, 0, len(neighbors))
	for _, item := range neighbors {
		match, ok, err := m.scoreItem(item)
		if err != nil {
			return domain.VisualMatchSession{}, err
		}
		if ok {
			matches = append(matches, match)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ItemID < matches[j].ItemID
	})
	if len(matches) > m.cfg.TopN {
		matches = matches[:m.cfg.TopN]
	}

	session := domain.VisualMatchSession{
		Category:       category,
		QueryDimension: len(query),
		Matches:        matches,
		Confidence:     domain.BucketLow,
	}
	if len(matches) > 0 {
		session.BestScore = matches[0].Score
		session.ScoreGap = matches[0].Score
		if len(matches) > 1 {
			session.ScoreGap = matches[0].Score - matches[1].Score
		}
		session.Confidence = m.bucket(matches[0])
	}
	session.Outcome = m.outcome(session, stats)
	if session.Outcome == domain.OutcomeAutoSelected {
		selected := matches[0]
		session.Selected = &selected
	}
	return session, nil
}

func (m *Matcher) outcome(session domain.VisualMatchSession, stats domain.LibraryStats) domain.MatchOutcome {
	switch {
	case stats.ItemCount < m.cfg.MinCatalogItems:
		return domain.OutcomeLibraryBuilding
	case stats.ImageCount < m.cfg.MinReferenceImages, len(session.Matches) == 0, session.BestScore < m.cfg.LowThreshold:
		return domain.OutcomeNoConfidentMatch
	case session.BestScore >= m.cfg.HighThreshold && session.ScoreGap >= m.cfg.MinSeparation:
		return domain.OutcomeAutoSelected
	default:
		return domain.OutcomeUserRequired
	}
}

func (m *Matcher) bucket(best domain.VisualMatch) domain.ConfidenceBucket {
	switch {
	case best.Score >= m.cfg.HighThreshold && best.Support >= m.cfg.MinHighSupport:
		return domain.BucketHigh
	case best.Score >= m.cfg.MediumThreshold:
		return domain.BucketMedium
	default:
		return domain.BucketLow
	}
}

func (m *Matcher) scoreItem(item domain.ItemNeighbors) (domain.VisualMatch, bool, error) {
	if len(item.Similarities) == 0 {
		return domain.VisualMatch{}, false, nil
	}
	sims := make([]float64, len(item.Similarities))
	copy(sims, item.Similarities)
	for _, s := range sims {
		if math.IsNaN(s) || s < -1.0001 || s > 1.0001 {
			return domain.VisualMatch{}, false, fmt.Errorf("%w: similarity %v for item %s", domain.ErrLookupFailed, s, item.ItemID)
		}
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(sims)))

	top := sims
	if len(top) > 3 {
		top = top[:3]
	}
	var sum float64
	for _, s := range top {
		sum += s
	}
	topThree := sum / float64(len(top))
	support := len(sims)
	saturation := math.Min(float64(support), float64(m.cfg.SupportSaturation)) / float64(m.cfg.SupportSaturation)

	totalWeight := m.cfg.BestWeight + m.cfg.TopThreeWeight + m.cfg.SupportWeight
	score := (m.cfg.BestWeight*sims[0] + m.cfg.TopThreeWeight*topThree + m.cfg.SupportWeight*saturation) / totalWeight

	return domain.VisualMatch{
		ItemID:          item.ItemID,
		Title:           item.Title,
		Score:           round4(score),
		BestSimilarity:  sims[0],
		TopThreeAverage: round4(topThree),
		Support:         support,
	}, true, nil
}

// GroupHits folds image-level hits into per-item neighbor lists in first-seen order.
func GroupHits(hits []domain.ImageHit) []domain.ItemNeighbors {
	index := make(map[string]int, len(hits))
	out := make([]domain.ItemNeighbors, 0)
	for _, hit := range hits {
		if hit.ItemID == "" {
			continue
		}
		i, ok := index[hit.ItemID]
		if !ok {
			i = len(out)
			index[hit.ItemID] = i
			out = append(out, domain.ItemNeighbors{ItemID: hit.ItemID, Title: hit.Title})
		}
		out[i].Similarities = append(out[i].Similarities, hit.Similarity)
	}
	return out
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
