package catalog

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/flipscout/internal/core/domain"
)

//go:embed default.yaml
var defaultDataset []byte

type fileFormat struct {
	Version       int                        `yaml:"version"`
	ObjectTypes   map[string]objectTypeEntry `yaml:"object_types"`
	OverrideRules []OverrideRule             `yaml:"override_rules"`
	Brands        []Brand                    `yaml:"brands"`
}

type objectTypeEntry struct {
	Label    string   `yaml:"label"`
	Keywords []string `yaml:"keywords"`
}

// OverrideRule forces an object type when a strong signal is present.
type OverrideRule struct {
	Name       string            `yaml:"name"`
	ObjectType domain.ObjectType `yaml:"object_type"`
	Signals    []string          `yaml:"signals"`
	Keywords   []string          `yaml:"keywords"`
}

type Line struct {
	Name    string   `yaml:"name"`
	Aliases []string `yaml:"aliases"`
}

type Brand struct {
	Name        string              `yaml:"name"`
	Aliases     []string            `yaml:"aliases"`
	ObjectTypes []domain.ObjectType `yaml:"object_types"`
	Lines       []Line              `yaml:"lines"`
}

// Dataset is immutable after loading and safe for concurrent reads.
type Dataset struct {
	version  int
	labels   map[domain.ObjectType]string
	keywords map[domain.ObjectType][]string
	rules    []OverrideRule
	brands   []Brand
	byAlias  map[string]int
	// aliases sorted longest first so multi-word names win over short ones
	aliases  []string
}

func Default() (*Dataset, error) {
	return Load(bytes.NewReader(defaultDataset))
}

func LoadFile(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog dataset: %w", err)
	}
	defer f.Close()
	return Load(f)
}

func Load(r io.Reader) (*Dataset, error) {
	var raw fileFormat
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode catalog dataset: %w", err)
	}

	d := &Dataset{
		version:  raw.Version,
		labels:   make(map[domain.ObjectType]string, len(raw.ObjectTypes)),
		keywords: make(map[domain.ObjectType][]string, len(raw.ObjectTypes)),
		byAlias:  make(map[string]int),
	}
	for name, entry := range raw.ObjectTypes {
		objectType := domain.ObjectType(name)
		if !objectType.Valid() {
			return nil, fmt.Errorf("catalog dataset: unknown object type %q", name)
		}
		d.labels[objectType] = entry.Label
		d.keywords[objectType] = normalizeAll(entry.Keywords)
	}
	for _, rule := range raw.OverrideRules {
		if !rule.ObjectType.Valid() {
			return nil, fmt.Errorf("catalog dataset: rule %q forces unknown object type %q", rule.Name, rule.ObjectType)
		}
		rule.Keywords = normalizeAll(rule.Keywords)
		d.rules = append(d.rules, rule)
	}
	for i, brand := range raw.Brands {
		if strings.TrimSpace(brand.Name) == "" {
			return nil, fmt.Errorf("catalog dataset: brand %d has no name", i)
		}
		for _, t := range brand.ObjectTypes {
			if !t.Valid() {
				return nil, fmt.Errorf("catalog dataset: brand %q lists unknown object type %q", brand.Name, t)
			}
		}
		brand.Aliases = normalizeAll(append([]string{brand.Name}, brand.Aliases...))
		for j := range brand.Lines {
			brand.Lines[j].Aliases = normalizeAll(append([]string{brand.Lines[j].Name}, brand.Lines[j].Aliases...))
		}
		for _, alias := range brand.Aliases {
			if prev, ok := d.byAlias[alias]; ok && prev != i {
				return nil, fmt.Errorf("catalog dataset: alias %q used by %q and %q", alias, raw.Brands[prev].Name, brand.Name)
			}
			d.byAlias[alias] = i
		}
		d.brands = append(d.brands, brand)
	}
	for alias := range d.byAlias {
		d.aliases = append(d.aliases, alias)
	}
	sort.Slice(d.aliases, func(i, j int) bool {
		if len(d.aliases[i]) != len(d.aliases[j]) {
			return len(d.aliases[i]) > len(d.aliases[j])
		}
		return d.aliases[i] < d.aliases[j]
	})
	return d, nil
}

func (d *Dataset) Version() int { return d.version }

// Label is the generic display name of an object type.
func (d *Dataset) Label(t domain.ObjectType) string {
	if label, ok := d.labels[t]; ok && label != "" {
		return label
	}
	return "Item"
}

// Brand resolves a brand by name or alias.
func (d *Dataset) Brand(name string) (Brand, bool) {
	i, ok := d.byAlias[normalize(name)]
	if !ok {
		return Brand{}, false
	}
	return d.brands[i], true
}

// BrandAllows reports whether a known brand makes the given object type.
// Unknown brands cannot be judged and report known=false.
func (d *Dataset) BrandAllows(name string, t domain.ObjectType) (known, allowed bool) {
	brand, ok := d.Brand(name)
	if !ok {
		return false, false
	}
	for _, candidate := range brand.ObjectTypes {
		if candidate == t {
			return true, true
		}
	}
	return true, false
}

// CanonicalLine resolves a line name or alias within a brand.
func (d *Dataset) CanonicalLine(brandName, line string) (string, bool) {
	brand, ok := d.Brand(brandName)
	if !ok {
		return "", false
	}
	needle := normalize(line)
	for _, l := range brand.Lines {
		for _, alias := range l.Aliases {
			if alias == needle {
				return l.Name, true
			}
		}
	}
	return "", false
}

// ForcedObjectType applies override rules in dataset order.
func (d *Dataset) ForcedObjectType(signals []string, text string) (domain.ObjectType, string, bool) {
	padded := pad(text)
	for _, rule := range d.rules {
		for _, signal := range signals {
			for _, want := range rule.Signals {
				if strings.EqualFold(strings.TrimSpace(signal), want) {
					return rule.ObjectType, rule.Name, true
				}
			}
		}
		for _, keyword := range rule.Keywords {
			if containsPhrase(padded, keyword) {
				return rule.ObjectType, rule.Name, true
			}
		}
	}
	return "", "", false
}

// objectTypeSmoothing keeps a little probability mass for "none of the above".
const objectTypeSmoothing = 0.5

// ObjectTypeScores estimates object type probabilities from free text.
// Brand mentions count as evidence for every type the brand makes.
func (d *Dataset) ObjectTypeScores(text string) map[domain.ObjectType]float64 {
	padded := pad(text)
	hits := make(map[domain.ObjectType]float64)
	var total float64
	for t, keywords := range d.keywords {
		for _, keyword := range keywords {
			if containsPhrase(padded, keyword) {
				hits[t]++
				total++
			}
		}
	}
	if match, ok := d.matchBrand(padded); ok {
		share := 1 / float64(len(match.brand.ObjectTypes))
		for _, t := range match.brand.ObjectTypes {
			hits[t] += share
		}
		total++
	}
	if total == 0 {
		return map[domain.ObjectType]float64{domain.ObjectOther: 0}
	}
	scores := make(map[domain.ObjectType]float64, len(hits))
	for t, n := range hits {
		scores[t] = n / (total + objectTypeSmoothing)
	}
	return scores
}

type BrandMatch struct {
	Brand      string
	Confidence float64
	Implied    bool
}

const (
	namedBrandConfidence   = 0.9
	impliedBrandConfidence = 0.75
	minImpliedAliasLength  = 6
)

// FindBrand looks for a brand named in text. A distinctive line name alone
// implies its brand at lower confidence.
func (d *Dataset) FindBrand(text string) (BrandMatch, bool) {
	match, ok := d.matchBrand(pad(text))
	if !ok {
		return BrandMatch{}, false
	}
	confidence := namedBrandConfidence
	if match.implied {
		confidence = impliedBrandConfidence
	}
	return BrandMatch{Brand: match.brand.Name, Confidence: confidence, Implied: match.implied}, true
}

type LineMatch struct {
	Line       string
	Confidence float64
}

const lineConfidence = 0.85

// FindLine looks for one of the brand's lines in text.
func (d *Dataset) FindLine(brandName, text string) (LineMatch, bool) {
	brand, ok := d.Brand(brandName)
	if !ok {
		return LineMatch{}, false
	}
	padded := pad(text)
	for _, l := range brand.Lines {
		for _, alias := range l.Aliases {
			if containsPhrase(padded, alias) {
				return LineMatch{Line: l.Name, Confidence: lineConfidence}, true
			}
		}
	}
	return LineMatch{}, false
}

type brandHit struct {
	brand   Brand
	implied bool
}

func (d *Dataset) matchBrand(padded string) (brandHit, bool) {
	for _, alias := range d.aliases {
		if containsPhrase(padded, alias) {
			return brandHit{brand: d.brands[d.byAlias[alias]]}, true
		}
	}
	for _, brand := range d.brands {
		for _, l := range brand.Lines {
			for _, alias := range l.Aliases {
				if distinctive(alias) && containsPhrase(padded, alias) {
					return brandHit{brand: brand, implied: true}, true
				}
			}
		}
	}
	return brandHit{}, false
}

// distinctive aliases are long enough, and either one word or carrying a
// model number, to imply their brand on their own.
func distinctive(alias string) bool {
	if len(alias) < minImpliedAliasLength {
		return false
	}
	return !strings.Contains(alias, " ") || hasDigit(alias)
}

// Identifiers returns model numbers and years found in text, in order.
func Identifiers(text string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, token := range splitAlphaNumLower(text) {
		if !hasDigit(token) || len(token) < 3 {
			continue
		}
		if _, ok := seen[token]; ok {
			continue
		}
		seen[token] = struct{}{}
		out = append(out, strings.ToUpper(token))
	}
	return out
}

func hasDigit(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool { return r >= '0' && r <= '9' }) >= 0
}
