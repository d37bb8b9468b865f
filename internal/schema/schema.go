// Package schema holds the registered category/factor schema the qualifier
// and classifier score against. A Registry is validated once at load time;
// after that it is read-only and safe to share between goroutines.
package schema

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/ppiankov/ictrisk/internal/model"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultSchema []byte

const defaultWeightTolerance = 1e-6

// Config is the YAML form of a schema
type Config struct {
	Version         string           `yaml:"version"`
	WeightTolerance float64          `yaml:"weight_tolerance,omitempty"`
	Categories      []CategoryConfig `yaml:"categories"`
	Bands           []Band           `yaml:"bands"`
	CriticalTiers   []model.Tier     `yaml:"critical_tiers"`
	Overrides       []Override       `yaml:"overrides"`
}

// CategoryConfig declares one weighted category
type CategoryConfig struct {
	Name    string   `yaml:"name"`
	Weight  float64  `yaml:"weight"`
	Factors []Factor `yaml:"factors"`
}

// Factor is a registered factor. Label is the questionnaire wording and is
// accepted as an alias of Name at the input boundary.
type Factor struct {
	Name  string `yaml:"name" json:"name"`
	Label string `yaml:"label,omitempty" json:"label,omitempty"`
}

// Band maps scores at or above Min (up to the next band) to Tier
type Band struct {
	Tier model.Tier `yaml:"tier" json:"tier"`
	Min  float64    `yaml:"min" json:"min"`
}

// Override forces dora_critical when every listed factor is true
type Override struct {
	Name        string            `yaml:"name" json:"name"`
	Description string            `yaml:"description,omitempty" json:"description,omitempty"`
	Factors     []model.FactorRef `yaml:"factors" json:"factors"`
}

// Category is a validated, weighted category
type Category struct {
	Name    string
	Weight  float64
	Factors []Factor
}

// Registry is the validated schema
type Registry struct {
	version     string
	categories  []Category
	categoryIdx map[string]int
	factorIdx   []map[string]int
	bands       []Band
	critical    map[model.Tier]bool
	overrides   []Override
	fingerprint string
}

// Default returns the registry built from the embedded default schema
func Default() (*Registry, error) {
	return Parse(defaultSchema)
}

// DefaultConfig returns the embedded default schema as a Config
func DefaultConfig() (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(defaultSchema, &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal embedded schema: %w", err)
	}
	return cfg, nil
}

// Load reads and validates a schema file. An empty path loads the embedded default.
func Load(path string) (*Registry, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML schema
func Parse(data []byte) (*Registry, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, &model.ConfigError{Reason: fmt.Sprintf("malformed schema: %v", err)}
	}
	return New(cfg)
}

// New validates cfg and builds a Registry. Every failure is a *model.ConfigError.
func New(cfg Config) (*Registry, error) {
	if strings.TrimSpace(cfg.Version) == "" {
		return nil, &model.ConfigError{Field: "version", Reason: "schema version is required"}
	}
	if len(cfg.Categories) == 0 {
		return nil, &model.ConfigError{Field: "categories", Reason: "factor schema is empty"}
	}

	r := &Registry{
		version:     cfg.Version,
		categoryIdx: make(map[string]int),
		critical:    make(map[model.Tier]bool),
	}

	var weightSum float64
	for i, c := range cfg.Categories {
		key := normalizeKey(c.Name)
		if key == "" {
			return nil, &model.ConfigError{Field: fmt.Sprintf("categories[%d]", i), Reason: "category name is required"}
		}
		if _, dup := r.categoryIdx[key]; dup {
			return nil, &model.ConfigError{Field: c.Name, Reason: "duplicate category"}
		}
		if len(c.Factors) == 0 {
			return nil, &model.ConfigError{Field: c.Name, Reason: "category has no factors"}
		}
		if c.Weight < 0 || math.IsNaN(c.Weight) || math.IsInf(c.Weight, 0) {
			return nil, &model.ConfigError{Field: c.Name, Reason: fmt.Sprintf("invalid weight %v", c.Weight)}
		}

		idx := make(map[string]int, len(c.Factors)*2)
		factors := make([]Factor, len(c.Factors))
		for j, f := range c.Factors {
			name := normalizeKey(f.Name)
			if name == "" {
				return nil, &model.ConfigError{Field: fmt.Sprintf("%s.factors[%d]", c.Name, j), Reason: "factor name is required"}
			}
			if _, dup := idx[name]; dup {
				return nil, &model.ConfigError{Field: c.Name + "." + f.Name, Reason: "duplicate factor"}
			}
			idx[name] = j
			if label := normalizeKey(f.Label); label != "" && label != name {
				if _, dup := idx[label]; dup {
					return nil, &model.ConfigError{Field: c.Name + "." + f.Name, Reason: fmt.Sprintf("label %q collides with another factor", f.Label)}
				}
				idx[label] = j
			}
			factors[j] = Factor{Name: strings.TrimSpace(f.Name), Label: strings.TrimSpace(f.Label)}
		}

		r.categoryIdx[key] = len(r.categories)
		r.factorIdx = append(r.factorIdx, idx)
		r.categories = append(r.categories, Category{Name: strings.TrimSpace(c.Name), Weight: c.Weight, Factors: factors})
		weightSum += c.Weight
	}

	tolerance := cfg.WeightTolerance
	if tolerance <= 0 {
		tolerance = defaultWeightTolerance
	}
	if math.Abs(weightSum-1.0) > tolerance {
		return nil, &model.ConfigError{Field: "categories", Reason: fmt.Sprintf("category weights sum to %.6f, expected 1.0", weightSum)}
	}

	if err := r.setBands(cfg.Bands); err != nil {
		return nil, err
	}

	for _, t := range cfg.CriticalTiers {
		if !r.hasBand(t) {
			return nil, &model.ConfigError{Field: "critical_tiers", Reason: fmt.Sprintf("tier %q has no band", t)}
		}
		r.critical[t] = true
	}

	for i, o := range cfg.Overrides {
		if strings.TrimSpace(o.Name) == "" {
			return nil, &model.ConfigError{Field: fmt.Sprintf("overrides[%d]", i), Reason: "override name is required"}
		}
		if len(o.Factors) == 0 {
			return nil, &model.ConfigError{Field: o.Name, Reason: "override lists no factors"}
		}
		resolved := Override{Name: o.Name, Description: o.Description, Factors: make([]model.FactorRef, len(o.Factors))}
		for j, ref := range o.Factors {
			canonical, ok := r.Resolve(ref.Category, ref.Factor)
			if !ok {
				return nil, &model.ConfigError{Field: o.Name, Reason: fmt.Sprintf("references unregistered factor %s", ref)}
			}
			resolved.Factors[j] = canonical
		}
		r.overrides = append(r.overrides, resolved)
	}

	r.fingerprint = r.computeFingerprint()
	return r, nil
}

func (r *Registry) setBands(bands []Band) error {
	if len(bands) == 0 {
		return &model.ConfigError{Field: "bands", Reason: "at least one band is required"}
	}
	seen := make(map[model.Tier]bool)
	for i, b := range bands {
		if !b.Tier.Valid() {
			return &model.ConfigError{Field: fmt.Sprintf("bands[%d]", i), Reason: fmt.Sprintf("unknown tier %q", b.Tier)}
		}
		if seen[b.Tier] {
			return &model.ConfigError{Field: fmt.Sprintf("bands[%d]", i), Reason: fmt.Sprintf("duplicate tier %q", b.Tier)}
		}
		seen[b.Tier] = true
		if i == 0 && b.Min != 0 {
			return &model.ConfigError{Field: "bands[0]", Reason: "first band must start at 0"}
		}
		if b.Min < 0 || b.Min > 100 {
			return &model.ConfigError{Field: fmt.Sprintf("bands[%d]", i), Reason: fmt.Sprintf("min %v outside [0,100]", b.Min)}
		}
		if i > 0 {
			prev := bands[i-1]
			if b.Min <= prev.Min {
				return &model.ConfigError{Field: fmt.Sprintf("bands[%d]", i), Reason: "bands must be strictly ascending"}
			}
			if b.Tier.Rank() <= prev.Tier.Rank() {
				return &model.ConfigError{Field: fmt.Sprintf("bands[%d]", i), Reason: "band tiers must follow Low < Medium < High < Critical"}
			}
		}
	}
	r.bands = append([]Band(nil), bands...)
	return nil
}

func (r *Registry) hasBand(t model.Tier) bool {
	for _, b := range r.bands {
		if b.Tier == t {
			return true
		}
	}
	return false
}

func (r *Registry) computeFingerprint() string {
	h := sha256.New()
	for _, c := range r.categories {
		for _, f := range c.Factors {
			fmt.Fprintf(h, "%s\n", model.FactorKey(c.Name, f.Name))
		}
	}
	sum := h.Sum(nil)
	return r.version + "+" + hex.EncodeToString(sum[:6])
}

// Version returns the configured schema version
func (r *Registry) Version() string {
	return r.version
}

// Fingerprint identifies the factor layout: the configured version plus a
// digest of every registered category/factor name
func (r *Registry) Fingerprint() string {
	return r.fingerprint
}

// Categories returns the registered categories in configured order
func (r *Registry) Categories() []Category {
	out := make([]Category, len(r.categories))
	for i, c := range r.categories {
		out[i] = Category{Name: c.Name, Weight: c.Weight, Factors: append([]Factor(nil), c.Factors...)}
	}
	return out
}

// Features returns every registered factor in a stable order
func (r *Registry) Features() []model.FactorRef {
	var refs []model.FactorRef
	for _, c := range r.categories {
		for _, f := range c.Factors {
			refs = append(refs, model.FactorRef{Category: c.Name, Factor: f.Name})
		}
	}
	return refs
}

// Bands returns the classification bands in ascending order
func (r *Registry) Bands() []Band {
	return append([]Band(nil), r.bands...)
}

// Tiers returns the tiers covered by the bands in ascending order
func (r *Registry) Tiers() []model.Tier {
	tiers := make([]model.Tier, len(r.bands))
	for i, b := range r.bands {
		tiers[i] = b.Tier
	}
	return tiers
}

// Overrides returns the hard-critical override rules
func (r *Registry) Overrides() []Override {
	out := make([]Override, len(r.overrides))
	for i, o := range r.overrides {
		out[i] = Override{Name: o.Name, Description: o.Description, Factors: append([]model.FactorRef(nil), o.Factors...)}
	}
	return out
}

// IsCriticalTier reports whether a tier alone makes a relationship regulator-critical
func (r *Registry) IsCriticalTier(t model.Tier) bool {
	return r.critical[t]
}

// Lowest returns the lowest configured tier
func (r *Registry) Lowest() model.Tier {
	return r.bands[0].Tier
}

// Classify maps a score to its band index and tier
func (r *Registry) Classify(score float64) (int, model.Tier) {
	idx := 0
	for i, b := range r.bands {
		if score >= b.Min {
			idx = i
		}
	}
	return idx, r.bands[idx].Tier
}

// BandRange returns the [lo, hi] score range of band i
func (r *Registry) BandRange(i int) (float64, float64) {
	lo := r.bands[i].Min
	hi := 100.0
	if i+1 < len(r.bands) {
		hi = r.bands[i+1].Min
	}
	return lo, hi
}

// Midpoint returns the centre of the tier's band, or -1 if the tier has no band
func (r *Registry) Midpoint(t model.Tier) float64 {
	for i, b := range r.bands {
		if b.Tier == t {
			lo, hi := r.BandRange(i)
			return (lo + hi) / 2
		}
	}
	return -1
}

// Resolve maps an input category and factor key (name or label, any case)
// to the canonical registered reference
func (r *Registry) Resolve(category, factor string) (model.FactorRef, bool) {
	ci, ok := r.categoryIdx[normalizeKey(category)]
	if !ok {
		return model.FactorRef{}, false
	}
	fi, ok := r.factorIdx[ci][normalizeKey(factor)]
	if !ok {
		return model.FactorRef{}, false
	}
	c := r.categories[ci]
	return model.FactorRef{Category: c.Name, Factor: c.Factors[fi].Name}, true
}

// HasCategory reports whether the category is registered
func (r *Registry) HasCategory(category string) bool {
	_, ok := r.categoryIdx[normalizeKey(category)]
	return ok
}

// Normalize rewrites input keys to canonical names. Unknown keys are dropped
// and reported; duplicate keys resolving to one factor are OR-ed. Every
// recognized input category is kept, even when it holds no known factor.
func (r *Registry) Normalize(m model.RiskFactorMap) (model.RiskFactorMap, []string) {
	out := make(model.RiskFactorMap)
	var unknown []string
	for category, factors := range m {
		ci, ok := r.categoryIdx[normalizeKey(category)]
		if !ok {
			unknown = append(unknown, category)
			continue
		}
		if canonical := r.categories[ci].Name; out[canonical] == nil {
			out[canonical] = make(map[string]bool)
		}
		for name, v := range factors {
			ref, ok := r.Resolve(category, name)
			if !ok {
				unknown = append(unknown, model.FactorKey(category, name))
				continue
			}
			prev, _ := out.Get(ref.Category, ref.Factor)
			out.Set(ref.Category, ref.Factor, prev || v)
		}
	}
	sort.Strings(unknown)
	return out, unknown
}

func normalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
