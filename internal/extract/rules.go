package extract

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/ppiankov/ictrisk/internal/model"
	"github.com/ppiankov/ictrisk/internal/schema"
	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRules []byte

// Match kinds for service rules
const (
	MatchEquals   = "equals"
	MatchContains = "contains"
	MatchNotIn    = "not_in"
	MatchMaxHours = "max_hours"
)

// Rules holds the extraction tables for both extractors
type Rules struct {
	Contract ContractRules `yaml:"contract"`
	Service  []ServiceRule `yaml:"service"`
}

// ContractRules configures the contract extractor
type ContractRules struct {
	CoverageCategory string         `yaml:"coverage_category"`
	Categories       []ClauseConfig `yaml:"categories"`
}

// ClauseConfig describes one recognized clause category
type ClauseConfig struct {
	Name     string       `yaml:"name"`
	Aliases  []string     `yaml:"aliases,omitempty"`
	Presence []string     `yaml:"presence"`
	Graded   []GradedRule `yaml:"graded,omitempty"`
}

// GradedRule turns any of Tags into a true schema factor
type GradedRule struct {
	Tags     []string `yaml:"tags"`
	Category string   `yaml:"category"`
	Factor   string   `yaml:"factor"`
}

// ServiceRule maps a service detail field to a schema factor
type ServiceRule struct {
	Fields   []string `yaml:"fields"`
	Match    string   `yaml:"match"`
	Values   []string `yaml:"values,omitempty"`
	Max      float64  `yaml:"max,omitempty"`
	Category string   `yaml:"category"`
	Factor   string   `yaml:"factor"`
}

// DefaultRules returns the embedded extraction rules
func DefaultRules() (Rules, error) {
	return ParseRules(defaultRules)
}

// LoadRules reads a rules file. An empty path loads the embedded default.
func LoadRules(path string) (Rules, error) {
	if path == "" {
		return DefaultRules()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("read rules file: %w", err)
	}
	return ParseRules(data)
}

// ParseRules decodes YAML rules
func ParseRules(data []byte) (Rules, error) {
	var rules Rules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return Rules{}, &model.ConfigError{Reason: fmt.Sprintf("malformed extraction rules: %v", err)}
	}
	return rules, nil
}

// Validate checks that every rule targets a registered factor
func (r Rules) Validate(reg *schema.Registry) error {
	if strings.TrimSpace(r.Contract.CoverageCategory) == "" {
		return &model.ConfigError{Field: "contract.coverage_category", Reason: "coverage category is required"}
	}
	for _, c := range r.Contract.Categories {
		if normalizeTag(c.Name) == "" {
			return &model.ConfigError{Field: "contract.categories", Reason: "clause category name is required"}
		}
		for _, g := range c.Graded {
			if _, ok := reg.Resolve(g.Category, g.Factor); !ok {
				return &model.ConfigError{Field: "contract." + c.Name, Reason: fmt.Sprintf("graded rule targets unregistered factor %s", model.FactorKey(g.Category, g.Factor))}
			}
		}
	}
	for i, s := range r.Service {
		field := fmt.Sprintf("service[%d]", i)
		if len(s.Fields) == 0 {
			return &model.ConfigError{Field: field, Reason: "rule lists no fields"}
		}
		switch s.Match {
		case MatchEquals, MatchContains, MatchNotIn:
			if len(s.Values) == 0 {
				return &model.ConfigError{Field: field, Reason: "rule lists no values"}
			}
		case MatchMaxHours:
			if s.Max <= 0 {
				return &model.ConfigError{Field: field, Reason: "max_hours rule needs a positive max"}
			}
		default:
			return &model.ConfigError{Field: field, Reason: fmt.Sprintf("unknown match kind %q", s.Match)}
		}
		if _, ok := reg.Resolve(s.Category, s.Factor); !ok {
			return &model.ConfigError{Field: field, Reason: fmt.Sprintf("targets unregistered factor %s", model.FactorKey(s.Category, s.Factor))}
		}
	}
	return nil
}

// normalizeTag lowercases and folds separators so "Exit-Strategy" matches "exit_strategy"
func normalizeTag(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("-", "_", " ", "_").Replace(s)
	return s
}
