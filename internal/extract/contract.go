package extract

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ppiankov/ictrisk/internal/model"
)

// ContractExtractor turns extracted clause data into risk factors.
// Every recognized clause category yields a coverage factor; graded tags
// set schema factors. A category without matching clauses stays false.
type ContractExtractor struct {
	coverageCategory string
	categories       []clauseCategory
	byKey            map[string]int
}

type clauseCategory struct {
	name     string
	presence map[string]bool
	graded   []gradedLookup
}

type gradedLookup struct {
	tags map[string]bool
	ref  model.FactorRef
}

// NewContractExtractor creates a contract extractor from its rule table
func NewContractExtractor(rules ContractRules) *ContractExtractor {
	e := &ContractExtractor{
		coverageCategory: rules.CoverageCategory,
		byKey:            make(map[string]int),
	}

	for _, c := range rules.Categories {
		cat := clauseCategory{
			name:     normalizeTag(c.Name),
			presence: toSet(c.Presence),
		}
		for _, g := range c.Graded {
			cat.graded = append(cat.graded, gradedLookup{
				tags: toSet(g.Tags),
				ref:  model.FactorRef{Category: g.Category, Factor: g.Factor},
			})
		}

		idx := len(e.categories)
		e.categories = append(e.categories, cat)
		e.byKey[cat.name] = idx
		for _, alias := range c.Aliases {
			if key := normalizeTag(alias); key != "" {
				if _, taken := e.byKey[key]; !taken {
					e.byKey[key] = idx
				}
			}
		}
	}

	return e
}

// Name returns the extractor name
func (e *ContractExtractor) Name() string {
	return "contract"
}

// CanHandle checks if a contract analysis is present
func (e *ContractExtractor) CanHandle(in Input) bool {
	return in.Contract != nil
}

// Extract derives factors from the contract analysis
func (e *ContractExtractor) Extract(in Input) Result {
	return e.ExtractContract(in.Contract)
}

// ExtractContract derives coverage and graded factors from clause records
func (e *ContractExtractor) ExtractContract(analysis *model.ContractAnalysis) Result {
	result := Result{
		Source:  e.Name(),
		Status:  StatusOK,
		Factors: make(model.RiskFactorMap),
	}

	// Missing clauses are a coverage gap, so every factor starts false
	for _, cat := range e.categories {
		result.Factors.Set(e.coverageCategory, cat.name, false)
		for _, g := range cat.graded {
			result.Factors.Set(g.ref.Category, g.ref.Factor, false)
		}
	}

	clauseCount := 0
	if analysis != nil {
		keys := make([]string, 0, len(analysis.Clauses))
		for key := range analysis.Clauses {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			clauses := analysis.Clauses[key]

			idx, ok := e.byKey[normalizeTag(key)]
			if !ok {
				result.Skipped = append(result.Skipped, key)
				continue
			}
			clauseCount += len(clauses)
			cat := e.categories[idx]

			for i, clause := range clauses {
				if strings.TrimSpace(clause.Text) == "" && len(clause.Requirements) == 0 {
					result.Issues = append(result.Issues, fmt.Sprintf("%s[%d]: clause has neither text nor requirement tags", key, i))
					continue
				}
				for _, raw := range clause.Requirements {
					tag := normalizeTag(raw)
					if cat.presence[tag] {
						result.Factors.Set(e.coverageCategory, cat.name, true)
					}
					for _, g := range cat.graded {
						if g.tags[tag] {
							result.Factors.Set(g.ref.Category, g.ref.Factor, true)
						}
					}
				}
			}
		}
	}

	for _, cat := range e.categories {
		if covered, _ := result.Factors.Get(e.coverageCategory, cat.name); !covered {
			result.Gaps = append(result.Gaps, cat.name)
		}
	}

	switch {
	case clauseCount == 0:
		result.Status = StatusEmpty
	case len(result.Issues) > 0:
		result.Status = StatusDegraded
	}

	return result
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		if key := normalizeTag(v); key != "" {
			set[key] = true
		}
	}
	return set
}
