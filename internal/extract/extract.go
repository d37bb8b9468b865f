// Package extract derives boolean risk factors from contract analysis output
// and service description metadata. Extractors are pure: they read only the
// input they are given and never fail; problems are reported through Result.
package extract

import (
	"github.com/ppiankov/ictrisk/internal/model"
)

// Status tells an empty result caused by missing data apart from one caused by bad data
type Status string

const (
	StatusOK       Status = "ok"       // Factors derived from usable input
	StatusEmpty    Status = "empty"    // Nothing to extract from
	StatusDegraded Status = "degraded" // Some input could not be used; see Issues
)

// Result is the output of one extractor run
type Result struct {
	Source  string              `json:"source"`
	Status  Status              `json:"status"`
	Factors model.RiskFactorMap `json:"factors"`
	Gaps    []string            `json:"gaps,omitempty"`    // Clause categories with no recognized coverage
	Skipped []string            `json:"skipped,omitempty"` // Unrecognized input keys
	Issues  []string            `json:"issues,omitempty"`  // Input that was present but unusable
}

// Input bundles the raw sources of one assessment
type Input struct {
	Contract *model.ContractAnalysis
	Service  model.ServiceDetails
}

// Extractor defines the interface for factor extractors
type Extractor interface {
	// Name returns the extractor name
	Name() string

	// CanHandle checks if the input carries data for this extractor
	CanHandle(in Input) bool

	// Extract derives factors from its part of the input
	Extract(in Input) Result
}

// Registry manages extractors
type Registry struct {
	extractors []Extractor
}

// NewRegistry creates a registry with the built-in contract and service extractors
func NewRegistry(rules Rules) *Registry {
	registry := &Registry{
		extractors: make([]Extractor, 0),
	}

	registry.Register(NewContractExtractor(rules.Contract))
	registry.Register(NewServiceExtractor(rules.Service))

	return registry
}

// Register registers a new extractor
func (r *Registry) Register(e Extractor) {
	r.extractors = append(r.extractors, e)
}

// Extractors returns the registered extractors
func (r *Registry) Extractors() []Extractor {
	return append([]Extractor(nil), r.extractors...)
}

// Extract runs every extractor that can handle the input, in registration order
func (r *Registry) Extract(in Input) []Result {
	var results []Result
	for _, e := range r.extractors {
		if e.CanHandle(in) {
			results = append(results, e.Extract(in))
		}
	}
	return results
}
