package model

import "sort"

// RiskFactorMap maps a category name to its factor name -> boolean signals
type RiskFactorMap map[string]map[string]bool

// Set records a factor value, creating the category when needed
func (m RiskFactorMap) Set(category, factor string, value bool) {
	factors, ok := m[category]
	if !ok {
		factors = make(map[string]bool)
		m[category] = factors
	}
	factors[factor] = value
}

// Get returns the factor value and whether the factor is present
func (m RiskFactorMap) Get(category, factor string) (bool, bool) {
	factors, ok := m[category]
	if !ok {
		return false, false
	}
	v, ok := factors[factor]
	return v, ok
}

// Clone returns a deep copy of the map
func (m RiskFactorMap) Clone() RiskFactorMap {
	out := make(RiskFactorMap, len(m))
	for category, factors := range m {
		copied := make(map[string]bool, len(factors))
		for name, v := range factors {
			copied[name] = v
		}
		out[category] = copied
	}
	return out
}

// Len returns the total number of factors across all categories
func (m RiskFactorMap) Len() int {
	n := 0
	for _, factors := range m {
		n += len(factors)
	}
	return n
}

// TrueKeys returns the sorted "category/factor" keys of every true factor
func (m RiskFactorMap) TrueKeys() []string {
	var keys []string
	for category, factors := range m {
		for name, v := range factors {
			if v {
				keys = append(keys, FactorKey(category, name))
			}
		}
	}
	sort.Strings(keys)
	return keys
}

// FactorKey joins a category and factor into a single key
func FactorKey(category, factor string) string {
	return category + "/" + factor
}

// FactorRef addresses a single factor in the schema
type FactorRef struct {
	Category string `json:"category" yaml:"category"`
	Factor   string `json:"factor" yaml:"factor"`
}

// String returns the "category/factor" form
func (r FactorRef) String() string {
	return FactorKey(r.Category, r.Factor)
}

// SyntheticSample is a generated (factors, label) pair used for bootstrap training.
// It serializes to plain JSON without engine-specific types.
type SyntheticSample struct {
	Factors RiskFactorMap `json:"factors"`
	Label   Tier          `json:"label"`
}
