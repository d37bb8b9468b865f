package model

// Clause is a single clause snippet extracted by the contract pipeline
type Clause struct {
	Text         string   `json:"text"`                   // Source text of the snippet
	Location     string   `json:"location,omitempty"`     // Page/section reference
	Requirements []string `json:"requirements,omitempty"` // Requirement tags attached by the clause checker
}

// ContractAnalysis is the read-only output of the external contract pipeline
type ContractAnalysis struct {
	Filename string              `json:"filename,omitempty"`
	Clauses  map[string][]Clause `json:"extracted_clauses"` // Clause category -> snippets
}

// ServiceDetails is a flat mapping of descriptive service fields
// (service_type, data_location, business_impact, recovery_time_band, ...)
type ServiceDetails map[string]any
