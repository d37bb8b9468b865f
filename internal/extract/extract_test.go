package extract

import (
	"testing"

	"github.com/ppiankov/ictrisk/internal/model"
	"github.com/ppiankov/ictrisk/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultRegistry(t *testing.T) *Registry {
	t.Helper()
	rules, err := DefaultRules()
	require.NoError(t, err)
	return NewRegistry(rules)
}

func TestDefaultRules_ValidAgainstDefaultSchema(t *testing.T) {
	rules, err := DefaultRules()
	require.NoError(t, err)
	reg, err := schema.Default()
	require.NoError(t, err)

	assert.NoError(t, rules.Validate(reg))
}

func TestRules_ValidateRejectsUnregisteredTarget(t *testing.T) {
	rules, err := DefaultRules()
	require.NoError(t, err)
	reg, err := schema.Default()
	require.NoError(t, err)

	rules.Service = append(rules.Service, ServiceRule{
		Fields: []string{"x"}, Match: MatchEquals, Values: []string{"y"},
		Category: "criticality_factors", Factor: "not_a_factor",
	})
	assert.ErrorIs(t, rules.Validate(reg), model.ErrConfiguration)

	rules, _ = DefaultRules()
	rules.Service[0].Match = "regex"
	assert.ErrorIs(t, rules.Validate(reg), model.ErrConfiguration)
}

func TestContractExtractor_PresenceAndGraded(t *testing.T) {
	rules, err := DefaultRules()
	require.NoError(t, err)
	e := NewContractExtractor(rules.Contract)

	analysis := &model.ContractAnalysis{
		Clauses: map[string][]model.Clause{
			"Exit-Strategy": {
				{Text: "The provider shall support an orderly exit.", Location: "p.12 §9.1", Requirements: []string{"exit_plan"}},
			},
			"sub_outsourcing": {
				{Text: "Subcontractors may further subcontract.", Requirements: []string{"Chain_Subcontracting"}},
			},
			"data_protection": {
				{Text: "Customer personal data is processed in the EU.", Requirements: []string{"gdpr_compliance", "personal_data"}},
			},
		},
	}

	result := e.ExtractContract(analysis)
	assert.Equal(t, StatusOK, result.Status)

	covered, ok := result.Factors.Get("contract_coverage_factors", "exit_strategy")
	require.True(t, ok)
	assert.True(t, covered)

	covered, _ = result.Factors.Get("contract_coverage_factors", "sub_outsourcing")
	assert.False(t, covered, "graded tag alone is not a presence tag")

	v, _ := result.Factors.Get("complexity_factors", "multiple_sub_outsourcing")
	assert.True(t, v)
	v, _ = result.Factors.Get("data_sensitivity_factors", "personal_customer_data")
	assert.True(t, v)

	v, ok = result.Factors.Get("criticality_factors", "difficult_to_substitute")
	require.True(t, ok, "graded factors default to false")
	assert.False(t, v)

	assert.Equal(t, []string{"sub_outsourcing", "service_levels", "audit_rights", "business_continuity"}, result.Gaps)
}

func TestContractExtractor_EmptyAnalysis(t *testing.T) {
	rules, err := DefaultRules()
	require.NoError(t, err)
	e := NewContractExtractor(rules.Contract)

	for _, analysis := range []*model.ContractAnalysis{nil, {}} {
		result := e.ExtractContract(analysis)
		assert.Equal(t, StatusEmpty, result.Status)
		assert.Empty(t, result.Factors.TrueKeys())
		assert.Len(t, result.Gaps, 6)
		assert.Empty(t, result.Issues)
	}
}

func TestContractExtractor_OnlyUnknownCategoriesIsEmpty(t *testing.T) {
	rules, err := DefaultRules()
	require.NoError(t, err)
	e := NewContractExtractor(rules.Contract)

	result := e.ExtractContract(&model.ContractAnalysis{
		Clauses: map[string][]model.Clause{
			"force_majeure": {{Text: "Neither party is liable.", Requirements: []string{"x"}}},
			"governing_law": {{Text: "Laws of Ireland apply."}},
		},
	})

	assert.Equal(t, StatusEmpty, result.Status)
	assert.Equal(t, []string{"force_majeure", "governing_law"}, result.Skipped)
	assert.Len(t, result.Gaps, 6)
}

func TestContractExtractor_SkipsUnknownAndFlagsMalformed(t *testing.T) {
	rules, err := DefaultRules()
	require.NoError(t, err)
	e := NewContractExtractor(rules.Contract)

	result := e.ExtractContract(&model.ContractAnalysis{
		Clauses: map[string][]model.Clause{
			"force_majeure": {{Text: "Neither party is liable.", Requirements: []string{"x"}}},
			"audit":         {{}},
		},
	})

	assert.Equal(t, StatusDegraded, result.Status)
	assert.Equal(t, []string{"force_majeure"}, result.Skipped)
	require.Len(t, result.Issues, 1)
	assert.Contains(t, result.Issues[0], "audit[0]")
}

func TestServiceExtractor_Rules(t *testing.T) {
	rules, err := DefaultRules()
	require.NoError(t, err)
	e := NewServiceExtractor(rules.Service)

	tests := []struct {
		name     string
		details  model.ServiceDetails
		category string
		factor   string
		want     bool
	}{
		{"cloud service", model.ServiceDetails{"service_type": "Cloud Service"}, "service_type_factors", "cloud_computing", true},
		{"non cloud service", model.ServiceDetails{"service_type": "Consulting"}, "service_type_factors", "cloud_computing", false},
		{"high impact", model.ServiceDetails{"business_impact": "High"}, "criticality_factors", "impacts_operational_continuity", true},
		{"low impact", model.ServiceDetails{"business_impact": "low"}, "criticality_factors", "impacts_operational_continuity", false},
		{"fast recovery band", model.ServiceDetails{"recovery_time_band": "<4h"}, "criticality_factors", "supports_critical_function", true},
		{"rto in hours", model.ServiceDetails{"recovery_time_objective": "4 hours"}, "criticality_factors", "supports_critical_function", true},
		{"rto in minutes", model.ServiceDetails{"rto": "30 min"}, "criticality_factors", "supports_critical_function", true},
		{"slow rto", model.ServiceDetails{"recovery_time_objective": "2 days"}, "criticality_factors", "supports_critical_function", false},
		{"sub outsourcing flag", model.ServiceDetails{"sub_outsourcing": "Yes"}, "complexity_factors", "multiple_sub_outsourcing", true},
		{"sub outsourcing bool", model.ServiceDetails{"sub_outsourcing": true}, "complexity_factors", "multiple_sub_outsourcing", true},
		{"data outside eu", model.ServiceDetails{"data_location": "US"}, "complexity_factors", "cross_border_provision", true},
		{"data in eu", model.ServiceDetails{"data_location": "EU"}, "complexity_factors", "cross_border_provision", false},
		{"several jurisdictions", model.ServiceDetails{"jurisdictions": []any{"DE", "IE"}}, "complexity_factors", "cross_border_provision", true},
		{"confidential data", model.ServiceDetails{"Data Classification": "Confidential"}, "criticality_factors", "handles_sensitive_data", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := e.ExtractService(tt.details)
			got, ok := result.Factors.Get(tt.category, tt.factor)
			require.True(t, ok, "factor should be emitted for a recognized field")
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestServiceExtractor_RulesAreOred(t *testing.T) {
	rules, err := DefaultRules()
	require.NoError(t, err)
	e := NewServiceExtractor(rules.Service)

	result := e.ExtractService(model.ServiceDetails{
		"data_location": "EU",
		"jurisdictions": "Germany, United States",
	})
	v, _ := result.Factors.Get("complexity_factors", "cross_border_provision")
	assert.True(t, v)
}

func TestServiceExtractor_MissingAndUnknownFields(t *testing.T) {
	rules, err := DefaultRules()
	require.NoError(t, err)
	e := NewServiceExtractor(rules.Service)

	result := e.ExtractService(model.ServiceDetails{"vendor_name": "Acme", "notes": ""})
	assert.Equal(t, StatusEmpty, result.Status)
	assert.Zero(t, result.Factors.Len())
	assert.Equal(t, []string{"notes", "vendor_name"}, result.Skipped)

	result = e.ExtractService(nil)
	assert.Equal(t, StatusEmpty, result.Status)
}

func TestServiceExtractor_Degraded(t *testing.T) {
	rules, err := DefaultRules()
	require.NoError(t, err)
	e := NewServiceExtractor(rules.Service)

	result := e.ExtractService(model.ServiceDetails{
		"service_type":            map[string]any{"nested": true},
		"recovery_time_objective": "asap",
		"business_impact":         "high",
	})

	assert.Equal(t, StatusDegraded, result.Status)
	assert.Len(t, result.Issues, 2)
	v, _ := result.Factors.Get("criticality_factors", "impacts_operational_continuity")
	assert.True(t, v, "usable fields still produce factors")
}

func TestRegistry_Extract(t *testing.T) {
	r := defaultRegistry(t)

	results := r.Extract(Input{})
	assert.Empty(t, results)

	results = r.Extract(Input{
		Contract: &model.ContractAnalysis{},
		Service:  model.ServiceDetails{"service_type": "cloud"},
	})
	require.Len(t, results, 2)
	assert.Equal(t, "contract", results[0].Source)
	assert.Equal(t, "service", results[1].Source)
}

func TestParseHours(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"4", 4, true},
		{"<4h", 4, true},
		{"4 hours", 4, true},
		{"90 minutes", 1.5, true},
		{"1 day", 24, true},
		{"soon", 0, false},
		{"4 weeks", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseHours(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.InDelta(t, tt.want, got, 1e-9, tt.in)
	}
}
