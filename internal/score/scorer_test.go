package score

import (
	"math"
	"testing"

	"github.com/ppiankov/ictrisk/internal/model"
	"github.com/ppiankov/ictrisk/internal/schema"
)

func newTestQualifier(t *testing.T) *Qualifier {
	t.Helper()
	reg, err := schema.Default()
	if err != nil {
		t.Fatalf("default schema: %v", err)
	}
	return NewQualifier(reg)
}

// questionnaire answers keyed by their human-readable labels
func cloudPaymentsVendor() model.RiskFactorMap {
	return model.RiskFactorMap{
		"criticality_factors": {
			"Service supports critical functions":                     true,
			"Service disruption impacts financial stability":          true,
			"Service disruption impacts operational continuity":       true,
			"Service disruption affects customers/market participants": true,
			"Service is difficult to substitute":                      false,
			"Service handles sensitive/confidential data":             true,
		},
		"complexity_factors": {
			"Multiple sub-outsourcing levels":    true,
			"Cross-border service provision":     true,
			"Complex technology stack":           true,
			"Integration with core systems":      true,
			"Service provider concentration risk": false,
		},
		"service_type_factors": {
			"Cloud computing services":   true,
			"Data analytics services":    true,
			"Critical support functions": false,
			"Network provision services": false,
			"Financial support services": false,
		},
		"data_sensitivity_factors": {
			"Personal customer data":            true,
			"Financial transaction data":        true,
			"Authentication/access credentials": true,
			"Strategic business data":           true,
			"Regulatory reporting data":         false,
		},
	}
}

func TestQualifier_Qualify_WeightedScore(t *testing.T) {
	q := newTestQualifier(t)

	result := q.Qualify(cloudPaymentsVendor())

	// 100 * (0.40*5/6 + 0.20*4/5 + 0.15*2/5 + 0.25*4/5)
	want := 100 * (0.40*5.0/6.0 + 0.20*0.8 + 0.15*0.4 + 0.25*0.8)
	if math.Abs(result.RiskScore-want) > 1e-9 {
		t.Errorf("Expected score %.4f, got %.4f", want, result.RiskScore)
	}
	if result.Classification != model.TierCritical {
		t.Errorf("Expected Critical, got %s", result.Classification)
	}
	if !result.DoraCritical {
		t.Error("Expected critical tier to be regulator-critical")
	}
	if len(result.OverridesFired) != 0 {
		t.Errorf("Expected no overrides, got %v", result.OverridesFired)
	}

	// 0.333 points above the 75 threshold out of a 25 point band
	if math.Abs(result.Confidence-(want-75)/25) > 1e-9 {
		t.Errorf("Expected low confidence near threshold, got %.4f", result.Confidence)
	}
	if result.InsufficientData {
		t.Error("Expected recognized input not to be insufficient")
	}
	if result.Method != model.MethodRules {
		t.Errorf("Expected method %s, got %s", model.MethodRules, result.Method)
	}

	if math.Abs(result.ComponentScores["criticality_factors"]-5.0/6.0) > 1e-9 {
		t.Errorf("Unexpected criticality component %.4f", result.ComponentScores["criticality_factors"])
	}
	if result.ComponentScores["service_type_factors"] != 0.4 {
		t.Errorf("Unexpected service type component %.4f", result.ComponentScores["service_type_factors"])
	}
}

func TestQualifier_Qualify_OverrideForcesCritical(t *testing.T) {
	q := newTestQualifier(t)

	result := q.Qualify(model.RiskFactorMap{
		"criticality_factors": {
			"supports_critical_function": true,
			"difficult_to_substitute":    true,
		},
	})

	if math.Abs(result.RiskScore-100*0.40*2.0/6.0) > 1e-9 {
		t.Errorf("Unexpected score %.4f", result.RiskScore)
	}
	if result.Classification != model.TierLow {
		t.Errorf("Expected Low, got %s", result.Classification)
	}
	if !result.DoraCritical {
		t.Error("Expected override to make the relationship regulator-critical")
	}
	if len(result.OverridesFired) != 1 || result.OverridesFired[0] != "critical_function_not_substitutable" {
		t.Errorf("Unexpected overrides %v", result.OverridesFired)
	}

	found := false
	for _, s := range result.Signals {
		if s.Type == model.SignalOverride {
			found = true
		}
	}
	if !found {
		t.Error("Expected an override signal")
	}
}

func TestQualifier_Qualify_EmptyInput(t *testing.T) {
	q := newTestQualifier(t)

	for _, input := range []model.RiskFactorMap{nil, {}, {"unknown_category": {"x": true}}} {
		result := q.Qualify(input)

		if !result.InsufficientData {
			t.Error("Expected insufficient data")
		}
		if result.RiskScore != 0 {
			t.Errorf("Expected score 0, got %.2f", result.RiskScore)
		}
		if result.Classification != model.TierLow {
			t.Errorf("Expected lowest tier, got %s", result.Classification)
		}
		if result.Confidence != 0 {
			t.Errorf("Expected confidence 0, got %.2f", result.Confidence)
		}
		if result.DoraCritical {
			t.Error("Expected empty input not to be regulator-critical")
		}
	}
}

func TestQualifier_Qualify_AllFalseIsNotInsufficient(t *testing.T) {
	q := newTestQualifier(t)

	result := q.Qualify(model.RiskFactorMap{
		"criticality_factors": {"supports_critical_function": false},
	})

	if result.InsufficientData {
		t.Error("Expected an explicit false answer to count as data")
	}
	if result.RiskScore != 0 || result.Classification != model.TierLow {
		t.Errorf("Expected 0/Low, got %.2f/%s", result.RiskScore, result.Classification)
	}
	if result.Confidence != 1 {
		t.Errorf("Expected full confidence at the bottom of the lowest band, got %.2f", result.Confidence)
	}
}

func TestQualifier_Qualify_RecognizedEmptyCategoryIsScored(t *testing.T) {
	q := newTestQualifier(t)

	inputs := []model.RiskFactorMap{
		{"criticality_factors": {}},
		{"Criticality_Factors": {"not_a_factor": true}},
	}

	for _, input := range inputs {
		result := q.Qualify(input)

		if result.InsufficientData {
			t.Errorf("Expected a recognized category to count as data: %v", input)
		}
		if result.RiskScore != 0 || result.Classification != model.TierLow {
			t.Errorf("Expected 0/Low, got %.2f/%s", result.RiskScore, result.Classification)
		}
		if result.Confidence != 1 {
			t.Errorf("Expected confidence from the band distance, got %.2f", result.Confidence)
		}
	}
}

func TestQualifier_Qualify_UnknownKeysIgnored(t *testing.T) {
	q := newTestQualifier(t)

	base := q.Qualify(cloudPaymentsVendor())

	input := cloudPaymentsVendor()
	input.Set("criticality_factors", "made_up_factor", true)
	input.Set("esg_factors", "carbon", true)
	result := q.Qualify(input)

	if result.RiskScore != base.RiskScore {
		t.Errorf("Unknown keys changed the score: %.4f vs %.4f", result.RiskScore, base.RiskScore)
	}
	want := []string{"criticality_factors/made_up_factor", "esg_factors"}
	if len(result.Unrecognized) != len(want) {
		t.Fatalf("Expected unrecognized %v, got %v", want, result.Unrecognized)
	}
	for i := range want {
		if result.Unrecognized[i] != want[i] {
			t.Errorf("Expected unrecognized %v, got %v", want, result.Unrecognized)
		}
	}
}

func TestQualifier_Qualify_MaximumScore(t *testing.T) {
	q := newTestQualifier(t)

	input := make(model.RiskFactorMap)
	for _, ref := range q.Registry().Features() {
		input.Set(ref.Category, ref.Factor, true)
	}
	result := q.Qualify(input)

	if math.Abs(result.RiskScore-100) > 1e-9 {
		t.Errorf("Expected score 100, got %.4f", result.RiskScore)
	}
	if result.Classification != model.TierCritical {
		t.Errorf("Expected Critical, got %s", result.Classification)
	}
	if math.Abs(result.Confidence-1) > 1e-9 {
		t.Errorf("Expected confidence 1, got %.4f", result.Confidence)
	}
	if len(result.OverridesFired) != 2 {
		t.Errorf("Expected both overrides, got %v", result.OverridesFired)
	}
}

func TestQualifier_Confidence(t *testing.T) {
	q := newTestQualifier(t)

	tests := []struct {
		score float64
		want  float64
	}{
		{0, 1},
		{12.5, 0.5},
		{25, 0},
		{37.5, 1},
		{30, 0.4},
		{49.9, 0.008},
		{75, 0},
		{87.5, 0.5},
		{100, 1},
	}

	for _, tt := range tests {
		got := q.Confidence(tt.score)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Confidence(%.1f) = %.4f, want %.4f", tt.score, got, tt.want)
		}
		if got < 0 || got > 1 {
			t.Errorf("Confidence(%.1f) out of range: %.4f", tt.score, got)
		}
	}
}

func TestQualifier_CustomBands(t *testing.T) {
	cfg, err := schema.DefaultConfig()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	cfg.Bands = []schema.Band{
		{Tier: model.TierLow, Min: 0},
		{Tier: model.TierHigh, Min: 10},
	}
	cfg.CriticalTiers = []model.Tier{model.TierHigh}
	reg, err := schema.New(cfg)
	if err != nil {
		t.Fatalf("custom schema: %v", err)
	}
	q := NewQualifier(reg)

	result := q.Qualify(model.RiskFactorMap{
		"service_type_factors": {"cloud_computing": true},
	})

	// 100 * 0.15 * 1/5 = 3
	if result.Classification != model.TierLow {
		t.Errorf("Expected Low, got %s", result.Classification)
	}

	result = q.Qualify(model.RiskFactorMap{
		"data_sensitivity_factors": {"personal_customer_data": true},
	})
	// 100 * 0.25 * 1/5 = 5; still Low
	if result.Classification != model.TierLow {
		t.Errorf("Expected Low, got %s", result.Classification)
	}

	result = q.Qualify(model.RiskFactorMap{
		"data_sensitivity_factors": {
			"personal_customer_data":     true,
			"financial_transaction_data": true,
			"strategic_business_data":    true,
		},
	})
	if result.Classification != model.TierHigh || !result.DoraCritical {
		t.Errorf("Expected High and regulator-critical, got %s/%v", result.Classification, result.DoraCritical)
	}
}

func TestQualifier_Signals(t *testing.T) {
	q := newTestQualifier(t)

	result := q.Qualify(cloudPaymentsVendor())

	components := 0
	borderline := false
	for _, s := range result.Signals {
		switch s.Type {
		case model.SignalComponent:
			components++
			if _, ok := s.Data["formula"]; !ok {
				t.Errorf("Component signal missing formula: %s", s.Description)
			}
		case model.SignalBorderline:
			borderline = true
		}
	}

	if components != 4 {
		t.Errorf("Expected one component signal per category, got %d", components)
	}
	if !borderline {
		t.Error("Expected a borderline signal for a score just above a threshold")
	}
}

func TestQualifier_Classify(t *testing.T) {
	q := newTestQualifier(t)

	if got := q.Classify(cloudPaymentsVendor()); got != model.TierCritical {
		t.Errorf("Expected Critical, got %s", got)
	}
	if got := q.Classify(nil); got != model.TierLow {
		t.Errorf("Expected Low for empty input, got %s", got)
	}
}
