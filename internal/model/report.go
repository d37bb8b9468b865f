package model

// Tier is the risk classification band
type Tier string

const (
	TierLow      Tier = "Low"
	TierMedium   Tier = "Medium"
	TierHigh     Tier = "High"
	TierCritical Tier = "Critical"
)

// Tiers lists every classification in ascending order
var Tiers = []Tier{TierLow, TierMedium, TierHigh, TierCritical}

// Valid reports whether t is one of the known tiers
func (t Tier) Valid() bool {
	return t.Rank() >= 0
}

// Rank returns the ascending position of the tier, or -1 if unknown
func (t Tier) Rank() int {
	for i, known := range Tiers {
		if known == t {
			return i
		}
	}
	return -1
}

// Method identifies which path produced a ScoreResult
type Method string

const (
	MethodRules Method = "rules"
	MethodModel Method = "model"
)

// ScoreResult is the verdict of one qualification call.
// A fresh value is built per call and never mutated after return.
type ScoreResult struct {
	RiskScore        float64            `json:"risk_score"`                // 0-100
	Classification   Tier               `json:"risk_classification"`       // Low, Medium, High, Critical
	DoraCritical     bool               `json:"dora_critical"`             // Regulator-critical flag
	Confidence       float64            `json:"confidence"`                // 0-1
	ComponentScores  map[string]float64 `json:"component_scores"`          // Category -> fraction of true factors
	InsufficientData bool               `json:"insufficient_data"`         // No recognized factor in the input
	OverridesFired   []string           `json:"overrides_fired,omitempty"` // Hard-critical rules that matched
	Unrecognized     []string           `json:"unrecognized,omitempty"`    // Input keys outside the schema
	Method           Method             `json:"method"`                    // rules or model
	Signals          []Signal           `json:"signals,omitempty"`         // Transparent scoring data
}

// Prediction is a ScoreResult produced by the statistical classifier,
// extended with the per-class probability distribution
type Prediction struct {
	ScoreResult
	Probabilities map[Tier]float64 `json:"probabilities"`
	ModelID       string           `json:"model_id"`
}

// Signal represents a diagnostic signal with transparent scoring data
type Signal struct {
	Type        SignalType             `json:"type"`           // Signal classification
	Severity    SignalSeverity         `json:"severity"`       // info, warning, critical
	Description string                 `json:"description"`    // Human-readable description
	Data        map[string]interface{} `json:"data,omitempty"` // Transparent scoring data (formulas, inputs)
}

// SignalType classifies the type of diagnostic signal
type SignalType string

const (
	SignalComponent        SignalType = "component"         // Per-category component score
	SignalOverride         SignalType = "override"          // Hard-critical rule matched
	SignalBorderline       SignalType = "borderline"        // Score close to a band threshold
	SignalInsufficientData SignalType = "insufficient_data" // Nothing recognized in the input
	SignalUnrecognized     SignalType = "unrecognized"      // Keys ignored because they are not in the schema
)

// SignalSeverity indicates the importance of the signal
type SignalSeverity string

const (
	SeverityInfo     SignalSeverity = "info"
	SeverityWarning  SignalSeverity = "warning"
	SeverityCritical SignalSeverity = "critical"
)
