package score

import (
	"fmt"
	"math"

	"github.com/ppiankov/ictrisk/internal/model"
	"github.com/ppiankov/ictrisk/internal/schema"
)

// borderlineConfidence is the confidence under which a borderline signal is emitted
const borderlineConfidence = 0.2

// Qualifier calculates the weighted rule-based risk verdict
type Qualifier struct {
	registry *schema.Registry
}

// NewQualifier creates a new qualifier over a validated schema
func NewQualifier(registry *schema.Registry) *Qualifier {
	return &Qualifier{registry: registry}
}

// Registry returns the schema the qualifier scores against
func (q *Qualifier) Registry() *schema.Registry {
	return q.registry
}

// Qualify calculates the risk score, tier, regulator-critical flag and
// confidence together with transparent per-category signals
func (q *Qualifier) Qualify(factors model.RiskFactorMap) model.ScoreResult {
	normalized, unknown := q.registry.Normalize(factors)

	components, signals, weighted := q.calculateComponents(normalized)

	result := model.ScoreResult{
		ComponentScores: components,
		Unrecognized:    unknown,
		Method:          model.MethodRules,
	}

	if len(unknown) > 0 {
		signals = append(signals, model.Signal{
			Type:        model.SignalUnrecognized,
			Severity:    model.SeverityInfo,
			Description: fmt.Sprintf("%d input keys are not in the registered schema and were ignored", len(unknown)),
			Data:        map[string]interface{}{"keys": unknown},
		})
	}

	// No recognized category: report insufficient data rather than "certainly low"
	if len(normalized) == 0 {
		result.RiskScore = 0
		result.Classification = q.registry.Lowest()
		result.Confidence = 0
		result.InsufficientData = true
		result.Signals = append(signals, model.Signal{
			Type:        model.SignalInsufficientData,
			Severity:    model.SeverityWarning,
			Description: "No recognized risk category in the input; verdict needs human review",
			Data:        map[string]interface{}{"recognized_categories": 0},
		})
		return result
	}

	result.RiskScore = clamp(100*weighted, 0, 100)
	_, result.Classification = q.registry.Classify(result.RiskScore)
	result.Confidence = q.Confidence(result.RiskScore)

	result.OverridesFired = q.firedOverrides(normalized)
	for _, name := range result.OverridesFired {
		signals = append(signals, model.Signal{
			Type:        model.SignalOverride,
			Severity:    model.SeverityCritical,
			Description: fmt.Sprintf("Hard-critical rule %q matched", name),
			Data:        map[string]interface{}{"rule": name},
		})
	}
	result.DoraCritical = q.registry.IsCriticalTier(result.Classification) || len(result.OverridesFired) > 0

	if result.Confidence < borderlineConfidence {
		signals = append(signals, q.borderlineSignal(result.RiskScore, result.Confidence))
	}

	result.Signals = signals
	return result
}

// ComponentScores returns the per-category fraction of true factors
func (q *Qualifier) ComponentScores(factors model.RiskFactorMap) map[string]float64 {
	normalized, _ := q.registry.Normalize(factors)
	components, _, _ := q.calculateComponents(normalized)
	return components
}

// FiredOverrides returns the names of the hard-critical rules matched by the input
func (q *Qualifier) FiredOverrides(factors model.RiskFactorMap) []string {
	normalized, _ := q.registry.Normalize(factors)
	return q.firedOverrides(normalized)
}

// Classify returns the tier the rules assign to the input. It is the labeling
// function used for synthetic training data.
func (q *Qualifier) Classify(factors model.RiskFactorMap) model.Tier {
	return q.Qualify(factors).Classification
}

// Confidence measures how far score sits from the nearest band threshold,
// normalized by the largest such distance possible inside its band
func (q *Qualifier) Confidence(score float64) float64 {
	bands := q.registry.Bands()
	if len(bands) == 1 {
		return 1
	}

	idx, _ := q.registry.Classify(score)
	lo, hi := q.registry.BandRange(idx)
	hasLower := idx > 0
	hasUpper := idx < len(bands)-1

	var dist, maxDist float64
	switch {
	case hasLower && hasUpper:
		dist = math.Min(score-lo, hi-score)
		maxDist = (hi - lo) / 2
	case hasLower:
		dist = score - lo
		maxDist = hi - lo
	default:
		dist = hi - score
		maxDist = hi - lo
	}

	if maxDist <= 0 {
		return 1
	}
	return clamp(dist/maxDist, 0, 1)
}

// calculateComponents scores every registered category. A registered category
// missing from the input counts as all-false.
func (q *Qualifier) calculateComponents(normalized model.RiskFactorMap) (map[string]float64, []model.Signal, float64) {
	categories := q.registry.Categories()
	components := make(map[string]float64, len(categories))
	signals := make([]model.Signal, 0, len(categories))

	var weighted float64
	for _, cat := range categories {
		score, signal := q.calculateComponent(cat, normalized[cat.Name])
		components[cat.Name] = score
		signals = append(signals, signal)
		weighted += cat.Weight * score
	}
	return components, signals, weighted
}

// calculateComponent calculates one category's component score (0-1)
func (q *Qualifier) calculateComponent(cat schema.Category, factors map[string]bool) (float64, model.Signal) {
	trueCount := 0
	var trueFactors []string
	for _, f := range cat.Factors {
		if factors[f.Name] {
			trueCount++
			trueFactors = append(trueFactors, f.Name)
		}
	}

	total := len(cat.Factors)
	score := float64(trueCount) / float64(total)

	severity := model.SeverityInfo
	if score >= 0.75 {
		severity = model.SeverityCritical
	} else if score >= 0.5 {
		severity = model.SeverityWarning
	}

	return score, model.Signal{
		Type:        model.SignalComponent,
		Severity:    severity,
		Description: fmt.Sprintf("%s: %d/%d factors present", cat.Name, trueCount, total),
		Data: map[string]interface{}{
			"category":     cat.Name,
			"true_factors": trueFactors,
			"true_count":   trueCount,
			"total":        total,
			"score":        score,
			"weight":       cat.Weight,
			"contribution": 100 * cat.Weight * score,
			"formula":      "true_count / total * weight * 100",
		},
	}
}

// firedOverrides returns the override rules whose factors are all true
func (q *Qualifier) firedOverrides(normalized model.RiskFactorMap) []string {
	var fired []string
	for _, o := range q.registry.Overrides() {
		all := true
		for _, ref := range o.Factors {
			if v, _ := normalized.Get(ref.Category, ref.Factor); !v {
				all = false
				break
			}
		}
		if all {
			fired = append(fired, o.Name)
		}
	}
	return fired
}

// borderlineSignal reports the threshold a low-confidence score sits next to
func (q *Qualifier) borderlineSignal(score, confidence float64) model.Signal {
	nearest := math.NaN()
	for i, b := range q.registry.Bands() {
		if i == 0 {
			continue
		}
		if math.IsNaN(nearest) || math.Abs(score-b.Min) < math.Abs(score-nearest) {
			nearest = b.Min
		}
	}

	return model.Signal{
		Type:        model.SignalBorderline,
		Severity:    model.SeverityWarning,
		Description: fmt.Sprintf("Score %.1f is %.1f points from the %.0f threshold", score, math.Abs(score-nearest), nearest),
		Data: map[string]interface{}{
			"score":      score,
			"threshold":  nearest,
			"confidence": confidence,
		},
	}
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
