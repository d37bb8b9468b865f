package assess

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/ppiankov/ictrisk/internal/model"
)

// Renderer writes assessments as JSON and Markdown
type Renderer struct {
	includeFooter bool
}

// NewRenderer creates a new renderer
func NewRenderer(includeFooter bool) *Renderer {
	return &Renderer{includeFooter: includeFooter}
}

// RenderJSON writes the assessment as indented JSON
func (r *Renderer) RenderJSON(a *Assessment, path string) error {
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal assessment: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("write JSON: %w", err)
	}
	return nil
}

// RenderMarkdown writes the assessment as a Markdown report
func (r *Renderer) RenderMarkdown(a *Assessment, path string) error {
	if err := os.WriteFile(path, []byte(r.Markdown(a)), 0644); err != nil {
		return fmt.Errorf("write markdown: %w", err)
	}
	return nil
}

// Markdown renders the assessment report
func (r *Renderer) Markdown(a *Assessment) string {
	var b strings.Builder
	s := a.Score

	title := a.Vendor
	if title == "" {
		title = a.ID
	}
	fmt.Fprintf(&b, "# ICT Risk Assessment: %s\n\n", title)
	if a.ServiceName != "" {
		fmt.Fprintf(&b, "**Service:** %s  \n", a.ServiceName)
	}
	fmt.Fprintf(&b, "**Assessment ID:** %s  \n", a.ID)
	fmt.Fprintf(&b, "**Assessed:** %s  \n", a.AssessedAt.Format("2006-01-02 15:04 UTC"))
	fmt.Fprintf(&b, "**Schema:** %s\n\n", a.SchemaVersion)

	b.WriteString("## Verdict\n\n")
	b.WriteString("| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Risk score | %.1f / 100 |\n", s.RiskScore)
	fmt.Fprintf(&b, "| Classification | **%s** |\n", s.Classification)
	fmt.Fprintf(&b, "| Regulator-critical | %s |\n", yesNo(s.DoraCritical))
	fmt.Fprintf(&b, "| Confidence | %.2f |\n", s.Confidence)
	fmt.Fprintf(&b, "| Method | %s |\n\n", s.Method)

	if s.InsufficientData {
		b.WriteString("> ⚠️ **Insufficient data.** No recognized risk category was supplied; the verdict above is not evidence of low risk and needs human review.\n\n")
	}
	for _, name := range s.OverridesFired {
		fmt.Fprintf(&b, "> 🔴 Hard-critical rule `%s` matched: the relationship is regulator-critical regardless of score.\n\n", name)
	}

	b.WriteString("## Component Scores\n\n")
	b.WriteString("| Category | True / Total | Component | Weight | Contribution |\n|---|---|---|---|---|\n")
	for _, sig := range s.Signals {
		if sig.Type != model.SignalComponent {
			continue
		}
		fmt.Fprintf(&b, "| %v | %v / %v | %.2f | %.2f | %.1f |\n",
			sig.Data["category"], sig.Data["true_count"], sig.Data["total"],
			toFloat(sig.Data["score"]), toFloat(sig.Data["weight"]), toFloat(sig.Data["contribution"]))
	}
	b.WriteString("\n_Formula: risk_score = 100 × Σ(weight × true_count / total)_\n\n")

	var notes []model.Signal
	for _, sig := range s.Signals {
		if sig.Type != model.SignalComponent {
			notes = append(notes, sig)
		}
	}
	if len(notes) > 0 {
		b.WriteString("## Signals\n\n")
		for _, sig := range notes {
			fmt.Fprintf(&b, "- %s **%s**: %s\n", severityIcon(sig.Severity), sig.Type, sig.Description)
		}
		b.WriteString("\n")
	}

	if a.Prediction != nil {
		p := a.Prediction
		b.WriteString("## Statistical Classifier\n\n")
		fmt.Fprintf(&b, "Predicted **%s** (confidence %.2f, expected score %.1f, model `%s`).\n\n",
			p.Classification, p.Confidence, p.RiskScore, p.ModelID)
		b.WriteString("| Class | Probability |\n|---|---|\n")
		for _, t := range sortedTiers(p.Probabilities) {
			fmt.Fprintf(&b, "| %s | %.3f |\n", t, p.Probabilities[t])
		}
		b.WriteString("\n")
		if p.Classification != s.Classification {
			fmt.Fprintf(&b, "> Rule-based and statistical verdicts differ (%s vs %s); review the inputs.\n\n", s.Classification, p.Classification)
		}
	} else if a.PredictionError != "" {
		fmt.Fprintf(&b, "_Statistical classifier unavailable: %s_\n\n", a.PredictionError)
	}

	b.WriteString("## Factors\n\n")
	if len(a.AutoDetectedFactors) > 0 {
		b.WriteString("**Auto-detected:**\n\n")
		for _, k := range a.AutoDetectedFactors {
			fmt.Fprintf(&b, "- `%s`\n", k)
		}
		b.WriteString("\n")
	} else {
		b.WriteString("No factors were detected automatically.\n\n")
	}
	if len(a.CoverageGaps) > 0 {
		b.WriteString("**Contract coverage gaps:** ")
		b.WriteString(strings.Join(a.CoverageGaps, ", "))
		b.WriteString("\n\n")
	}
	if len(a.Unrecognized) > 0 {
		b.WriteString("**Ignored questionnaire keys:** ")
		b.WriteString(strings.Join(a.Unrecognized, ", "))
		b.WriteString("\n\n")
	}

	if len(a.Sources) > 0 {
		b.WriteString("## Sources\n\n")
		b.WriteString("| Source | Status | Factors | Issues |\n|---|---|---|---|\n")
		for _, src := range a.Sources {
			fmt.Fprintf(&b, "| %s | %s | %d | %d |\n", src.Source, src.Status, len(src.Factors.TrueKeys()), len(src.Issues))
		}
		b.WriteString("\n")
	}

	if r.includeFooter {
		b.WriteString("---\n\n")
		b.WriteString("_Generated by ictrisk. The verdict is computed from boolean risk factors only; it is not a legal interpretation of the contract._\n")
	}

	return b.String()
}

// RenderSummary prints a short verdict to w
func (r *Renderer) RenderSummary(w io.Writer, a *Assessment) {
	s := a.Score
	fmt.Fprintf(w, "%s: %s (score %.1f, confidence %.2f)", labelOf(a), s.Classification, s.RiskScore, s.Confidence)
	if s.DoraCritical {
		fmt.Fprint(w, " [regulator-critical]")
	}
	if s.InsufficientData {
		fmt.Fprint(w, " [insufficient data]")
	}
	fmt.Fprintln(w)
	if a.Prediction != nil {
		fmt.Fprintf(w, "  model: %s (p=%.2f)\n", a.Prediction.Classification, a.Prediction.Confidence)
	}
}

func labelOf(a *Assessment) string {
	if a.Vendor != "" {
		return a.Vendor
	}
	return a.ID
}

func sortedTiers(m map[model.Tier]float64) []model.Tier {
	tiers := make([]model.Tier, 0, len(m))
	for t := range m {
		tiers = append(tiers, t)
	}
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].Rank() < tiers[j].Rank() })
	return tiers
}

func toFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	}
	return 0
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func severityIcon(s model.SignalSeverity) string {
	switch s {
	case model.SeverityCritical:
		return "🔴"
	case model.SeverityWarning:
		return "🟡"
	}
	return "🔵"
}
