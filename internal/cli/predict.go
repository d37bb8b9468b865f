package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/ppiankov/ictrisk/internal/model"
)

var (
	predictJSON  bool
	predictRules bool
)

// predictCmd represents the predict command
var predictCmd = &cobra.Command{
	Use:   "predict <factors.json>",
	Short: "Classify a factor map with the trained model",
	Long: `Predict classifies a risk factor map ({"category": {"factor": true}})
with the trained statistical classifier and prints the tier, score,
regulator-critical flag, confidence, component scores and class
probabilities. With --rules the rule-based qualifier is used instead.

Example:
  ictrisk predict factors.json
  ictrisk predict factors.json --json
  ictrisk predict factors.json --rules`,
	Args: cobra.ExactArgs(1),
	RunE: runPredict,
}

func init() {
	rootCmd.AddCommand(predictCmd)

	predictCmd.Flags().BoolVar(&predictJSON, "json", false, "print the result as JSON")
	predictCmd.Flags().BoolVar(&predictRules, "rules", false, "use the rule-based qualifier instead of the model")
}

func runPredict(cmd *cobra.Command, args []string) (err error) {
	cfg := appConfig

	factors, err := readFactors(args[0])
	if err != nil {
		return err
	}

	e, err := newEngine(cfg, engineOptions{classifier: !predictRules})
	if err != nil {
		return err
	}
	defer closeEngine(e, &err)

	var prediction model.Prediction
	if predictRules {
		prediction = model.Prediction{ScoreResult: e.qualifier.Qualify(factors)}
	} else {
		prediction, err = e.classifier.Predict(factors)
		if err != nil {
			return fmt.Errorf("predict: %w (run 'ictrisk train' first)", err)
		}
	}

	if predictJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(prediction)
	}

	printPrediction(os.Stdout, prediction)
	return nil
}

// readFactors reads a factor map from a JSON file
func readFactors(path string) (model.RiskFactorMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read factors: %w", err)
	}
	var factors model.RiskFactorMap
	if err := json.Unmarshal(data, &factors); err != nil {
		return nil, fmt.Errorf("parse factors %s: %w", path, err)
	}
	return factors, nil
}

func printPrediction(w io.Writer, p model.Prediction) {
	fmt.Fprintf(w, "Classification:     %s\n", p.Classification)
	fmt.Fprintf(w, "Risk score:         %.1f\n", p.RiskScore)
	fmt.Fprintf(w, "Regulator-critical: %v\n", p.DoraCritical)
	fmt.Fprintf(w, "Confidence:         %.2f\n", p.Confidence)
	fmt.Fprintf(w, "Method:             %s\n", p.Method)
	if p.InsufficientData {
		fmt.Fprintf(w, "⚠️  No recognized risk category; verdict needs human review\n")
	}
	for _, name := range p.OverridesFired {
		fmt.Fprintf(w, "Override:           %s\n", name)
	}

	fmt.Fprintf(w, "\nComponent scores:\n")
	for _, name := range sortedKeys(p.ComponentScores) {
		fmt.Fprintf(w, "  %-28s %.2f\n", name, p.ComponentScores[name])
	}

	if len(p.Probabilities) > 0 {
		fmt.Fprintf(w, "\nProbabilities:\n")
		tiers := make([]string, 0, len(p.Probabilities))
		for t := range p.Probabilities {
			tiers = append(tiers, string(t))
		}
		sort.Slice(tiers, func(i, j int) bool {
			return p.Probabilities[model.Tier(tiers[i])] > p.Probabilities[model.Tier(tiers[j])]
		})
		for _, t := range tiers {
			fmt.Fprintf(w, "  %-10s %.3f\n", t, p.Probabilities[model.Tier(t)])
		}
	}
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
