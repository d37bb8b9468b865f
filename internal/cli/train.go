package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/ictrisk/internal/classify"
	"github.com/ppiankov/ictrisk/internal/model"
)

var (
	trainSamples    int
	trainInput      string
	trainExport     string
	trainMetricsOut string
	trainForce      bool
)

// trainCmd represents the train command
var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the statistical risk classifier",
	Long: `Train fits the statistical classifier and persists it to the model store.

By default it trains on synthetic samples labeled by the rule-based
qualifier, so the model learns to reproduce the configured rules.
A labeled JSON file ([{"factors": {...}, "label": "High"}, ...]) can be
used instead.

An already trained model is kept unless --force is given. --force also
replaces a model trained against a different risk schema.

Example:
  ictrisk train
  ictrisk train --samples 1000 --export training_data.json --metrics-out model_metrics.json
  ictrisk train --input labeled.json --force`,
	Args: cobra.NoArgs,
	RunE: runTrain,
}

func init() {
	rootCmd.AddCommand(trainCmd)

	trainCmd.Flags().IntVarP(&trainSamples, "samples", "n", 200, "number of synthetic samples to generate")
	trainCmd.Flags().StringVar(&trainInput, "input", "", "labeled training data JSON (skips synthetic generation)")
	trainCmd.Flags().StringVar(&trainExport, "export", "", "write the training samples to this JSON path")
	trainCmd.Flags().StringVar(&trainMetricsOut, "metrics-out", "", "write the training result to this JSON path")
	trainCmd.Flags().BoolVar(&trainForce, "force", false, "retrain an already trained model")
}

func runTrain(cmd *cobra.Command, args []string) (err error) {
	cfg := appConfig

	e, err := newEngine(cfg, engineOptions{classifier: true, discardMismatched: trainForce})
	if err != nil {
		return err
	}
	defer closeEngine(e, &err)

	c := e.classifier
	if c.IsTrained() && !trainForce {
		info := c.Info()
		fmt.Fprintf(os.Stderr, "Model %s already trained (%d samples, accuracy %.3f)\n", info.ID, info.SampleCount, info.Accuracy)
		fmt.Fprintf(os.Stderr, "Use --force to retrain\n")
		return nil
	}

	var samples []model.SyntheticSample
	if trainInput != "" {
		samples, err = readSamples(trainInput)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "✓ Loaded %d labeled samples from %s\n", len(samples), trainInput)
	} else {
		samples, err = c.GenerateSyntheticTrainingData(trainSamples)
		if err != nil {
			return fmt.Errorf("generate training data: %w", err)
		}
		fmt.Fprintf(os.Stderr, "✓ Generated %d synthetic samples\n", len(samples))
	}

	if trainExport != "" {
		if err := writeJSON(trainExport, samples); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "✓ Exported training data: %s\n", trainExport)
	}

	result := c.Train(samples)

	if trainMetricsOut != "" {
		if err := writeJSON(trainMetricsOut, result); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "✓ Training metrics: %s\n", trainMetricsOut)
	}

	if result.Status != classify.TrainSuccess {
		return fmt.Errorf("training failed: %s", result.Message)
	}

	fmt.Printf("✓ Trained model %s on %d samples (accuracy %.3f)\n", result.ModelID, result.SampleCount, result.Accuracy)
	if verbose {
		fmt.Fprintf(os.Stderr, "  Store: %s (%s)\n", cfg.Model.Path, cfg.Model.Store)
	}
	return nil
}

// synthCmd represents the synth command
var synthCmd = &cobra.Command{
	Use:   "synth",
	Short: "Generate rule-labeled synthetic training data",
	Long: `Synth generates factor maps covering every risk tier and labels each one
with the rule-based qualifier. The output can be reviewed, edited and fed
back with 'ictrisk train --input'.

Example:
  ictrisk synth -n 500 --out training_data.json`,
	Args: cobra.NoArgs,
	RunE: runSynth,
}

var (
	synthSamples int
	synthOut     string
)

func init() {
	rootCmd.AddCommand(synthCmd)

	synthCmd.Flags().IntVarP(&synthSamples, "samples", "n", 200, "number of samples to generate")
	synthCmd.Flags().StringVar(&synthOut, "out", "", "output JSON path (default: stdout)")
}

func runSynth(cmd *cobra.Command, args []string) error {
	cfg := appConfig

	e, err := newEngine(cfg, engineOptions{})
	if err != nil {
		return err
	}

	// A throwaway in-memory classifier carries the generator and its seed
	c, err := classify.New(e.qualifier, nil, classify.Options{
		MaxSyntheticSamples: cfg.Model.MaxSyntheticSamples,
		Seed:                cfg.Model.Seed,
	})
	if err != nil {
		return err
	}

	samples, err := c.GenerateSyntheticTrainingData(synthSamples)
	if err != nil {
		return fmt.Errorf("generate training data: %w", err)
	}

	if synthOut == "" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(samples)
	}

	if err := writeJSON(synthOut, samples); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "✓ Wrote %d samples: %s\n", len(samples), synthOut)
	return nil
}

// readSamples reads labeled training samples from a JSON file
func readSamples(path string) ([]model.SyntheticSample, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read training data: %w", err)
	}
	var samples []model.SyntheticSample
	if err := json.Unmarshal(data, &samples); err != nil {
		return nil, fmt.Errorf("parse training data %s: %w", path, err)
	}
	return samples, nil
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
