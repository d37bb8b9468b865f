package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/ictrisk/internal/assess"
)

var (
	outJSON       string
	outMD         string
	noFooter      bool
	noModel       bool
	assessTimeout time.Duration
)

// assessCmd represents the assess command
var assessCmd = &cobra.Command{
	Use:   "assess <request.json>",
	Short: "Assess a single vendor relationship and generate a risk report",
	Long: `Assess fuses the risk factors of one vendor relationship:
- Extract factors from the contract clause analysis
- Extract factors from the service description metadata
- Merge automated findings (a factor is true if any source reports it)
- Layer the manual questionnaire answers on top (manual answers win)
- Compute the weighted risk score, tier and regulator-critical flag
- Add the statistical classifier's probabilities when a model is trained

The request file is JSON with optional "manual_responses",
"contract_analysis" and "service_details" sections.

Example:
  ictrisk assess vendor.json
  ictrisk assess vendor.json --json report.json --md report.md
  ictrisk assess vendor.json --no-model`,
	Args: cobra.ExactArgs(1),
	RunE: runAssess,
}

func init() {
	rootCmd.AddCommand(assessCmd)

	assessCmd.Flags().StringVar(&outJSON, "json", "", "output JSON path (optional)")
	assessCmd.Flags().StringVar(&outMD, "md", "", "output Markdown path (optional)")
	assessCmd.Flags().BoolVar(&noFooter, "no-footer", false, "disable footer in Markdown reports")
	assessCmd.Flags().BoolVar(&noModel, "no-model", false, "skip the statistical classifier")
	assessCmd.Flags().DurationVar(&assessTimeout, "timeout", 30*time.Second, "assessment timeout")
}

func runAssess(cmd *cobra.Command, args []string) (err error) {
	cfg := appConfig
	ctx, cancel := context.WithTimeout(context.Background(), assessTimeout)
	defer cancel()

	req, err := assess.LoadRequest(args[0])
	if err != nil {
		return err
	}

	useModel := cfg.Model.Enabled && !noModel
	e, err := newEngine(cfg, engineOptions{classifier: useModel})
	if err != nil {
		return err
	}
	defer closeEngine(e, &err)

	if verbose {
		fmt.Fprintf(os.Stderr, "Assessing: %s\n", args[0])
		fmt.Fprintf(os.Stderr, "Schema:    %s\n", e.registry.Fingerprint())
		fmt.Fprintf(os.Stderr, "Model:     %v\n", useModel && e.classifier.IsTrained())
		fmt.Fprintln(os.Stderr)
	}

	assessment, err := e.assessor(useModel).Assess(ctx, req)
	if err != nil {
		return fmt.Errorf("assess: %w", err)
	}

	renderer := assess.NewRenderer(cfg.Output.IncludeFooter && !noFooter)

	if outJSON != "" {
		if err := renderer.RenderJSON(assessment, outJSON); err != nil {
			return err
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "✓ JSON report: %s\n", outJSON)
		}
	}
	if outMD != "" {
		if err := renderer.RenderMarkdown(assessment, outMD); err != nil {
			return err
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "✓ Markdown report: %s\n", outMD)
		}
	}

	// Without an output file the Markdown report goes to stdout
	if outJSON == "" && outMD == "" {
		fmt.Print(renderer.Markdown(assessment))
		return nil
	}

	renderer.RenderSummary(os.Stdout, assessment)
	return nil
}
