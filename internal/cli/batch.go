package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/ictrisk/internal/assess"
	"github.com/ppiankov/ictrisk/internal/metrics"
	"github.com/ppiankov/ictrisk/internal/worker"
)

var (
	concurrency  int
	outputDir    string
	batchTimeout time.Duration
	metricsFile  string
	// noFooter and noModel are defined in assess.go and shared here
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <requests.jsonl>",
	Short: "Assess multiple vendor relationships from a file in parallel",
	Long: `Batch assesses many vendor relationships concurrently:
- Read requests from the input file (one JSON request per line, # comments)
- Assess requests in parallel with a configurable worker count
- Generate a JSON and a Markdown report per request
- Optionally write Prometheus metrics for the run to a textfile

Example:
  ictrisk batch vendors.jsonl
  ictrisk batch vendors.jsonl --concurrency 8 --output-dir ./reports
  ictrisk batch vendors.jsonl --metrics-file /var/lib/node_exporter/ictrisk.prom`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", 0, "number of concurrent workers (default: concurrency.workers)")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "./ictrisk-reports", "output directory for reports")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 10*time.Minute, "total timeout for batch processing")
	batchCmd.Flags().StringVar(&metricsFile, "metrics-file", "", "Prometheus textfile to write after the run (default: metrics.textfile)")
	batchCmd.Flags().BoolVar(&noFooter, "no-footer", false, "disable footer in Markdown reports")
	batchCmd.Flags().BoolVar(&noModel, "no-model", false, "skip the statistical classifier")
}

func runBatch(cmd *cobra.Command, args []string) (err error) {
	cfg := appConfig
	file := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), batchTimeout)
	defer cancel()

	workers := concurrency
	if workers <= 0 {
		workers = cfg.Concurrency.Workers
	}
	textfile := metricsFile
	if textfile == "" {
		textfile = cfg.Metrics.Textfile
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  ictrisk Batch Assessment\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input file:   %s\n", file)
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", workers)
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", batchTimeout)
	fmt.Fprintf(os.Stderr, "\n")

	useModel := cfg.Model.Enabled && !noModel
	e, err := newEngine(cfg, engineOptions{classifier: useModel})
	if err != nil {
		return err
	}
	defer closeEngine(e, &err)

	// Create output directory
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	processor := worker.NewBatchProcessor(e.assessor(useModel), workers)

	fmt.Fprintf(os.Stderr, "⚙️  Assessing requests with %d workers...\n", workers)
	fmt.Fprintf(os.Stderr, "\n")

	results, err := processor.ProcessFile(ctx, file)
	if err != nil {
		return fmt.Errorf("process file: %w", err)
	}

	renderer := assess.NewRenderer(cfg.Output.IncludeFooter && !noFooter)
	successCount := 0
	failureCount := 0
	criticalCount := 0

	for _, result := range results {
		if result.Error != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ line %d: %v\n", result.Line, result.Error)
			continue
		}

		a := result.Assessment
		slug := sanitizeFilename(reportName(a))
		jsonPath := filepath.Join(outputDir, slug+".json")
		mdPath := filepath.Join(outputDir, slug+".md")

		if err := renderer.RenderJSON(a, jsonPath); err != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ line %d: failed to write JSON: %v\n", result.Line, err)
			continue
		}
		if err := renderer.RenderMarkdown(a, mdPath); err != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ line %d: failed to write Markdown: %v\n", result.Line, err)
			continue
		}

		successCount++
		if a.Score.DoraCritical {
			criticalCount++
		}
		fmt.Fprintf(os.Stderr, "✓ ")
		renderer.RenderSummary(os.Stderr, a)
	}

	if textfile != "" {
		if err := metrics.WriteTextfile(textfile); err != nil {
			fmt.Fprintf(os.Stderr, "✗ metrics: %v\n", err)
		}
	}

	// Summary
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:              %d requests\n", len(results))
	fmt.Fprintf(os.Stderr, "  Success:            %d\n", successCount)
	fmt.Fprintf(os.Stderr, "  Failures:           %d\n", failureCount)
	fmt.Fprintf(os.Stderr, "  Regulator-critical: %d\n", criticalCount)
	fmt.Fprintf(os.Stderr, "  Output:             %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "\n")

	if failureCount > 0 {
		return fmt.Errorf("%d of %d requests failed", failureCount, len(results))
	}
	return nil
}

// reportName picks a stable, readable base name for a report
func reportName(a *assess.Assessment) string {
	if a.Vendor == "" {
		return a.ID
	}
	return a.Vendor + "-" + a.ID
}

// sanitizeFilename sanitizes a string for use as a filename
func sanitizeFilename(s string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "-",
	)
	s = replacer.Replace(strings.TrimSpace(s))
	s = strings.Trim(s, ".")

	if s == "" {
		s = "report"
	}

	// Limit length
	if len(s) > 100 {
		s = s[:100]
	}

	return s
}
