package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// modelCmd represents the model command
var modelCmd = &cobra.Command{
	Use:   "model",
	Short: "Inspect the persisted classifier",
}

var modelInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the trained model",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		cfg := appConfig
		e, err := newEngine(cfg, engineOptions{classifier: true})
		if err != nil {
			return err
		}
		defer closeEngine(e, &err)

		info := e.classifier.Info()
		if !info.Trained {
			fmt.Fprintf(os.Stderr, "No trained model in %s (%s)\n", cfg.Model.Path, cfg.Model.Store)
			return nil
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	},
}

func init() {
	rootCmd.AddCommand(modelCmd)
	modelCmd.AddCommand(modelInfoCmd)
}
