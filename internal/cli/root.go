package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/ictrisk/internal/logging"
	"github.com/ppiankov/ictrisk/internal/model"
)

// version is set at build time via -ldflags
var version = "v0.1.0"

var (
	cfgFile string
	verbose bool

	// appConfig is resolved once per invocation before any command runs
	appConfig *model.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "ictrisk",
	Short: "ictrisk - ICT third-party risk classification",
	Long: `ictrisk classifies ICT vendor and service relationships for regulatory
third-party risk registers.

It fuses boolean risk factors from a manual questionnaire, contract clause
analysis and service metadata into one auditable verdict: a 0-100 risk
score, a tier, a regulator-critical flag and a confidence.

Every verdict carries per-category signals that show how it was computed.
An optional statistical classifier, trained on rule-labeled synthetic data,
reports class probabilities next to the rule-based verdict.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logging.SetDefault(cfg.Log.Level, cfg.Log.Format)
		appConfig = cfg
		return nil
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Display the version number for ictrisk.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("ictrisk %s\n", version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.ictrisk/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Bind flags to viper
	_ = viper.BindPFlag("output.verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		// Search for config in home directory
		viper.AddConfigPath(filepath.Join(home, ".ictrisk"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// Read in environment variables that match ICTRISK_*, e.g. ICTRISK_MODEL_STORE
	viper.SetEnvPrefix("ICTRISK")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	setDefaults(model.DefaultConfig())

	// If a config file is found, read it in
	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// setDefaults registers every config key with viper so that environment
// variables are honored for keys absent from the config file
func setDefaults(cfg *model.Config) {
	defaults := map[string]interface{}{
		"risk.schema_file":            cfg.Risk.SchemaFile,
		"risk.rules_file":             cfg.Risk.RulesFile,
		"model.enabled":               cfg.Model.Enabled,
		"model.store":                 cfg.Model.Store,
		"model.path":                  cfg.Model.Path,
		"model.name":                  cfg.Model.Name,
		"model.min_samples":           cfg.Model.MinSamples,
		"model.max_synthetic_samples": cfg.Model.MaxSyntheticSamples,
		"model.seed":                  cfg.Model.Seed,
		"concurrency.workers":         cfg.Concurrency.Workers,
		"output.verbose":              cfg.Output.Verbose,
		"output.include_footer":       cfg.Output.IncludeFooter,
		"log.level":                   cfg.Log.Level,
		"log.format":                  cfg.Log.Format,
		"metrics.textfile":            cfg.Metrics.Textfile,
	}
	for key, value := range defaults {
		viper.SetDefault(key, value)
	}
}

// loadConfig merges defaults, config file, environment and flags
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, &model.ConfigError{Field: "config", Reason: err.Error()}
	}

	if cfg.Model.Path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve model path: %w", err)
		}
		cfg.Model.Path = filepath.Join(home, ".ictrisk", "models")
	}
	if verbose && cfg.Log.Level == "info" {
		cfg.Log.Level = "debug"
	}

	return cfg, nil
}
