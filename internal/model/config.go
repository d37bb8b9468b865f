package model

import "runtime"

// Config holds the complete ictrisk configuration
type Config struct {
	Risk        RiskConfig        `mapstructure:"risk" yaml:"risk"`
	Model       ModelConfig       `mapstructure:"model" yaml:"model"`
	Concurrency ConcurrencyConfig `mapstructure:"concurrency" yaml:"concurrency"`
	Output      OutputConfig      `mapstructure:"output" yaml:"output"`
	Log         LogConfig         `mapstructure:"log" yaml:"log"`
	Metrics     MetricsConfig     `mapstructure:"metrics" yaml:"metrics"`
}

// RiskConfig points at optional schema and extraction rule overrides.
// Empty paths use the embedded defaults.
type RiskConfig struct {
	SchemaFile string `mapstructure:"schema_file" yaml:"schema_file"`
	RulesFile  string `mapstructure:"rules_file" yaml:"rules_file"`
}

// ModelConfig configures the statistical classifier and its persisted state
type ModelConfig struct {
	Enabled             bool   `mapstructure:"enabled" yaml:"enabled"`                             // Consult the classifier during assessments
	Store               string `mapstructure:"store" yaml:"store"`                                 // disk, sqlite, badger
	Path                string `mapstructure:"path" yaml:"path"`                                   // Directory for the store files; empty means $HOME/.ictrisk/models
	Name                string `mapstructure:"name" yaml:"name"`                                   // Key of the persisted state
	MinSamples          int    `mapstructure:"min_samples" yaml:"min_samples"`                     // Training refuses smaller sets
	MaxSyntheticSamples int    `mapstructure:"max_synthetic_samples" yaml:"max_synthetic_samples"` // Upper bound for generation requests
	Seed                uint64 `mapstructure:"seed" yaml:"seed"`                                   // 0 means time-seeded
}

// ConcurrencyConfig configures batch processing
type ConcurrencyConfig struct {
	Workers int `mapstructure:"workers" yaml:"workers"`
}

// OutputConfig configures report rendering
type OutputConfig struct {
	Verbose       bool `mapstructure:"verbose" yaml:"verbose"`
	IncludeFooter bool `mapstructure:"include_footer" yaml:"include_footer"`
}

// LogConfig configures structured logging
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"` // text or json
}

// MetricsConfig configures metrics export
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile" yaml:"textfile"` // Prometheus textfile written after batch runs
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Model: ModelConfig{
			Enabled:             true,
			Store:               "disk",
			Path:                "",
			Name:                "risk-classifier",
			MinSamples:          20,
			MaxSyntheticSamples: 10000,
		},
		Concurrency: ConcurrencyConfig{
			Workers: runtime.NumCPU(),
		},
		Output: OutputConfig{
			IncludeFooter: true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
