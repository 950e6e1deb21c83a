// Package config provides configuration loading and management for the
// depth-profile analysis. It handles loading configuration from YAML files
// and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config represents the analysis configuration loaded from YAML.
type Config struct {
	// Model parameters
	Model struct {
		// Variant selects the draining-correction model (1-6)
		Variant int `yaml:"variant"`

		// Region is the cortical region: "striate" or "extrastriate"
		Region string `yaml:"region"`

		// NoiseSD is the SD of the Gaussian error factors of models 4 and 5
		NoiseSD float64 `yaml:"noiseSD"`

		// SystematicBias is the fixed bias extent of model 5
		SystematicBias float64 `yaml:"systematicBias"`

		// DeepFactors is the deep-layer underestimation sweep of model 6
		DeepFactors []float64 `yaml:"deepFactors"`
	} `yaml:"model"`

	// Inference parameters
	Inference struct {
		// Iterations is the bootstrap / noise / Monte Carlo sample count
		Iterations int `yaml:"iterations"`

		// LowerPercentile and UpperPercentile bound the confidence interval
		LowerPercentile float64 `yaml:"lowerPercentile"`
		UpperPercentile float64 `yaml:"upperPercentile"`

		// Statistic is the across-subject statistic: "mean" or "median"
		Statistic string `yaml:"statistic"`

		// UpsampleFactor controls peak localization grid refinement
		UpsampleFactor int `yaml:"upsampleFactor"`

		// SmoothSD is the Gaussian smoothing SD for peak localization,
		// in depth-position units
		SmoothSD float64 `yaml:"smoothSD"`

		// Seed makes all resampling reproducible
		Seed uint64 `yaml:"seed"`
	} `yaml:"inference"`

	// Processing parameters
	Processing struct {
		// NumCores specifies how many CPU cores to use for the
		// bootstrap and permutation fan-out
		NumCores int `yaml:"numCores"`
	} `yaml:"processing"`

	// Output parameters
	Output struct {
		// SaveIntermediaryResults determines whether to save the layer
		// profiles and corrected profiles of each stage as CSV
		SaveIntermediaryResults bool `yaml:"saveIntermediaryResults"`

		// IntermediaryDir is the directory for intermediary results
		IntermediaryDir string `yaml:"intermediaryDir"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default model parameters
	cfg.Model.Variant = 1
	cfg.Model.Region = "striate"
	cfg.Model.NoiseSD = 0.15
	cfg.Model.SystematicBias = 0.3
	cfg.Model.DeepFactors = []float64{0.0, 0.25, 0.5, 0.75}

	// Set default inference parameters
	cfg.Inference.Iterations = 10000
	cfg.Inference.LowerPercentile = 2.5
	cfg.Inference.UpperPercentile = 97.5
	cfg.Inference.Statistic = "mean"
	cfg.Inference.UpsampleFactor = 100
	cfg.Inference.SmoothSD = 0.05
	cfg.Inference.Seed = 1

	// Set default processing parameters
	cfg.Processing.NumCores = runtime.NumCPU()

	// Set default output parameters
	cfg.Output.SaveIntermediaryResults = false
	cfg.Output.IntermediaryDir = "intermediary_results"

	return cfg
}

// LoadConfig loads configuration from a YAML file.
// If the file doesn't exist, it returns the default configuration.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file.
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the
// specified path.
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
