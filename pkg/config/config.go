// Package config provides configuration loading and management for qimagecompress.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Patch geometry
	Patch struct {
		// Rows and Cols are the patch size in pixels; their product must be a power of two
		Rows int `yaml:"rows"`
		Cols int `yaml:"cols"`
	} `yaml:"patch"`

	// Quantum simulation parameters
	Quantum struct {
		// BitDepth is the intensity depth b; white is 2^b - 1
		BitDepth int `yaml:"bitDepth"`

		// Levels lists the truncation levels n2 to reconstruct, empty for every even level
		Levels []int `yaml:"levels"`

		// ShotPolicy selects the shot count formula: ideal, standard, reasonable, noisy or fixed
		ShotPolicy string `yaml:"shotPolicy"`

		// Shots is the per-patch shot count used by the fixed policy
		Shots int `yaml:"shots"`

		// Mixing applies the Hadamard layers around the transform
		Mixing bool `yaml:"mixing"`

		// KeepNorm scales each patch by its intensity sum instead of 1
		KeepNorm bool `yaml:"keepNorm"`

		// Exact replaces sampling with expected counts
		Exact bool `yaml:"exact"`

		// Seed seeds the measurement sampler
		Seed uint64 `yaml:"seed"`
	} `yaml:"quantum"`

	// Processing parameters
	Processing struct {
		// Workers is how many patches are simulated concurrently
		Workers int `yaml:"workers"`

		// Retries is the number of extra attempts for a failed patch
		Retries int `yaml:"retries"`

		// PatchTimeout bounds a single patch simulation, 0 for no limit
		PatchTimeout time.Duration `yaml:"patchTimeout"`
	} `yaml:"processing"`

	// Input preprocessing
	Input struct {
		// ResizeRows and ResizeCols resize the decoded image when both are set
		ResizeRows int `yaml:"resizeRows"`
		ResizeCols int `yaml:"resizeCols"`
	} `yaml:"input"`

	// Output parameters
	Output struct {
		// Dir is the run directory
		Dir string `yaml:"dir"`

		SaveText       bool `yaml:"saveText"`
		SaveBinary     bool `yaml:"saveBinary"`
		CompressBinary bool `yaml:"compressBinary"`
		SavePNG        bool `yaml:"savePNG"`
		SaveUpscaled   bool `yaml:"saveUpscaled"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Patch.Rows = 8
	cfg.Patch.Cols = 8

	cfg.Quantum.BitDepth = 8
	cfg.Quantum.ShotPolicy = "reasonable"
	cfg.Quantum.Mixing = true
	cfg.Quantum.Seed = 1

	cfg.Processing.Workers = runtime.NumCPU() // Use all available cores by default
	cfg.Processing.Retries = 1
	cfg.Processing.PatchTimeout = 5 * time.Minute

	cfg.Output.Dir = "output"
	cfg.Output.SaveText = true
	cfg.Output.SaveBinary = true
	cfg.Output.SavePNG = true
	cfg.Output.SaveUpscaled = true
	cfg.Output.Verbose = true

	return cfg
}

// Validate checks the values that do not depend on the input image.
func (c *Config) Validate() error {
	var errs []error
	if c.Patch.Rows <= 0 || c.Patch.Cols <= 0 {
		errs = append(errs, fmt.Errorf("patch size %dx%d must be positive", c.Patch.Rows, c.Patch.Cols))
	} else if area := c.Patch.Rows * c.Patch.Cols; area&(area-1) != 0 {
		errs = append(errs, fmt.Errorf("patch area %d is not a power of two", area))
	}
	if c.Quantum.BitDepth < 1 || c.Quantum.BitDepth > 16 {
		errs = append(errs, fmt.Errorf("bitDepth %d must be between 1 and 16", c.Quantum.BitDepth))
	}
	for _, n2 := range c.Quantum.Levels {
		if n2 < 2 || n2%2 != 0 {
			errs = append(errs, fmt.Errorf("level %d must be even and at least 2", n2))
		}
	}
	if c.Quantum.ShotPolicy == "fixed" && c.Quantum.Shots <= 0 {
		errs = append(errs, fmt.Errorf("fixed shot policy needs a positive shots value"))
	}
	if c.Processing.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers %d must not be negative", c.Processing.Workers))
	}
	if c.Processing.Retries < 0 {
		errs = append(errs, fmt.Errorf("retries %d must not be negative", c.Processing.Retries))
	}
	if c.Processing.PatchTimeout < 0 {
		errs = append(errs, fmt.Errorf("patchTimeout %s must not be negative", c.Processing.PatchTimeout))
	}
	if (c.Input.ResizeRows > 0) != (c.Input.ResizeCols > 0) {
		errs = append(errs, fmt.Errorf("resizeRows and resizeCols must be set together"))
	}
	if c.Output.Dir == "" {
		errs = append(errs, fmt.Errorf("output dir must be set"))
	}
	return errors.Join(errs...)
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	return SaveConfig(DefaultConfig(), configPath)
}
