// Package config provides configuration loading for the batch tools.
// Configuration is read from a YAML file, with sensible defaults when the
// file or individual keys are absent.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"wsi-patcher/internal/mask"
	"wsi-patcher/internal/patch"

	"gopkg.in/yaml.v3"
)

// Config represents the tool configuration loaded from YAML.
type Config struct {
	// Masking parameters for tissue detection
	Masking struct {
		// Rules is the color rule set; a pixel is tissue when any rule
		// matches it on all four channels.
		Rules mask.RuleSet `yaml:"rules"`

		// SmoothKernel is the Gaussian kernel size for mask smoothing.
		// Values below 3 disable smoothing.
		SmoothKernel int `yaml:"smoothKernel"`

		// SmoothSigma is the Gaussian sigma for mask smoothing.
		SmoothSigma float64 `yaml:"smoothSigma"`

		// SmoothMinFraction is the re-threshold applied after smoothing.
		SmoothMinFraction float64 `yaml:"smoothMinFraction"`

		// ReferenceDownsample selects the pyramid level masks are built
		// at: the level whose downsample is closest to this value.
		ReferenceDownsample float64 `yaml:"referenceDownsample"`
	} `yaml:"masking"`

	// Patching parameters for grid import
	Patching struct {
		// PhysSizeMicrons is the physical side length of each square patch.
		PhysSizeMicrons float64 `yaml:"physSizeMicrons"`

		// IntervalMicrons is the grid stride between patch origins.
		IntervalMicrons float64 `yaml:"intervalMicrons"`

		// TargetPixels is the output patch side length in pixels.
		TargetPixels int `yaml:"targetPixels"`

		// UsableThreshold is the minimum tissue fraction; a patch must
		// exceed it strictly to count as usable.
		UsableThreshold float64 `yaml:"usableThreshold"`

		// Seed drives the shuffle of grid coordinates.
		Seed int64 `yaml:"seed"`

		// Workers is the import worker pool size.
		Workers int `yaml:"workers"`
	} `yaml:"patching"`

	// Database parameters for slide metadata
	Database struct {
		// DSN is the MySQL data source name. Empty disables the store.
		DSN string `yaml:"dsn"`

		// Table is the slide metadata table name.
		Table string `yaml:"table"`
	} `yaml:"database"`

	// Output parameters
	Output struct {
		// Dir is the directory masks, previews and patches are written to.
		Dir string `yaml:"dir"`

		// SavePreviews controls whether overlay preview PNGs are written
		// next to each mask.
		SavePreviews bool `yaml:"savePreviews"`

		// ReadLabels enables OCR of slide label images when the metadata
		// store provides a label path.
		ReadLabels bool `yaml:"readLabels"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Masking.Rules = mask.RuleSet{mask.NewColorRule()}
	cfg.Masking.SmoothKernel = 0
	cfg.Masking.SmoothSigma = 0
	cfg.Masking.SmoothMinFraction = 0.5
	cfg.Masking.ReferenceDownsample = 12.0

	cfg.Patching.PhysSizeMicrons = 256
	cfg.Patching.IntervalMicrons = 256
	cfg.Patching.TargetPixels = 512
	cfg.Patching.UsableThreshold = patch.DefaultUsableThreshold
	cfg.Patching.Seed = 1
	cfg.Patching.Workers = runtime.NumCPU()

	cfg.Database.Table = "slides"

	cfg.Output.Dir = "out"
	cfg.Output.SavePreviews = true
	cfg.Output.ReadLabels = false

	return cfg
}

// LoadConfig loads configuration from a YAML file. If the file doesn't
// exist, it returns the default configuration.
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

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the pipeline cannot run with.
func (c *Config) Validate() error {
	if err := c.Masking.Rules.Validate(); err != nil {
		return fmt.Errorf("invalid masking rules: %w", err)
	}
	if c.Masking.ReferenceDownsample <= 0 {
		return fmt.Errorf("referenceDownsample must be positive, got %v", c.Masking.ReferenceDownsample)
	}
	if c.Patching.PhysSizeMicrons <= 0 {
		return fmt.Errorf("physSizeMicrons must be positive, got %v", c.Patching.PhysSizeMicrons)
	}
	if c.Patching.IntervalMicrons <= 0 {
		return fmt.Errorf("intervalMicrons must be positive, got %v", c.Patching.IntervalMicrons)
	}
	if c.Patching.TargetPixels <= 0 {
		return fmt.Errorf("targetPixels must be positive, got %d", c.Patching.TargetPixels)
	}
	if c.Patching.UsableThreshold < 0 || c.Patching.UsableThreshold >= 1 {
		return fmt.Errorf("usableThreshold must be in [0,1), got %v", c.Patching.UsableThreshold)
	}
	if c.Patching.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Patching.Workers)
	}
	return nil
}

// SaveConfig saves the configuration to a YAML file.
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
