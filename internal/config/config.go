// Package config loads the YAML configuration. Every field has a default, so
// a missing file or a partial file is fine.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"painting-enhancer/internal/export"
	"painting-enhancer/internal/grid"
	"painting-enhancer/internal/lens"
	"painting-enhancer/internal/pipeline"
	"painting-enhancer/internal/preview"
	"painting-enhancer/internal/upscale"
)

// ErrInvalid is wrapped by validation failures.
var ErrInvalid = errors.New("invalid configuration")

// Config is the application configuration.
type Config struct {
	Log        LogConfig         `yaml:"log"`
	Processing ProcessingConfig  `yaml:"processing"`
	Preview    PreviewConfig     `yaml:"preview"`
	Grid       GridConfig        `yaml:"grid"`
	Defaults   pipeline.Settings `yaml:"defaults"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level string `yaml:"level"`
	// Human selects console output instead of JSON.
	Human bool `yaml:"human"`
}

// ProcessingConfig controls the image operations.
type ProcessingConfig struct {
	// MaxDimension caps the longer side lens correction runs at; 0 disables.
	MaxDimension    int       `yaml:"max_dimension"`
	AvailableScales []float64 `yaml:"available_scales"`
	MaxPasses       int       `yaml:"max_passes"`
	// MaxUploadMB rejects larger input files.
	MaxUploadMB int `yaml:"max_upload_mb"`
}

// PreviewConfig controls the live preview.
type PreviewConfig struct {
	Debounce time.Duration `yaml:"debounce"`
	// MaxSize is the longer side preview images are scaled down to.
	MaxSize int `yaml:"max_size"`
}

// GridConfig controls the grid editor.
type GridConfig struct {
	HitRadius float64 `yaml:"hit_radius"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Log: LogConfig{Level: "info", Human: true},
		Processing: ProcessingConfig{
			AvailableScales: append([]float64(nil), upscale.DefaultScales...),
			MaxPasses:       upscale.DefaultMaxPasses,
			MaxUploadMB:     100,
		},
		Preview: PreviewConfig{
			Debounce: preview.DefaultDelay,
			MaxSize:  1600,
		},
		Grid:     GridConfig{HitRadius: grid.DefaultHitRadius},
		Defaults: pipeline.DefaultSettings(),
	}
}

// Load reads path over the defaults. An empty path or a file that does not
// exist yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Validate checks value ranges and names.
func (c Config) Validate() error {
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: log level %q", ErrInvalid, c.Log.Level)
	}

	if c.Processing.MaxDimension < 0 {
		return fmt.Errorf("%w: max_dimension must not be negative", ErrInvalid)
	}
	if len(c.Processing.AvailableScales) == 0 {
		return fmt.Errorf("%w: available_scales is empty", ErrInvalid)
	}
	for _, s := range c.Processing.AvailableScales {
		if s <= 1 {
			return fmt.Errorf("%w: scale %g must be greater than 1", ErrInvalid, s)
		}
	}
	if c.Processing.MaxPasses < 1 {
		return fmt.Errorf("%w: max_passes must be at least 1", ErrInvalid)
	}
	if c.Processing.MaxUploadMB < 1 {
		return fmt.Errorf("%w: max_upload_mb must be at least 1", ErrInvalid)
	}
	if c.Preview.Debounce < 0 {
		return fmt.Errorf("%w: preview debounce must not be negative", ErrInvalid)
	}
	if c.Grid.HitRadius <= 0 {
		return fmt.Errorf("%w: hit_radius must be positive", ErrInvalid)
	}
	return ValidateSettings(c.Defaults)
}

// ValidateSettings checks a settings block, such as the defaults or a
// session file.
func ValidateSettings(s pipeline.Settings) error {
	if _, ok := lens.Lookup(s.CameraProfile); !ok {
		return fmt.Errorf("%w: camera profile %q", ErrInvalid, s.CameraProfile)
	}
	if _, err := export.ParseFormat(string(s.OutputFormat)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if _, ok := upscale.LookupPrintSize(s.TargetSize); !ok {
		return fmt.Errorf("%w: target size %q", ErrInvalid, s.TargetSize)
	}

	ranges := []struct {
		name     string
		v        float64
		min, max float64
	}{
		{"lens_intensity", s.LensIntensity, -100, 100},
		{"lighting_strength", s.LightingStrength, 0, 100},
		{"contrast", s.Contrast, 0.5, 3},
		{"saturation", s.Saturation, 0, 3},
		{"color_intensity", s.ColorIntensity, 0, 100},
	}
	for _, r := range ranges {
		if r.v < r.min || r.v > r.max {
			return fmt.Errorf("%w: %s %g outside [%g, %g]", ErrInvalid, r.name, r.v, r.min, r.max)
		}
	}
	return nil
}
