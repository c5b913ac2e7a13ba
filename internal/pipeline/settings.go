package pipeline

import (
	"painting-enhancer/internal/export"
	"painting-enhancer/internal/lens"
)

// Settings are the user-adjustable parameters of every stage.
type Settings struct {
	// LensIntensity runs from -100 to 100; 0 disables lens correction.
	LensIntensity float64 `json:"lensIntensity" yaml:"lens_intensity"`
	CameraProfile string  `json:"cameraProfile" yaml:"camera_profile"`

	// LightingStrength is the glare reduction percentage, 0..100.
	LightingStrength float64 `json:"lightingStrength" yaml:"lighting_strength"`
	Contrast         float64 `json:"contrast" yaml:"contrast"`
	Saturation       float64 `json:"saturation" yaml:"saturation"`

	AutoColor bool `json:"autoColor" yaml:"auto_color"`
	// ColorIntensity is the histogram equalization blend percentage, 0..100.
	ColorIntensity float64 `json:"colorIntensity" yaml:"color_intensity"`

	TargetSize   string        `json:"targetSize" yaml:"target_size"`
	OutputFormat export.Format `json:"outputFormat" yaml:"output_format"`
}

// DefaultSettings returns the settings a new session starts with.
func DefaultSettings() Settings {
	return Settings{
		CameraProfile:    lens.GenericProfile,
		LightingStrength: 10,
		Contrast:         1.10,
		Saturation:       1.24,
		AutoColor:        true,
		ColorIntensity:   75,
		TargetSize:       "24x30",
		OutputFormat:     export.JPEG95,
	}
}

// ToneNeutral reports whether the lighting stage would leave the image as is.
func (s Settings) ToneNeutral() bool {
	return s.LightingStrength == 0 && s.Contrast == 1 && s.Saturation == 1
}

// ColorNeutral reports whether the color stage is disabled.
func (s Settings) ColorNeutral() bool {
	return !s.AutoColor || s.ColorIntensity <= 0
}
