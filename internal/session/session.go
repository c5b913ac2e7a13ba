// Package session saves and restores an editing session: the image it belongs
// to, the settings and the control grid.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"painting-enhancer/internal/config"
	"painting-enhancer/internal/grid"
	"painting-enhancer/internal/pipeline"
)

// FormatVersion is the current session file version.
const FormatVersion = 1

// Extension is appended to the image name for the default session path.
const Extension = ".painting.json"

var (
	// ErrVersion is returned for files written by a newer release.
	ErrVersion = errors.New("unsupported session version")
	// ErrSizeMismatch is returned when a session is applied to an image of
	// a different size than the one it was saved for.
	ErrSizeMismatch = errors.New("session was saved for a different image size")
)

// File is a saved session.
type File struct {
	Version  int       `json:"version"`
	Created  time.Time `json:"created"`
	Modified time.Time `json:"modified"`

	// ImagePath is relative to the session file when possible.
	ImagePath   string `json:"image,omitempty"`
	ImageWidth  int    `json:"imageWidth"`
	ImageHeight int    `json:"imageHeight"`

	// Stage is the last stage applied when the session was saved.
	Stage string `json:"stage,omitempty"`

	Settings pipeline.Settings `json:"settings"`
	Grid     []grid.Point      `json:"grid,omitempty"`
}

// New creates a session for an image of the given size with default settings.
func New(width, height int) *File {
	now := time.Now()
	return &File{
		Version:     FormatVersion,
		Created:     now,
		Modified:    now,
		ImageWidth:  width,
		ImageHeight: height,
		Settings:    pipeline.DefaultSettings(),
	}
}

// DefaultPath returns the session path stored next to an image.
func DefaultPath(imagePath string) string {
	return strings.TrimSuffix(imagePath, filepath.Ext(imagePath)) + Extension
}

// Load reads and validates a session file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse session %s: %w", path, err)
	}
	if f.Version < 1 || f.Version > FormatVersion {
		return nil, fmt.Errorf("%w: %d", ErrVersion, f.Version)
	}
	if err := config.ValidateSettings(f.Settings); err != nil {
		return nil, fmt.Errorf("session %s: %w", path, err)
	}
	if len(f.Grid) > 0 {
		if _, err := f.RestoreGrid(); err != nil {
			return nil, fmt.Errorf("session %s: %w", path, err)
		}
	}
	return &f, nil
}

// Save writes the session as indented JSON.
func (f *File) Save(path string) error {
	f.Modified = time.Now()

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// SetImage records the image path relative to the session file.
func (f *File) SetImage(sessionPath, imagePath string) {
	rel, err := filepath.Rel(filepath.Dir(sessionPath), imagePath)
	if err != nil {
		f.ImagePath = imagePath
	} else {
		f.ImagePath = rel
	}
	f.Modified = time.Now()
}

// GetImagePath returns the absolute image path.
func (f *File) GetImagePath(sessionPath string) string {
	if f.ImagePath == "" {
		return ""
	}
	if filepath.IsAbs(f.ImagePath) {
		return f.ImagePath
	}
	return filepath.Join(filepath.Dir(sessionPath), f.ImagePath)
}

// RestoreGrid rebuilds the saved control grid. It returns nil when no grid
// was saved.
func (f *File) RestoreGrid() (*grid.Grid, error) {
	if len(f.Grid) == 0 {
		return nil, nil
	}
	return grid.FromPoints(f.ImageWidth, f.ImageHeight, f.Grid)
}

// Capture records the pipeline's settings, stage and grid. It fails while a
// grid point is being dragged.
func Capture(p *pipeline.Pipeline, f *File) error {
	g, err := p.Grid().Snapshot()
	if err != nil {
		return err
	}
	f.Settings = p.Settings()
	f.Stage = p.Stage().String()
	f.Grid = nil
	if g != nil {
		f.Grid = g.Points()
		f.ImageWidth, f.ImageHeight = int(g.Width()), int(g.Height())
	}
	return nil
}

// Apply restores the settings and grid into a pipeline that has the
// session's image loaded. Stages are not re-run.
func Apply(p *pipeline.Pipeline, f *File) error {
	var width, height int
	p.View(func(original, _ pipeline.Bitmap) {
		if original != nil {
			width, height = original.Width(), original.Height()
		}
	})
	if width == 0 {
		return pipeline.ErrNoImage
	}
	if width != f.ImageWidth || height != f.ImageHeight {
		return fmt.Errorf("%w: saved %dx%d, loaded %dx%d", ErrSizeMismatch, f.ImageWidth, f.ImageHeight, width, height)
	}

	g, err := f.RestoreGrid()
	if err != nil {
		return err
	}
	if g != nil {
		if err := p.Grid().ReplaceIfIdle(g); err != nil {
			return err
		}
	}
	p.UpdateSettings(func(s *pipeline.Settings) { *s = f.Settings })
	return nil
}
