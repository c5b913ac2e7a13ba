// Package app ties the pipeline, the live preview and sessions together for
// the user interfaces.
package app

import (
	"errors"
	"fmt"
	"image"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"painting-enhancer/internal/config"
	"painting-enhancer/internal/export"
	"painting-enhancer/internal/grid"
	"painting-enhancer/internal/loader"
	"painting-enhancer/internal/logger"
	"painting-enhancer/internal/pipeline"
	"painting-enhancer/internal/preview"
	"painting-enhancer/internal/session"
	"painting-enhancer/pkg/geometry"
)

// Backend is the image operations plus conversion to and from Go images.
type Backend interface {
	pipeline.Ops
	Import(img image.Image) (pipeline.Bitmap, error)
	Render(b pipeline.Bitmap) (image.Image, error)
}

// State holds the loaded image, the pipeline and the session being edited.
type State struct {
	mu sync.RWMutex

	// Image
	ImagePath   string
	ImageFormat string
	DPI         float64

	// Session
	SessionPath string
	Modified    bool

	cfg      config.Config
	log      zerolog.Logger
	backend  Backend
	pipeline *pipeline.Pipeline
	preview  *preview.Debouncer

	listeners map[EventType][]EventListener
}

// EventType identifies different application events.
type EventType int

const (
	EventImageLoaded EventType = iota
	EventStageApplied
	EventStageFailed
	EventProgress
	EventGridChanged
	EventSettingsChanged
	EventSessionLoaded
	EventSessionSaved
	EventExported
	EventModified
	EventConfigReloaded
)

// Progress is the data of EventProgress.
type Progress struct {
	Stage   pipeline.Stage
	Percent int
}

// EventListener is called when an event occurs.
type EventListener func(data interface{})

// NewState creates the application state over a backend.
func NewState(cfg config.Config, log zerolog.Logger, backend Backend) *State {
	s := &State{
		cfg:       cfg,
		log:       logger.Component(log, "app"),
		backend:   backend,
		preview:   preview.NewDebouncer(cfg.Preview.Debounce),
		listeners: make(map[EventType][]EventListener),
	}
	s.pipeline = pipeline.New(backend, log, pipeline.Options{
		Scales:    cfg.Processing.AvailableScales,
		MaxPasses: cfg.Processing.MaxPasses,
		HitRadius: cfg.Grid.HitRadius,
	})
	s.pipeline.UpdateSettings(func(st *pipeline.Settings) { *st = cfg.Defaults })
	return s
}

// On registers an event listener for the specified event type.
func (s *State) On(event EventType, listener EventListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners[event] = append(s.listeners[event], listener)
}

// Emit triggers all listeners for the specified event type.
func (s *State) Emit(event EventType, data interface{}) {
	s.mu.RLock()
	listeners := s.listeners[event]
	s.mu.RUnlock()

	for _, listener := range listeners {
		listener(data)
	}
}

// SetModified marks the session as modified and emits an event.
func (s *State) SetModified(modified bool) {
	s.mu.Lock()
	s.Modified = modified
	s.mu.Unlock()
	s.Emit(EventModified, modified)
}

// Pipeline returns the correction pipeline.
func (s *State) Pipeline() *pipeline.Pipeline { return s.pipeline }

// Config returns the active configuration.
func (s *State) Config() config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// ApplyConfig switches to a reloaded configuration. Logging and the preview
// delay change immediately; new defaults apply to the next image. A pending
// preview moves to the new delay. Pipeline options are fixed for the life of
// the state.
func (s *State) ApplyConfig(cfg config.Config) {
	s.mu.Lock()
	s.cfg = cfg
	old := s.preview
	next := preview.NewDebouncer(cfg.Preview.Debounce)
	s.preview = next
	s.mu.Unlock()

	if fn := old.Take(); fn != nil {
		next.Schedule(fn)
	}
	zerolog.SetGlobalLevel(logger.ParseLevel(cfg.Log.Level))
	s.log.Info().Str("level", cfg.Log.Level).Dur("debounce", cfg.Preview.Debounce).Msg("configuration reloaded")
	s.Emit(EventConfigReloaded, cfg)
}

// LoadImage decodes the photo at path and makes it the pipeline's original.
// Settings return to the configured defaults.
func (s *State) LoadImage(path string) error {
	cfg := s.Config()
	src, err := loader.Load(path, loader.Options{MaxBytes: int64(cfg.Processing.MaxUploadMB) << 20})
	if err != nil {
		s.log.Error().Err(err).Str("path", path).Msg("image rejected")
		return err
	}
	bm, err := s.backend.Import(src.Image)
	if err != nil {
		return fmt.Errorf("import %s: %w", path, err)
	}

	s.debouncer().Cancel()
	if err := s.pipeline.Load(bm); err != nil {
		bm.Release()
		return err
	}
	s.pipeline.UpdateSettings(func(st *pipeline.Settings) { *st = cfg.Defaults })

	s.mu.Lock()
	s.ImagePath = path
	s.ImageFormat = src.Format
	s.DPI = src.DPI
	s.SessionPath = ""
	s.mu.Unlock()

	s.log.Info().
		Str("path", path).
		Str("format", src.Format).
		Int64("bytes", src.Size).
		Float64("dpi", src.DPI).
		Msg("image loaded")
	s.SetModified(false)
	s.Emit(EventImageLoaded, path)
	return nil
}

// Apply brings the pipeline to target and emits the outcome.
func (s *State) Apply(target pipeline.Stage) error {
	err := s.pipeline.ApplyThrough(target, func(st pipeline.Stage, pct int) {
		s.Emit(EventProgress, Progress{Stage: st, Percent: pct})
	})
	if errors.Is(err, pipeline.ErrStale) {
		s.log.Debug().Str("stage", target.String()).Msg("stale run dropped")
		return err
	}
	if err != nil {
		s.Emit(EventStageFailed, err)
		return err
	}
	s.Emit(EventStageApplied, target)
	return nil
}

// SchedulePreview re-applies target after the preview delay. Calls within
// the delay collapse into one run, so slider drags do not queue work.
func (s *State) SchedulePreview(target pipeline.Stage) {
	s.debouncer().Schedule(func() {
		if err := s.Apply(target); err != nil {
			s.log.Warn().Err(err).Str("stage", target.String()).Msg("preview failed")
		}
	})
}

// FlushPreview runs a pending preview now.
func (s *State) FlushPreview() {
	s.debouncer().Flush()
}

func (s *State) debouncer() *preview.Debouncer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.preview
}

// UpdateSettings changes settings and marks the session modified.
func (s *State) UpdateSettings(fn func(st *pipeline.Settings)) {
	s.pipeline.UpdateSettings(fn)
	s.SetModified(true)
	s.Emit(EventSettingsChanged, s.pipeline.Settings())
}

// HandleGridEvent forwards a pointer event to the grid editor. A release
// marks the session modified.
func (s *State) HandleGridEvent(ev grid.InputEvent) bool {
	changed := s.pipeline.Grid().HandleInputEvent(ev)
	if !changed {
		return false
	}
	if ev.Kind == grid.EventRelease {
		s.SetModified(true)
	}
	s.Emit(EventGridChanged, ev)
	return true
}

// OptimizeGrid smooths the control grid.
func (s *State) OptimizeGrid() error {
	return s.editGrid(s.pipeline.Grid().Optimize)
}

// ResetGrid returns the control grid to even spacing.
func (s *State) ResetGrid() error {
	return s.editGrid(s.pipeline.Grid().Reset)
}

func (s *State) editGrid(fn func() error) error {
	if err := fn(); err != nil {
		return err
	}
	s.SetModified(true)
	s.Emit(EventGridChanged, nil)
	return nil
}

// DetectLens suggests a lens correction intensity.
func (s *State) DetectLens() (int, pipeline.Detection) {
	intensity, det := s.pipeline.DetectLensIntensity()
	s.SetModified(true)
	s.Emit(EventSettingsChanged, s.pipeline.Settings())
	return intensity, det
}

// DetectCorners fits the grid to the detected painting outline.
func (s *State) DetectCorners() ([4]geometry.Point2D, pipeline.Detection) {
	corners, det := s.pipeline.DetectCorners()
	s.SetModified(true)
	s.Emit(EventGridChanged, nil)
	return corners, det
}

// Images renders the original and current bitmaps. Either may be nil when
// no image is loaded.
func (s *State) Images() (original, current image.Image, err error) {
	s.pipeline.View(func(o, c pipeline.Bitmap) {
		if o == nil {
			return
		}
		if original, err = s.backend.Render(o); err != nil {
			return
		}
		if c == o {
			current = original
			return
		}
		current, err = s.backend.Render(c)
	})
	return original, current, err
}

// Export encodes the current image and writes it to path. An empty format
// is taken from the path's extension, falling back to the settings.
func (s *State) Export(path string, format export.Format) error {
	if format == "" {
		format = export.FormatForPath(path, s.pipeline.Settings().OutputFormat)
	}
	data, err := s.pipeline.Export(format)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	s.log.Info().Str("path", path).Int("bytes", len(data)).Msg("export written")
	s.Emit(EventExported, path)
	return nil
}

// SaveSession writes the settings and grid to path. An empty path uses the
// previous session path or the default next to the image.
func (s *State) SaveSession(path string) error {
	s.mu.RLock()
	imagePath := s.ImagePath
	if path == "" {
		path = s.SessionPath
	}
	s.mu.RUnlock()
	if imagePath == "" {
		return pipeline.ErrNoImage
	}
	if path == "" {
		path = session.DefaultPath(imagePath)
	}

	f := session.New(0, 0)
	if existing, err := session.Load(path); err == nil {
		f = existing
	}
	if err := session.Capture(s.pipeline, f); err != nil {
		return err
	}
	f.SetImage(path, imagePath)
	if err := f.Save(path); err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	s.mu.Lock()
	s.SessionPath = path
	s.mu.Unlock()
	s.SetModified(false)
	s.Emit(EventSessionSaved, path)
	return nil
}

// LoadSession loads the session's image, then restores its settings and
// grid and replays the saved stage.
func (s *State) LoadSession(path string) error {
	f, err := session.Load(path)
	if err != nil {
		return err
	}
	imagePath := f.GetImagePath(path)
	if imagePath == "" {
		return fmt.Errorf("session %s names no image", path)
	}
	if err := s.LoadImage(imagePath); err != nil {
		return err
	}
	if err := session.Apply(s.pipeline, f); err != nil {
		return err
	}

	s.mu.Lock()
	s.SessionPath = path
	s.mu.Unlock()

	stage, err := pipeline.ParseStage(f.Stage)
	if err == nil && stage == pipeline.Downloaded {
		stage = pipeline.Upscaled
	}
	if err == nil && stage > pipeline.Uploaded {
		if err := s.Apply(stage); err != nil {
			s.log.Warn().Err(err).Msg("could not replay saved stage")
		}
	}
	s.SetModified(false)
	s.Emit(EventSessionLoaded, path)
	return nil
}

// Close cancels pending previews and frees the images.
func (s *State) Close() {
	s.debouncer().Cancel()
	s.pipeline.Close()
}
