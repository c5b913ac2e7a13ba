// Package pipeline runs the correction stages over an uploaded painting:
// lens correction, grid remap, lighting, color and print upscaling.
//
// The pipeline owns every bitmap it holds. Image operations receive a bitmap
// and return a new one; the pipeline releases each intermediate as soon as
// its successor is accepted and never releases the original until a new
// image is loaded or the pipeline is closed.
//
// Stage runs, export and detection work on a snapshot taken under the state
// lock and run without it, so the accessors stay responsive during a long
// upscale. Bitmaps replaced while such work is running are released when it
// finishes.
package pipeline

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"painting-enhancer/internal/export"
	"painting-enhancer/internal/grid"
	"painting-enhancer/internal/lens"
	"painting-enhancer/internal/remap"
	"painting-enhancer/internal/upscale"
	"painting-enhancer/pkg/geometry"
)

// Bitmap is an image buffer owned by whoever holds it. Release frees any
// native memory behind it and must be safe to call more than once.
type Bitmap interface {
	Width() int
	Height() int
	Release()
}

// LineSet is the result of line detection. Width and Height are the size of
// the image the lines were found in, which may be a reduced copy.
type LineSet struct {
	Lines  []lens.Line
	Width  int
	Height int
}

// Ops are the image operations the stages are built from. Each call returns
// a new bitmap and leaves its input untouched.
type Ops interface {
	Undistort(src Bitmap, params lens.Params) (Bitmap, error)
	Remap(src Bitmap, table *remap.Table) (Bitmap, error)
	AdjustTone(src Bitmap, strength, contrast, saturation float64) (Bitmap, error)
	EqualizeLuminance(src Bitmap, intensity float64) (Bitmap, error)
	Upscale(src Bitmap, ratio float64) (Bitmap, error)
	Resize(src Bitmap, width, height int) (Bitmap, error)
	DetectLines(src Bitmap) (LineSet, error)
	DetectQuadrilateral(src Bitmap) ([4]geometry.Point2D, bool, error)
	Encode(src Bitmap, format export.Format) ([]byte, error)
}

// ProgressFunc receives stage progress from 0 to 100.
type ProgressFunc func(stage Stage, percent int)

// Options configure a Pipeline.
type Options struct {
	// Scales is the catalog of fixed upscale ratios.
	Scales []float64
	// MaxPasses bounds the number of upscale passes.
	MaxPasses int
	// HitRadius is the grab distance for grid points, in display pixels.
	HitRadius float64
}

// Pipeline holds the uploaded image, the current result and the settings.
type Pipeline struct {
	// runMu serializes the work that reads bitmaps outside mu.
	runMu sync.Mutex

	mu       sync.Mutex
	ops      Ops
	log      zerolog.Logger
	opts     Options
	editor   *grid.Editor
	original Bitmap
	current  Bitmap
	stage    Stage
	settings Settings

	// gen changes whenever the committed bitmaps do.
	gen     uint64
	busy    bool
	retired []Bitmap
}

// job is the committed state as it was when a run began.
type job struct {
	gen      uint64
	original Bitmap
	current  Bitmap
	stage    Stage
	settings Settings
}

// pins reports whether b belongs to the snapshot and so must not be
// released by the run.
func (j job) pins(b Bitmap) bool {
	return b == j.original || b == j.current
}

// New creates an empty pipeline.
func New(ops Ops, log zerolog.Logger, opts Options) *Pipeline {
	if len(opts.Scales) == 0 {
		opts.Scales = upscale.DefaultScales
	}
	if opts.MaxPasses <= 0 {
		opts.MaxPasses = upscale.DefaultMaxPasses
	}
	return &Pipeline{
		ops:      ops,
		log:      log.With().Str("component", "pipeline").Logger(),
		opts:     opts,
		editor:   grid.NewEditor(nil, opts.HitRadius),
		settings: DefaultSettings(),
	}
}

// Load takes ownership of img as the new original, releasing everything
// held for the previous image, and lays out a fresh control grid.
func (p *Pipeline) Load(img Bitmap) error {
	if img == nil || img.Width() <= 0 || img.Height() <= 0 {
		return ErrNoImage
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.releaseAll()
	p.original = img
	p.current = img
	p.stage = Uploaded
	p.gen++
	p.editor.Replace(grid.New(img.Width(), img.Height()))

	p.log.Info().Int("width", img.Width()).Int("height", img.Height()).Msg("image loaded")
	return nil
}

// Close releases all bitmaps.
func (p *Pipeline) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.releaseAll()
	p.editor.Replace(nil)
}

func (p *Pipeline) releaseAll() {
	if p.current != p.original {
		p.retire(p.current)
	}
	p.retire(p.original)
	p.current, p.original = nil, nil
	p.stage = Uploaded
	p.gen++
}

// retire releases b, or defers that until the running job finishes. The
// caller holds p.mu.
func (p *Pipeline) retire(b Bitmap) {
	if b == nil {
		return
	}
	if p.busy {
		p.retired = append(p.retired, b)
		return
	}
	b.Release()
}

// begin snapshots the committed state for work done without p.mu. The
// caller holds p.runMu and must call finish under p.mu afterwards.
func (p *Pipeline) begin() (job, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.original == nil {
		return job{}, ErrNoImage
	}
	p.busy = true
	return job{
		gen:      p.gen,
		original: p.original,
		current:  p.current,
		stage:    p.stage,
		settings: p.settings,
	}, nil
}

// finish releases what was retired while the job ran. The caller holds p.mu.
func (p *Pipeline) finish() {
	p.busy = false
	for _, b := range p.retired {
		b.Release()
	}
	p.retired = nil
}

// Grid returns the editor for the current image's control grid.
func (p *Pipeline) Grid() *grid.Editor {
	return p.editor
}

// Settings returns a copy of the current settings.
func (p *Pipeline) Settings() Settings {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.settings
}

// UpdateSettings changes settings in place. It does not re-run any stage.
func (p *Pipeline) UpdateSettings(fn func(s *Settings)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(&p.settings)
}

// Stage returns the last stage applied.
func (p *Pipeline) Stage() Stage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stage
}

// HasImage reports whether an image is loaded.
func (p *Pipeline) HasImage() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.original != nil
}

// View calls fn with the original and current bitmaps under the pipeline
// lock. fn must not retain or release them.
func (p *Pipeline) View(fn func(original, current Bitmap)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(p.original, p.current)
}

// ApplyThrough brings the current image to target. A target at or before the
// current stage replays from the original; a later target runs the stages in
// between. On failure the current image and stage are left as they were.
func (p *Pipeline) ApplyThrough(target Stage, progress ProgressFunc) error {
	if target <= Uploaded || target >= Downloaded {
		return fmt.Errorf("%w: %s", ErrInvalidStage, target)
	}

	p.runMu.Lock()
	defer p.runMu.Unlock()

	j, err := p.begin()
	if err != nil {
		return err
	}

	from, start := j.current, j.stage+1
	if target <= j.stage {
		from, start = j.original, LensCorrected
	}
	result, err := p.run(j, from, start, target, progress)

	p.mu.Lock()
	defer p.mu.Unlock()
	defer p.finish()

	if err != nil {
		return err
	}
	if p.gen != j.gen {
		if !j.pins(result) {
			result.Release()
		}
		p.log.Warn().Str("stage", target.String()).Msg("image changed during run, result discarded")
		return ErrStale
	}
	p.commit(result, target)
	return nil
}

// Reset discards all corrections and returns to the original image.
func (p *Pipeline) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.original == nil {
		return
	}
	p.commit(p.original, Uploaded)
}

func (p *Pipeline) commit(result Bitmap, stage Stage) {
	if p.current != result && p.current != p.original {
		p.retire(p.current)
	}
	p.current = result
	p.stage = stage
	p.gen++
}

// run applies stages first..last to from and returns the result. Each
// intermediate is released once its successor exists; on failure the
// partial result is released and nothing is committed.
func (p *Pipeline) run(j job, from Bitmap, first, last Stage, progress ProgressFunc) (Bitmap, error) {
	cur := from
	for st := first; st <= last; st++ {
		next, err := p.runStage(st, cur, j.settings, progress)
		if err == nil && next == nil {
			err = ErrNilResult
		}
		if err != nil {
			if !j.pins(cur) {
				cur.Release()
			}
			p.log.Error().Err(err).Str("stage", st.String()).Msg("stage failed")
			return nil, &StageError{Stage: st, Err: err}
		}
		if next != cur && !j.pins(cur) {
			cur.Release()
		}
		cur = next
		if progress != nil {
			progress(st, 100)
		}
		runtime.Gosched()
	}
	return cur, nil
}

func (p *Pipeline) runStage(st Stage, src Bitmap, s Settings, progress ProgressFunc) (Bitmap, error) {
	log := p.log.With().Str("stage", st.String()).Logger()
	log.Debug().Int("width", src.Width()).Int("height", src.Height()).Msg("stage start")
	start := time.Now()

	if progress != nil {
		progress(st, 0)
	}

	var (
		out     Bitmap
		skipped bool
		err     error
	)
	switch st {
	case LensCorrected:
		out, skipped, err = p.lensStage(src, s)
	case GridCorrected:
		out, skipped, err = p.gridStage(src)
	case LightingCorrected:
		if s.ToneNeutral() {
			out, skipped = src, true
		} else {
			out, err = p.ops.AdjustTone(src, s.LightingStrength, s.Contrast, s.Saturation)
		}
	case ColorCorrected:
		if s.ColorNeutral() {
			out, skipped = src, true
		} else {
			out, err = p.ops.EqualizeLuminance(src, s.ColorIntensity/100)
		}
	case Upscaled:
		out, skipped, err = p.upscaleStage(src, s, st, progress)
	default:
		err = fmt.Errorf("%w: %s", ErrInvalidStage, st)
	}

	if err != nil {
		return nil, err
	}
	if skipped {
		log.Debug().Msg("stage skipped, settings are neutral")
		return src, nil
	}
	if out != nil {
		log.Info().
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Int("width", out.Width()).
			Int("height", out.Height()).
			Msg("stage applied")
	}
	return out, nil
}

func (p *Pipeline) lensStage(src Bitmap, s Settings) (Bitmap, bool, error) {
	if s.LensIntensity == 0 {
		return src, true, nil
	}
	profile, _ := lens.Lookup(s.CameraProfile)
	params := lens.ParamsFor(profile, src.Width(), src.Height(), s.LensIntensity)
	if params.IsIdentity() {
		return src, true, nil
	}
	out, err := p.ops.Undistort(src, params)
	return out, false, err
}

func (p *Pipeline) gridStage(src Bitmap) (Bitmap, bool, error) {
	g, err := p.editor.Snapshot()
	if err != nil {
		return nil, false, err
	}
	if g == nil || !g.IsEdited() {
		return src, true, nil
	}
	table, err := remap.Build(g, int(g.Width()), int(g.Height()))
	if err != nil {
		return nil, false, err
	}
	out, err := p.ops.Remap(src, table)
	return out, false, err
}

// upscaleStage runs the planned passes and then resizes to the exact print
// dimensions if the passes overshot.
func (p *Pipeline) upscaleStage(src Bitmap, s Settings, st Stage, progress ProgressFunc) (Bitmap, bool, error) {
	dims := upscale.OptimalDimensions(src.Width(), src.Height(), s.TargetSize)
	plan, err := upscale.PlanPasses(src.Width(), src.Height(), dims.Width, dims.Height, p.opts.Scales, p.opts.MaxPasses)
	if err != nil {
		return nil, false, err
	}
	if plan.Empty() && dims.Width == src.Width() && dims.Height == src.Height() {
		return src, true, nil
	}

	p.log.Info().
		Floats64("passes", plan.Passes).
		Float64("total_scale", plan.TotalScale).
		Int("target_width", dims.Width).
		Int("target_height", dims.Height).
		Str("estimated_size", upscale.EstimateFileSize(dims.Width, dims.Height, string(s.OutputFormat)).Formatted).
		Msg("upscale planned")

	steps := len(plan.Passes) + 1
	cur := src
	release := func(b Bitmap) {
		if b != src && b != nil {
			b.Release()
		}
	}

	for i, ratio := range plan.Passes {
		next, err := p.ops.Upscale(cur, ratio)
		if err == nil && next == nil {
			err = ErrNilResult
		}
		if err != nil {
			release(cur)
			return nil, false, fmt.Errorf("pass %d (%gx): %w", i+1, ratio, err)
		}
		release(cur)
		cur = next
		if progress != nil {
			progress(st, (i+1)*100/steps)
		}
		runtime.Gosched()
	}

	if cur.Width() != dims.Width || cur.Height() != dims.Height {
		next, err := p.ops.Resize(cur, dims.Width, dims.Height)
		if err == nil && next == nil {
			err = ErrNilResult
		}
		if err != nil {
			release(cur)
			return nil, false, fmt.Errorf("final resize: %w", err)
		}
		release(cur)
		cur = next
	}
	return cur, false, nil
}

// Export encodes the current image. After an upscaled image is exported the
// stage advances to Downloaded.
func (p *Pipeline) Export(format export.Format) ([]byte, error) {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	j, err := p.begin()
	if err != nil {
		return nil, err
	}
	if format == "" {
		format = j.settings.OutputFormat
	}
	data, err := p.ops.Encode(j.current, format)

	p.mu.Lock()
	defer p.mu.Unlock()
	defer p.finish()

	if err != nil {
		p.log.Error().Err(err).Str("format", string(format)).Msg("export failed")
		return nil, &StageError{Stage: Downloaded, Err: err}
	}
	if p.gen == j.gen && p.stage == Upscaled {
		p.stage = Downloaded
	}
	p.log.Info().Str("format", string(format)).Int("bytes", len(data)).Msg("image exported")
	return data, nil
}
