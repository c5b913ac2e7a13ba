package app

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"painting-enhancer/internal/config"
	"painting-enhancer/internal/export"
	"painting-enhancer/internal/grid"
	"painting-enhancer/internal/lens"
	"painting-enhancer/internal/pipeline"
	"painting-enhancer/internal/remap"
	"painting-enhancer/pkg/geometry"
)

type bitmap struct {
	w, h     int
	released bool
}

func (b *bitmap) Width() int  { return b.w }
func (b *bitmap) Height() int { return b.h }
func (b *bitmap) Release()    { b.released = true }

// backend resizes on every sized operation and copies otherwise.
type backend struct {
	mu    sync.Mutex
	calls []string
}

func (f *backend) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
}

func (f *backend) copyOf(src pipeline.Bitmap, name string) (pipeline.Bitmap, error) {
	f.record(name)
	return &bitmap{w: src.Width(), h: src.Height()}, nil
}

func (f *backend) Undistort(src pipeline.Bitmap, _ lens.Params) (pipeline.Bitmap, error) {
	return f.copyOf(src, "undistort")
}

func (f *backend) Remap(src pipeline.Bitmap, t *remap.Table) (pipeline.Bitmap, error) {
	f.record("remap")
	return &bitmap{w: t.Width, h: t.Height}, nil
}

func (f *backend) AdjustTone(src pipeline.Bitmap, _, _, _ float64) (pipeline.Bitmap, error) {
	return f.copyOf(src, "tone")
}

func (f *backend) EqualizeLuminance(src pipeline.Bitmap, _ float64) (pipeline.Bitmap, error) {
	return f.copyOf(src, "color")
}

func (f *backend) Upscale(src pipeline.Bitmap, ratio float64) (pipeline.Bitmap, error) {
	f.record("upscale")
	return &bitmap{w: int(float64(src.Width()) * ratio), h: int(float64(src.Height()) * ratio)}, nil
}

func (f *backend) Resize(_ pipeline.Bitmap, w, h int) (pipeline.Bitmap, error) {
	f.record("resize")
	return &bitmap{w: w, h: h}, nil
}

func (f *backend) DetectLines(src pipeline.Bitmap) (pipeline.LineSet, error) {
	return pipeline.LineSet{Width: src.Width(), Height: src.Height()}, nil
}

func (f *backend) DetectQuadrilateral(pipeline.Bitmap) ([4]geometry.Point2D, bool, error) {
	return [4]geometry.Point2D{}, false, nil
}

func (f *backend) Encode(_ pipeline.Bitmap, format export.Format) ([]byte, error) {
	return []byte("encoded:" + string(format)), nil
}

func (f *backend) Import(img image.Image) (pipeline.Bitmap, error) {
	b := img.Bounds()
	return &bitmap{w: b.Dx(), h: b.Dy()}, nil
}

func (f *backend) Render(b pipeline.Bitmap) (image.Image, error) {
	return image.NewRGBA(image.Rect(0, 0, b.Width(), b.Height())), nil
}

func writePNG(t *testing.T, dir string, w, h int) string {
	t.Helper()
	path := filepath.Join(dir, "painting.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, image.NewRGBA(image.Rect(0, 0, w, h))))
	return path
}

func newState(t *testing.T) (*State, *backend) {
	t.Helper()
	cfg := config.Default()
	cfg.Preview.Debounce = 10 * time.Millisecond
	fb := &backend{}
	s := NewState(cfg, zerolog.Nop(), fb)
	t.Cleanup(s.Close)
	return s, fb
}

func TestLoadImageEmitsAndResetsSettings(t *testing.T) {
	s, _ := newState(t)
	path := writePNG(t, t.TempDir(), 64, 48)

	var loaded []interface{}
	s.On(EventImageLoaded, func(data interface{}) { loaded = append(loaded, data) })

	s.UpdateSettings(func(st *pipeline.Settings) { st.Contrast = 2 })
	assert.True(t, s.Modified)

	require.NoError(t, s.LoadImage(path))
	assert.Equal(t, []interface{}{path}, loaded)
	assert.Equal(t, "png", s.ImageFormat)
	assert.False(t, s.Modified)
	assert.Equal(t, 1.10, s.Pipeline().Settings().Contrast)

	original, current, err := s.Images()
	require.NoError(t, err)
	assert.Equal(t, 64, original.Bounds().Dx())
	assert.Same(t, original, current)
}

func TestLoadImageRejectsUnsupported(t *testing.T) {
	s, _ := newState(t)
	path := filepath.Join(t.TempDir(), "photo.heic")
	require.NoError(t, os.WriteFile(path, []byte("ftypheic"), 0644))
	assert.Error(t, s.LoadImage(path))
	assert.False(t, s.Pipeline().HasImage())
}

func TestApplyEmitsProgressAndResult(t *testing.T) {
	s, _ := newState(t)
	require.NoError(t, s.LoadImage(writePNG(t, t.TempDir(), 40, 30)))

	var progress []Progress
	var applied []interface{}
	s.On(EventProgress, func(d interface{}) { progress = append(progress, d.(Progress)) })
	s.On(EventStageApplied, func(d interface{}) { applied = append(applied, d) })

	require.NoError(t, s.Apply(pipeline.LightingCorrected))
	assert.Equal(t, []interface{}{pipeline.LightingCorrected}, applied)
	assert.Contains(t, progress, Progress{Stage: pipeline.LightingCorrected, Percent: 100})
	assert.Equal(t, pipeline.LightingCorrected, s.Pipeline().Stage())
}

func TestApplyWithoutImageFails(t *testing.T) {
	s, _ := newState(t)
	var failed int
	s.On(EventStageFailed, func(interface{}) { failed++ })
	assert.ErrorIs(t, s.Apply(pipeline.LensCorrected), pipeline.ErrNoImage)
	assert.Equal(t, 1, failed)
}

func TestSchedulePreviewCollapses(t *testing.T) {
	s, fb := newState(t)
	require.NoError(t, s.LoadImage(writePNG(t, t.TempDir(), 40, 30)))

	done := make(chan struct{}, 4)
	s.On(EventStageApplied, func(interface{}) { done <- struct{}{} })

	for i := 0; i < 5; i++ {
		s.SchedulePreview(pipeline.LightingCorrected)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("preview never ran")
	}
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, done, 0, "only one preview run")

	fb.mu.Lock()
	defer fb.mu.Unlock()
	assert.Equal(t, []string{"tone"}, fb.calls)
}

func TestGridEventsMarkModified(t *testing.T) {
	s, _ := newState(t)
	require.NoError(t, s.LoadImage(writePNG(t, t.TempDir(), 400, 400)))
	display := geometry.NewSize(400, 400)

	var changes int
	s.On(EventGridChanged, func(interface{}) { changes++ })

	assert.False(t, s.HandleGridEvent(grid.InputEvent{Kind: grid.EventPress, X: 50, Y: 50, Display: display}))
	assert.True(t, s.HandleGridEvent(grid.InputEvent{Kind: grid.EventPress, X: 100, Y: 100, Display: display}))
	assert.False(t, s.Modified)
	assert.ErrorIs(t, s.OptimizeGrid(), grid.ErrDragInProgress)
	assert.True(t, s.HandleGridEvent(grid.InputEvent{Kind: grid.EventRelease, X: 110, Y: 95, Display: display}))
	assert.True(t, s.Modified)
	assert.Equal(t, 2, changes)

	require.NoError(t, s.ResetGrid())
	assert.Equal(t, 3, changes)
}

func TestExportWritesFile(t *testing.T) {
	s, _ := newState(t)
	dir := t.TempDir()
	require.NoError(t, s.LoadImage(writePNG(t, dir, 40, 30)))

	out := filepath.Join(dir, "result.png")
	require.NoError(t, s.Export(out, ""))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "encoded:png", string(data))
}

func TestSessionRoundTrip(t *testing.T) {
	s, _ := newState(t)
	dir := t.TempDir()
	imagePath := writePNG(t, dir, 400, 300)
	require.NoError(t, s.LoadImage(imagePath))

	s.UpdateSettings(func(st *pipeline.Settings) { st.Saturation = 1.5 })
	require.NoError(t, s.Pipeline().Grid().FitQuadrilateral(geometry.BoundsOf(geometry.NewSize(400, 300)).Inset(0.1).Corners()))
	require.NoError(t, s.Apply(pipeline.LightingCorrected))
	require.NoError(t, s.SaveSession(""))
	assert.Equal(t, filepath.Join(dir, "painting.painting.json"), s.SessionPath)
	assert.False(t, s.Modified)

	r, fb := newState(t)
	require.NoError(t, r.LoadSession(s.SessionPath))
	assert.Equal(t, 1.5, r.Pipeline().Settings().Saturation)
	assert.Equal(t, pipeline.LightingCorrected, r.Pipeline().Stage())
	assert.Equal(t, imagePath, r.ImagePath)
	assert.Contains(t, fb.calls, "remap")

	g, err := r.Pipeline().Grid().Snapshot()
	require.NoError(t, err)
	assert.InDelta(t, 40, g.At(0, 0).X, 1e-9)
}

func TestSaveSessionWithoutImage(t *testing.T) {
	s, _ := newState(t)
	assert.ErrorIs(t, s.SaveSession(""), pipeline.ErrNoImage)
}

func TestApplyConfig(t *testing.T) {
	s, _ := newState(t)
	var got []interface{}
	s.On(EventConfigReloaded, func(d interface{}) { got = append(got, d) })

	cfg := config.Default()
	cfg.Defaults.Contrast = 2
	s.ApplyConfig(cfg)
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.TraceLevel) })

	require.Len(t, got, 1)
	assert.Equal(t, 2.0, s.Config().Defaults.Contrast)
}

func TestConfigWatcherReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "enhance.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: info\n"), 0644))

	w := NewConfigWatcher(path, time.Hour)
	require.NotNil(t, w)
	var reloaded []config.Config
	var failures []error
	w.OnChange(func(c config.Config) { reloaded = append(reloaded, c) })
	w.OnError(func(err error) { failures = append(failures, err) })

	w.check()
	assert.Empty(t, reloaded, "unchanged file")

	later := time.Now().Add(time.Minute)
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: debug\n"), 0644))
	require.NoError(t, os.Chtimes(path, later, later))
	w.check()
	require.Len(t, reloaded, 1)
	assert.Equal(t, "debug", reloaded[0].Log.Level)

	later = later.Add(time.Minute)
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: loud\n"), 0644))
	require.NoError(t, os.Chtimes(path, later, later))
	w.check()
	assert.Len(t, reloaded, 1)
	assert.Len(t, failures, 1)

	assert.Nil(t, NewConfigWatcher("", time.Second))
}

func TestApplyConfigKeepsPendingPreview(t *testing.T) {
	s, fb := newState(t)
	require.NoError(t, s.LoadImage(writePNG(t, t.TempDir(), 40, 30)))

	slow := config.Default()
	slow.Preview.Debounce = time.Hour
	s.ApplyConfig(slow)
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.TraceLevel) })

	done := make(chan struct{}, 1)
	s.On(EventStageApplied, func(interface{}) { done <- struct{}{} })
	s.SchedulePreview(pipeline.LightingCorrected)

	fast := config.Default()
	fast.Preview.Debounce = 10 * time.Millisecond
	s.ApplyConfig(fast)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("preview pending at reload never ran")
	}
	fb.mu.Lock()
	defer fb.mu.Unlock()
	assert.Equal(t, []string{"tone"}, fb.calls)
}
