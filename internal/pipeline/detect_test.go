package pipeline

import (
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"painting-enhancer/internal/grid"
	"painting-enhancer/internal/lens"
	"painting-enhancer/pkg/geometry"
)

func TestDetectLensIntensity(t *testing.T) {
	p, ops, _ := newTestPipeline(t, 1000, 1000)
	ops.lines = LineSet{Lines: []lens.Line{{Rho: 0, Theta: math.Pi / 4}}, Width: 1000, Height: 1000}

	intensity, det := p.DetectLensIntensity()
	assert.Equal(t, 100, intensity)
	assert.False(t, det.FellBack)
	assert.Equal(t, 100.0, p.Settings().LensIntensity)
}

func TestDetectLensIntensityFallsBack(t *testing.T) {
	p, ops, _ := newTestPipeline(t, 1000, 1000)
	p.UpdateSettings(func(s *Settings) { s.LensIntensity = 35 })

	intensity, det := p.DetectLensIntensity()
	assert.Equal(t, 0, intensity)
	assert.True(t, det.FellBack)
	assert.NotEmpty(t, det.Message)
	assert.Equal(t, 0.0, p.Settings().LensIntensity)

	ops.fail["lines"] = true
	_, det = p.DetectLensIntensity()
	assert.True(t, det.FellBack)

	empty := New(newFakeOps(), zerolog.Nop(), Options{})
	_, det = empty.DetectLensIntensity()
	assert.True(t, det.FellBack)
}

func TestDetectCornersFitsGrid(t *testing.T) {
	p, ops, _ := newTestPipeline(t, 100, 80)
	ops.hasQuad = true
	// Unordered detection output.
	ops.quad = [4]geometry.Point2D{{X: 90, Y: 72}, {X: 10, Y: 8}, {X: 10, Y: 72}, {X: 90, Y: 8}}

	corners, det := p.DetectCorners()
	assert.False(t, det.FellBack)
	assert.Equal(t, geometry.Point2D{X: 10, Y: 8}, corners[0])

	snap, err := p.Grid().Snapshot()
	require.NoError(t, err)
	assert.InDelta(t, 10.0, snap.At(0, 0).X, 1e-9)
	assert.InDelta(t, 72.0, snap.At(4, 4).Y, 1e-9)
	assert.InDelta(t, 50.0, snap.At(2, 2).X, 1e-9)
}

func TestDetectCornersFallsBackToDefault(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *fakeOps)
	}{
		{name: "nothing found", setup: func(f *fakeOps) {}},
		{name: "detector error", setup: func(f *fakeOps) { f.fail["quad"] = true }},
		{name: "degenerate outline", setup: func(f *fakeOps) {
			f.hasQuad = true
			f.quad = [4]geometry.Point2D{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 20, Y: 0}, {X: 30, Y: 0}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, ops, _ := newTestPipeline(t, 1000, 500)
			tt.setup(ops)

			corners, det := p.DetectCorners()
			assert.True(t, det.FellBack)
			assert.NotEmpty(t, det.Message)
			assert.Equal(t, lens.DefaultQuad(1000, 500), corners)

			snap, err := p.Grid().Snapshot()
			require.NoError(t, err)
			assert.InDelta(t, 100.0, snap.At(0, 0).X, 1e-9)
			assert.InDelta(t, 50.0, snap.At(0, 0).Y, 1e-9)
			assert.InDelta(t, 900.0, snap.At(grid.Rows-1, grid.Cols-1).X, 1e-9)
		})
	}
}

func TestDetectCornersUsesOriginalAfterUpscale(t *testing.T) {
	p, ops, img := newTestPipeline(t, 1800, 2250)
	require.NoError(t, p.ApplyThrough(Upscaled, nil))

	_, det := p.DetectCorners()
	assert.True(t, det.FellBack)
	assert.Equal(t, lens.DefaultQuad(img.Width(), img.Height()), func() [4]geometry.Point2D {
		c, _ := p.DetectCorners()
		return c
	}())
	assertOwnership(t, ops, p)
}

func TestDetectCornersNoImage(t *testing.T) {
	p := New(newFakeOps(), zerolog.Nop(), Options{})
	_, det := p.DetectCorners()
	assert.True(t, det.FellBack)
}

func TestDetectCornersUsesLensOutput(t *testing.T) {
	tests := []struct {
		name     string
		lens     float64
		through  Stage
		wantCall []string
		source   func(p *Pipeline, img Bitmap) Bitmap
	}{
		{
			name: "lens applied then lighting", lens: 40, through: LightingCorrected,
			wantCall: []string{"undistort", "tone", "undistort", "quad"},
		},
		{
			name: "neutral lens after lighting", lens: 0, through: LightingCorrected,
			wantCall: []string{"tone", "quad"},
			source:   func(_ *Pipeline, img Bitmap) Bitmap { return img },
		},
		{
			name: "at the lens stage", lens: 40, through: LensCorrected,
			wantCall: []string{"undistort", "quad"},
			source:   func(p *Pipeline, _ Bitmap) Bitmap { return current(p) },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, ops, img := newTestPipeline(t, 100, 80)
			p.UpdateSettings(func(s *Settings) { s.LensIntensity = tt.lens })
			require.NoError(t, p.ApplyThrough(tt.through, nil))
			warped := current(p)

			p.DetectCorners()
			assert.Equal(t, tt.wantCall, ops.calls)
			require.NotNil(t, ops.quadSrc)
			assert.Equal(t, img.Width(), ops.quadSrc.Width())
			assert.Equal(t, img.Height(), ops.quadSrc.Height())
			if tt.through > LensCorrected {
				assert.NotSame(t, warped, ops.quadSrc)
			}
			if tt.source != nil {
				assert.Same(t, tt.source(p, img), ops.quadSrc)
			}
			// A lens image built for detection is released afterwards.
			assertOwnership(t, ops, p)
		})
	}
}
