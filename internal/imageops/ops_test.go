package imageops

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"painting-enhancer/internal/export"
	"painting-enhancer/internal/grid"
	"painting-enhancer/internal/lens"
	"painting-enhancer/internal/remap"
)

// canvas draws a light rectangle on a dark background.
func canvas(w, h int, inner image.Rectangle) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.RGBA{30, 30, 30, 255}
			if image.Pt(x, y).In(inner) {
				c = color.RGBA{220, 180, 140, 255}
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func newOps(t *testing.T) *Ops {
	t.Helper()
	return New(zerolog.Nop(), 0)
}

func load(t *testing.T, o *Ops, img image.Image) *Image {
	t.Helper()
	m, err := o.FromImage(img)
	require.NoError(t, err)
	t.Cleanup(m.Release)
	return m
}

func TestTrackerCountsReleases(t *testing.T) {
	o := newOps(t)
	m, err := o.FromImage(canvas(20, 10, image.Rect(0, 0, 0, 0)))
	require.NoError(t, err)
	assert.Equal(t, int64(1), o.Tracker().Active())
	assert.Equal(t, int64(20*10*3), o.Tracker().Bytes())

	m.Release()
	m.Release()
	assert.Equal(t, int64(0), o.Tracker().Active())
	assert.Equal(t, int64(0), o.Tracker().Bytes())
	assert.Equal(t, 20, m.Width(), "size survives release")
}

func TestResizeAndUpscale(t *testing.T) {
	o := newOps(t)
	src := load(t, o, canvas(40, 30, image.Rect(10, 10, 30, 20)))

	up, err := o.Upscale(src, 2)
	require.NoError(t, err)
	defer up.Release()
	assert.Equal(t, 80, up.Width())
	assert.Equal(t, 60, up.Height())

	down, err := o.Resize(up, 50, 37)
	require.NoError(t, err)
	defer down.Release()
	assert.Equal(t, 50, down.Width())
	assert.Equal(t, 37, down.Height())

	_, err = o.Resize(src, 0, 10)
	assert.Error(t, err)
	_, err = o.Upscale(src, 0)
	assert.Error(t, err)
}

func TestIdentityRemapKeepsPixels(t *testing.T) {
	o := newOps(t)
	img := canvas(40, 32, image.Rect(8, 8, 32, 24))
	src := load(t, o, img)

	table, err := remap.Build(grid.New(40, 32), 40, 32)
	require.NoError(t, err)

	out, err := o.Remap(src, table)
	require.NoError(t, err)
	defer out.Release()

	got, err := out.(*Image).ToImage()
	require.NoError(t, err)
	for _, p := range []image.Point{{0, 0}, {20, 16}, {39, 31}, {8, 8}} {
		r1, g1, b1, _ := img.At(p.X, p.Y).RGBA()
		r2, g2, b2, _ := got.At(p.X, p.Y).RGBA()
		assert.InDelta(t, r1>>8, r2>>8, 2, "red at %v", p)
		assert.InDelta(t, g1>>8, g2>>8, 2, "green at %v", p)
		assert.InDelta(t, b1>>8, b2>>8, 2, "blue at %v", p)
	}
}

func TestUndistortKeepsSize(t *testing.T) {
	o := New(zerolog.Nop(), 32)
	src := load(t, o, canvas(64, 48, image.Rect(10, 10, 54, 38)))

	profile, _ := lens.Lookup(lens.GenericProfile)
	out, err := o.Undistort(src, lens.ParamsFor(profile, 64, 48, 50))
	require.NoError(t, err)
	defer out.Release()
	assert.Equal(t, 64, out.Width())
	assert.Equal(t, 48, out.Height())
}

func TestToneAndColorKeepSize(t *testing.T) {
	o := newOps(t)
	src := load(t, o, canvas(30, 20, image.Rect(5, 5, 25, 15)))

	toned, err := o.AdjustTone(src, 50, 1.1, 1.24)
	require.NoError(t, err)
	defer toned.Release()
	assert.Equal(t, 30, toned.Width())

	eq, err := o.EqualizeLuminance(toned, 0.75)
	require.NoError(t, err)
	defer eq.Release()
	assert.Equal(t, 20, eq.Height())
}

func TestDetectQuadrilateral(t *testing.T) {
	o := newOps(t)
	src := load(t, o, canvas(200, 160, image.Rect(40, 30, 160, 130)))

	quad, ok, err := o.DetectQuadrilateral(src)
	require.NoError(t, err)
	require.True(t, ok)

	ordered := lens.OrderCorners(quad)
	assert.InDelta(t, 40, ordered[0].X, 3)
	assert.InDelta(t, 30, ordered[0].Y, 3)
	assert.InDelta(t, 160, ordered[2].X, 3)
	assert.InDelta(t, 130, ordered[2].Y, 3)
}

func TestDetectQuadrilateralOnBlankImage(t *testing.T) {
	o := newOps(t)
	src := load(t, o, canvas(100, 80, image.Rectangle{}))

	_, ok, err := o.DetectQuadrilateral(src)
	require.NoError(t, err)
	assert.False(t, ok)

	lines, err := o.DetectLines(src)
	require.NoError(t, err)
	assert.Empty(t, lines.Lines)
	assert.Equal(t, 100, lines.Width)
}

func TestEncode(t *testing.T) {
	o := newOps(t)
	src := load(t, o, canvas(16, 12, image.Rect(4, 4, 12, 8)))

	data, err := o.Encode(src, export.JPEG95)
	require.NoError(t, err)
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.Width)

	data, err = o.Encode(src, export.PNG)
	require.NoError(t, err)
	cfg, err = png.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.Height)

	_, err = o.Encode(src, export.Format("gif"))
	assert.ErrorIs(t, err, export.ErrUnknownFormat)
}

type otherBitmap struct{}

func (otherBitmap) Width() int  { return 1 }
func (otherBitmap) Height() int { return 1 }
func (otherBitmap) Release()    {}

func TestRejectsForeignBitmap(t *testing.T) {
	o := newOps(t)
	_, err := o.Upscale(otherBitmap{}, 2)
	assert.ErrorIs(t, err, ErrForeignBitmap)
}
