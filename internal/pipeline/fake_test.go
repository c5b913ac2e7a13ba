package pipeline

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"painting-enhancer/internal/export"
	"painting-enhancer/internal/lens"
	"painting-enhancer/internal/remap"
	"painting-enhancer/pkg/geometry"
)

var errBoom = errors.New("boom")

type fakeBitmap struct {
	id       int
	w, h     int
	released int
}

func (b *fakeBitmap) Width() int  { return b.w }
func (b *fakeBitmap) Height() int { return b.h }
func (b *fakeBitmap) Release()    { b.released++ }

// fakeOps records every call and hands out tracked bitmaps.
type fakeOps struct {
	mu      sync.Mutex
	all     []*fakeBitmap
	calls   []string
	fail    map[string]bool
	nilOut  map[string]bool
	failAt  int // fail the n-th upscale pass when > 0
	passes  int
	tables  []*remap.Table
	params  []lens.Params
	lines   LineSet
	quad    [4]geometry.Point2D
	hasQuad bool
	quadSrc Bitmap

	// When gate is set every upscale pass waits for it to close. entered is
	// closed when the first pass starts waiting.
	gate      chan struct{}
	entered   chan struct{}
	enterOnce sync.Once
}

// holdUpscale makes upscale passes wait until the returned func is called.
func (f *fakeOps) holdUpscale() (entered <-chan struct{}, release func()) {
	f.gate = make(chan struct{})
	f.entered = make(chan struct{})
	return f.entered, func() { close(f.gate) }
}

func newFakeOps() *fakeOps {
	return &fakeOps{fail: map[string]bool{}, nilOut: map[string]bool{}}
}

func (f *fakeOps) bitmap(w, h int) *fakeBitmap {
	b := &fakeBitmap{id: len(f.all), w: w, h: h}
	f.all = append(f.all, b)
	return b
}

func (f *fakeOps) op(name string, w, h int) (Bitmap, error) {
	f.calls = append(f.calls, name)
	if f.fail[name] {
		return nil, errBoom
	}
	if f.nilOut[name] {
		return nil, nil
	}
	return f.bitmap(w, h), nil
}

func (f *fakeOps) Undistort(src Bitmap, params lens.Params) (Bitmap, error) {
	f.params = append(f.params, params)
	return f.op("undistort", src.Width(), src.Height())
}

func (f *fakeOps) Remap(src Bitmap, table *remap.Table) (Bitmap, error) {
	f.tables = append(f.tables, table)
	return f.op("remap", table.Width, table.Height)
}

func (f *fakeOps) AdjustTone(src Bitmap, strength, contrast, saturation float64) (Bitmap, error) {
	return f.op("tone", src.Width(), src.Height())
}

func (f *fakeOps) EqualizeLuminance(src Bitmap, intensity float64) (Bitmap, error) {
	return f.op("color", src.Width(), src.Height())
}

func (f *fakeOps) Upscale(src Bitmap, ratio float64) (Bitmap, error) {
	if f.gate != nil {
		f.enterOnce.Do(func() { close(f.entered) })
		<-f.gate
	}
	f.passes++
	if f.failAt > 0 && f.passes == f.failAt {
		f.calls = append(f.calls, "upscale")
		return nil, errBoom
	}
	w := int(math.Round(float64(src.Width()) * ratio))
	h := int(math.Round(float64(src.Height()) * ratio))
	return f.op("upscale", w, h)
}

func (f *fakeOps) Resize(src Bitmap, width, height int) (Bitmap, error) {
	return f.op("resize", width, height)
}

func (f *fakeOps) DetectLines(src Bitmap) (LineSet, error) {
	f.calls = append(f.calls, "lines")
	if f.fail["lines"] {
		return LineSet{}, errBoom
	}
	return f.lines, nil
}

func (f *fakeOps) DetectQuadrilateral(src Bitmap) ([4]geometry.Point2D, bool, error) {
	f.calls = append(f.calls, "quad")
	f.quadSrc = src
	if f.fail["quad"] {
		return [4]geometry.Point2D{}, false, errBoom
	}
	return f.quad, f.hasQuad, nil
}

func (f *fakeOps) Encode(src Bitmap, format export.Format) ([]byte, error) {
	f.calls = append(f.calls, "encode")
	if f.fail["encode"] {
		return nil, errBoom
	}
	return []byte(string(format)), nil
}

// assertOwnership checks that only the committed bitmaps are alive and every
// other bitmap was released exactly once.
func assertOwnership(t *testing.T, f *fakeOps, p *Pipeline) {
	t.Helper()
	p.View(func(original, current Bitmap) {
		for _, b := range f.all {
			if Bitmap(b) == original || Bitmap(b) == current {
				assert.Equal(t, 0, b.released, "live bitmap %d was released", b.id)
				continue
			}
			assert.Equal(t, 1, b.released, "bitmap %d (%dx%d) release count", b.id, b.w, b.h)
		}
	})
}
