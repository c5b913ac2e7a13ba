// Package remap turns a control grid into a dense per-pixel source
// coordinate table by bilinear interpolation over the grid cells.
package remap

import (
	"errors"
	"fmt"
	"runtime"

	"painting-enhancer/internal/grid"
)

// ErrInvalidSize is returned for a non-positive output size or a missing grid.
var ErrInvalidSize = errors.New("invalid remap size")

// yieldEvery is how many rows are built between scheduler yields.
const yieldEvery = 256

// Table holds one source coordinate per output pixel, row-major.
// MapX and MapY are float32 because the remap primitive consumes CV_32FC1 maps.
type Table struct {
	Width  int
	Height int
	MapX   []float32
	MapY   []float32
}

// At returns the source coordinate stored for output pixel (x, y).
func (t *Table) At(x, y int) (float32, float32) {
	i := y*t.Width + x
	return t.MapX[i], t.MapY[i]
}

// axis holds, for each output column (or row), the lower grid index, the
// upper grid index clamped to the last cell, and the fractional weight.
type axis struct {
	lo, hi []int
	frac   []float64
}

func newAxis(n, cells int) axis {
	a := axis{lo: make([]int, n), hi: make([]int, n), frac: make([]float64, n)}
	for i := 0; i < n; i++ {
		var g float64
		if n > 1 {
			g = float64(i) / float64(n-1) * float64(cells)
		}
		lo := int(g)
		hi := lo + 1
		if hi > cells {
			hi = cells
		}
		if lo > cells {
			lo = cells
		}
		a.lo[i] = lo
		a.hi[i] = hi
		a.frac[i] = g - float64(lo)
	}
	return a
}

// Build computes the remap table for an outputWidth x outputHeight result.
//
// Grid points are positions on the continuous image extent [0,W] x [0,H].
// They are converted to pixel index space [0,W-1] x [0,H-1] so an unedited
// grid yields the identity mapping.
func Build(g *grid.Grid, outputWidth, outputHeight int) (*Table, error) {
	if g == nil || outputWidth <= 0 || outputHeight <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, outputWidth, outputHeight)
	}

	var px, py [grid.Count]float64
	sx := pixelScale(g.Width())
	sy := pixelScale(g.Height())
	for i := 0; i < grid.Count; i++ {
		p := g.Point(i)
		px[i] = p.X * sx
		py[i] = p.Y * sy
	}

	cols := newAxis(outputWidth, grid.Cols-1)
	rows := newAxis(outputHeight, grid.Rows-1)

	t := &Table{
		Width:  outputWidth,
		Height: outputHeight,
		MapX:   make([]float32, outputWidth*outputHeight),
		MapY:   make([]float32, outputWidth*outputHeight),
	}

	for y := 0; y < outputHeight; y++ {
		fy := rows.frac[y]
		top := rows.lo[y] * grid.Cols
		bottom := rows.hi[y] * grid.Cols
		out := y * outputWidth
		for x := 0; x < outputWidth; x++ {
			fx := cols.frac[x]
			tl, tr := top+cols.lo[x], top+cols.hi[x]
			bl, br := bottom+cols.lo[x], bottom+cols.hi[x]

			w00 := (1 - fx) * (1 - fy)
			w10 := fx * (1 - fy)
			w01 := (1 - fx) * fy
			w11 := fx * fy

			t.MapX[out+x] = float32(px[tl]*w00 + px[tr]*w10 + px[bl]*w01 + px[br]*w11)
			t.MapY[out+x] = float32(py[tl]*w00 + py[tr]*w10 + py[bl]*w01 + py[br]*w11)
		}
		if y%yieldEvery == yieldEvery-1 {
			runtime.Gosched()
		}
	}
	return t, nil
}

func pixelScale(extent float64) float64 {
	if extent <= 1 {
		return 0
	}
	return (extent - 1) / extent
}
