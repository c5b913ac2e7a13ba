// Package overlay draws the control grid and before/after comparisons on
// preview images.
package overlay

import (
	"fmt"
	"image"
	"image/color"

	"github.com/gogpu/gg"

	"painting-enhancer/internal/grid"
	"painting-enhancer/pkg/geometry"
)

// Style controls how the grid is drawn.
type Style struct {
	Line        color.RGBA
	Point       color.RGBA
	Corner      color.RGBA
	Active      color.RGBA
	LineWidth   float64
	PointRadius float64
}

// DefaultStyle draws cyan lines, white points, orange corners and a yellow
// active point.
func DefaultStyle() Style {
	return Style{
		Line:        color.RGBA{0, 200, 255, 200},
		Point:       color.RGBA{255, 255, 255, 255},
		Corner:      color.RGBA{255, 140, 0, 255},
		Active:      color.RGBA{255, 230, 0, 255},
		LineWidth:   2,
		PointRadius: 6,
	}
}

// DrawGrid draws g over base, which is the image as shown on screen. Grid
// points are mapped from g's image space to base's size. active is the index
// of the dragged point or -1.
func DrawGrid(base image.Image, g *grid.Grid, active int, style Style) (image.Image, error) {
	if base == nil || g == nil {
		return base, nil
	}
	b := base.Bounds()
	display := geometry.SizeOf(b.Dx(), b.Dy())
	if display.Empty() {
		return base, nil
	}

	dc := gg.NewContextForImage(base)
	defer dc.Close()

	pts := make([]geometry.Point2D, grid.Count)
	for i, p := range g.Points() {
		pts[i] = geometry.PointToDisplay(p.Pos(), g.Size(), display)
	}

	dc.SetColor(style.Line)
	dc.SetLineWidth(style.LineWidth)
	for row := 0; row < grid.Rows; row++ {
		polyline(dc, pts, func(i int) int { return grid.Index(row, i) }, grid.Cols)
	}
	for col := 0; col < grid.Cols; col++ {
		polyline(dc, pts, func(i int) int { return grid.Index(i, col) }, grid.Rows)
	}
	if err := dc.Stroke(); err != nil {
		return nil, fmt.Errorf("stroke grid lines: %w", err)
	}

	for i, p := range g.Points() {
		c, r := style.Point, style.PointRadius
		switch {
		case i == active:
			c, r = style.Active, style.PointRadius*1.5
		case p.IsCorner():
			c = style.Corner
		}
		dc.SetColor(c)
		dc.DrawCircle(pts[i].X, pts[i].Y, r)
		if err := dc.Fill(); err != nil {
			return nil, fmt.Errorf("fill point %d: %w", i, err)
		}
	}

	return dc.Image(), nil
}

func polyline(dc *gg.Context, pts []geometry.Point2D, index func(int) int, n int) {
	first := pts[index(0)]
	dc.MoveTo(first.X, first.Y)
	for i := 1; i < n; i++ {
		p := pts[index(i)]
		dc.LineTo(p.X, p.Y)
	}
}

// DrawQuad outlines a detected painting boundary, given in image space.
func DrawQuad(base image.Image, corners [4]geometry.Point2D, source geometry.Size, col color.RGBA, width float64) (image.Image, error) {
	b := base.Bounds()
	display := geometry.SizeOf(b.Dx(), b.Dy())
	if display.Empty() || source.Empty() {
		return base, nil
	}

	dc := gg.NewContextForImage(base)
	defer dc.Close()

	dc.SetColor(col)
	dc.SetLineWidth(width)
	for i, c := range corners {
		p := geometry.PointToDisplay(c, source, display)
		if i == 0 {
			dc.MoveTo(p.X, p.Y)
		} else {
			dc.LineTo(p.X, p.Y)
		}
	}
	dc.ClosePath()
	if err := dc.Stroke(); err != nil {
		return nil, fmt.Errorf("stroke quad: %w", err)
	}
	return dc.Image(), nil
}
