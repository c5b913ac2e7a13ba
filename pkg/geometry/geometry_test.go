package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapperRoundTrip(t *testing.T) {
	sources := []Size{
		{Width: 4032, Height: 3024},
		{Width: 100, Height: 100},
		{Width: 1, Height: 7},
	}
	displays := []Size{
		{Width: 800, Height: 600},
		{Width: 333.3, Height: 91.7},
		{Width: 10000, Height: 2},
		{Width: 0.5, Height: 0.25},
	}

	for _, s := range sources {
		for _, d := range displays {
			for _, p := range []Point2D{{0, 0}, {s.Width, s.Height}, {s.Width / 3, s.Height / 7}, {s.Width * 0.999, 0.001}} {
				dx, dy := ToDisplay(p.X, p.Y, s, d)
				px, py := ToSource(dx, dy, s, d)
				assert.InDelta(t, p.X, px, 1e-9*(1+p.X), "x for source %v display %v", s, d)
				assert.InDelta(t, p.Y, py, 1e-9*(1+p.Y), "y for source %v display %v", s, d)
			}
		}
	}
}

func TestMapperIndependentAxes(t *testing.T) {
	src := NewSize(200, 100)
	disp := NewSize(100, 100)

	dx, dy := ToDisplay(200, 100, src, disp)
	assert.Equal(t, 100.0, dx)
	assert.Equal(t, 100.0, dy)

	dx, dy = ToDisplay(50, 50, src, disp)
	assert.Equal(t, 25.0, dx)
	assert.Equal(t, 50.0, dy)
}

func TestMapperNoRounding(t *testing.T) {
	dx, _ := ToDisplay(1, 0, NewSize(3, 3), NewSize(1, 1))
	assert.InDelta(t, 1.0/3.0, dx, 1e-15)
}

func TestRectClamp(t *testing.T) {
	r := BoundsOf(NewSize(100, 50))
	assert.Equal(t, Point2D{X: 0, Y: 50}, r.Clamp(Point2D{X: -4, Y: 80}))
	assert.Equal(t, Point2D{X: 100, Y: 10}, r.Clamp(Point2D{X: 120, Y: 10}))
	assert.True(t, r.Contains(Point2D{X: 100, Y: 50}))
	assert.False(t, r.Contains(Point2D{X: 100.1, Y: 50}))
}

func TestRectInset(t *testing.T) {
	r := BoundsOf(NewSize(1000, 500)).Inset(0.1)
	assert.Equal(t, Rect{X: 100, Y: 50, Width: 800, Height: 400}, r)
	c := r.Corners()
	assert.Equal(t, Point2D{X: 900, Y: 450}, c[2])
}

func TestIsConvex(t *testing.T) {
	square := []Point2D{{0, 0}, {10, 0}, {10, 10}, {0, 10}}
	assert.True(t, IsConvex(square))
	assert.InDelta(t, 100, Area(square), 1e-12)

	bowtie := []Point2D{{0, 0}, {10, 10}, {10, 0}, {0, 10}}
	assert.False(t, IsConvex(bowtie))

	dart := []Point2D{{0, 0}, {10, 0}, {3, 3}, {0, 10}}
	assert.False(t, IsConvex(dart))

	assert.False(t, IsConvex(square[:2]))
	assert.Equal(t, 0.0, Area(square[:2]))
}
