// Package grid provides the 5x5 deformable control grid used for
// non-planar correction of a photographed painting.
//
// Points live in image pixel space. Display coordinates coming from a canvas
// are converted with the geometry mapper before they touch the grid.
package grid

import (
	"errors"
	"fmt"
	"math"

	"painting-enhancer/pkg/geometry"
)

const (
	// Rows and Cols give the grid shape.
	Rows = 5
	Cols = 5
	// Count is the number of control points, always Rows*Cols.
	Count = Rows * Cols
)

// ErrMalformed is returned when restoring a grid from external data whose
// point set is not a row-major 5x5 arrangement.
var ErrMalformed = errors.New("malformed control grid")

// Point is one control point. X and Y are the current image-space position,
// OriginalX and OriginalY the reset target. Row and Col never change.
type Point struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	OriginalX float64 `json:"originalX"`
	OriginalY float64 `json:"originalY"`
	Row       int     `json:"row"`
	Col       int     `json:"col"`
}

// Pos returns the current position.
func (p Point) Pos() geometry.Point2D {
	return geometry.Point2D{X: p.X, Y: p.Y}
}

// IsCorner reports whether the point is one of the four grid corners.
func (p Point) IsCorner() bool {
	return (p.Row == 0 || p.Row == Rows-1) && (p.Col == 0 || p.Col == Cols-1)
}

// Grid is a 5x5 control grid over an image of fixed dimensions.
type Grid struct {
	points [Count]Point
	width  float64
	height float64
}

// New creates a grid evenly spaced over an image of the given size.
func New(imageWidth, imageHeight int) *Grid {
	g := &Grid{}
	g.Initialize(imageWidth, imageHeight)
	return g
}

// Initialize lays the 25 points out evenly over the image, setting both the
// current and the original coordinates.
func (g *Grid) Initialize(imageWidth, imageHeight int) {
	g.width = float64(imageWidth)
	g.height = float64(imageHeight)
	for row := 0; row < Rows; row++ {
		for col := 0; col < Cols; col++ {
			x := g.width / (Cols - 1) * float64(col)
			y := g.height / (Rows - 1) * float64(row)
			g.points[Index(row, col)] = Point{
				X: x, Y: y,
				OriginalX: x, OriginalY: y,
				Row: row, Col: col,
			}
		}
	}
}

// FromPoints rebuilds a grid from stored points, such as a session file.
// The points must be 25 entries in row-major order with matching Row/Col.
func FromPoints(imageWidth, imageHeight int, points []Point) (*Grid, error) {
	if imageWidth <= 0 || imageHeight <= 0 {
		return nil, fmt.Errorf("%w: image size %dx%d", ErrMalformed, imageWidth, imageHeight)
	}
	if len(points) != Count {
		return nil, fmt.Errorf("%w: got %d points, want %d", ErrMalformed, len(points), Count)
	}
	g := &Grid{width: float64(imageWidth), height: float64(imageHeight)}
	bounds := g.Bounds()
	for i, p := range points {
		if p.Row != i/Cols || p.Col != i%Cols {
			return nil, fmt.Errorf("%w: point %d has row %d col %d", ErrMalformed, i, p.Row, p.Col)
		}
		if !finite(p.X, p.Y, p.OriginalX, p.OriginalY) {
			return nil, fmt.Errorf("%w: point %d is not finite", ErrMalformed, i)
		}
		pos := bounds.Clamp(p.Pos())
		p.X, p.Y = pos.X, pos.Y
		g.points[i] = p
	}
	return g, nil
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Index returns the row-major index of (row, col).
func Index(row, col int) int {
	return row*Cols + col
}

// Width returns the image width the grid was initialized for.
func (g *Grid) Width() float64 { return g.width }

// Height returns the image height the grid was initialized for.
func (g *Grid) Height() float64 { return g.height }

// Size returns the image size the grid was initialized for.
func (g *Grid) Size() geometry.Size {
	return geometry.Size{Width: g.width, Height: g.height}
}

// Bounds returns the rectangle every point is kept inside.
func (g *Grid) Bounds() geometry.Rect {
	return geometry.BoundsOf(g.Size())
}

// At returns the point at (row, col).
func (g *Grid) At(row, col int) Point {
	return g.points[Index(row, col)]
}

// Point returns the point at a row-major index.
func (g *Grid) Point(index int) Point {
	return g.points[index]
}

// Points returns a copy of all 25 points in row-major order.
func (g *Grid) Points() []Point {
	out := make([]Point, Count)
	copy(out, g.points[:])
	return out
}

// Clone returns an independent copy of the grid.
func (g *Grid) Clone() *Grid {
	c := *g
	return &c
}

// Nearest is the result of a hit test.
type Nearest struct {
	Index    int
	Point    Point
	Distance float64 // in display pixels
}

// FindNearest maps every point to display space and returns the closest one
// to (displayX, displayY). Applying a hit radius is up to the caller.
func (g *Grid) FindNearest(displayX, displayY float64, displaySize geometry.Size) Nearest {
	best := Nearest{Index: -1, Distance: math.Inf(1)}
	src := g.Size()
	for i, p := range g.points {
		dx, dy := geometry.ToDisplay(p.X, p.Y, src, displaySize)
		d := math.Hypot(dx-displayX, dy-displayY)
		if d < best.Distance {
			best = Nearest{Index: i, Point: p, Distance: d}
		}
	}
	return best
}

// MovePoint moves a point to a display position, converting it to image
// space and clamping to [0,width] x [0,height].
func (g *Grid) MovePoint(index int, displayX, displayY float64, displaySize geometry.Size) {
	if index < 0 || index >= Count {
		return
	}
	x, y := geometry.ToSource(displayX, displayY, g.Size(), displaySize)
	g.SetPosition(index, geometry.Point2D{X: x, Y: y})
}

// SetPosition places a point at an image-space position, clamped to bounds.
func (g *Grid) SetPosition(index int, pos geometry.Point2D) {
	if index < 0 || index >= Count {
		return
	}
	pos = g.Bounds().Clamp(pos)
	g.points[index].X = pos.X
	g.points[index].Y = pos.Y
}

// Reset restores every point to its original position.
func (g *Grid) Reset() {
	for i := range g.points {
		g.points[i].X = g.points[i].OriginalX
		g.points[i].Y = g.points[i].OriginalY
	}
}

// IsEdited reports whether any point differs from its original position.
// An unedited grid produces an identity remap, so the stage can be skipped.
func (g *Grid) IsEdited() bool {
	for _, p := range g.points {
		if p.X != p.OriginalX || p.Y != p.OriginalY {
			return true
		}
	}
	return false
}
