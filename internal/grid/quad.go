package grid

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"painting-enhancer/pkg/geometry"
)

// ErrDegenerateQuad is returned when painting corners do not form a convex
// quadrilateral with area.
var ErrDegenerateQuad = errors.New("corners do not form a convex quadrilateral")

// Homography is a 3x3 projective transform stored row-major with H[8] = 1.
type Homography [9]float64

// Apply maps (u, v) through the transform.
func (h Homography) Apply(u, v float64) geometry.Point2D {
	w := h[6]*u + h[7]*v + h[8]
	return geometry.Point2D{
		X: (h[0]*u + h[1]*v + h[2]) / w,
		Y: (h[3]*u + h[4]*v + h[5]) / w,
	}
}

// unitSquare lists the unit square corners in TL, TR, BR, BL order.
var unitSquare = [4]geometry.Point2D{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}}

// SquareToQuad computes the homography taking the unit square onto corners
// ordered top-left, top-right, bottom-right, bottom-left.
func SquareToQuad(corners [4]geometry.Point2D) (Homography, error) {
	// Solve for h0..h7 with h8 fixed at 1:
	// [u v 1 0 0 0 -u*x -v*x] * h = x
	// [0 0 0 u v 1 -u*y -v*y] * h = y
	A := mat.NewDense(8, 8, nil)
	B := mat.NewVecDense(8, nil)

	for i := 0; i < 4; i++ {
		u, v := unitSquare[i].X, unitSquare[i].Y
		x, y := corners[i].X, corners[i].Y

		A.Set(i*2, 0, u)
		A.Set(i*2, 1, v)
		A.Set(i*2, 2, 1)
		A.Set(i*2, 6, -u*x)
		A.Set(i*2, 7, -v*x)
		B.SetVec(i*2, x)

		A.Set(i*2+1, 3, u)
		A.Set(i*2+1, 4, v)
		A.Set(i*2+1, 5, 1)
		A.Set(i*2+1, 6, -u*y)
		A.Set(i*2+1, 7, -v*y)
		B.SetVec(i*2+1, y)
	}

	var params mat.VecDense
	if err := params.SolveVec(A, B); err != nil {
		return Homography{}, fmt.Errorf("solve homography: %w", err)
	}

	var h Homography
	for i := 0; i < 8; i++ {
		h[i] = params.AtVec(i)
	}
	h[8] = 1
	return h, nil
}

// FitQuadrilateral moves the current points so the grid spans the painting
// outlined by corners (TL, TR, BR, BL in image space). Interior points follow
// the perspective of the quadrilateral. Original positions are untouched, so
// Reset still restores even spacing.
func (g *Grid) FitQuadrilateral(corners [4]geometry.Point2D) error {
	poly := corners[:]
	if !geometry.IsConvex(poly) || geometry.Area(poly) <= 0 {
		return ErrDegenerateQuad
	}
	h, err := SquareToQuad(corners)
	if err != nil {
		return err
	}
	bounds := g.Bounds()
	for row := 0; row < Rows; row++ {
		for col := 0; col < Cols; col++ {
			p := h.Apply(float64(col)/(Cols-1), float64(row)/(Rows-1))
			p = bounds.Clamp(p)
			idx := Index(row, col)
			g.points[idx].X = p.X
			g.points[idx].Y = p.Y
		}
	}
	return nil
}
