package grid

const (
	smoothPasses = 3
	smoothBlend  = 0.3
	regularBlend = 0.5
)

var neighborOffsets = [4][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}}

// Optimize smooths interior points toward their neighbors and then pulls
// points toward even spacing along rows and columns. Hand placed edge and
// corner points anchor the result.
//
// Updates are applied in place in row-major order, so a point already
// smoothed in this pass feeds into its right and lower neighbors.
func (g *Grid) Optimize() {
	for pass := 0; pass < smoothPasses; pass++ {
		for row := 1; row < Rows-1; row++ {
			for col := 1; col < Cols-1; col++ {
				g.smoothPoint(row, col)
			}
		}
	}
	g.regularize()
}

func (g *Grid) smoothPoint(row, col int) {
	var sumX, sumY float64
	n := 0
	for _, off := range neighborOffsets {
		r, c := row+off[0], col+off[1]
		if r < 0 || r >= Rows || c < 0 || c >= Cols {
			continue
		}
		p := g.points[Index(r, c)]
		sumX += p.X
		sumY += p.Y
		n++
	}
	if n == 0 {
		return
	}
	p := &g.points[Index(row, col)]
	p.X = p.X*(1-smoothBlend) + sumX/float64(n)*smoothBlend
	p.Y = p.Y*(1-smoothBlend) + sumY/float64(n)*smoothBlend
}

// regularize blends X toward the line between each row's end points, then Y
// toward the line between each column's end points.
func (g *Grid) regularize() {
	for row := 0; row < Rows; row++ {
		first := g.points[Index(row, 0)].X
		last := g.points[Index(row, Cols-1)].X
		for col := 1; col < Cols-1; col++ {
			ideal := first + float64(col)/(Cols-1)*(last-first)
			p := &g.points[Index(row, col)]
			p.X = p.X*(1-regularBlend) + ideal*regularBlend
		}
	}
	for col := 0; col < Cols; col++ {
		first := g.points[Index(0, col)].Y
		last := g.points[Index(Rows-1, col)].Y
		for row := 1; row < Rows-1; row++ {
			ideal := first + float64(row)/(Rows-1)*(last-first)
			p := &g.points[Index(row, col)]
			p.Y = p.Y*(1-regularBlend) + ideal*regularBlend
		}
	}
}
