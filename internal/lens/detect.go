package lens

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"painting-enhancer/pkg/geometry"
)

// Line is a Hough line in normal form: x*cos(Theta) + y*sin(Theta) = Rho.
type Line struct {
	Rho   float64
	Theta float64
}

const (
	// axisAlignedCutoff skips lines within this |cos| or |sin| of an axis.
	axisAlignedCutoff = 0.3
	// minEdgeDistance keeps lines whose foot point lies at least this far
	// from the center, as a fraction of the longer side.
	minEdgeDistance = 0.3
	intensityGain   = 150
	// Non-generic profiles are clamped to this intensity range.
	profileMinIntensity = 20
	profileMaxIntensity = 60
)

// EstimateIntensity suggests a correction intensity (0..100) from lines
// detected in a width x height image. Barrel distortion bends straight lines
// most near the edges, so the estimate grows with the mean distance of
// diagonal lines from the center. Zero means nothing usable was found.
func EstimateIntensity(lines []Line, width, height int, profileKey string) int {
	if width <= 0 || height <= 0 {
		return 0
	}
	cx := float64(width) / 2
	cy := float64(height) / 2
	longest := math.Max(float64(width), float64(height))

	var dists []float64
	for _, l := range lines {
		a, b := math.Cos(l.Theta), math.Sin(l.Theta)
		if math.Abs(a) < axisAlignedCutoff || math.Abs(b) < axisAlignedCutoff {
			continue
		}
		x0, y0 := a*l.Rho, b*l.Rho
		d := math.Hypot(x0-cx, y0-cy) / longest
		if d > minEdgeDistance {
			dists = append(dists, d)
		}
	}
	if len(dists) == 0 {
		return 0
	}

	intensity := int(math.Min(100, math.Floor(stat.Mean(dists, nil)*intensityGain)))
	if _, known := profiles[profileKey]; known && profileKey != GenericProfile {
		intensity = max(profileMinIntensity, min(intensity, profileMaxIntensity))
	}
	return intensity
}

// defaultMargin is the inset of the fallback painting outline.
const defaultMargin = 0.1

// DefaultQuad returns the fallback painting outline: the image inset by 10%
// on every side, ordered TL, TR, BR, BL.
func DefaultQuad(width, height int) [4]geometry.Point2D {
	return geometry.BoundsOf(geometry.SizeOf(width, height)).Inset(defaultMargin).Corners()
}

// OrderCorners orders four points as top-left, top-right, bottom-right,
// bottom-left: the two with the smallest Y form the top edge, and each edge
// is ordered by X.
func OrderCorners(pts [4]geometry.Point2D) [4]geometry.Point2D {
	s := pts[:]
	sorted := append([]geometry.Point2D(nil), s...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Y < sorted[j].Y })

	top := sorted[:2]
	bottom := sorted[2:]
	if top[0].X > top[1].X {
		top[0], top[1] = top[1], top[0]
	}
	if bottom[0].X > bottom[1].X {
		bottom[0], bottom[1] = bottom[1], bottom[0]
	}
	return [4]geometry.Point2D{top[0], top[1], bottom[1], bottom[0]}
}
