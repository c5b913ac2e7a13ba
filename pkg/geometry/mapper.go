package geometry

// ToDisplay converts image pixel coordinates to coordinates on a display
// surface of displaySize showing the whole source image. X and Y scale
// independently, so a stretched canvas maps correctly.
//
// No rounding is done here; callers round only when indexing pixels.
// sourceSize must not be empty.
func ToDisplay(px, py float64, sourceSize, displaySize Size) (dx, dy float64) {
	dx = px * (displaySize.Width / sourceSize.Width)
	dy = py * (displaySize.Height / sourceSize.Height)
	return
}

// ToSource converts display coordinates back to image pixel coordinates.
// It is the inverse of ToDisplay.
func ToSource(dx, dy float64, sourceSize, displaySize Size) (px, py float64) {
	px = dx / (displaySize.Width / sourceSize.Width)
	py = dy / (displaySize.Height / sourceSize.Height)
	return
}

// PointToDisplay is ToDisplay for a Point2D.
func PointToDisplay(p Point2D, sourceSize, displaySize Size) Point2D {
	x, y := ToDisplay(p.X, p.Y, sourceSize, displaySize)
	return Point2D{X: x, Y: y}
}

// PointToSource is ToSource for a Point2D.
func PointToSource(p Point2D, sourceSize, displaySize Size) Point2D {
	x, y := ToSource(p.X, p.Y, sourceSize, displaySize)
	return Point2D{X: x, Y: y}
}
