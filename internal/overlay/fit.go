package overlay

import (
	"image"
	"math"

	"golang.org/x/image/draw"
)

// Fit scales img down so its longer side is at most maxSize, keeping the
// aspect ratio. Smaller images and maxSize <= 0 return img unchanged.
func Fit(img image.Image, maxSize int) image.Image {
	b := img.Bounds()
	longest := max(b.Dx(), b.Dy())
	if maxSize <= 0 || longest <= maxSize {
		return img
	}
	scale := float64(maxSize) / float64(longest)
	w := max(1, int(math.Round(float64(b.Dx())*scale)))
	h := max(1, int(math.Round(float64(b.Dy())*scale)))

	out := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(out, out.Bounds(), img, b, draw.Src, nil)
	return out
}
