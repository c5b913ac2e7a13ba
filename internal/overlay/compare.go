package overlay

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
)

// CompareMode selects how a before/after pair is combined.
type CompareMode int

const (
	// CompareSplit shows the original left of the divider and the result
	// right of it.
	CompareSplit CompareMode = iota
	// CompareBlend cross-fades from the original to the result.
	CompareBlend
	// CompareDifference shows the per-channel absolute difference.
	CompareDifference
)

func (m CompareMode) String() string {
	switch m {
	case CompareSplit:
		return "Split"
	case CompareBlend:
		return "Blend"
	case CompareDifference:
		return "Difference"
	default:
		return "Unknown"
	}
}

// Compare combines before and after into one image the size of after.
// before is rescaled when the sizes differ, for example after upscaling.
// amount is the divider position for CompareSplit and the result's weight
// for CompareBlend, both from 0 to 1.
func Compare(before, after image.Image, mode CompareMode, amount float64) *image.RGBA {
	bounds := after.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	if w == 0 || h == 0 {
		return out
	}
	amount = clamp(amount, 0, 1)

	src := matchSize(before, w, h)
	dst := toRGBA(after)

	divider := int(math.Round(amount * float64(w)))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := dst.PixOffset(x, y)
			a := dst.Pix[i : i+4 : i+4]
			b := src.Pix[i : i+4 : i+4]
			o := out.Pix[i : i+4 : i+4]

			switch mode {
			case CompareSplit:
				if x < divider {
					copy(o, b)
				} else {
					copy(o, a)
				}
			case CompareBlend:
				for c := 0; c < 4; c++ {
					o[c] = uint8(math.Round(float64(b[c])*(1-amount) + float64(a[c])*amount))
				}
			case CompareDifference:
				for c := 0; c < 3; c++ {
					o[c] = uint8(math.Abs(float64(a[c]) - float64(b[c])))
				}
				o[3] = 255
			}
		}
	}

	if mode == CompareSplit && divider > 0 && divider < w {
		line := color.RGBA{255, 255, 255, 255}
		for y := 0; y < h; y++ {
			out.SetRGBA(divider, y, line)
		}
	}
	return out
}

// matchSize returns img as RGBA at w x h, scaling with Catmull-Rom if needed.
func matchSize(img image.Image, w, h int) *image.RGBA {
	b := img.Bounds()
	if b.Dx() == w && b.Dy() == h {
		return toRGBA(img)
	}
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(out, out.Bounds(), img, b, draw.Src, nil)
	return out
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}

func clamp(x, min, max float64) float64 {
	if x < min {
		return min
	}
	if x > max {
		return max
	}
	return x
}
