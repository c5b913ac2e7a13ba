package upscale

import (
	"fmt"
	"math"
)

// DPI is the print resolution every catalog size is computed at.
const DPI = 300

// PrintSize is a standard print format.
type PrintSize struct {
	Key      string `json:"key"`
	Name     string `json:"name"`
	WidthIn  int    `json:"widthIn"`
	HeightIn int    `json:"heightIn"`
}

// Width returns the pixel width at DPI.
func (p PrintSize) Width() int { return p.WidthIn * DPI }

// Height returns the pixel height at DPI.
func (p PrintSize) Height() int { return p.HeightIn * DPI }

// Aspect returns width / height.
func (p PrintSize) Aspect() float64 { return float64(p.WidthIn) / float64(p.HeightIn) }

// PrintSizes lists the supported print formats, smallest first.
var PrintSizes = []PrintSize{
	{Key: "8x10", Name: "8×10 inches", WidthIn: 8, HeightIn: 10},
	{Key: "11x14", Name: "11×14 inches", WidthIn: 11, HeightIn: 14},
	{Key: "16x20", Name: "16×20 inches", WidthIn: 16, HeightIn: 20},
	{Key: "18x24", Name: "18×24 inches", WidthIn: 18, HeightIn: 24},
	{Key: "24x30", Name: "24×30 inches", WidthIn: 24, HeightIn: 30},
	{Key: "30x40", Name: "30×40 inches", WidthIn: 30, HeightIn: 40},
}

// LookupPrintSize finds a print size by key, e.g. "24x30".
func LookupPrintSize(key string) (PrintSize, bool) {
	for _, p := range PrintSizes {
		if p.Key == key {
			return p, true
		}
	}
	return PrintSize{}, false
}

// aspectTolerance is the aspect ratio difference within which an image is
// considered to match a print format.
const aspectTolerance = 0.1

// Dimensions is the output size chosen for a print format.
type Dimensions struct {
	Width        int     `json:"width"`
	Height       int     `json:"height"`
	SourceAspect float64 `json:"sourceAspect"`
	TargetAspect float64 `json:"targetAspect"`
	AspectMatch  bool    `json:"aspectMatch"`
}

// OptimalDimensions sizes an inputW x inputH image for a print format.
// A close aspect match uses the exact print size; otherwise the image is
// fitted to the print width (wider images) or height (taller images).
// An unknown key returns the input size.
func OptimalDimensions(inputW, inputH int, key string) Dimensions {
	aspect := float64(inputW) / float64(inputH)
	p, ok := LookupPrintSize(key)
	if !ok {
		return Dimensions{Width: inputW, Height: inputH, SourceAspect: aspect, TargetAspect: aspect, AspectMatch: true}
	}

	target := p.Aspect()
	d := Dimensions{SourceAspect: aspect, TargetAspect: target}
	switch {
	case math.Abs(aspect-target) < aspectTolerance:
		d.Width, d.Height = p.Width(), p.Height()
		d.AspectMatch = true
	case aspect > target:
		d.Width = p.Width()
		d.Height = int(math.Round(float64(p.Width()) / aspect))
	default:
		d.Height = p.Height()
		d.Width = int(math.Round(float64(p.Height()) * aspect))
	}
	return d
}

// PrintOption describes how well an image suits a print size.
type PrintOption struct {
	PrintSize
	ScaleRequired float64 `json:"scaleRequired"`
	AspectMatch   bool    `json:"aspectMatch"`
	Recommended   bool    `json:"recommended"`
}

// maxRecommendedScale is the largest enlargement a recommended size may need.
const maxRecommendedScale = 4

// AvailablePrintSizes rates every print size for an inputW x inputH image.
func AvailablePrintSizes(inputW, inputH int) []PrintOption {
	aspect := float64(inputW) / float64(inputH)
	out := make([]PrintOption, 0, len(PrintSizes))
	for _, p := range PrintSizes {
		match := math.Abs(aspect-p.Aspect()) < aspectTolerance
		scale := RequiredScale(inputW, inputH, p.Width(), p.Height())
		out = append(out, PrintOption{
			PrintSize:     p,
			ScaleRequired: scale,
			AspectMatch:   match,
			Recommended:   match && scale <= maxRecommendedScale,
		})
	}
	return out
}

// FileSizeEstimate is an approximate encoded output size.
type FileSizeEstimate struct {
	Bytes     int64  `json:"bytes"`
	MB        int64  `json:"mb"`
	Formatted string `json:"formatted"`
}

// EstimateFileSize approximates the encoded size of a width x height image in
// the given output format ("jpeg-95", "jpeg-85" or "png").
func EstimateFileSize(width, height int, format string) FileSizeEstimate {
	var bpp float64
	switch format {
	case "jpeg-95":
		bpp = 0.4
	case "jpeg-85":
		bpp = 0.2
	case "png":
		bpp = 4
	default:
		bpp = 0.3
	}

	bytes := float64(width) * float64(height) * bpp
	mb := int64(math.Round(bytes / (1024 * 1024)))
	formatted := fmt.Sprintf("%dMB", mb)
	if mb > 1000 {
		formatted = fmt.Sprintf("%.1fGB", float64(mb)/1000)
	}
	return FileSizeEstimate{Bytes: int64(math.Round(bytes)), MB: mb, Formatted: formatted}
}
