package imageops

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"painting-enhancer/internal/export"
	"painting-enhancer/internal/lens"
	"painting-enhancer/internal/pipeline"
	"painting-enhancer/internal/remap"
	"painting-enhancer/pkg/geometry"
)

const (
	// detectMaxDimension bounds the image size line and corner detection run at.
	detectMaxDimension = 1000
	// minQuadArea is the smallest contour area accepted as the painting.
	minQuadArea = 1000
	// highlightLevel is the V channel value above which glare is compressed.
	highlightLevel = 200
)

// Ops implements pipeline.Ops on OpenCV matrices.
type Ops struct {
	log          zerolog.Logger
	tracker      *Tracker
	maxDimension int
}

var _ pipeline.Ops = (*Ops)(nil)

// New creates the operations. maxDimension caps the size lens correction
// runs at; 0 runs it at full resolution.
func New(log zerolog.Logger, maxDimension int) *Ops {
	return &Ops{
		log:          log.With().Str("component", "imageops").Logger(),
		tracker:      &Tracker{},
		maxDimension: maxDimension,
	}
}

// Tracker returns the allocation counters for images made by o.
func (o *Ops) Tracker() *Tracker { return o.tracker }

// FromImage converts a decoded image to a BGR matrix.
func (o *Ops) FromImage(img image.Image) (*Image, error) {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("image to mat: %w", err)
	}
	return wrap(mat, o.tracker)
}

// result wraps mat as a pipeline bitmap, keeping a failed wrap a nil
// interface.
func (o *Ops) result(mat gocv.Mat) (pipeline.Bitmap, error) {
	img, err := wrap(mat, o.tracker)
	if err != nil {
		return nil, err
	}
	return img, nil
}

// Import converts a decoded image to a bitmap owned by the caller.
func (o *Ops) Import(img image.Image) (pipeline.Bitmap, error) {
	m, err := o.FromImage(img)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Render converts a bitmap made by o back to a Go image.
func (o *Ops) Render(b pipeline.Bitmap) (image.Image, error) {
	in, err := asImage(b)
	if err != nil {
		return nil, err
	}
	return in.ToImage()
}

// Undistort corrects radial and tangential lens distortion. Large images are
// processed at a reduced size and scaled back.
func (o *Ops) Undistort(src pipeline.Bitmap, params lens.Params) (pipeline.Bitmap, error) {
	in, err := asImage(src)
	if err != nil {
		return nil, err
	}
	w, h := in.Width(), in.Height()
	pw, ph, reduced := lens.ProcessingSize(w, h, o.maxDimension)

	work := in.mat
	if reduced {
		small := gocv.NewMat()
		defer small.Close()
		gocv.Resize(in.mat, &small, image.Pt(pw, ph), 0, 0, gocv.InterpolationArea)
		if small.Empty() {
			return nil, fmt.Errorf("reduce for lens correction: %w", ErrEmptyMat)
		}
		work = small
		params = scaleCamera(params, float64(pw)/float64(w), float64(ph)/float64(h))
		o.log.Debug().Int("width", pw).Int("height", ph).Msg("lens correction at reduced size")
	}

	camera := matFromFloats(3, 3, params.CameraMatrix[:])
	defer camera.Close()
	dist := matFromFloats(1, 5, params.DistCoeffs[:])
	defer dist.Close()

	out := gocv.NewMat()
	gocv.Undistort(work, &out, camera, dist, camera)
	if !reduced {
		return o.result(out)
	}

	defer out.Close()
	back := gocv.NewMat()
	gocv.Resize(out, &back, image.Pt(w, h), 0, 0, gocv.InterpolationCubic)
	return o.result(back)
}

// scaleCamera adjusts the intrinsics for an image resized by sx, sy.
func scaleCamera(p lens.Params, sx, sy float64) lens.Params {
	p.CameraMatrix[0] *= sx
	p.CameraMatrix[2] *= sx
	p.CameraMatrix[4] *= sy
	p.CameraMatrix[5] *= sy
	return p
}

func matFromFloats(rows, cols int, v []float64) gocv.Mat {
	m := gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV64FC1)
	for i, f := range v {
		m.SetDoubleAt(i/cols, i%cols, f)
	}
	return m
}

// Remap samples src through the table with bilinear interpolation. Samples
// outside the source are black.
func (o *Ops) Remap(src pipeline.Bitmap, table *remap.Table) (pipeline.Bitmap, error) {
	in, err := asImage(src)
	if err != nil {
		return nil, err
	}
	if table == nil || table.Width <= 0 || table.Height <= 0 {
		return nil, remap.ErrInvalidSize
	}

	mapX, err := floatMat(table.Height, table.Width, table.MapX)
	if err != nil {
		return nil, err
	}
	defer mapX.Close()
	mapY, err := floatMat(table.Height, table.Width, table.MapY)
	if err != nil {
		return nil, err
	}
	defer mapY.Close()

	out := gocv.NewMat()
	gocv.Remap(in.mat, &out, &mapX, &mapY, gocv.InterpolationLinear, gocv.BorderConstant, color.RGBA{})
	return o.result(out)
}

func floatMat(rows, cols int, values []float32) (gocv.Mat, error) {
	m := gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV32FC1)
	data, err := m.DataPtrFloat32()
	if err != nil {
		m.Close()
		return gocv.Mat{}, fmt.Errorf("map data: %w", err)
	}
	if len(data) != len(values) {
		m.Close()
		return gocv.Mat{}, fmt.Errorf("map has %d values, want %d", len(values), len(data))
	}
	copy(data, values)
	return m, nil
}

// AdjustTone applies contrast, then saturation, then compresses highlights
// brighter than highlightLevel by strength percent to reduce glare.
func (o *Ops) AdjustTone(src pipeline.Bitmap, strength, contrast, saturation float64) (pipeline.Bitmap, error) {
	in, err := asImage(src)
	if err != nil {
		return nil, err
	}

	toned := gocv.NewMat()
	defer toned.Close()
	gocv.ConvertScaleAbs(in.mat, &toned, contrast, 0)

	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(toned, &hsv, gocv.ColorBGRToHSV)

	ch := gocv.Split(hsv)
	defer func() {
		for i := range ch {
			ch[i].Close()
		}
	}()
	if len(ch) != 3 {
		return nil, fmt.Errorf("split HSV: got %d channels", len(ch))
	}

	if saturation != 1 {
		s := gocv.NewMat()
		gocv.ConvertScaleAbs(ch[1], &s, saturation, 0)
		ch[1].Close()
		ch[1] = s
	}

	if strength > 0 {
		k := math.Min(strength, 100) / 100
		mask := gocv.NewMat()
		defer mask.Close()
		gocv.Threshold(ch[2], &mask, highlightLevel, 255, gocv.ThresholdBinary)

		compressed := gocv.NewMat()
		defer compressed.Close()
		gocv.ConvertScaleAbs(ch[2], &compressed, 1-k, highlightLevel*k)
		compressed.CopyToWithMask(&ch[2], mask)
	}

	merged := gocv.NewMat()
	defer merged.Close()
	gocv.Merge(ch, &merged)

	out := gocv.NewMat()
	gocv.CvtColor(merged, &out, gocv.ColorHSVToBGR)
	return o.result(out)
}

// EqualizeLuminance equalizes the L channel in Lab space and blends the
// result with the original luminance. intensity runs from 0 to 1.
func (o *Ops) EqualizeLuminance(src pipeline.Bitmap, intensity float64) (pipeline.Bitmap, error) {
	in, err := asImage(src)
	if err != nil {
		return nil, err
	}
	intensity = math.Max(0, math.Min(1, intensity))

	lab := gocv.NewMat()
	defer lab.Close()
	gocv.CvtColor(in.mat, &lab, gocv.ColorBGRToLab)

	ch := gocv.Split(lab)
	defer func() {
		for i := range ch {
			ch[i].Close()
		}
	}()
	if len(ch) != 3 {
		return nil, fmt.Errorf("split Lab: got %d channels", len(ch))
	}

	eq := gocv.NewMat()
	defer eq.Close()
	gocv.EqualizeHist(ch[0], &eq)

	blended := gocv.NewMat()
	gocv.AddWeighted(ch[0], 1-intensity, eq, intensity, 0, &blended)
	ch[0].Close()
	ch[0] = blended

	merged := gocv.NewMat()
	defer merged.Close()
	gocv.Merge(ch, &merged)

	out := gocv.NewMat()
	gocv.CvtColor(merged, &out, gocv.ColorLabToBGR)
	return o.result(out)
}

// Upscale enlarges src by ratio with Lanczos interpolation.
func (o *Ops) Upscale(src pipeline.Bitmap, ratio float64) (pipeline.Bitmap, error) {
	in, err := asImage(src)
	if err != nil {
		return nil, err
	}
	if ratio <= 0 {
		return nil, fmt.Errorf("invalid upscale ratio %g", ratio)
	}
	w := int(math.Round(float64(in.Width()) * ratio))
	h := int(math.Round(float64(in.Height()) * ratio))

	out := gocv.NewMat()
	gocv.Resize(in.mat, &out, image.Pt(w, h), 0, 0, gocv.InterpolationLanczos4)
	img, err := wrap(out, o.tracker)
	if err != nil {
		return nil, fmt.Errorf("upscale %gx to %dx%d: %w", ratio, w, h, err)
	}
	o.tracker.LogStats(o.log)
	return img, nil
}

// Resize scales src to exactly width x height. Reductions use pixel area
// resampling, enlargements Lanczos.
func (o *Ops) Resize(src pipeline.Bitmap, width, height int) (pipeline.Bitmap, error) {
	in, err := asImage(src)
	if err != nil {
		return nil, err
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid size %dx%d", width, height)
	}
	interp := gocv.InterpolationLanczos4
	if width*height < in.Width()*in.Height() {
		interp = gocv.InterpolationArea
	}
	out := gocv.NewMat()
	gocv.Resize(in.mat, &out, image.Pt(width, height), 0, 0, interp)
	return o.result(out)
}

// reduced returns a grayscale copy of src no larger than detectMaxDimension.
func reduced(src gocv.Mat) (gocv.Mat, error) {
	gray := gocv.NewMat()
	gocv.CvtColor(src, &gray, gocv.ColorBGRToGray)
	if gray.Empty() {
		gray.Close()
		return gocv.Mat{}, fmt.Errorf("grayscale: %w", ErrEmptyMat)
	}
	w, h, ok := lens.ProcessingSize(src.Cols(), src.Rows(), detectMaxDimension)
	if !ok {
		return gray, nil
	}
	small := gocv.NewMat()
	gocv.Resize(gray, &small, image.Pt(w, h), 0, 0, gocv.InterpolationArea)
	gray.Close()
	if small.Empty() {
		small.Close()
		return gocv.Mat{}, fmt.Errorf("reduce: %w", ErrEmptyMat)
	}
	return small, nil
}

// DetectLines finds straight edges with the Hough transform.
func (o *Ops) DetectLines(src pipeline.Bitmap) (pipeline.LineSet, error) {
	in, err := asImage(src)
	if err != nil {
		return pipeline.LineSet{}, err
	}
	gray, err := reduced(in.mat)
	if err != nil {
		return pipeline.LineSet{}, err
	}
	defer gray.Close()

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(gray, &edges, 50, 150)

	lines := gocv.NewMat()
	defer lines.Close()
	gocv.HoughLines(edges, &lines, 1, math.Pi/180, 50)

	set := pipeline.LineSet{Width: gray.Cols(), Height: gray.Rows()}
	for i := 0; i < lines.Rows(); i++ {
		v := lines.GetVecfAt(i, 0)
		if len(v) < 2 {
			continue
		}
		set.Lines = append(set.Lines, lens.Line{Rho: float64(v[0]), Theta: float64(v[1])})
	}
	o.log.Debug().Int("lines", len(set.Lines)).Msg("lines detected")
	return set, nil
}

// DetectQuadrilateral looks for the painting's outline: the largest external
// contour that simplifies to four vertices. Corners are returned in src
// coordinates, unordered.
func (o *Ops) DetectQuadrilateral(src pipeline.Bitmap) ([4]geometry.Point2D, bool, error) {
	var quad [4]geometry.Point2D

	in, err := asImage(src)
	if err != nil {
		return quad, false, err
	}
	gray, err := reduced(in.mat)
	if err != nil {
		return quad, false, err
	}
	defer gray.Close()
	sx := float64(in.Width()) / float64(gray.Cols())
	sy := float64(in.Height()) / float64(gray.Rows())

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Pt(5, 5), 0, 0, gocv.BorderDefault)

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(blurred, &edges, 50, 150)

	contours := gocv.FindContours(edges, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	bestArea := 0.0
	found := false
	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)
		area := gocv.ContourArea(contour)
		if area <= minQuadArea || area <= bestArea {
			continue
		}

		epsilon := 0.02 * gocv.ArcLength(contour, true)
		approx := gocv.ApproxPolyDP(contour, epsilon, true)
		if approx.Size() == 4 {
			bestArea = area
			found = true
			for j := 0; j < 4; j++ {
				pt := approx.At(j)
				quad[j] = geometry.Point2D{X: float64(pt.X) * sx, Y: float64(pt.Y) * sy}
			}
		}
		approx.Close()
	}

	o.log.Debug().Bool("found", found).Float64("area", bestArea).Msg("quadrilateral detection")
	return quad, found, nil
}

// Encode compresses src in the given format.
func (o *Ops) Encode(src pipeline.Bitmap, format export.Format) ([]byte, error) {
	in, err := asImage(src)
	if err != nil {
		return nil, err
	}

	var buf *gocv.NativeByteBuffer
	if q, ok := format.JPEGQuality(); ok {
		buf, err = gocv.IMEncodeWithParams(gocv.JPEGFileExt, in.mat, []int{int(gocv.IMWriteJpegQuality), q})
	} else if format == export.PNG {
		buf, err = gocv.IMEncode(gocv.PNGFileExt, in.mat)
	} else {
		return nil, fmt.Errorf("%w: %q", export.ErrUnknownFormat, format)
	}
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", format, err)
	}
	defer buf.Close()

	return append([]byte(nil), buf.GetBytes()...), nil
}
