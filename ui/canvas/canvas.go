// Package canvas provides the preview canvas with the draggable control grid.
package canvas

import (
	"image"
	"image/color"
	"sync"

	"fyne.io/fyne/v2"
	fynecanvas "fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"
	"golang.org/x/image/draw"

	"painting-enhancer/internal/grid"
	"painting-enhancer/internal/overlay"
	"painting-enhancer/pkg/geometry"
)

var background = color.RGBA{48, 48, 48, 255}

// ImageCanvas shows the preview image letterboxed in the widget, optionally
// with the control grid or a before/after comparison on top.
type ImageCanvas struct {
	widget.BaseWidget

	mu      sync.Mutex
	raster  *fynecanvas.Raster
	img     image.Image
	before  image.Image
	label   string
	compare bool
	mode    overlay.CompareMode
	amount  float64

	editor   *grid.Editor
	showGrid bool
	style    overlay.Style

	// Detected painting outline in image coordinates, drawn with the grid.
	quad     *[4]geometry.Point2D
	quadSize geometry.Size

	// Layout of the last draw: where the image sits in raster pixels and
	// how many raster pixels make one fyne unit.
	imageRect image.Rectangle
	pxPerUnit float64
	lastDrag  fyne.Position

	onGridEvent func(grid.InputEvent) bool
}

var (
	_ desktop.Mouseable = (*ImageCanvas)(nil)
	_ fyne.Draggable    = (*ImageCanvas)(nil)
)

// NewImageCanvas creates an empty canvas.
func NewImageCanvas() *ImageCanvas {
	ic := &ImageCanvas{
		style:     overlay.DefaultStyle(),
		amount:    0.5,
		pxPerUnit: 1,
	}
	ic.raster = fynecanvas.NewRaster(ic.draw)
	ic.raster.ScaleMode = fynecanvas.ImageScalePixels
	ic.ExtendBaseWidget(ic)
	return ic
}

// SetImage replaces the displayed image. Callers pass a preview already
// reduced to a sensible size.
func (ic *ImageCanvas) SetImage(img image.Image) {
	ic.mu.Lock()
	ic.img = img
	ic.mu.Unlock()
	ic.Refresh()
}

// SetBefore sets the image the comparison modes compare against.
func (ic *ImageCanvas) SetBefore(img image.Image) {
	ic.mu.Lock()
	ic.before = img
	ic.mu.Unlock()
	ic.Refresh()
}

// SetCompare turns the before/after comparison on or off.
func (ic *ImageCanvas) SetCompare(enabled bool, mode overlay.CompareMode, amount float64) {
	ic.mu.Lock()
	ic.compare, ic.mode, ic.amount = enabled, mode, amount
	ic.mu.Unlock()
	ic.Refresh()
}

// SetLabel sets the badge shown in the top-left corner.
func (ic *ImageCanvas) SetLabel(label string) {
	ic.mu.Lock()
	ic.label = label
	ic.mu.Unlock()
	ic.Refresh()
}

// SetGrid attaches the grid editor drawn over the image.
func (ic *ImageCanvas) SetGrid(editor *grid.Editor) {
	ic.mu.Lock()
	ic.editor = editor
	ic.mu.Unlock()
}

// SetQuad outlines a detected quadrilateral given in the coordinates of an
// image of size source.
func (ic *ImageCanvas) SetQuad(corners [4]geometry.Point2D, source geometry.Size) {
	ic.mu.Lock()
	ic.quad, ic.quadSize = &corners, source
	ic.mu.Unlock()
	ic.Refresh()
}

// ClearQuad removes the quadrilateral outline.
func (ic *ImageCanvas) ClearQuad() {
	ic.mu.Lock()
	ic.quad = nil
	ic.mu.Unlock()
	ic.Refresh()
}

// ShowGrid shows or hides the grid. Pointer events only reach the editor
// while the grid is shown.
func (ic *ImageCanvas) ShowGrid(show bool) {
	ic.mu.Lock()
	ic.showGrid = show
	ic.mu.Unlock()
	ic.Refresh()
}

// OnGridEvent sets the callback receiving pointer events in display
// coordinates. It reports whether the canvas needs a redraw.
func (ic *ImageCanvas) OnGridEvent(callback func(grid.InputEvent) bool) {
	ic.mu.Lock()
	ic.onGridEvent = callback
	ic.mu.Unlock()
}

// MouseDown starts a drag if the press is near a grid point.
func (ic *ImageCanvas) MouseDown(ev *desktop.MouseEvent) {
	if ev.Button != desktop.MouseButtonPrimary {
		return
	}
	ic.lastDrag = ev.Position
	ic.send(grid.EventPress, ev.Position)
}

// MouseUp drops the dragged point.
func (ic *ImageCanvas) MouseUp(ev *desktop.MouseEvent) {
	ic.send(grid.EventRelease, ev.Position)
}

// Dragged moves the dragged point.
func (ic *ImageCanvas) Dragged(ev *fyne.DragEvent) {
	ic.lastDrag = ev.Position
	ic.send(grid.EventMove, ev.Position)
}

// DragEnd drops the point where the drag ended. A release already handled
// by MouseUp is ignored by the editor.
func (ic *ImageCanvas) DragEnd() {
	ic.send(grid.EventRelease, ic.lastDrag)
}

func (ic *ImageCanvas) send(kind grid.EventKind, pos fyne.Position) {
	ic.mu.Lock()
	cb, show := ic.onGridEvent, ic.showGrid
	ev := ic.toDisplay(kind, pos)
	ic.mu.Unlock()

	if cb == nil || !show {
		return
	}
	if cb(ev) {
		ic.Refresh()
	}
}

// toDisplay converts a widget position to coordinates within the drawn
// image. The caller holds ic.mu.
func (ic *ImageCanvas) toDisplay(kind grid.EventKind, pos fyne.Position) grid.InputEvent {
	r := ic.imageRect
	return grid.InputEvent{
		Kind:    kind,
		X:       float64(pos.X)*ic.pxPerUnit - float64(r.Min.X),
		Y:       float64(pos.Y)*ic.pxPerUnit - float64(r.Min.Y),
		Display: geometry.SizeOf(r.Dx(), r.Dy()),
	}
}

// fitRect centers an image of size src in a w x h area, keeping its aspect.
func fitRect(src image.Point, w, h int) image.Rectangle {
	if src.X <= 0 || src.Y <= 0 || w <= 0 || h <= 0 {
		return image.Rectangle{}
	}
	scale := min(float64(w)/float64(src.X), float64(h)/float64(src.Y))
	dw := max(1, int(float64(src.X)*scale))
	dh := max(1, int(float64(src.Y)*scale))
	x := (w - dw) / 2
	y := (h - dh) / 2
	return image.Rect(x, y, x+dw, y+dh)
}

func (ic *ImageCanvas) draw(w, h int) image.Image {
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(out, out.Bounds(), &image.Uniform{background}, image.Point{}, draw.Src)

	ic.mu.Lock()
	img, before, label := ic.img, ic.before, ic.label
	compare, mode, amount := ic.compare, ic.mode, ic.amount
	editor, showGrid, style := ic.editor, ic.showGrid, ic.style
	quad, quadSize := ic.quad, ic.quadSize
	if size := ic.Size(); size.Width > 0 {
		ic.pxPerUnit = float64(w) / float64(size.Width)
	}
	ic.mu.Unlock()

	if img == nil {
		return out
	}
	rect := fitRect(img.Bounds().Size(), w, h)
	if rect.Empty() {
		return out
	}

	shown := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.ApproxBiLinear.Scale(shown, shown.Bounds(), img, img.Bounds(), draw.Src, nil)

	var result image.Image = shown
	if compare && before != nil {
		result = overlay.Compare(before, shown, mode, amount)
	}
	if showGrid && quad != nil {
		if outlined, err := overlay.DrawQuad(result, *quad, quadSize, style.Active, style.LineWidth); err == nil {
			result = outlined
		}
	}
	if showGrid && editor != nil {
		editor.View(func(g *grid.Grid, _ grid.DragState, active int) {
			if withGrid, err := overlay.DrawGrid(result, g, active, style); err == nil {
				result = withGrid
			}
		})
	}
	draw.Draw(out, rect, result, image.Point{}, draw.Src)

	if label != "" {
		drawBadge(out, label, 8, 8, 2)
	}
	if compare && before != nil && mode == overlay.CompareSplit {
		drawBadge(out, "BEFORE", rect.Min.X+8, rect.Max.Y-26, 2)
		tw, _ := textSize("AFTER", 2)
		drawBadge(out, "AFTER", rect.Max.X-tw-16, rect.Max.Y-26, 2)
	}

	ic.mu.Lock()
	ic.imageRect = rect
	ic.mu.Unlock()
	return out
}

// CreateRenderer implements fyne.Widget.
func (ic *ImageCanvas) CreateRenderer() fyne.WidgetRenderer {
	return &imageCanvasRenderer{canvas: ic}
}

type imageCanvasRenderer struct {
	canvas *ImageCanvas
}

func (r *imageCanvasRenderer) Layout(size fyne.Size) {
	r.canvas.raster.Resize(size)
}

func (r *imageCanvasRenderer) MinSize() fyne.Size {
	return fyne.NewSize(320, 240)
}

func (r *imageCanvasRenderer) Refresh() {
	r.canvas.raster.Refresh()
}

func (r *imageCanvasRenderer) Objects() []fyne.CanvasObject {
	return []fyne.CanvasObject{r.canvas.raster}
}

func (r *imageCanvasRenderer) Destroy() {}
