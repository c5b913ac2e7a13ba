package mainwindow

import (
	"fmt"
	"strings"

	"painting-enhancer/internal/export"
	"painting-enhancer/internal/lens"
	"painting-enhancer/internal/pipeline"
	"painting-enhancer/internal/upscale"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
)

// Step tabs, in workflow order.
const (
	stepUpload = iota
	stepLens
	stepGrid
	stepLighting
	stepColor
	stepDownload
)

var stepStages = [...]pipeline.Stage{
	stepUpload:   pipeline.Uploaded,
	stepLens:     pipeline.LensCorrected,
	stepGrid:     pipeline.LensCorrected,
	stepLighting: pipeline.LightingCorrected,
	stepColor:    pipeline.ColorCorrected,
	stepDownload: pipeline.Upscaled,
}

// stepPanels holds the controls of the six workflow steps.
type stepPanels struct {
	mw *MainWindow

	// syncing suppresses change callbacks while controls are set from the
	// pipeline settings.
	syncing bool

	info *widget.Label

	profile *widget.Select
	lensAmt *widget.Slider

	lighting   *widget.Slider
	contrast   *widget.Slider
	saturation *widget.Slider

	autoColor *widget.Check
	colorAmt  *widget.Slider

	printSize *widget.Select
	format    *widget.Select
	estimate  *widget.Label
	sizeKeys  []string
}

func newStepPanels(mw *MainWindow) *stepPanels {
	return &stepPanels{mw: mw}
}

func (sp *stepPanels) tabs() []*container.TabItem {
	return []*container.TabItem{
		container.NewTabItem("1 Upload", sp.uploadPanel()),
		container.NewTabItem("2 Lens", sp.lensPanel()),
		container.NewTabItem("3 Grid", sp.gridPanel()),
		container.NewTabItem("4 Lighting", sp.lightingPanel()),
		container.NewTabItem("5 Color", sp.colorPanel()),
		container.NewTabItem("6 Download", sp.downloadPanel()),
	}
}

// previewStage is the stage previewed while step idx is selected.
func (sp *stepPanels) previewStage(idx int) pipeline.Stage {
	if idx < 0 || idx >= len(stepStages) {
		return pipeline.Uploaded
	}
	return stepStages[idx]
}

func (sp *stepPanels) showsGrid(idx int) bool {
	return idx == stepGrid
}

// indexFor returns the step to show for a pipeline stage.
func (sp *stepPanels) indexFor(stage pipeline.Stage) int {
	switch stage {
	case pipeline.Uploaded:
		return stepUpload
	case pipeline.LensCorrected:
		return stepLens
	case pipeline.GridCorrected:
		return stepGrid
	case pipeline.LightingCorrected:
		return stepLighting
	case pipeline.ColorCorrected:
		return stepColor
	default:
		return stepDownload
	}
}

// slider builds a labelled slider that updates a setting and previews the
// step's stage.
func (sp *stepPanels) slider(label string, min, max, step float64, stage pipeline.Stage, set func(*pipeline.Settings, float64)) (*widget.Slider, fyne.CanvasObject) {
	value := widget.NewLabel("")
	s := widget.NewSlider(min, max)
	s.Step = step
	s.OnChanged = func(v float64) {
		value.SetText(formatValue(v, step))
		if sp.syncing {
			return
		}
		sp.mw.state.UpdateSettings(func(st *pipeline.Settings) { set(st, v) })
		sp.mw.state.SchedulePreview(stage)
	}
	return s, container.NewBorder(nil, nil, widget.NewLabel(label), value, s)
}

func formatValue(v, step float64) string {
	if step >= 1 {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.2f", v)
}

func (sp *stepPanels) uploadPanel() fyne.CanvasObject {
	sp.info = widget.NewLabel("No image loaded")
	sp.info.Wrapping = fyne.TextWrapWord
	return container.NewVBox(
		widget.NewLabel("Photograph the painting straight on, in even light."),
		widget.NewButton("Open Image...", sp.mw.onOpenImage),
		widget.NewButton("Open Session...", sp.mw.onOpenSession),
		widget.NewSeparator(),
		sp.info,
	)
}

func (sp *stepPanels) lensPanel() fyne.CanvasObject {
	profiles := lens.Profiles()
	names := make([]string, len(profiles))
	for i, p := range profiles {
		names[i] = p.Name
	}
	sp.profile = widget.NewSelect(names, func(name string) {
		if sp.syncing {
			return
		}
		for _, p := range profiles {
			if p.Name == name {
				sp.mw.state.UpdateSettings(func(st *pipeline.Settings) { st.CameraProfile = p.Key })
				sp.mw.state.SchedulePreview(pipeline.LensCorrected)
				return
			}
		}
	})

	var amount fyne.CanvasObject
	sp.lensAmt, amount = sp.slider("Intensity", -100, 100, 1, pipeline.LensCorrected,
		func(st *pipeline.Settings, v float64) { st.LensIntensity = v })

	return container.NewVBox(
		widget.NewLabel("Camera"),
		sp.profile,
		amount,
		widget.NewButton("Detect Distortion", sp.mw.onDetectLens),
	)
}

func (sp *stepPanels) gridPanel() fyne.CanvasObject {
	help := widget.NewLabel("Drag the points onto the painting's edges and any straight lines. The image is straightened when you move on.")
	help.Wrapping = fyne.TextWrapWord
	return container.NewVBox(
		help,
		widget.NewButton("Detect Corners", sp.mw.onDetectCorners),
		widget.NewButton("Optimize Grid", sp.mw.onOptimizeGrid),
		widget.NewButton("Reset Grid", sp.mw.onResetGrid),
	)
}

func (sp *stepPanels) lightingPanel() fyne.CanvasObject {
	var glare, contrast, saturation fyne.CanvasObject
	sp.lighting, glare = sp.slider("Glare", 0, 100, 1, pipeline.LightingCorrected,
		func(st *pipeline.Settings, v float64) { st.LightingStrength = v })
	sp.contrast, contrast = sp.slider("Contrast", 0.5, 2, 0.01, pipeline.LightingCorrected,
		func(st *pipeline.Settings, v float64) { st.Contrast = v })
	sp.saturation, saturation = sp.slider("Saturation", 0, 2, 0.01, pipeline.LightingCorrected,
		func(st *pipeline.Settings, v float64) { st.Saturation = v })
	return container.NewVBox(glare, contrast, saturation)
}

func (sp *stepPanels) colorPanel() fyne.CanvasObject {
	var amount fyne.CanvasObject
	sp.colorAmt, amount = sp.slider("Intensity", 0, 100, 1, pipeline.ColorCorrected,
		func(st *pipeline.Settings, v float64) { st.ColorIntensity = v })
	sp.autoColor = widget.NewCheck("Automatic color balance", func(on bool) {
		if sp.syncing {
			return
		}
		sp.mw.state.UpdateSettings(func(st *pipeline.Settings) { st.AutoColor = on })
		sp.mw.state.SchedulePreview(pipeline.ColorCorrected)
	})
	return container.NewVBox(sp.autoColor, amount)
}

func (sp *stepPanels) downloadPanel() fyne.CanvasObject {
	sp.printSize = widget.NewSelect(nil, func(label string) {
		if sp.syncing {
			return
		}
		for i, opt := range sp.printSize.Options {
			if opt == label && i < len(sp.sizeKeys) {
				key := sp.sizeKeys[i]
				sp.mw.state.UpdateSettings(func(st *pipeline.Settings) { st.TargetSize = key })
				return
			}
		}
	})

	formats := make([]string, len(export.Formats))
	for i, f := range export.Formats {
		formats[i] = string(f)
	}
	sp.format = widget.NewSelect(formats, func(name string) {
		if sp.syncing {
			return
		}
		if f, err := export.ParseFormat(name); err == nil {
			sp.mw.state.UpdateSettings(func(st *pipeline.Settings) { st.OutputFormat = f })
		}
	})
	sp.estimate = widget.NewLabel("")

	upscaleBtn := widget.NewButton("Upscale for Print", sp.onUpscale)
	return container.NewVBox(
		widget.NewLabel("Print size"),
		sp.printSize,
		widget.NewLabel("Format"),
		sp.format,
		sp.estimate,
		upscaleBtn,
		widget.NewButton("Export...", sp.mw.onExport),
		widget.NewButton("Save Session", sp.mw.onSaveSession),
	)
}

func (sp *stepPanels) onUpscale() {
	state := sp.mw.state
	if !state.Pipeline().HasImage() {
		dialog.ShowError(pipeline.ErrNoImage, sp.mw.Window)
		return
	}
	go func() {
		if err := state.Apply(pipeline.Upscaled); err != nil {
			fyne.Do(func() { dialog.ShowError(err, sp.mw.Window) })
		}
	}()
}

// sync sets every control from the pipeline settings without triggering
// previews.
func (sp *stepPanels) sync() {
	sp.syncing = true
	defer func() { sp.syncing = false }()

	p := sp.mw.state.Pipeline()
	st := p.Settings()

	profile, _ := lens.Lookup(st.CameraProfile)
	sp.profile.SetSelected(profile.Name)
	sp.lensAmt.SetValue(st.LensIntensity)
	sp.lighting.SetValue(st.LightingStrength)
	sp.contrast.SetValue(st.Contrast)
	sp.saturation.SetValue(st.Saturation)
	sp.autoColor.SetChecked(st.AutoColor)
	sp.colorAmt.SetValue(st.ColorIntensity)
	sp.format.SetSelected(string(st.OutputFormat))

	var w, h int
	p.View(func(original, _ pipeline.Bitmap) {
		if original != nil {
			w, h = original.Width(), original.Height()
		}
	})
	if w == 0 || h == 0 {
		sp.info.SetText("No image loaded")
		return
	}
	sp.info.SetText(sp.describeImage(w, h))

	options := upscale.AvailablePrintSizes(w, h)
	sp.sizeKeys = sp.sizeKeys[:0]
	labels := make([]string, 0, len(options))
	selected := ""
	for _, opt := range options {
		label := fmt.Sprintf("%s (%.1fx)", opt.Name, opt.ScaleRequired)
		if opt.Recommended {
			label += " recommended"
		}
		labels = append(labels, label)
		sp.sizeKeys = append(sp.sizeKeys, opt.Key)
		if opt.Key == st.TargetSize {
			selected = label
		}
	}
	sp.printSize.Options = labels
	sp.printSize.SetSelected(selected)
	sp.updateEstimate()
}

func (sp *stepPanels) describeImage(w, h int) string {
	state := sp.mw.state
	var b strings.Builder
	fmt.Fprintf(&b, "%d x %d pixels", w, h)
	if state.ImageFormat != "" {
		fmt.Fprintf(&b, ", %s", strings.ToUpper(state.ImageFormat))
	}
	if state.DPI > 0 {
		fmt.Fprintf(&b, ", %.0f dpi", state.DPI)
	}
	return b.String()
}

// updateEstimate shows the output size and approximate file size for the
// selected print size and format.
func (sp *stepPanels) updateEstimate() {
	if sp.estimate == nil {
		return
	}
	p := sp.mw.state.Pipeline()
	st := p.Settings()
	var w, h int
	p.View(func(original, _ pipeline.Bitmap) {
		if original != nil {
			w, h = original.Width(), original.Height()
		}
	})
	if w == 0 || h == 0 {
		sp.estimate.SetText("")
		return
	}
	dims := upscale.OptimalDimensions(w, h, st.TargetSize)
	est := upscale.EstimateFileSize(dims.Width, dims.Height, string(st.OutputFormat))
	text := fmt.Sprintf("%d x %d pixels, about %s", dims.Width, dims.Height, est.Formatted)
	if !dims.AspectMatch {
		text += "\nAspect ratio differs from the print, so the image is fitted inside it."
	}
	sp.estimate.SetText(text)
}
