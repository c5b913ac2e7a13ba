// Package mainwindow provides the main application window.
package mainwindow

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"painting-enhancer/internal/app"
	"painting-enhancer/internal/export"
	"painting-enhancer/internal/loader"
	"painting-enhancer/internal/overlay"
	"painting-enhancer/internal/pipeline"
	"painting-enhancer/internal/session"
	"painting-enhancer/internal/version"
	"painting-enhancer/pkg/geometry"
	"painting-enhancer/ui/canvas"
	"painting-enhancer/ui/prefs"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"
	"github.com/rs/zerolog"
)

const appTitle = "Painting Enhancer"

// MainWindow is the primary application window.
type MainWindow struct {
	fyne.Window
	app   fyne.App
	state *app.State
	prefs *prefs.Prefs
	log   zerolog.Logger

	canvas    *canvas.ImageCanvas
	tabs      *container.AppTabs
	steps     *stepPanels
	statusBar *widget.Label
	progress  *widget.ProgressBar

	compareCheck  *widget.Check
	compareSelect *widget.Select
	compareSlider *widget.Slider
	gridCheck     *widget.Check
}

// New creates a new main window.
func New(fyneApp fyne.App, state *app.State, p *prefs.Prefs, log zerolog.Logger) *MainWindow {
	win := fyneApp.NewWindow(appTitle)

	mw := &MainWindow{
		Window: win,
		app:    fyneApp,
		state:  state,
		prefs:  p,
		log:    log,
	}

	mw.setupUI()
	mw.setupMenus()
	mw.setupEventHandlers()
	mw.SetCloseIntercept(mw.onClose)
	mw.Resize(fyne.NewSize(1280, 860))

	return mw
}

// setupUI creates the main UI layout.
func (mw *MainWindow) setupUI() {
	mw.canvas = canvas.NewImageCanvas()
	mw.canvas.SetGrid(mw.state.Pipeline().Grid())
	mw.canvas.OnGridEvent(mw.state.HandleGridEvent)

	mw.statusBar = widget.NewLabel("Open a photo of a painting to begin")
	mw.progress = widget.NewProgressBar()
	mw.progress.Hide()

	mw.steps = newStepPanels(mw)
	mw.tabs = container.NewAppTabs(mw.steps.tabs()...)
	mw.tabs.SetTabLocation(container.TabLocationTop)
	mw.tabs.OnSelected = func(*container.TabItem) { mw.onStepSelected() }

	canvasArea := container.NewBorder(
		mw.createToolbar(), // top
		nil,                // bottom
		nil,                // left
		nil,                // right
		mw.canvas,          // center
	)

	split := container.NewHSplit(mw.tabs, canvasArea)
	split.SetOffset(0.28)

	content := container.NewBorder(
		nil, // top
		container.NewPadded(container.NewBorder(nil, nil, nil, container.NewGridWrap(fyne.NewSize(200, 20), mw.progress), mw.statusBar)),
		nil, // left
		nil, // right
		split,
	)

	mw.SetContent(content)
}

// createToolbar creates the before/after comparison controls.
func (mw *MainWindow) createToolbar() fyne.CanvasObject {
	modes := []string{
		overlay.CompareSplit.String(),
		overlay.CompareBlend.String(),
		overlay.CompareDifference.String(),
	}
	mw.compareSelect = widget.NewSelect(modes, func(string) { mw.updateCompare() })
	saved := mw.prefs.Get()
	mode := saved.CompareMode
	if mode == "" {
		mode = modes[0]
	}
	mw.compareSelect.SetSelected(mode)

	mw.compareSlider = widget.NewSlider(0, 1)
	mw.compareSlider.Step = 0.01
	mw.compareSlider.SetValue(saved.CompareAmount)
	mw.compareSlider.OnChanged = func(float64) { mw.updateCompare() }

	mw.compareCheck = widget.NewCheck("Compare with original", func(bool) { mw.updateCompare() })

	mw.gridCheck = widget.NewCheck("Show grid", func(show bool) {
		mw.prefs.Update(func(v *prefs.Values) { v.ShowGrid = show })
		mw.updateGridOverlay()
	})
	mw.gridCheck.SetChecked(saved.ShowGrid)

	return container.NewBorder(nil, nil,
		container.NewHBox(mw.compareCheck, mw.compareSelect),
		mw.gridCheck,
		mw.compareSlider,
	)
}

// updateGridOverlay shows the grid on the grid step unless the user hid it.
func (mw *MainWindow) updateGridOverlay() {
	if mw.tabs == nil || mw.steps == nil {
		return
	}
	show := mw.steps.showsGrid(mw.tabs.SelectedIndex()) && mw.prefs.Get().ShowGrid
	mw.canvas.ShowGrid(show)
}

func (mw *MainWindow) compareMode() overlay.CompareMode {
	switch mw.compareSelect.Selected {
	case overlay.CompareBlend.String():
		return overlay.CompareBlend
	case overlay.CompareDifference.String():
		return overlay.CompareDifference
	default:
		return overlay.CompareSplit
	}
}

func (mw *MainWindow) updateCompare() {
	if mw.compareCheck == nil || mw.compareSlider == nil {
		return
	}
	mw.prefs.Update(func(v *prefs.Values) {
		v.CompareMode = mw.compareSelect.Selected
		v.CompareAmount = mw.compareSlider.Value
	})
	mw.canvas.SetCompare(mw.compareCheck.Checked, mw.compareMode(), mw.compareSlider.Value)
}

// setupMenus creates the application menus.
func (mw *MainWindow) setupMenus() {
	fileMenu := fyne.NewMenu("File",
		fyne.NewMenuItem("Open Image...", mw.onOpenImage),
		fyne.NewMenuItem("Open Session...", mw.onOpenSession),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Save Session", mw.onSaveSession),
		fyne.NewMenuItem("Save Session As...", mw.onSaveSessionAs),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Export...", mw.onExport),
	)

	editMenu := fyne.NewMenu("Edit",
		fyne.NewMenuItem("Optimize Grid", mw.onOptimizeGrid),
		fyne.NewMenuItem("Reset Grid", mw.onResetGrid),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Discard Corrections", mw.onDiscardCorrections),
	)

	toolsMenu := fyne.NewMenu("Tools",
		fyne.NewMenuItem("Detect Lens Distortion", mw.onDetectLens),
		fyne.NewMenuItem("Detect Painting Corners", mw.onDetectCorners),
	)

	helpMenu := fyne.NewMenu("Help",
		fyne.NewMenuItem("About", mw.onAbout),
	)

	mw.SetMainMenu(fyne.NewMainMenu(fileMenu, editMenu, toolsMenu, helpMenu))
}

// setupEventHandlers registers for application events. Events may arrive on
// background goroutines, so widget updates go through fyne.Do.
func (mw *MainWindow) setupEventHandlers() {
	mw.state.On(app.EventImageLoaded, func(data interface{}) {
		path, _ := data.(string)
		fyne.Do(func() {
			mw.SetTitle(appTitle + " - " + filepath.Base(path))
			mw.canvas.ClearQuad()
			mw.steps.sync()
			mw.tabs.SelectIndex(0)
			mw.onStepSelected()
			mw.updateStatus("Loaded " + filepath.Base(path))
		})
	})

	mw.state.On(app.EventStageApplied, func(data interface{}) {
		stage, _ := data.(pipeline.Stage)
		fyne.Do(func() {
			mw.progress.Hide()
			mw.refreshPreview()
			mw.updateStatus("Applied " + stage.String())
		})
	})

	mw.state.On(app.EventStageFailed, func(data interface{}) {
		err, _ := data.(error)
		fyne.Do(func() {
			mw.progress.Hide()
			if err != nil {
				mw.updateStatus("Failed: " + err.Error())
			}
		})
	})

	mw.state.On(app.EventProgress, func(data interface{}) {
		p, ok := data.(app.Progress)
		if !ok {
			return
		}
		fyne.Do(func() {
			mw.progress.Show()
			mw.progress.SetValue(float64(p.Percent) / 100)
		})
	})

	mw.state.On(app.EventGridChanged, func(interface{}) {
		fyne.Do(mw.canvas.Refresh)
	})

	mw.state.On(app.EventSettingsChanged, func(interface{}) {
		fyne.Do(mw.steps.updateEstimate)
	})

	mw.state.On(app.EventSessionLoaded, func(data interface{}) {
		path, _ := data.(string)
		fyne.Do(func() {
			mw.steps.sync()
			mw.tabs.SelectIndex(mw.steps.indexFor(mw.state.Pipeline().Stage()))
			mw.refreshPreview()
			mw.updateStatus("Session loaded: " + filepath.Base(path))
		})
	})

	mw.state.On(app.EventSessionSaved, func(data interface{}) {
		path, _ := data.(string)
		fyne.Do(func() { mw.updateStatus("Session saved: " + filepath.Base(path)) })
	})

	mw.state.On(app.EventExported, func(data interface{}) {
		path, _ := data.(string)
		fyne.Do(func() { mw.updateStatus("Exported " + filepath.Base(path)) })
	})

	mw.state.On(app.EventModified, func(data interface{}) {
		modified, _ := data.(bool)
		fyne.Do(func() {
			title := strings.TrimSuffix(mw.Title(), " *")
			if modified {
				title += " *"
			}
			mw.SetTitle(title)
		})
	})

	mw.state.On(app.EventConfigReloaded, func(interface{}) {
		fyne.Do(func() { mw.updateStatus("Configuration reloaded") })
	})
}

// refreshPreview renders the current and original images off the UI
// goroutine and hands the reduced previews to the canvas.
func (mw *MainWindow) refreshPreview() {
	maxSize := mw.state.Config().Preview.MaxSize
	stage := mw.state.Pipeline().Stage()
	go func() {
		original, current, err := mw.state.Images()
		if err != nil {
			mw.log.Error().Err(err).Msg("render preview")
			return
		}
		if original == nil {
			return
		}
		before := overlay.Fit(original, maxSize)
		after := before
		if current != original {
			after = overlay.Fit(current, maxSize)
		}
		fyne.Do(func() {
			mw.canvas.SetBefore(before)
			mw.canvas.SetImage(after)
			mw.canvas.SetLabel(strings.ToUpper(stage.String()))
		})
	}()
}

// onStepSelected shows the grid on the grid step and previews the stage the
// selected step ends at.
func (mw *MainWindow) onStepSelected() {
	idx := mw.tabs.SelectedIndex()
	mw.updateGridOverlay()
	if !mw.state.Pipeline().HasImage() {
		return
	}
	stage := mw.steps.previewStage(idx)
	if stage == pipeline.Uploaded || stage >= pipeline.Upscaled {
		mw.refreshPreview()
		return
	}
	mw.state.SchedulePreview(stage)
}

// updateStatus updates the status bar text.
func (mw *MainWindow) updateStatus(text string) {
	mw.statusBar.SetText(text)
}

// getLastDir returns the last used directory as a ListableURI, or nil.
func (mw *MainWindow) getLastDir() fyne.ListableURI {
	path := mw.prefs.Get().LastDirectory
	if path == "" {
		return nil
	}
	listable, err := storage.ListerForURI(storage.NewFileURI(path))
	if err != nil {
		return nil
	}
	return listable
}

// saveLastDir saves the directory of the given file path.
func (mw *MainWindow) saveLastDir(filePath string) {
	mw.prefs.Update(func(v *prefs.Values) { v.LastDirectory = filepath.Dir(filePath) })
}

// RestoreLastImage reopens the image from the previous run, if any.
func (mw *MainWindow) RestoreLastImage() {
	path := mw.prefs.Get().LastImage
	if path == "" {
		return
	}
	go func() {
		if err := mw.state.LoadImage(path); err != nil {
			mw.log.Warn().Err(err).Str("path", path).Msg("could not restore last image")
		}
	}()
}

// OpenPath opens an image or, for session files, a session.
func (mw *MainWindow) OpenPath(path string) {
	go func() {
		var err error
		if strings.HasSuffix(path, session.Extension) {
			err = mw.state.LoadSession(path)
		} else {
			err = mw.state.LoadImage(path)
		}
		if err != nil {
			fyne.Do(func() { dialog.ShowError(err, mw.Window) })
			return
		}
		mw.prefs.Update(func(v *prefs.Values) { v.LastImage = mw.state.ImagePath })
	}()
}

// SavePreferences writes the preferences file if anything changed.
func (mw *MainWindow) SavePreferences() {
	if err := mw.prefs.Save(); err != nil {
		mw.log.Warn().Err(err).Msg("save preferences")
	}
}

// Menu action handlers

func (mw *MainWindow) openDialog(extensions []string, onPath func(string)) {
	fd := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil || reader == nil {
			return
		}
		reader.Close()
		path := reader.URI().Path()
		mw.saveLastDir(path)
		onPath(path)
	}, mw.Window)
	fd.SetFilter(storage.NewExtensionFileFilter(extensions))
	if loc := mw.getLastDir(); loc != nil {
		fd.SetLocation(loc)
	}
	fd.Show()
}

func (mw *MainWindow) saveDialog(name string, onPath func(string)) {
	fd := dialog.NewFileSave(func(writer fyne.URIWriteCloser, err error) {
		if err != nil || writer == nil {
			return
		}
		writer.Close()
		path := writer.URI().Path()
		mw.saveLastDir(path)
		onPath(path)
	}, mw.Window)
	fd.SetFileName(name)
	if loc := mw.getLastDir(); loc != nil {
		fd.SetLocation(loc)
	}
	fd.Show()
}

func (mw *MainWindow) onOpenImage() {
	mw.openDialog(loader.SupportedFormats(), mw.OpenPath)
}

func (mw *MainWindow) onOpenSession() {
	mw.openDialog([]string{".json"}, mw.OpenPath)
}

func (mw *MainWindow) onSaveSession() {
	if err := mw.state.SaveSession(""); err != nil {
		dialog.ShowError(err, mw.Window)
	}
}

func (mw *MainWindow) onSaveSessionAs() {
	if !mw.state.Pipeline().HasImage() {
		dialog.ShowError(pipeline.ErrNoImage, mw.Window)
		return
	}
	name := filepath.Base(session.DefaultPath(mw.state.ImagePath))
	mw.saveDialog(name, func(path string) {
		if !strings.HasSuffix(path, session.Extension) {
			path = strings.TrimSuffix(path, filepath.Ext(path)) + session.Extension
		}
		if err := mw.state.SaveSession(path); err != nil {
			dialog.ShowError(err, mw.Window)
		}
	})
}

func (mw *MainWindow) onExport() {
	if !mw.state.Pipeline().HasImage() {
		dialog.ShowError(pipeline.ErrNoImage, mw.Window)
		return
	}
	format := mw.state.Pipeline().Settings().OutputFormat
	mw.saveDialog(export.DefaultFilename(format, time.Now()), func(path string) {
		go func() {
			if err := mw.state.Export(path, ""); err != nil {
				fyne.Do(func() { dialog.ShowError(err, mw.Window) })
			}
		}()
	})
}

func (mw *MainWindow) onOptimizeGrid() {
	if err := mw.state.OptimizeGrid(); err != nil {
		dialog.ShowError(err, mw.Window)
	}
}

func (mw *MainWindow) onResetGrid() {
	if err := mw.state.ResetGrid(); err != nil {
		dialog.ShowError(err, mw.Window)
		return
	}
	mw.canvas.ClearQuad()
}

// imageSize is the size of the loaded original, which grid and detected
// corners are expressed in.
func (mw *MainWindow) imageSize() geometry.Size {
	var size geometry.Size
	mw.state.Pipeline().View(func(original, _ pipeline.Bitmap) {
		if original != nil {
			size = geometry.SizeOf(original.Width(), original.Height())
		}
	})
	return size
}

func (mw *MainWindow) onDiscardCorrections() {
	mw.state.Pipeline().Reset()
	mw.tabs.SelectIndex(0)
	mw.refreshPreview()
}

func (mw *MainWindow) onDetectLens() {
	go func() {
		intensity, det := mw.state.DetectLens()
		fyne.Do(func() {
			mw.steps.sync()
			if det.FellBack {
				mw.updateStatus(det.Message)
			} else {
				mw.updateStatus(fmt.Sprintf("Suggested lens correction: %d", intensity))
			}
			mw.onStepSelected()
		})
	}()
}

func (mw *MainWindow) onDetectCorners() {
	go func() {
		corners, det := mw.state.DetectCorners()
		size := mw.imageSize()
		fyne.Do(func() {
			mw.canvas.SetQuad(corners, size)
			if det.FellBack {
				mw.updateStatus(det.Message)
			} else {
				mw.updateStatus("Grid fitted to the painting")
			}
			mw.canvas.Refresh()
		})
	}()
}

func (mw *MainWindow) onAbout() {
	dialog.ShowInformation("About "+appTitle,
		fmt.Sprintf("%s v%s\n\n"+
			"Corrects photographs of paintings: lens distortion,\n"+
			"perspective, glare and color, then upscales for print.\n\n"+
			"Built: %s\n"+
			"Commit: %s",
			appTitle, version.Version, version.BuildTime, version.GitCommit),
		mw.Window)
}

func (mw *MainWindow) onClose() {
	mw.SavePreferences()
	mw.state.Close()
	mw.Window.Close()
}
