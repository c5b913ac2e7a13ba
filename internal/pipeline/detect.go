package pipeline

import (
	"fmt"

	"painting-enhancer/internal/lens"
	"painting-enhancer/pkg/geometry"
)

// Detection describes how an auto-detection ended. Detection never fails:
// when nothing usable is found a default is applied and FellBack is set.
type Detection struct {
	FellBack bool
	Message  string
}

// DetectLensIntensity estimates lens distortion from straight lines in the
// uploaded image and stores the suggestion in the settings. When no lines
// are usable the intensity is set to 0.
func (p *Pipeline) DetectLensIntensity() (int, Detection) {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	j, err := p.begin()
	if err != nil {
		return 0, Detection{FellBack: true, Message: "No image to analyze"}
	}
	set, err := p.ops.DetectLines(j.original)

	p.mu.Lock()
	defer p.mu.Unlock()
	defer p.finish()

	if p.original != j.original {
		return 0, Detection{FellBack: true, Message: "Image changed during detection"}
	}
	if err != nil {
		p.log.Warn().Err(err).Msg("lens detection failed, using no correction")
		p.settings.LensIntensity = 0
		return 0, Detection{FellBack: true, Message: "Lens detection failed, no correction applied"}
	}

	intensity := lens.EstimateIntensity(set.Lines, set.Width, set.Height, p.settings.CameraProfile)
	p.settings.LensIntensity = float64(intensity)
	if intensity == 0 {
		p.log.Warn().Int("lines", len(set.Lines)).Msg("no distortion cues found, using no correction")
		return 0, Detection{FellBack: true, Message: "No significant lens distortion detected"}
	}

	p.log.Info().Int("lines", len(set.Lines)).Int("intensity", intensity).Msg("lens distortion detected")
	return intensity, Detection{Message: fmt.Sprintf("Suggested lens correction: %d", intensity)}
}

// DetectCorners finds the painting outline and fits the control grid to it.
// Without a usable outline the grid is fitted to the default 10% inset.
func (p *Pipeline) DetectCorners() ([4]geometry.Point2D, Detection) {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	j, err := p.begin()
	if err != nil {
		return [4]geometry.Point2D{}, Detection{FellBack: true, Message: "No image to analyze"}
	}
	fallback := lens.DefaultQuad(j.original.Width(), j.original.Height())

	src := p.gridSource(j)
	corners, found, err := p.ops.DetectQuadrilateral(src)
	if !j.pins(src) {
		src.Release()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	defer p.finish()

	if p.original != j.original {
		return fallback, Detection{FellBack: true, Message: "Image changed during detection"}
	}
	switch {
	case err != nil:
		p.log.Warn().Err(err).Msg("corner detection failed, using default outline")
		return p.fitDefault(fallback, "Corner detection failed, using default outline")
	case !found:
		p.log.Warn().Msg("no painting outline found, using default outline")
		return p.fitDefault(fallback, "No painting outline found, using default outline")
	}

	corners = lens.OrderCorners(corners)
	if err := p.editor.FitQuadrilateral(corners); err != nil {
		p.log.Warn().Err(err).Msg("detected outline unusable, using default outline")
		return p.fitDefault(fallback, "Detected outline unusable, using default outline")
	}
	p.log.Info().Interface("corners", corners).Msg("painting corners detected")
	return corners, Detection{Message: "Painting corners detected"}
}

// gridSource returns the image the control grid is laid out on: the lens
// corrected original. Past the lens stage the current image is already
// remapped or resized, so the lens stage is rebuilt from the original. A
// returned bitmap not pinned by j belongs to the caller.
func (p *Pipeline) gridSource(j job) Bitmap {
	if j.stage <= LensCorrected {
		return j.current
	}
	out, _, err := p.lensStage(j.original, j.settings)
	if err == nil && out == nil {
		err = ErrNilResult
	}
	if err != nil {
		p.log.Warn().Err(err).Msg("lens correction for corner detection failed, using the original")
		return j.original
	}
	return out
}

func (p *Pipeline) fitDefault(quad [4]geometry.Point2D, msg string) ([4]geometry.Point2D, Detection) {
	if err := p.editor.FitQuadrilateral(quad); err != nil {
		// Only reachable while a point is being dragged.
		p.log.Warn().Err(err).Msg("grid not updated")
		return quad, Detection{FellBack: true, Message: msg + " (grid busy)"}
	}
	return quad, Detection{FellBack: true, Message: msg}
}
