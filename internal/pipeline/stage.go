package pipeline

import (
	"errors"
	"fmt"
)

// Stage is a point in the fixed correction order.
type Stage int

const (
	Uploaded Stage = iota
	LensCorrected
	GridCorrected
	LightingCorrected
	ColorCorrected
	Upscaled
	Downloaded
)

var stageNames = [...]string{
	Uploaded:          "uploaded",
	LensCorrected:     "lens",
	GridCorrected:     "grid",
	LightingCorrected: "lighting",
	ColorCorrected:    "color",
	Upscaled:          "upscale",
	Downloaded:        "download",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return stageNames[s]
}

// ParseStage looks a stage up by the name String returns.
func ParseStage(name string) (Stage, error) {
	for i, n := range stageNames {
		if n == name {
			return Stage(i), nil
		}
	}
	return 0, fmt.Errorf("unknown stage %q", name)
}

var (
	// ErrNoImage is returned when an operation needs a loaded image.
	ErrNoImage = errors.New("no image loaded")
	// ErrInvalidStage is returned for stages that cannot be applied.
	ErrInvalidStage = errors.New("invalid stage")
	// ErrNilResult is reported when an image operation returns no bitmap.
	ErrNilResult = errors.New("image operation returned no result")
	// ErrStale is returned when a new image was loaded or the corrections
	// were discarded while a run was in progress. Nothing is committed.
	ErrStale = errors.New("image changed while stages were running")
)

// StageError reports a failed stage. The pipeline state is unchanged when
// one is returned.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
