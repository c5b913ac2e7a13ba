package grid

import (
	"errors"
	"sync"

	"painting-enhancer/pkg/geometry"
)

// ErrDragInProgress is returned when grid state is requested for a remap or
// a bulk edit while a point is still being dragged.
var ErrDragInProgress = errors.New("grid point drag in progress")

// DefaultHitRadius is the display-pixel distance within which a press grabs
// a point.
const DefaultHitRadius = 15.0

// DragState is the state of the point-drag state machine.
type DragState int

const (
	DragIdle DragState = iota
	DragActive
)

func (s DragState) String() string {
	switch s {
	case DragIdle:
		return "idle"
	case DragActive:
		return "active"
	default:
		return "unknown"
	}
}

// EventKind identifies a discrete pointer event.
type EventKind int

const (
	EventPress EventKind = iota
	EventMove
	EventRelease
	EventCancel
)

// InputEvent is a pointer event in display coordinates. Display is the size
// of the canvas the event happened on, which may differ between events.
type InputEvent struct {
	Kind    EventKind
	X, Y    float64
	Display geometry.Size
}

// Editor drives a Grid from pointer events through the transitions
// DragIdle -> DragActive(point) -> DragIdle. It is safe for concurrent use;
// readers never observe a half-finished drag.
type Editor struct {
	mu        sync.Mutex
	grid      *Grid
	hitRadius float64
	state     DragState
	active    int
}

// NewEditor creates an editor over g. A hitRadius <= 0 uses DefaultHitRadius.
func NewEditor(g *Grid, hitRadius float64) *Editor {
	if hitRadius <= 0 {
		hitRadius = DefaultHitRadius
	}
	return &Editor{grid: g, hitRadius: hitRadius, active: -1}
}

// HandleInputEvent applies one pointer event and reports whether any point
// moved or the drag state changed, so the caller knows to redraw.
func (e *Editor) HandleInputEvent(ev InputEvent) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.grid == nil {
		return false
	}
	if ev.Display.Empty() && (ev.Kind == EventPress || ev.Kind == EventMove) {
		return false
	}

	switch e.state {
	case DragIdle:
		if ev.Kind != EventPress {
			return false
		}
		hit := e.grid.FindNearest(ev.X, ev.Y, ev.Display)
		if hit.Index < 0 || hit.Distance > e.hitRadius {
			return false
		}
		e.state = DragActive
		e.active = hit.Index
		return true

	case DragActive:
		switch ev.Kind {
		case EventMove:
			e.grid.MovePoint(e.active, ev.X, ev.Y, ev.Display)
			return true
		case EventRelease:
			if !ev.Display.Empty() {
				e.grid.MovePoint(e.active, ev.X, ev.Y, ev.Display)
			}
			e.state = DragIdle
			e.active = -1
			return true
		case EventCancel:
			e.state = DragIdle
			e.active = -1
			return true
		}
	}
	return false
}

// State returns the current drag state and, when active, the dragged point.
func (e *Editor) State() (DragState, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state, e.active
}

// Snapshot returns a copy of the grid for remapping. It fails while a drag is
// in progress so a remap never sees a half-moved point.
func (e *Editor) Snapshot() (*Grid, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == DragActive {
		return nil, ErrDragInProgress
	}
	if e.grid == nil {
		return nil, nil
	}
	return e.grid.Clone(), nil
}

// View calls fn with the grid under the editor lock for read-only use such as
// rendering. fn must not retain the grid.
func (e *Editor) View(fn func(g *Grid, state DragState, active int)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.grid, e.state, e.active)
}

// Replace swaps in a new grid, e.g. after a new image is loaded. Any drag in
// progress is abandoned.
func (e *Editor) Replace(g *Grid) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.grid = g
	e.state = DragIdle
	e.active = -1
}

// ReplaceIfIdle swaps in g unless a drag is in progress, in which case the
// grid is left alone and ErrDragInProgress is returned.
func (e *Editor) ReplaceIfIdle(g *Grid) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == DragActive {
		return ErrDragInProgress
	}
	e.grid = g
	e.active = -1
	return nil
}

// Optimize runs Grid.Optimize unless a drag is in progress.
func (e *Editor) Optimize() error {
	return e.edit(func(g *Grid) error { g.Optimize(); return nil })
}

// Reset runs Grid.Reset unless a drag is in progress.
func (e *Editor) Reset() error {
	return e.edit(func(g *Grid) error { g.Reset(); return nil })
}

// FitQuadrilateral runs Grid.FitQuadrilateral unless a drag is in progress.
func (e *Editor) FitQuadrilateral(corners [4]geometry.Point2D) error {
	return e.edit(func(g *Grid) error { return g.FitQuadrilateral(corners) })
}

func (e *Editor) edit(fn func(g *Grid) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == DragActive {
		return ErrDragInProgress
	}
	if e.grid == nil {
		return nil
	}
	return fn(e.grid)
}
