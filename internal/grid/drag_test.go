package grid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"painting-enhancer/pkg/geometry"
)

func TestEditorDragLifecycle(t *testing.T) {
	g := New(100, 80)
	e := NewEditor(g, 0)
	display := geometry.NewSize(200, 160)

	// Press far from any point does nothing.
	assert.False(t, e.HandleInputEvent(InputEvent{Kind: EventPress, X: 75, Y: 60, Display: display}))
	state, _ := e.State()
	assert.Equal(t, DragIdle, state)

	// Moves while idle are ignored.
	assert.False(t, e.HandleInputEvent(InputEvent{Kind: EventMove, X: 101, Y: 81, Display: display}))

	// (2,2) is at display (100,80).
	require.True(t, e.HandleInputEvent(InputEvent{Kind: EventPress, X: 101, Y: 79, Display: display}))
	state, active := e.State()
	assert.Equal(t, DragActive, state)
	assert.Equal(t, Index(2, 2), active)

	assert.True(t, e.HandleInputEvent(InputEvent{Kind: EventMove, X: 120, Y: 100, Display: display}))

	_, err := e.Snapshot()
	assert.ErrorIs(t, err, ErrDragInProgress)
	assert.ErrorIs(t, e.Optimize(), ErrDragInProgress)
	assert.ErrorIs(t, e.Reset(), ErrDragInProgress)

	assert.True(t, e.HandleInputEvent(InputEvent{Kind: EventRelease, X: 120, Y: 100, Display: display}))
	state, active = e.State()
	assert.Equal(t, DragIdle, state)
	assert.Equal(t, -1, active)

	snap, err := e.Snapshot()
	require.NoError(t, err)
	p := snap.At(2, 2)
	assert.InDelta(t, 60.0, p.X, 1e-12)
	assert.InDelta(t, 50.0, p.Y, 1e-12)

	// The snapshot is a copy.
	snap.Reset()
	e.View(func(g *Grid, _ DragState, _ int) {
		assert.InDelta(t, 60.0, g.At(2, 2).X, 1e-12)
	})
}

func TestEditorHitRadius(t *testing.T) {
	e := NewEditor(New(400, 400), 0)
	display := geometry.NewSize(400, 400)

	// 15 display pixels is still a hit, just beyond is not.
	assert.False(t, e.HandleInputEvent(InputEvent{Kind: EventPress, X: 15.5, Y: 0, Display: display}))
	assert.True(t, e.HandleInputEvent(InputEvent{Kind: EventPress, X: 15, Y: 0, Display: display}))
}

func TestEditorCancelKeepsMoves(t *testing.T) {
	e := NewEditor(New(100, 100), 5)
	display := geometry.NewSize(100, 100)

	require.True(t, e.HandleInputEvent(InputEvent{Kind: EventPress, X: 1, Y: 1, Display: display}))
	e.HandleInputEvent(InputEvent{Kind: EventMove, X: 10, Y: 12, Display: display})
	assert.True(t, e.HandleInputEvent(InputEvent{Kind: EventCancel}))

	snap, err := e.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, 10.0, snap.At(0, 0).X)
	assert.Equal(t, 12.0, snap.At(0, 0).Y)
}

func TestEditorIgnoresEmptyDisplay(t *testing.T) {
	e := NewEditor(New(100, 100), 0)
	assert.False(t, e.HandleInputEvent(InputEvent{Kind: EventPress, X: 0, Y: 0}))
}

func TestEditorReplaceAbandonsDrag(t *testing.T) {
	e := NewEditor(New(100, 100), 0)
	display := geometry.NewSize(100, 100)
	require.True(t, e.HandleInputEvent(InputEvent{Kind: EventPress, X: 0, Y: 0, Display: display}))

	e.Replace(New(50, 50))
	state, _ := e.State()
	assert.Equal(t, DragIdle, state)

	snap, err := e.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, 50.0, snap.Width())
}

func TestEditorNilGrid(t *testing.T) {
	e := NewEditor(nil, 0)
	assert.False(t, e.HandleInputEvent(InputEvent{Kind: EventPress, Display: geometry.NewSize(1, 1)}))
	snap, err := e.Snapshot()
	assert.NoError(t, err)
	assert.Nil(t, snap)
	assert.NoError(t, e.Optimize())
}

func TestEditorReplaceIfIdle(t *testing.T) {
	e := NewEditor(New(100, 100), 0)
	display := geometry.NewSize(100, 100)

	require.True(t, e.HandleInputEvent(InputEvent{Kind: EventPress, X: 0, Y: 0, Display: display}))
	assert.ErrorIs(t, e.ReplaceIfIdle(New(50, 50)), ErrDragInProgress)
	state, active := e.State()
	assert.Equal(t, DragActive, state)
	assert.Equal(t, Index(0, 0), active)

	require.True(t, e.HandleInputEvent(InputEvent{Kind: EventRelease, X: 0, Y: 0, Display: display}))
	require.NoError(t, e.ReplaceIfIdle(New(50, 50)))
	snap, err := e.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, 50.0, snap.Width())
}
