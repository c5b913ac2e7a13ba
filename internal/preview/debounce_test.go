package preview

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebouncerCollapsesBurst(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	var runs atomic.Int32
	got := make(chan int, 4)

	for i := 1; i <= 5; i++ {
		v := i
		d.Schedule(func() {
			runs.Add(1)
			got <- v
		})
	}
	assert.True(t, d.Pending())

	select {
	case v := <-got:
		assert.Equal(t, 5, v)
	case <-time.After(2 * time.Second):
		t.Fatal("debounced request never fired")
	}

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(1), runs.Load())
	assert.False(t, d.Pending())
}

func TestDebouncerCancel(t *testing.T) {
	d := NewDebouncer(10 * time.Millisecond)
	var runs atomic.Int32
	d.Schedule(func() { runs.Add(1) })

	assert.True(t, d.Cancel())
	assert.False(t, d.Cancel())

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), runs.Load())
}

func TestDebouncerFlush(t *testing.T) {
	d := NewDebouncer(time.Hour)
	ran := false
	d.Schedule(func() { ran = true })

	d.Flush()
	require.True(t, ran)
	assert.False(t, d.Pending())

	// Nothing pending is a no-op.
	d.Flush()
}

func TestDebouncerDefaultDelay(t *testing.T) {
	d := NewDebouncer(0)
	assert.Equal(t, DefaultDelay, d.delay)
}

func TestDebouncerTake(t *testing.T) {
	d := NewDebouncer(10 * time.Millisecond)
	var runs atomic.Int32
	d.Schedule(func() { runs.Add(1) })

	fn := d.Take()
	require.NotNil(t, fn)
	assert.False(t, d.Pending())
	assert.Nil(t, d.Take())

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), runs.Load())
	fn()
	assert.Equal(t, int32(1), runs.Load())
}
