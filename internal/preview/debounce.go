// Package preview schedules live preview renders so a burst of setting
// changes produces a single render once input goes quiet.
package preview

import (
	"sync"
	"time"
)

// DefaultDelay is the quiet interval before a pending render fires.
const DefaultDelay = 300 * time.Millisecond

// Debouncer holds at most one pending request. Scheduling a new request
// replaces the pending one and restarts the quiet interval.
type Debouncer struct {
	mu      sync.Mutex
	delay   time.Duration
	timer   *time.Timer
	pending func()
	gen     uint64
}

// NewDebouncer creates a debouncer. A delay <= 0 uses DefaultDelay.
func NewDebouncer(delay time.Duration) *Debouncer {
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Debouncer{delay: delay}
}

// Schedule replaces any pending request with fn, to run on its own goroutine
// after the quiet interval.
func (d *Debouncer) Schedule(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopLocked()
	d.gen++
	gen := d.gen
	d.pending = fn
	d.timer = time.AfterFunc(d.delay, func() { d.fire(gen) })
}

func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if gen != d.gen || d.pending == nil {
		// Superseded or cancelled after the timer already fired.
		d.mu.Unlock()
		return
	}
	fn := d.pending
	d.pending = nil
	d.timer = nil
	d.mu.Unlock()

	fn()
}

// Cancel drops the pending request. It reports whether one was pending.
func (d *Debouncer) Cancel() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	had := d.pending != nil
	d.stopLocked()
	d.gen++
	return had
}

// Take removes the pending request without running it and returns it, or nil
// when nothing is pending.
func (d *Debouncer) Take() func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn := d.pending
	d.stopLocked()
	d.gen++
	return fn
}

// Flush runs the pending request now, on the caller's goroutine.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	fn := d.pending
	d.stopLocked()
	d.gen++
	d.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// Pending reports whether a request is waiting to fire.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending != nil
}

func (d *Debouncer) stopLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.pending = nil
}
