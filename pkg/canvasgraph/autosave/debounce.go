package autosave

import (
	"sync"
	"time"
)

// Debouncer coalesces bursts of triggers into a single trailing call:
// fn runs once the triggers stop for a full interval. Every new
// trigger cancels and reschedules the pending call.
type Debouncer struct {
	interval time.Duration
	fn       func()

	mu     sync.Mutex
	timer  *time.Timer
	closed bool
}

// NewDebouncer creates a trailing debouncer around fn.
func NewDebouncer(interval time.Duration, fn func()) *Debouncer {
	return &Debouncer{interval: interval, fn: fn}
}

// Trigger schedules fn after the idle interval, cancelling any pending
// schedule. No-op after Close.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, d.fire)
}

func (d *Debouncer) fire() {
	d.mu.Lock()
	d.timer = nil
	closed := d.closed
	d.mu.Unlock()

	if !closed {
		d.fn()
	}
}

// Flush runs fn immediately if a call is pending, cancelling the
// schedule. Returns whether a pending call was flushed.
func (d *Debouncer) Flush() bool {
	d.mu.Lock()
	pending := d.timer != nil
	if pending {
		d.timer.Stop()
		d.timer = nil
	}
	closed := d.closed
	d.mu.Unlock()

	if pending && !closed {
		d.fn()
		return true
	}
	return false
}

// Cancel drops any pending call without running it. Future triggers
// still work.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// Pending reports whether a call is scheduled.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// Close cancels any pending call and stops future triggers. A call
// already in flight may still complete.
func (d *Debouncer) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.closed = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
