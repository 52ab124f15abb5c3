// Package debounce provides a cancelable single-shot timer that collapses
// bursts of triggers into one call once the input has been quiet for a
// window.
package debounce

import (
	"sync"
	"time"
)

// Timer calls fn once after Trigger stops being called for the window.
// At most one call is pending, and calls never overlap.
type Timer struct {
	window time.Duration
	fn     func()

	mu     sync.Mutex
	t      *time.Timer
	gen    uint64
	closed bool

	run      sync.Mutex
	inflight sync.WaitGroup
}

// New creates a timer. A non-positive window fires on the next scheduler tick.
func New(window time.Duration, fn func()) *Timer {
	if window < 0 {
		window = 0
	}
	return &Timer{window: window, fn: fn}
}

// Window returns the quiet period.
func (d *Timer) Window() time.Duration { return d.window }

// Trigger arms the timer, pushing any pending fire out by one window.
func (d *Timer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	if d.t != nil {
		d.t.Stop()
	}
	d.gen++
	gen := d.gen
	d.t = time.AfterFunc(d.window, func() { d.fire(gen) })
}

func (d *Timer) fire(gen uint64) {
	d.mu.Lock()
	if d.closed || gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.t = nil
	d.inflight.Add(1)
	d.mu.Unlock()
	defer d.inflight.Done()

	d.run.Lock()
	defer d.run.Unlock()
	d.fn()
}

// Pending reports whether a fire is scheduled.
func (d *Timer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.t != nil
}

// Stop cancels a pending fire. It reports whether one was pending.
func (d *Timer) Stop() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.t == nil {
		return false
	}
	d.t.Stop()
	d.t = nil
	d.gen++
	return true
}

// Flush runs a pending fire immediately on the calling goroutine.
// It reports whether anything was pending.
func (d *Timer) Flush() bool {
	d.mu.Lock()
	if d.t == nil {
		d.mu.Unlock()
		return false
	}
	d.t.Stop()
	d.t = nil
	d.gen++
	d.inflight.Add(1)
	d.mu.Unlock()
	defer d.inflight.Done()

	d.run.Lock()
	defer d.run.Unlock()
	d.fn()
	return true
}

// Close cancels any pending fire and disables the timer. It waits for an
// in-progress call to return.
func (d *Timer) Close() {
	d.mu.Lock()
	d.closed = true
	if d.t != nil {
		d.t.Stop()
		d.t = nil
	}
	d.gen++
	d.mu.Unlock()

	d.inflight.Wait()
}
