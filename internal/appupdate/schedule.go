package appupdate

import (
	"sync"
	"time"

	"github.com/juju/clock"
)

// deferredTask runs at most one pending callback after a fixed delay.
// Scheduling again cancels the pending callback and starts a new delay.
type deferredTask struct {
	clock clock.Clock
	delay time.Duration

	mu    sync.Mutex
	timer clock.Timer
	gen   uint64
}

func newDeferredTask(clk clock.Clock, delay time.Duration) *deferredTask {
	return &deferredTask{clock: clk, delay: delay}
}

// Schedule arranges for fn to run after the delay, replacing any pending run.
// It reports whether a pending run was replaced.
func (d *deferredTask) Schedule(fn func()) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	replaced := d.stopLocked()
	d.gen++
	gen := d.gen
	d.timer = d.clock.AfterFunc(d.delay, func() {
		d.mu.Lock()
		current := d.gen == gen
		if current {
			d.timer = nil
		}
		d.mu.Unlock()
		if current {
			fn()
		}
	})
	return replaced
}

// Cancel stops the pending run, if any.
func (d *deferredTask) Cancel() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stopLocked()
}

// Pending reports whether a run is waiting for its delay to elapse.
func (d *deferredTask) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

func (d *deferredTask) stopLocked() bool {
	if d.timer == nil {
		return false
	}
	// Bump the generation so a callback that already fired but has not
	// taken the lock yet becomes a no-op.
	d.gen++
	d.timer.Stop()
	d.timer = nil
	return true
}
