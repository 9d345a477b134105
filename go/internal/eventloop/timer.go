package eventloop

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Timer is a one-shot timer whose callback runs on the loop.
//
// All methods must be called from the loop goroutine.
type Timer struct {
	loop    *Loop
	t       clockwork.Timer
	stop    chan struct{}
	stopped bool
}

// AfterFunc schedules fn to run on the loop once d has elapsed. It must be
// called from the loop goroutine.
func (l *Loop) AfterFunc(d time.Duration, fn func()) *Timer {
	t := &Timer{
		loop: l,
		t:    l.clock.NewTimer(d),
		stop: make(chan struct{}),
	}

	go func() {
		select {
		case <-t.t.Chan():
			l.Post(func() {
				// Stop may have run between the tick and this task.
				if t.stopped {
					return
				}
				t.stopped = true
				fn()
			})
		case <-t.stop:
		case <-l.ctx.Done():
			stopAndDrainTimer(t.t)
		}
	}()

	return t
}

// Stop cancels the timer. After Stop returns the callback will not run.
// It reports whether the call prevented the callback from running.
func (t *Timer) Stop() bool {
	if t == nil || t.stopped {
		return false
	}
	t.stopped = true
	stopAndDrainTimer(t.t)
	close(t.stop)
	return true
}

// Active reports whether the callback is still pending.
func (t *Timer) Active() bool {
	return t != nil && !t.stopped
}

// Replace stops old, if any, and schedules a new timer in its place.
func (l *Loop) Replace(old *Timer, d time.Duration, fn func()) *Timer {
	old.Stop()
	return l.AfterFunc(d, fn)
}

// stopAndDrainTimer stops a timer and drains its channel if it already fired.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
