// Package eventloop runs callbacks one at a time on a single goroutine.
//
// Every stateful leaderboard component is owned by a Loop: network
// completions, push events and timer ticks are all posted to it, so the
// components themselves need no locking.
package eventloop

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// ErrClosed is returned when work is submitted to a closed loop.
var ErrClosed = errors.New("event loop closed")

const defaultQueueSize = 256

// Option configures a Loop.
type Option func(*Loop)

// WithAfterTask registers a hook that runs on the loop after every task.
func WithAfterTask(fn func()) Option {
	return func(l *Loop) {
		l.afterTask = fn
	}
}

// Loop is a single-goroutine task executor with cancelable timers.
type Loop struct {
	clock     clockwork.Clock
	tasks     chan func()
	afterTask func()

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a loop and starts its goroutine. The loop stops when ctx is
// cancelled or Close is called.
func New(ctx context.Context, clock clockwork.Clock, opts ...Option) *Loop {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	l := &Loop{
		clock:     clock,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.tasks = make(chan func(), defaultQueueSize)
	l.ctx, l.cancel = context.WithCancel(ctx)

	go l.run()
	return l
}

func (l *Loop) run() {
	defer close(l.done)

	for {
		select {
		case <-l.ctx.Done():
			return
		case fn := <-l.tasks:
			// A task may still be selected after cancellation.
			if l.ctx.Err() != nil {
				return
			}
			l.exec(fn)
		}
	}
}

func (l *Loop) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("recovered panic in event loop task")
		}
	}()

	fn()
	if l.afterTask != nil {
		l.afterTask()
	}
}

// Post queues fn to run on the loop. It reports false if the loop is closed.
// Post must not be called from the loop goroutine while the queue is full.
func (l *Loop) Post(fn func()) bool {
	if l.ctx.Err() != nil {
		return false
	}
	select {
	case l.tasks <- fn:
		return true
	case <-l.ctx.Done():
		return false
	}
}

// Do runs fn on the loop and waits for it to finish. Never call Do from the
// loop goroutine.
func (l *Loop) Do(fn func()) error {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return ErrClosed
	}

	select {
	case <-finished:
		return nil
	case <-l.done:
		// The task may have been dropped by shutdown.
		select {
		case <-finished:
			return nil
		default:
			return ErrClosed
		}
	}
}

// Now returns the loop clock's current time.
func (l *Loop) Now() time.Time {
	return l.clock.Now()
}

// Context is cancelled when the loop shuts down.
func (l *Loop) Context() context.Context {
	return l.ctx
}

// Close stops the loop and waits for the running task, if any, to return.
// Queued tasks and pending timer callbacks are dropped.
func (l *Loop) Close() {
	l.cancel()
	<-l.done
}

// Done is closed once the loop goroutine has exited.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}
