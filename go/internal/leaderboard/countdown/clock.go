// Package countdown derives the seconds left until the next prize-pool reset.
package countdown

import (
	"time"

	"github.com/mcdev12/prizeboard/go/internal/eventloop"
	"github.com/rs/zerolog/log"
)

// DefaultInterval is how often the countdown is recomputed.
const DefaultInterval = time.Second

// Schedule is the reset target and the derived countdown.
type Schedule struct {
	NextResetAt *time.Time `json:"nextResetAt,omitempty"`
	SecondsLeft int        `json:"secondsLeft"`
}

// Clock ticks against an absolute reset time and fires once when the
// countdown reaches zero. It is owned by the event loop.
type Clock struct {
	loop     *eventloop.Loop
	interval time.Duration
	onZero   func()

	target      time.Time
	armed       bool
	fired       bool
	secondsLeft int
	skew        time.Duration
	timer       *eventloop.Timer
}

// New creates a disarmed clock. onZero runs on the loop on each zero crossing.
func New(loop *eventloop.Loop, interval time.Duration, onZero func()) *Clock {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Clock{
		loop:     loop,
		interval: interval,
		onZero:   onZero,
	}
}

// Arm points the clock at a new reset time and resets the zero notification.
// A target already in the past reads zero without notifying.
func (c *Clock) Arm(nextResetAt time.Time) {
	c.timer.Stop()

	c.target = nextResetAt
	c.armed = true
	c.fired = false
	c.secondsLeft = c.compute()

	log.Debug().
		Time("next_reset_at", nextResetAt).
		Int("seconds_left", c.secondsLeft).
		Msg("reset clock armed")

	if c.secondsLeft > 0 {
		c.schedule()
	}
}

// Disarm stops ticking. The last computed value is kept.
func (c *Clock) Disarm() {
	c.timer.Stop()
	c.timer = nil
	c.armed = false
}

// SetSkew sets the server-minus-client clock offset applied to the local time.
func (c *Clock) SetSkew(skew time.Duration) {
	c.skew = skew
}

// SecondsLeft returns the most recently computed countdown.
func (c *Clock) SecondsLeft() int {
	return c.secondsLeft
}

// Armed reports whether the clock has a target.
func (c *Clock) Armed() bool {
	return c.armed
}

// Schedule returns the current target and countdown.
func (c *Clock) Schedule() Schedule {
	s := Schedule{SecondsLeft: c.secondsLeft}
	if c.armed {
		t := c.target
		s.NextResetAt = &t
	}
	return s
}

func (c *Clock) schedule() {
	c.timer = c.loop.AfterFunc(c.interval, c.tick)
}

func (c *Clock) tick() {
	prev := c.secondsLeft
	c.secondsLeft = c.compute()

	if c.secondsLeft > 0 {
		c.schedule()
		return
	}

	c.timer = nil
	if prev > 0 && !c.fired {
		c.fired = true
		log.Info().Time("next_reset_at", c.target).Msg("reset countdown reached zero")
		if c.onZero != nil {
			c.onZero()
		}
	}
}

// compute floors the whole seconds remaining, never below zero.
func (c *Clock) compute() int {
	now := c.loop.Now().Add(c.skew)
	ms := c.target.Sub(now).Milliseconds()
	if ms <= 0 {
		return 0
	}
	return int(ms / 1000)
}
