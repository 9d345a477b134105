// Package award animates prize awards as a count-up of fixed-size chunks.
package award

import (
	"time"

	"github.com/mcdev12/prizeboard/go/internal/eventloop"
	"github.com/rs/zerolog/log"
)

// Default animation tuning.
const (
	DefaultChunkSize    int64 = 100
	DefaultTickInterval       = 50 * time.Millisecond
)

// Options tunes a single animation.
type Options struct {
	ChunkSize    int64
	TickInterval time.Duration
}

func (o Options) normalized() Options {
	if o.ChunkSize < 1 {
		o.ChunkSize = 1
	}
	if o.TickInterval <= 0 {
		o.TickInterval = DefaultTickInterval
	}
	return o
}

// job is the running count-up for one player.
type job struct {
	playerID    int
	remaining   int64
	opts        Options
	onTick      func(delta int64)
	completions []func()
	timer       *eventloop.Timer
}

// Animator runs at most one count-up per player. Awards arriving for a player
// that is already animating are merged into the running job. It is owned by
// the event loop.
type Animator struct {
	loop *eventloop.Loop
	jobs map[int]*job
}

// NewAnimator creates an animator bound to the loop.
func NewAnimator(loop *eventloop.Loop) *Animator {
	return &Animator{
		loop: loop,
		jobs: make(map[int]*job),
	}
}

// Animate counts total up in chunks. Every tick hands the next chunk to
// onTick; once nothing remains onComplete runs exactly once. The deltas sum
// to total. If the player already has a running job, total is added to it,
// its onTick keeps driving the ticks and onComplete is queued behind the
// job's earlier completions.
func (a *Animator) Animate(playerID int, total int64, opts Options, onTick func(delta int64), onComplete func()) {
	if total < 0 {
		total = 0
	}

	if j, ok := a.jobs[playerID]; ok {
		j.remaining += total
		if onComplete != nil {
			j.completions = append(j.completions, onComplete)
		}
		log.Debug().
			Int("player_id", playerID).
			Int64("award", total).
			Int64("remaining", j.remaining).
			Msg("merged award into running animation")
		return
	}

	j := &job{
		playerID:  playerID,
		remaining: total,
		opts:      opts.normalized(),
		onTick:    onTick,
	}
	if onComplete != nil {
		j.completions = append(j.completions, onComplete)
	}
	a.jobs[playerID] = j
	a.schedule(j)
}

// Active reports whether the player has a running animation.
func (a *Animator) Active(playerID int) bool {
	_, ok := a.jobs[playerID]
	return ok
}

// Remaining returns what is still to be counted for the player.
func (a *Animator) Remaining(playerID int) int64 {
	if j, ok := a.jobs[playerID]; ok {
		return j.remaining
	}
	return 0
}

// Cancel stops the player's animation without running its completions.
func (a *Animator) Cancel(playerID int) {
	j, ok := a.jobs[playerID]
	if !ok {
		return
	}
	j.timer.Stop()
	delete(a.jobs, playerID)
}

// CancelAll stops every animation without running completions.
func (a *Animator) CancelAll() {
	for id := range a.jobs {
		a.Cancel(id)
	}
}

func (a *Animator) schedule(j *job) {
	j.timer = a.loop.AfterFunc(j.opts.TickInterval, func() { a.tick(j) })
}

func (a *Animator) tick(j *job) {
	// A cancelled job may have been replaced by a new one for the player.
	if a.jobs[j.playerID] != j {
		return
	}

	if j.remaining <= 0 {
		delete(a.jobs, j.playerID)
		for _, done := range j.completions {
			done()
		}
		return
	}

	delta := min(j.remaining, j.opts.ChunkSize)
	if j.onTick != nil {
		j.onTick(delta)
	}
	j.remaining -= delta
	a.schedule(j)
}
