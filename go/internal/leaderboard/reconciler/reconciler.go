// Package reconciler applies push events from the leaderboard channel to the
// roster and drives the prize distribution banner.
package reconciler

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/mcdev12/prizeboard/go/internal/eventloop"
	"github.com/mcdev12/prizeboard/go/internal/leaderboard/award"
	"github.com/mcdev12/prizeboard/go/internal/leaderboard/events"
	"github.com/mcdev12/prizeboard/go/internal/realtime"
	"github.com/mcdev12/prizeboard/go/internal/roster"
	"github.com/rs/zerolog/log"
)

// Config holds reconciler configuration.
type Config struct {
	Channel         string
	HandleUpdates   bool
	Award           award.Options
	CompletionDelay time.Duration
	RefreshDelay    time.Duration
	Messages        BannerMessages
}

// DefaultConfig returns the default reconciler configuration.
func DefaultConfig() Config {
	return Config{
		Channel:       "private-leaderboard",
		HandleUpdates: true,
		Award: award.Options{
			ChunkSize:    award.DefaultChunkSize,
			TickInterval: award.DefaultTickInterval,
		},
		CompletionDelay: 3 * time.Second,
		RefreshDelay:    2 * time.Second,
		Messages:        DefaultBannerMessages(),
	}
}

// Reconciler merges update and prize events into the roster store.
//
// Event decoding happens on the transport goroutine; every state change runs
// on the event loop.
type Reconciler struct {
	loop     *eventloop.Loop
	store    *roster.Store
	animator *award.Animator
	refresh  func()
	config   Config

	banner      Banner
	bannerTimer *eventloop.Timer

	mu      sync.Mutex
	channel realtime.Channel
}

// New creates a reconciler. refresh is called on the loop when a
// distribution has finished and the roster should be fetched again.
func New(loop *eventloop.Loop, store *roster.Store, animator *award.Animator, config Config, refresh func()) *Reconciler {
	return &Reconciler{
		loop:     loop,
		store:    store,
		animator: animator,
		refresh:  refresh,
		config:   config,
		banner:   Banner{Phase: BannerHidden},
	}
}

// Subscribe joins the configured channel and binds the event handlers.
// It must not be called from the loop.
func (r *Reconciler) Subscribe(ctx context.Context, transport realtime.Transport) error {
	ch, err := transport.Subscribe(ctx, r.config.Channel)
	if err != nil {
		return fmt.Errorf("failed to subscribe to channel %s: %w", r.config.Channel, err)
	}

	ch.Bind(events.EventPrize, r.onPrize)
	if r.config.HandleUpdates {
		ch.Bind(events.EventUpdate, r.onUpdate)
	}

	r.mu.Lock()
	r.channel = ch
	r.mu.Unlock()

	log.Info().
		Str("channel", r.config.Channel).
		Bool("handle_updates", r.config.HandleUpdates).
		Msg("subscribed to leaderboard channel")
	return nil
}

// Unsubscribe unbinds the handlers and leaves the channel. It must not be
// called from the loop.
func (r *Reconciler) Unsubscribe() error {
	r.mu.Lock()
	ch := r.channel
	r.channel = nil
	r.mu.Unlock()

	if ch == nil {
		return nil
	}

	ch.UnbindAll()
	if err := ch.Unsubscribe(); err != nil {
		return fmt.Errorf("failed to unsubscribe from channel %s: %w", ch.Name(), err)
	}

	log.Info().Str("channel", ch.Name()).Msg("unsubscribed from leaderboard channel")
	return nil
}

// Stop cancels the banner sequence and every running animation. Runs on the loop.
func (r *Reconciler) Stop() {
	r.bannerTimer.Stop()
	r.bannerTimer = nil
	r.animator.CancelAll()
	r.banner = Banner{Phase: BannerHidden}
}

// Banner returns the current banner state.
func (r *Reconciler) Banner() Banner {
	return r.banner
}

func (r *Reconciler) onPrize(data []byte) {
	p, err := events.DecodePrize(data)
	if err != nil {
		log.Warn().Err(err).RawJSON("payload", safeJSON(data)).Msg("dropping malformed prize event")
		return
	}
	r.loop.Post(func() { r.HandlePrize(p) })
}

func (r *Reconciler) onUpdate(data []byte) {
	p, err := events.DecodeUpdate(data)
	if err != nil {
		log.Warn().Err(err).RawJSON("payload", safeJSON(data)).Msg("dropping malformed update event")
		return
	}
	r.loop.Post(func() { r.HandleUpdate(p) })
}

// HandleUpdate applies a balance update. Runs on the loop.
func (r *Reconciler) HandleUpdate(p events.UpdatePayload) {
	if err := p.Validate(); err != nil {
		log.Warn().Err(err).Msg("dropping malformed update event")
		return
	}

	id := *p.PlayerID
	money := *p.Money
	if r.animator.Active(id) {
		// Land the running count-up on the new balance.
		money -= r.animator.Remaining(id)
	}
	if !r.store.Patch(id, roster.Patch{Money: &money}) {
		log.Debug().Int("player_id", id).Msg("update for player not on roster")
	}
	if p.Pool != nil {
		r.store.SetPool(*p.Pool)
	}
}

// HandlePrize applies one winner of a distribution. Runs on the loop.
func (r *Reconciler) HandlePrize(p events.PrizePayload) {
	if err := p.Validate(); err != nil {
		log.Warn().Err(err).Msg("dropping malformed prize event")
		return
	}

	id := *p.PlayerID
	amount := *p.Award

	if p.IsFirst {
		r.openBanner()
	}
	if p.Pool != nil {
		r.store.SetPool(*p.Pool)
	}

	log.Debug().
		Int("player_id", id).
		Int64("award", amount).
		Bool("is_first", p.IsFirst).
		Bool("is_last", p.IsLast).
		Msg("prize received")

	if !r.store.Has(id) {
		log.Debug().Int("player_id", id).Msg("prize for player not on roster")
		if p.IsLast {
			r.closeBanner()
		}
		return
	}

	r.store.Patch(id, roster.Patch{JustWon: &amount})
	r.animator.Animate(id, amount, r.config.Award,
		func(delta int64) {
			r.store.AddMoney(id, delta)
		},
		func() {
			r.store.Patch(id, roster.Patch{ClearJustWon: true})
			if p.IsLast {
				r.closeBanner()
			}
		},
	)
}

// Rebase makes running count-ups end on the balances just loaded into the
// store. Runs on the loop after a full refresh.
func (r *Reconciler) Rebase() {
	for _, p := range r.store.Players() {
		if !r.animator.Active(p.PlayerID) {
			continue
		}
		r.store.AddMoney(p.PlayerID, -r.animator.Remaining(p.PlayerID))
	}
}

func (r *Reconciler) openBanner() {
	r.bannerTimer.Stop()
	r.bannerTimer = nil
	r.setBanner(BannerDistributing)
}

// closeBanner shows the completion message, then the refreshing message,
// then hides the banner and asks for a refresh.
func (r *Reconciler) closeBanner() {
	r.bannerTimer.Stop()
	r.setBanner(BannerCompleted)

	r.bannerTimer = r.loop.AfterFunc(r.config.CompletionDelay, func() {
		r.setBanner(BannerRefreshing)

		r.bannerTimer = r.loop.AfterFunc(r.config.RefreshDelay, func() {
			r.bannerTimer = nil
			r.setBanner(BannerHidden)
			if r.refresh != nil {
				r.refresh()
			}
		})
	})
}

func (r *Reconciler) setBanner(phase BannerPhase) {
	r.banner = Banner{Phase: phase, Message: r.config.Messages.forPhase(phase)}
	log.Debug().Str("phase", string(phase)).Msg("banner changed")
}

// safeJSON keeps zerolog's RawJSON from emitting invalid output.
func safeJSON(data []byte) []byte {
	if !json.Valid(data) {
		return []byte(`null`)
	}
	return data
}
