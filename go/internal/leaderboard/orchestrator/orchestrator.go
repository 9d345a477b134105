// Package orchestrator decides when the leaderboard is fetched and applies
// the results to the roster.
package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/prizeboard/go/internal/eventloop"
	"github.com/mcdev12/prizeboard/go/internal/leaderboard/countdown"
	"github.com/mcdev12/prizeboard/go/internal/models"
	"github.com/mcdev12/prizeboard/go/internal/roster"
	"github.com/rs/zerolog/log"
)

// Fetcher loads the leaderboard from the backend.
type Fetcher interface {
	GetLeaderboard(ctx context.Context, searchTerm string) (*models.LeaderboardResponse, error)
}

// Trigger names why a fetch was started.
type Trigger string

const (
	TriggerInitial   Trigger = "initial"
	TriggerManual    Trigger = "manual"
	TriggerPeriodic  Trigger = "periodic"
	TriggerCountdown Trigger = "countdown"
	TriggerSearch    Trigger = "search"
	TriggerPrize     Trigger = "prize"
)

// Config holds orchestrator configuration.
type Config struct {
	PeriodicInterval  time.Duration
	SearchDebounce    time.Duration
	FreshnessInterval time.Duration
	RequestTimeout    time.Duration

	// SyncServerClock feeds the response Date header into the reset clock.
	SyncServerClock bool
}

// DefaultConfig returns the default orchestrator configuration.
func DefaultConfig() Config {
	return Config{
		PeriodicInterval:  20 * time.Minute,
		SearchDebounce:    500 * time.Millisecond,
		FreshnessInterval: time.Second,
		RequestTimeout:    15 * time.Second,
	}
}

// Status is the fetch state shown next to the leaderboard.
type Status struct {
	Fetching      bool       `json:"fetching"`
	LastFetchedAt *time.Time `json:"lastFetchedAt,omitempty"`
	TimeAgo       string     `json:"timeAgo,omitempty"`
	SearchTerm    string     `json:"searchTerm"`
	LastError     string     `json:"lastError,omitempty"`
}

// Orchestrator issues leaderboard fetches and owns the periodic, search
// debounce and freshness timers. It runs on the event loop.
//
// Every fetch carries a sequence token; only the response to the most recent
// request is applied, so a slow older request can never overwrite a newer one.
type Orchestrator struct {
	loop      *eventloop.Loop
	store     *roster.Store
	clock     *countdown.Clock
	fetcher   Fetcher
	config    Config
	onApplied func()

	seq           uint64
	fetching      bool
	deferred      Trigger
	cancelFetch   context.CancelFunc
	searchTerm    string
	pendingTerm   string
	lastFetchedAt time.Time
	timeAgo       string
	lastErr       error

	periodic  *eventloop.Timer
	debounce  *eventloop.Timer
	freshness *eventloop.Timer
	running   bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithOnApplied registers a hook that runs on the loop right after a fetch
// result has replaced the roster.
func WithOnApplied(fn func()) Option {
	return func(o *Orchestrator) {
		o.onApplied = fn
	}
}

// New creates an orchestrator. clock may be nil.
func New(loop *eventloop.Loop, store *roster.Store, clock *countdown.Clock, fetcher Fetcher, config Config, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		loop:    loop,
		store:   store,
		clock:   clock,
		fetcher: fetcher,
		config:  config,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Start issues the initial fetch and starts the periodic and freshness timers.
func (o *Orchestrator) Start() {
	if o.running {
		return
	}
	o.running = true

	o.Refresh(TriggerInitial)
	o.schedulePeriodic()
	o.scheduleFreshness()

	log.Info().
		Dur("periodic_interval", o.config.PeriodicInterval).
		Msg("fetch orchestrator started")
}

// Stop cancels every timer and the in-flight request. Late responses are ignored.
func (o *Orchestrator) Stop() {
	o.running = false
	o.periodic.Stop()
	o.debounce.Stop()
	o.freshness.Stop()
	o.periodic, o.debounce, o.freshness = nil, nil, nil

	// Invalidate any outstanding token.
	o.seq++
	if o.cancelFetch != nil {
		o.cancelFetch()
		o.cancelFetch = nil
	}
	o.fetching = false
	o.deferred = ""
}

// Refresh fetches the leaderboard for the effective search term. A newer
// Refresh supersedes an older one that is still in flight.
func (o *Orchestrator) Refresh(trigger Trigger) {
	if o.cancelFetch != nil {
		o.cancelFetch()
	}

	o.seq++
	token := o.seq
	term := o.searchTerm
	o.fetching = true
	o.deferred = ""

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if o.config.RequestTimeout > 0 {
		ctx, cancel = context.WithTimeout(o.loop.Context(), o.config.RequestTimeout)
	} else {
		ctx, cancel = context.WithCancel(o.loop.Context())
	}
	o.cancelFetch = cancel

	requestID := uuid.New().String()
	log.Debug().
		Str("request_id", requestID).
		Uint64("request_seq", token).
		Str("trigger", string(trigger)).
		Str("search_term", term).
		Msg("fetching leaderboard")

	go func() {
		defer cancel()
		resp, err := o.fetcher.GetLeaderboard(ctx, term)
		o.loop.Post(func() {
			o.complete(token, requestID, resp, err)
		})
	}()
}

// MaybeRefresh refreshes unless a fetch is already in flight. A skipped
// trigger is deferred: once the in-flight fetch completes, one follow-up
// refresh runs no matter how many triggers were skipped.
func (o *Orchestrator) MaybeRefresh(trigger Trigger) {
	if o.fetching {
		log.Debug().Str("trigger", string(trigger)).Msg("deferring refresh, fetch already in flight")
		o.deferred = trigger
		return
	}
	o.Refresh(trigger)
}

// SetSearchText records new search input and refreshes once the input has
// been stable for the debounce interval.
func (o *Orchestrator) SetSearchText(text string) {
	o.pendingTerm = text
	o.debounce = o.loop.Replace(o.debounce, o.config.SearchDebounce, func() {
		o.debounce = nil
		if o.pendingTerm == o.searchTerm {
			return
		}
		o.searchTerm = o.pendingTerm
		o.Refresh(TriggerSearch)
	})
}

// Status returns the current fetch state.
func (o *Orchestrator) Status() Status {
	s := Status{
		Fetching:   o.fetching,
		TimeAgo:    o.timeAgo,
		SearchTerm: o.searchTerm,
	}
	if !o.lastFetchedAt.IsZero() {
		t := o.lastFetchedAt
		s.LastFetchedAt = &t
	}
	if o.lastErr != nil {
		s.LastError = o.lastErr.Error()
	}
	return s
}

func (o *Orchestrator) complete(token uint64, requestID string, resp *models.LeaderboardResponse, err error) {
	if token != o.seq {
		log.Debug().
			Str("request_id", requestID).
			Uint64("request_seq", token).
			Uint64("latest_seq", o.seq).
			Msg("discarding superseded leaderboard response")
		return
	}

	o.fetching = false
	o.cancelFetch = nil
	defer o.runDeferred()

	if err == nil && resp == nil {
		err = errors.New("empty leaderboard response")
	}
	if err != nil {
		o.lastErr = err
		log.Error().
			Err(err).
			Str("request_id", requestID).
			Msg("failed to fetch leaderboard, keeping last known state")
		return
	}
	o.lastErr = nil

	o.store.ReplaceAll(resp.Data)
	o.store.SetPool(resp.Pool)
	o.store.SetNextResetAt(resp.NextResetAt)

	now := o.loop.Now()
	if o.clock != nil {
		if o.config.SyncServerClock && !resp.ServerTime.IsZero() {
			o.clock.SetSkew(resp.ServerTime.Sub(now))
		}
		o.clock.Arm(resp.NextResetAt)
	}

	o.lastFetchedAt = now
	o.timeAgo = FormatTimeAgo(now, now)

	if o.onApplied != nil {
		o.onApplied()
	}

	log.Info().
		Str("request_id", requestID).
		Int("players", len(resp.Data)).
		Int64("pool", resp.Pool).
		Time("next_reset_at", resp.NextResetAt).
		Msg("leaderboard refreshed")
}

// runDeferred issues the refresh skipped while the last fetch was in flight.
// That fetch may predate the trigger, e.g. a reset that happened mid-request.
func (o *Orchestrator) runDeferred() {
	trigger := o.deferred
	if trigger == "" || o.fetching {
		return
	}
	o.deferred = ""
	log.Debug().Str("trigger", string(trigger)).Msg("running deferred refresh")
	o.Refresh(trigger)
}

func (o *Orchestrator) schedulePeriodic() {
	if o.config.PeriodicInterval <= 0 {
		return
	}
	o.periodic = o.loop.AfterFunc(o.config.PeriodicInterval, func() {
		o.MaybeRefresh(TriggerPeriodic)
		o.schedulePeriodic()
	})
}

func (o *Orchestrator) scheduleFreshness() {
	if o.config.FreshnessInterval <= 0 {
		return
	}
	o.freshness = o.loop.AfterFunc(o.config.FreshnessInterval, func() {
		if !o.lastFetchedAt.IsZero() {
			o.timeAgo = FormatTimeAgo(o.lastFetchedAt, o.loop.Now())
		}
		o.scheduleFreshness()
	})
}
