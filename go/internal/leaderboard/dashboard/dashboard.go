// Package dashboard wires the leaderboard engine together and owns its
// lifecycle.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/prizeboard/go/internal/eventloop"
	"github.com/mcdev12/prizeboard/go/internal/leaderboard/award"
	"github.com/mcdev12/prizeboard/go/internal/leaderboard/countdown"
	"github.com/mcdev12/prizeboard/go/internal/leaderboard/orchestrator"
	"github.com/mcdev12/prizeboard/go/internal/leaderboard/reconciler"
	"github.com/mcdev12/prizeboard/go/internal/models"
	"github.com/mcdev12/prizeboard/go/internal/realtime"
	"github.com/mcdev12/prizeboard/go/internal/roster"
	"github.com/rs/zerolog/log"
)

// Config holds dashboard configuration.
type Config struct {
	Reconciler        reconciler.Config
	Orchestrator      orchestrator.Config
	CountdownInterval time.Duration
	GroupByCountry    bool
}

// DefaultConfig returns the default dashboard configuration.
func DefaultConfig() Config {
	return Config{
		Reconciler:        reconciler.DefaultConfig(),
		Orchestrator:      orchestrator.DefaultConfig(),
		CountdownInterval: countdown.DefaultInterval,
	}
}

// Snapshot is everything a viewer needs to render the leaderboard.
type Snapshot struct {
	Groups         []models.RosterGroup `json:"groups"`
	Pool           int64                `json:"pool"`
	Countdown      countdown.Schedule   `json:"countdown"`
	Banner         reconciler.Banner    `json:"banner"`
	Status         orchestrator.Status  `json:"status"`
	GroupByCountry bool                 `json:"groupByCountry"`
	Filter         string               `json:"filter,omitempty"`
	Version        uint64               `json:"version"`
}

// Publisher receives a snapshot whenever the observable state changes.
// Publish is called on the event loop and must not block.
type Publisher interface {
	Publish(snapshot Snapshot)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(Snapshot)

func (f PublisherFunc) Publish(s Snapshot) { f(s) }

// signature is the comparable part of a snapshot used to detect changes.
type signature struct {
	storeVersion   uint64
	banner         reconciler.Banner
	secondsLeft    int
	fetching       bool
	lastFetchedAt  time.Time
	timeAgo        string
	searchTerm     string
	lastError      string
	groupByCountry bool
	filter         string
}

// Dashboard owns one leaderboard: its loop, store, timers and subscription.
type Dashboard struct {
	loop         *eventloop.Loop
	store        *roster.Store
	clock        *countdown.Clock
	animator     *award.Animator
	reconciler   *reconciler.Reconciler
	orchestrator *orchestrator.Orchestrator
	transport    realtime.Transport
	publisher    Publisher

	groupByCountry bool
	filter         string
	version        uint64
	last           signature

	mu        sync.Mutex
	mounted   bool
	unmounted bool
}

// Option configures a Dashboard.
type Option func(*Dashboard)

// WithPublisher sets where snapshots are pushed.
func WithPublisher(p Publisher) Option {
	return func(d *Dashboard) {
		d.publisher = p
	}
}

// New builds a dashboard. transport may be nil for a polling-only board.
// The dashboard's loop starts immediately; Mount begins fetching.
func New(ctx context.Context, clock clockwork.Clock, fetcher orchestrator.Fetcher, transport realtime.Transport, config Config, opts ...Option) *Dashboard {
	d := &Dashboard{
		transport:      transport,
		groupByCountry: config.GroupByCountry,
	}
	for _, opt := range opts {
		opt(d)
	}

	d.loop = eventloop.New(ctx, clock, eventloop.WithAfterTask(d.afterTask))
	d.store = roster.NewStore()
	d.animator = award.NewAnimator(d.loop)
	d.clock = countdown.New(d.loop, config.CountdownInterval, func() {
		d.orchestrator.MaybeRefresh(orchestrator.TriggerCountdown)
	})
	d.reconciler = reconciler.New(d.loop, d.store, d.animator, config.Reconciler, func() {
		d.orchestrator.Refresh(orchestrator.TriggerPrize)
	})
	d.orchestrator = orchestrator.New(d.loop, d.store, d.clock, fetcher, config.Orchestrator,
		orchestrator.WithOnApplied(d.reconciler.Rebase),
	)

	return d
}

// Mount starts fetching and subscribes to the push channel. Polling keeps
// running when the transport fails; the transport error is returned.
func (d *Dashboard) Mount(ctx context.Context) error {
	d.mu.Lock()
	if d.mounted || d.unmounted {
		d.mu.Unlock()
		return errors.New("dashboard already mounted")
	}
	d.mounted = true
	d.mu.Unlock()

	if err := d.loop.Do(d.orchestrator.Start); err != nil {
		return fmt.Errorf("failed to start orchestrator: %w", err)
	}

	if d.transport == nil {
		log.Info().Msg("no realtime transport configured, polling only")
		return nil
	}

	if err := d.transport.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect realtime transport: %w", err)
	}
	if err := d.reconciler.Subscribe(ctx, d.transport); err != nil {
		return err
	}

	log.Info().Msg("dashboard mounted")
	return nil
}

// Unmount unsubscribes, disconnects the transport and cancels every timer.
// No callback runs after Unmount returns.
func (d *Dashboard) Unmount() error {
	d.mu.Lock()
	if d.unmounted {
		d.mu.Unlock()
		return nil
	}
	d.unmounted = true
	d.mu.Unlock()

	var errs []error
	if err := d.reconciler.Unsubscribe(); err != nil {
		errs = append(errs, err)
	}
	if d.transport != nil {
		if err := d.transport.Disconnect(); err != nil {
			errs = append(errs, fmt.Errorf("failed to disconnect realtime transport: %w", err))
		}
	}

	err := d.loop.Do(func() {
		d.orchestrator.Stop()
		d.reconciler.Stop()
		d.clock.Disarm()
	})
	if err != nil && !errors.Is(err, eventloop.ErrClosed) {
		errs = append(errs, err)
	}
	d.loop.Close()

	log.Info().Msg("dashboard unmounted")
	return errors.Join(errs...)
}

// Snapshot returns the current state.
func (d *Dashboard) Snapshot(ctx context.Context) (Snapshot, error) {
	var s Snapshot
	done := make(chan error, 1)
	go func() {
		done <- d.loop.Do(func() { s = d.buildSnapshot() })
	}()

	select {
	case err := <-done:
		return s, err
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

// Refresh fetches the leaderboard now.
func (d *Dashboard) Refresh() error {
	return d.loop.Do(func() { d.orchestrator.Refresh(orchestrator.TriggerManual) })
}

// SetSearchText updates the server-side search term after the debounce.
func (d *Dashboard) SetSearchText(text string) error {
	return d.loop.Do(func() { d.orchestrator.SetSearchText(text) })
}

// SetGroupByCountry toggles grouping.
func (d *Dashboard) SetGroupByCountry(enabled bool) error {
	return d.loop.Do(func() { d.groupByCountry = enabled })
}

// SetFilter narrows the displayed rows by name or country without a fetch.
func (d *Dashboard) SetFilter(filter string) error {
	return d.loop.Do(func() { d.filter = filter })
}

// Done is closed once the dashboard has shut down.
func (d *Dashboard) Done() <-chan struct{} {
	return d.loop.Done()
}

func (d *Dashboard) buildSnapshot() Snapshot {
	return Snapshot{
		Groups: d.store.View(roster.ViewOptions{
			GroupByCountry: d.groupByCountry,
			Filter:         d.filter,
		}),
		Pool:           d.store.Pool(),
		Countdown:      d.clock.Schedule(),
		Banner:         d.reconciler.Banner(),
		Status:         d.orchestrator.Status(),
		GroupByCountry: d.groupByCountry,
		Filter:         d.filter,
		Version:        d.version,
	}
}

func (d *Dashboard) signature() signature {
	status := d.orchestrator.Status()
	sig := signature{
		storeVersion:   d.store.Version(),
		banner:         d.reconciler.Banner(),
		secondsLeft:    d.clock.SecondsLeft(),
		fetching:       status.Fetching,
		timeAgo:        status.TimeAgo,
		searchTerm:     status.SearchTerm,
		lastError:      status.LastError,
		groupByCountry: d.groupByCountry,
		filter:         d.filter,
	}
	if status.LastFetchedAt != nil {
		sig.lastFetchedAt = *status.LastFetchedAt
	}
	return sig
}

// afterTask publishes a snapshot when a loop task changed what viewers see.
func (d *Dashboard) afterTask() {
	if d.publisher == nil || d.orchestrator == nil {
		return
	}

	sig := d.signature()
	if sig == d.last {
		return
	}
	d.last = sig
	d.version++
	d.publisher.Publish(d.buildSnapshot())
}
