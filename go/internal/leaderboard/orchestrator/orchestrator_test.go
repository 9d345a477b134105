package orchestrator

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/prizeboard/go/clients/leaderboard_client/mockleaderboard"
	"github.com/mcdev12/prizeboard/go/internal/eventloop"
	"github.com/mcdev12/prizeboard/go/internal/leaderboard/countdown"
	"github.com/mcdev12/prizeboard/go/internal/models"
	"github.com/mcdev12/prizeboard/go/internal/roster"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	loop    *eventloop.Loop
	fc      *clockwork.FakeClock
	store   *roster.Store
	clock   *countdown.Clock
	fetcher *mockleaderboard.Client
	orch    *Orchestrator
	ctx     context.Context
}

func newFixture(t *testing.T, cfg Config, withClock bool) *fixture {
	t.Helper()
	fc := clockwork.NewFakeClock()
	loop := eventloop.New(context.Background(), fc)
	t.Cleanup(loop.Close)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	f := &fixture{
		loop:    loop,
		fc:      fc,
		store:   roster.NewStore(),
		fetcher: &mockleaderboard.Client{},
		ctx:     ctx,
	}
	if withClock {
		f.clock = countdown.New(loop, time.Second, nil)
	}
	f.orch = New(loop, f.store, f.clock, f.fetcher, cfg)
	return f
}

func testConfig() Config {
	return Config{
		PeriodicInterval:  20 * time.Minute,
		SearchDebounce:    500 * time.Millisecond,
		FreshnessInterval: time.Second,
	}
}

func response(names ...string) *models.LeaderboardResponse {
	resp := &models.LeaderboardResponse{
		Pool:        1000,
		NextResetAt: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	for i, n := range names {
		resp.Data = append(resp.Data, models.Player{PlayerID: i + 1, Name: n, Country: "TR", Money: int64(100 * (len(names) - i))})
	}
	return resp
}

func (f *fixture) do(t *testing.T, fn func()) {
	t.Helper()
	require.NoError(t, f.loop.Do(fn))
}

func (f *fixture) names(t *testing.T) []string {
	t.Helper()
	var out []string
	f.do(t, func() {
		for _, p := range f.store.Players() {
			out = append(out, p.Name)
		}
	})
	return out
}

func (f *fixture) status(t *testing.T) Status {
	t.Helper()
	var s Status
	f.do(t, func() { s = f.orch.Status() })
	return s
}

func (f *fixture) waitNames(t *testing.T, want ...string) {
	t.Helper()
	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual(want, f.names(t))
	}, time.Second, time.Millisecond)
}

func TestRefresh_AppliesResponse(t *testing.T) {
	f := newFixture(t, testConfig(), true)
	resp := response("Ada", "Bo")
	resp.NextResetAt = f.fc.Now().Add(90 * time.Second)
	f.fetcher.On("GetLeaderboard", mock.Anything, "").Return(resp, nil).Once()

	f.do(t, func() { f.orch.Refresh(TriggerManual) })
	f.waitNames(t, "Ada", "Bo")

	s := f.status(t)
	assert.False(t, s.Fetching)
	require.NotNil(t, s.LastFetchedAt)
	assert.Equal(t, "just now", s.TimeAgo)

	var pool int64
	var left int
	var ranks []int
	f.do(t, func() {
		pool = f.store.Pool()
		left = f.clock.SecondsLeft()
		for _, p := range f.store.Players() {
			ranks = append(ranks, p.Rank)
		}
	})
	assert.Equal(t, int64(1000), pool)
	assert.Equal(t, 90, left)
	assert.Equal(t, []int{1, 2}, ranks)
	f.fetcher.AssertExpectations(t)
}

func TestRefresh_LastRequestWins(t *testing.T) {
	f := newFixture(t, testConfig(), false)

	releaseA := make(chan struct{})
	startedA := make(chan struct{})
	finishedA := make(chan struct{})
	f.fetcher.On("GetLeaderboard", mock.Anything, "a").
		Run(func(mock.Arguments) {
			close(startedA)
			<-releaseA
			close(finishedA)
		}).
		Return(response("slow-a"), nil).Once()
	f.fetcher.On("GetLeaderboard", mock.Anything, "ab").Return(response("fast-ab"), nil).Once()

	f.do(t, func() { f.orch.SetSearchText("a") })
	require.NoError(t, f.fc.BlockUntilContext(f.ctx, 1))
	f.fc.Advance(500 * time.Millisecond)
	<-startedA

	f.do(t, func() { f.orch.SetSearchText("ab") })
	require.NoError(t, f.fc.BlockUntilContext(f.ctx, 1))
	f.fc.Advance(500 * time.Millisecond)

	f.waitNames(t, "fast-ab")

	close(releaseA)
	<-finishedA
	// Give the superseded completion time to reach the loop.
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, []string{"fast-ab"}, f.names(t))
	assert.Equal(t, "ab", f.status(t).SearchTerm)
	assert.False(t, f.status(t).Fetching)
	f.fetcher.AssertExpectations(t)
}

func TestRefresh_SupersededRequestIsCancelled(t *testing.T) {
	f := newFixture(t, testConfig(), false)

	started := make(chan struct{})
	cancelled := make(chan struct{})
	f.fetcher.On("GetLeaderboard", mock.Anything, "").
		Run(func(args mock.Arguments) {
			close(started)
			ctx := args.Get(0).(context.Context)
			<-ctx.Done()
			close(cancelled)
		}).
		Return(nil, context.Canceled).Once()
	f.fetcher.On("GetLeaderboard", mock.Anything, "").Return(response("second"), nil).Once()

	f.do(t, func() { f.orch.Refresh(TriggerManual) })
	<-started

	f.do(t, func() { f.orch.Refresh(TriggerManual) })
	<-cancelled

	f.waitNames(t, "second")
	assert.Empty(t, f.status(t).LastError)
}

func TestMaybeRefresh_CoalescesWhileInFlight(t *testing.T) {
	f := newFixture(t, testConfig(), false)

	release := make(chan struct{})
	f.fetcher.On("GetLeaderboard", mock.Anything, "").
		Run(func(mock.Arguments) { <-release }).
		Return(response("first"), nil).Once()
	f.fetcher.On("GetLeaderboard", mock.Anything, "").Return(response("follow-up"), nil).Once()

	f.do(t, func() { f.orch.MaybeRefresh(TriggerCountdown) })
	f.do(t, func() { f.orch.MaybeRefresh(TriggerPeriodic) })
	f.do(t, func() { f.orch.MaybeRefresh(TriggerCountdown) })
	assert.True(t, f.status(t).Fetching)
	f.fetcher.AssertNumberOfCalls(t, "GetLeaderboard", 1)

	close(release)
	f.waitNames(t, "follow-up")
	require.Eventually(t, func() bool {
		return !f.status(t).Fetching
	}, time.Second, time.Millisecond)
	f.fetcher.AssertNumberOfCalls(t, "GetLeaderboard", 2)
}

func TestMaybeRefresh_ForcedRefreshClearsDeferred(t *testing.T) {
	f := newFixture(t, testConfig(), false)

	started := make(chan struct{})
	f.fetcher.On("GetLeaderboard", mock.Anything, "").
		Run(func(args mock.Arguments) {
			close(started)
			<-args.Get(0).(context.Context).Done()
		}).
		Return(nil, context.Canceled).Once()
	f.fetcher.On("GetLeaderboard", mock.Anything, "").Return(response("forced"), nil).Once()

	f.do(t, func() { f.orch.Refresh(TriggerManual) })
	<-started
	f.do(t, func() { f.orch.MaybeRefresh(TriggerPeriodic) })
	f.do(t, func() { f.orch.Refresh(TriggerPrize) })

	f.waitNames(t, "forced")
	// Let the cancelled completion reach the loop.
	time.Sleep(20 * time.Millisecond)
	f.do(t, func() {})
	f.fetcher.AssertNumberOfCalls(t, "GetLeaderboard", 2)
}

func TestCountdownZeroDuringFetchRefreshesAfterwards(t *testing.T) {
	f := newFixture(t, testConfig(), false)
	f.clock = countdown.New(f.loop, time.Second, func() {
		f.orch.MaybeRefresh(TriggerCountdown)
	})
	f.orch = New(f.loop, f.store, f.clock, f.fetcher, testConfig())

	resetAt := f.fc.Now().Add(2 * time.Second)
	before := response("pre-reset")
	before.NextResetAt = resetAt
	after := response("post-reset")
	after.NextResetAt = resetAt.Add(time.Hour)

	started := make(chan struct{})
	release := make(chan struct{})
	f.fetcher.On("GetLeaderboard", mock.Anything, "").
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(before, nil).Once()
	f.fetcher.On("GetLeaderboard", mock.Anything, "").Return(after, nil).Once()

	f.do(t, func() { f.clock.Arm(resetAt) })
	f.do(t, func() { f.orch.Refresh(TriggerManual) })
	<-started

	for i := 0; i < 2; i++ {
		require.NoError(t, f.fc.BlockUntilContext(f.ctx, 1))
		f.fc.Advance(time.Second)
	}
	require.Eventually(t, func() bool {
		var deferred Trigger
		f.do(t, func() { deferred = f.orch.deferred })
		return deferred == TriggerCountdown
	}, time.Second, time.Millisecond)

	close(release)
	f.waitNames(t, "post-reset")
	f.fetcher.AssertNumberOfCalls(t, "GetLeaderboard", 2)

	var left int
	f.do(t, func() { left = f.clock.SecondsLeft() })
	assert.Equal(t, 3600, left)
}

func TestRefresh_ErrorKeepsLastState(t *testing.T) {
	f := newFixture(t, testConfig(), false)
	f.fetcher.On("GetLeaderboard", mock.Anything, "").Return(response("Ada"), nil).Once()
	f.fetcher.On("GetLeaderboard", mock.Anything, "").Return(nil, errors.New("connection refused")).Once()

	f.do(t, func() { f.orch.Refresh(TriggerManual) })
	f.waitNames(t, "Ada")
	first := f.status(t).LastFetchedAt

	f.do(t, func() { f.orch.Refresh(TriggerManual) })
	require.Eventually(t, func() bool {
		return f.status(t).LastError != ""
	}, time.Second, time.Millisecond)

	s := f.status(t)
	assert.Contains(t, s.LastError, "connection refused")
	assert.False(t, s.Fetching)
	assert.Equal(t, first, s.LastFetchedAt)
	assert.Equal(t, []string{"Ada"}, f.names(t))
}

func TestStart_PeriodicRefresh(t *testing.T) {
	f := newFixture(t, testConfig(), false)

	var calls atomic.Int32
	f.fetcher.On("GetLeaderboard", mock.Anything, "").
		Run(func(mock.Arguments) { calls.Add(1) }).
		Return(response("Ada"), nil)

	f.do(t, f.orch.Start)
	f.waitNames(t, "Ada")

	// periodic and freshness timers
	require.NoError(t, f.fc.BlockUntilContext(f.ctx, 2))
	f.fc.Advance(20 * time.Minute)

	require.Eventually(t, func() bool {
		return calls.Load() == 2
	}, time.Second, time.Millisecond)
}

func TestFreshness_TimeAgo(t *testing.T) {
	f := newFixture(t, testConfig(), false)
	f.fetcher.On("GetLeaderboard", mock.Anything, "").Return(response("Ada"), nil)

	f.do(t, f.orch.Start)
	f.waitNames(t, "Ada")
	require.NoError(t, f.fc.BlockUntilContext(f.ctx, 2))

	f.fc.Advance(30 * time.Second)
	require.Eventually(t, func() bool {
		return f.status(t).TimeAgo == "30 seconds ago"
	}, time.Second, time.Millisecond)
}

func TestSearch_Debounce(t *testing.T) {
	f := newFixture(t, testConfig(), false)
	f.fetcher.On("GetLeaderboard", mock.Anything, "ada").Return(response("Ada"), nil).Once()

	f.do(t, func() { f.orch.SetSearchText("a") })
	require.NoError(t, f.fc.BlockUntilContext(f.ctx, 1))
	f.fc.Advance(200 * time.Millisecond)

	f.do(t, func() { f.orch.SetSearchText("ad") })
	require.NoError(t, f.fc.BlockUntilContext(f.ctx, 1))
	f.fc.Advance(200 * time.Millisecond)

	f.do(t, func() { f.orch.SetSearchText("ada") })
	require.NoError(t, f.fc.BlockUntilContext(f.ctx, 1))
	f.fc.Advance(500 * time.Millisecond)

	f.waitNames(t, "Ada")
	f.fetcher.AssertNumberOfCalls(t, "GetLeaderboard", 1)

	// Same term again does not refetch.
	f.do(t, func() { f.orch.SetSearchText("ada") })
	require.NoError(t, f.fc.BlockUntilContext(f.ctx, 1))
	f.fc.Advance(500 * time.Millisecond)
	require.NoError(t, f.fc.BlockUntilContext(f.ctx, 0))
	f.do(t, func() {})
	f.fetcher.AssertNumberOfCalls(t, "GetLeaderboard", 1)
}

func TestStop_DropsLateResponseAndTimers(t *testing.T) {
	f := newFixture(t, testConfig(), false)

	release := make(chan struct{})
	finished := make(chan struct{})
	f.fetcher.On("GetLeaderboard", mock.Anything, "").
		Run(func(mock.Arguments) {
			<-release
			close(finished)
		}).
		Return(response("late"), nil).Once()

	f.do(t, f.orch.Start)
	require.NoError(t, f.fc.BlockUntilContext(f.ctx, 2))

	f.do(t, f.orch.Stop)
	require.NoError(t, f.fc.BlockUntilContext(f.ctx, 0))

	close(release)
	<-finished
	time.Sleep(20 * time.Millisecond)

	assert.Empty(t, f.names(t))
	assert.False(t, f.status(t).Fetching)
}

func TestRefresh_SyncsServerClock(t *testing.T) {
	cfg := testConfig()
	cfg.SyncServerClock = true
	f := newFixture(t, cfg, true)

	resp := response("Ada")
	resp.ServerTime = f.fc.Now().Add(10 * time.Second)
	resp.NextResetAt = f.fc.Now().Add(70 * time.Second)
	f.fetcher.On("GetLeaderboard", mock.Anything, "").Return(resp, nil).Once()

	f.do(t, func() { f.orch.Refresh(TriggerManual) })
	f.waitNames(t, "Ada")

	var left int
	f.do(t, func() { left = f.clock.SecondsLeft() })
	assert.Equal(t, 60, left)
}

func TestOnAppliedHook(t *testing.T) {
	fc := clockwork.NewFakeClock()
	loop := eventloop.New(context.Background(), fc)
	defer loop.Close()

	fetcher := &mockleaderboard.Client{}
	fetcher.On("GetLeaderboard", mock.Anything, "").Return(response("Ada"), nil).Once()

	applied := 0
	o := New(loop, roster.NewStore(), nil, fetcher, testConfig(), WithOnApplied(func() { applied++ }))
	require.NoError(t, loop.Do(func() { o.Refresh(TriggerManual) }))

	require.Eventually(t, func() bool {
		var n int
		require.NoError(t, loop.Do(func() { n = applied }))
		return n == 1
	}, time.Second, time.Millisecond)
}

func TestFormatTimeAgo(t *testing.T) {
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		elapsed time.Duration
		want    string
	}{
		{0, "just now"},
		{4 * time.Second, "just now"},
		{5 * time.Second, "5 seconds ago"},
		{59 * time.Second, "59 seconds ago"},
		{time.Minute, "1 minute ago"},
		{17 * time.Minute, "17 minutes ago"},
		{time.Hour, "1 hour ago"},
		{5 * time.Hour, "5 hours ago"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatTimeAgo(base, base.Add(tt.elapsed)), tt.elapsed.String())
	}
}
