package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mcdev12/prizeboard/go/clients/leaderboard_client"
	"github.com/mcdev12/prizeboard/go/internal/realtime/natsbus"
	"github.com/mcdev12/prizeboard/go/internal/realtime/pusher"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, key := range []string{
		"PORT", "API_URL", "LOG_LEVEL", "CONFIG_PATH", "REALTIME_DRIVER", "CHANNEL_NAME",
		"PUSHER_APP_KEY", "PUSHER_CLUSTER", "PUSHER_HOST", "PUSHER_PORT", "PUSHER_PATH", "PUSHER_TLS",
		"BROADCAST_AUTH_URL", "NATS_URL", "NATS_SUBJECT_PREFIX",
	} {
		t.Setenv(key, "")
	}
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("PUSHER_APP_KEY", "app-key")

	config, err := loadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", config.Port)
	assert.Equal(t, "http://localhost:3333", config.APIURL)
	assert.Equal(t, zerolog.InfoLevel, config.LogLevel)
	assert.Equal(t, DriverPusher, config.Driver)
	assert.Equal(t, "private-leaderboard", config.Channel)
	assert.True(t, config.Pusher.TLS)
	assert.Empty(t, config.Pusher.AuthEndpoint)
	assert.Equal(t, "leaderboard", config.NATS.SubjectPrefix)

	dc := config.dashboardConfig()
	assert.Equal(t, int64(100), dc.Reconciler.Award.ChunkSize)
	assert.Equal(t, 50*time.Millisecond, dc.Reconciler.Award.TickInterval)
	assert.Equal(t, 3*time.Second, dc.Reconciler.CompletionDelay)
	assert.Equal(t, 2*time.Second, dc.Reconciler.RefreshDelay)
	assert.True(t, dc.Reconciler.HandleUpdates)
	assert.Equal(t, 20*time.Minute, dc.Orchestrator.PeriodicInterval)
	assert.Equal(t, 500*time.Millisecond, dc.Orchestrator.SearchDebounce)
	assert.Equal(t, time.Second, dc.CountdownInterval)
	assert.False(t, dc.GroupByCountry)
	assert.Equal(t, "private-leaderboard", dc.Reconciler.Channel)
}

func TestLoadConfig_Env(t *testing.T) {
	clearEnv(t)
	t.Setenv("API_URL", "https://api.example.com/")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("REALTIME_DRIVER", "NATS")
	t.Setenv("CHANNEL_NAME", "scores")
	t.Setenv("NATS_URL", "nats://bus:4222")
	t.Setenv("NATS_SUBJECT_PREFIX", "prizes")
	t.Setenv("PUSHER_PORT", "not-a-number")
	t.Setenv("BROADCAST_AUTH_URL", "https://auth.example.com/pusher")

	config, err := loadConfig()
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.com", config.APIURL)
	assert.Equal(t, zerolog.DebugLevel, config.LogLevel)
	assert.Equal(t, DriverNATS, config.Driver)
	assert.Equal(t, "scores", config.Channel)
	assert.Equal(t, "nats://bus:4222", config.NATS.URL)
	assert.Equal(t, "prizes", config.NATS.SubjectPrefix)
	assert.Equal(t, 0, config.Pusher.Port)
	assert.Equal(t, "https://auth.example.com/pusher", config.Pusher.AuthEndpoint)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{name: "pusher without key", env: map[string]string{"REALTIME_DRIVER": "pusher"}, want: "PUSHER_APP_KEY"},
		{name: "unknown driver", env: map[string]string{"REALTIME_DRIVER": "smoke-signals"}, want: "unknown REALTIME_DRIVER"},
		{name: "bad log level", env: map[string]string{"REALTIME_DRIVER": "none", "LOG_LEVEL": "loud"}, want: "LOG_LEVEL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := loadConfig()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadTuning(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
award:
  chunk_size: 25
  tick_interval: 20ms
countdown:
  sync_server_clock: true
reconciler:
  handle_updates: false
  completion_delay: 1s
  messages:
    completed: "Done!"
orchestrator:
  periodic_interval: 5m
view:
  group_by_country: true
`), 0o644))

	tuning, err := loadTuning(path)
	require.NoError(t, err)

	assert.Equal(t, int64(25), tuning.Award.ChunkSize)
	assert.Equal(t, 20*time.Millisecond, tuning.Award.TickInterval)
	assert.True(t, tuning.Countdown.SyncServerClock)
	assert.Equal(t, time.Second, tuning.Countdown.Interval, "unset keys keep defaults")
	assert.False(t, tuning.Reconciler.HandleUpdates)
	assert.Equal(t, time.Second, tuning.Reconciler.CompletionDelay)
	assert.Equal(t, 2*time.Second, tuning.Reconciler.RefreshDelay)
	assert.Equal(t, "Done!", tuning.Reconciler.Messages.Completed)
	assert.Equal(t, "Refreshing leaderboard...", tuning.Reconciler.Messages.Refreshing)
	assert.Equal(t, 5*time.Minute, tuning.Orchestrator.PeriodicInterval)
	assert.True(t, tuning.View.GroupByCountry)
}

func TestLoadTuning_Errors(t *testing.T) {
	tuning, err := loadTuning(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, defaultTuning(), tuning)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("award:\n  tick_interval: soon\n"), 0o644))
	_, err = loadTuning(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config")
}

func TestNewTransport(t *testing.T) {
	client := leaderboard_client.NewLeaderboardClient("http://localhost:3333")
	config := &Config{Driver: DriverPusher, Pusher: pusher.DefaultConfig(), NATS: natsbus.DefaultConfig()}
	assert.IsType(t, &pusher.Client{}, newTransport(config, client))

	config.Driver = DriverNATS
	assert.IsType(t, &natsbus.Transport{}, newTransport(config, client))

	config.Driver = DriverNone
	assert.Nil(t, newTransport(config, client))
}
