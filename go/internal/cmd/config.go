package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mcdev12/prizeboard/go/clients/leaderboard_client"
	"github.com/mcdev12/prizeboard/go/internal/leaderboard/award"
	"github.com/mcdev12/prizeboard/go/internal/leaderboard/countdown"
	"github.com/mcdev12/prizeboard/go/internal/leaderboard/dashboard"
	"github.com/mcdev12/prizeboard/go/internal/leaderboard/orchestrator"
	"github.com/mcdev12/prizeboard/go/internal/leaderboard/reconciler"
	"github.com/mcdev12/prizeboard/go/internal/realtime/natsbus"
	"github.com/mcdev12/prizeboard/go/internal/realtime/pusher"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

const (
	DriverPusher = "pusher"
	DriverNATS   = "nats"
	DriverNone   = "none"
)

type Config struct {
	Port       string
	APIURL     string
	LogLevel   zerolog.Level
	ConfigPath string

	Driver  string
	Channel string
	Pusher  pusher.Config
	NATS    natsbus.Config

	Tuning Tuning
}

// Tuning is the optional YAML file of engine timings.
type Tuning struct {
	Award struct {
		ChunkSize    int64         `yaml:"chunk_size"`
		TickInterval time.Duration `yaml:"tick_interval"`
	} `yaml:"award"`

	Countdown struct {
		Interval        time.Duration `yaml:"interval"`
		SyncServerClock bool          `yaml:"sync_server_clock"`
	} `yaml:"countdown"`

	Reconciler struct {
		HandleUpdates   bool                      `yaml:"handle_updates"`
		CompletionDelay time.Duration             `yaml:"completion_delay"`
		RefreshDelay    time.Duration             `yaml:"refresh_delay"`
		Messages        reconciler.BannerMessages `yaml:"messages"`
	} `yaml:"reconciler"`

	Orchestrator struct {
		PeriodicInterval  time.Duration `yaml:"periodic_interval"`
		SearchDebounce    time.Duration `yaml:"search_debounce"`
		FreshnessInterval time.Duration `yaml:"freshness_interval"`
		RequestTimeout    time.Duration `yaml:"request_timeout"`
	} `yaml:"orchestrator"`

	View struct {
		GroupByCountry bool `yaml:"group_by_country"`
	} `yaml:"view"`
}

func defaultTuning() Tuning {
	rc := reconciler.DefaultConfig()
	oc := orchestrator.DefaultConfig()

	var t Tuning
	t.Award.ChunkSize = award.DefaultChunkSize
	t.Award.TickInterval = award.DefaultTickInterval
	t.Countdown.Interval = countdown.DefaultInterval
	t.Countdown.SyncServerClock = oc.SyncServerClock
	t.Reconciler.HandleUpdates = rc.HandleUpdates
	t.Reconciler.CompletionDelay = rc.CompletionDelay
	t.Reconciler.RefreshDelay = rc.RefreshDelay
	t.Reconciler.Messages = rc.Messages
	t.Orchestrator.PeriodicInterval = oc.PeriodicInterval
	t.Orchestrator.SearchDebounce = oc.SearchDebounce
	t.Orchestrator.FreshnessInterval = oc.FreshnessInterval
	t.Orchestrator.RequestTimeout = oc.RequestTimeout
	return t
}

func (c *Config) dashboardConfig() dashboard.Config {
	t := c.Tuning
	cfg := dashboard.DefaultConfig()

	cfg.Reconciler.Channel = c.Channel
	cfg.Reconciler.HandleUpdates = t.Reconciler.HandleUpdates
	cfg.Reconciler.Award = award.Options{ChunkSize: t.Award.ChunkSize, TickInterval: t.Award.TickInterval}
	cfg.Reconciler.CompletionDelay = t.Reconciler.CompletionDelay
	cfg.Reconciler.RefreshDelay = t.Reconciler.RefreshDelay
	cfg.Reconciler.Messages = t.Reconciler.Messages

	cfg.Orchestrator.PeriodicInterval = t.Orchestrator.PeriodicInterval
	cfg.Orchestrator.SearchDebounce = t.Orchestrator.SearchDebounce
	cfg.Orchestrator.FreshnessInterval = t.Orchestrator.FreshnessInterval
	cfg.Orchestrator.RequestTimeout = t.Orchestrator.RequestTimeout
	cfg.Orchestrator.SyncServerClock = t.Countdown.SyncServerClock

	cfg.CountdownInterval = t.Countdown.Interval
	cfg.GroupByCountry = t.View.GroupByCountry
	return cfg
}

func loadConfig() (*Config, error) {
	apiURL := strings.TrimRight(getEnv("API_URL", leaderboard_client.DefaultBaseURL), "/")
	level, err := zerolog.ParseLevel(strings.ToLower(getEnv("LOG_LEVEL", "info")))
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	config := &Config{
		Port:       getEnv("PORT", "8080"),
		APIURL:     apiURL,
		LogLevel:   level,
		ConfigPath: getEnv("CONFIG_PATH", "config.yaml"),
		Driver:     strings.ToLower(getEnv("REALTIME_DRIVER", DriverPusher)),
		Channel:    getEnv("CHANNEL_NAME", "private-leaderboard"),
	}

	config.Pusher = pusher.DefaultConfig()
	config.Pusher.AppKey = getEnv("PUSHER_APP_KEY", "")
	config.Pusher.Cluster = getEnv("PUSHER_CLUSTER", config.Pusher.Cluster)
	config.Pusher.Host = getEnv("PUSHER_HOST", "")
	config.Pusher.Port = getEnvAsInt("PUSHER_PORT", 0)
	config.Pusher.Path = getEnv("PUSHER_PATH", "")
	config.Pusher.TLS = getEnvAsBool("PUSHER_TLS", true)
	// Empty means the API's own broadcast auth route.
	config.Pusher.AuthEndpoint = getEnv("BROADCAST_AUTH_URL", "")

	config.NATS = natsbus.DefaultConfig()
	config.NATS.URL = getEnv("NATS_URL", config.NATS.URL)
	config.NATS.SubjectPrefix = getEnv("NATS_SUBJECT_PREFIX", config.NATS.SubjectPrefix)

	switch config.Driver {
	case DriverPusher:
		if config.Pusher.AppKey == "" {
			return nil, errors.New("PUSHER_APP_KEY is required for the pusher driver")
		}
	case DriverNATS, DriverNone:
	default:
		return nil, fmt.Errorf("unknown REALTIME_DRIVER %q", config.Driver)
	}

	tuning, err := loadTuning(config.ConfigPath)
	if err != nil {
		return nil, err
	}
	config.Tuning = tuning

	return config, nil
}

// loadTuning reads the tuning file over the defaults. A missing file leaves
// the defaults in place.
func loadTuning(path string) (Tuning, error) {
	tuning := defaultTuning()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return tuning, nil
	}
	if err != nil {
		return tuning, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &tuning); err != nil {
		return tuning, fmt.Errorf("failed to parse config: %w", err)
	}
	return tuning, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
