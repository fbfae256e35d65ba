package gtfs

import (
	"time"

	"ontime.transit.dev/internal/appconf"
)

// RTFeedConfig describes the GTFS-RT endpoints of one agency.
type RTFeedConfig struct {
	TripUpdatesURL      string
	VehiclePositionsURL string
	Headers             map[string]string
}

// Config holds GTFS configuration for the manager.
type Config struct {
	// StaticSource is a zip file, an unpacked directory, or an http(s) URL.
	StaticSource          string
	StaticAuthHeaderKey   string
	StaticAuthHeaderValue string
	// SnapshotPath is the sqlite file holding the last good schedule. Empty disables it.
	SnapshotPath string

	RTFeed                 RTFeedConfig
	Location               *time.Location
	PollInterval           time.Duration
	PollTimeout            time.Duration
	StaleThreshold         time.Duration
	MaxConsecutiveFailures int
	StartOffline           bool

	Env     appconf.Environment
	Verbose bool
}

const (
	defaultPollInterval           = 30 * time.Second
	defaultPollTimeout            = 15 * time.Second
	defaultMaxConsecutiveFailures = 3
	staticRefreshInterval         = 24 * time.Hour
)

// ConfigFromApp maps the process configuration onto the manager's.
func ConfigFromApp(cfg appconf.Config) Config {
	return Config{
		StaticSource:          cfg.StaticSource,
		StaticAuthHeaderKey:   cfg.StaticAuthHeaderKey,
		StaticAuthHeaderValue: cfg.StaticAuthHeaderValue,
		SnapshotPath:          cfg.SnapshotPath,
		RTFeed: RTFeedConfig{
			TripUpdatesURL:      cfg.TripUpdatesURL,
			VehiclePositionsURL: cfg.VehiclePositionsURL,
			Headers:             cfg.FeedHeaders,
		},
		Location:               cfg.Location(),
		PollInterval:           cfg.PollInterval,
		PollTimeout:            cfg.PollTimeout,
		StaleThreshold:         cfg.StaleThreshold,
		MaxConsecutiveFailures: cfg.MaxConsecutiveFailures,
		StartOffline:           cfg.StartOffline,
		Env:                    cfg.Env,
		Verbose:                cfg.Verbose,
	}
}

func (config Config) realtimeEnabled() bool {
	return config.RTFeed.TripUpdatesURL != ""
}

func (config Config) withDefaults() Config {
	if config.Location == nil {
		config.Location = time.Local
	}
	if config.PollInterval <= 0 {
		config.PollInterval = defaultPollInterval
	}
	if config.PollTimeout <= 0 {
		config.PollTimeout = defaultPollTimeout
	}
	if config.MaxConsecutiveFailures <= 0 {
		config.MaxConsecutiveFailures = defaultMaxConsecutiveFailures
	}
	return config
}
