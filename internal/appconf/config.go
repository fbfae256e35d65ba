// Package appconf assembles the process configuration from a .env file, the
// environment, command-line flags and an optional YAML feed file.
package appconf

import (
	"time"
)

// Config is the validated process configuration.
type Config struct {
	Port int         `validate:"min=0,max=65535"`
	Env  Environment `validate:"min=0,max=2"`

	// StaticSource is a GTFS zip, an unpacked GTFS directory, or an http(s) URL to a zip.
	StaticSource          string `validate:"required"`
	StaticAuthHeaderKey   string
	StaticAuthHeaderValue string
	SnapshotPath          string
	TimeZone              string `validate:"required"`

	TripUpdatesURL      string `validate:"omitempty,url"`
	VehiclePositionsURL string `validate:"omitempty,url"`
	FeedHeaders         map[string]string

	PollInterval           time.Duration `validate:"gt=0"`
	PollTimeout            time.Duration `validate:"gt=0"`
	StaleThreshold         time.Duration `validate:"gt=0"`
	MaxConsecutiveFailures int           `validate:"min=1"`
	StartOffline           bool

	RateLimit int `validate:"min=0"`

	NATSURL           string `validate:"omitempty,url"`
	NATSSubjectPrefix string `validate:"required_with=NATSURL"`

	Verbose bool

	location *time.Location
}

// Location is the zone schedule times are interpreted in. Load resolves it from TimeZone.
func (c Config) Location() *time.Location {
	if c.location == nil {
		return time.Local
	}
	return c.location
}

// RealtimeEnabled reports whether a trip updates feed is configured.
func (c Config) RealtimeEnabled() bool {
	return c.TripUpdatesURL != ""
}

// Default returns the configuration used before any source is applied.
func Default() Config {
	return Config{
		Port:                   4000,
		Env:                    Development,
		TimeZone:               "UTC",
		PollInterval:           30 * time.Second,
		PollTimeout:            15 * time.Second,
		StaleThreshold:         5 * time.Minute,
		MaxConsecutiveFailures: 3,
		RateLimit:              100,
		NATSSubjectPrefix:      "vehicles",
		FeedHeaders:            map[string]string{},
	}
}
