package app

import (
	"log/slog"

	"ontime.transit.dev/internal/appconf"
	"ontime.transit.dev/internal/clock"
	"ontime.transit.dev/internal/gtfs"
	"ontime.transit.dev/internal/metrics"
	"ontime.transit.dev/internal/publisher"
)

// Application holds the dependencies shared by the HTTP handlers, middleware
// and background loops.
type Application struct {
	Config      appconf.Config
	GtfsConfig  gtfs.Config
	Logger      *slog.Logger
	GtfsManager *gtfs.Manager
	Clock       clock.Clock
	Metrics     *metrics.Metrics
	// Publisher is nil unless NATS is configured.
	Publisher *publisher.NATSPublisher
}
