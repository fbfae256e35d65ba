// Package metrics provides Prometheus metrics for the arrivals service.
package metrics

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Feed labels used by the poll counters.
const (
	FeedTripUpdates      = "trip_updates"
	FeedVehiclePositions = "vehicle_positions"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Registry is the Prometheus registry for this metrics instance
	Registry *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Realtime feed metrics
	RealtimePollsTotal   *prometheus.CounterVec
	RealtimePollDuration prometheus.Histogram
	RealtimePredictions  prometheus.Gauge
	RealtimeVehicles     prometheus.Gauge
	RealtimeOnline       prometheus.Gauge
	RealtimeFeedAge      prometheus.Gauge

	// Position publishing metrics
	NATSPublishedTotal  prometheus.Counter
	NATSPublishErrTotal prometheus.Counter
	NATSPublishDuration prometheus.Histogram
	NATSConnected       prometheus.Gauge

	// Database metrics
	DBConnectionsOpen  prometheus.Gauge
	DBConnectionsInUse prometheus.Gauge
	DBConnectionsIdle  prometheus.Gauge
	DBWaitSecondsTotal prometheus.Counter

	logger *slog.Logger

	// collectorStarted prevents spawning multiple collector goroutines
	collectorStarted atomic.Bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates and registers all application metrics with a new registry.
func New() *Metrics {
	return NewWithLogger(nil)
}

// NewWithLogger creates metrics with a logger for error reporting.
func NewWithLogger(logger *slog.Logger) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		Registry: registry,
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ontime_http_requests_total",
				Help: "Total number of HTTP requests by route and status",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ontime_http_request_duration_seconds",
				Help:    "HTTP request latency distribution",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ontime_http_requests_in_flight",
			Help: "HTTP requests currently being served",
		}),
		RealtimePollsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ontime_realtime_polls_total",
				Help: "Realtime feed fetches by feed and result",
			},
			[]string{"feed", "result"},
		),
		RealtimePollDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ontime_realtime_poll_duration_seconds",
			Help:    "Wall time of one realtime poll, both feeds included",
			Buckets: prometheus.DefBuckets,
		}),
		RealtimePredictions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ontime_realtime_predictions",
			Help: "Arrival predictions in the current snapshot",
		}),
		RealtimeVehicles: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ontime_realtime_vehicles",
			Help: "Vehicle positions in the current snapshot",
		}),
		RealtimeOnline: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ontime_realtime_online",
			Help: "1 when realtime data is in use, 0 in offline mode",
		}),
		RealtimeFeedAge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ontime_realtime_feed_age_seconds",
			Help: "Age of the trip updates feed header at the last poll",
		}),
		NATSPublishedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ontime_nats_published_total",
			Help: "Vehicle position messages published",
		}),
		NATSPublishErrTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ontime_nats_publish_errors_total",
			Help: "Vehicle position messages that failed to publish",
		}),
		NATSPublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ontime_nats_publish_duration_seconds",
			Help:    "Latency of a single publish call",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ontime_nats_connected",
			Help: "1 while the NATS connection is up",
		}),
		DBConnectionsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ontime_db_connections_open",
			Help: "Number of open database connections",
		}),
		DBConnectionsInUse: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ontime_db_connections_in_use",
			Help: "Number of database connections currently in use",
		}),
		DBConnectionsIdle: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ontime_db_connections_idle",
			Help: "Number of idle database connections",
		}),
		DBWaitSecondsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ontime_db_wait_seconds_total",
			Help: "Total time blocked waiting for a database connection",
		}),
		logger: logger,
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.RealtimePollsTotal,
		m.RealtimePollDuration,
		m.RealtimePredictions,
		m.RealtimeVehicles,
		m.RealtimeOnline,
		m.RealtimeFeedAge,
		m.NATSPublishedTotal,
		m.NATSPublishErrTotal,
		m.NATSPublishDuration,
		m.NATSConnected,
		m.DBConnectionsOpen,
		m.DBConnectionsInUse,
		m.DBConnectionsIdle,
		m.DBWaitSecondsTotal,
	)

	return m
}

// ObservePoll counts one fetch of feed. A nil receiver records nothing.
func (m *Metrics) ObservePoll(feed string, ok bool) {
	if m == nil {
		return
	}
	result := "success"
	if !ok {
		result = "failure"
	}
	m.RealtimePollsTotal.WithLabelValues(feed, result).Inc()
}

// ObserveSnapshot records the outcome of a completed poll.
func (m *Metrics) ObserveSnapshot(predictions, vehicles int, feedAge, took time.Duration) {
	if m == nil {
		return
	}
	m.RealtimePredictions.Set(float64(predictions))
	m.RealtimeVehicles.Set(float64(vehicles))
	m.RealtimeFeedAge.Set(feedAge.Seconds())
	m.RealtimePollDuration.Observe(took.Seconds())
}

func (m *Metrics) SetOnline(online bool) {
	if m == nil {
		return
	}
	m.RealtimeOnline.Set(boolGauge(online))
}

func (m *Metrics) NATSPublishedInc() {
	if m != nil {
		m.NATSPublishedTotal.Inc()
	}
}

func (m *Metrics) NATSPublishErrInc() {
	if m != nil {
		m.NATSPublishErrTotal.Inc()
	}
}

func (m *Metrics) PublishObserve(d time.Duration) {
	if m != nil {
		m.NATSPublishDuration.Observe(d.Seconds())
	}
}

func (m *Metrics) NATSSetConnected(connected bool) {
	if m != nil {
		m.NATSConnected.Set(boolGauge(connected))
	}
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// StartDBStatsCollector starts a goroutine that periodically collects database
// connection pool statistics and updates the corresponding metrics.
// Calling it again after the first call has no effect. Call Shutdown() to stop the collector.
func (m *Metrics) StartDBStatsCollector(db *sql.DB, interval time.Duration) {
	if db == nil {
		return
	}

	if !m.collectorStarted.CompareAndSwap(false, true) {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())

	var lastWaitDuration time.Duration

	// Add to WaitGroup BEFORE exposing cancel to avoid race with Shutdown
	m.wg.Add(1)
	m.cancel = cancel

	go func() {
		defer m.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				if m.logger != nil {
					m.logger.Error("panic in DB stats collector", "error", r)
				}
			}
		}()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				stats := db.Stats()
				m.DBConnectionsOpen.Set(float64(stats.OpenConnections))
				m.DBConnectionsInUse.Set(float64(stats.InUse))
				m.DBConnectionsIdle.Set(float64(stats.Idle))

				waitDelta := stats.WaitDuration - lastWaitDuration
				if waitDelta > 0 {
					m.DBWaitSecondsTotal.Add(waitDelta.Seconds())
				}
				lastWaitDuration = stats.WaitDuration

			case <-ctx.Done():
				return
			}
		}
	}()
}

// Shutdown stops the DB stats collector goroutine and waits for it to exit.
// It is safe to call more than once.
func (m *Metrics) Shutdown() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}
