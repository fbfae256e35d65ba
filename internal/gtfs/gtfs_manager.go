// Package gtfs owns the live data of the service: the static schedule and its
// indices, the realtime prediction store, and the loops that keep both fresh.
package gtfs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"ontime.transit.dev/gtfsdb"
	"ontime.transit.dev/internal/arrivals"
	"ontime.transit.dev/internal/clock"
	"ontime.transit.dev/internal/logging"
	"ontime.transit.dev/internal/metrics"
	"ontime.transit.dev/internal/realtime"
	"ontime.transit.dev/internal/routes"
	"ontime.transit.dev/internal/schedule"
)

// PositionPublisher fans vehicle positions out to other consumers.
type PositionPublisher interface {
	PublishPositions(ctx context.Context, vehicles []realtime.VehiclePosition) error
}

// Manager holds the static and realtime state behind the API.
type Manager struct {
	config    Config
	clock     clock.Clock
	logger    *slog.Logger
	metrics   *metrics.Metrics
	publisher PositionPublisher

	staticMutex       sync.RWMutex
	staticUpdateMutex sync.Mutex
	store             *schedule.Store
	index             *schedule.Index
	routes            *routes.Service
	engine            *arrivals.Engine
	lastUpdated       time.Time
	isHealthy         bool
	snapshotDB        *gtfsdb.Client

	predictions         *realtime.Store
	mode                *realtime.ModeFlag
	stale               *realtime.StaleDetector
	pollMutex           sync.Mutex
	consecutiveFailures int

	shutdownChan chan struct{}
	shutdownOnce sync.Once
	startOnce    sync.Once
	wg           sync.WaitGroup
}

type ManagerOption func(*Manager)

func WithClock(c clock.Clock) ManagerOption {
	return func(m *Manager) { m.clock = c }
}

func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = logger }
}

func WithMetrics(mt *metrics.Metrics) ManagerOption {
	return func(m *Manager) { m.metrics = mt }
}

func WithPublisher(p PositionPublisher) ManagerOption {
	return func(m *Manager) { m.publisher = p }
}

// InitGTFSManager loads the static schedule and prepares the realtime state.
// Background loops are started separately with Start.
func InitGTFSManager(ctx context.Context, config Config, opts ...ManagerOption) (*Manager, error) {
	config = config.withDefaults()

	initialMode := realtime.ModeOnline
	if config.StartOffline {
		initialMode = realtime.ModeOffline
	}

	manager := &Manager{
		config:       config,
		clock:        clock.RealClock{},
		logger:       slog.Default(),
		predictions:  realtime.NewStore(),
		mode:         realtime.NewModeFlag(initialMode),
		stale:        realtime.NewStaleDetector().WithThreshold(config.StaleThreshold),
		shutdownChan: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(manager)
	}
	manager.logger = manager.logger.With(slog.String("component", "gtfs_manager"))
	manager.metrics.SetOnline(initialMode == realtime.ModeOnline)

	snapshotDB, err := openSnapshotDB(config)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot database: %w", err)
	}
	manager.snapshotDB = snapshotDB

	store, err := manager.loadInitialSchedule(ctx)
	if err != nil {
		manager.closeSnapshotDB()
		return nil, err
	}
	manager.setSchedule(store)

	if config.Verbose {
		logging.LogOperation(manager.logger, "gtfs_data_set_successfully",
			slog.String("source", config.StaticSource),
			slog.Int("stops", len(store.Stops())),
			slog.Int("trips", len(store.Trips())),
			slog.Int("stop_times", len(store.StopTimes())),
			slog.Int("dropped_stop_times", store.Dropped()))
	}

	return manager, nil
}

// Start launches the realtime poll loop and, for remote sources, the daily static refresh.
func (manager *Manager) Start() {
	manager.startOnce.Do(func() {
		if manager.config.realtimeEnabled() {
			manager.wg.Add(1)
			go manager.updateGTFSRealtimePeriodically()
		}
		manager.wg.Add(1)
		go manager.updateStaticGTFS()
	})
}

// Shutdown stops the background loops and closes the snapshot database.
func (manager *Manager) Shutdown() {
	manager.shutdownOnce.Do(func() {
		close(manager.shutdownChan)
		manager.wg.Wait()
		manager.closeSnapshotDB()
	})
}

func (manager *Manager) closeSnapshotDB() {
	if manager.snapshotDB != nil {
		logging.SafeCloseWithLogging(manager.snapshotDB, manager.logger, "snapshot_db")
	}
}

// setSchedule rebuilds the indices and the engine for store and swaps them in.
func (manager *Manager) setSchedule(store *schedule.Store) {
	matcher := schedule.NewMatcher(store.Trips())
	index := schedule.NewIndex(store, matcher)
	engine := arrivals.NewEngine(index, manager.predictions, manager.mode,
		arrivals.WithClock(manager.clock),
		arrivals.WithLocation(manager.config.Location),
		arrivals.WithStaleDetector(manager.stale))

	manager.staticMutex.Lock()
	defer manager.staticMutex.Unlock()
	manager.store = store
	manager.index = index
	manager.routes = routes.NewService(store)
	manager.engine = engine
	manager.lastUpdated = manager.clock.Now()
	manager.isHealthy = true
}

func (manager *Manager) Schedule() *schedule.Store {
	manager.staticMutex.RLock()
	defer manager.staticMutex.RUnlock()
	return manager.store
}

func (manager *Manager) currentIndex() *schedule.Index {
	manager.staticMutex.RLock()
	defer manager.staticMutex.RUnlock()
	return manager.index
}

func (manager *Manager) Index() *schedule.Index {
	return manager.currentIndex()
}

func (manager *Manager) Routes() *routes.Service {
	manager.staticMutex.RLock()
	defer manager.staticMutex.RUnlock()
	return manager.routes
}

func (manager *Manager) Engine() *arrivals.Engine {
	manager.staticMutex.RLock()
	defer manager.staticMutex.RUnlock()
	return manager.engine
}

// Predictions returns the current realtime snapshot.
func (manager *Manager) Predictions() *realtime.Snapshot {
	return manager.predictions.Snapshot()
}

func (manager *Manager) Mode() realtime.Mode {
	return manager.mode.Get()
}

// SetMode forces the realtime mode and reports whether it changed.
func (manager *Manager) SetMode(m realtime.Mode) bool {
	changed := manager.mode.Set(m)
	manager.metrics.SetOnline(m == realtime.ModeOnline)
	return changed
}

// FeedAge is the age of the current trip updates feed, and whether it is stale.
// Feeds without a header timestamp are aged from when they were fetched.
func (manager *Manager) FeedAge() (time.Duration, bool) {
	ts := manager.predictions.Snapshot().Freshness()
	now := manager.clock.Now()
	return manager.stale.Age(ts, now), manager.stale.Check(ts, now)
}

func (manager *Manager) LastUpdated() time.Time {
	manager.staticMutex.RLock()
	defer manager.staticMutex.RUnlock()
	return manager.lastUpdated
}

func (manager *Manager) IsHealthy() bool {
	manager.staticMutex.RLock()
	defer manager.staticMutex.RUnlock()
	return manager.isHealthy
}

func (manager *Manager) MarkHealthy() {
	manager.staticMutex.Lock()
	defer manager.staticMutex.Unlock()
	manager.isHealthy = true
}

func (manager *Manager) MarkUnhealthy() {
	manager.staticMutex.Lock()
	defer manager.staticMutex.Unlock()
	manager.isHealthy = false
}

// SnapshotDB exposes the snapshot database, or nil when none is configured.
func (manager *Manager) SnapshotDB() *gtfsdb.Client {
	return manager.snapshotDB
}

func (manager *Manager) Location() *time.Location {
	return manager.config.Location
}
