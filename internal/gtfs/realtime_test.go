package gtfs

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ontime.transit.dev/internal/appconf"
	"ontime.transit.dev/internal/clock"
	"ontime.transit.dev/internal/metrics"
	"ontime.transit.dev/internal/realtime"
)

type recordingPublisher struct {
	got [][]realtime.VehiclePosition
}

func (p *recordingPublisher) PublishPositions(_ context.Context, vehicles []realtime.VehiclePosition) error {
	p.got = append(p.got, vehicles)
	return nil
}

func TestPollOnce_InstallsPredictions(t *testing.T) {
	fs := newFeedServer(t)
	fs.serve("/trips", tripUpdatesPayload(t, baseNow, "0#T1", "S1", baseNow.Add(5*time.Minute)))
	fs.serve("/vehicles", vehiclePositionsPayload(t, baseNow, "T1", "V7", 41.9, 12.5))

	pub := &recordingPublisher{}
	m := metrics.New()
	mock := clock.NewMockClock(baseNow)
	manager, err := InitGTFSManager(context.Background(), Config{
		StaticSource: writeScheduleDir(t),
		Location:     time.UTC,
		RTFeed: RTFeedConfig{
			TripUpdatesURL:      fs.URL + "/trips",
			VehiclePositionsURL: fs.URL + "/vehicles",
		},
		Env: appconf.Test,
	}, WithClock(mock), WithMetrics(m), WithPublisher(pub))
	require.NoError(t, err)
	defer manager.Shutdown()

	result, err := manager.PollOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Predictions)
	assert.Equal(t, 1, result.Vehicles)
	assert.Equal(t, baseNow, result.FeedTimestamp)
	assert.Equal(t, realtime.ModeOnline, result.Mode)

	// The feed's raw id "0#T1" still joins to scheduled trip T1.
	assert.Equal(t, []string{"R1 - 5 min (late by 2 min)", "R2 - 19 min (scheduled)"},
		manager.Engine().ArrivalsForStop("S1"))

	vehicles := manager.VehiclePositions()
	require.Len(t, vehicles, 1)
	assert.Equal(t, "V7", vehicles[0].VehicleID)
	assert.False(t, vehicles[0].Simulated)

	require.Len(t, pub.got, 1)
	assert.Equal(t, "V7", pub.got[0][0].VehicleID)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RealtimePollsTotal.WithLabelValues(metrics.FeedTripUpdates, "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RealtimePollsTotal.WithLabelValues(metrics.FeedVehiclePositions, "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RealtimePredictions))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RealtimeOnline))
}

func TestPollOnce_SendsHeaders(t *testing.T) {
	got := make(chan string, 1)
	fs := newFeedServer(t, func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case got <- r.Header.Get("Authorization"):
			default:
			}
			next.ServeHTTP(w, r)
		})
	})
	fs.serve("/trips", tripUpdatesPayload(t, baseNow, "T1", "S1", baseNow.Add(5*time.Minute)))

	manager, _ := newTestManager(t, func(c *Config) {
		c.RTFeed.TripUpdatesURL = fs.URL + "/trips"
		c.RTFeed.Headers = map[string]string{"Authorization": "Bearer abc"}
	})

	_, err := manager.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer abc", <-got)
}

func TestPollOnce_FailuresSwitchToOfflineAndBack(t *testing.T) {
	fs := newFeedServer(t)
	fs.serve("/trips", tripUpdatesPayload(t, baseNow, "T1", "S1", baseNow.Add(5*time.Minute)))

	manager, _ := newTestManager(t, func(c *Config) {
		c.RTFeed.TripUpdatesURL = fs.URL + "/trips"
	})

	_, err := manager.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, manager.Predictions().Len())

	fs.fail("/trips", http.StatusBadGateway)

	result, err := manager.PollOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.Equal(t, realtime.ModeOnline, result.Mode, "one failure is tolerated")
	assert.Equal(t, 1, manager.ConsecutiveFailures())
	assert.Equal(t, 1, manager.Predictions().Len(), "previous snapshot stays in place")

	result, err = manager.PollOnce(context.Background())
	require.Error(t, err)
	assert.Equal(t, realtime.ModeOffline, result.Mode)
	assert.True(t, result.ModeChanged)
	assert.Equal(t, realtime.ModeOffline, manager.Mode())

	// Offline: the engine ignores the prediction.
	assert.Equal(t, []string{"R1 - 3 min (scheduled)", "R2 - 19 min (scheduled)"},
		manager.Engine().ArrivalsForStop("S1"))

	fs.serve("/trips", tripUpdatesPayload(t, baseNow, "T1", "S1", baseNow.Add(4*time.Minute)))
	result, err = manager.PollOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, result.ModeChanged)
	assert.Equal(t, realtime.ModeOnline, manager.Mode())
	assert.Equal(t, 0, manager.ConsecutiveFailures())
	assert.Equal(t, "R1 - 4 min (on time)", manager.Engine().ArrivalsForStop("S1")[0])
}

func TestPollOnce_VehicleFailureKeepsPredictions(t *testing.T) {
	fs := newFeedServer(t)
	fs.serve("/trips", tripUpdatesPayload(t, baseNow, "T1", "S1", baseNow.Add(5*time.Minute)))
	fs.fail("/vehicles", http.StatusInternalServerError)

	manager, _ := newTestManager(t, func(c *Config) {
		c.RTFeed.TripUpdatesURL = fs.URL + "/trips"
		c.RTFeed.VehiclePositionsURL = fs.URL + "/vehicles"
	})

	result, err := manager.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Predictions)
	assert.Equal(t, 0, result.Vehicles)
}

func TestPollOnce_RejectsGarbage(t *testing.T) {
	fs := newFeedServer(t)
	fs.serve("/trips", []byte("this is not a protobuf message"))

	manager, _ := newTestManager(t, func(c *Config) {
		c.RTFeed.TripUpdatesURL = fs.URL + "/trips"
	})

	_, err := manager.PollOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode GTFS-RT feed")
}

func TestPollOnce_RejectsOversizedFeed(t *testing.T) {
	fs := newFeedServer(t)
	fs.serve("/trips", make([]byte, maxFeedSize+10))

	manager, _ := newTestManager(t, func(c *Config) {
		c.RTFeed.TripUpdatesURL = fs.URL + "/trips"
	})

	_, err := manager.PollOnce(context.Background())
	assert.ErrorIs(t, err, ErrFeedTooLarge)
}

func TestPollOnce_FetchesFeedsInParallel(t *testing.T) {
	release := make(chan struct{})
	arrived := make(chan string, 2)

	fs := newFeedServer(t, func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			arrived <- r.URL.Path
			<-release
			next.ServeHTTP(w, r)
		})
	})
	fs.serve("/trips", tripUpdatesPayload(t, baseNow, "T1", "S1", baseNow.Add(5*time.Minute)))
	fs.serve("/vehicles", vehiclePositionsPayload(t, baseNow, "T1", "V1", 41.9, 12.5))
	var releaseOnce sync.Once
	unblock := func() { releaseOnce.Do(func() { close(release) }) }
	t.Cleanup(unblock)

	manager, _ := newTestManager(t, func(c *Config) {
		c.RTFeed.TripUpdatesURL = fs.URL + "/trips"
		c.RTFeed.VehiclePositionsURL = fs.URL + "/vehicles"
	})

	done := make(chan error, 1)
	go func() {
		_, err := manager.PollOnce(context.Background())
		done <- err
	}()

	// Both requests must be in flight before either is answered.
	seen := map[string]bool{}
	for range 2 {
		select {
		case p := <-arrived:
			seen[p] = true
		case <-time.After(2 * time.Second):
			t.Fatal("feeds were not requested concurrently")
		}
	}
	unblock()

	require.NoError(t, <-done)
	assert.True(t, seen["/trips"])
	assert.True(t, seen["/vehicles"])
}

func TestVehiclePositions_SimulatedWhenOffline(t *testing.T) {
	manager, mock := newTestManager(t, func(c *Config) { c.StartOffline = true })

	mock.Set(time.Date(2025, 3, 10, 8, 3, 0, 0, time.UTC))
	vehicles := manager.VehiclePositions()
	require.Len(t, vehicles, 1)
	assert.Equal(t, "SIM-T1", vehicles[0].VehicleID)
	assert.True(t, vehicles[0].Simulated)
	assert.Equal(t, realtime.ModeOffline, manager.Mode())

	assert.True(t, manager.SetMode(realtime.ModeOnline))
	age, stale := manager.FeedAge()
	assert.True(t, stale, "no feed has been received")
	assert.Greater(t, age, manager.stale.Threshold())
}

func TestPollOnce_FeedWithoutHeaderTimestamp(t *testing.T) {
	fs := newFeedServer(t)
	fs.serve("/trips", tripUpdatesPayload(t, time.Time{}, "T1", "S1", baseNow.Add(5*time.Minute)))

	manager, mock := newTestManager(t, func(cfg *Config) {
		cfg.RTFeed = RTFeedConfig{TripUpdatesURL: fs.URL + "/trips"}
	})

	result, err := manager.PollOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, result.FeedTimestamp.IsZero())
	assert.Equal(t, 1, result.Predictions)

	age, stale := manager.FeedAge()
	assert.False(t, stale)
	assert.Zero(t, age)
	assert.Equal(t, []string{"R1 - 5 min (late by 2 min)", "R2 - 19 min (scheduled)"},
		manager.Engine().ArrivalsForStop("S1"))

	mock.Advance(manager.stale.Threshold() + time.Second)
	_, stale = manager.FeedAge()
	assert.True(t, stale)
}
