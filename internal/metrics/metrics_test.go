package metrics

import (
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	m := New()

	assert.NotNil(t, m.Registry)
	assert.NotNil(t, m.HTTPRequestsTotal)
	assert.NotNil(t, m.RealtimePollsTotal)
	assert.NotNil(t, m.NATSConnected)
	assert.NotNil(t, m.DBWaitSecondsTotal)
	assert.Nil(t, m.logger)
}

func TestObservePoll(t *testing.T) {
	m := New()

	m.ObservePoll(FeedTripUpdates, true)
	m.ObservePoll(FeedTripUpdates, false)
	m.ObservePoll(FeedTripUpdates, false)
	m.ObservePoll(FeedVehiclePositions, true)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RealtimePollsTotal.WithLabelValues(FeedTripUpdates, "success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RealtimePollsTotal.WithLabelValues(FeedTripUpdates, "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RealtimePollsTotal.WithLabelValues(FeedVehiclePositions, "success")))
}

func TestObserveSnapshotAndMode(t *testing.T) {
	m := New()

	m.ObserveSnapshot(42, 7, 90*time.Second, 300*time.Millisecond)
	m.SetOnline(true)

	assert.Equal(t, 42.0, testutil.ToFloat64(m.RealtimePredictions))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.RealtimeVehicles))
	assert.Equal(t, 90.0, testutil.ToFloat64(m.RealtimeFeedAge))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RealtimeOnline))

	m.SetOnline(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.RealtimeOnline))
}

func TestPublisherRecorders(t *testing.T) {
	m := New()

	m.NATSSetConnected(true)
	m.NATSPublishedInc()
	m.NATSPublishedInc()
	m.NATSPublishErrInc()
	m.PublishObserve(time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.NATSConnected))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.NATSPublishedTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NATSPublishErrTotal))
}

func TestNilMetricsRecordNothing(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObservePoll(FeedTripUpdates, true)
		m.ObserveSnapshot(1, 1, time.Second, time.Second)
		m.SetOnline(true)
		m.NATSPublishedInc()
		m.NATSPublishErrInc()
		m.PublishObserve(time.Second)
		m.NATSSetConnected(true)
	})
}

func TestStartDBStatsCollector_NilDB(t *testing.T) {
	m := New()
	m.StartDBStatsCollector(nil, time.Second)
	assert.False(t, m.collectorStarted.Load())
}

func TestStartDBStatsCollector_Idempotent(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	m := New()

	m.StartDBStatsCollector(db, 100*time.Millisecond)
	assert.True(t, m.collectorStarted.Load())

	// Second call should be no-op
	m.StartDBStatsCollector(db, 100*time.Millisecond)
	assert.True(t, m.collectorStarted.Load())

	m.Shutdown()
}

func TestStartDBStatsCollector_CollectsStats(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	require.NoError(t, db.Ping())

	m := New()
	m.StartDBStatsCollector(db, 20*time.Millisecond)

	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(m.DBConnectionsOpen) >= 1
	}, time.Second, 10*time.Millisecond)

	m.Shutdown()
}

func TestShutdown_StopsGoroutine(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	m := New()
	m.StartDBStatsCollector(db, 50*time.Millisecond)

	done := make(chan struct{})
	go func() {
		m.Shutdown()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Shutdown did not complete within timeout")
	}
}

func TestShutdown_SafeToCallMultipleTimes(t *testing.T) {
	m := New()
	m.Shutdown()
	m.Shutdown()
}
