package gtfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	gtfsrt "github.com/OneBusAway/go-gtfs/proto"
	"github.com/sourcegraph/conc/pool"
	"google.golang.org/protobuf/proto"

	"ontime.transit.dev/internal/logging"
	"ontime.transit.dev/internal/metrics"
	"ontime.transit.dev/internal/realtime"
)

const maxFeedSize = 25 * 1024 * 1024

// ErrFeedTooLarge is returned when a GTFS-RT response exceeds the size limit.
var ErrFeedTooLarge = errors.New("GTFS-RT response exceeds size limit")

// realtimeHTTPClient is a dedicated HTTP client for GTFS-RT feed fetching.
// The transport is cloned from http.DefaultTransport to keep proxy, HTTP/2 and
// keepalive defaults.
var realtimeHTTPClient = newRealtimeHTTPClient()

func newRealtimeHTTPClient() *http.Client {
	var transport *http.Transport
	if t, ok := http.DefaultTransport.(*http.Transport); ok {
		transport = t.Clone()
	} else {
		transport = &http.Transport{}
	}
	transport.MaxIdleConns = 50
	transport.MaxIdleConnsPerHost = 10
	transport.IdleConnTimeout = 90 * time.Second
	transport.TLSHandshakeTimeout = 10 * time.Second
	transport.ExpectContinueTimeout = 1 * time.Second

	return &http.Client{
		// Absolute bound per request; the poll context usually expires first.
		Timeout:   20 * time.Second,
		Transport: transport,
	}
}

func loadRealtimeData(ctx context.Context, source string, headers map[string]string) (*gtfsrt.FeedMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, err
	}
	for key, value := range headers {
		req.Header.Add(key, value)
	}

	resp, err := realtimeHTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute GTFS-RT request: %w", err)
	}
	defer logging.SafeCloseWithLogging(resp.Body,
		slog.Default().With(slog.String("component", "gtfs_realtime_downloader")),
		"http_response_body")

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gtfs-rt fetch failed: %s returned %s", source, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(body)) > maxFeedSize {
		return nil, fmt.Errorf("%w (%d bytes)", ErrFeedTooLarge, maxFeedSize)
	}

	feed := &gtfsrt.FeedMessage{}
	if err := proto.Unmarshal(body, feed); err != nil {
		return nil, fmt.Errorf("failed to decode GTFS-RT feed: %w", err)
	}
	return feed, nil
}

// PollResult summarizes one PollOnce call.
type PollResult struct {
	Predictions   int
	Vehicles      int
	FeedTimestamp time.Time
	Mode          realtime.Mode
	ModeChanged   bool
}

// PollOnce fetches trip updates and vehicle positions in parallel, normalizes
// them and installs the new snapshot. A trip updates failure keeps the previous
// predictions and counts towards the offline switch; a vehicle positions failure
// only keeps the previous vehicles.
func (manager *Manager) PollOnce(ctx context.Context) (PollResult, error) {
	manager.pollMutex.Lock()
	defer manager.pollMutex.Unlock()

	logger := logging.FromContext(ctx).With(slog.String("component", "gtfs_realtime"))
	feed := manager.config.RTFeed
	start := manager.clock.Now()

	ctx, cancel := context.WithTimeout(ctx, manager.config.PollTimeout)
	defer cancel()

	var (
		tripFeed, vehicleFeed *gtfsrt.FeedMessage
		tripErr, vehicleErr   error
	)

	p := pool.New()
	p.Go(func() {
		tripFeed, tripErr = loadRealtimeData(ctx, feed.TripUpdatesURL, feed.Headers)
	})
	if feed.VehiclePositionsURL != "" {
		p.Go(func() {
			vehicleFeed, vehicleErr = loadRealtimeData(ctx, feed.VehiclePositionsURL, feed.Headers)
		})
	}
	p.Wait()

	if feed.VehiclePositionsURL != "" {
		manager.metrics.ObservePoll(metrics.FeedVehiclePositions, vehicleErr == nil)
		if vehicleErr != nil {
			logging.LogError(logger, "Error loading GTFS-RT vehicle positions data", vehicleErr,
				slog.String("url", feed.VehiclePositionsURL))
		} else {
			vehicles := realtime.ExtractVehiclePositions(vehicleFeed)
			manager.predictions.UpdateVehiclePositions(vehicles)
			manager.publishPositions(ctx, vehicles, logger)
		}
	}

	manager.metrics.ObservePoll(metrics.FeedTripUpdates, tripErr == nil)
	if tripErr != nil {
		logging.LogError(logger, "Error loading GTFS-RT trip updates data", tripErr,
			slog.String("url", feed.TripUpdatesURL))
		result := manager.recordFailure(logger)
		return result, tripErr
	}

	index := manager.currentIndex()
	var resolver realtime.StopResolver
	if index != nil {
		resolver = index
	}
	predictions := realtime.ExtractTripArrivalPredictions(tripFeed, resolver)
	feedTS := realtime.FeedTimestamp(tripFeed)
	now := manager.clock.Now()
	manager.predictions.UpdateRealtimeArrivals(predictions, feedTS, now)

	manager.consecutiveFailures = 0
	changed := manager.mode.Set(realtime.ModeOnline)
	if changed {
		logging.LogOperation(logger, "realtime_mode_online")
	}
	manager.metrics.SetOnline(true)

	snap := manager.predictions.Snapshot()
	manager.metrics.ObserveSnapshot(snap.Len(), len(snap.Vehicles()), manager.stale.Age(snap.Freshness(), now), now.Sub(start))

	logging.LogOperation(logger, "realtime_poll_completed",
		slog.Int("predictions", len(predictions)),
		slog.Int("vehicles", len(snap.Vehicles())),
		slog.Time("feed_timestamp", feedTS))

	return PollResult{
		Predictions:   len(predictions),
		Vehicles:      len(snap.Vehicles()),
		FeedTimestamp: feedTS,
		Mode:          realtime.ModeOnline,
		ModeChanged:   changed,
	}, nil
}

// recordFailure counts a failed poll and flips to offline mode once the limit is reached.
// Caller must hold pollMutex.
func (manager *Manager) recordFailure(logger *slog.Logger) PollResult {
	manager.consecutiveFailures++
	result := PollResult{Mode: manager.mode.Get()}
	if manager.consecutiveFailures >= manager.config.MaxConsecutiveFailures {
		if manager.mode.Set(realtime.ModeOffline) {
			result.ModeChanged = true
			logging.LogOperation(logger, "realtime_mode_offline",
				slog.Int("consecutive_failures", manager.consecutiveFailures))
		}
		manager.metrics.SetOnline(false)
		result.Mode = realtime.ModeOffline
	}
	return result
}

func (manager *Manager) publishPositions(ctx context.Context, vehicles []realtime.VehiclePosition, logger *slog.Logger) {
	if manager.publisher == nil || len(vehicles) == 0 {
		return
	}
	if err := manager.publisher.PublishPositions(ctx, vehicles); err != nil {
		logging.LogError(logger, "Failed to publish vehicle positions", err)
	}
}

// ConsecutiveFailures is the number of failed trip updates polls since the last success.
func (manager *Manager) ConsecutiveFailures() int {
	manager.pollMutex.Lock()
	defer manager.pollMutex.Unlock()
	return manager.consecutiveFailures
}

func (manager *Manager) updateGTFSRealtimePeriodically() {
	defer manager.wg.Done()

	logger := manager.logger.With(slog.String("component", "gtfs_realtime_updater"))

	poll := func() {
		ctx := logging.WithLogger(context.Background(), logger)
		logging.LogOperation(logger, "updating_gtfs_realtime_data")
		_, _ = manager.PollOnce(ctx)
	}

	poll()

	ticker := time.NewTicker(manager.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			poll()
		case <-manager.shutdownChan:
			logging.LogOperation(logger, "shutting_down_realtime_updates")
			return
		}
	}
}

// VehiclePositions returns the feed's vehicles while realtime data is usable,
// otherwise vehicles simulated from the schedule.
func (manager *Manager) VehiclePositions() []realtime.VehiclePosition {
	snap := manager.predictions.Snapshot()
	now := manager.clock.Now()
	if manager.mode.Get() == realtime.ModeOnline && !manager.stale.Check(snap.Freshness(), now) && len(snap.Vehicles()) > 0 {
		return snap.Vehicles()
	}
	store := manager.Schedule()
	if store == nil {
		return nil
	}
	return realtime.SimulateVehicles(store, now, manager.config.Location)
}
