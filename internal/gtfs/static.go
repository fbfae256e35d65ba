package gtfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/OneBusAway/go-gtfs"

	"ontime.transit.dev/gtfsdb"
	"ontime.transit.dev/internal/logging"
	"ontime.transit.dev/internal/schedule"
)

const maxStaticSize = 200 * 1024 * 1024

// ErrStaticTooLarge is returned when a downloaded static archive exceeds the size limit.
var ErrStaticTooLarge = errors.New("static GTFS response exceeds size limit")

var staticHTTPClient = &http.Client{
	Timeout: 5 * time.Minute,
	Transport: &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		IdleConnTimeout:       90 * time.Second,
	},
}

func isRemoteSource(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// downloadStatic fetches a static archive, honoring the optional auth header.
func downloadStatic(ctx context.Context, config Config) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, config.StaticSource, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating GTFS request: %w", err)
	}
	if config.StaticAuthHeaderKey != "" && config.StaticAuthHeaderValue != "" {
		req.Header.Set(config.StaticAuthHeaderKey, config.StaticAuthHeaderValue)
	}

	resp, err := staticHTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error downloading GTFS data: %w", err)
	}
	defer logging.SafeCloseWithLogging(resp.Body,
		slog.Default().With(slog.String("component", "gtfs_downloader")),
		"http_response_body")

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download GTFS data: received HTTP status %s", resp.Status)
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxStaticSize+1))
	if err != nil {
		return nil, fmt.Errorf("error reading GTFS data: %w", err)
	}
	if int64(len(b)) > maxStaticSize {
		return nil, fmt.Errorf("%w (%d bytes)", ErrStaticTooLarge, maxStaticSize)
	}
	return b, nil
}

func parseStaticArchive(b []byte) (*schedule.Store, error) {
	staticData, err := gtfs.ParseStatic(b, gtfs.ParseStaticOptions{})
	if err != nil {
		return nil, fmt.Errorf("error parsing GTFS data: %w", err)
	}
	return schedule.FromStatic(staticData), nil
}

// loadSchedule reads the configured static source: a URL or zip file is parsed
// with go-gtfs, a directory is read as loose CSV files.
func loadSchedule(ctx context.Context, config Config, logger *slog.Logger) (*schedule.Store, error) {
	source := config.StaticSource
	if source == "" {
		return nil, errors.New("no static GTFS source configured")
	}

	if isRemoteSource(source) {
		b, err := downloadStatic(ctx, config)
		if err != nil {
			return nil, err
		}
		return parseStaticArchive(b)
	}

	info, err := os.Stat(source)
	if err != nil {
		return nil, fmt.Errorf("error reading local GTFS source: %w", err)
	}
	if info.IsDir() {
		store, report, err := schedule.LoadCSVDir(source)
		if err != nil {
			return nil, err
		}
		logging.LogOperation(logger, "gtfs_csv_directory_loaded",
			slog.String("source", source),
			slog.Int("stops", report.Stops),
			slog.Int("trips", report.Trips),
			slog.Int("stop_times", report.StopTimes),
			slog.Int("skipped_rows", report.SkippedRows))
		return store, nil
	}

	b, err := os.ReadFile(source)
	if err != nil {
		return nil, fmt.Errorf("error reading local GTFS file: %w", err)
	}
	return parseStaticArchive(b)
}

// loadInitialSchedule loads the static source, falling back to the snapshot
// database when the source cannot be read. A fresh load refreshes the snapshot.
func (manager *Manager) loadInitialSchedule(ctx context.Context) (*schedule.Store, error) {
	store, err := loadSchedule(ctx, manager.config, manager.logger)
	if err == nil {
		manager.saveSnapshot(ctx, store)
		return store, nil
	}

	if manager.snapshotDB == nil {
		return nil, err
	}

	logging.LogError(manager.logger, "Static GTFS source unavailable, trying snapshot", err,
		slog.String("source", manager.config.StaticSource))

	snap, md, snapErr := manager.snapshotDB.LoadSchedule(ctx)
	if snapErr != nil {
		return nil, errors.Join(err, fmt.Errorf("snapshot fallback: %w", snapErr))
	}
	logging.LogOperation(manager.logger, "schedule_loaded_from_snapshot",
		slog.String("snapshot_source", md.Source),
		slog.Time("saved_at", md.SavedAt))
	return snap, nil
}

func (manager *Manager) saveSnapshot(ctx context.Context, store *schedule.Store) {
	if manager.snapshotDB == nil {
		return
	}
	if err := manager.snapshotDB.SaveSchedule(ctx, store, manager.config.StaticSource, manager.clock.Now()); err != nil {
		logging.LogError(manager.logger, "Failed to save schedule snapshot", err)
	}
}

func openSnapshotDB(config Config) (*gtfsdb.Client, error) {
	if config.SnapshotPath == "" {
		return nil, nil
	}
	return gtfsdb.NewClient(gtfsdb.NewConfig(config.SnapshotPath, config.Env, config.Verbose))
}

// updateStaticGTFS reloads remote static data once a day.
func (manager *Manager) updateStaticGTFS() {
	defer manager.wg.Done()

	logger := manager.logger.With(slog.String("component", "gtfs_static_updater"))

	if !isRemoteSource(manager.config.StaticSource) {
		logging.LogOperation(logger, "gtfs_source_is_local_skipping_periodic_updates",
			slog.String("source", manager.config.StaticSource))
		return
	}

	ticker := time.NewTicker(staticRefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			err := manager.ForceUpdate(ctx)
			cancel()
			if err != nil {
				logging.LogError(logger, "Error updating GTFS data", err,
					slog.String("source", manager.config.StaticSource))
			}
		case <-manager.shutdownChan:
			logging.LogOperation(logger, "shutting_down_static_gtfs_updates")
			return
		}
	}
}

// ForceUpdate reloads the static source and swaps the schedule in one step.
// On failure the current schedule stays in place.
func (manager *Manager) ForceUpdate(ctx context.Context) error {
	manager.staticUpdateMutex.Lock()
	defer manager.staticUpdateMutex.Unlock()

	store, err := loadSchedule(ctx, manager.config, manager.logger)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	manager.setSchedule(store)
	manager.saveSnapshot(ctx, store)

	logging.LogOperation(manager.logger, "gtfs_static_data_updated_hot_swap",
		slog.String("source", manager.config.StaticSource),
		slog.Int("stops", len(store.Stops())),
		slog.Int("trips", len(store.Trips())))
	return nil
}
