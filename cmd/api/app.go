package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"ontime.transit.dev/internal/app"
	"ontime.transit.dev/internal/appconf"
	"ontime.transit.dev/internal/clock"
	"ontime.transit.dev/internal/gtfs"
	"ontime.transit.dev/internal/logging"
	"ontime.transit.dev/internal/metrics"
	"ontime.transit.dev/internal/publisher"
	"ontime.transit.dev/internal/restapi"
	"ontime.transit.dev/internal/webui"
)

const (
	dbStatsInterval = 15 * time.Second
	shutdownTimeout = 30 * time.Second
)

func newLogger(cfg appconf.Config) *slog.Logger {
	format := logging.FormatText
	if cfg.Env == appconf.Production {
		format = logging.FormatJSON
	}
	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	return logging.NewLogger(os.Stdout, format, level)
}

// BuildApplication wires the logger, metrics, optional NATS publisher and the
// GTFS manager. The manager's background loops are not started.
func BuildApplication(cfg appconf.Config, gtfsCfg gtfs.Config) (*app.Application, error) {
	logger := newLogger(cfg)
	m := metrics.NewWithLogger(logger)

	opts := []gtfs.ManagerOption{
		gtfs.WithLogger(logger),
		gtfs.WithMetrics(m),
	}

	var pub *publisher.NATSPublisher
	if cfg.NATSURL != "" {
		var err error
		pub, err = publisher.NewNATSPublisher(cfg.NATSURL, cfg.NATSSubjectPrefix, logger, m, cfg.Verbose)
		if err != nil {
			return nil, fmt.Errorf("failed to create position publisher: %w", err)
		}
		opts = append(opts, gtfs.WithPublisher(pub))
	}

	ctx := logging.WithLogger(context.Background(), logger)
	manager, err := gtfs.InitGTFSManager(ctx, gtfsCfg, opts...)
	if err != nil {
		if pub != nil {
			pub.Close()
		}
		return nil, fmt.Errorf("failed to initialize GTFS manager: %w", err)
	}

	return &app.Application{
		Config:      cfg,
		GtfsConfig:  gtfsCfg,
		Logger:      logger,
		GtfsManager: manager,
		Clock:       clock.RealClock{},
		Metrics:     m,
		Publisher:   pub,
	}, nil
}

// CreateServer builds the HTTP server. Callers must Shutdown the returned API.
func CreateServer(coreApp *app.Application, cfg appconf.Config) (*http.Server, *restapi.RestAPI) {
	api := restapi.NewRestAPI(coreApp)

	mux := http.NewServeMux()
	api.SetRoutes(mux)
	if cfg.Env != appconf.Production {
		ui := &webui.WebUI{Application: coreApp}
		ui.SetWebUIRoutes(mux)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      restapi.WithMiddleware(mux, coreApp.Logger, api),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		ErrorLog:     slog.NewLogLogger(coreApp.Logger.Handler(), slog.LevelError),
	}
	return srv, api
}

// Run starts the background loops and serves until ctx is cancelled, then
// shuts everything down in reverse order.
func Run(ctx context.Context, srv *http.Server, coreApp *app.Application, api *restapi.RestAPI) error {
	logger := coreApp.Logger

	coreApp.GtfsManager.Start()
	if db := coreApp.GtfsManager.SnapshotDB(); db != nil {
		coreApp.Metrics.StartDBStatsCollector(db.DB, dbStatsInterval)
	}

	serverErr := make(chan error, 1)
	go func() {
		logging.LogOperation(logger, "server_starting", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logging.LogOperation(logger, "shutdown_signal_received")
	case err, ok := <-serverErr:
		if ok {
			runErr = fmt.Errorf("server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.LogError(logger, "Server shutdown failed", err)
		runErr = errors.Join(runErr, err)
	}

	api.Shutdown()
	coreApp.GtfsManager.Shutdown()
	if coreApp.Publisher != nil {
		coreApp.Publisher.Close()
	}
	coreApp.Metrics.Shutdown()

	logging.LogOperation(logger, "server_stopped")
	return runErr
}
