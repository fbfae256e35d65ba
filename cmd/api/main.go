package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"ontime.transit.dev/internal/appconf"
	"ontime.transit.dev/internal/gtfs"
	"ontime.transit.dev/internal/logging"
)

func main() {
	cfg, err := appconf.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	coreApp, err := BuildApplication(cfg, gtfs.ConfigFromApp(cfg))
	if err != nil {
		logging.LogError(newLogger(cfg), "Failed to build application", err)
		os.Exit(1)
	}

	srv, api := CreateServer(coreApp, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := Run(ctx, srv, coreApp, api); err != nil {
		logging.LogError(coreApp.Logger, "Server exited with error", err)
		stop()
		os.Exit(1)
	}
}
