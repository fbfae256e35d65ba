// Package gtfsdb persists the last good static schedule in SQLite so the service
// can start when the static source is unreachable.
package gtfsdb

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3" // CGo-based SQLite driver

	"ontime.transit.dev/internal/logging"
)

// Client is the main entry point for the library
type Client struct {
	config      Config
	DB          *sql.DB
	logger      *slog.Logger
	saveRuntime time.Duration
}

// NewClient opens the database at config.DBPath and applies the schema.
func NewClient(config Config) (*Client, error) {
	db, err := createDB(config)
	if err != nil {
		return nil, fmt.Errorf("unable to create DB: %w", err)
	}

	logger := slog.Default().With(slog.String("component", "gtfsdb"))
	if config.verbose {
		logging.LogOperation(logger, "snapshot_db_opened", slog.String("db_path", config.DBPath))
	}

	return &Client{
		config: config,
		DB:     db,
		logger: logger,
	}, nil
}

func (c *Client) Close() error {
	return c.DB.Close()
}

func (c *Client) GetDBPath() string {
	return c.config.DBPath
}

// LastSaveRuntime is how long the most recent SaveSchedule took.
func (c *Client) LastSaveRuntime() time.Duration {
	return c.saveRuntime
}
