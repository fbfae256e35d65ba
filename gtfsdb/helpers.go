package gtfsdb

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ontime.transit.dev/internal/appconf"
	"ontime.transit.dev/internal/logging"
	"ontime.transit.dev/internal/schedule"
)

//go:embed schema.sql
var ddl string

// createDB opens the SQLite database and brings its schema up to date.
func createDB(config Config) (*sql.DB, error) {
	if config.Env == appconf.Test && config.DBPath != ":memory:" {
		return nil, fmt.Errorf("test database must use in-memory storage, got path: %s", config.DBPath)
	}

	db, err := sql.Open("sqlite3", config.DBPath)
	if err != nil {
		return nil, err
	}

	// Configure the pool before the first statement so :memory: databases keep
	// a single connection and see their own schema.
	configureConnectionPool(db, config)

	ctx := context.Background()
	if err := configureSQLitePerformance(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("error configuring SQLite performance: %w", err)
	}

	if err := performDatabaseMigration(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("error performing database migration: %w", err)
	}

	return db, nil
}

func performDatabaseMigration(ctx context.Context, db *sql.DB) error {
	statements := strings.Split(ddl, "-- migrate")
	for _, stmt := range statements {
		trimmedStmt := strings.TrimSpace(stmt)
		if trimmedStmt == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, trimmedStmt); err != nil {
			return fmt.Errorf("error executing DDL statement [%s]: %w", trimmedStmt, err)
		}
	}
	return nil
}

// configureSQLitePerformance applies PRAGMA settings for bulk snapshot writes.
func configureSQLitePerformance(ctx context.Context, db *sql.DB) error {
	pragmas := []struct {
		name        string
		description string
	}{
		// Increase cache size to 64MB (negative value means KB)
		{"PRAGMA cache_size=-64000", "Set cache size to 64MB"},
		{"PRAGMA temp_store=MEMORY", "Store temporary data in memory"},
	}

	logger := slog.Default().With(slog.String("component", "sqlite_performance"))

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma.name); err != nil {
			logging.LogError(logger, fmt.Sprintf("Failed to set %s", pragma.description), err)
			return fmt.Errorf("failed to execute %s: %w", pragma.name, err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	return nil
}

// configureConnectionPool limits :memory: databases to one connection, since
// every connection to :memory: opens a separate empty database.
func configureConnectionPool(db *sql.DB, config Config) {
	if config.DBPath == ":memory:" {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		return
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)
}

func toNullSeconds(t schedule.TimeOfDay) sql.NullInt64 {
	if !t.Valid() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(t.Duration() / time.Second), Valid: true}
}

func fromNullSeconds(n sql.NullInt64) schedule.TimeOfDay {
	if !n.Valid || n.Int64 < 0 {
		return schedule.NoTime
	}
	return schedule.TimeOfDayFromDuration(time.Duration(n.Int64) * time.Second)
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// insertBatched writes rows with multi-row INSERT statements inside tx.
// Every row must carry len(columns) values. Only placeholders reach the SQL text.
func insertBatched(ctx context.Context, tx *sql.Tx, table string, columns []string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	placeholder := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ") + ")"
	baseQuery := fmt.Sprintf("INSERT INTO %s (%s) VALUES ", table, strings.Join(columns, ", "))

	for start := 0; start < len(rows); start += batchSize {
		end := min(start+batchSize, len(rows))
		batch := rows[start:end]

		var query strings.Builder
		query.WriteString(baseQuery)
		args := make([]any, 0, len(batch)*len(columns))
		for i, row := range batch {
			if i > 0 {
				query.WriteString(", ")
			}
			query.WriteString(placeholder)
			args = append(args, row...)
		}

		if _, err := tx.ExecContext(ctx, query.String(), args...); err != nil {
			return fmt.Errorf("error inserting into %s: %w", table, err)
		}
	}
	return nil
}
