package gtfsdb

import (
	"fmt"
)

var countedTables = map[string]string{
	"stops":           "SELECT COUNT(*) FROM stops",
	"trips":           "SELECT COUNT(*) FROM trips",
	"stop_times":      "SELECT COUNT(*) FROM stop_times",
	"import_metadata": "SELECT COUNT(*) FROM import_metadata",
}

// TableCounts reports row counts for the snapshot tables that exist. Other tables are ignored.
func (c *Client) TableCounts() (map[string]int, error) {
	rows, err := c.DB.Query("SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'")
	if err != nil {
		return nil, fmt.Errorf("failed to query table names: %w", err)
	}

	var tables []string
	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		tables = append(tables, tableName)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, table := range tables {
		query, ok := countedTables[table]
		if !ok {
			continue
		}
		var count int
		if err := c.DB.QueryRow(query).Scan(&count); err != nil {
			return nil, err
		}
		counts[table] = count
	}
	return counts, nil
}
