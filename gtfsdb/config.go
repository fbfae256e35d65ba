package gtfsdb

import "ontime.transit.dev/internal/appconf"

// Config locates the snapshot database.
type Config struct {
	DBPath  string
	Env     appconf.Environment
	verbose bool
}

func NewConfig(dbPath string, env appconf.Environment, verbose bool) Config {
	return Config{
		DBPath:  dbPath,
		Env:     env,
		verbose: verbose,
	}
}

// batchSize bounds the rows per multi-row INSERT so the bound parameter count
// stays under SQLite's variable limit.
const batchSize = 500
