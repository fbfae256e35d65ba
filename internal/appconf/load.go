package appconf

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// FeedFile is the YAML document accepted by -feeds.
type FeedFile struct {
	TripUpdatesURL      string            `yaml:"trip_updates_url" validate:"omitempty,url"`
	VehiclePositionsURL string            `yaml:"vehicle_positions_url" validate:"omitempty,url"`
	Headers             map[string]string `yaml:"headers"`
	PollInterval        time.Duration     `yaml:"poll_interval" validate:"min=0"`
}

// Load builds the configuration. Sources are applied in order, later ones winning:
// defaults, .env (if present), environment variables, flags in args, then the
// feed file named by -feeds.
func Load(args []string) (Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if err := applyEnv(&cfg, os.Getenv); err != nil {
		return Config{}, err
	}

	fs := flag.NewFlagSet("ontime", flag.ContinueOnError)
	var envFlag, feedsPath, headerFlag string
	fs.IntVar(&cfg.Port, "port", cfg.Port, "API server port")
	fs.StringVar(&envFlag, "env", cfg.Env.String(), "Environment (development|test|production)")
	fs.StringVar(&cfg.StaticSource, "gtfs", cfg.StaticSource, "Static GTFS zip, directory or URL")
	fs.StringVar(&cfg.SnapshotPath, "snapshot-db", cfg.SnapshotPath, "SQLite file holding the last good schedule")
	fs.StringVar(&cfg.TimeZone, "tz", cfg.TimeZone, "IANA time zone of the schedule")
	fs.StringVar(&cfg.TripUpdatesURL, "trip-updates-url", cfg.TripUpdatesURL, "GTFS-RT trip updates URL")
	fs.StringVar(&cfg.VehiclePositionsURL, "vehicle-positions-url", cfg.VehiclePositionsURL, "GTFS-RT vehicle positions URL")
	fs.StringVar(&headerFlag, "feed-headers", "", "Comma-separated Key=Value headers sent with feed requests")
	fs.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "Realtime poll interval")
	fs.DurationVar(&cfg.PollTimeout, "poll-timeout", cfg.PollTimeout, "Timeout for one realtime poll")
	fs.DurationVar(&cfg.StaleThreshold, "stale-threshold", cfg.StaleThreshold, "Feed age beyond which realtime data is ignored")
	fs.IntVar(&cfg.MaxConsecutiveFailures, "max-failures", cfg.MaxConsecutiveFailures, "Failed polls before switching to offline mode")
	fs.BoolVar(&cfg.StartOffline, "offline", cfg.StartOffline, "Start in offline mode")
	fs.IntVar(&cfg.RateLimit, "rate-limit", cfg.RateLimit, "Requests per second per client")
	fs.StringVar(&cfg.NATSURL, "nats-url", cfg.NATSURL, "NATS server for vehicle position fan-out")
	fs.StringVar(&cfg.NATSSubjectPrefix, "nats-prefix", cfg.NATSSubjectPrefix, "NATS subject prefix")
	fs.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "Verbose logging")
	fs.StringVar(&feedsPath, "feeds", os.Getenv("FEEDS_FILE"), "YAML file describing the realtime feeds")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	cfg.Env = EnvFlagToEnvironment(envFlag)
	if headerFlag != "" {
		maps, err := ParseHeaders(headerFlag)
		if err != nil {
			return Config{}, err
		}
		cfg.FeedHeaders = maps
	}

	if feedsPath != "" {
		if err := applyFeedFile(&cfg, feedsPath); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks struct constraints and resolves the time zone.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return fmt.Errorf("invalid configuration: time zone %q: %w", c.TimeZone, err)
	}
	c.location = loc
	return nil
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	str("GTFS_STATIC", &cfg.StaticSource)
	str("GTFS_STATIC_AUTH_HEADER_KEY", &cfg.StaticAuthHeaderKey)
	str("GTFS_STATIC_AUTH_HEADER_VALUE", &cfg.StaticAuthHeaderValue)
	str("SNAPSHOT_DB", &cfg.SnapshotPath)
	str("TIMEZONE", &cfg.TimeZone)
	str("TRIP_UPDATES_URL", &cfg.TripUpdatesURL)
	str("VEHICLE_POSITIONS_URL", &cfg.VehiclePositionsURL)
	str("NATS_URL", &cfg.NATSURL)
	str("NATS_SUBJECT_PREFIX", &cfg.NATSSubjectPrefix)

	if v := getenv("ENV"); v != "" {
		cfg.Env = EnvFlagToEnvironment(v)
	}
	if v := getenv("FEED_HEADERS"); v != "" {
		headers, err := ParseHeaders(v)
		if err != nil {
			return err
		}
		cfg.FeedHeaders = headers
	}

	var errs []error
	parseInt := func(key string, dst *int) {
		if v := getenv(key); v != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s: %q", key, v))
				return
			}
			*dst = n
		}
	}
	parseDuration := func(key string, dst *time.Duration) {
		if v := getenv(key); v != "" {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s: %q", key, v))
				return
			}
			*dst = d
		}
	}
	parseBool := func(key string, dst *bool) {
		if v := getenv(key); v != "" {
			switch strings.ToLower(strings.TrimSpace(v)) {
			case "1", "true", "t", "yes", "y", "on":
				*dst = true
			default:
				*dst = false
			}
		}
	}

	parseInt("PORT", &cfg.Port)
	parseInt("MAX_CONSECUTIVE_FAILURES", &cfg.MaxConsecutiveFailures)
	parseInt("RATE_LIMIT", &cfg.RateLimit)
	parseDuration("POLL_INTERVAL", &cfg.PollInterval)
	parseDuration("POLL_TIMEOUT", &cfg.PollTimeout)
	parseDuration("STALE_THRESHOLD", &cfg.StaleThreshold)
	parseBool("START_OFFLINE", &cfg.StartOffline)
	parseBool("VERBOSE", &cfg.Verbose)

	return errors.Join(errs...)
}

func applyFeedFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read feed file: %w", err)
	}
	var feeds FeedFile
	if err := yaml.Unmarshal(data, &feeds); err != nil {
		return fmt.Errorf("failed to parse feed file: %w", err)
	}
	if err := validator.New().Struct(feeds); err != nil {
		return fmt.Errorf("invalid feed file: %w", err)
	}

	if feeds.TripUpdatesURL != "" {
		cfg.TripUpdatesURL = feeds.TripUpdatesURL
	}
	if feeds.VehiclePositionsURL != "" {
		cfg.VehiclePositionsURL = feeds.VehiclePositionsURL
	}
	if feeds.PollInterval > 0 {
		cfg.PollInterval = feeds.PollInterval
	}
	for k, v := range feeds.Headers {
		if cfg.FeedHeaders == nil {
			cfg.FeedHeaders = map[string]string{}
		}
		cfg.FeedHeaders[k] = v
	}
	return nil
}

// ParseHeaders parses "Key=Value,Other=Value" into a header map.
func ParseHeaders(s string) (map[string]string, error) {
	headers := map[string]string{}
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid header %q: want Key=Value", pair)
		}
		headers[key] = strings.TrimSpace(value)
	}
	return headers, nil
}
