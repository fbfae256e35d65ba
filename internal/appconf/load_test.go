package appconf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvFlagToEnvironment(t *testing.T) {
	tests := []struct {
		input    string
		expected Environment
	}{
		{"production", Production},
		{"PROD", Production},
		{"test", Test},
		{" development ", Development},
		{"staging", Development},
		{"", Development},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, EnvFlagToEnvironment(tt.input))
		})
	}
	assert.Equal(t, "production", Production.String())
}

func TestLoadDefaultsAndFlags(t *testing.T) {
	cfg, err := Load([]string{
		"-gtfs", "testdata/feed.zip",
		"-env", "test",
		"-port", "8081",
		"-tz", "Europe/Rome",
		"-trip-updates-url", "https://rt.example.com/trips.pb",
		"-feed-headers", "Authorization=Bearer abc, X-Agency=1",
	})
	require.NoError(t, err)

	assert.Equal(t, 8081, cfg.Port)
	assert.Equal(t, Test, cfg.Env)
	assert.Equal(t, "testdata/feed.zip", cfg.StaticSource)
	assert.Equal(t, 30*time.Second, cfg.PollInterval)
	assert.Equal(t, 5*time.Minute, cfg.StaleThreshold)
	assert.Equal(t, 3, cfg.MaxConsecutiveFailures)
	assert.True(t, cfg.RealtimeEnabled())
	assert.Equal(t, "Europe/Rome", cfg.Location().String())
	assert.Equal(t, map[string]string{"Authorization": "Bearer abc", "X-Agency": "1"}, cfg.FeedHeaders)
}

func TestLoadEnvironmentVariables(t *testing.T) {
	t.Setenv("GTFS_STATIC", "/data/gtfs")
	t.Setenv("PORT", "9000")
	t.Setenv("POLL_INTERVAL", "10s")
	t.Setenv("START_OFFLINE", "yes")
	t.Setenv("ENV", "production")

	cfg, err := Load([]string{"-port", "9100"})
	require.NoError(t, err)

	assert.Equal(t, "/data/gtfs", cfg.StaticSource)
	assert.Equal(t, 9100, cfg.Port, "flags win over the environment")
	assert.Equal(t, 10*time.Second, cfg.PollInterval)
	assert.True(t, cfg.StartOffline)
	assert.Equal(t, Production, cfg.Env)
	assert.False(t, cfg.RealtimeEnabled())
}

func TestLoadRejectsBadEnvironmentValues(t *testing.T) {
	t.Setenv("GTFS_STATIC", "/data/gtfs")
	t.Setenv("POLL_TIMEOUT", "soon")

	_, err := Load(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "POLL_TIMEOUT")
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing static source", []string{}, "StaticSource"},
		{"bad feed url", []string{"-gtfs", "x", "-trip-updates-url", "not a url"}, "TripUpdatesURL"},
		{"zero failures", []string{"-gtfs", "x", "-max-failures", "0"}, "MaxConsecutiveFailures"},
		{"unknown zone", []string{"-gtfs", "x", "-tz", "Mars/Olympus"}, "time zone"},
		{"bad header", []string{"-gtfs", "x", "-feed-headers", "novalue"}, "invalid header"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.args)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadFeedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feeds.yaml")
	content := `
trip_updates_url: https://rt.example.com/trip-updates
vehicle_positions_url: https://rt.example.com/vehicle-positions
poll_interval: 45s
headers:
  x-api-key: secret
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load([]string{"-gtfs", "feed.zip", "-feeds", path})
	require.NoError(t, err)

	assert.Equal(t, "https://rt.example.com/trip-updates", cfg.TripUpdatesURL)
	assert.Equal(t, "https://rt.example.com/vehicle-positions", cfg.VehiclePositionsURL)
	assert.Equal(t, 45*time.Second, cfg.PollInterval)
	assert.Equal(t, "secret", cfg.FeedHeaders["x-api-key"])
}

func TestLoadFeedFileErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load([]string{"-gtfs", "feed.zip", "-feeds", filepath.Join(dir, "missing.yaml")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read feed file")

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("trip_updates_url: [unclosed"), 0o600))
	_, err = Load([]string{"-gtfs", "feed.zip", "-feeds", bad})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse feed file")

	invalid := filepath.Join(dir, "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("trip_updates_url: nope"), 0o600))
	_, err = Load([]string{"-gtfs", "feed.zip", "-feeds", invalid})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid feed file")
}

func TestParseHeaders(t *testing.T) {
	headers, err := ParseHeaders(" A=1 ,, B = two=2 ")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"A": "1", "B": "two=2"}, headers)

	_, err = ParseHeaders("=value")
	assert.Error(t, err)
}
