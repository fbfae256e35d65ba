package gtfs

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	gtfsrt "github.com/OneBusAway/go-gtfs/proto"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"

	"ontime.transit.dev/internal/appconf"
	"ontime.transit.dev/internal/clock"
)

// baseNow is three minutes before T1 is due at S1.
var baseNow = time.Date(2025, 3, 10, 7, 57, 0, 0, time.UTC)

var feedFiles = map[string]string{
	"stops.txt": "stop_id,stop_code,stop_name,stop_lat,stop_lon\n" +
		"S1,101,Termini,41.9010,12.5018\n" +
		"S2,102,Cavour,41.8955,12.4960\n",
	"trips.txt": "route_id,service_id,trip_id,trip_headsign,trip_short_name,direction_id,shape_id\n" +
		"R1,WK,T1,Cavour,,0,\n" +
		"R2,WK,T2,Termini,,1,\n",
	"stop_times.txt": "trip_id,arrival_time,departure_time,stop_id,stop_sequence\n" +
		"T1,08:00:00,08:00:00,S1,1\n" +
		"T1,08:06:00,08:06:00,S2,2\n" +
		"T2,08:10:00,08:10:00,S2,1\n" +
		"T2,08:16:00,08:16:00,S1,2\n",
}

func writeScheduleDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range feedFiles {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
	}
	return dir
}

// buildScheduleZip packs the same schedule as a GTFS archive go-gtfs can parse.
func buildScheduleZip(t *testing.T) []byte {
	t.Helper()
	files := map[string]string{
		"agency.txt": "agency_id,agency_name,agency_url,agency_timezone\nA,Metro,https://example.com,UTC",
		"routes.txt": "route_id,agency_id,route_short_name,route_type\nR1,A,1,3\nR2,A,2,3",
		"calendar.txt": "service_id,monday,tuesday,wednesday,thursday,friday,saturday,sunday,start_date,end_date\n" +
			"WK,1,1,1,1,1,0,0,20250101,20251231",
	}
	for name, body := range feedFiles {
		files[name] = body
	}

	var b bytes.Buffer
	zw := zip.NewWriter(&b)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return b.Bytes()
}

// tripUpdatesPayload builds a one-update feed. A zero feedTS leaves the header
// timestamp unset.
func tripUpdatesPayload(t *testing.T, feedTS time.Time, tripID, stopID string, arrival time.Time) []byte {
	t.Helper()
	header := &gtfsrt.FeedHeader{GtfsRealtimeVersion: proto.String("2.0")}
	if !feedTS.IsZero() {
		header.Timestamp = proto.Uint64(uint64(feedTS.Unix()))
	}
	feed := &gtfsrt.FeedMessage{
		Header: header,
		Entity: []*gtfsrt.FeedEntity{{
			Id: proto.String("tu-1"),
			TripUpdate: &gtfsrt.TripUpdate{
				Trip: &gtfsrt.TripDescriptor{TripId: proto.String(tripID)},
				StopTimeUpdate: []*gtfsrt.TripUpdate_StopTimeUpdate{{
					StopId:       proto.String(stopID),
					StopSequence: proto.Uint32(1),
					Arrival:      &gtfsrt.TripUpdate_StopTimeEvent{Time: proto.Int64(arrival.Unix())},
				}},
			},
		}},
	}
	b, err := proto.Marshal(feed)
	require.NoError(t, err)
	return b
}

func vehiclePositionsPayload(t *testing.T, feedTS time.Time, tripID, vehicleID string, lat, lon float32) []byte {
	t.Helper()
	feed := &gtfsrt.FeedMessage{
		Header: &gtfsrt.FeedHeader{
			GtfsRealtimeVersion: proto.String("2.0"),
			Timestamp:           proto.Uint64(uint64(feedTS.Unix())),
		},
		Entity: []*gtfsrt.FeedEntity{{
			Id: proto.String("vp-1"),
			Vehicle: &gtfsrt.VehiclePosition{
				Trip:     &gtfsrt.TripDescriptor{TripId: proto.String(tripID), RouteId: proto.String("R1")},
				Vehicle:  &gtfsrt.VehicleDescriptor{Id: proto.String(vehicleID)},
				Position: &gtfsrt.Position{Latitude: proto.Float32(lat), Longitude: proto.Float32(lon)},
			},
		}},
	}
	b, err := proto.Marshal(feed)
	require.NoError(t, err)
	return b
}

// feedServer serves whatever payload the test stores for each path.
type feedServer struct {
	*httptest.Server
	mu       sync.Mutex
	payloads map[string][]byte
	status   map[string]int
	hits     map[string]int
}

// newFeedServer starts the server. wrap, if given, decorates the payload handler.
func newFeedServer(t *testing.T, wrap ...func(http.Handler) http.Handler) *feedServer {
	t.Helper()
	fs := &feedServer{payloads: map[string][]byte{}, status: map[string]int{}, hits: map[string]int{}}
	var handler http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fs.mu.Lock()
		fs.hits[r.URL.Path]++
		code, failing := fs.status[r.URL.Path]
		payload := fs.payloads[r.URL.Path]
		fs.mu.Unlock()

		if failing {
			w.WriteHeader(code)
			return
		}
		w.Header().Set("Content-Type", "application/x-protobuf")
		_, _ = w.Write(payload)
	})
	for _, w := range wrap {
		handler = w(handler)
	}
	fs.Server = httptest.NewServer(handler)
	t.Cleanup(fs.Close)
	return fs
}

func (fs *feedServer) serve(path string, payload []byte) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	delete(fs.status, path)
	fs.payloads[path] = payload
}

func (fs *feedServer) fail(path string, code int) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.status[path] = code
}

func (fs *feedServer) hitCount(path string) int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.hits[path]
}

func newTestManager(t *testing.T, mutate func(*Config)) (*Manager, *clock.MockClock) {
	t.Helper()
	mock := clock.NewMockClock(baseNow)
	cfg := Config{
		StaticSource:           writeScheduleDir(t),
		Location:               time.UTC,
		PollTimeout:            5 * time.Second,
		MaxConsecutiveFailures: 2,
		Env:                    appconf.Test,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	manager, err := InitGTFSManager(context.Background(), cfg, WithClock(mock))
	require.NoError(t, err)
	t.Cleanup(manager.Shutdown)
	return manager, mock
}
