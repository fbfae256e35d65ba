package restapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	gtfsrt "github.com/OneBusAway/go-gtfs/proto"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"

	"ontime.transit.dev/internal/app"
	"ontime.transit.dev/internal/appconf"
	"ontime.transit.dev/internal/clock"
	"ontime.transit.dev/internal/gtfs"
	"ontime.transit.dev/internal/metrics"
	"ontime.transit.dev/internal/models"
)

// testNow is three minutes before T1 is due at S1.
var testNow = time.Date(2025, 3, 10, 7, 57, 0, 0, time.UTC)

var scheduleFiles = map[string]string{
	"stops.txt": "stop_id,stop_code,stop_name,stop_lat,stop_lon\n" +
		"S1,101,Termini,41.9010,12.5018\n" +
		"S2,102,Cavour,41.8955,12.4960\n" +
		"S3,103,Colosseo,41.8902,12.4922\n",
	"trips.txt": "route_id,service_id,trip_id,trip_headsign,trip_short_name,direction_id,shape_id\n" +
		"R1,WK,T1,Colosseo,,0,\n" +
		"R1,WK,T3,Termini,,1,\n" +
		"R2,WK,T2,Termini,,1,\n",
	"stop_times.txt": "trip_id,arrival_time,departure_time,stop_id,stop_sequence\n" +
		"T1,08:00:00,08:00:00,S1,1\n" +
		"T1,08:06:00,08:06:00,S2,2\n" +
		"T1,08:09:00,08:09:00,S3,3\n" +
		"T3,08:30:00,08:30:00,S3,1\n" +
		"T3,08:36:00,08:36:00,S1,2\n" +
		"T2,08:10:00,08:10:00,S2,1\n" +
		"T2,08:16:00,08:16:00,S1,2\n",
}

type testAPI struct {
	*RestAPI
	clock   *clock.MockClock
	metrics *metrics.Metrics
}

func writeSchedule(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range scheduleFiles {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
	}
	return dir
}

// createTestApi builds an API over the fixture schedule. mutate may point the
// manager at a realtime feed.
func createTestApi(t *testing.T, mutate ...func(*gtfs.Config)) *testAPI {
	t.Helper()
	mock := clock.NewMockClock(testNow)
	m := metrics.New()

	gtfsCfg := gtfs.Config{
		StaticSource: writeSchedule(t),
		Location:     time.UTC,
		PollTimeout:  5 * time.Second,
		Env:          appconf.Test,
	}
	for _, fn := range mutate {
		fn(&gtfsCfg)
	}

	manager, err := gtfs.InitGTFSManager(context.Background(), gtfsCfg, gtfs.WithClock(mock), gtfs.WithMetrics(m))
	require.NoError(t, err)
	t.Cleanup(manager.Shutdown)

	cfg := appconf.Default()
	cfg.Env = appconf.Test
	cfg.RateLimit = 100

	api := NewRestAPI(&app.Application{
		Config:      cfg,
		GtfsConfig:  gtfsCfg,
		GtfsManager: manager,
		Clock:       mock,
		Metrics:     m,
	})
	t.Cleanup(api.Shutdown)
	return &testAPI{RestAPI: api, clock: mock, metrics: m}
}

func (api *testAPI) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	api.SetRoutes(mux)
	srv := httptest.NewServer(WithMiddleware(mux, nil, api.RestAPI))
	t.Cleanup(srv.Close)
	return srv
}

// serveAndRetrieveEndpoint performs a GET and decodes the response envelope.
func serveAndRetrieveEndpoint(t *testing.T, api *testAPI, path string) (*http.Response, models.ResponseModel) {
	t.Helper()
	srv := api.server(t)

	resp, err := http.Get(srv.URL + path)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var model models.ResponseModel
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&model))
	return resp, model
}

// decodeData re-decodes the envelope payload into out.
func decodeData(t *testing.T, model models.ResponseModel, out any) {
	t.Helper()
	b, err := json.Marshal(model.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(b, out))
}

func tripUpdatesFeed(t *testing.T, feedTS time.Time, tripID, stopID string, arrival time.Time) []byte {
	t.Helper()
	feed := &gtfsrt.FeedMessage{
		Header: &gtfsrt.FeedHeader{
			GtfsRealtimeVersion: proto.String("2.0"),
			Timestamp:           proto.Uint64(uint64(feedTS.Unix())),
		},
		Entity: []*gtfsrt.FeedEntity{{
			Id: proto.String("tu-1"),
			TripUpdate: &gtfsrt.TripUpdate{
				Trip: &gtfsrt.TripDescriptor{TripId: proto.String(tripID)},
				StopTimeUpdate: []*gtfsrt.TripUpdate_StopTimeUpdate{{
					StopId:  proto.String(stopID),
					Arrival: &gtfsrt.TripUpdate_StopTimeEvent{Time: proto.Int64(arrival.Unix())},
				}},
			},
		}},
	}
	b, err := proto.Marshal(feed)
	require.NoError(t, err)
	return b
}

func vehiclesFeed(t *testing.T, feedTS time.Time) []byte {
	t.Helper()
	feed := &gtfsrt.FeedMessage{
		Header: &gtfsrt.FeedHeader{
			GtfsRealtimeVersion: proto.String("2.0"),
			Timestamp:           proto.Uint64(uint64(feedTS.Unix())),
		},
		Entity: []*gtfsrt.FeedEntity{{
			Id: proto.String("vp-1"),
			Vehicle: &gtfsrt.VehiclePosition{
				Trip:      &gtfsrt.TripDescriptor{TripId: proto.String("T1"), RouteId: proto.String("R1")},
				Vehicle:   &gtfsrt.VehicleDescriptor{Id: proto.String("BUS-7")},
				Position:  &gtfsrt.Position{Latitude: proto.Float32(41.9), Longitude: proto.Float32(12.5)},
				Timestamp: proto.Uint64(uint64(feedTS.Unix())),
			},
		}},
	}
	b, err := proto.Marshal(feed)
	require.NoError(t, err)
	return b
}

// staticFeedServer serves fixed payloads by path.
func staticFeedServer(t *testing.T, payloads map[string][]byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, ok := payloads[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write(b)
	}))
	t.Cleanup(srv.Close)
	return srv
}
