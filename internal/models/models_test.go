package models

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ontime.transit.dev/internal/arrivals"
	"ontime.transit.dev/internal/clock"
	"ontime.transit.dev/internal/realtime"
	"ontime.transit.dev/internal/schedule"
)

func TestNewOKResponse(t *testing.T) {
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	resp := NewOKResponse(NewList([]string(nil)), clock.NewMockClock(now))

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, now.UnixMilli(), resp.CurrentTime)

	b, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"data":{"list":[]}`)
}

func TestNewErrorResponseOmitsData(t *testing.T) {
	resp := NewErrorResponse(http.StatusNotFound, "resource not found", clock.NewMockClock(time.Unix(0, 0)))
	b, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.NotContains(t, string(b), `"data"`)
	assert.Contains(t, string(b), `"text":"resource not found"`)
}

func TestNewStopLineMarkerHasNoCoordinates(t *testing.T) {
	marker := NewStop(schedule.Stop{ID: "L1", Name: "Line 64", LineMarker: true, RouteLabel: "64"})
	assert.Nil(t, marker.Lat)
	assert.Nil(t, marker.Lon)

	stop := NewStop(schedule.Stop{ID: "S1", Name: "Main St", Lat: 41.9, Lon: 12.5})
	require.NotNil(t, stop.Lat)
	assert.Equal(t, 41.9, *stop.Lat)
	assert.Equal(t, 12.5, *stop.Lon)
}

func TestNewArrivalsForStop(t *testing.T) {
	scheduled := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	found := []arrivals.Arrival{
		{RouteID: "R2", TripID: "T2", Source: arrivals.SourceScheduled, ScheduledAt: scheduled, ETAMinutes: 3},
		{
			RouteID: "R1", TripID: "T1", Source: arrivals.SourceRealtime,
			ScheduledAt: scheduled, PredictedAt: scheduled.Add(2 * time.Minute),
			ETAMinutes: 5, DelayMinutes: 2, Status: arrivals.StatusLate,
		},
	}

	got := NewArrivalsForStop("S1", "online", found)
	assert.Equal(t, []string{"R1 - 5 min (late by 2 min)", "R2 - 3 min (scheduled)"}, got.Lines)
	require.Len(t, got.Arrivals, 2)
	assert.Equal(t, "scheduled", got.Arrivals[0].Source)
	assert.Zero(t, got.Arrivals[0].PredictedAt)
	assert.Equal(t, "late", got.Arrivals[1].Status)
	assert.Equal(t, scheduled.Add(2*time.Minute).UnixMilli(), got.Arrivals[1].PredictedAt)

	empty := NewArrivalsForStop("S9", "offline", nil)
	assert.Equal(t, []string{arrivals.NoUpcomingArrivals}, empty.Lines)
	assert.NotNil(t, empty.Arrivals)
}

func TestNewVehicleMilliseconds(t *testing.T) {
	v := NewVehicle(realtime.VehiclePosition{VehicleID: "V1", TripID: "T1", Timestamp: 1741593600})
	assert.Equal(t, int64(1741593600000), v.Timestamp)

	sim := NewVehicle(realtime.VehiclePosition{VehicleID: "SIM-T1", TripID: "T1", Simulated: true})
	assert.Zero(t, sim.Timestamp)
	assert.True(t, sim.Simulated)
}
