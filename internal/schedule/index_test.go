package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFixtureIndex() *Index {
	store := fixtureStore()
	return NewIndex(store, NewMatcher(store.Trips()))
}

func TestTripsServingStop(t *testing.T) {
	idx := newFixtureIndex()

	trips := idx.TripsServingStop("S2")
	require.Len(t, trips, 3)
	assert.Equal(t, "T1", trips[0].ID)
	assert.Equal(t, "T2", trips[1].ID)
	assert.Equal(t, "X.9-00", trips[2].ID)
	assert.Equal(t, trips[0].RouteID, trips[1].RouteID, "routes are not deduplicated")

	assert.Empty(t, idx.TripsServingStop("S404"))
}

func TestTripsServingStopSkipsUnmatchedTrips(t *testing.T) {
	store := fixtureStore()
	idx := NewIndex(store, NewMatcher([]Trip{{ID: "T1", RouteID: "R1"}}))

	trips := idx.TripsServingStop("S2")
	require.Len(t, trips, 1)
	assert.Equal(t, "T1", trips[0].ID)
}

func TestIsKnownStop(t *testing.T) {
	idx := newFixtureIndex()
	assert.True(t, idx.IsKnownStop("S3"))
	assert.False(t, idx.IsKnownStop("S9"))
}

func TestResolveStopID(t *testing.T) {
	idx := newFixtureIndex()

	tests := []struct {
		name   string
		tripID string
		seq    int
		want   string
		ok     bool
	}{
		{"exact trip", "T2", 3, "S2", true},
		{"missing sequence", "T2", 2, "", false},
		{"normalized trip", "t1", 3, "S3", true},
		{"normalized zero padded trip", "x.9", 10, "S2", true},
		{"raw realtime form is not normalized here", "0#T1", 1, "", false},
		{"unknown trip", "T9", 1, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := idx.ResolveStopID(tt.tripID, tt.seq)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStopTimesAtKeepsInsertionOrder(t *testing.T) {
	idx := newFixtureIndex()
	sts := idx.StopTimesAt("S1")
	require.Len(t, sts, 2)
	assert.Equal(t, "T1", sts[0].TripID)
	assert.Equal(t, "T2", sts[1].TripID)
}
