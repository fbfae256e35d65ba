package schedule

import (
	"sort"
	"strings"

	"github.com/tidwall/rtree"

	"ontime.transit.dev/internal/utils"
)

// Store is the read-only schedule for one static dataset.
// It is built once by NewStore and never mutated afterwards.
type Store struct {
	stops     []Stop
	trips     []Trip
	stopTimes []StopTime

	stopsByID       map[string]int
	tripsByID       map[string]int
	tripsByRoute    map[string][]int
	stopTimesByTrip map[string][]int

	spatial rtree.RTreeG[int]
	dropped int
}

// NewStore builds the lookup tables. Duplicate stop or trip ids keep the first row.
// Stop times that reference an unknown stop or trip are dropped.
func NewStore(stops []Stop, trips []Trip, stopTimes []StopTime) *Store {
	s := &Store{
		stopsByID:       make(map[string]int, len(stops)),
		tripsByID:       make(map[string]int, len(trips)),
		tripsByRoute:    make(map[string][]int),
		stopTimesByTrip: make(map[string][]int, len(trips)),
	}

	for _, stop := range stops {
		if _, dup := s.stopsByID[stop.ID]; dup || stop.ID == "" {
			continue
		}
		idx := len(s.stops)
		s.stops = append(s.stops, stop)
		s.stopsByID[stop.ID] = idx
		if !stop.LineMarker && utils.ValidCoordinate(stop.Lat, stop.Lon) {
			pt := [2]float64{stop.Lon, stop.Lat}
			s.spatial.Insert(pt, pt, idx)
		}
	}

	for _, trip := range trips {
		if _, dup := s.tripsByID[trip.ID]; dup || trip.ID == "" {
			continue
		}
		idx := len(s.trips)
		s.trips = append(s.trips, trip)
		s.tripsByID[trip.ID] = idx
		route := strings.ToLower(trip.RouteID)
		s.tripsByRoute[route] = append(s.tripsByRoute[route], idx)
	}

	for _, st := range stopTimes {
		_, knownStop := s.stopsByID[st.StopID]
		_, knownTrip := s.tripsByID[st.TripID]
		if !knownStop || !knownTrip {
			s.dropped++
			continue
		}
		idx := len(s.stopTimes)
		s.stopTimes = append(s.stopTimes, st)
		s.stopTimesByTrip[st.TripID] = append(s.stopTimesByTrip[st.TripID], idx)
	}

	return s
}

// Stop returns the stop with the given id.
func (s *Store) Stop(id string) (Stop, bool) {
	idx, ok := s.stopsByID[id]
	if !ok {
		return Stop{}, false
	}
	return s.stops[idx], true
}

// Trip returns the trip with the given id.
func (s *Store) Trip(id string) (Trip, bool) {
	idx, ok := s.tripsByID[id]
	if !ok {
		return Trip{}, false
	}
	return s.trips[idx], true
}

// TripsForRoute returns the trips of routeID, matched case-insensitively, in load order.
func (s *Store) TripsForRoute(routeID string) []Trip {
	idxs := s.tripsByRoute[strings.ToLower(routeID)]
	out := make([]Trip, 0, len(idxs))
	for _, idx := range idxs {
		out = append(out, s.trips[idx])
	}
	return out
}

// StopTimesForTrip returns the stop times of a trip in load order.
func (s *Store) StopTimesForTrip(tripID string) []StopTime {
	idxs := s.stopTimesByTrip[tripID]
	out := make([]StopTime, 0, len(idxs))
	for _, idx := range idxs {
		out = append(out, s.stopTimes[idx])
	}
	return out
}

func (s *Store) Stops() []Stop         { return s.stops }
func (s *Store) Trips() []Trip         { return s.trips }
func (s *Store) StopTimes() []StopTime { return s.stopTimes }

// Dropped reports how many stop times were rejected for referencing unknown rows.
func (s *Store) Dropped() int { return s.dropped }

// StopDistance pairs a stop with its distance from a query point.
type StopDistance struct {
	Stop     Stop
	Distance float64
}

// StopsNear returns geolocated stops within radius meters of (lat, lon), closest first.
// A limit of zero or less returns every match.
func (s *Store) StopsNear(lat, lon, radius float64, limit int) []StopDistance {
	if radius <= 0 || !utils.ValidCoordinate(lat, lon) {
		return nil
	}
	b := utils.CalculateBounds(lat, lon, radius)

	var out []StopDistance
	s.spatial.Search([2]float64{b.MinLon, b.MinLat}, [2]float64{b.MaxLon, b.MaxLat},
		func(_, _ [2]float64, idx int) bool {
			stop := s.stops[idx]
			if d := utils.Distance(lat, lon, stop.Lat, stop.Lon); d <= radius {
				out = append(out, StopDistance{Stop: stop, Distance: d})
			}
			return true
		})

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].Stop.ID < out[j].Stop.ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
