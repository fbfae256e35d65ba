// Package routes rebuilds the stop sequence of a route from its scheduled trips.
package routes

import (
	"sort"
	"strings"

	"github.com/twpayne/go-polyline"

	"ontime.transit.dev/internal/schedule"
)

// Service answers route questions against one static dataset.
type Service struct {
	store *schedule.Store
}

func NewService(store *schedule.Store) *Service {
	return &Service{store: store}
}

// StopsForTrip returns the trip's stops ordered by stop sequence. Stop times whose
// stop is unknown are dropped.
func (s *Service) StopsForTrip(tripID string) []schedule.Stop {
	sts := s.store.StopTimesForTrip(tripID)
	sort.SliceStable(sts, func(i, j int) bool { return sts[i].StopSequence < sts[j].StopSequence })

	out := make([]schedule.Stop, 0, len(sts))
	for _, st := range sts {
		if stop, ok := s.store.Stop(st.StopID); ok {
			out = append(out, stop)
		}
	}
	return out
}

// RepresentativeTrip returns the first trip of routeID, optionally restricted to a
// headsign. Both comparisons ignore case; an empty headsign matches any trip.
func (s *Service) RepresentativeTrip(routeID, headsign string) (schedule.Trip, bool) {
	for _, t := range s.store.TripsForRoute(routeID) {
		if headsign == "" || strings.EqualFold(t.Headsign, headsign) {
			return t, true
		}
	}
	return schedule.Trip{}, false
}

// StopsForRoute returns the stops of the route's trip with the most stop times.
// The first such trip wins ties.
func (s *Service) StopsForRoute(routeID string) []schedule.Stop {
	var (
		best  string
		count int
	)
	for _, t := range s.store.TripsForRoute(routeID) {
		if n := len(s.store.StopTimesForTrip(t.ID)); n > count {
			best, count = t.ID, n
		}
	}
	if count == 0 {
		return nil
	}
	return s.StopsForTrip(best)
}

// StopsForRouteHeadsign narrows StopsForRoute to the representative trip of one headsign.
func (s *Service) StopsForRouteHeadsign(routeID, headsign string) []schedule.Stop {
	if headsign == "" {
		return s.StopsForRoute(routeID)
	}
	trip, ok := s.RepresentativeTrip(routeID, headsign)
	if !ok {
		return nil
	}
	return s.StopsForTrip(trip.ID)
}

// HeadsignsForRoute lists the route's distinct headsigns in first-seen order.
// Trips without a headsign contribute "".
func (s *Service) HeadsignsForRoute(routeID string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, t := range s.store.TripsForRoute(routeID) {
		if _, ok := seen[t.Headsign]; ok {
			continue
		}
		seen[t.Headsign] = struct{}{}
		out = append(out, t.Headsign)
	}
	return out
}

// EncodedPolyline encodes the geolocated stops in order as a Google polyline.
func EncodedPolyline(stops []schedule.Stop) string {
	coords := make([][]float64, 0, len(stops))
	for _, stop := range stops {
		if stop.LineMarker {
			continue
		}
		coords = append(coords, []float64{stop.Lat, stop.Lon})
	}
	if len(coords) == 0 {
		return ""
	}
	return string(polyline.EncodeCoords(coords))
}
