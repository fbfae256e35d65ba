package schedule

import (
	"strings"

	"ontime.transit.dev/internal/tripid"
)

// Matcher resolves trip identifiers to scheduled trips.
type Matcher struct {
	trips        []Trip
	byID         map[string]Trip
	byNormalized map[string]Trip
}

// NewMatcher indexes trips by id. On duplicate ids the first trip wins.
func NewMatcher(trips []Trip) *Matcher {
	m := &Matcher{
		byID:         make(map[string]Trip, len(trips)),
		byNormalized: make(map[string]Trip, len(trips)),
	}
	for _, t := range trips {
		if _, dup := m.byID[t.ID]; dup {
			continue
		}
		m.byID[t.ID] = t
		m.trips = append(m.trips, t)
		if norm, ok := tripid.Normalize(t.ID); ok {
			if _, taken := m.byNormalized[norm]; !taken {
				m.byNormalized[norm] = t
			}
		}
	}
	return m
}

// MatchByTripID is an exact, case-sensitive lookup.
func (m *Matcher) MatchByTripID(id string) (Trip, bool) {
	t, ok := m.byID[id]
	return t, ok
}

// Resolve probes the candidate keys of raw (raw, normalized, then each variant)
// and returns the first scheduled trip that answers to one of them.
func (m *Matcher) Resolve(raw string) (Trip, bool) {
	for _, key := range tripid.Candidates(raw) {
		if t, ok := m.byID[key]; ok {
			return t, true
		}
		if t, ok := m.byNormalized[key]; ok {
			return t, true
		}
	}
	return Trip{}, false
}

// SearchByRouteOrHeadsign returns trips whose route id, headsign or short name
// contains query, ignoring case. Results follow load order.
func (m *Matcher) SearchByRouteOrHeadsign(query string) []Trip {
	q := strings.ToLower(query)
	var out []Trip
	for _, t := range m.trips {
		if strings.Contains(strings.ToLower(t.RouteID), q) ||
			strings.Contains(strings.ToLower(t.Headsign), q) ||
			(t.ShortName != "" && strings.Contains(strings.ToLower(t.ShortName), q)) {
			out = append(out, t)
		}
	}
	return out
}
