package realtime

import (
	"sort"
	"sync"
	"time"

	"ontime.transit.dev/internal/tripid"
)

// Snapshot is the result of one successful poll. It is immutable once built.
type Snapshot struct {
	FeedTimestamp time.Time
	FetchedAt     time.Time

	predictions map[string]map[string]int64
	aliases     map[string]string
	count       int

	vehicles []VehiclePosition
}

// NewSnapshot indexes predictions by raw trip id and by every normalized spelling
// of it. When two predictions share a trip and stop, the later one wins.
func NewSnapshot(predictions []TripArrivalPrediction, feedTimestamp, fetchedAt time.Time) *Snapshot {
	s := &Snapshot{
		FeedTimestamp: feedTimestamp,
		FetchedAt:     fetchedAt,
		predictions:   make(map[string]map[string]int64),
		aliases:       make(map[string]string),
	}
	for _, p := range predictions {
		byStop, ok := s.predictions[p.TripID]
		if !ok {
			byStop = make(map[string]int64)
			s.predictions[p.TripID] = byStop
			for _, key := range tripid.Candidates(p.TripID) {
				if _, taken := s.aliases[key]; !taken {
					s.aliases[key] = p.TripID
				}
			}
		}
		if _, dup := byStop[p.StopID]; !dup {
			s.count++
		}
		byStop[p.StopID] = p.ArrivalEpoch
	}
	return s
}

// Freshness is the time the snapshot's data describes: the feed header timestamp,
// or the fetch time when the header carries none. An empty snapshot has neither.
func (s *Snapshot) Freshness() time.Time {
	if s == nil {
		return time.Time{}
	}
	if !s.FeedTimestamp.IsZero() {
		return s.FeedTimestamp
	}
	return s.FetchedAt
}

// Lookup returns the predicted arrival of a static trip at a stop. The trip id is
// probed as given, then through its normalized spellings.
func (s *Snapshot) Lookup(tripID, stopID string) (int64, bool) {
	if s == nil {
		return 0, false
	}
	if epoch, ok := s.predictions[tripID][stopID]; ok {
		return epoch, true
	}
	for _, key := range tripid.Candidates(tripID) {
		raw, ok := s.aliases[key]
		if !ok {
			continue
		}
		if epoch, ok := s.predictions[raw][stopID]; ok {
			return epoch, true
		}
	}
	return 0, false
}

// Len is the number of distinct (trip, stop) predictions.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return s.count
}

// Vehicles returns the vehicle positions captured with this snapshot.
func (s *Snapshot) Vehicles() []VehiclePosition {
	if s == nil {
		return nil
	}
	return s.vehicles
}

// Predictions lists the snapshot ordered by trip, then stop.
func (s *Snapshot) Predictions() []TripArrivalPrediction {
	if s == nil {
		return nil
	}
	out := make([]TripArrivalPrediction, 0, s.count)
	for trip, byStop := range s.predictions {
		for stop, epoch := range byStop {
			out = append(out, TripArrivalPrediction{TripID: trip, StopID: stop, ArrivalEpoch: epoch})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TripID != out[j].TripID {
			return out[i].TripID < out[j].TripID
		}
		return out[i].StopID < out[j].StopID
	})
	return out
}

func (s *Snapshot) withVehicles(vehicles []VehiclePosition) *Snapshot {
	cp := *s
	cp.vehicles = vehicles
	return &cp
}

// Store owns the current snapshot. Writers swap in a fully built snapshot and
// readers never observe a partially rebuilt one.
type Store struct {
	mu      sync.RWMutex
	current *Snapshot
}

func NewStore() *Store {
	return &Store{current: NewSnapshot(nil, time.Time{}, time.Time{})}
}

// Replace installs snap as the current snapshot.
func (s *Store) Replace(snap *Snapshot) {
	if snap == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = snap
}

// UpdateRealtimeArrivals discards every previous prediction and installs the given
// set, keeping the current vehicle positions.
func (s *Store) UpdateRealtimeArrivals(predictions []TripArrivalPrediction, feedTimestamp, fetchedAt time.Time) {
	next := NewSnapshot(predictions, feedTimestamp, fetchedAt)

	s.mu.Lock()
	defer s.mu.Unlock()
	next.vehicles = s.current.vehicles
	s.current = next
}

// UpdateVehiclePositions replaces the vehicle positions, keeping the predictions.
func (s *Store) UpdateVehiclePositions(vehicles []VehiclePosition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = s.current.withVehicles(vehicles)
}

// Snapshot returns the current snapshot. Callers may keep it; it never changes.
func (s *Store) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}
