package schedule

import "ontime.transit.dev/internal/tripid"

// Index answers the stop-centric questions the realtime normalizer and the
// arrival engine ask of the schedule.
type Index struct {
	matcher *Matcher

	byStop        map[string][]StopTime
	seqByTrip     map[string]map[int]string
	seqByNormTrip map[string]map[int]string
	known         map[string]struct{}
}

// NewIndex builds the indices from every stop time in store.
func NewIndex(store *Store, matcher *Matcher) *Index {
	idx := &Index{
		matcher:       matcher,
		byStop:        make(map[string][]StopTime),
		seqByTrip:     make(map[string]map[int]string),
		seqByNormTrip: make(map[string]map[int]string),
		known:         make(map[string]struct{}, len(store.Stops())),
	}

	for _, stop := range store.Stops() {
		idx.known[stop.ID] = struct{}{}
	}

	for _, st := range store.StopTimes() {
		idx.byStop[st.StopID] = append(idx.byStop[st.StopID], st)
		idx.known[st.StopID] = struct{}{}

		seqs, ok := idx.seqByTrip[st.TripID]
		if !ok {
			seqs = make(map[int]string)
			idx.seqByTrip[st.TripID] = seqs
		}
		seqs[st.StopSequence] = st.StopID
	}

	// Normalized aliases never shadow a real trip id and the first trip claiming one keeps it.
	for _, trip := range store.Trips() {
		seqs, ok := idx.seqByTrip[trip.ID]
		if !ok {
			continue
		}
		norm, ok := tripid.Normalize(trip.ID)
		if !ok {
			continue
		}
		if _, exists := idx.seqByTrip[norm]; exists {
			continue
		}
		if _, taken := idx.seqByNormTrip[norm]; !taken {
			idx.seqByNormTrip[norm] = seqs
		}
	}

	return idx
}

// StopTimesAt returns every stop time at stopID in load order.
func (idx *Index) StopTimesAt(stopID string) []StopTime {
	return idx.byStop[stopID]
}

// TripsServingStop resolves each stop time at stopID to its trip.
// Unresolved trips are skipped; the result is not deduplicated by route.
func (idx *Index) TripsServingStop(stopID string) []Trip {
	var out []Trip
	for _, st := range idx.byStop[stopID] {
		if t, ok := idx.matcher.MatchByTripID(st.TripID); ok {
			out = append(out, t)
		}
	}
	return out
}

func (idx *Index) IsKnownStop(stopID string) bool {
	_, ok := idx.known[stopID]
	return ok
}

// ResolveStopID returns the stop a trip visits at the given sequence number.
// tripID is matched exactly or as a normalized static trip id.
func (idx *Index) ResolveStopID(tripID string, sequence int) (string, bool) {
	seqs, ok := idx.seqByTrip[tripID]
	if !ok {
		seqs, ok = idx.seqByNormTrip[tripID]
	}
	if !ok {
		return "", false
	}
	stopID, ok := seqs[sequence]
	return stopID, ok
}

// Matcher returns the trip matcher the index resolves through.
func (idx *Index) Matcher() *Matcher {
	return idx.matcher
}
