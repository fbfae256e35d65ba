// Package realtime turns decoded GTFS-realtime feeds into normalized vehicle
// positions and arrival predictions, and holds the snapshot the arrival engine
// reads. Feed content is untrusted: every field is optional and units vary by
// producer, so implausible values are dropped rather than guessed.
package realtime

import (
	"math"
	"strings"
	"time"

	gtfsrt "github.com/OneBusAway/go-gtfs/proto"

	"ontime.transit.dev/internal/tripid"
	"ontime.transit.dev/internal/utils"
)

const (
	minEpochSeconds     = 1_000_000_000
	minEpochDeciseconds = 10_000_000_000
	minEpochMillis      = 1_000_000_000_000

	microdegrees = 1_000_000
	// Below this magnitude an out-of-range value is not a microdegree encoding.
	minMicrodegreeMagnitude = 1000
)

// VehiclePosition is one vehicle as reported by the feed. TripID keeps the feed's spelling.
type VehiclePosition struct {
	TripID       string
	VehicleID    string
	Lat          float64
	Lon          float64
	StopSequence int
	RouteID      string
	DirectionID  int
	Timestamp    int64
	Simulated    bool
}

// TripArrivalPrediction is a predicted arrival, in epoch seconds, of a trip at a stop.
type TripArrivalPrediction struct {
	TripID       string
	StopID       string
	ArrivalEpoch int64
}

// StopResolver answers the stop lookups needed when an update omits or garbles its stop id.
type StopResolver interface {
	IsKnownStop(stopID string) bool
	ResolveStopID(tripID string, sequence int) (string, bool)
}

// NormalizeEpoch converts a feed timestamp to epoch seconds. Values of 1e12 and
// above are milliseconds, 1e10 and above deciseconds, 1e9 and above seconds.
// Anything else returns -1.
func NormalizeEpoch(raw int64) int64 {
	switch {
	case raw <= 0:
		return -1
	case raw >= minEpochMillis:
		return raw / 1000
	case raw >= minEpochDeciseconds:
		return raw / 10
	case raw >= minEpochSeconds:
		return raw
	default:
		return -1
	}
}

// SanitizeCoordinates returns usable degrees for (lat, lon). An out-of-range pair
// is retried as microdegrees when both components are at that scale; if the
// result is still out of range the pair is rejected.
func SanitizeCoordinates(lat, lon float64) (float64, float64, bool) {
	if utils.ValidCoordinate(lat, lon) {
		return lat, lon, true
	}
	if !microdegreeScale(lat) || !microdegreeScale(lon) {
		return 0, 0, false
	}
	lat, lon = lat/microdegrees, lon/microdegrees
	if utils.ValidCoordinate(lat, lon) {
		return lat, lon, true
	}
	return 0, 0, false
}

func microdegreeScale(v float64) bool {
	return v == 0 || math.Abs(v) >= minMicrodegreeMagnitude
}

// FeedTimestamp returns the header timestamp, or the zero time when it is absent or implausible.
func FeedTimestamp(feed *gtfsrt.FeedMessage) time.Time {
	epoch := NormalizeEpoch(int64(feed.GetHeader().GetTimestamp()))
	if epoch <= 0 {
		return time.Time{}
	}
	return time.Unix(epoch, 0)
}

// ExtractVehiclePositions reads every vehicle entity that carries a usable position.
func ExtractVehiclePositions(feed *gtfsrt.FeedMessage) []VehiclePosition {
	var out []VehiclePosition
	for _, entity := range feed.GetEntity() {
		v := entity.GetVehicle()
		if v == nil || v.GetPosition() == nil {
			continue
		}
		lat, lon, ok := SanitizeCoordinates(float64(v.GetPosition().GetLatitude()), float64(v.GetPosition().GetLongitude()))
		if !ok {
			continue
		}

		vp := VehiclePosition{
			TripID:       strings.TrimSpace(v.GetTrip().GetTripId()),
			VehicleID:    strings.TrimSpace(v.GetVehicle().GetId()),
			Lat:          lat,
			Lon:          lon,
			StopSequence: -1,
			RouteID:      strings.TrimSpace(v.GetTrip().GetRouteId()),
			DirectionID:  -1,
		}
		if v.CurrentStopSequence != nil {
			vp.StopSequence = int(v.GetCurrentStopSequence())
		}
		if v.GetTrip() != nil && v.GetTrip().DirectionId != nil {
			vp.DirectionID = int(v.GetTrip().GetDirectionId())
		}
		if ts := NormalizeEpoch(int64(v.GetTimestamp())); ts > 0 {
			vp.Timestamp = ts
		}
		out = append(out, vp)
	}
	return out
}

// ExtractTripArrivalPredictions flattens trip updates into per-stop predictions.
// Updates marked SKIPPED or NO_DATA are ignored, as is any update left without a
// stop id or a plausible time.
func ExtractTripArrivalPredictions(feed *gtfsrt.FeedMessage, resolver StopResolver) []TripArrivalPrediction {
	var out []TripArrivalPrediction
	for _, entity := range feed.GetEntity() {
		tu := entity.GetTripUpdate()
		if tu == nil {
			continue
		}
		tripID := strings.TrimSpace(tu.GetTrip().GetTripId())
		if tripID == "" {
			continue
		}

		for _, stu := range tu.GetStopTimeUpdate() {
			if !actionable(stu) {
				continue
			}
			stopID := resolveStop(tripID, stu, resolver)
			if stopID == "" {
				continue
			}
			epoch := NormalizeEpoch(eventTime(stu))
			if epoch <= 0 {
				continue
			}
			out = append(out, TripArrivalPrediction{TripID: tripID, StopID: stopID, ArrivalEpoch: epoch})
		}
	}
	return out
}

func actionable(stu *gtfsrt.TripUpdate_StopTimeUpdate) bool {
	if stu.ScheduleRelationship == nil {
		return true
	}
	switch stu.GetScheduleRelationship() {
	case gtfsrt.TripUpdate_StopTimeUpdate_SKIPPED, gtfsrt.TripUpdate_StopTimeUpdate_NO_DATA:
		return false
	}
	return true
}

// resolveStop prefers the update's own stop id. A missing or unknown id with a
// sequence number is looked up by raw trip id, then by normalized trip id; an
// unknown id that cannot be repaired is kept as reported.
func resolveStop(tripID string, stu *gtfsrt.TripUpdate_StopTimeUpdate, resolver StopResolver) string {
	own := strings.TrimSpace(stu.GetStopId())
	if resolver == nil || stu.StopSequence == nil {
		return own
	}
	if own != "" && resolver.IsKnownStop(own) {
		return own
	}

	seq := int(stu.GetStopSequence())
	if stopID, ok := resolver.ResolveStopID(tripID, seq); ok {
		return stopID
	}
	if norm, ok := tripid.Normalize(tripID); ok {
		if stopID, ok := resolver.ResolveStopID(norm, seq); ok {
			return stopID
		}
	}
	return own
}

func eventTime(stu *gtfsrt.TripUpdate_StopTimeUpdate) int64 {
	if a := stu.GetArrival(); a != nil && a.Time != nil {
		return a.GetTime()
	}
	if d := stu.GetDeparture(); d != nil && d.Time != nil {
		return d.GetTime()
	}
	return 0
}
