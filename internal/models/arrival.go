package models

import (
	"time"

	"ontime.transit.dev/internal/arrivals"
)

// Arrival is the structured form of one display line. Times are epoch milliseconds;
// zero means unknown.
type Arrival struct {
	RouteID      string `json:"routeId"`
	TripID       string `json:"tripId"`
	Headsign     string `json:"headsign,omitempty"`
	Source       string `json:"source"`
	ScheduledAt  int64  `json:"scheduledTime,omitempty"`
	PredictedAt  int64  `json:"predictedTime,omitempty"`
	ETAMinutes   int64  `json:"etaMinutes"`
	DelayMinutes int64  `json:"delayMinutes"`
	Status       string `json:"status"`
	Line         string `json:"line"`
}

func epochMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func NewArrival(a arrivals.Arrival) Arrival {
	return Arrival{
		RouteID:      a.RouteID,
		TripID:       a.TripID,
		Headsign:     a.Headsign,
		Source:       a.Source.String(),
		ScheduledAt:  epochMillis(a.ScheduledAt),
		PredictedAt:  epochMillis(a.PredictedAt),
		ETAMinutes:   a.ETAMinutes,
		DelayMinutes: a.DelayMinutes,
		Status:       a.Status.String(),
		Line:         arrivals.FormatLine(a),
	}
}

// ArrivalsForStop is the payload of the arrivals endpoint.
type ArrivalsForStop struct {
	StopID   string    `json:"stopId"`
	Mode     string    `json:"mode"`
	Lines    []string  `json:"lines"`
	Arrivals []Arrival `json:"arrivals"`
}

func NewArrivalsForStop(stopID, mode string, found []arrivals.Arrival) ArrivalsForStop {
	out := ArrivalsForStop{
		StopID:   stopID,
		Mode:     mode,
		Lines:    arrivals.FormatLines(found),
		Arrivals: make([]Arrival, 0, len(found)),
	}
	for _, a := range found {
		out.Arrivals = append(out.Arrivals, NewArrival(a))
	}
	return out
}
