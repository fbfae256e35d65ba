package models

import "ontime.transit.dev/internal/schedule"

type Stop struct {
	ID         string   `json:"id"`
	Code       string   `json:"code,omitempty"`
	Name       string   `json:"name"`
	Lat        *float64 `json:"lat,omitempty"`
	Lon        *float64 `json:"lon,omitempty"`
	LineMarker bool     `json:"lineMarker,omitempty"`
	RouteLabel string   `json:"routeLabel,omitempty"`
}

// NewStop converts a schedule stop. Line markers carry no coordinates.
func NewStop(s schedule.Stop) Stop {
	out := Stop{
		ID:         s.ID,
		Code:       s.Code,
		Name:       s.Name,
		LineMarker: s.LineMarker,
		RouteLabel: s.RouteLabel,
	}
	if !s.LineMarker {
		lat, lon := s.Lat, s.Lon
		out.Lat, out.Lon = &lat, &lon
	}
	return out
}

func NewStops(stops []schedule.Stop) []Stop {
	out := make([]Stop, 0, len(stops))
	for _, s := range stops {
		out = append(out, NewStop(s))
	}
	return out
}

type NearbyStop struct {
	Stop
	DistanceMeters float64 `json:"distanceMeters"`
}

func NewNearbyStops(found []schedule.StopDistance) []NearbyStop {
	out := make([]NearbyStop, 0, len(found))
	for _, f := range found {
		out = append(out, NearbyStop{Stop: NewStop(f.Stop), DistanceMeters: f.Distance})
	}
	return out
}

// RouteStops is the ordered stop list of a route, optionally for one headsign.
type RouteStops struct {
	RouteID  string `json:"routeId"`
	Headsign string `json:"headsign,omitempty"`
	Stops    []Stop `json:"stops"`
}

type RoutePolyline struct {
	RouteID  string `json:"routeId"`
	Headsign string `json:"headsign,omitempty"`
	Points   string `json:"points"`
	Length   int    `json:"length"`
}
