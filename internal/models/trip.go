package models

import "ontime.transit.dev/internal/schedule"

type Trip struct {
	ID          string `json:"id"`
	RouteID     string `json:"routeId"`
	ServiceID   string `json:"serviceId,omitempty"`
	Headsign    string `json:"headsign,omitempty"`
	ShortName   string `json:"shortName,omitempty"`
	DirectionID int    `json:"directionId"`
}

func NewTrip(t schedule.Trip) Trip {
	return Trip{
		ID:          t.ID,
		RouteID:     t.RouteID,
		ServiceID:   t.ServiceID,
		Headsign:    t.Headsign,
		ShortName:   t.ShortName,
		DirectionID: t.DirectionID,
	}
}

func NewTrips(trips []schedule.Trip) []Trip {
	out := make([]Trip, 0, len(trips))
	for _, t := range trips {
		out = append(out, NewTrip(t))
	}
	return out
}
