package models

import "ontime.transit.dev/internal/realtime"

type Vehicle struct {
	VehicleID    string  `json:"vehicleId"`
	TripID       string  `json:"tripId"`
	RouteID      string  `json:"routeId,omitempty"`
	DirectionID  int     `json:"directionId"`
	StopSequence int     `json:"stopSequence,omitempty"`
	Lat          float64 `json:"lat"`
	Lon          float64 `json:"lon"`
	Timestamp    int64   `json:"timestamp,omitempty"`
	Simulated    bool    `json:"simulated"`
}

// NewVehicle converts a vehicle position; Timestamp is in epoch milliseconds.
func NewVehicle(v realtime.VehiclePosition) Vehicle {
	out := Vehicle{
		VehicleID:    v.VehicleID,
		TripID:       v.TripID,
		RouteID:      v.RouteID,
		DirectionID:  v.DirectionID,
		StopSequence: v.StopSequence,
		Lat:          v.Lat,
		Lon:          v.Lon,
		Simulated:    v.Simulated,
	}
	if v.Timestamp > 0 {
		out.Timestamp = v.Timestamp * 1000
	}
	return out
}

func NewVehicles(vehicles []realtime.VehiclePosition) []Vehicle {
	out := make([]Vehicle, 0, len(vehicles))
	for _, v := range vehicles {
		out = append(out, NewVehicle(v))
	}
	return out
}
