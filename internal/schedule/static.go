package schedule

import (
	"github.com/OneBusAway/go-gtfs"
)

// FromStatic converts a parsed GTFS archive into a Store.
// Stops without coordinates become line markers labelled with the stop name.
func FromStatic(static *gtfs.Static) *Store {
	if static == nil {
		return NewStore(nil, nil, nil)
	}

	stops := make([]Stop, 0, len(static.Stops))
	for _, s := range static.Stops {
		stop := Stop{ID: s.Id, Code: s.Code, Name: s.Name}
		if s.Latitude != nil && s.Longitude != nil {
			stop.Lat, stop.Lon = *s.Latitude, *s.Longitude
		} else {
			stop.LineMarker = true
			stop.RouteLabel = s.Name
		}
		stops = append(stops, stop)
	}

	trips := make([]Trip, 0, len(static.Trips))
	var stopTimes []StopTime
	for _, t := range static.Trips {
		trip := Trip{
			ID:        t.ID,
			Headsign:  t.Headsign,
			ShortName: t.ShortName,
		}
		if t.Route != nil {
			trip.RouteID = t.Route.Id
		}
		if t.Service != nil {
			trip.ServiceID = t.Service.Id
		}
		if t.Shape != nil {
			trip.ShapeID = t.Shape.ID
		}
		if t.DirectionId == gtfs.DirectionID_True {
			trip.DirectionID = 1
		}
		trips = append(trips, trip)

		for _, st := range t.StopTimes {
			if st.Stop == nil {
				continue
			}
			out := StopTime{
				TripID:        t.ID,
				StopID:        st.Stop.Id,
				StopSequence:  st.StopSequence,
				ArrivalTime:   TimeOfDayFromDuration(st.ArrivalTime),
				DepartureTime: TimeOfDayFromDuration(st.DepartureTime),
				StopHeadsign:  st.Headsign,
				PickupType:    int(st.PickupType),
				DropOffType:   int(st.DropOffType),
			}
			if st.ShapeDistanceTraveled != nil {
				out.ShapeDistTraveled = *st.ShapeDistanceTraveled
			}
			if st.ExactTimes {
				out.Timepoint = 1
			}
			stopTimes = append(stopTimes, out)
		}
	}

	return NewStore(stops, trips, stopTimes)
}

// NewLineMarker returns the synthetic stop used to list a route alongside real stops.
func NewLineMarker(routeID string) Stop {
	return Stop{ID: "line:" + routeID, Name: routeID, LineMarker: true, RouteLabel: routeID}
}
