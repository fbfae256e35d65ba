package realtime

import (
	"sort"
	"time"

	"ontime.transit.dev/internal/schedule"
)

// SimulateVehicles stands in for a vehicle feed when none is available. Every trip
// in service at now gets one synthetic vehicle parked at the last stop it has
// reached according to the timetable.
func SimulateVehicles(store *schedule.Store, now time.Time, loc *time.Location) []VehiclePosition {
	if store == nil {
		return nil
	}
	if loc == nil {
		loc = time.Local
	}
	local := now.In(loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	clock := local.Sub(midnight)

	var out []VehiclePosition
	for _, trip := range store.Trips() {
		stops := timedStops(store.StopTimesForTrip(trip.ID))
		if len(stops) == 0 {
			continue
		}
		first, last := stops[0].at, stops[len(stops)-1].at

		// Trips that run past midnight are also checked against yesterday's clock.
		for _, t := range []time.Duration{clock, clock + 24*time.Hour} {
			if t < first || t > last {
				continue
			}
			current := stops[0]
			for _, s := range stops[1:] {
				if s.at > t {
					break
				}
				current = s
			}
			stop, ok := store.Stop(current.st.StopID)
			if !ok || stop.LineMarker {
				break
			}
			out = append(out, VehiclePosition{
				TripID:       trip.ID,
				VehicleID:    "SIM-" + trip.ID,
				Lat:          stop.Lat,
				Lon:          stop.Lon,
				StopSequence: current.st.StopSequence,
				RouteID:      trip.RouteID,
				DirectionID:  trip.DirectionID,
				Timestamp:    now.Unix(),
				Simulated:    true,
			})
			break
		}
	}
	return out
}

type timedStop struct {
	st schedule.StopTime
	at time.Duration
}

// timedStops orders a trip by sequence and unwraps times that crossed midnight
// into a monotonic offset from the first stop's day.
func timedStops(sts []schedule.StopTime) []timedStop {
	sorted := append([]schedule.StopTime(nil), sts...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].StopSequence < sorted[j].StopSequence })

	var out []timedStop
	var dayShift, prev time.Duration
	for _, st := range sorted {
		tod, ok := st.ScheduledTime()
		if !ok {
			continue
		}
		at := tod.Duration() + dayShift
		if len(out) > 0 && at < prev {
			dayShift += 24 * time.Hour
			at += 24 * time.Hour
		}
		prev = at
		out = append(out, timedStop{st: st, at: at})
	}
	return out
}
