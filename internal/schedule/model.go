// Package schedule holds the static side of the service: the in-memory stop, trip
// and stop-time tables, the indices built over them, and the trip matcher used to
// join realtime identifiers back to scheduled trips.
package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Stop is a boarding location. A line marker is a synthetic stop that carries a
// route label instead of coordinates and is never placed on the map.
type Stop struct {
	ID         string
	Code       string
	Name       string
	Lat        float64
	Lon        float64
	LineMarker bool
	RouteLabel string
}

// Trip is one scheduled run of a route.
type Trip struct {
	ID          string
	RouteID     string
	ServiceID   string
	Headsign    string
	ShortName   string
	DirectionID int
	ShapeID     string
}

// StopTime is a trip's visit to a stop.
type StopTime struct {
	TripID            string
	StopID            string
	StopSequence      int
	ArrivalTime       TimeOfDay
	DepartureTime     TimeOfDay
	StopHeadsign      string
	PickupType        int
	DropOffType       int
	ShapeDistTraveled float64
	Timepoint         int
}

// ScheduledTime returns the arrival time, or the departure time when the arrival is missing.
func (st StopTime) ScheduledTime() (TimeOfDay, bool) {
	if st.ArrivalTime.Valid() {
		return st.ArrivalTime, true
	}
	if st.DepartureTime.Valid() {
		return st.DepartureTime, true
	}
	return NoTime, false
}

// TimeOfDay is a service time as an offset from midnight, wrapped into [0, 24h).
type TimeOfDay time.Duration

// NoTime marks a missing or unparseable time.
const NoTime TimeOfDay = -1

const day = 24 * time.Hour

func (t TimeOfDay) Valid() bool {
	return t >= 0
}

func (t TimeOfDay) Duration() time.Duration {
	return time.Duration(t)
}

func (t TimeOfDay) String() string {
	if !t.Valid() {
		return ""
	}
	d := time.Duration(t)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// On anchors t to the calendar date of ref in loc.
func (t TimeOfDay) On(ref time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	ref = ref.In(loc)
	midnight := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, loc)
	return midnight.Add(time.Duration(t))
}

// TimeOfDayFromDuration wraps a GTFS offset, which may exceed 24h, into a TimeOfDay.
func TimeOfDayFromDuration(d time.Duration) TimeOfDay {
	if d < 0 {
		return NoTime
	}
	return TimeOfDay(d % day)
}

// ParseTimeOfDay parses "H:MM:SS" or "HH:MM:SS". Hours of 24 or more denote
// post-midnight service and wrap around.
func ParseTimeOfDay(s string) (TimeOfDay, bool) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return NoTime, false
	}
	var fields [3]int
	for i, p := range parts {
		if p == "" || len(p) > 3 {
			return NoTime, false
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return NoTime, false
		}
		fields[i] = n
	}
	if fields[1] > 59 || fields[2] > 59 {
		return NoTime, false
	}
	d := time.Duration(fields[0])*time.Hour + time.Duration(fields[1])*time.Minute + time.Duration(fields[2])*time.Second
	return TimeOfDayFromDuration(d), true
}
