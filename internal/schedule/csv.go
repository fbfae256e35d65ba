package schedule

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
)

type stopRow struct {
	ID   string `csv:"stop_id"`
	Code string `csv:"stop_code"`
	Name string `csv:"stop_name"`
	Lat  string `csv:"stop_lat"`
	Lon  string `csv:"stop_lon"`
}

type tripRow struct {
	RouteID     string `csv:"route_id"`
	ServiceID   string `csv:"service_id"`
	ID          string `csv:"trip_id"`
	Headsign    string `csv:"trip_headsign"`
	ShortName   string `csv:"trip_short_name"`
	DirectionID string `csv:"direction_id"`
	ShapeID     string `csv:"shape_id"`
}

type stopTimeRow struct {
	TripID            string `csv:"trip_id"`
	ArrivalTime       string `csv:"arrival_time"`
	DepartureTime     string `csv:"departure_time"`
	StopID            string `csv:"stop_id"`
	StopSequence      string `csv:"stop_sequence"`
	StopHeadsign      string `csv:"stop_headsign"`
	PickupType        string `csv:"pickup_type"`
	DropOffType       string `csv:"drop_off_type"`
	ShapeDistTraveled string `csv:"shape_dist_traveled"`
	Timepoint         string `csv:"timepoint"`
}

// LoadReport counts what a loader accepted and skipped.
type LoadReport struct {
	Stops       int
	Trips       int
	StopTimes   int
	SkippedRows int
}

// LoadCSVDir loads stops.txt, trips.txt and stop_times.txt from an unpacked GTFS
// directory. Malformed rows are skipped and counted; only I/O problems are errors.
func LoadCSVDir(dir string) (*Store, LoadReport, error) {
	var report LoadReport

	var stopRows []stopRow
	if err := readCSV(filepath.Join(dir, "stops.txt"), &stopRows); err != nil {
		return nil, report, err
	}
	var tripRows []tripRow
	if err := readCSV(filepath.Join(dir, "trips.txt"), &tripRows); err != nil {
		return nil, report, err
	}
	var stopTimeRows []stopTimeRow
	if err := readCSV(filepath.Join(dir, "stop_times.txt"), &stopTimeRows); err != nil {
		return nil, report, err
	}

	stops := make([]Stop, 0, len(stopRows))
	for _, r := range stopRows {
		s, ok := r.toStop()
		if !ok {
			report.SkippedRows++
			continue
		}
		stops = append(stops, s)
	}

	trips := make([]Trip, 0, len(tripRows))
	for _, r := range tripRows {
		t, ok := r.toTrip()
		if !ok {
			report.SkippedRows++
			continue
		}
		trips = append(trips, t)
	}

	stopTimes := make([]StopTime, 0, len(stopTimeRows))
	for _, r := range stopTimeRows {
		st, ok := r.toStopTime()
		if !ok {
			report.SkippedRows++
			continue
		}
		stopTimes = append(stopTimes, st)
	}

	store := NewStore(stops, trips, stopTimes)
	report.Stops = len(store.Stops())
	report.Trips = len(store.Trips())
	report.StopTimes = len(store.StopTimes())
	report.SkippedRows += store.Dropped()
	return store, report, nil
}

func readCSV(path string, out any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}
	b = bytes.TrimPrefix(b, []byte("\xef\xbb\xbf"))

	// Rows with a wrong column count are parsed anyway and rejected field by field.
	r := csv.NewReader(bytes.NewReader(b))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	if err := gocsv.UnmarshalCSV(r, out); err != nil {
		return fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	return nil
}

func (r stopRow) toStop() (Stop, bool) {
	id := strings.TrimSpace(r.ID)
	if id == "" {
		return Stop{}, false
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(r.Lat), 64)
	if err != nil {
		return Stop{}, false
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(r.Lon), 64)
	if err != nil {
		return Stop{}, false
	}
	return Stop{ID: id, Code: strings.TrimSpace(r.Code), Name: strings.TrimSpace(r.Name), Lat: lat, Lon: lon}, true
}

func (r tripRow) toTrip() (Trip, bool) {
	id := strings.TrimSpace(r.ID)
	if id == "" {
		return Trip{}, false
	}
	dir, ok := optionalInt(r.DirectionID)
	if !ok {
		return Trip{}, false
	}
	return Trip{
		ID:          id,
		RouteID:     strings.TrimSpace(r.RouteID),
		ServiceID:   strings.TrimSpace(r.ServiceID),
		Headsign:    strings.TrimSpace(r.Headsign),
		ShortName:   strings.TrimSpace(r.ShortName),
		DirectionID: dir,
		ShapeID:     strings.TrimSpace(r.ShapeID),
	}, true
}

func (r stopTimeRow) toStopTime() (StopTime, bool) {
	tripID := strings.TrimSpace(r.TripID)
	stopID := strings.TrimSpace(r.StopID)
	if tripID == "" || stopID == "" {
		return StopTime{}, false
	}
	seq, err := strconv.Atoi(strings.TrimSpace(r.StopSequence))
	if err != nil {
		return StopTime{}, false
	}
	arrival, ok := optionalTime(r.ArrivalTime)
	if !ok {
		return StopTime{}, false
	}
	departure, ok := optionalTime(r.DepartureTime)
	if !ok {
		return StopTime{}, false
	}
	pickup, ok := optionalInt(r.PickupType)
	if !ok {
		return StopTime{}, false
	}
	dropOff, ok := optionalInt(r.DropOffType)
	if !ok {
		return StopTime{}, false
	}
	timepoint, ok := optionalInt(r.Timepoint)
	if !ok {
		return StopTime{}, false
	}
	var dist float64
	if v := strings.TrimSpace(r.ShapeDistTraveled); v != "" {
		if dist, err = strconv.ParseFloat(v, 64); err != nil {
			return StopTime{}, false
		}
	}
	return StopTime{
		TripID:            tripID,
		StopID:            stopID,
		StopSequence:      seq,
		ArrivalTime:       arrival,
		DepartureTime:     departure,
		StopHeadsign:      strings.TrimSpace(r.StopHeadsign),
		PickupType:        pickup,
		DropOffType:       dropOff,
		ShapeDistTraveled: dist,
		Timepoint:         timepoint,
	}, true
}

// optionalTime accepts an empty field as NoTime but rejects a malformed one.
func optionalTime(s string) (TimeOfDay, bool) {
	if strings.TrimSpace(s) == "" {
		return NoTime, true
	}
	return ParseTimeOfDay(s)
}

func optionalInt(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, true
	}
	n, err := strconv.Atoi(s)
	return n, err == nil
}
