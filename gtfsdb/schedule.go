package gtfsdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ontime.transit.dev/internal/logging"
	"ontime.transit.dev/internal/schedule"
)

// ErrNoSnapshot is returned by LoadSchedule when nothing has been saved yet.
var ErrNoSnapshot = errors.New("gtfsdb: no schedule snapshot")

// Metadata describes the saved snapshot.
type Metadata struct {
	Source        string
	SavedAt       time.Time
	StopCount     int
	TripCount     int
	StopTimeCount int
}

// SaveSchedule replaces the stored snapshot with store in a single transaction.
func (c *Client) SaveSchedule(ctx context.Context, store *schedule.Store, source string, savedAt time.Time) error {
	startTime := time.Now()
	defer func() {
		c.saveRuntime = time.Since(startTime)
	}()

	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting snapshot transaction: %w", err)
	}
	defer logging.SafeRollbackWithLogging(tx, c.logger, "save_schedule")

	for _, table := range []string{"stop_times", "trips", "stops", "import_metadata"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("error clearing %s: %w", table, err)
		}
	}

	stops := store.Stops()
	stopRows := make([][]any, 0, len(stops))
	for i, s := range stops {
		stopRows = append(stopRows, []any{s.ID, s.Code, s.Name, s.Lat, s.Lon, boolToInt(s.LineMarker), s.RouteLabel, i})
	}
	if err := insertBatched(ctx, tx, "stops",
		[]string{"id", "code", "name", "lat", "lon", "line_marker", "route_label", "position"}, stopRows); err != nil {
		return err
	}

	trips := store.Trips()
	tripRows := make([][]any, 0, len(trips))
	for i, t := range trips {
		tripRows = append(tripRows, []any{t.ID, t.RouteID, t.ServiceID, t.Headsign, t.ShortName, t.DirectionID, t.ShapeID, i})
	}
	if err := insertBatched(ctx, tx, "trips",
		[]string{"id", "route_id", "service_id", "headsign", "short_name", "direction_id", "shape_id", "position"}, tripRows); err != nil {
		return err
	}

	stopTimes := store.StopTimes()
	stRows := make([][]any, 0, len(stopTimes))
	for i, st := range stopTimes {
		stRows = append(stRows, []any{
			st.TripID, st.StopID, st.StopSequence,
			toNullSeconds(st.ArrivalTime), toNullSeconds(st.DepartureTime),
			st.StopHeadsign, st.PickupType, st.DropOffType, st.ShapeDistTraveled, st.Timepoint, i,
		})
	}
	if err := insertBatched(ctx, tx, "stop_times",
		[]string{"trip_id", "stop_id", "stop_sequence", "arrival_time", "departure_time",
			"stop_headsign", "pickup_type", "drop_off_type", "shape_dist_traveled", "timepoint", "position"}, stRows); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO import_metadata (id, source, saved_at, stop_count, trip_count, stop_time_count)
		 VALUES (1, ?, ?, ?, ?, ?)`,
		source, savedAt.Unix(), len(stops), len(trips), len(stopTimes))
	if err != nil {
		return fmt.Errorf("error writing import metadata: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing snapshot: %w", err)
	}

	logging.LogOperation(c.logger, "schedule_snapshot_saved",
		slog.String("source", source),
		slog.Int("stops", len(stops)),
		slog.Int("trips", len(trips)),
		slog.Int("stop_times", len(stopTimes)),
		slog.Duration("duration", time.Since(startTime)))
	return nil
}

// GetImportMetadata returns the metadata of the saved snapshot, or ErrNoSnapshot.
func (c *Client) GetImportMetadata(ctx context.Context) (Metadata, error) {
	var (
		md      Metadata
		savedAt int64
	)
	err := c.DB.QueryRowContext(ctx,
		`SELECT source, saved_at, stop_count, trip_count, stop_time_count FROM import_metadata WHERE id = 1`).
		Scan(&md.Source, &savedAt, &md.StopCount, &md.TripCount, &md.StopTimeCount)
	if errors.Is(err, sql.ErrNoRows) {
		return Metadata{}, ErrNoSnapshot
	}
	if err != nil {
		return Metadata{}, fmt.Errorf("error reading import metadata: %w", err)
	}
	md.SavedAt = time.Unix(savedAt, 0)
	return md, nil
}

// LoadSchedule rebuilds the saved schedule in its original row order.
func (c *Client) LoadSchedule(ctx context.Context) (*schedule.Store, Metadata, error) {
	md, err := c.GetImportMetadata(ctx)
	if err != nil {
		return nil, Metadata{}, err
	}

	stops, err := c.loadStops(ctx)
	if err != nil {
		return nil, Metadata{}, err
	}
	trips, err := c.loadTrips(ctx)
	if err != nil {
		return nil, Metadata{}, err
	}
	stopTimes, err := c.loadStopTimes(ctx)
	if err != nil {
		return nil, Metadata{}, err
	}

	logging.LogOperation(c.logger, "schedule_snapshot_loaded",
		slog.String("source", md.Source),
		slog.Time("saved_at", md.SavedAt))

	return schedule.NewStore(stops, trips, stopTimes), md, nil
}

func (c *Client) loadStops(ctx context.Context) ([]schedule.Stop, error) {
	rows, err := c.DB.QueryContext(ctx,
		`SELECT id, code, name, lat, lon, line_marker, route_label FROM stops ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("error querying stops: %w", err)
	}
	defer logging.SafeCloseWithLogging(rows, c.logger, "stop_rows")

	var stops []schedule.Stop
	for rows.Next() {
		var (
			s      schedule.Stop
			marker int64
		)
		if err := rows.Scan(&s.ID, &s.Code, &s.Name, &s.Lat, &s.Lon, &marker, &s.RouteLabel); err != nil {
			return nil, fmt.Errorf("error scanning stop: %w", err)
		}
		s.LineMarker = marker != 0
		stops = append(stops, s)
	}
	return stops, rows.Err()
}

func (c *Client) loadTrips(ctx context.Context) ([]schedule.Trip, error) {
	rows, err := c.DB.QueryContext(ctx,
		`SELECT id, route_id, service_id, headsign, short_name, direction_id, shape_id FROM trips ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("error querying trips: %w", err)
	}
	defer logging.SafeCloseWithLogging(rows, c.logger, "trip_rows")

	var trips []schedule.Trip
	for rows.Next() {
		var t schedule.Trip
		if err := rows.Scan(&t.ID, &t.RouteID, &t.ServiceID, &t.Headsign, &t.ShortName, &t.DirectionID, &t.ShapeID); err != nil {
			return nil, fmt.Errorf("error scanning trip: %w", err)
		}
		trips = append(trips, t)
	}
	return trips, rows.Err()
}

func (c *Client) loadStopTimes(ctx context.Context) ([]schedule.StopTime, error) {
	rows, err := c.DB.QueryContext(ctx,
		`SELECT trip_id, stop_id, stop_sequence, arrival_time, departure_time,
		        stop_headsign, pickup_type, drop_off_type, shape_dist_traveled, timepoint
		 FROM stop_times ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("error querying stop_times: %w", err)
	}
	defer logging.SafeCloseWithLogging(rows, c.logger, "stop_time_rows")

	var stopTimes []schedule.StopTime
	for rows.Next() {
		var (
			st                 schedule.StopTime
			arrival, departure sql.NullInt64
		)
		if err := rows.Scan(&st.TripID, &st.StopID, &st.StopSequence, &arrival, &departure,
			&st.StopHeadsign, &st.PickupType, &st.DropOffType, &st.ShapeDistTraveled, &st.Timepoint); err != nil {
			return nil, fmt.Errorf("error scanning stop time: %w", err)
		}
		st.ArrivalTime = fromNullSeconds(arrival)
		st.DepartureTime = fromNullSeconds(departure)
		stopTimes = append(stopTimes, st)
	}
	return stopTimes, rows.Err()
}
