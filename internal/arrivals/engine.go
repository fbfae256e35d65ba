// Package arrivals merges realtime predictions with the static schedule to
// produce the next arrival of each route at a stop.
package arrivals

import (
	"sort"
	"time"

	"ontime.transit.dev/internal/clock"
	"ontime.transit.dev/internal/realtime"
	"ontime.transit.dev/internal/schedule"
)

// DefaultHorizon bounds how far ahead scheduled arrivals are listed.
const DefaultHorizon = 60 * time.Minute

// Arrival is the chosen estimate for one route at one stop.
type Arrival struct {
	RouteID      string
	TripID       string
	StopID       string
	Headsign     string
	Source       Source
	ScheduledAt  time.Time
	PredictedAt  time.Time
	ETAMinutes   int64
	DelayMinutes int64
	Status       DelayStatus
}

// PredictionSource supplies the current realtime snapshot.
type PredictionSource interface {
	Snapshot() *realtime.Snapshot
}

// ModeSource supplies the process-wide realtime mode.
type ModeSource interface {
	Get() realtime.Mode
}

// Engine computes arrivals. It holds no mutable state of its own.
type Engine struct {
	index       *schedule.Index
	predictions PredictionSource
	mode        ModeSource
	stale       *realtime.StaleDetector
	clock       clock.Clock
	loc         *time.Location
	horizon     time.Duration
}

type Option func(*Engine)

func WithClock(c clock.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithLocation sets the zone in which schedule times of day are interpreted.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.loc = loc
		}
	}
}

func WithStaleDetector(d *realtime.StaleDetector) Option {
	return func(e *Engine) {
		if d != nil {
			e.stale = d
		}
	}
}

func WithHorizon(h time.Duration) Option {
	return func(e *Engine) {
		if h > 0 {
			e.horizon = h
		}
	}
}

func NewEngine(index *schedule.Index, predictions PredictionSource, mode ModeSource, opts ...Option) *Engine {
	e := &Engine{
		index:       index,
		predictions: predictions,
		mode:        mode,
		stale:       realtime.NewStaleDetector(),
		clock:       clock.RealClock{},
		loc:         time.Local,
		horizon:     DefaultHorizon,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ComputeArrivalsForStop returns display lines for stopID under an explicit mode and
// feed timestamp. Realtime data is ignored when the feed is stale.
func (e *Engine) ComputeArrivalsForStop(stopID string, mode realtime.Mode, feedTimestamp time.Time) []string {
	return FormatLines(e.Arrivals(stopID, mode, feedTimestamp))
}

// ArrivalsForStop reads the current mode and snapshot and returns display lines.
func (e *Engine) ArrivalsForStop(stopID string) []string {
	return FormatLines(e.CurrentArrivals(stopID))
}

// CurrentArrivals is ArrivalsForStop without formatting.
func (e *Engine) CurrentArrivals(stopID string) []Arrival {
	snap := e.snapshot()
	return e.compute(stopID, e.currentMode(), snap.Freshness(), snap)
}

// Arrivals returns one arrival per route serving stopID, ordered by display line.
func (e *Engine) Arrivals(stopID string, mode realtime.Mode, feedTimestamp time.Time) []Arrival {
	return e.compute(stopID, mode, feedTimestamp, e.snapshot())
}

type candidate struct {
	stopTime schedule.StopTime
	trip     schedule.Trip
}

func (e *Engine) compute(stopID string, mode realtime.Mode, feedTimestamp time.Time, snap *realtime.Snapshot) []Arrival {
	now := e.clock.Now()
	useRealtime := mode == realtime.ModeOnline && snap != nil && !e.stale.Check(feedTimestamp, now)

	var routes []string
	byRoute := make(map[string][]candidate)
	matcher := e.index.Matcher()
	for _, st := range e.index.StopTimesAt(stopID) {
		trip, ok := matcher.MatchByTripID(st.TripID)
		if !ok {
			continue
		}
		if _, seen := byRoute[trip.RouteID]; !seen {
			routes = append(routes, trip.RouteID)
		}
		byRoute[trip.RouteID] = append(byRoute[trip.RouteID], candidate{stopTime: st, trip: trip})
	}

	var out []Arrival
	for _, routeID := range routes {
		candidates := byRoute[routeID]
		if useRealtime {
			if a, ok := e.bestPredicted(candidates, stopID, snap, now); ok {
				out = append(out, a)
				continue
			}
		}
		if a, ok := e.bestScheduled(candidates, stopID, now); ok {
			out = append(out, a)
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return FormatLine(out[i]) < FormatLine(out[j]) })
	return out
}

// bestPredicted picks the candidate with the earliest prediction; the first one wins ties.
func (e *Engine) bestPredicted(candidates []candidate, stopID string, snap *realtime.Snapshot, now time.Time) (Arrival, bool) {
	var (
		best      candidate
		bestEpoch int64
		found     bool
	)
	for _, c := range candidates {
		epoch, ok := snap.Lookup(c.stopTime.TripID, stopID)
		if !ok {
			continue
		}
		if !found || epoch < bestEpoch {
			best, bestEpoch, found = c, epoch, true
		}
	}
	if !found {
		return Arrival{}, false
	}

	a := newArrival(best, stopID)
	tod, ok := best.stopTime.ScheduledTime()
	if !ok {
		a.Source = SourceUnavailable
		return a, true
	}

	scheduled := e.scheduledAt(tod, now)
	a.Source = SourceRealtime
	a.ScheduledAt = scheduled
	a.PredictedAt = time.Unix(bestEpoch, 0)
	a.DelayMinutes = (bestEpoch - scheduled.Unix()) / 60
	a.Status = ClassifyDelay(a.DelayMinutes)
	a.ETAMinutes = max(0, (bestEpoch-now.Unix())/60)
	return a, true
}

// bestScheduled picks the earliest scheduled arrival inside the horizon.
func (e *Engine) bestScheduled(candidates []candidate, stopID string, now time.Time) (Arrival, bool) {
	var (
		best          candidate
		bestScheduled time.Time
		found         bool
	)
	horizonMinutes := int64(e.horizon / time.Minute)
	for _, c := range candidates {
		tod, ok := c.stopTime.ScheduledTime()
		if !ok {
			continue
		}
		scheduled := e.scheduledAt(tod, now)
		diff := int64(scheduled.Sub(now) / time.Minute)
		if diff < 0 || diff > horizonMinutes {
			continue
		}
		if !found || scheduled.Before(bestScheduled) {
			best, bestScheduled, found = c, scheduled, true
		}
	}
	if !found {
		return Arrival{}, false
	}

	a := newArrival(best, stopID)
	a.Source = SourceScheduled
	a.ScheduledAt = bestScheduled
	a.ETAMinutes = int64(bestScheduled.Sub(now) / time.Minute)
	return a, true
}

// scheduledAt places a time of day on the calendar day nearest to now, so that
// late-evening queries see post-midnight service and vice versa.
func (e *Engine) scheduledAt(tod schedule.TimeOfDay, now time.Time) time.Time {
	t := tod.On(now, e.loc)
	switch diff := t.Sub(now); {
	case diff < -12*time.Hour:
		return tod.On(now.In(e.loc).AddDate(0, 0, 1), e.loc)
	case diff > 12*time.Hour:
		return tod.On(now.In(e.loc).AddDate(0, 0, -1), e.loc)
	}
	return t
}

func (e *Engine) snapshot() *realtime.Snapshot {
	if e.predictions == nil {
		return nil
	}
	return e.predictions.Snapshot()
}

func (e *Engine) currentMode() realtime.Mode {
	if e.mode == nil {
		return realtime.ModeOnline
	}
	return e.mode.Get()
}

func newArrival(c candidate, stopID string) Arrival {
	headsign := c.stopTime.StopHeadsign
	if headsign == "" {
		headsign = c.trip.Headsign
	}
	return Arrival{
		RouteID:  c.trip.RouteID,
		TripID:   c.trip.ID,
		StopID:   stopID,
		Headsign: headsign,
	}
}
