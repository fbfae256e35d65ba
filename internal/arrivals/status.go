package arrivals

// DelayStatus classifies a realtime arrival against its schedule.
type DelayStatus int

const (
	StatusOnTime DelayStatus = iota
	StatusEarly
	StatusLate
)

// lateness beyond this many whole minutes, either way, is reported.
const delayToleranceMinutes = 1

// ClassifyDelay maps a delay in whole minutes to a status.
func ClassifyDelay(delayMinutes int64) DelayStatus {
	switch {
	case delayMinutes > delayToleranceMinutes:
		return StatusLate
	case delayMinutes < -delayToleranceMinutes:
		return StatusEarly
	default:
		return StatusOnTime
	}
}

func (s DelayStatus) String() string {
	switch s {
	case StatusEarly:
		return "early"
	case StatusLate:
		return "late"
	default:
		return "on_time"
	}
}

// Source says where an arrival estimate came from.
type Source int

const (
	SourceRealtime Source = iota
	SourceScheduled
	SourceUnavailable
)

func (s Source) String() string {
	switch s {
	case SourceRealtime:
		return "realtime"
	case SourceScheduled:
		return "scheduled"
	default:
		return "unavailable"
	}
}
