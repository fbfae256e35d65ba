package arrivals

import (
	"fmt"
	"sort"
)

// NoUpcomingArrivals is the single line shown when a stop has nothing to report.
const NoUpcomingArrivals = "no upcoming arrivals"

// FormatLine renders an arrival for display, e.g. "64 - 5 min (late by 2 min)".
func FormatLine(a Arrival) string {
	switch a.Source {
	case SourceUnavailable:
		return a.RouteID + " - time unavailable"
	case SourceScheduled:
		return fmt.Sprintf("%s - %s (scheduled)", a.RouteID, eta(a.ETAMinutes))
	default:
		return fmt.Sprintf("%s - %s (%s)", a.RouteID, eta(a.ETAMinutes), statusText(a.Status, a.DelayMinutes))
	}
}

// FormatLines renders arrivals sorted lexicographically, or the NoUpcomingArrivals line.
func FormatLines(arrivals []Arrival) []string {
	if len(arrivals) == 0 {
		return []string{NoUpcomingArrivals}
	}
	lines := make([]string, 0, len(arrivals))
	for _, a := range arrivals {
		lines = append(lines, FormatLine(a))
	}
	sort.Strings(lines)
	return lines
}

func eta(minutes int64) string {
	if minutes == 0 {
		return "arriving"
	}
	return fmt.Sprintf("%d min", minutes)
}

func statusText(s DelayStatus, delayMinutes int64) string {
	switch s {
	case StatusLate:
		return fmt.Sprintf("late by %d min", delayMinutes)
	case StatusEarly:
		return fmt.Sprintf("early by %d min", -delayMinutes)
	default:
		return "on time"
	}
}
