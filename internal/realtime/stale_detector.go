package realtime

import "time"

// DefaultStaleThreshold is how old a feed header may be before its data is ignored.
const DefaultStaleThreshold = 5 * time.Minute

// StaleDetector decides whether a feed is too old to trust.
type StaleDetector struct {
	threshold time.Duration
}

func NewStaleDetector() *StaleDetector {
	return &StaleDetector{threshold: DefaultStaleThreshold}
}

// WithThreshold overrides the threshold. Non-positive values are ignored.
func (d *StaleDetector) WithThreshold(threshold time.Duration) *StaleDetector {
	if threshold > 0 {
		d.threshold = threshold
	}
	return d
}

func (d *StaleDetector) Threshold() time.Duration {
	return d.threshold
}

// Check reports whether a feed stamped feedTimestamp is stale at now.
// A zero timestamp means there is no data and is always stale.
func (d *StaleDetector) Check(feedTimestamp, now time.Time) bool {
	if feedTimestamp.IsZero() {
		return true
	}
	return now.Sub(feedTimestamp) > d.threshold
}

// Age is how old the feed is at now; a missing timestamp reports just over the threshold.
func (d *StaleDetector) Age(feedTimestamp, now time.Time) time.Duration {
	if feedTimestamp.IsZero() {
		return d.threshold + time.Second
	}
	return now.Sub(feedTimestamp)
}
