// Package clock abstracts the time source so arrival computations can be
// evaluated at a controlled instant in tests and when replaying recorded feeds.
package clock

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Clock is the time source used by the arrival engine, the poll loop and the stale detector.
type Clock interface {
	Now() time.Time
}

// RealClock reads the system time.
type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now()
}

// MockClock is a settable, goroutine-safe clock for tests.
type MockClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewMockClock(t time.Time) *MockClock {
	return &MockClock{now: t}
}

func (m *MockClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Set moves the clock to t.
func (m *MockClock) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t
}

// Advance moves the clock by d, which may be negative.
func (m *MockClock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

// ReplayClock starts at a fixed instant and then advances with wall time.
// It is used to evaluate a recorded feed as if the service were running at that moment.
type ReplayClock struct {
	offset time.Duration
	wall   func() time.Time
}

// NewReplayClock returns a clock whose Now() equals start at construction time.
func NewReplayClock(start time.Time) *ReplayClock {
	return newReplayClock(start, time.Now)
}

func newReplayClock(start time.Time, wall func() time.Time) *ReplayClock {
	return &ReplayClock{offset: start.Sub(wall()), wall: wall}
}

func (r *ReplayClock) Now() time.Time {
	return r.wall().Add(r.offset)
}

// ParseInstant accepts RFC3339 or a zone-less "YYYY-MM-DD HH:MM:SS" interpreted in loc.
func ParseInstant(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02T15:04:05"} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse instant %q: expected RFC3339 or YYYY-MM-DD HH:MM:SS", s)
}
