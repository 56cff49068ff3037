package core

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

var (
	clockMu sync.RWMutex
	clock   clockwork.Clock = clockwork.NewRealClock()
)

// SetClock replaces the package clock. Tests pass a clockwork.FakeClock.
func SetClock(c clockwork.Clock) {
	clockMu.Lock()
	defer clockMu.Unlock()
	clock = c
}

// Clock returns the package clock.
func Clock() clockwork.Clock {
	clockMu.RLock()
	defer clockMu.RUnlock()
	return clock
}

// Timestamp represents a point in time with timezone awareness
type Timestamp time.Time

// NewTimestamp creates a new timestamp from time.Time
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp(t)
}

// Now returns the current timestamp from the package clock, in UTC.
func Now() Timestamp {
	return Timestamp(Clock().Now().UTC())
}

// Time returns the underlying time.Time
func (t Timestamp) Time() time.Time {
	return time.Time(t)
}

// IsZero checks if the timestamp is zero
func (t Timestamp) IsZero() bool {
	return time.Time(t).IsZero()
}

func (t Timestamp) String() string { return t.Time().Format(time.RFC3339) }

// JSON marshaling for Timestamp
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return time.Time(t).MarshalJSON()
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var tm time.Time
	if err := tm.UnmarshalJSON(data); err != nil {
		return err
	}
	*t = Timestamp(tm)
	return nil
}
