package clock

import (
	"fmt"
	"time"
)

// Clock yields "now" for every validity and expiry comparison in the system.
//
// All persisted instants are zone-naive local values in the configured zone,
// not UTC. Now therefore returns the wall-clock reading of the configured
// zone re-expressed in time.UTC, so that comparisons between stored values
// and clock values never mix zone-aware and zone-naive times.
type Clock interface {
	Now() time.Time
}

type zoneClock struct {
	loc *time.Location
}

// New builds a Clock for an IANA zone name (e.g. "America/Guayaquil").
func New(zone string) (Clock, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", zone, err)
	}
	return &zoneClock{loc: loc}, nil
}

func (c *zoneClock) Now() time.Time {
	return Naive(time.Now().In(c.loc))
}

// Naive strips the zone from t, keeping its wall-clock fields.
func Naive(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(),
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

// Fixed is a settable Clock for tests.
type Fixed struct {
	T time.Time
}

// NewFixed pins the clock at t.
func NewFixed(t time.Time) *Fixed {
	return &Fixed{T: Naive(t)}
}

func (f *Fixed) Now() time.Time {
	return f.T
}

// Set moves the fixed clock to t.
func (f *Fixed) Set(t time.Time) {
	f.T = Naive(t)
}

// Advance moves the fixed clock forward by d.
func (f *Fixed) Advance(d time.Duration) {
	f.T = f.T.Add(d)
}
