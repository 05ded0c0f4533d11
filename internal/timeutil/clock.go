// Package timeutil owns the calendar-day boundary. Every "which day is it"
// decision in the engine goes through a Clock pinned to the reporting
// timezone, never through raw UTC dates, so that completion and miss
// detection agree regardless of client-local time.
package timeutil

import (
	"fmt"
	"time"
)

// Clock converts wall-clock instants into calendar dates in a fixed
// reporting timezone. The zero value is not usable; construct with NewClock.
type Clock struct {
	loc *time.Location
	now func() time.Time
}

// NewClock loads the given IANA timezone. An empty name means UTC.
func NewClock(tzName string) (*Clock, error) {
	if tzName == "" {
		tzName = "UTC"
	}
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("failed to load reporting timezone %q: %w", tzName, err)
	}
	return &Clock{loc: loc, now: time.Now}, nil
}

// NewClockAt returns a clock with a fixed current instant, for tests.
func NewClockAt(tzName string, at time.Time) (*Clock, error) {
	c, err := NewClock(tzName)
	if err != nil {
		return nil, err
	}
	c.now = func() time.Time { return at }
	return c, nil
}

// Location returns the reporting timezone.
func (c *Clock) Location() *time.Location {
	return c.loc
}

// Now returns the current instant in the reporting timezone.
func (c *Clock) Now() time.Time {
	return c.now().In(c.loc)
}

// Today returns the current calendar date in the reporting timezone,
// truncated to midnight.
func (c *Clock) Today() time.Time {
	return c.truncate(c.now())
}

// Yesterday returns the calendar date before Today. Computed by
// subtracting a day from the truncated date, not 24 hours from now, so
// DST transitions cannot skip or repeat a day.
func (c *Clock) Yesterday() time.Time {
	return c.Today().AddDate(0, 0, -1)
}

// DateOf truncates an arbitrary instant to its calendar date in the
// reporting timezone.
func (c *Clock) DateOf(t time.Time) time.Time {
	return c.truncate(t)
}

func (c *Clock) truncate(t time.Time) time.Time {
	t = t.In(c.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, c.loc)
}
