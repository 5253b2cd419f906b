package models

import (
	"fmt"
	"time"
)

// DayLayout is the storage and wire format of a calendar day
const DayLayout = "2006-01-02"

// Day is a calendar date in the canteen's time zone, e.g. "2026-10-16"
type Day string

// DayOf returns the calendar day an instant falls on in loc.
// Every stored day is derived from its instant through this function.
func DayOf(t time.Time, loc *time.Location) Day {
	if loc == nil {
		loc = time.Local
	}
	return Day(t.In(loc).Format(DayLayout))
}

// ParseDay validates a YYYY-MM-DD string
func ParseDay(s string) (Day, error) {
	t, err := time.Parse(DayLayout, s)
	if err != nil {
		return "", fmt.Errorf("invalid day %q: want YYYY-MM-DD", s)
	}
	return Day(t.Format(DayLayout)), nil
}

// AddDays shifts the day by n calendar days (n may be negative)
func (d Day) AddDays(n int) Day {
	t, err := time.Parse(DayLayout, string(d))
	if err != nil {
		return d
	}
	return Day(t.AddDate(0, 0, n).Format(DayLayout))
}

// At returns the instant hour:minute on this day in loc
func (d Day) At(hour, minute int, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.Parse(DayLayout, string(d))
	if err != nil {
		return time.Time{}
	}
	return time.Date(t.Year(), t.Month(), t.Day(), hour, minute, 0, 0, loc)
}

func (d Day) String() string { return string(d) }
