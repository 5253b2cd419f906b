// Package cutoff decides whether today's order may still be created,
// changed or cancelled.
package cutoff

import (
	"fmt"
	"time"

	"canteen-orders-api/models"
)

// IsModificationAllowed reports whether now is at or before the cutoff.
// The boundary instant itself is allowed.
func IsModificationAllowed(now, cancelCutoff time.Time) bool {
	return !now.After(cancelCutoff)
}

// Policy is a daily cutoff at a fixed wall-clock time in the canteen's zone
type Policy struct {
	hour   int
	minute int
	loc    *time.Location
}

// NewPolicy builds a policy for hour:minute in loc
func NewPolicy(hour, minute int, loc *time.Location) (Policy, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return Policy{}, fmt.Errorf("cutoff %02d:%02d out of range", hour, minute)
	}
	if loc == nil {
		loc = time.Local
	}
	return Policy{hour: hour, minute: minute, loc: loc}, nil
}

// ParsePolicy accepts "HH:MM", e.g. "19:00"
func ParsePolicy(hhmm string, loc *time.Location) (Policy, error) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return Policy{}, fmt.Errorf("invalid cutoff %q: want HH:MM", hhmm)
	}
	return NewPolicy(t.Hour(), t.Minute(), loc)
}

// Location is the canteen time zone that defines calendar days
func (p Policy) Location() *time.Location {
	if p.loc == nil {
		return time.Local
	}
	return p.loc
}

// Today is the calendar day now falls on
func (p Policy) Today(now time.Time) models.Day {
	return models.DayOf(now, p.Location())
}

// CutoffFor is the cutoff instant of day
func (p Policy) CutoffFor(day models.Day) time.Time {
	return day.At(p.hour, p.minute, p.Location())
}

// Allows evaluates the rule for the day now falls on. It is recomputed on
// every call, never cached.
func (p Policy) Allows(now time.Time) bool {
	return IsModificationAllowed(now, p.CutoffFor(p.Today(now)))
}

func (p Policy) String() string {
	return fmt.Sprintf("%02d:%02d %s", p.hour, p.minute, p.Location())
}
