package models

import (
	"fmt"
	"strings"
	"time"
)

// Default daily window applied when a doctor saves a weekday without
// explicit hours.
var (
	DefaultWindowStart = NewTimeOfDay(9, 0)
	DefaultWindowEnd   = NewTimeOfDay(17, 0)
)

// AvailabilityEntry is one weekday of a doctor's weekly pattern.
type AvailabilityEntry struct {
	ID          int64        `json:"id"`
	DoctorID    int64        `json:"doctor_id"`
	Weekday     time.Weekday `json:"weekday"`
	WindowStart TimeOfDay    `json:"window_start"`
	WindowEnd   TimeOfDay    `json:"window_end"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Validate checks the window is well-formed.
func (e AvailabilityEntry) Validate() error {
	if !e.WindowStart.Valid() || !e.WindowEnd.Valid() {
		return fmt.Errorf("window out of range: %s-%s", e.WindowStart, e.WindowEnd)
	}
	if e.WindowEnd <= e.WindowStart {
		return fmt.Errorf("window end %s not after start %s", e.WindowEnd, e.WindowStart)
	}
	return nil
}

// WeeklyPattern is a doctor's full set of weekday windows.
type WeeklyPattern []AvailabilityEntry

// WindowFor returns the entry for the given weekday, if any.
func (p WeeklyPattern) WindowFor(day time.Weekday) (AvailabilityEntry, bool) {
	for _, e := range p {
		if e.Weekday == day {
			return e, true
		}
	}
	return AvailabilityEntry{}, false
}

// Contains reports whether the pattern covers the weekday of date.
func (p WeeklyPattern) Contains(date time.Time) bool {
	_, ok := p.WindowFor(date.Weekday())
	return ok
}

// ParseWeekday resolves an English weekday name. Matching is
// case-insensitive and tolerates surrounding whitespace, since persisted
// day values may come from free-text sources.
func ParseWeekday(s string) (time.Weekday, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.ToLower(d.String()) == name {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday: %q", s)
}
