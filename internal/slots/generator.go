// Package slots turns a doctor's weekly availability pattern into
// concrete bookable time slots for a calendar date.
package slots

import (
	"time"

	"clinicbook/internal/models"
)

// DefaultGranularity is the slot step in minutes.
const DefaultGranularity = 60

// Generate returns the ordered candidate slots for date given the
// doctor's weekly pattern. The result is empty when the date's weekday
// is not in the pattern; that is "doctor does not work this day", not
// an error. The slot exactly at the window end is included.
//
// Generate is pure: it never touches storage and may be called again
// for another date with no side effects.
func Generate(pattern models.WeeklyPattern, date time.Time, granularity int) []models.TimeOfDay {
	if granularity <= 0 {
		granularity = DefaultGranularity
	}

	window, ok := pattern.WindowFor(date.Weekday())
	if !ok {
		return nil
	}

	var out []models.TimeOfDay
	for cursor := window.WindowStart; cursor <= window.WindowEnd; cursor = cursor.Add(granularity) {
		out = append(out, cursor)
	}
	return out
}

// Exclude returns the slots from generated that are not present in
// taken, preserving order. Comparison is on the time-of-day value.
func Exclude(generated []models.TimeOfDay, taken map[models.TimeOfDay]bool) []models.TimeOfDay {
	if len(taken) == 0 {
		return generated
	}
	var free []models.TimeOfDay
	for _, s := range generated {
		if !taken[s] {
			free = append(free, s)
		}
	}
	return free
}
