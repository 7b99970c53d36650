// Package calendar classifies the days of a month for date selection.
package calendar

import (
	"time"

	"clinicbook/internal/models"
	"clinicbook/internal/slots"
)

// DayStatus classifies a calendar day for the booking UI.
type DayStatus string

const (
	StatusPast        DayStatus = "past"         // unselectable
	StatusAvailable   DayStatus = "available"    // weekday in pattern, free slots remain
	StatusFullyBooked DayStatus = "fully_booked" // weekday in pattern, every slot taken
	StatusUnavailable DayStatus = "unavailable"  // weekday not in pattern
)

// Day is one cell of the month grid.
type Day struct {
	Date   time.Time `json:"date"`
	Status DayStatus `json:"status"`
}

// MonthGrid is the classified month.
type MonthGrid struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
	Days  []Day      `json:"days"`
}

// BuildMonth classifies every day of the month against the doctor's
// weekly pattern and the booked times for that month. The pattern is
// weekday-based, so paging to another month is a pure recomputation
// over the same pattern; only booked times differ per month.
func BuildMonth(year int, month time.Month, pattern models.WeeklyPattern, booked map[string][]models.TimeOfDay, granularity int, now time.Time) MonthGrid {
	today := models.DateOnly(now)
	grid := MonthGrid{Year: year, Month: month}

	for day := 1; day <= daysIn(month, year); day++ {
		date := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
		grid.Days = append(grid.Days, Day{
			Date:   date,
			Status: classify(date, today, pattern, booked[models.DateKey(date)], granularity),
		})
	}
	return grid
}

func classify(date, today time.Time, pattern models.WeeklyPattern, taken []models.TimeOfDay, granularity int) DayStatus {
	if date.Before(today) {
		return StatusPast
	}
	generated := slots.Generate(pattern, date, granularity)
	if len(generated) == 0 {
		return StatusUnavailable
	}
	takenSet := make(map[models.TimeOfDay]bool, len(taken))
	for _, t := range taken {
		takenSet[t] = true
	}
	// Fully booked means no free slot remains. Booked times outside the
	// current window, left over from a wider past pattern, must not hide
	// a day that still has openings.
	if len(slots.Exclude(generated, takenSet)) == 0 {
		return StatusFullyBooked
	}
	return StatusAvailable
}

// PreviousMonth pages the grid back one month.
func PreviousMonth(year int, month time.Month) (int, time.Month) {
	if month == time.January {
		return year - 1, time.December
	}
	return year, month - 1
}

// NextMonth pages the grid forward one month.
func NextMonth(year int, month time.Month) (int, time.Month) {
	if month == time.December {
		return year + 1, time.January
	}
	return year, month + 1
}

// MonthRange returns the first and last day of a month.
func MonthRange(year int, month time.Month) (time.Time, time.Time) {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	last := time.Date(year, month, daysIn(month, year), 0, 0, 0, 0, time.UTC)
	return first, last
}

func daysIn(m time.Month, year int) int {
	switch m {
	case time.February:
		if (year%4 == 0 && year%100 != 0) || year%400 == 0 {
			return 29
		}
		return 28
	case time.April, time.June, time.September, time.November:
		return 30
	default:
		return 31
	}
}
