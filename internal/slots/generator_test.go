package slots

import (
	"testing"
	"time"

	"clinicbook/internal/models"
)

// mondayPattern is Monday/Wednesday 09:00-17:00.
func mondayPattern() models.WeeklyPattern {
	return models.WeeklyPattern{
		{Weekday: time.Monday, WindowStart: models.NewTimeOfDay(9, 0), WindowEnd: models.NewTimeOfDay(17, 0)},
		{Weekday: time.Wednesday, WindowStart: models.NewTimeOfDay(9, 0), WindowEnd: models.NewTimeOfDay(17, 0)},
	}
}

// 2026-09-07 is a Monday.
var (
	monday  = time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)
	tuesday = time.Date(2026, 9, 8, 0, 0, 0, 0, time.UTC)
)

func TestGenerate(t *testing.T) {
	tests := []struct {
		name          string
		pattern       models.WeeklyPattern
		date          time.Time
		granularity   int
		expectedCount int
		first         string
		last          string
	}{
		{
			name:          "hourly full window includes end boundary",
			pattern:       mondayPattern(),
			date:          monday,
			expectedCount: 9, // 09:00..17:00 inclusive
			first:         "09:00",
			last:          "17:00",
		},
		{
			name:          "weekday not in pattern yields nothing",
			pattern:       mondayPattern(),
			date:          tuesday,
			expectedCount: 0,
		},
		{
			name:          "empty pattern yields nothing",
			pattern:       nil,
			date:          monday,
			expectedCount: 0,
		},
		{
			name: "30 minute granularity",
			pattern: models.WeeklyPattern{
				{Weekday: time.Monday, WindowStart: models.NewTimeOfDay(10, 0), WindowEnd: models.NewTimeOfDay(12, 0)},
			},
			date:          monday,
			granularity:   30,
			expectedCount: 5, // 10:00 10:30 11:00 11:30 12:00
			first:         "10:00",
			last:          "12:00",
		},
		{
			name: "narrow window 09:00-16:00",
			pattern: models.WeeklyPattern{
				{Weekday: time.Monday, WindowStart: models.NewTimeOfDay(9, 0), WindowEnd: models.NewTimeOfDay(16, 0)},
			},
			date:          monday,
			expectedCount: 8,
			first:         "09:00",
			last:          "16:00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Generate(tt.pattern, tt.date, tt.granularity)
			if len(got) != tt.expectedCount {
				t.Fatalf("expected %d slots, got %d: %v", tt.expectedCount, len(got), got)
			}
			if tt.expectedCount == 0 {
				return
			}
			if got[0].String() != tt.first {
				t.Errorf("first slot: expected %s, got %s", tt.first, got[0])
			}
			if got[len(got)-1].String() != tt.last {
				t.Errorf("last slot: expected %s, got %s", tt.last, got[len(got)-1])
			}
			for i := 1; i < len(got); i++ {
				if got[i] <= got[i-1] {
					t.Errorf("slots not strictly ascending at %d: %v", i, got)
				}
			}
		})
	}
}

func TestGenerateNothingPastWindowEnd(t *testing.T) {
	pattern := models.WeeklyPattern{
		// 17:01 end: 17:00 fits, next candidate 18:00 does not.
		{Weekday: time.Monday, WindowStart: models.NewTimeOfDay(9, 0), WindowEnd: models.NewTimeOfDay(17, 1)},
	}
	got := Generate(pattern, monday, 0)
	last := got[len(got)-1]
	if last != models.NewTimeOfDay(17, 0) {
		t.Errorf("expected last slot 17:00, got %s", last)
	}
}

func TestGeneratePure(t *testing.T) {
	pattern := mondayPattern()
	first := Generate(pattern, monday, 0)
	second := Generate(pattern, monday, 0)
	if len(first) != len(second) {
		t.Fatalf("repeated generation differs: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("slot %d differs: %s vs %s", i, first[i], second[i])
		}
	}
}

func TestExclude(t *testing.T) {
	generated := Generate(mondayPattern(), monday, 0)

	taken := map[models.TimeOfDay]bool{
		models.NewTimeOfDay(9, 0): true,
	}
	free := Exclude(generated, taken)

	if len(free) != 8 {
		t.Fatalf("expected 8 free slots, got %d", len(free))
	}
	if free[0] != models.NewTimeOfDay(10, 0) {
		t.Errorf("expected first free slot 10:00, got %s", free[0])
	}
	for _, s := range free {
		if taken[s] {
			t.Errorf("taken slot %s leaked into free set", s)
		}
	}

	if got := Exclude(generated, nil); len(got) != len(generated) {
		t.Errorf("nil taken set should pass everything through")
	}
}
