package export

import (
	"bytes"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"clinicbook/internal/models"
)

func TestWriteDaySchedule(t *testing.T) {
	sched := DaySchedule{
		Doctor: models.Doctor{ID: 1, FullName: "Dr. Grey"},
		Date:   "2026-09-07",
		Slots: []models.TimeOfDay{
			models.NewTimeOfDay(9, 0),
			models.NewTimeOfDay(10, 0),
			models.NewTimeOfDay(11, 0),
		},
		Appointments: []models.Appointment{
			{
				DoctorID:    1,
				PatientName: "Ann Lee",
				Start:       models.NewTimeOfDay(10, 0),
				Notes:       "follow-up",
			},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteDaySchedule(&buf, sched))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	sheet := f.GetSheetName(0)
	assert.Equal(t, "Dr. Grey 2026-09-07", sheet)

	rows, err := f.GetRows(sheet)
	require.NoError(t, err)
	require.Len(t, rows, 4) // header + 3 slots

	assert.Equal(t, []string{"Time", "Status", "Patient", "Notes"}, rows[0])
	assert.Equal(t, []string{"9:00 AM", "free"}, rows[1][:2])
	assert.Equal(t, []string{"10:00 AM", "booked", "Ann Lee", "follow-up"}, rows[2])
	assert.Equal(t, []string{"11:00 AM", "free"}, rows[3][:2])
}

func TestWriteDayScheduleEmptyDay(t *testing.T) {
	sched := DaySchedule{
		Doctor: models.Doctor{ID: 1, FullName: "Dr. Grey"},
		Date:   "2026-09-08",
	}

	var buf bytes.Buffer
	require.NoError(t, WriteDaySchedule(&buf, sched))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	require.NoError(t, err)
	require.Len(t, rows, 1, "only the header for a day without slots")
}

func TestSheetNameCapped(t *testing.T) {
	sched := DaySchedule{
		Doctor: models.Doctor{FullName: "Dr. Extremely Long Hyphenated-Name Josephson"},
		Date:   time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC).Format("2006-01-02"),
	}
	name := sheetName(sched)
	assert.LessOrEqual(t, utf8.RuneCountInString(name), 31)
	assert.True(t, utf8.ValidString(name))
}

func TestSheetNameMultibyteBoundary(t *testing.T) {
	// A multi-byte rune straddling the cap must not be split.
	sched := DaySchedule{
		Doctor: models.Doctor{FullName: "Доктор Вероника Константиновна"},
		Date:   "2026-09-07",
	}
	name := sheetName(sched)
	assert.LessOrEqual(t, utf8.RuneCountInString(name), 31)
	assert.True(t, utf8.ValidString(name))

	var buf bytes.Buffer
	require.NoError(t, WriteDaySchedule(&buf, sched))
	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, name, f.GetSheetName(0))
}
