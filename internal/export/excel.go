// Package export writes doctor day schedules to Excel for clinic
// administrators.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"clinicbook/internal/models"
)

var dayScheduleColumns = []string{"Time", "Status", "Patient", "Notes"}

// DaySchedule is the generated-slot view of one doctor day with booked
// appointments merged in.
type DaySchedule struct {
	Doctor       models.Doctor
	Date         string // YYYY-MM-DD
	Slots        []models.TimeOfDay
	Appointments []models.Appointment
}

// WriteDaySchedule renders the schedule as a single-sheet .xlsx.
func WriteDaySchedule(w io.Writer, sched DaySchedule) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := sheetName(sched)
	f.SetSheetName("Sheet1", sheet)

	if err := writeHeader(f, sheet); err != nil {
		return err
	}

	byStart := make(map[models.TimeOfDay]models.Appointment, len(sched.Appointments))
	for _, a := range sched.Appointments {
		byStart[a.Start] = a
	}

	row := 2
	for _, slot := range sched.Slots {
		cells := []interface{}{slot.Display(), "free", "", ""}
		if appt, ok := byStart[slot]; ok {
			cells = []interface{}{slot.Display(), "booked", appt.PatientName, appt.Notes}
		}
		for col, val := range cells {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, val); err != nil {
				return fmt.Errorf("write cell %s: %w", cell, err)
			}
		}
		row++
	}

	return f.Write(w)
}

func sheetName(sched DaySchedule) string {
	name := fmt.Sprintf("%s %s", sched.Doctor.FullName, sched.Date)
	// Excel caps sheet names at 31 characters. Truncate on runes so a
	// multi-byte name never yields invalid UTF-8.
	if runes := []rune(name); len(runes) > 31 {
		name = string(runes[:31])
	}
	return name
}

func writeHeader(f *excelize.File, sheet string) error {
	for i, col := range dayScheduleColumns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, col); err != nil {
			return err
		}
	}

	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		endCell, _ := excelize.CoordinatesToCellName(len(dayScheduleColumns), 1)
		_ = f.SetCellStyle(sheet, "A1", endCell, style)
	}
	return nil
}
