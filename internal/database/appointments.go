package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"

	"clinicbook/internal/models"
)

// ErrSlotTaken is returned by InsertAppointmentIfAbsent when the
// (doctor, date, time) slot already has an appointment.
var ErrSlotTaken = errors.New("slot already taken")

// GetAppointments returns appointments for a doctor on a date, ordered
// by start time.
func (db *DB) GetAppointments(ctx context.Context, doctorID int64, date time.Time) ([]models.Appointment, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, doctor_id, patient_id, patient_name, date, start_min, notes, created_at
		FROM appointments
		WHERE doctor_id = ? AND date = ?
		ORDER BY start_min`,
		doctorID, models.DateKey(date),
	)
	if err != nil {
		return nil, fmt.Errorf("query appointments: %w", err)
	}
	defer rows.Close()
	return scanAppointments(rows)
}

// GetPatientAppointments returns all appointments booked by a patient,
// newest date first.
func (db *DB) GetPatientAppointments(ctx context.Context, patientID int64) ([]models.Appointment, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, doctor_id, patient_id, patient_name, date, start_min, notes, created_at
		FROM appointments
		WHERE patient_id = ?
		ORDER BY date DESC, start_min`,
		patientID,
	)
	if err != nil {
		return nil, fmt.Errorf("query patient appointments: %w", err)
	}
	defer rows.Close()
	return scanAppointments(rows)
}

// GetBookedTimes returns the booked start times per date for a doctor
// within [from, to], keyed by YYYY-MM-DD.
func (db *DB) GetBookedTimes(ctx context.Context, doctorID int64, from, to time.Time) (map[string][]models.TimeOfDay, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT date, start_min
		FROM appointments
		WHERE doctor_id = ? AND date >= ? AND date <= ?
		ORDER BY date, start_min`,
		doctorID, models.DateKey(from), models.DateKey(to),
	)
	if err != nil {
		return nil, fmt.Errorf("query booked times: %w", err)
	}
	defer rows.Close()

	booked := make(map[string][]models.TimeOfDay)
	for rows.Next() {
		var date string
		var start int
		if err := rows.Scan(&date, &start); err != nil {
			return nil, err
		}
		booked[date] = append(booked[date], models.TimeOfDay(start))
	}
	return booked, rows.Err()
}

// InsertAppointmentIfAbsent re-checks the slot and inserts the
// appointment. The UNIQUE constraint on (doctor_id, date, start_min)
// is the atomic primitive: of two concurrent bookings for the same
// slot exactly one insert succeeds; the loser gets ErrSlotTaken and no
// row is created. The preceding read only short-circuits the common
// already-taken case.
func (db *DB) InsertAppointmentIfAbsent(ctx context.Context, appt *models.Appointment) (*models.Appointment, error) {
	if appt == nil {
		return nil, fmt.Errorf("appointment is nil")
	}

	dateKey := models.DateKey(appt.Date)

	var count int
	if err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM appointments WHERE doctor_id = ? AND date = ? AND start_min = ?",
		appt.DoctorID, dateKey, int(appt.Start),
	).Scan(&count); err != nil {
		return nil, fmt.Errorf("check slot: %w", err)
	}
	if count > 0 {
		return nil, ErrSlotTaken
	}

	now := time.Now()
	res, err := db.ExecContext(ctx, `
		INSERT INTO appointments (doctor_id, patient_id, patient_name, date, start_min, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		appt.DoctorID, appt.PatientID, appt.PatientName, dateKey, int(appt.Start), appt.Notes, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrSlotTaken
		}
		return nil, fmt.Errorf("insert appointment: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	created := *appt
	created.ID = id
	created.Date = models.DateOnly(appt.Date)
	created.CreatedAt = now
	return &created, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func scanAppointments(rows *sql.Rows) ([]models.Appointment, error) {
	var appts []models.Appointment
	for rows.Next() {
		var a models.Appointment
		var date string
		var start int
		var notes sql.NullString
		if err := rows.Scan(&a.ID, &a.DoctorID, &a.PatientID, &a.PatientName, &date, &start, &notes, &a.CreatedAt); err != nil {
			return nil, err
		}
		parsed, err := time.ParseInLocation("2006-01-02", date, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("parse appointment date %q: %w", date, err)
		}
		a.Date = parsed
		a.Start = models.TimeOfDay(start)
		if notes.Valid {
			a.Notes = notes.String
		}
		appts = append(appts, a)
	}
	return appts, rows.Err()
}
