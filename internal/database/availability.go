package database

import (
	"context"
	"fmt"
	"time"

	"clinicbook/internal/models"
)

// GetAvailability returns the doctor's weekly pattern ordered by weekday.
func (db *DB) GetAvailability(ctx context.Context, doctorID int64) (models.WeeklyPattern, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, doctor_id, weekday, window_start, window_end, created_at, updated_at
		FROM doctor_availability
		WHERE doctor_id = ?
		ORDER BY weekday`,
		doctorID,
	)
	if err != nil {
		return nil, fmt.Errorf("query availability: %w", err)
	}
	defer rows.Close()

	var pattern models.WeeklyPattern
	for rows.Next() {
		var e models.AvailabilityEntry
		var weekday, start, end int
		if err := rows.Scan(&e.ID, &e.DoctorID, &weekday, &start, &end, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		e.Weekday = time.Weekday(weekday)
		e.WindowStart = models.TimeOfDay(start)
		e.WindowEnd = models.TimeOfDay(end)
		pattern = append(pattern, e)
	}
	return pattern, rows.Err()
}

// ReplaceAvailability replaces the doctor's whole pattern in one
// transaction. Saving is always delete-and-insert so stale weekdays
// cannot linger.
func (db *DB) ReplaceAvailability(ctx context.Context, doctorID int64, entries models.WeeklyPattern) error {
	for _, e := range entries {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("entry for %s: %w", e.Weekday, err)
		}
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM doctor_availability WHERE doctor_id = ?", doctorID,
	); err != nil {
		return fmt.Errorf("clear availability: %w", err)
	}

	now := time.Now()
	for _, e := range entries {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO doctor_availability (doctor_id, weekday, window_start, window_end, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			doctorID, int(e.Weekday), int(e.WindowStart), int(e.WindowEnd), now, now,
		); err != nil {
			return fmt.Errorf("insert availability for %s: %w", e.Weekday, err)
		}
	}

	return tx.Commit()
}
