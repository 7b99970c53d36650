package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"clinicbook/internal/models"
)

// CreateDoctor inserts a doctor and fills its ID.
func (db *DB) CreateDoctor(ctx context.Context, d *models.Doctor) error {
	now := time.Now()
	res, err := db.ExecContext(ctx, `
		INSERT INTO doctors (full_name, specialty, email, phone, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, 1, ?, ?)`,
		d.FullName, d.Specialty, d.Email, d.Phone, now, now,
	)
	if err != nil {
		return fmt.Errorf("insert doctor: %w", err)
	}
	d.ID, err = res.LastInsertId()
	d.IsActive = true
	d.CreatedAt = now
	d.UpdatedAt = now
	return err
}

// GetDoctor returns a doctor by ID, or nil when absent.
func (db *DB) GetDoctor(ctx context.Context, id int64) (*models.Doctor, error) {
	var d models.Doctor
	err := db.QueryRowContext(ctx, `
		SELECT id, full_name, specialty, email, phone, is_active, created_at, updated_at
		FROM doctors WHERE id = ?`,
		id,
	).Scan(&d.ID, &d.FullName, &d.Specialty, &d.Email, &d.Phone, &d.IsActive, &d.CreatedAt, &d.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// ListActiveDoctors returns all active doctors ordered by name.
func (db *DB) ListActiveDoctors(ctx context.Context) ([]models.Doctor, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, full_name, specialty, email, phone, is_active, created_at, updated_at
		FROM doctors WHERE is_active = 1 ORDER BY full_name`,
	)
	if err != nil {
		return nil, fmt.Errorf("query doctors: %w", err)
	}
	defer rows.Close()

	var doctors []models.Doctor
	for rows.Next() {
		var d models.Doctor
		if err := rows.Scan(&d.ID, &d.FullName, &d.Specialty, &d.Email, &d.Phone, &d.IsActive, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		doctors = append(doctors, d)
	}
	return doctors, rows.Err()
}

// DeleteDoctor removes a doctor; availability and appointments go with
// it via ON DELETE CASCADE.
func (db *DB) DeleteDoctor(ctx context.Context, id int64) error {
	_, err := db.ExecContext(ctx, "DELETE FROM doctors WHERE id = ?", id)
	return err
}

// CreatePatient inserts a patient and fills its ID.
func (db *DB) CreatePatient(ctx context.Context, p *models.Patient) error {
	now := time.Now()
	res, err := db.ExecContext(ctx, `
		INSERT INTO patients (full_name, email, phone, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		p.FullName, p.Email, p.Phone, now, now,
	)
	if err != nil {
		return fmt.Errorf("insert patient: %w", err)
	}
	p.ID, err = res.LastInsertId()
	p.CreatedAt = now
	p.UpdatedAt = now
	return err
}

// GetPatient returns a patient by ID, or nil when absent.
func (db *DB) GetPatient(ctx context.Context, id int64) (*models.Patient, error) {
	var p models.Patient
	err := db.QueryRowContext(ctx, `
		SELECT id, full_name, email, phone, created_at, updated_at
		FROM patients WHERE id = ?`,
		id,
	).Scan(&p.ID, &p.FullName, &p.Email, &p.Phone, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// DeletePatient removes a patient and, via cascade, their appointments.
func (db *DB) DeletePatient(ctx context.Context, id int64) error {
	_, err := db.ExecContext(ctx, "DELETE FROM patients WHERE id = ?", id)
	return err
}
