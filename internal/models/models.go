package models

import "time"

// Doctor represents a doctor account.
type Doctor struct {
	ID        int64     `json:"id"`
	FullName  string    `json:"full_name"`
	Specialty string    `json:"specialty"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Patient represents a patient account.
type Patient struct {
	ID        int64     `json:"id"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Appointment is a booked slot. Once created it is immutable and read
// by both the doctor and the patient.
type Appointment struct {
	ID          int64     `json:"id"`
	DoctorID    int64     `json:"doctor_id"`
	PatientID   int64     `json:"patient_id"`
	PatientName string    `json:"patient_name"`
	Date        time.Time `json:"date"`  // calendar date, midnight UTC
	Start       TimeOfDay `json:"start"` // slot start
	Notes       string    `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// DateOnly truncates t to its calendar date in UTC. Appointment dates
// are always stored in this form so date equality is exact.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DateKey formats a date as YYYY-MM-DD, the canonical wire and storage
// representation for calendar dates.
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}
