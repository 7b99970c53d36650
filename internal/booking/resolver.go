// Package booking resolves bookable slots and commits appointments
// without double-booking.
package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"clinicbook/internal/database"
	"clinicbook/internal/metrics"
	"clinicbook/internal/models"
	"clinicbook/internal/slots"
)

var (
	// ErrSlotConflict means the slot was taken between display and
	// confirmation. The caller must re-fetch availability and
	// re-prompt; the resolver never retries on its own.
	ErrSlotConflict = errors.New("slot conflict")

	// ErrInvalidDate means the date's weekday is outside the doctor's
	// pattern, or the date itself is not bookable.
	ErrInvalidDate = errors.New("invalid date")

	ErrDoctorNotFound  = errors.New("doctor not found")
	ErrPatientNotFound = errors.New("patient not found")
)

// Store is the persistence collaborator consumed by the resolver.
type Store interface {
	GetDoctor(ctx context.Context, id int64) (*models.Doctor, error)
	GetPatient(ctx context.Context, id int64) (*models.Patient, error)
	GetAvailability(ctx context.Context, doctorID int64) (models.WeeklyPattern, error)
	ReplaceAvailability(ctx context.Context, doctorID int64, entries models.WeeklyPattern) error
	GetAppointments(ctx context.Context, doctorID int64, date time.Time) ([]models.Appointment, error)
	InsertAppointmentIfAbsent(ctx context.Context, appt *models.Appointment) (*models.Appointment, error)
}

// PatternCache caches weekly patterns between reads. Implementations
// must tolerate misses; the store stays authoritative.
type PatternCache interface {
	Get(ctx context.Context, doctorID int64) (models.WeeklyPattern, bool)
	Set(ctx context.Context, doctorID int64, pattern models.WeeklyPattern)
	Invalidate(ctx context.Context, doctorID int64)
}

// Rules bounds which dates are bookable.
type Rules struct {
	MaxAdvanceDays int // 0 means default 90
	Granularity    int // slot step in minutes, 0 means hourly
}

// MaxAdvance returns the booking horizon.
func (r Rules) MaxAdvance() time.Duration {
	days := r.MaxAdvanceDays
	if days <= 0 {
		days = 90
	}
	return time.Duration(days) * 24 * time.Hour
}

// Resolver computes available slots and books appointments.
type Resolver struct {
	store  Store
	cache  PatternCache
	rules  Rules
	logger *zerolog.Logger
	now    func() time.Time
}

// NewResolver creates a resolver. cache may be nil.
func NewResolver(store Store, cache PatternCache, rules Rules, logger *zerolog.Logger) *Resolver {
	return &Resolver{
		store:  store,
		cache:  cache,
		rules:  rules,
		logger: logger,
		now:    time.Now,
	}
}

// WeeklyAvailability returns the doctor's saved pattern.
func (r *Resolver) WeeklyAvailability(ctx context.Context, doctorID int64) (models.WeeklyPattern, error) {
	if err := r.requireDoctor(ctx, doctorID); err != nil {
		return nil, err
	}
	return r.pattern(ctx, doctorID)
}

// SaveAvailability replaces the doctor's pattern wholesale and drops
// any cached copy.
func (r *Resolver) SaveAvailability(ctx context.Context, doctorID int64, entries models.WeeklyPattern) error {
	if err := r.requireDoctor(ctx, doctorID); err != nil {
		return err
	}
	if err := r.store.ReplaceAvailability(ctx, doctorID, entries); err != nil {
		return fmt.Errorf("replace availability: %w", err)
	}
	if r.cache != nil {
		r.cache.Invalidate(ctx, doctorID)
	}
	r.logger.Info().Int64("doctor_id", doctorID).Int("weekdays", len(entries)).Msg("availability saved")
	return nil
}

// AvailableSlots returns the bookable slots for a doctor on a date:
// everything the pattern generates minus what is already booked.
// A weekday outside the pattern yields ErrInvalidDate.
func (r *Resolver) AvailableSlots(ctx context.Context, doctorID int64, date time.Time) ([]models.TimeOfDay, error) {
	if err := r.requireDoctor(ctx, doctorID); err != nil {
		return nil, err
	}

	pattern, err := r.pattern(ctx, doctorID)
	if err != nil {
		return nil, err
	}

	generated := slots.Generate(pattern, date, r.rules.Granularity)
	if len(generated) == 0 {
		return nil, fmt.Errorf("%w: doctor %d does not work on %s", ErrInvalidDate, doctorID, date.Weekday())
	}

	booked, err := r.store.GetAppointments(ctx, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("load appointments: %w", err)
	}

	taken := make(map[models.TimeOfDay]bool, len(booked))
	for _, a := range booked {
		taken[a.Start] = true
	}
	return slots.Exclude(generated, taken), nil
}

// BookAppointment re-validates the slot and commits it atomically.
// Availability shown to the user may be stale by the time they confirm;
// the store's check-and-insert is what decides the winner.
func (r *Resolver) BookAppointment(ctx context.Context, doctorID, patientID int64, patientName string, date time.Time, start models.TimeOfDay, notes string) (*models.Appointment, error) {
	if err := r.ValidateBookingDate(date); err != nil {
		return nil, err
	}
	if err := r.requireDoctor(ctx, doctorID); err != nil {
		return nil, err
	}

	patient, err := r.store.GetPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("load patient: %w", err)
	}
	if patient == nil {
		return nil, fmt.Errorf("%w: id %d", ErrPatientNotFound, patientID)
	}
	if patientName == "" {
		patientName = patient.FullName
	}

	pattern, err := r.pattern(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if !slotInPattern(pattern, date, start, r.rules.Granularity) {
		return nil, fmt.Errorf("%w: %s is not a slot on %s", ErrInvalidDate, start, date.Weekday())
	}

	created, err := r.store.InsertAppointmentIfAbsent(ctx, &models.Appointment{
		DoctorID:    doctorID,
		PatientID:   patientID,
		PatientName: patientName,
		Date:        models.DateOnly(date),
		Start:       start,
		Notes:       notes,
	})
	if errors.Is(err, database.ErrSlotTaken) {
		metrics.IncSlotConflict()
		r.logger.Warn().
			Int64("doctor_id", doctorID).
			Str("date", models.DateKey(date)).
			Str("slot", start.String()).
			Msg("booking lost slot race")
		return nil, fmt.Errorf("%w: %s %s", ErrSlotConflict, models.DateKey(date), start)
	}
	if err != nil {
		return nil, fmt.Errorf("insert appointment: %w", err)
	}

	metrics.IncAppointmentCreated()
	r.logger.Info().
		Int64("appointment_id", created.ID).
		Int64("doctor_id", doctorID).
		Int64("patient_id", patientID).
		Str("date", models.DateKey(created.Date)).
		Str("slot", created.Start.String()).
		Msg("appointment booked")
	return created, nil
}

// ValidateBookingDate rejects past dates and dates beyond the booking
// horizon.
func (r *Resolver) ValidateBookingDate(date time.Time) error {
	today := models.DateOnly(r.now())
	day := models.DateOnly(date)
	if day.Before(today) {
		return fmt.Errorf("%w: %s is in the past", ErrInvalidDate, models.DateKey(date))
	}
	if day.After(today.Add(r.rules.MaxAdvance())) {
		return fmt.Errorf("%w: %s is beyond the booking horizon", ErrInvalidDate, models.DateKey(date))
	}
	return nil
}

func (r *Resolver) requireDoctor(ctx context.Context, doctorID int64) error {
	doctor, err := r.store.GetDoctor(ctx, doctorID)
	if err != nil {
		return fmt.Errorf("load doctor: %w", err)
	}
	if doctor == nil || !doctor.IsActive {
		return fmt.Errorf("%w: id %d", ErrDoctorNotFound, doctorID)
	}
	return nil
}

func (r *Resolver) pattern(ctx context.Context, doctorID int64) (models.WeeklyPattern, error) {
	if r.cache != nil {
		if pattern, ok := r.cache.Get(ctx, doctorID); ok {
			return pattern, nil
		}
	}
	pattern, err := r.store.GetAvailability(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("load availability: %w", err)
	}
	if r.cache != nil && len(pattern) > 0 {
		r.cache.Set(ctx, doctorID, pattern)
	}
	return pattern, nil
}

func slotInPattern(pattern models.WeeklyPattern, date time.Time, start models.TimeOfDay, granularity int) bool {
	for _, s := range slots.Generate(pattern, date, granularity) {
		if s == start {
			return true
		}
	}
	return false
}
