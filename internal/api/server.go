// Package api exposes the booking core over HTTP JSON for the mobile
// clients.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"clinicbook/internal/booking"
	"clinicbook/internal/models"
)

// BookingService is the resolver surface the API consumes.
type BookingService interface {
	AvailableSlots(ctx context.Context, doctorID int64, date time.Time) ([]models.TimeOfDay, error)
	BookAppointment(ctx context.Context, doctorID, patientID int64, patientName string, date time.Time, start models.TimeOfDay, notes string) (*models.Appointment, error)
	WeeklyAvailability(ctx context.Context, doctorID int64) (models.WeeklyPattern, error)
	SaveAvailability(ctx context.Context, doctorID int64, entries models.WeeklyPattern) error
	ValidateBookingDate(date time.Time) error
}

// Directory is the account and appointment read surface.
type Directory interface {
	ListActiveDoctors(ctx context.Context) ([]models.Doctor, error)
	GetDoctor(ctx context.Context, id int64) (*models.Doctor, error)
	CreateDoctor(ctx context.Context, d *models.Doctor) error
	DeleteDoctor(ctx context.Context, id int64) error
	CreatePatient(ctx context.Context, p *models.Patient) error
	GetPatient(ctx context.Context, id int64) (*models.Patient, error)
	DeletePatient(ctx context.Context, id int64) error
	GetAppointments(ctx context.Context, doctorID int64, date time.Time) ([]models.Appointment, error)
	GetPatientAppointments(ctx context.Context, patientID int64) ([]models.Appointment, error)
	GetBookedTimes(ctx context.Context, doctorID int64, from, to time.Time) (map[string][]models.TimeOfDay, error)
}

// HTTPServer serves the booking API.
type HTTPServer struct {
	booking     BookingService
	directory   Directory
	sessions    *booking.SessionStore
	fsm         *booking.FSM
	granularity int
	limiter     *rate.Limiter
	logger      *zerolog.Logger
}

// NewHTTPServer wires the API. rps <= 0 disables rate limiting.
func NewHTTPServer(svc BookingService, directory Directory, sessions *booking.SessionStore, granularity int, rps float64, burst int, logger *zerolog.Logger) *HTTPServer {
	var limiter *rate.Limiter
	if rps > 0 {
		if burst <= 0 {
			burst = int(rps)
		}
		limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return &HTTPServer{
		booking:     svc,
		directory:   directory,
		sessions:    sessions,
		fsm:         booking.NewFSM(),
		granularity: granularity,
		limiter:     limiter,
		logger:      logger,
	}
}

// Routes returns the API handler with middleware applied.
func (s *HTTPServer) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/doctors", s.handleDoctors)
	mux.HandleFunc("/api/doctors/", s.handleDoctorSubresource)
	mux.HandleFunc("/api/patients", s.handlePatients)
	mux.HandleFunc("/api/patients/", s.handlePatientSubresource)
	mux.HandleFunc("/api/appointments", s.handleAppointments)
	mux.HandleFunc("/api/booking/", s.handleBookingSession)
	return s.withRequestID(s.withRateLimit(mux))
}

// withRequestID tags each request for log correlation.
func (s *HTTPServer) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()
		w.Header().Set("X-Request-ID", requestID)
		s.logger.Debug().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("api request")
		next.ServeHTTP(w, r)
	})
}

func (s *HTTPServer) withRateLimit(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
