package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"clinicbook/internal/booking"
	"clinicbook/internal/calendar"
	"clinicbook/internal/export"
	"clinicbook/internal/metrics"
	"clinicbook/internal/models"
	"clinicbook/internal/slots"
)

// SlotResponse is one bookable slot. The display string is derived
// here, at the boundary; time is the canonical value.
type SlotResponse struct {
	Time    string `json:"time"`    // "14:00"
	Display string `json:"display"` // "2:00 PM"
}

// AvailabilityEntryRequest is one weekday of a PUT availability body.
// Weekday names are matched case-insensitively with whitespace trimmed.
type AvailabilityEntryRequest struct {
	Weekday     string `json:"weekday"`
	WindowStart string `json:"window_start,omitempty"` // "09:00", default when empty
	WindowEnd   string `json:"window_end,omitempty"`   // "17:00", default when empty
}

// BookAppointmentRequest is the body for POST /api/appointments.
type BookAppointmentRequest struct {
	DoctorID    int64  `json:"doctor_id"`
	PatientID   int64  `json:"patient_id"`
	PatientName string `json:"patient_name,omitempty"`
	Date        string `json:"date"` // YYYY-MM-DD
	Time        string `json:"time"` // HH:MM
	Notes       string `json:"notes,omitempty"`
}

// handleDoctors serves GET (list) and POST (create) on /api/doctors.
func (s *HTTPServer) handleDoctors(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("doctors")
	switch r.Method {
	case http.MethodGet:
		doctors, err := s.directory.ListActiveDoctors(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to list doctors")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"doctors": doctors})
	case http.MethodPost:
		var d models.Doctor
		if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if d.FullName == "" || d.Email == "" {
			writeError(w, http.StatusBadRequest, "full_name and email are required")
			return
		}
		if err := s.directory.CreateDoctor(r.Context(), &d); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to create doctor")
			return
		}
		writeJSON(w, http.StatusCreated, d)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleDoctorSubresource dispatches /api/doctors/{id}[/availability|/slots|/calendar|/export].
func (s *HTTPServer) handleDoctorSubresource(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/doctors/"), "/"), "/")
	doctorID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid doctor id")
		return
	}

	if len(parts) == 1 {
		if r.Method != http.MethodDelete {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		s.deleteDoctor(w, r, doctorID)
		return
	}

	switch parts[1] {
	case "availability":
		s.handleAvailability(w, r, doctorID)
	case "slots":
		s.handleSlots(w, r, doctorID)
	case "calendar":
		s.handleCalendar(w, r, doctorID)
	case "export":
		s.handleExport(w, r, doctorID)
	default:
		writeError(w, http.StatusNotFound, "unknown resource")
	}
}

func (s *HTTPServer) deleteDoctor(w http.ResponseWriter, r *http.Request, doctorID int64) {
	metrics.IncHTTP("delete_doctor")
	doctor, err := s.directory.GetDoctor(r.Context(), doctorID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load doctor")
		return
	}
	if doctor == nil {
		writeError(w, http.StatusNotFound, "doctor not found")
		return
	}
	if err := s.directory.DeleteDoctor(r.Context(), doctorID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete doctor")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// handleAvailability serves GET and PUT on /api/doctors/{id}/availability.
// PUT replaces the whole pattern; there is no partial update.
func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request, doctorID int64) {
	metrics.IncHTTP("availability")
	switch r.Method {
	case http.MethodGet:
		pattern, err := s.booking.WeeklyAvailability(r.Context(), doctorID)
		if err != nil {
			s.writeBookingError(w, err)
			return
		}
		entries := make([]map[string]string, 0, len(pattern))
		for _, e := range pattern {
			entries = append(entries, map[string]string{
				"weekday":      e.Weekday.String(),
				"window_start": e.WindowStart.String(),
				"window_end":   e.WindowEnd.String(),
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
	case http.MethodPut:
		var req struct {
			Entries []AvailabilityEntryRequest `json:"entries"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		pattern, err := parseAvailabilityEntries(doctorID, req.Entries)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := s.booking.SaveAvailability(r.Context(), doctorID, pattern); err != nil {
			s.writeBookingError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "weekdays": len(pattern)})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleSlots serves GET /api/doctors/{id}/slots?date=YYYY-MM-DD.
func (s *HTTPServer) handleSlots(w http.ResponseWriter, r *http.Request, doctorID int64) {
	metrics.IncHTTP("slots")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	date, err := parseDateParam(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.booking.ValidateBookingDate(date); err != nil {
		s.writeBookingError(w, err)
		return
	}

	free, err := s.booking.AvailableSlots(r.Context(), doctorID, date)
	if err != nil && !errors.Is(err, booking.ErrInvalidDate) {
		s.writeBookingError(w, err)
		return
	}

	resp := map[string]any{
		"date":  models.DateKey(date),
		"slots": toSlotResponses(free),
	}
	// Weekday outside the pattern is "no availability", not a failure.
	if errors.Is(err, booking.ErrInvalidDate) {
		resp["reason"] = "doctor does not work this day"
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleCalendar serves GET /api/doctors/{id}/calendar?year=&month=.
func (s *HTTPServer) handleCalendar(w http.ResponseWriter, r *http.Request, doctorID int64) {
	metrics.IncHTTP("calendar")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	now := time.Now()
	year, month := now.Year(), now.Month()
	if y := r.URL.Query().Get("year"); y != "" {
		parsed, err := strconv.Atoi(y)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid year")
			return
		}
		year = parsed
	}
	if m := r.URL.Query().Get("month"); m != "" {
		parsed, err := strconv.Atoi(m)
		if err != nil || parsed < 1 || parsed > 12 {
			writeError(w, http.StatusBadRequest, "invalid month")
			return
		}
		month = time.Month(parsed)
	}

	pattern, err := s.booking.WeeklyAvailability(r.Context(), doctorID)
	if err != nil {
		s.writeBookingError(w, err)
		return
	}

	first, last := calendar.MonthRange(year, month)
	booked, err := s.directory.GetBookedTimes(r.Context(), doctorID, first, last)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load bookings")
		return
	}

	grid := calendar.BuildMonth(year, month, pattern, booked, s.granularity, now)
	writeJSON(w, http.StatusOK, grid)
}

// handleExport serves GET /api/doctors/{id}/export?date=YYYY-MM-DD as
// an .xlsx download.
func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request, doctorID int64) {
	metrics.IncHTTP("export")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	date, err := parseDateParam(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	doctor, err := s.directory.GetDoctor(r.Context(), doctorID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load doctor")
		return
	}
	if doctor == nil {
		writeError(w, http.StatusNotFound, "doctor not found")
		return
	}

	pattern, err := s.booking.WeeklyAvailability(r.Context(), doctorID)
	if err != nil {
		s.writeBookingError(w, err)
		return
	}
	appts, err := s.directory.GetAppointments(r.Context(), doctorID, date)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load appointments")
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=schedule_%d_%s.xlsx", doctorID, models.DateKey(date)))
	if err := export.WriteDaySchedule(w, export.DaySchedule{
		Doctor:       *doctor,
		Date:         models.DateKey(date),
		Slots:        slots.Generate(pattern, date, s.granularity),
		Appointments: appts,
	}); err != nil {
		s.logger.Error().Err(err).Int64("doctor_id", doctorID).Msg("schedule export failed")
	}
}

// handlePatients serves POST /api/patients.
func (s *HTTPServer) handlePatients(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("patients")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var p models.Patient
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if p.FullName == "" || p.Email == "" {
		writeError(w, http.StatusBadRequest, "full_name and email are required")
		return
	}
	if err := s.directory.CreatePatient(r.Context(), &p); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create patient")
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// handlePatientSubresource dispatches /api/patients/{id}[/appointments].
func (s *HTTPServer) handlePatientSubresource(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/patients/"), "/"), "/")
	patientID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid patient id")
		return
	}

	if len(parts) == 1 {
		if r.Method != http.MethodDelete {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		metrics.IncHTTP("delete_patient")
		patient, err := s.directory.GetPatient(r.Context(), patientID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to load patient")
			return
		}
		if patient == nil {
			writeError(w, http.StatusNotFound, "patient not found")
			return
		}
		if err := s.directory.DeletePatient(r.Context(), patientID); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to delete patient")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
		return
	}

	if parts[1] != "appointments" || r.Method != http.MethodGet {
		writeError(w, http.StatusNotFound, "unknown resource")
		return
	}
	metrics.IncHTTP("patient_appointments")
	appts, err := s.directory.GetPatientAppointments(r.Context(), patientID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load appointments")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": appts})
}

// handleAppointments serves POST (book) and GET (list by doctor+date)
// on /api/appointments.
func (s *HTTPServer) handleAppointments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.bookAppointment(w, r)
	case http.MethodGet:
		s.listAppointments(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) bookAppointment(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("book_appointment")

	var req BookAppointmentRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.DoctorID == 0 || req.PatientID == 0 {
		writeError(w, http.StatusBadRequest, "doctor_id and patient_id are required")
		return
	}

	date, err := parseDateParam(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	start, err := models.ParseTimeOfDay(req.Time)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid time format; expected HH:MM")
		return
	}

	appt, err := s.booking.BookAppointment(r.Context(), req.DoctorID, req.PatientID, req.PatientName, date, start, req.Notes)
	if err != nil {
		s.writeBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, appt)
}

func (s *HTTPServer) listAppointments(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("appointments")

	doctorID, err := strconv.ParseInt(r.URL.Query().Get("doctor_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "doctor_id is required")
		return
	}
	date, err := parseDateParam(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	appts, err := s.directory.GetAppointments(r.Context(), doctorID, date)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load appointments")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": appts})
}

// writeBookingError maps resolver errors to HTTP statuses. A slot
// conflict is 409 so the client knows to re-fetch availability and
// re-prompt.
func (s *HTTPServer) writeBookingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrSlotConflict):
		writeError(w, http.StatusConflict, "slot already booked; refresh availability and pick another time")
	case errors.Is(err, booking.ErrInvalidDate):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, booking.ErrDoctorNotFound), errors.Is(err, booking.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		s.logger.Error().Err(err).Msg("booking operation failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func parseDateParam(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("date is required")
	}
	date, err := time.ParseInLocation("2006-01-02", s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date format; expected YYYY-MM-DD")
	}
	return date, nil
}

func parseAvailabilityEntries(doctorID int64, reqs []AvailabilityEntryRequest) (models.WeeklyPattern, error) {
	var pattern models.WeeklyPattern
	seen := make(map[time.Weekday]bool)
	for _, req := range reqs {
		weekday, err := models.ParseWeekday(req.Weekday)
		if err != nil {
			return nil, err
		}
		if seen[weekday] {
			return nil, fmt.Errorf("duplicate weekday: %s", weekday)
		}
		seen[weekday] = true

		entry := models.AvailabilityEntry{
			DoctorID:    doctorID,
			Weekday:     weekday,
			WindowStart: models.DefaultWindowStart,
			WindowEnd:   models.DefaultWindowEnd,
		}
		if req.WindowStart != "" {
			if entry.WindowStart, err = models.ParseTimeOfDay(req.WindowStart); err != nil {
				return nil, fmt.Errorf("window_start for %s: %w", weekday, err)
			}
		}
		if req.WindowEnd != "" {
			if entry.WindowEnd, err = models.ParseTimeOfDay(req.WindowEnd); err != nil {
				return nil, fmt.Errorf("window_end for %s: %w", weekday, err)
			}
		}
		if err := entry.Validate(); err != nil {
			return nil, err
		}
		pattern = append(pattern, entry)
	}
	return pattern, nil
}

func toSlotResponses(free []models.TimeOfDay) []SlotResponse {
	out := make([]SlotResponse, 0, len(free))
	for _, t := range free {
		out = append(out, SlotResponse{Time: t.String(), Display: t.Display()})
	}
	return out
}
