package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"clinicbook/internal/booking"
	"clinicbook/internal/metrics"
	"clinicbook/internal/models"
)

// handleBookingSession drives the step-by-step booking dialog.
// POST /api/booking/{patientID} starts a session; the doctor, date,
// time and confirm actions walk the flow forward; back retreats one
// step. A slot conflict on confirm sends the session back to time
// selection with the rest of the draft intact.
func (s *HTTPServer) handleBookingSession(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("booking_session")

	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/booking/"), "/"), "/")
	patientID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid patient id")
		return
	}

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodPost:
			s.startBookingSession(w, r, patientID)
		case http.MethodGet:
			session := s.sessions.Get(patientID)
			if session == nil {
				writeError(w, http.StatusNotFound, "no active booking session")
				return
			}
			writeJSON(w, http.StatusOK, sessionResponse(session))
		case http.MethodDelete:
			s.sessions.Delete(patientID)
			writeJSON(w, http.StatusOK, map[string]any{"success": true})
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
		return
	}

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	session := s.sessions.Get(patientID)
	if session == nil {
		writeError(w, http.StatusNotFound, "no active booking session")
		return
	}

	switch parts[1] {
	case "doctor":
		s.sessionSelectDoctor(w, r, session)
	case "date":
		s.sessionSelectDate(w, r, session)
	case "time":
		s.sessionSelectTime(w, r, session)
	case "confirm":
		s.sessionConfirm(w, r, session)
	case "back":
		s.sessionBack(w, session)
	default:
		writeError(w, http.StatusNotFound, "unknown action")
	}
}

func (s *HTTPServer) startBookingSession(w http.ResponseWriter, r *http.Request, patientID int64) {
	patient, err := s.directory.GetPatient(r.Context(), patientID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load patient")
		return
	}
	if patient == nil {
		writeError(w, http.StatusNotFound, "patient not found")
		return
	}

	session := s.sessions.GetOrCreate(patientID)
	session.Update(func(d *booking.Draft) {
		d.PatientName = patient.FullName
	})
	writeJSON(w, http.StatusCreated, sessionResponse(session))
}

func (s *HTTPServer) sessionSelectDoctor(w http.ResponseWriter, r *http.Request, session *booking.Session) {
	var req struct {
		DoctorID int64 `json:"doctor_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	doctor, err := s.directory.GetDoctor(r.Context(), req.DoctorID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load doctor")
		return
	}
	if doctor == nil {
		writeError(w, http.StatusNotFound, "doctor not found")
		return
	}

	if !session.Transition(s.fsm, booking.StateSelectingDate) {
		writeError(w, http.StatusConflict, "doctor selection is not the next step")
		return
	}
	session.Update(func(d *booking.Draft) {
		d.DoctorID = doctor.ID
		d.DoctorName = doctor.FullName
	})
	writeJSON(w, http.StatusOK, sessionResponse(session))
}

func (s *HTTPServer) sessionSelectDate(w http.ResponseWriter, r *http.Request, session *booking.Session) {
	var req struct {
		Date string `json:"date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	date, err := parseDateParam(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.booking.ValidateBookingDate(date); err != nil {
		s.writeBookingError(w, err)
		return
	}

	if !session.Transition(s.fsm, booking.StateSelectingTime) {
		writeError(w, http.StatusConflict, "date selection is not the next step")
		return
	}
	session.Update(func(d *booking.Draft) {
		d.Date = date
	})
	writeJSON(w, http.StatusOK, sessionResponse(session))
}

func (s *HTTPServer) sessionSelectTime(w http.ResponseWriter, r *http.Request, session *booking.Session) {
	var req struct {
		Time string `json:"time"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	start, err := models.ParseTimeOfDay(req.Time)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid time format; expected HH:MM")
		return
	}

	if !session.Transition(s.fsm, booking.StateConfirming) {
		writeError(w, http.StatusConflict, "time selection is not the next step")
		return
	}
	session.Update(func(d *booking.Draft) {
		d.Start = start
	})
	writeJSON(w, http.StatusOK, sessionResponse(session))
}

func (s *HTTPServer) sessionConfirm(w http.ResponseWriter, r *http.Request, session *booking.Session) {
	var req struct {
		Notes string `json:"notes"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req) // body is optional

	if session.GetState() != booking.StateConfirming {
		writeError(w, http.StatusConflict, "nothing to confirm")
		return
	}

	var draft booking.Draft
	session.Update(func(d *booking.Draft) {
		if req.Notes != "" {
			d.Notes = req.Notes
		}
		draft = *d
	})

	appt, err := s.booking.BookAppointment(r.Context(), draft.DoctorID, session.PatientID,
		draft.PatientName, draft.Date, draft.Start, draft.Notes)
	if err != nil {
		// The losing side of a slot race goes back to time selection
		// with the rest of the draft intact.
		if errors.Is(err, booking.ErrSlotConflict) {
			session.Transition(s.fsm, booking.StateSelectingTime)
		}
		s.writeBookingError(w, err)
		return
	}

	session.Transition(s.fsm, booking.StateBooked)
	s.sessions.Delete(session.PatientID)
	writeJSON(w, http.StatusCreated, appt)
}

func (s *HTTPServer) sessionBack(w http.ResponseWriter, session *booking.Session) {
	previous := map[booking.State]booking.State{
		booking.StateSelectingDate: booking.StateSelectingDoctor,
		booking.StateSelectingTime: booking.StateSelectingDate,
		booking.StateConfirming:    booking.StateSelectingTime,
	}
	to, ok := previous[session.GetState()]
	if !ok || !session.Transition(s.fsm, to) {
		writeError(w, http.StatusConflict, "cannot go back from here")
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse(session))
}

func sessionResponse(session *booking.Session) map[string]any {
	var draft booking.Draft
	session.Update(func(d *booking.Draft) {
		draft = *d
	})

	resp := map[string]any{
		"patient_id": session.PatientID,
		"state":      string(session.GetState()),
	}
	if draft.DoctorID != 0 {
		resp["doctor_id"] = draft.DoctorID
		resp["doctor_name"] = draft.DoctorName
	}
	if !draft.Date.IsZero() {
		resp["date"] = models.DateKey(draft.Date)
	}
	if draft.Start != 0 {
		resp["time"] = draft.Start.String()
	}
	return resp
}
