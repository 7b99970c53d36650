package booking

import (
	"sync"
	"time"

	"clinicbook/internal/models"
)

// State is one step of the patient booking dialog.
type State string

const (
	StateSelectingDoctor State = "selecting_doctor"
	StateSelectingDate   State = "selecting_date"
	StateSelectingTime   State = "selecting_time"
	StateConfirming      State = "confirming"
	StateBooked          State = "booked"
)

// FSM holds the allowed transitions of the booking flow.
type FSM struct {
	transitions map[State][]State
}

// NewFSM builds the booking flow machine. Forward transitions walk the
// flow one step at a time; back transitions retreat one step; a slot
// conflict during confirmation sends the patient back to time
// selection.
func NewFSM() *FSM {
	return &FSM{
		transitions: map[State][]State{
			StateSelectingDoctor: {StateSelectingDate},
			StateSelectingDate:   {StateSelectingTime, StateSelectingDoctor},
			StateSelectingTime:   {StateConfirming, StateSelectingDate},
			StateConfirming:      {StateBooked, StateSelectingTime},
		},
	}
}

// CanTransition reports whether from -> to is allowed.
func (f *FSM) CanTransition(from, to State) bool {
	for _, next := range f.transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Draft accumulates the patient's choices through the flow.
type Draft struct {
	DoctorID    int64
	DoctorName  string
	PatientID   int64
	PatientName string
	Date        time.Time
	Start       models.TimeOfDay
	Notes       string
}

// Session is one patient's in-progress booking dialog.
type Session struct {
	PatientID int64
	State     State
	Draft     Draft
	StartedAt time.Time
	UpdatedAt time.Time

	mu sync.Mutex
}

// NewSession starts a dialog at doctor selection.
func NewSession(patientID int64) *Session {
	now := time.Now()
	return &Session{
		PatientID: patientID,
		State:     StateSelectingDoctor,
		Draft:     Draft{PatientID: patientID},
		StartedAt: now,
		UpdatedAt: now,
	}
}

// Transition moves the session to the given state if the flow allows
// it.
func (s *Session) Transition(fsm *FSM, to State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !fsm.CanTransition(s.State, to) {
		return false
	}
	s.State = to
	s.UpdatedAt = time.Now()
	return true
}

// GetState returns the current state.
func (s *Session) GetState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.State
}

// Update mutates the draft under the session lock.
func (s *Session) Update(fn func(*Draft)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.Draft)
	s.UpdatedAt = time.Now()
}

// IsExpired checks whether the session went stale.
func (s *Session) IsExpired(timeout time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.UpdatedAt) > timeout
}

// SessionStore keeps active booking dialogs per patient.
type SessionStore struct {
	sessions map[int64]*Session
	timeout  time.Duration
	mu       sync.RWMutex
}

// NewSessionStore creates a store with the given expiry.
func NewSessionStore(timeout time.Duration) *SessionStore {
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	return &SessionStore{
		sessions: make(map[int64]*Session),
		timeout:  timeout,
	}
}

// Get returns the patient's session, or nil.
func (ss *SessionStore) Get(patientID int64) *Session {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	return ss.sessions[patientID]
}

// GetOrCreate returns the live session or starts a fresh one.
func (ss *SessionStore) GetOrCreate(patientID int64) *Session {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	session, ok := ss.sessions[patientID]
	if ok && !session.IsExpired(ss.timeout) {
		return session
	}
	session = NewSession(patientID)
	ss.sessions[patientID] = session
	return session
}

// Delete drops a session, e.g. on abandon or completion.
func (ss *SessionStore) Delete(patientID int64) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	delete(ss.sessions, patientID)
}

// Cleanup removes expired sessions and returns how many were dropped.
func (ss *SessionStore) Cleanup() int {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	removed := 0
	for patientID, session := range ss.sessions {
		if session.IsExpired(ss.timeout) {
			delete(ss.sessions, patientID)
			removed++
		}
	}
	return removed
}
