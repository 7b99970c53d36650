package booking

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"clinicbook/internal/database"
	"clinicbook/internal/models"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) GetDoctor(ctx context.Context, id int64) (*models.Doctor, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Doctor), args.Error(1)
}

func (m *mockStore) GetPatient(ctx context.Context, id int64) (*models.Patient, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Patient), args.Error(1)
}

func (m *mockStore) GetAvailability(ctx context.Context, doctorID int64) (models.WeeklyPattern, error) {
	args := m.Called(ctx, doctorID)
	return args.Get(0).(models.WeeklyPattern), args.Error(1)
}

func (m *mockStore) ReplaceAvailability(ctx context.Context, doctorID int64, entries models.WeeklyPattern) error {
	return m.Called(ctx, doctorID, entries).Error(0)
}

func (m *mockStore) GetAppointments(ctx context.Context, doctorID int64, date time.Time) ([]models.Appointment, error) {
	args := m.Called(ctx, doctorID, date)
	return args.Get(0).([]models.Appointment), args.Error(1)
}

func (m *mockStore) InsertAppointmentIfAbsent(ctx context.Context, appt *models.Appointment) (*models.Appointment, error) {
	args := m.Called(ctx, appt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Appointment), args.Error(1)
}

type recordingCache struct {
	patterns    map[int64]models.WeeklyPattern
	invalidated []int64
}

func newRecordingCache() *recordingCache {
	return &recordingCache{patterns: make(map[int64]models.WeeklyPattern)}
}

func (c *recordingCache) Get(_ context.Context, doctorID int64) (models.WeeklyPattern, bool) {
	p, ok := c.patterns[doctorID]
	return p, ok
}

func (c *recordingCache) Set(_ context.Context, doctorID int64, pattern models.WeeklyPattern) {
	c.patterns[doctorID] = pattern
}

func (c *recordingCache) Invalidate(_ context.Context, doctorID int64) {
	delete(c.patterns, doctorID)
	c.invalidated = append(c.invalidated, doctorID)
}

var (
	// 2026-09-01 is a Tuesday; 2026-09-07 a Monday.
	testNow     = time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	testMonday  = time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)
	testTuesday = time.Date(2026, 9, 8, 0, 0, 0, 0, time.UTC)
)

func testPattern() models.WeeklyPattern {
	return models.WeeklyPattern{
		{DoctorID: 1, Weekday: time.Monday, WindowStart: models.NewTimeOfDay(9, 0), WindowEnd: models.NewTimeOfDay(17, 0)},
		{DoctorID: 1, Weekday: time.Wednesday, WindowStart: models.NewTimeOfDay(9, 0), WindowEnd: models.NewTimeOfDay(17, 0)},
	}
}

func newTestResolver(store Store, cache PatternCache) *Resolver {
	logger := zerolog.New(io.Discard)
	r := NewResolver(store, cache, Rules{MaxAdvanceDays: 30}, &logger)
	r.now = func() time.Time { return testNow }
	return r
}

func activeDoctor() *models.Doctor {
	return &models.Doctor{ID: 1, FullName: "Dr. Grey", IsActive: true}
}

func TestAvailableSlots(t *testing.T) {
	ctx := context.Background()

	t.Run("weekday outside pattern is invalid date", func(t *testing.T) {
		store := new(mockStore)
		store.On("GetDoctor", ctx, int64(1)).Return(activeDoctor(), nil)
		store.On("GetAvailability", ctx, int64(1)).Return(testPattern(), nil)

		r := newTestResolver(store, nil)
		slots, err := r.AvailableSlots(ctx, 1, testTuesday)
		assert.ErrorIs(t, err, ErrInvalidDate)
		assert.Empty(t, slots)
	})

	t.Run("booked slot is excluded", func(t *testing.T) {
		store := new(mockStore)
		store.On("GetDoctor", ctx, int64(1)).Return(activeDoctor(), nil)
		store.On("GetAvailability", ctx, int64(1)).Return(testPattern(), nil)
		store.On("GetAppointments", ctx, int64(1), testMonday).Return([]models.Appointment{
			{DoctorID: 1, Date: testMonday, Start: models.NewTimeOfDay(9, 0)},
		}, nil)

		r := newTestResolver(store, nil)
		slots, err := r.AvailableSlots(ctx, 1, testMonday)
		require.NoError(t, err)
		require.Len(t, slots, 8)
		assert.Equal(t, models.NewTimeOfDay(10, 0), slots[0])
		assert.Equal(t, models.NewTimeOfDay(17, 0), slots[len(slots)-1])
	})

	t.Run("idempotent without intervening booking", func(t *testing.T) {
		store := new(mockStore)
		store.On("GetDoctor", ctx, int64(1)).Return(activeDoctor(), nil)
		store.On("GetAvailability", ctx, int64(1)).Return(testPattern(), nil)
		store.On("GetAppointments", ctx, int64(1), testMonday).Return([]models.Appointment{}, nil)

		r := newTestResolver(store, nil)
		first, err := r.AvailableSlots(ctx, 1, testMonday)
		require.NoError(t, err)
		second, err := r.AvailableSlots(ctx, 1, testMonday)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("unknown doctor", func(t *testing.T) {
		store := new(mockStore)
		store.On("GetDoctor", ctx, int64(99)).Return(nil, nil)

		r := newTestResolver(store, nil)
		_, err := r.AvailableSlots(ctx, 99, testMonday)
		assert.ErrorIs(t, err, ErrDoctorNotFound)
	})
}

func TestBookAppointment(t *testing.T) {
	ctx := context.Background()
	patient := &models.Patient{ID: 7, FullName: "Ann Lee"}

	t.Run("success inserts exactly one appointment", func(t *testing.T) {
		store := new(mockStore)
		store.On("GetDoctor", ctx, int64(1)).Return(activeDoctor(), nil)
		store.On("GetPatient", ctx, int64(7)).Return(patient, nil)
		store.On("GetAvailability", ctx, int64(1)).Return(testPattern(), nil)
		store.On("InsertAppointmentIfAbsent", ctx, mock.MatchedBy(func(a *models.Appointment) bool {
			return a.DoctorID == 1 && a.PatientID == 7 && a.Start == models.NewTimeOfDay(10, 0)
		})).Return(&models.Appointment{
			ID: 42, DoctorID: 1, PatientID: 7, PatientName: "Ann Lee",
			Date: testMonday, Start: models.NewTimeOfDay(10, 0),
		}, nil).Once()

		r := newTestResolver(store, nil)
		appt, err := r.BookAppointment(ctx, 1, 7, "", testMonday, models.NewTimeOfDay(10, 0), "checkup")
		require.NoError(t, err)
		assert.Equal(t, int64(42), appt.ID)
		assert.Equal(t, "Ann Lee", appt.PatientName)
		store.AssertExpectations(t)
	})

	t.Run("slot race surfaces as conflict", func(t *testing.T) {
		store := new(mockStore)
		store.On("GetDoctor", ctx, int64(1)).Return(activeDoctor(), nil)
		store.On("GetPatient", ctx, int64(7)).Return(patient, nil)
		store.On("GetAvailability", ctx, int64(1)).Return(testPattern(), nil)
		store.On("InsertAppointmentIfAbsent", ctx, mock.Anything).Return(nil, database.ErrSlotTaken)

		r := newTestResolver(store, nil)
		_, err := r.BookAppointment(ctx, 1, 7, "", testMonday, models.NewTimeOfDay(10, 0), "")
		assert.ErrorIs(t, err, ErrSlotConflict)
	})

	t.Run("time outside generated slots is invalid", func(t *testing.T) {
		store := new(mockStore)
		store.On("GetDoctor", ctx, int64(1)).Return(activeDoctor(), nil)
		store.On("GetPatient", ctx, int64(7)).Return(patient, nil)
		store.On("GetAvailability", ctx, int64(1)).Return(testPattern(), nil)

		r := newTestResolver(store, nil)
		_, err := r.BookAppointment(ctx, 1, 7, "", testMonday, models.NewTimeOfDay(8, 0), "")
		assert.ErrorIs(t, err, ErrInvalidDate)
		store.AssertNotCalled(t, "InsertAppointmentIfAbsent", ctx, mock.Anything)
	})

	t.Run("weekday outside pattern is invalid", func(t *testing.T) {
		store := new(mockStore)
		store.On("GetDoctor", ctx, int64(1)).Return(activeDoctor(), nil)
		store.On("GetPatient", ctx, int64(7)).Return(patient, nil)
		store.On("GetAvailability", ctx, int64(1)).Return(testPattern(), nil)

		r := newTestResolver(store, nil)
		_, err := r.BookAppointment(ctx, 1, 7, "", testTuesday, models.NewTimeOfDay(10, 0), "")
		assert.ErrorIs(t, err, ErrInvalidDate)
	})

	t.Run("unknown patient", func(t *testing.T) {
		store := new(mockStore)
		store.On("GetDoctor", ctx, int64(1)).Return(activeDoctor(), nil)
		store.On("GetPatient", ctx, int64(7)).Return(nil, nil)

		r := newTestResolver(store, nil)
		_, err := r.BookAppointment(ctx, 1, 7, "", testMonday, models.NewTimeOfDay(10, 0), "")
		assert.ErrorIs(t, err, ErrPatientNotFound)
	})

	t.Run("past date refused before any lookup", func(t *testing.T) {
		store := new(mockStore)
		r := newTestResolver(store, nil)
		_, err := r.BookAppointment(ctx, 1, 7, "", testNow.AddDate(0, 0, -1), models.NewTimeOfDay(10, 0), "")
		assert.ErrorIs(t, err, ErrInvalidDate)
		store.AssertNotCalled(t, "GetDoctor", ctx, mock.Anything)
	})
}

func TestBookedSlotDisappears(t *testing.T) {
	ctx := context.Background()
	store := new(mockStore)
	store.On("GetDoctor", ctx, int64(1)).Return(activeDoctor(), nil)
	store.On("GetAvailability", ctx, int64(1)).Return(testPattern(), nil)

	// Before booking: all 9 slots free.
	store.On("GetAppointments", ctx, int64(1), testMonday).Return([]models.Appointment{}, nil).Once()
	// After booking: 10:00 taken.
	store.On("GetAppointments", ctx, int64(1), testMonday).Return([]models.Appointment{
		{DoctorID: 1, Date: testMonday, Start: models.NewTimeOfDay(10, 0)},
	}, nil).Once()

	r := newTestResolver(store, nil)

	before, err := r.AvailableSlots(ctx, 1, testMonday)
	require.NoError(t, err)
	assert.Contains(t, before, models.NewTimeOfDay(10, 0))

	after, err := r.AvailableSlots(ctx, 1, testMonday)
	require.NoError(t, err)
	assert.NotContains(t, after, models.NewTimeOfDay(10, 0))
	assert.Len(t, after, len(before)-1)
}

func TestValidateBookingDate(t *testing.T) {
	r := newTestResolver(new(mockStore), nil)

	assert.ErrorIs(t, r.ValidateBookingDate(testNow.AddDate(0, 0, -1)), ErrInvalidDate)
	assert.ErrorIs(t, r.ValidateBookingDate(testNow.AddDate(0, 0, 31)), ErrInvalidDate)
	assert.NoError(t, r.ValidateBookingDate(testNow.AddDate(0, 0, 5)))
	// Same-day booking stays allowed.
	assert.NoError(t, r.ValidateBookingDate(testNow))
}

func TestSaveAvailabilityInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	store := new(mockStore)
	store.On("GetDoctor", ctx, int64(1)).Return(activeDoctor(), nil)
	store.On("ReplaceAvailability", ctx, int64(1), mock.Anything).Return(nil)

	cache := newRecordingCache()
	cache.Set(ctx, 1, testPattern())

	r := newTestResolver(store, cache)
	require.NoError(t, r.SaveAvailability(ctx, 1, testPattern()))
	assert.Equal(t, []int64{1}, cache.invalidated)
}

func TestPatternServedFromCache(t *testing.T) {
	ctx := context.Background()
	store := new(mockStore)
	store.On("GetDoctor", ctx, int64(1)).Return(activeDoctor(), nil)

	cache := newRecordingCache()
	cache.Set(ctx, 1, testPattern())

	r := newTestResolver(store, cache)
	pattern, err := r.WeeklyAvailability(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, pattern, 2)
	store.AssertNotCalled(t, "GetAvailability", ctx, mock.Anything)
}
