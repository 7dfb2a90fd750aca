package appointment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/vetclinic-scheduling/internal/config"
	"github.com/hackgods/vetclinic-scheduling/internal/schedule"
)

// Monday 2025-06-09 08:00 UTC
var monday8am = time.Date(2025, 6, 9, 8, 0, 0, 0, time.UTC)

var (
	june9  = time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC)
	june10 = time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
)

type fixture struct {
	repo     *memRepository
	notifier *recordingNotifier
	svc      *Service
	logs     *test.Hook
	client   Client
	pet      Pet
	vet      Staff
}

func weekdays(hours string) []string {
	days := []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"}
	out := make([]string, 0, len(days))
	for _, d := range days {
		out = append(out, d+" "+hours)
	}
	return out
}

func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	repo := newMemRepository()
	notifier := &recordingNotifier{}
	svc := NewService(repo, nil, notifier, config.Default(), logger)
	svc.now = func() time.Time { return now }

	client := repo.addClient("Dana Whitfield", "dana@example.com")
	email := "vet@example.com"
	f := &fixture{
		repo:     repo,
		notifier: notifier,
		svc:      svc,
		logs:     hook,
		client:   client,
		pet:      repo.addPet(client.ID, "Biscuit"),
		vet: repo.addStaff(Staff{
			Name:         "Dr. Ortiz",
			Email:        &email,
			Role:         RoleVeterinarian,
			Active:       true,
			Availability: weekdays("09:00-17:00"),
		}),
	}
	return f
}

func (f *fixture) request(date time.Time, at string, duration int) BookingRequest {
	return BookingRequest{
		ClientID:        f.client.ID,
		PetID:           f.pet.ID,
		StaffID:         f.vet.ID,
		Date:            date,
		Time:            at,
		DurationMinutes: duration,
		Type:            "CHECKUP",
		Reason:          "annual checkup",
	}
}

func TestCreateAppointment(t *testing.T) {
	f := newFixture(t, monday8am)

	appt, err := f.svc.CreateAppointment(context.Background(), f.request(june10, "2:00 PM", 0))
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, appt.ID)
	assert.Equal(t, StatusScheduled, appt.Status)
	assert.Equal(t, SourceClient, appt.Source)
	assert.Equal(t, TypeCheckup, appt.Type)
	assert.Equal(t, 30, appt.DurationMinutes, "type default duration")
	assert.True(t, appt.Date.Equal(june10))
	require.NotNil(t, appt.Cost)
	assert.Equal(t, 50.0, *appt.Cost)
	assert.False(t, appt.IsEmergency)
	assert.Contains(t, f.repo.eventTypes(), EventAppointmentCreated)
	assert.Zero(t, f.notifier.total(), "ordinary bookings send nothing")
}

func TestCreateAppointment_DoubleBooking(t *testing.T) {
	f := newFixture(t, monday8am)
	ctx := context.Background()

	_, err := f.svc.CreateAppointment(ctx, f.request(june10, "2:00 PM", 30))
	require.NoError(t, err)

	_, err = f.svc.CreateAppointment(ctx, f.request(june10, "2:15 PM", 30))
	require.ErrorIs(t, err, ErrConflict)
	var conflict *ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "2:00 PM", conflict.Time)
	assert.Equal(t, 30, conflict.DurationMinutes)

	_, err = f.svc.CreateAppointment(ctx, f.request(june10, "2:30 PM", 30))
	require.NoError(t, err)
}

func TestCreateAppointment_LongerExistingBlocksLaterStart(t *testing.T) {
	f := newFixture(t, monday8am)
	f.repo.seedAppointment(Appointment{StaffID: f.vet.ID, Date: june10, Time: "1:00 PM", DurationMinutes: 120, Type: TypeSurgery})

	_, err := f.svc.CreateAppointment(context.Background(), f.request(june10, "2:30 PM", 30))
	require.ErrorIs(t, err, ErrConflict)

	_, err = f.svc.CreateAppointment(context.Background(), f.request(june10, "3:00 PM", 30))
	require.NoError(t, err)
}

func TestCreateAppointment_InactiveAppointmentsDoNotBlock(t *testing.T) {
	f := newFixture(t, monday8am)
	f.repo.seedAppointment(Appointment{StaffID: f.vet.ID, Date: june10, Time: "2:00 PM", DurationMinutes: 30, Status: StatusCancelled})
	f.repo.seedAppointment(Appointment{StaffID: f.vet.ID, Date: june10, Time: "3:00 PM", DurationMinutes: 30, Status: StatusNoShow})

	_, err := f.svc.CreateAppointment(context.Background(), f.request(june10, "2:00 PM", 30))
	require.NoError(t, err)
	_, err = f.svc.CreateAppointment(context.Background(), f.request(june10, "3:00 PM", 30))
	require.NoError(t, err)
}

func TestCreateAppointment_UniquenessBackstop(t *testing.T) {
	f := newFixture(t, monday8am)

	// A concurrent writer lands the same slot between the pre-check and the insert.
	f.repo.beforeCreate = func() {
		f.repo.beforeCreate = nil
		f.repo.seedAppointment(Appointment{StaffID: f.vet.ID, Date: june10, Time: "2:00 PM", DurationMinutes: 30})
	}

	_, err := f.svc.CreateAppointment(context.Background(), f.request(june10, "2:00 PM", 30))
	require.ErrorIs(t, err, ErrConflict)
	var conflict *ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "2:00 PM", conflict.Time)
	assert.Equal(t, 1, f.repo.count())
}

func TestCreateAppointment_PastDate(t *testing.T) {
	f := newFixture(t, monday8am)

	for _, at := range []string{"9:00 AM", "11:30 PM", "12:00 AM"} {
		_, err := f.svc.CreateAppointment(context.Background(), f.request(june9.AddDate(0, 0, -7), at, 30))
		require.ErrorIs(t, err, ErrValidation, at)
		var verr *ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, "date", verr.Field)
	}
	assert.Zero(t, f.repo.count())
}

func TestCreateAppointment_TodayIsBookable(t *testing.T) {
	f := newFixture(t, monday8am)

	// date-only comparison: today is fine regardless of the requested time
	_, err := f.svc.CreateAppointment(context.Background(), f.request(june9, "9:00 AM", 30))
	require.NoError(t, err)
}

func TestCreateAppointment_Validation(t *testing.T) {
	f := newFixture(t, monday8am)

	stranger := f.repo.addClient("Someone Else", "")
	inactive := f.repo.addStaff(Staff{Name: "Dr. Gone", Role: RoleVeterinarian, Active: false, Availability: weekdays("09:00-17:00")})
	secretary := f.repo.addStaff(Staff{Name: "Sam Desk", Role: RoleSecretary, Active: true, Availability: weekdays("09:00-17:00")})

	tests := []struct {
		name   string
		mutate func(r *BookingRequest)
		field  string
	}{
		{name: "missing client", mutate: func(r *BookingRequest) { r.ClientID = uuid.Nil }, field: "client_id"},
		{name: "missing pet", mutate: func(r *BookingRequest) { r.PetID = uuid.Nil }, field: "pet_id"},
		{name: "missing staff", mutate: func(r *BookingRequest) { r.StaffID = uuid.Nil }, field: "staff_id"},
		{name: "unknown type", mutate: func(r *BookingRequest) { r.Type = "HAIRCUT" }, field: "type"},
		{name: "emergency type", mutate: func(r *BookingRequest) { r.Type = "EMERGENCY_CARE" }, field: "type"},
		{name: "too short", mutate: func(r *BookingRequest) { r.DurationMinutes = 10 }, field: "duration"},
		{name: "too long", mutate: func(r *BookingRequest) { r.DurationMinutes = 250 }, field: "duration"},
		{name: "duration not offered", mutate: func(r *BookingRequest) { r.DurationMinutes = 15 }, field: "duration"},
		{name: "24h time", mutate: func(r *BookingRequest) { r.Time = "14:00" }, field: "time"},
		{name: "padded time", mutate: func(r *BookingRequest) { r.Time = "02:00 PM" }, field: "time"},
		{name: "empty reason", mutate: func(r *BookingRequest) { r.Reason = "   " }, field: "reason"},
		{name: "pet of another client", mutate: func(r *BookingRequest) { r.ClientID = stranger.ID }, field: "pet_id"},
		{name: "inactive staff", mutate: func(r *BookingRequest) { r.StaffID = inactive.ID }, field: "staff_id"},
		{name: "not a vet", mutate: func(r *BookingRequest) { r.StaffID = secretary.ID }, field: "staff_id"},
		{name: "ends after hours", mutate: func(r *BookingRequest) { r.Time = "4:45 PM" }, field: "time"},
		{name: "before hours", mutate: func(r *BookingRequest) { r.Time = "8:30 AM" }, field: "time"},
		{name: "day off", mutate: func(r *BookingRequest) { r.Date = june9.AddDate(0, 0, 5) }, field: "date"},
		{name: "chatbot cannot claim emergency", mutate: func(r *BookingRequest) { r.Source = SourceEmergency }, field: "source"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := f.request(june10, "2:00 PM", 30)
			tt.mutate(&req)

			_, err := f.svc.CreateAppointment(context.Background(), req)
			require.ErrorIs(t, err, ErrValidation)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
		})
	}
	assert.Zero(t, f.repo.count())
}

func TestCreateAppointment_NotFound(t *testing.T) {
	f := newFixture(t, monday8am)

	req := f.request(june10, "2:00 PM", 30)
	req.StaffID = uuid.New()
	_, err := f.svc.CreateAppointment(context.Background(), req)
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, err, ErrStaffNotFound)

	req = f.request(june10, "2:00 PM", 30)
	req.PetID = uuid.New()
	_, err = f.svc.CreateAppointment(context.Background(), req)
	require.ErrorIs(t, err, ErrPetNotFound)
}

func TestCreateAppointment_StorageFailureIsNotAConflict(t *testing.T) {
	f := newFixture(t, monday8am)
	f.repo.failFind = errors.New("connection reset")

	_, err := f.svc.CreateAppointment(context.Background(), f.request(june10, "2:00 PM", 30))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrConflict)
	assert.NotErrorIs(t, err, ErrValidation)
}

func TestAvailableSlots(t *testing.T) {
	f := newFixture(t, monday8am)
	f.repo.seedAppointment(Appointment{StaffID: f.vet.ID, Date: june10, Time: "10:00 AM", DurationMinutes: 30})

	slots, err := f.svc.AvailableSlots(context.Background(), f.vet.ID, june10, 30)
	require.NoError(t, err)
	assert.Equal(t, "9:00 AM", slots[0])
	assert.Equal(t, "4:30 PM", slots[len(slots)-1])
	assert.Contains(t, slots, "9:30 AM")
	assert.Contains(t, slots, "10:30 AM")
	assert.NotContains(t, slots, "10:00 AM")
}

func TestAvailableSlots_SkipsPastTimesToday(t *testing.T) {
	f := newFixture(t, time.Date(2025, 6, 9, 10, 10, 0, 0, time.UTC))

	slots, err := f.svc.AvailableSlots(context.Background(), f.vet.ID, june9, 60)
	require.NoError(t, err)
	require.NotEmpty(t, slots)
	assert.Equal(t, "10:30 AM", slots[0])
	assert.Equal(t, "4:00 PM", slots[len(slots)-1])
}

func TestAvailableSlots_Empty(t *testing.T) {
	f := newFixture(t, monday8am)
	ctx := context.Background()

	slots, err := f.svc.AvailableSlots(ctx, f.vet.ID, june9.AddDate(0, 0, 5), 30)
	require.NoError(t, err)
	assert.Empty(t, slots, "saturday is not in the availability list")

	slots, err = f.svc.AvailableSlots(ctx, f.vet.ID, june9.AddDate(0, 0, -1), 30)
	require.NoError(t, err)
	assert.Empty(t, slots, "past dates have no slots")

	_, err = f.svc.AvailableSlots(ctx, f.vet.ID, june10, 300)
	require.ErrorIs(t, err, ErrValidation)
}

func TestAvailableSlots_ChangingDurationChangesAnswer(t *testing.T) {
	f := newFixture(t, monday8am)
	f.repo.seedAppointment(Appointment{StaffID: f.vet.ID, Date: june10, Time: "10:00 AM", DurationMinutes: 30})

	short, err := f.svc.AvailableSlots(context.Background(), f.vet.ID, june10, 30)
	require.NoError(t, err)
	long, err := f.svc.AvailableSlots(context.Background(), f.vet.ID, june10, 60)
	require.NoError(t, err)

	assert.Contains(t, short, "9:30 AM")
	assert.NotContains(t, long, "9:30 AM", "a 60 minute visit at 9:30 would run into 10:00")
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to AppointmentStatus
		want     bool
	}{
		{StatusScheduled, StatusConfirmed, true},
		{StatusConfirmed, StatusInProgress, true},
		{StatusInProgress, StatusCompleted, true},
		{StatusScheduled, StatusCancelled, true},
		{StatusConfirmed, StatusCancelled, true},
		{StatusScheduled, StatusNoShow, true},
		{StatusConfirmed, StatusNoShow, true},
		{StatusScheduled, StatusInProgress, false},
		{StatusInProgress, StatusCancelled, false},
		{StatusCancelled, StatusScheduled, false},
		{StatusNoShow, StatusConfirmed, false},
		{StatusCompleted, StatusInProgress, false},
		{StatusCompleted, StatusCancelled, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestTransitionStatus(t *testing.T) {
	f := newFixture(t, monday8am)
	ctx := context.Background()

	appt, err := f.svc.CreateAppointment(ctx, f.request(june10, "2:00 PM", 30))
	require.NoError(t, err)

	for _, to := range []AppointmentStatus{StatusConfirmed, StatusInProgress, StatusCompleted} {
		updated, err := f.svc.TransitionStatus(ctx, appt.ID, to)
		require.NoError(t, err)
		assert.Equal(t, to, updated.Status)
	}

	_, err = f.svc.TransitionStatus(ctx, appt.ID, StatusCancelled)
	require.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.svc.TransitionStatus(ctx, uuid.New(), StatusConfirmed)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCancelAppointment_NonDestructive(t *testing.T) {
	f := newFixture(t, monday8am)
	ctx := context.Background()

	notes := "bring vaccination card"
	req := f.request(june10, "2:00 PM", 30)
	req.Notes = &notes
	appt, err := f.svc.CreateAppointment(ctx, req)
	require.NoError(t, err)

	cancelled, err := f.svc.CancelAppointment(ctx, appt.ID, "owner travelling")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelReason)
	assert.Equal(t, "owner travelling", *cancelled.CancelReason)

	detail, err := f.svc.GetAppointment(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, detail.Status)
	assert.Equal(t, appt.Time, detail.Time)
	assert.Equal(t, appt.DurationMinutes, detail.DurationMinutes)
	assert.Equal(t, appt.Reason, detail.Reason)
	assert.Equal(t, appt.Notes, detail.Notes)
	assert.Equal(t, appt.StaffID, detail.StaffID)
	require.NotNil(t, detail.Pet)
	assert.Equal(t, "Biscuit", detail.Pet.Name)

	_, err = f.svc.CancelAppointment(ctx, appt.ID, "")
	require.ErrorIs(t, err, ErrInvalidTransition)

	// the slot is free again
	_, err = f.svc.CreateAppointment(ctx, f.request(june10, "2:00 PM", 30))
	require.NoError(t, err)
}

func TestUpdateDetails(t *testing.T) {
	f := newFixture(t, monday8am)
	ctx := context.Background()

	appt, err := f.svc.CreateAppointment(ctx, f.request(june10, "2:00 PM", 30))
	require.NoError(t, err)

	notes := "limping on left hind leg"
	cost := 75.5
	updated, err := f.svc.UpdateDetails(ctx, appt.ID, &notes, &cost)
	require.NoError(t, err)
	assert.Equal(t, notes, *updated.Notes)
	assert.Equal(t, cost, *updated.Cost)

	negative := -1.0
	_, err = f.svc.UpdateDetails(ctx, appt.ID, nil, &negative)
	require.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.CancelAppointment(ctx, appt.ID, "")
	require.NoError(t, err)
	_, err = f.svc.UpdateDetails(ctx, appt.ID, &notes, nil)
	require.ErrorIs(t, err, ErrValidation)
}

func TestMarkNoShows(t *testing.T) {
	f := newFixture(t, monday8am)

	early := f.repo.seedAppointment(Appointment{StaffID: f.vet.ID, Date: june9, Time: "6:00 AM", DurationMinutes: 30})
	recent := f.repo.seedAppointment(Appointment{StaffID: f.vet.ID, Date: june9, Time: "7:30 AM", DurationMinutes: 30})
	yesterday := f.repo.seedAppointment(Appointment{StaffID: f.vet.ID, Date: june9.AddDate(0, 0, -1), Time: "4:00 PM", DurationMinutes: 30, Status: StatusConfirmed})
	running := f.repo.seedAppointment(Appointment{StaffID: f.vet.ID, Date: june9.AddDate(0, 0, -1), Time: "3:00 PM", DurationMinutes: 30, Status: StatusInProgress})
	future := f.repo.seedAppointment(Appointment{StaffID: f.vet.ID, Date: june10, Time: "6:00 AM", DurationMinutes: 30})

	marked, err := f.svc.MarkNoShows(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, marked)

	assert.Equal(t, StatusNoShow, f.repo.appointment(early.ID).Status)
	assert.Equal(t, StatusScheduled, f.repo.appointment(recent.ID).Status, "still inside the grace period")
	assert.Equal(t, StatusNoShow, f.repo.appointment(yesterday.ID).Status)
	assert.Equal(t, StatusInProgress, f.repo.appointment(running.ID).Status)
	assert.Equal(t, StatusScheduled, f.repo.appointment(future.ID).Status)
}

func TestListAppointments(t *testing.T) {
	f := newFixture(t, monday8am)
	f.repo.seedAppointment(Appointment{StaffID: f.vet.ID, Date: june10, Time: "2:00 PM", DurationMinutes: 30})
	f.repo.seedAppointment(Appointment{StaffID: f.vet.ID, Date: june10, Time: "9:00 AM", DurationMinutes: 30, Status: StatusCancelled})
	f.repo.seedAppointment(Appointment{StaffID: f.vet.ID, Date: june9, Time: "9:00 AM", DurationMinutes: 30})

	appts, err := f.svc.ListAppointments(context.Background(), f.vet.ID, june10)
	require.NoError(t, err)
	require.Len(t, appts, 2)
	assert.Equal(t, "9:00 AM", appts[0].Time)
	assert.Equal(t, "2:00 PM", appts[1].Time)
}

func TestParseServiceType(t *testing.T) {
	st, ok := ParseServiceType(" surgery ")
	require.True(t, ok)
	assert.Equal(t, TypeSurgery, st)
	assert.True(t, st.Protected())
	assert.Equal(t, 120, st.DefaultDuration())

	_, ok = ParseServiceType("PEDICURE")
	assert.False(t, ok)

	for _, st := range ServiceTypes() {
		info := st.Info()
		require.NotEmpty(t, info.AllowedDurations, st)
		for _, d := range info.AllowedDurations {
			assert.GreaterOrEqual(t, d, MinDuration, st)
			assert.LessOrEqual(t, d, MaxDuration, st)
		}
	}
}

func TestIntervalOf_NextDay(t *testing.T) {
	a := Appointment{Date: june10, Time: "1:00 AM", DurationMinutes: 60}
	iv, ok := intervalOf(a, june9)
	require.True(t, ok)
	assert.Equal(t, schedule.Interval{Start: schedule.MinutesPerDay + 60, Duration: 60}, iv)
}

func (f *fixture) addNightVet() Staff {
	return f.repo.addStaff(Staff{
		Name:         "Dr. Night",
		Role:         RoleVeterinarian,
		Active:       true,
		Availability: []string{"Monday 18:00-23:59", "Tuesday 00:00-08:00"},
	})
}

func TestCreateAppointment_SeesVisitRunningPastMidnight(t *testing.T) {
	f := newFixture(t, monday8am)
	night := f.addNightVet()
	f.repo.seedAppointment(Appointment{
		ClientID:        f.client.ID,
		PetID:           f.pet.ID,
		StaffID:         night.ID,
		Date:            june9,
		Time:            "11:00 PM",
		DurationMinutes: 120,
		Type:            TypeEmergencyCare,
		Source:          SourceEmergency,
		IsEmergency:     true,
	})

	req := f.request(june10, "12:30 AM", 30)
	req.StaffID = night.ID
	_, err := f.svc.CreateAppointment(context.Background(), req)
	require.ErrorIs(t, err, ErrConflict)
	var conflict *ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "11:00 PM", conflict.Time)
	assert.Equal(t, 120, conflict.DurationMinutes)

	req.Time = "1:00 AM"
	_, err = f.svc.CreateAppointment(context.Background(), req)
	assert.NoError(t, err)
}

func TestAvailableSlots_SkipsVisitRunningPastMidnight(t *testing.T) {
	f := newFixture(t, monday8am)
	night := f.addNightVet()
	f.repo.seedAppointment(Appointment{
		ClientID:        f.client.ID,
		PetID:           f.pet.ID,
		StaffID:         night.ID,
		Date:            june9,
		Time:            "11:00 PM",
		DurationMinutes: 120,
		Type:            TypeEmergencyCare,
	})

	slots, err := f.svc.AvailableSlots(context.Background(), night.ID, june10, 30)
	require.NoError(t, err)
	require.NotEmpty(t, slots)
	assert.Equal(t, "1:00 AM", slots[0])
	assert.NotContains(t, slots, "12:00 AM")
	assert.NotContains(t, slots, "12:30 AM")
}

func TestIntervalOf_PreviousDay(t *testing.T) {
	a := Appointment{Date: june9, Time: "11:00 PM", DurationMinutes: 120}
	iv, ok := intervalOf(a, june10)
	require.True(t, ok)
	assert.Equal(t, schedule.Interval{Start: -60, Duration: 120}, iv)
	assert.True(t, iv.Overlaps(schedule.Interval{Start: 30, Duration: 30}))
}

func TestService_LogsCarryComponent(t *testing.T) {
	f := newFixture(t, monday8am)
	f.repo.seedAppointment(Appointment{
		ClientID:        f.client.ID,
		PetID:           f.pet.ID,
		StaffID:         f.vet.ID,
		Date:            june10,
		Time:            "quarter past nine",
		DurationMinutes: 30,
	})

	_, err := f.svc.AvailableSlots(context.Background(), f.vet.ID, june10, 30)
	require.NoError(t, err)

	entry := f.logs.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "appointment", entry.Data["component"])
}
