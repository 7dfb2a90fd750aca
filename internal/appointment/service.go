package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/hackgods/vetclinic-scheduling/internal/config"
	"github.com/hackgods/vetclinic-scheduling/internal/logging"
	"github.com/hackgods/vetclinic-scheduling/internal/metrics"
	redisclient "github.com/hackgods/vetclinic-scheduling/internal/redis"
	"github.com/hackgods/vetclinic-scheduling/internal/schedule"
)

const (
	EventAppointmentCreated   = "APPOINTMENT_CREATED"
	EventAppointmentStatus    = "APPOINTMENT_STATUS_CHANGED"
	EventAppointmentUpdated   = "APPOINTMENT_UPDATED"
	EventAppointmentDisplaced = "APPOINTMENT_DISPLACED"
	EventEmergencyAdmitted    = "EMERGENCY_ADMITTED"
)

const (
	maxReasonLength = 500
	maxNotesLength  = 1000
)

type Service struct {
	repo     Repository
	locker   redisclient.Locker
	notifier Notifier
	cfg      config.Config
	log      logrus.FieldLogger
	now      func() time.Time

	// best-effort notifications still in flight
	pending sync.WaitGroup
}

func NewService(repo Repository, locker redisclient.Locker, notifier Notifier, cfg config.Config, log logrus.FieldLogger) *Service {
	if locker == nil {
		locker = redisclient.NoopLocker{}
	}
	if cfg.ClinicLocation == nil {
		cfg.ClinicLocation = time.UTC
	}
	return &Service{
		repo:     repo,
		locker:   locker,
		notifier: notifier,
		cfg:      cfg,
		log:      logging.Component(log, "appointment"),
		now:      time.Now,
	}
}

// Wait blocks until background notifications have finished.
func (s *Service) Wait() {
	s.pending.Wait()
}

func (s *Service) clinicNow() time.Time {
	return s.now().In(s.cfg.ClinicLocation)
}

func (s *Service) today() time.Time {
	return schedule.DateOf(s.clinicNow())
}

func (s *Service) slotStep() int {
	step := int(s.cfg.SlotStep / time.Minute)
	if step <= 0 {
		return schedule.DefaultStep
	}
	return step
}

// bounded runs one storage step under the configured store timeout.
func bounded[T any](ctx context.Context, d time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	if d <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return fn(ctx)
}

// CreateAppointment validates a booking request end to end and persists it as SCHEDULED.
// The overlap pre-check and the insert run under the staff/day lock; the storage uniqueness
// constraint catches whatever slips past both and is reported as the same conflict.
func (s *Service) CreateAppointment(ctx context.Context, req BookingRequest) (*Appointment, error) {
	appt, err := s.prepareBooking(ctx, req)
	if err != nil {
		s.recordBooking(err)
		return nil, err
	}

	var created *Appointment
	err = s.locker.WithStaffDayLock(ctx, appt.StaffID, appt.Date, func(lockCtx context.Context) error {
		existing, err := s.blockingAppointments(lockCtx, appt.StaffID, appt.Date)
		if err != nil {
			return err
		}
		if clash, ok := findClash(appt, existing); ok {
			return &ConflictError{Time: clash.Time, DurationMinutes: clash.DurationMinutes}
		}

		created, err = bounded(lockCtx, s.cfg.StoreTimeout, func(ctx context.Context) (*Appointment, error) {
			return s.repo.CreateAppointment(ctx, appt)
		})
		if errors.Is(err, ErrDuplicateBooking) {
			return s.conflictFor(lockCtx, appt)
		}
		if err != nil {
			return fmt.Errorf("create appointment: %w", err)
		}
		return nil
	})
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		err = ErrScheduleBusy
	}
	s.recordBooking(err)
	if err != nil {
		return nil, err
	}

	s.logEvent(ctx, created.ID, EventAppointmentCreated, map[string]any{
		"staff_id": created.StaffID.String(),
		"date":     created.Date.Format(schedule.DateLayout),
		"time":     created.Time,
		"duration": created.DurationMinutes,
		"type":     created.Type,
		"source":   created.Source,
	})
	return created, nil
}

func (s *Service) prepareBooking(ctx context.Context, req BookingRequest) (*Appointment, error) {
	if req.ClientID == uuid.Nil {
		return nil, invalid("client_id", "is required")
	}
	if req.PetID == uuid.Nil {
		return nil, invalid("pet_id", "is required")
	}
	if req.StaffID == uuid.Nil {
		return nil, invalid("staff_id", "is required")
	}

	st, ok := ParseServiceType(req.Type)
	if !ok || st == TypeEmergencyCare {
		return nil, invalid("type", fmt.Sprintf("unknown service type %q", req.Type))
	}

	duration := req.DurationMinutes
	if duration == 0 {
		duration = st.DefaultDuration()
	}
	if duration < MinDuration || duration > MaxDuration {
		return nil, invalid("duration", fmt.Sprintf("must be between %d and %d minutes", MinDuration, MaxDuration))
	}
	if !st.Allows(duration) {
		return nil, invalid("duration", fmt.Sprintf("%d minutes is not offered for %s", duration, st))
	}

	if req.Date.IsZero() {
		return nil, invalid("date", "is required")
	}
	date := schedule.DateOf(req.Date)
	if date.Before(s.today()) {
		return nil, invalid("date", "must not be in the past")
	}

	if !schedule.IsDisplayTime(req.Time) {
		return nil, invalid("time", `must look like "2:30 PM"`)
	}
	start, _ := schedule.ToMinutes(req.Time)

	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, invalid("reason", "is required")
	}
	if len(reason) > maxReasonLength {
		return nil, invalid("reason", fmt.Sprintf("must be at most %d characters", maxReasonLength))
	}
	if req.Notes != nil && len(*req.Notes) > maxNotesLength {
		return nil, invalid("notes", fmt.Sprintf("must be at most %d characters", maxNotesLength))
	}

	source := req.Source
	if source == "" {
		source = SourceClient
	}
	if source == SourceEmergency {
		return nil, invalid("source", "emergency bookings go through admission")
	}

	if _, err := s.loadOwnedPet(ctx, req.ClientID, req.PetID); err != nil {
		return nil, err
	}

	staff, err := s.loadBookableStaff(ctx, req.StaffID)
	if err != nil {
		return nil, err
	}

	window, ok := schedule.ResolveWindow(staff.Availability, date)
	if !ok {
		return nil, invalid("date", fmt.Sprintf("%s is not available on %s", staff.Name, date.Weekday()))
	}
	if !window.Contains(schedule.Interval{Start: start, Duration: duration}) {
		return nil, invalid("time", fmt.Sprintf("%s for %d minutes is outside working hours %s-%s",
			req.Time, duration, schedule.To12h(window.Start), schedule.To12h(window.End)))
	}

	cost := st.Info().Cost
	return &Appointment{
		ClientID:        req.ClientID,
		PetID:           req.PetID,
		StaffID:         req.StaffID,
		Date:            date,
		Time:            req.Time,
		DurationMinutes: duration,
		Type:            st,
		Status:          StatusScheduled,
		Source:          source,
		Reason:          reason,
		Notes:           req.Notes,
		Cost:            &cost,
	}, nil
}

func (s *Service) loadOwnedPet(ctx context.Context, clientID, petID uuid.UUID) (*Pet, error) {
	if _, err := bounded(ctx, s.cfg.StoreTimeout, func(ctx context.Context) (*Client, error) {
		return s.repo.GetClientByID(ctx, clientID)
	}); err != nil {
		return nil, wrapLoad("client", err)
	}

	pet, err := bounded(ctx, s.cfg.StoreTimeout, func(ctx context.Context) (*Pet, error) {
		return s.repo.GetPetByID(ctx, petID)
	})
	if err != nil {
		return nil, wrapLoad("pet", err)
	}
	if pet.OwnerID != clientID {
		return nil, invalid("pet_id", "pet does not belong to client")
	}
	return pet, nil
}

func (s *Service) loadBookableStaff(ctx context.Context, staffID uuid.UUID) (*Staff, error) {
	staff, err := bounded(ctx, s.cfg.StoreTimeout, func(ctx context.Context) (*Staff, error) {
		return s.repo.GetStaffByID(ctx, staffID)
	})
	if err != nil {
		return nil, wrapLoad("staff", err)
	}
	if !staff.Bookable() {
		return nil, invalid("staff_id", "staff member is not an active veterinarian")
	}
	return staff, nil
}

func wrapLoad(what string, err error) error {
	if errors.Is(err, ErrNotFound) {
		return err
	}
	return fmt.Errorf("load %s: %w", what, err)
}

func (s *Service) activeAppointments(ctx context.Context, staffID uuid.UUID, date time.Time) ([]Appointment, error) {
	appts, err := bounded(ctx, s.cfg.StoreTimeout, func(ctx context.Context) ([]Appointment, error) {
		return s.repo.FindAppointments(ctx, AppointmentFilter{
			StaffID:         staffID,
			Date:            date,
			ExcludeStatuses: InactiveStatuses,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("find appointments: %w", err)
	}
	return appts, nil
}

// blockingAppointments returns the active appointments that can occupy date: its own plus the
// previous day's, which may run past midnight.
func (s *Service) blockingAppointments(ctx context.Context, staffID uuid.UUID, date time.Time) ([]Appointment, error) {
	prev, err := s.activeAppointments(ctx, staffID, date.AddDate(0, 0, -1))
	if err != nil {
		return nil, err
	}
	same, err := s.activeAppointments(ctx, staffID, date)
	if err != nil {
		return nil, err
	}
	return append(prev, same...), nil
}

// withStaffLock holds the staff/day lock of every date, in order, while fn runs.
func (s *Service) withStaffLock(ctx context.Context, staffID uuid.UUID, dates []time.Time, fn func(ctx context.Context) error) error {
	if len(dates) == 0 {
		return fn(ctx)
	}
	return s.locker.WithStaffDayLock(ctx, staffID, dates[0], func(lockCtx context.Context) error {
		return s.withStaffLock(lockCtx, staffID, dates[1:], fn)
	})
}

// conflictFor rebuilds the conflict after the uniqueness constraint rejected a write.
func (s *Service) conflictFor(ctx context.Context, appt *Appointment) error {
	existing, err := s.blockingAppointments(ctx, appt.StaffID, appt.Date)
	if err == nil {
		if clash, ok := findClash(appt, existing); ok {
			return &ConflictError{Time: clash.Time, DurationMinutes: clash.DurationMinutes}
		}
	}
	return &ConflictError{Time: appt.Time}
}

func findClash(appt *Appointment, existing []Appointment) (Appointment, bool) {
	start, err := schedule.ToMinutes(appt.Time)
	if err != nil {
		return Appointment{}, false
	}
	candidate := schedule.Interval{Start: start, Duration: appt.DurationMinutes}
	for _, e := range existing {
		if e.ID == appt.ID || !e.Status.Active() {
			continue
		}
		iv, ok := intervalOf(e, appt.Date)
		if ok && candidate.Overlaps(iv) {
			return e, true
		}
	}
	return Appointment{}, false
}

// intervalOf places a on the minute axis of base; appointments on the next day start past 1440
// and those on the previous day start below zero.
func intervalOf(a Appointment, base time.Time) (schedule.Interval, bool) {
	start, err := schedule.ToMinutes(a.Time)
	if err != nil {
		return schedule.Interval{}, false
	}
	days := int(schedule.DateOf(a.Date).Sub(schedule.DateOf(base)).Hours() / 24)
	return schedule.Interval{Start: days*schedule.MinutesPerDay + start, Duration: a.DurationMinutes}, true
}

func (s *Service) recordBooking(err error) {
	switch {
	case err == nil:
		metrics.Bookings.WithLabelValues(metrics.OutcomeCreated).Inc()
	case errors.Is(err, ErrConflict):
		metrics.Bookings.WithLabelValues(metrics.OutcomeConflict).Inc()
	case errors.Is(err, ErrValidation), errors.Is(err, ErrNotFound):
		metrics.Bookings.WithLabelValues(metrics.OutcomeInvalid).Inc()
	default:
		metrics.Bookings.WithLabelValues(metrics.OutcomeError).Inc()
	}
}

// AvailableSlots lists the start times a booking of duration minutes can take with staffID on date.
// An empty list is a normal answer. For today, times that already passed are left out.
func (s *Service) AvailableSlots(ctx context.Context, staffID uuid.UUID, date time.Time, duration int) ([]string, error) {
	if staffID == uuid.Nil {
		return nil, invalid("staff_id", "is required")
	}
	if duration == 0 {
		duration = DefaultDuration
	}
	if duration < MinDuration || duration > MaxDuration {
		return nil, invalid("duration", fmt.Sprintf("must be between %d and %d minutes", MinDuration, MaxDuration))
	}

	staff, err := s.loadBookableStaff(ctx, staffID)
	if err != nil {
		return nil, err
	}

	date = schedule.DateOf(date)
	now := s.clinicNow()
	today := schedule.DateOf(now)
	if date.Before(today) {
		return []string{}, nil
	}

	window, ok := schedule.ResolveWindow(staff.Availability, date)
	if !ok {
		return []string{}, nil
	}

	existing, err := s.blockingAppointments(ctx, staffID, date)
	if err != nil {
		return nil, err
	}
	busy := make([]schedule.Interval, 0, len(existing))
	for _, a := range existing {
		iv, ok := intervalOf(a, date)
		if !ok {
			s.log.WithFields(logrus.Fields{"appointment_id": a.ID, "time": a.Time}).Warn("skipping appointment with unreadable time")
			continue
		}
		busy = append(busy, iv)
	}

	slots := []string{}
	for _, m := range schedule.CandidateStarts(window, duration, busy, s.slotStep()) {
		if date.Equal(today) && m < schedule.MinuteOfDay(now) {
			continue
		}
		slots = append(slots, schedule.To12h(m))
	}
	return slots, nil
}

// GetAppointment retrieves a fully hydrated appointment by ID
func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	detail, err := bounded(ctx, s.cfg.StoreTimeout, func(ctx context.Context) (*AppointmentDetail, error) {
		return s.repo.GetAppointmentDetail(ctx, id)
	})
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return detail, nil
}

// ListAppointments returns every appointment of staffID on date, cancelled ones included.
func (s *Service) ListAppointments(ctx context.Context, staffID uuid.UUID, date time.Time) ([]Appointment, error) {
	if staffID == uuid.Nil {
		return nil, invalid("staff_id", "is required")
	}
	appts, err := bounded(ctx, s.cfg.StoreTimeout, func(ctx context.Context) ([]Appointment, error) {
		return s.repo.FindAppointments(ctx, AppointmentFilter{StaffID: staffID, Date: schedule.DateOf(date)})
	})
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return appts, nil
}

// TransitionStatus moves an appointment along the status machine.
func (s *Service) TransitionStatus(ctx context.Context, id uuid.UUID, to AppointmentStatus) (*Appointment, error) {
	return s.transition(ctx, id, to, nil)
}

// CancelAppointment marks an appointment CANCELLED. The record and its fields are kept.
func (s *Service) CancelAppointment(ctx context.Context, id uuid.UUID, reason string) (*Appointment, error) {
	reason = strings.TrimSpace(reason)
	if len(reason) > maxReasonLength {
		return nil, invalid("reason", fmt.Sprintf("must be at most %d characters", maxReasonLength))
	}
	var r *string
	if reason != "" {
		r = &reason
	}
	return s.transition(ctx, id, StatusCancelled, r)
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, to AppointmentStatus, reason *string) (*Appointment, error) {
	appt, err := bounded(ctx, s.cfg.StoreTimeout, func(ctx context.Context) (*Appointment, error) {
		return s.repo.GetAppointmentByID(ctx, id)
	})
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	if !CanTransition(appt.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, appt.Status, to)
	}

	updated, err := bounded(ctx, s.cfg.StoreTimeout, func(ctx context.Context) (*Appointment, error) {
		return s.repo.UpdateAppointmentStatus(ctx, id, appt.Status, to, reason)
	})
	if errors.Is(err, ErrAppointmentNotFound) {
		// the row exists, so its status moved underneath us
		return nil, fmt.Errorf("%w: status changed concurrently", ErrInvalidTransition)
	}
	if err != nil {
		return nil, fmt.Errorf("update appointment status: %w", err)
	}

	metrics.StatusTransitions.WithLabelValues(string(to)).Inc()
	payload := map[string]any{"from": appt.Status, "to": to}
	if reason != nil {
		payload["reason"] = *reason
	}
	s.logEvent(ctx, id, EventAppointmentStatus, payload)
	return updated, nil
}

// UpdateDetails edits staff notes and cost of an open appointment.
func (s *Service) UpdateDetails(ctx context.Context, id uuid.UUID, notes *string, cost *float64) (*Appointment, error) {
	if notes != nil && len(*notes) > maxNotesLength {
		return nil, invalid("notes", fmt.Sprintf("must be at most %d characters", maxNotesLength))
	}
	if cost != nil && *cost < 0 {
		return nil, invalid("cost", "must not be negative")
	}

	appt, err := bounded(ctx, s.cfg.StoreTimeout, func(ctx context.Context) (*Appointment, error) {
		return s.repo.GetAppointmentByID(ctx, id)
	})
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	if appt.Status.Terminal() {
		return nil, invalid("status", fmt.Sprintf("appointment is %s", appt.Status))
	}

	updated, err := bounded(ctx, s.cfg.StoreTimeout, func(ctx context.Context) (*Appointment, error) {
		return s.repo.UpdateAppointmentDetails(ctx, id, notes, cost)
	})
	if err != nil {
		return nil, fmt.Errorf("update appointment: %w", err)
	}

	s.logEvent(ctx, id, EventAppointmentUpdated, map[string]any{
		"notes_changed": notes != nil,
		"cost_changed":  cost != nil,
	})
	return updated, nil
}

// MarkNoShows is intended to be called by the worker periodically. Appointments still SCHEDULED or
// CONFIRMED once their end plus the grace period has passed become NO_SHOW.
func (s *Service) MarkNoShows(ctx context.Context) (int, error) {
	now := s.clinicNow()
	candidates, err := bounded(ctx, s.cfg.StoreTimeout, func(ctx context.Context) ([]Appointment, error) {
		return s.repo.FindOverdue(ctx, schedule.DateOf(now))
	})
	if err != nil {
		return 0, fmt.Errorf("find overdue appointments: %w", err)
	}

	marked := 0
	for _, appt := range candidates {
		start, err := schedule.ToMinutes(appt.Time)
		if err != nil {
			s.log.WithFields(logrus.Fields{"appointment_id": appt.ID, "time": appt.Time}).Warn("skipping appointment with unreadable time")
			continue
		}
		y, m, d := appt.Date.Date()
		end := time.Date(y, m, d, 0, 0, 0, 0, s.cfg.ClinicLocation).
			Add(time.Duration(start+appt.DurationMinutes) * time.Minute)
		if !now.After(end.Add(s.cfg.NoShowGrace)) {
			continue
		}

		_, err = bounded(ctx, s.cfg.StoreTimeout, func(ctx context.Context) (*Appointment, error) {
			return s.repo.UpdateAppointmentStatus(ctx, appt.ID, appt.Status, StatusNoShow, nil)
		})
		if err != nil {
			if !errors.Is(err, ErrAppointmentNotFound) {
				s.log.WithError(err).WithField("appointment_id", appt.ID).Error("failed to mark appointment as no-show")
			}
			continue
		}
		marked++
		metrics.StatusTransitions.WithLabelValues(string(StatusNoShow)).Inc()
		s.logEvent(ctx, appt.ID, EventAppointmentStatus, map[string]any{
			"from":   appt.Status,
			"to":     StatusNoShow,
			"reason": "worker",
		})
	}

	return marked, nil
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.WithError(err).WithField("event", eventType).Warn("failed to marshal event payload")
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.now(),
	}

	_, err = bounded(context.WithoutCancel(ctx), s.cfg.StoreTimeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.repo.InsertEvent(ctx, ev)
	})
	if err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"event":          eventType,
			"appointment_id": appointmentID,
		}).Warn("failed to insert event log")
	}
}
