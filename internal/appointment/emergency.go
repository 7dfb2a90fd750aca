package appointment

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/hackgods/vetclinic-scheduling/internal/metrics"
	redisclient "github.com/hackgods/vetclinic-scheduling/internal/redis"
	"github.com/hackgods/vetclinic-scheduling/internal/schedule"
)

// EmergencyWindow is how far ahead an emergency booking may displace existing appointments.
const EmergencyWindow = 4 * time.Hour

const displacedReason = "displaced by emergency admission"

// candidate is one veterinarian's cost of taking the emergency.
type candidate struct {
	staff     Staff
	colliding []Appointment
	protected bool // window holds something that cannot be cancelled
}

// AdmitEmergency assigns an unscheduled emergency to the veterinarian whose schedule is least
// disrupted, cancels that vet's appointments inside the emergency window and books the emergency.
//
// Nothing is written before a vet is chosen. The cancellations and the new booking are committed
// together; notifications go out afterwards and their failures are only logged.
func (s *Service) AdmitEmergency(ctx context.Context, req EmergencyRequest) (*EmergencyAdmission, error) {
	admission, err := s.admitEmergency(ctx, req)
	switch {
	case err == nil:
		metrics.EmergencyAdmissions.WithLabelValues(metrics.OutcomeAdmitted).Inc()
	case errors.Is(err, ErrServiceUnavailable):
		metrics.EmergencyAdmissions.WithLabelValues(metrics.OutcomeUnavailable).Inc()
	case errors.Is(err, ErrValidation), errors.Is(err, ErrNotFound):
		metrics.EmergencyAdmissions.WithLabelValues(metrics.OutcomeInvalid).Inc()
	default:
		metrics.EmergencyAdmissions.WithLabelValues(metrics.OutcomeError).Inc()
	}
	return admission, err
}

func (s *Service) admitEmergency(ctx context.Context, req EmergencyRequest) (*EmergencyAdmission, error) {
	if req.ClientID == uuid.Nil {
		return nil, invalid("client_id", "is required")
	}
	if req.PetID == uuid.Nil {
		return nil, invalid("pet_id", "is required")
	}
	description := strings.TrimSpace(req.Description)
	if description == "" {
		return nil, invalid("description", "is required")
	}
	if len(description) > maxReasonLength {
		return nil, invalid("description", fmt.Sprintf("must be at most %d characters", maxReasonLength))
	}
	var emergencyReason *string
	if req.EmergencyReason != nil {
		r := strings.TrimSpace(*req.EmergencyReason)
		if len(r) > maxReasonLength {
			return nil, invalid("emergency_reason", fmt.Sprintf("must be at most %d characters", maxReasonLength))
		}
		if r != "" {
			emergencyReason = &r
		}
	}

	pet, err := s.loadOwnedPet(ctx, req.ClientID, req.PetID)
	if err != nil {
		return nil, err
	}

	now := s.clinicNow()

	vets, err := bounded(ctx, s.cfg.StoreTimeout, func(ctx context.Context) ([]Staff, error) {
		return s.repo.ListActiveVeterinarians(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("list veterinarians: %w", err)
	}
	if len(vets) == 0 {
		return nil, ErrNoVeterinarians
	}

	candidates := make([]candidate, 0, len(vets))
	for _, vet := range vets {
		c, err := s.emergencyCandidate(ctx, vet, now)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, c)
	}

	chosen, ok := pickCandidate(candidates)
	if !ok {
		return nil, ErrNoVetForEmergency
	}

	today := schedule.DateOf(now)
	appt := &Appointment{
		ClientID:        req.ClientID,
		PetID:           req.PetID,
		StaffID:         chosen.staff.ID,
		Date:            today,
		Time:            schedule.To12h(schedule.MinuteOfDay(now)),
		DurationMinutes: EmergencyDuration,
		Type:            TypeEmergencyCare,
		Status:          StatusScheduled,
		Source:          SourceEmergency,
		Reason:          description,
		IsEmergency:     true,
		EmergencyReason: emergencyReason,
	}
	cost := EmergencyCost
	appt.Cost = &cost

	var (
		cancelled []Appointment
		created   *Appointment
	)
	err = s.withStaffLock(ctx, chosen.staff.ID, emergencyDates(now), func(lockCtx context.Context) error {
		// the schedule may have moved since the vet was picked
		fresh, err := s.emergencyCandidate(lockCtx, chosen.staff, now)
		if err != nil {
			return err
		}
		if fresh.protected {
			return ErrNoVetForEmergency
		}

		ids := make([]uuid.UUID, 0, len(fresh.colliding))
		for _, a := range fresh.colliding {
			ids = append(ids, a.ID)
		}

		type committed struct {
			cancelled []Appointment
			created   *Appointment
		}
		res, err := bounded(lockCtx, s.cfg.StoreTimeout, func(ctx context.Context) (committed, error) {
			c, a, err := s.repo.CommitEmergency(ctx, ids, displacedReason, appt)
			return committed{cancelled: c, created: a}, err
		})
		if errors.Is(err, ErrDuplicateBooking) {
			return s.conflictFor(lockCtx, appt)
		}
		if err != nil {
			return fmt.Errorf("commit emergency: %w", err)
		}
		cancelled, created = res.cancelled, res.created
		return nil
	})
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		err = ErrScheduleBusy
	}
	if err != nil {
		return nil, err
	}

	metrics.DisplacedAppointments.Add(float64(len(cancelled)))
	for _, c := range cancelled {
		s.logEvent(ctx, c.ID, EventAppointmentDisplaced, map[string]any{
			"emergency_appointment_id": created.ID.String(),
			"staff_id":                 chosen.staff.ID.String(),
		})
	}
	s.logEvent(ctx, created.ID, EventEmergencyAdmitted, map[string]any{
		"staff_id":        chosen.staff.ID.String(),
		"time":            created.Time,
		"cancelled_count": len(cancelled),
	})

	s.notifyDisplaced(ctx, cancelled, chosen.staff)
	s.notifyStaffAlert(ctx, created, chosen.staff)
	s.notifyAfterAdmission(ctx, created, chosen.staff, pet, len(cancelled))

	return &EmergencyAdmission{
		Staff:     StaffSummary{ID: chosen.staff.ID, Name: chosen.staff.Name},
		Cancelled: cancelled,
		Created:   created,
	}, nil
}

// emergencyCandidate collects vet's active appointments intersecting [now, now+EmergencyWindow).
func (s *Service) emergencyCandidate(ctx context.Context, vet Staff, now time.Time) (candidate, error) {
	today := schedule.DateOf(now)
	window := emergencyWindow(now)

	c := candidate{staff: vet}
	for _, date := range emergencyDates(now) {
		appts, err := s.activeAppointments(ctx, vet.ID, date)
		if err != nil {
			return candidate{}, err
		}
		for _, a := range appts {
			iv, ok := intervalOf(a, today)
			if !ok {
				s.log.WithFields(logrus.Fields{"appointment_id": a.ID, "time": a.Time}).Warn("skipping appointment with unreadable time")
				continue
			}
			if !iv.Overlaps(window) {
				continue
			}
			c.colliding = append(c.colliding, a)
			// surgery and visits already under way stay put
			if a.Type.Protected() || !CanTransition(a.Status, StatusCancelled) {
				c.protected = true
			}
		}
	}
	return c, nil
}

func emergencyWindow(now time.Time) schedule.Interval {
	return schedule.Interval{
		Start:    schedule.MinuteOfDay(now),
		Duration: int(EmergencyWindow / time.Minute),
	}
}

// emergencyDates lists, in date order, the dates whose appointments can reach into the
// emergency window: yesterday for visits running past midnight, today, and tomorrow when
// the window crosses midnight.
func emergencyDates(now time.Time) []time.Time {
	today := schedule.DateOf(now)
	dates := []time.Time{today.AddDate(0, 0, -1), today}
	if emergencyWindow(now).End() > schedule.MinutesPerDay {
		dates = append(dates, today.AddDate(0, 0, 1))
	}
	return dates
}

// pickCandidate prefers the vet with the fewest displaced appointments, then the lowest id.
// Vets whose window holds a protected appointment are never chosen.
func pickCandidate(cs []candidate) (candidate, bool) {
	eligible := make([]candidate, 0, len(cs))
	for _, c := range cs {
		if !c.protected {
			eligible = append(eligible, c)
		}
	}
	if len(eligible) == 0 {
		return candidate{}, false
	}
	sort.SliceStable(eligible, func(i, j int) bool {
		if len(eligible[i].colliding) != len(eligible[j].colliding) {
			return len(eligible[i].colliding) < len(eligible[j].colliding)
		}
		return eligible[i].staff.ID.String() < eligible[j].staff.ID.String()
	})
	return eligible[0], true
}

func (s *Service) notifyCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = context.WithoutCancel(ctx)
	if s.cfg.NotifyTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.NotifyTimeout)
}

func (s *Service) notificationFailed(kind string, appointmentID uuid.UUID, err error) {
	metrics.NotificationFailures.WithLabelValues(kind).Inc()
	s.log.WithError(err).WithFields(logrus.Fields{
		"kind":           kind,
		"appointment_id": appointmentID,
	}).Warn("notification failed")
}

func (s *Service) notifyDisplaced(ctx context.Context, cancelled []Appointment, vet Staff) {
	if s.notifier == nil {
		return
	}
	for _, a := range cancelled {
		client, err := bounded(context.WithoutCancel(ctx), s.cfg.StoreTimeout, func(ctx context.Context) (*Client, error) {
			return s.repo.GetClientByID(ctx, a.ClientID)
		})
		if err != nil {
			s.notificationFailed("cancellation", a.ID, fmt.Errorf("load client: %w", err))
			continue
		}
		if client.Email == nil || *client.Email == "" {
			s.log.WithField("appointment_id", a.ID).Info("client has no email, skipping cancellation notice")
			continue
		}

		nctx, cancel := s.notifyCtx(ctx)
		err = s.notifier.NotifyCancellation(nctx, CancellationNotice{
			AppointmentID: a.ID,
			ClientName:    client.Name,
			ClientEmail:   *client.Email,
			Date:          a.Date,
			Time:          a.Time,
			StaffName:     vet.Name,
		})
		cancel()
		if err != nil {
			s.notificationFailed("cancellation", a.ID, err)
		}
	}
}

func (s *Service) notifyStaffAlert(ctx context.Context, created *Appointment, vet Staff) {
	if s.notifier == nil {
		return
	}
	alert := StaffEmergencyAlert{
		AppointmentID: created.ID,
		StaffName:     vet.Name,
		Date:          created.Date,
		Time:          created.Time,
		Description:   created.Reason,
	}
	if vet.Email != nil {
		alert.StaffEmail = *vet.Email
	}
	if created.EmergencyReason != nil {
		alert.Reason = *created.EmergencyReason
	}

	nctx, cancel := s.notifyCtx(ctx)
	defer cancel()
	if err := s.notifier.NotifyStaffEmergency(nctx, alert); err != nil {
		s.notificationFailed("staff_emergency", created.ID, err)
	}
}

// notifyAfterAdmission sends the secretary broadcast and owner confirmation without blocking the caller.
func (s *Service) notifyAfterAdmission(ctx context.Context, created *Appointment, vet Staff, pet *Pet, cancelledCount int) {
	if s.notifier == nil {
		return
	}

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()

		bctx, cancel := s.notifyCtx(ctx)
		defer cancel()

		client, err := s.repo.GetClientByID(bctx, created.ClientID)
		if err != nil {
			s.notificationFailed("owner_confirmation", created.ID, fmt.Errorf("load client: %w", err))
			client = &Client{ID: created.ClientID}
		}

		err = s.notifier.NotifySecretaries(bctx, SecretaryBroadcast{
			AppointmentID:  created.ID,
			ClientName:     client.Name,
			PetName:        pet.Name,
			StaffName:      vet.Name,
			Date:           created.Date,
			Time:           created.Time,
			Description:    created.Reason,
			CancelledCount: cancelledCount,
		})
		if err != nil {
			s.notificationFailed("secretaries", created.ID, err)
		}

		if client.Email == nil || *client.Email == "" {
			return
		}
		err = s.notifier.NotifyOwnerConfirmation(bctx, OwnerConfirmation{
			AppointmentID: created.ID,
			ClientName:    client.Name,
			ClientEmail:   *client.Email,
			PetName:       pet.Name,
			StaffName:     vet.Name,
			Date:          created.Date,
			Time:          created.Time,
		})
		if err != nil {
			s.notificationFailed("owner_confirmation", created.ID, err)
		}
	}()
}
