package appointment

import (
	"context"
	"errors"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/vetclinic-scheduling/internal/schedule"
)

// memRepository is an in-memory Repository with the same active {staff, date, time} uniqueness rule as Postgres.
type memRepository struct {
	mu           sync.Mutex
	clients      map[uuid.UUID]Client
	pets         map[uuid.UUID]Pet
	staff        map[uuid.UUID]Staff
	appointments map[uuid.UUID]Appointment
	events       []EventLog

	// beforeCreate runs ahead of every insert, outside the lock; used to simulate a racing writer.
	beforeCreate func()
	failFind     error
}

func newMemRepository() *memRepository {
	return &memRepository{
		clients:      map[uuid.UUID]Client{},
		pets:         map[uuid.UUID]Pet{},
		staff:        map[uuid.UUID]Staff{},
		appointments: map[uuid.UUID]Appointment{},
	}
}

func (r *memRepository) addClient(name, email string) Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := Client{ID: uuid.New(), Name: name}
	if email != "" {
		c.Email = &email
	}
	r.clients[c.ID] = c
	return c
}

func (r *memRepository) addPet(owner uuid.UUID, name string) Pet {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := Pet{ID: uuid.New(), OwnerID: owner, Name: name, Species: "dog"}
	r.pets[p.ID] = p
	return p
}

func (r *memRepository) addStaff(s Staff) Staff {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	r.staff[s.ID] = s
	return s
}

// seedAppointment stores a without any checks.
func (r *memRepository) seedAppointment(a Appointment) Appointment {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Status == "" {
		a.Status = StatusScheduled
	}
	if a.Type == "" {
		a.Type = TypeCheckup
	}
	if a.Reason == "" {
		a.Reason = "seeded"
	}
	a.Date = schedule.DateOf(a.Date)
	r.appointments[a.ID] = a
	return a
}

func (r *memRepository) appointment(id uuid.UUID) Appointment {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.appointments[id]
}

func (r *memRepository) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.appointments)
}

func (r *memRepository) eventTypes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, ev := range r.events {
		out = append(out, ev.EventType)
	}
	return out
}

func (r *memRepository) GetClientByID(_ context.Context, id uuid.UUID) (*Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[id]
	if !ok {
		return nil, ErrClientNotFound
	}
	return &c, nil
}

func (r *memRepository) GetPetByID(_ context.Context, id uuid.UUID) (*Pet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pets[id]
	if !ok {
		return nil, ErrPetNotFound
	}
	return &p, nil
}

func (r *memRepository) GetStaffByID(_ context.Context, id uuid.UUID) (*Staff, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.staff[id]
	if !ok {
		return nil, ErrStaffNotFound
	}
	return &s, nil
}

func (r *memRepository) ListActiveVeterinarians(_ context.Context) ([]Staff, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Staff
	for _, s := range r.staff {
		if s.Bookable() {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (r *memRepository) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (r *memRepository) GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	a, err := r.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	d := &AppointmentDetail{Appointment: *a}
	d.Client, _ = r.GetClientByID(ctx, a.ClientID)
	d.Pet, _ = r.GetPetByID(ctx, a.PetID)
	d.Staff, _ = r.GetStaffByID(ctx, a.StaffID)
	return d, nil
}

func (r *memRepository) FindAppointments(_ context.Context, f AppointmentFilter) ([]Appointment, error) {
	if r.failFind != nil {
		return nil, r.failFind
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Appointment
	for _, a := range r.appointments {
		if a.StaffID != f.StaffID || !a.Date.Equal(schedule.DateOf(f.Date)) {
			continue
		}
		if slices.Contains(f.ExcludeStatuses, a.Status) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		mi, _ := schedule.ToMinutes(out[i].Time)
		mj, _ := schedule.ToMinutes(out[j].Time)
		return mi < mj
	})
	return out, nil
}

func (r *memRepository) insertLocked(a *Appointment) (*Appointment, error) {
	for _, e := range r.appointments {
		if e.Status.Active() && e.StaffID == a.StaffID && e.Date.Equal(a.Date) && e.Time == a.Time {
			return nil, ErrDuplicateBooking
		}
	}
	c := *a
	c.ID = uuid.New()
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	r.appointments[c.ID] = c
	return &c, nil
}

func (r *memRepository) CreateAppointment(_ context.Context, a *Appointment) (*Appointment, error) {
	if r.beforeCreate != nil {
		r.beforeCreate()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.insertLocked(a)
}

func (r *memRepository) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, from, to AppointmentStatus, reason *string) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	a.Status = to
	if reason != nil {
		a.CancelReason = reason
	}
	a.UpdatedAt = time.Now()
	r.appointments[id] = a
	return &a, nil
}

func (r *memRepository) UpdateAppointmentDetails(_ context.Context, id uuid.UUID, notes *string, cost *float64) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	if notes != nil {
		a.Notes = notes
	}
	if cost != nil {
		a.Cost = cost
	}
	r.appointments[id] = a
	return &a, nil
}

func (r *memRepository) CommitEmergency(_ context.Context, cancel []uuid.UUID, reason string, a *Appointment) ([]Appointment, *Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	backup := make(map[uuid.UUID]Appointment, len(cancel))
	var cancelled []Appointment
	for _, id := range cancel {
		e, ok := r.appointments[id]
		if !ok || !CanTransition(e.Status, StatusCancelled) {
			continue
		}
		backup[id] = e
		e.Status = StatusCancelled
		e.CancelReason = &reason
		r.appointments[id] = e
		cancelled = append(cancelled, e)
	}

	created, err := r.insertLocked(a)
	if err != nil {
		for id, e := range backup {
			r.appointments[id] = e
		}
		return nil, nil, err
	}
	return cancelled, created, nil
}

func (r *memRepository) FindOverdue(_ context.Context, onOrBefore time.Time) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Appointment
	for _, a := range r.appointments {
		if (a.Status == StatusScheduled || a.Status == StatusConfirmed) && !a.Date.After(onOrBefore) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *memRepository) InsertEvent(_ context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

// recordingNotifier captures every notification and optionally fails them.
type recordingNotifier struct {
	mu            sync.Mutex
	cancellations []CancellationNotice
	alerts        []StaffEmergencyAlert
	broadcasts    []SecretaryBroadcast
	confirmations []OwnerConfirmation
	fail          bool
}

var errDeliveryFailed = errors.New("smtp: connection refused")

func (n *recordingNotifier) result() error {
	if n.fail {
		return errDeliveryFailed
	}
	return nil
}

func (n *recordingNotifier) NotifyCancellation(_ context.Context, c CancellationNotice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cancellations = append(n.cancellations, c)
	return n.result()
}

func (n *recordingNotifier) NotifyStaffEmergency(_ context.Context, a StaffEmergencyAlert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, a)
	return n.result()
}

func (n *recordingNotifier) NotifySecretaries(_ context.Context, b SecretaryBroadcast) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.broadcasts = append(n.broadcasts, b)
	return n.result()
}

func (n *recordingNotifier) NotifyOwnerConfirmation(_ context.Context, c OwnerConfirmation) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.confirmations = append(n.confirmations, c)
	return n.result()
}

func (n *recordingNotifier) total() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.cancellations) + len(n.alerts) + len(n.broadcasts) + len(n.confirmations)
}
