package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrClientNotFound      = fmt.Errorf("client %w", ErrNotFound)
	ErrPetNotFound         = fmt.Errorf("pet %w", ErrNotFound)
	ErrStaffNotFound       = fmt.Errorf("staff %w", ErrNotFound)
	ErrAppointmentNotFound = fmt.Errorf("appointment %w", ErrNotFound)

	// ErrDuplicateBooking is returned when the active {staff, date, time} uniqueness constraint rejects a write.
	ErrDuplicateBooking = errors.New("duplicate active booking")
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	GetClientByID(ctx context.Context, id uuid.UUID) (*Client, error)
	GetPetByID(ctx context.Context, id uuid.UUID) (*Pet, error)
	GetStaffByID(ctx context.Context, id uuid.UUID) (*Staff, error)
	// ListActiveVeterinarians is ordered by id.
	ListActiveVeterinarians(ctx context.Context) ([]Staff, error)

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error)
	// FindAppointments is ordered by start time.
	FindAppointments(ctx context.Context, f AppointmentFilter) ([]Appointment, error)

	// Creation and updates
	CreateAppointment(ctx context.Context, a *Appointment) (*Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus, reason *string) (*Appointment, error)
	UpdateAppointmentDetails(ctx context.Context, id uuid.UUID, notes *string, cost *float64) (*Appointment, error)

	// CommitEmergency cancels the displaced appointments and inserts the emergency booking as one unit.
	CommitEmergency(ctx context.Context, cancel []uuid.UUID, reason string, a *Appointment) ([]Appointment, *Appointment, error)

	// No-show worker
	FindOverdue(ctx context.Context, onOrBefore time.Time) ([]Appointment, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
