package appointment

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	StatusScheduled  AppointmentStatus = "scheduled"
	StatusConfirmed  AppointmentStatus = "confirmed"
	StatusInProgress AppointmentStatus = "in_progress"
	StatusCompleted  AppointmentStatus = "completed"
	StatusCancelled  AppointmentStatus = "cancelled"
	StatusNoShow     AppointmentStatus = "no_show"
)

// InactiveStatuses do not occupy the staff member's calendar.
var InactiveStatuses = []AppointmentStatus{StatusCancelled, StatusNoShow}

var transitions = map[AppointmentStatus][]AppointmentStatus{
	StatusScheduled:  {StatusConfirmed, StatusCancelled, StatusNoShow},
	StatusConfirmed:  {StatusInProgress, StatusCancelled, StatusNoShow},
	StatusInProgress: {StatusCompleted},
}

func ParseStatus(s string) (AppointmentStatus, error) {
	st := AppointmentStatus(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case StatusScheduled, StatusConfirmed, StatusInProgress, StatusCompleted, StatusCancelled, StatusNoShow:
		return st, nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

func (s AppointmentStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusNoShow
}

func (s AppointmentStatus) Active() bool {
	return s != StatusCancelled && s != StatusNoShow
}

func CanTransition(from, to AppointmentStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Source records which channel created a booking.
type Source string

const (
	SourceClient    Source = "client"
	SourceSecretary Source = "secretary"
	SourceChatbot   Source = "chatbot"
	SourceEmergency Source = "emergency"
)

func ParseSource(s string) (Source, error) {
	src := Source(strings.ToLower(strings.TrimSpace(s)))
	switch src {
	case "":
		return SourceClient, nil
	case SourceClient, SourceSecretary, SourceChatbot:
		return src, nil
	}
	return "", fmt.Errorf("unknown source %q", s)
}

const (
	RoleVeterinarian = "veterinarian"
	RoleSecretary    = "secretary"
	RoleTechnician   = "technician"
)

type Client struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	Phone     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Pet struct {
	ID        uuid.UUID
	OwnerID   uuid.UUID
	Name      string
	Species   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Staff struct {
	ID           uuid.UUID
	Name         string
	Email        *string
	Role         string
	Active       bool
	Availability []string // "Monday 09:00-17:00"
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (s Staff) Bookable() bool {
	return s.Active && s.Role == RoleVeterinarian
}

// Appointment references its client, pet and staff by id only.
// Use AppointmentDetail when the referenced entities are needed.
type Appointment struct {
	ID              uuid.UUID
	ClientID        uuid.UUID
	PetID           uuid.UUID
	StaffID         uuid.UUID
	Date            time.Time // civil date at midnight UTC
	Time            string    // "h:mm AM/PM"
	DurationMinutes int
	Type            ServiceType
	Status          AppointmentStatus
	Source          Source
	Reason          string
	Notes           *string
	Cost            *float64
	IsEmergency     bool
	EmergencyReason *string
	CancelReason    *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type AppointmentDetail struct {
	Appointment
	Client *Client
	Pet    *Pet
	Staff  *Staff
}

type StaffSummary struct {
	ID   uuid.UUID
	Name string
}

type BookingRequest struct {
	ClientID        uuid.UUID
	PetID           uuid.UUID
	StaffID         uuid.UUID
	Date            time.Time
	Time            string
	DurationMinutes int
	Type            string
	Reason          string
	Notes           *string
	Source          Source
}

type EmergencyRequest struct {
	ClientID        uuid.UUID
	PetID           uuid.UUID
	Description     string
	EmergencyReason *string
}

type EmergencyAdmission struct {
	Staff     StaffSummary
	Cancelled []Appointment
	Created   *Appointment
}

// AppointmentFilter selects appointments of one staff member on one date.
type AppointmentFilter struct {
	StaffID         uuid.UUID
	Date            time.Time
	ExcludeStatuses []AppointmentStatus
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}
