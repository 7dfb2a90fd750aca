package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Notifier delivers side-channel messages. Delivery failures never undo a committed booking.
type Notifier interface {
	NotifyCancellation(ctx context.Context, n CancellationNotice) error
	NotifyStaffEmergency(ctx context.Context, n StaffEmergencyAlert) error
	NotifySecretaries(ctx context.Context, n SecretaryBroadcast) error
	NotifyOwnerConfirmation(ctx context.Context, n OwnerConfirmation) error
}

type CancellationNotice struct {
	AppointmentID uuid.UUID
	ClientName    string
	ClientEmail   string
	Date          time.Time
	Time          string
	// StaffName is the veterinarian assigned to the emergency that displaced the booking.
	StaffName string
}

type StaffEmergencyAlert struct {
	AppointmentID uuid.UUID
	StaffName     string
	StaffEmail    string
	Date          time.Time
	Time          string
	Description   string
	Reason        string
}

type SecretaryBroadcast struct {
	AppointmentID  uuid.UUID
	ClientName     string
	PetName        string
	StaffName      string
	Date           time.Time
	Time           string
	Description    string
	CancelledCount int
}

type OwnerConfirmation struct {
	AppointmentID uuid.UUID
	ClientName    string
	ClientEmail   string
	PetName       string
	StaffName     string
	Date          time.Time
	Time          string
}
