package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/hackgods/vetclinic-scheduling/internal/appointment"
)

const (
	KindCancellation      = "appointment.cancelled_for_emergency"
	KindStaffEmergency    = "staff.emergency_assigned"
	KindSecretaries       = "secretaries.emergency_admitted"
	KindOwnerConfirmation = "owner.emergency_confirmed"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Event is the JSON envelope published for every notification.
type Event struct {
	Kind          string    `json:"kind"`
	AppointmentID string    `json:"appointment_id"`
	OccurredAt    time.Time `json:"occurred_at"`
	Payload       any       `json:"payload"`
}

// EventPublisher publishes notifications to Kafka for downstream delivery services.
type EventPublisher struct {
	writer messageWriter
	now    func() time.Time
}

func NewEventPublisher(brokers []string, topic string) *EventPublisher {
	return &EventPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
		},
		now: time.Now,
	}
}

func (p *EventPublisher) Close() error {
	return p.writer.Close()
}

func (p *EventPublisher) publish(ctx context.Context, kind, appointmentID string, payload any) error {
	value, err := json.Marshal(Event{
		Kind:          kind,
		AppointmentID: appointmentID,
		OccurredAt:    p.now().UTC(),
		Payload:       payload,
	})
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", kind, err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(appointmentID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(kind)},
		},
	})
	if err != nil {
		return fmt.Errorf("publish %s event: %w", kind, err)
	}
	return nil
}

type cancellationPayload struct {
	ClientName  string `json:"client_name"`
	ClientEmail string `json:"client_email"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	StaffName   string `json:"staff_name"`
}

type staffEmergencyPayload struct {
	StaffName   string `json:"staff_name"`
	StaffEmail  string `json:"staff_email"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Description string `json:"description"`
	Reason      string `json:"reason,omitempty"`
}

type secretariesPayload struct {
	ClientName     string `json:"client_name"`
	PetName        string `json:"pet_name"`
	StaffName      string `json:"staff_name"`
	Date           string `json:"date"`
	Time           string `json:"time"`
	Description    string `json:"description"`
	CancelledCount int    `json:"cancelled_count"`
}

type ownerConfirmationPayload struct {
	ClientName  string `json:"client_name"`
	ClientEmail string `json:"client_email"`
	PetName     string `json:"pet_name"`
	StaffName   string `json:"staff_name"`
	Date        string `json:"date"`
	Time        string `json:"time"`
}

func (p *EventPublisher) NotifyCancellation(ctx context.Context, c appointment.CancellationNotice) error {
	return p.publish(ctx, KindCancellation, c.AppointmentID.String(), cancellationPayload{
		ClientName:  c.ClientName,
		ClientEmail: c.ClientEmail,
		Date:        c.Date.Format("2006-01-02"),
		Time:        c.Time,
		StaffName:   c.StaffName,
	})
}

func (p *EventPublisher) NotifyStaffEmergency(ctx context.Context, a appointment.StaffEmergencyAlert) error {
	return p.publish(ctx, KindStaffEmergency, a.AppointmentID.String(), staffEmergencyPayload{
		StaffName:   a.StaffName,
		StaffEmail:  a.StaffEmail,
		Date:        a.Date.Format("2006-01-02"),
		Time:        a.Time,
		Description: a.Description,
		Reason:      a.Reason,
	})
}

func (p *EventPublisher) NotifySecretaries(ctx context.Context, b appointment.SecretaryBroadcast) error {
	return p.publish(ctx, KindSecretaries, b.AppointmentID.String(), secretariesPayload{
		ClientName:     b.ClientName,
		PetName:        b.PetName,
		StaffName:      b.StaffName,
		Date:           b.Date.Format("2006-01-02"),
		Time:           b.Time,
		Description:    b.Description,
		CancelledCount: b.CancelledCount,
	})
}

func (p *EventPublisher) NotifyOwnerConfirmation(ctx context.Context, c appointment.OwnerConfirmation) error {
	return p.publish(ctx, KindOwnerConfirmation, c.AppointmentID.String(), ownerConfirmationPayload{
		ClientName:  c.ClientName,
		ClientEmail: c.ClientEmail,
		PetName:     c.PetName,
		StaffName:   c.StaffName,
		Date:        c.Date.Format("2006-01-02"),
		Time:        c.Time,
	})
}
