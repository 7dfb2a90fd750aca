package notify

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/hackgods/vetclinic-scheduling/internal/appointment"
)

// Fanout delivers every notification to all of its notifiers and joins their errors.
type Fanout []appointment.Notifier

func (f Fanout) each(fn func(n appointment.Notifier) error) error {
	var errs []error
	for _, n := range f {
		if err := fn(n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f Fanout) NotifyCancellation(ctx context.Context, c appointment.CancellationNotice) error {
	return f.each(func(n appointment.Notifier) error { return n.NotifyCancellation(ctx, c) })
}

func (f Fanout) NotifyStaffEmergency(ctx context.Context, a appointment.StaffEmergencyAlert) error {
	return f.each(func(n appointment.Notifier) error { return n.NotifyStaffEmergency(ctx, a) })
}

func (f Fanout) NotifySecretaries(ctx context.Context, b appointment.SecretaryBroadcast) error {
	return f.each(func(n appointment.Notifier) error { return n.NotifySecretaries(ctx, b) })
}

func (f Fanout) NotifyOwnerConfirmation(ctx context.Context, c appointment.OwnerConfirmation) error {
	return f.each(func(n appointment.Notifier) error { return n.NotifyOwnerConfirmation(ctx, c) })
}

// LogNotifier only writes notifications to the log. Used when no delivery channel is configured.
type LogNotifier struct {
	Log logrus.FieldLogger
}

func (n LogNotifier) NotifyCancellation(_ context.Context, c appointment.CancellationNotice) error {
	n.Log.WithFields(logrus.Fields{"appointment_id": c.AppointmentID, "to": c.ClientEmail, "staff": c.StaffName}).
		Info("cancellation notice")
	return nil
}

func (n LogNotifier) NotifyStaffEmergency(_ context.Context, a appointment.StaffEmergencyAlert) error {
	n.Log.WithFields(logrus.Fields{"appointment_id": a.AppointmentID, "to": a.StaffEmail, "time": a.Time}).
		Info("staff emergency alert")
	return nil
}

func (n LogNotifier) NotifySecretaries(_ context.Context, b appointment.SecretaryBroadcast) error {
	n.Log.WithFields(logrus.Fields{"appointment_id": b.AppointmentID, "staff": b.StaffName, "cancelled": b.CancelledCount}).
		Info("secretary broadcast")
	return nil
}

func (n LogNotifier) NotifyOwnerConfirmation(_ context.Context, c appointment.OwnerConfirmation) error {
	n.Log.WithFields(logrus.Fields{"appointment_id": c.AppointmentID, "to": c.ClientEmail}).
		Info("owner confirmation")
	return nil
}
