package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/hackgods/vetclinic-scheduling/internal/appointment"
)

const dateLayout = "Monday, January 2, 2006"

// EmailNotifier renders plain-text messages and hands them to a Sender.
type EmailNotifier struct {
	sender      Sender
	secretaries []string
}

func NewEmailNotifier(sender Sender, secretaries []string) *EmailNotifier {
	return &EmailNotifier{sender: sender, secretaries: secretaries}
}

func (n *EmailNotifier) send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if to == "" {
		return errors.New("no recipient address")
	}
	if err := n.sender.Send(ctx, to, subject, body); err != nil {
		return fmt.Errorf("send email to %s: %w", to, err)
	}
	return nil
}

func (n *EmailNotifier) NotifyCancellation(ctx context.Context, c appointment.CancellationNotice) error {
	body := fmt.Sprintf(
		"Hello %s,\n\nWe are sorry, but your appointment on %s at %s had to be cancelled because %s was assigned to an emergency.\n\nPlease book a new time at your convenience.\n",
		c.ClientName, c.Date.Format(dateLayout), c.Time, c.StaffName,
	)
	return n.send(ctx, c.ClientEmail, "Your appointment has been cancelled", body)
}

func (n *EmailNotifier) NotifyStaffEmergency(ctx context.Context, a appointment.StaffEmergencyAlert) error {
	body := fmt.Sprintf(
		"%s,\n\nAn emergency has been assigned to you for %s at %s.\n\nDescription: %s\n",
		a.StaffName, a.Date.Format(dateLayout), a.Time, a.Description,
	)
	if a.Reason != "" {
		body += fmt.Sprintf("Reason: %s\n", a.Reason)
	}
	return n.send(ctx, a.StaffEmail, "EMERGENCY appointment assigned", body)
}

func (n *EmailNotifier) NotifySecretaries(ctx context.Context, b appointment.SecretaryBroadcast) error {
	if len(n.secretaries) == 0 {
		return nil
	}
	body := fmt.Sprintf(
		"Emergency admitted for %s (owner %s) with %s on %s at %s.\n\nDescription: %s\nDisplaced appointments: %d\n",
		b.PetName, b.ClientName, b.StaffName, b.Date.Format(dateLayout), b.Time, b.Description, b.CancelledCount,
	)

	var errs []error
	for _, to := range n.secretaries {
		if err := n.send(ctx, to, "Emergency admission", body); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (n *EmailNotifier) NotifyOwnerConfirmation(ctx context.Context, c appointment.OwnerConfirmation) error {
	body := fmt.Sprintf(
		"Hello %s,\n\n%s has been admitted as an emergency with %s on %s at %s. Please come to the clinic right away.\n",
		c.ClientName, c.PetName, c.StaffName, c.Date.Format(dateLayout), c.Time,
	)
	return n.send(ctx, c.ClientEmail, "Emergency appointment confirmed", body)
}
