package appointment

import (
	"errors"
	"fmt"
)

// Error classes. Every error returned by Service matches at most one of these with errors.Is.
var (
	ErrValidation         = errors.New("validation failed")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("appointment conflict")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrInvalidTransition  = errors.New("invalid status transition")
)

var (
	ErrNoVeterinarians   = fmt.Errorf("%w: no veterinarians", ErrServiceUnavailable)
	ErrNoVetForEmergency = fmt.Errorf("%w: no vet available for emergency window", ErrServiceUnavailable)
	ErrScheduleBusy      = fmt.Errorf("%w: schedule is being modified, please retry", ErrServiceUnavailable)
)

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// ConflictError names the existing booking that clashes with a request.
type ConflictError struct {
	Time            string
	DurationMinutes int
}

func (e *ConflictError) Error() string {
	if e.Time == "" {
		return "time slot already booked"
	}
	return fmt.Sprintf("conflicts with existing appointment at %s for %d minutes", e.Time, e.DurationMinutes)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}
