package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hackgods/vetclinic-scheduling/internal/appointment"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// writeServiceError maps the service error classes onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	var verr *appointment.ValidationError
	var cerr *appointment.ConflictError

	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_failed", Details: verr.Reason, Field: verr.Field})
	case errors.Is(err, appointment.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, appointment.ErrClientNotFound):
		writeError(w, http.StatusNotFound, "client_not_found", err.Error())
	case errors.Is(err, appointment.ErrPetNotFound):
		writeError(w, http.StatusNotFound, "pet_not_found", err.Error())
	case errors.Is(err, appointment.ErrStaffNotFound):
		writeError(w, http.StatusNotFound, "staff_not_found", err.Error())
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, appointment.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.As(err, &cerr):
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error:            "time_conflict",
			Details:          cerr.Error(),
			ConflictTime:     cerr.Time,
			ConflictDuration: cerr.DurationMinutes,
		})
	case errors.Is(err, appointment.ErrScheduleBusy):
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, "schedule_busy", "schedule is currently being modified, please retry shortly")
	case errors.Is(err, appointment.ErrConflict):
		writeError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, appointment.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, appointment.ErrNoVeterinarians):
		writeError(w, http.StatusServiceUnavailable, "no_veterinarians", err.Error())
	case errors.Is(err, appointment.ErrNoVetForEmergency):
		writeError(w, http.StatusServiceUnavailable, "no_vet_for_emergency", err.Error())
	case errors.Is(err, appointment.ErrServiceUnavailable):
		writeError(w, http.StatusServiceUnavailable, "service_unavailable", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "timeout", "a backing service did not answer in time, please retry")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected error")
	}
}
