package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/hackgods/vetclinic-scheduling/internal/appointment"
	"github.com/hackgods/vetclinic-scheduling/internal/schedule"
)

// Scheduler is the part of appointment.Service the HTTP layer uses.
type Scheduler interface {
	CreateAppointment(ctx context.Context, req appointment.BookingRequest) (*appointment.Appointment, error)
	AvailableSlots(ctx context.Context, staffID uuid.UUID, date time.Time, duration int) ([]string, error)
	GetAppointment(ctx context.Context, id uuid.UUID) (*appointment.AppointmentDetail, error)
	ListAppointments(ctx context.Context, staffID uuid.UUID, date time.Time) ([]appointment.Appointment, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, to appointment.AppointmentStatus) (*appointment.Appointment, error)
	CancelAppointment(ctx context.Context, id uuid.UUID, reason string) (*appointment.Appointment, error)
	UpdateDetails(ctx context.Context, id uuid.UUID, notes *string, cost *float64) (*appointment.Appointment, error)
	AdmitEmergency(ctx context.Context, req appointment.EmergencyRequest) (*appointment.EmergencyAdmission, error)
}

type handlers struct {
	svc Scheduler
	log logrus.FieldLogger
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return false
	}
	return true
}

func parseID(w http.ResponseWriter, raw, field string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_failed",
			Details: "must be a valid UUID",
			Field:   field,
		})
		return uuid.Nil, false
	}
	return id, true
}

func parseDate(w http.ResponseWriter, raw string) (time.Time, bool) {
	d, err := schedule.ParseDate(raw)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_failed",
			Details: "must be YYYY-MM-DD",
			Field:   "date",
		})
		return time.Time{}, false
	}
	return d, true
}

func (h *handlers) fail(r *http.Request, w http.ResponseWriter, err error) {
	h.log.WithFields(logrus.Fields{
		"request_id": GetRequestID(r.Context()),
		"path":       r.URL.Path,
	}).WithError(err).Debug("request failed")
	writeServiceError(w, err)
}

func (h *handlers) createAppointment(w http.ResponseWriter, r *http.Request) {
	var req CreateAppointmentRequest
	if !decode(w, r, &req) {
		return
	}

	clientID, ok := parseID(w, req.ClientID, "client_id")
	if !ok {
		return
	}
	petID, ok := parseID(w, req.PetID, "pet_id")
	if !ok {
		return
	}
	staffID, ok := parseID(w, req.StaffID, "staff_id")
	if !ok {
		return
	}
	date, ok := parseDate(w, req.Date)
	if !ok {
		return
	}
	source, err := appointment.ParseSource(req.Source)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_failed", Details: err.Error(), Field: "source"})
		return
	}

	appt, err := h.svc.CreateAppointment(r.Context(), appointment.BookingRequest{
		ClientID:        clientID,
		PetID:           petID,
		StaffID:         staffID,
		Date:            date,
		Time:            req.Time,
		DurationMinutes: req.DurationMinutes,
		Type:            req.Type,
		Reason:          req.Reason,
		Notes:           req.Notes,
		Source:          source,
	})
	if err != nil {
		h.fail(r, w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAppointmentResponse(*appt))
}

func (h *handlers) availableSlots(w http.ResponseWriter, r *http.Request) {
	staffID, ok := parseID(w, chi.URLParam(r, "id"), "staff_id")
	if !ok {
		return
	}
	date, ok := parseDate(w, r.URL.Query().Get("date"))
	if !ok {
		return
	}

	duration := 0
	if raw := r.URL.Query().Get("duration"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_failed", Details: "must be an integer", Field: "duration"})
			return
		}
		duration = n
	}

	slots, err := h.svc.AvailableSlots(r.Context(), staffID, date, duration)
	if err != nil {
		h.fail(r, w, err)
		return
	}
	if duration == 0 {
		duration = appointment.DefaultDuration
	}

	writeJSON(w, http.StatusOK, SlotsResponse{
		StaffID:         staffID,
		Date:            date.Format(schedule.DateLayout),
		DurationMinutes: duration,
		Slots:           slots,
	})
}

func (h *handlers) listAppointments(w http.ResponseWriter, r *http.Request) {
	staffID, ok := parseID(w, r.URL.Query().Get("staff_id"), "staff_id")
	if !ok {
		return
	}
	date, ok := parseDate(w, r.URL.Query().Get("date"))
	if !ok {
		return
	}

	appts, err := h.svc.ListAppointments(r.Context(), staffID, date)
	if err != nil {
		h.fail(r, w, err)
		return
	}

	writeJSON(w, http.StatusOK, toAppointmentResponses(appts))
}

func (h *handlers) getAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "id"), "id")
	if !ok {
		return
	}

	detail, err := h.svc.GetAppointment(r.Context(), id)
	if err != nil {
		h.fail(r, w, err)
		return
	}

	writeJSON(w, http.StatusOK, toDetailResponse(detail))
}

func (h *handlers) updateAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "id"), "id")
	if !ok {
		return
	}
	var req UpdateAppointmentRequest
	if !decode(w, r, &req) {
		return
	}

	appt, err := h.svc.UpdateDetails(r.Context(), id, req.Notes, req.Cost)
	if err != nil {
		h.fail(r, w, err)
		return
	}

	writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
}

func (h *handlers) transitionStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "id"), "id")
	if !ok {
		return
	}
	var req StatusRequest
	if !decode(w, r, &req) {
		return
	}
	to, err := appointment.ParseStatus(req.Status)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_failed", Details: err.Error(), Field: "status"})
		return
	}

	appt, err := h.svc.TransitionStatus(r.Context(), id, to)
	if err != nil {
		h.fail(r, w, err)
		return
	}

	writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
}

func (h *handlers) cancelAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "id"), "id")
	if !ok {
		return
	}
	var req CancelRequest
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}

	appt, err := h.svc.CancelAppointment(r.Context(), id, req.Reason)
	if err != nil {
		h.fail(r, w, err)
		return
	}

	writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
}

func (h *handlers) admitEmergency(w http.ResponseWriter, r *http.Request) {
	var req EmergencyRequest
	if !decode(w, r, &req) {
		return
	}
	clientID, ok := parseID(w, req.ClientID, "client_id")
	if !ok {
		return
	}
	petID, ok := parseID(w, req.PetID, "pet_id")
	if !ok {
		return
	}

	adm, err := h.svc.AdmitEmergency(r.Context(), appointment.EmergencyRequest{
		ClientID:        clientID,
		PetID:           petID,
		Description:     req.Description,
		EmergencyReason: req.EmergencyReason,
	})
	if err != nil {
		h.fail(r, w, err)
		return
	}

	writeJSON(w, http.StatusCreated, EmergencyResponse{
		Staff:       PartyResponse{ID: adm.Staff.ID, Name: adm.Staff.Name},
		Appointment: toAppointmentResponse(*adm.Created),
		Cancelled:   toAppointmentResponses(adm.Cancelled),
	})
}
