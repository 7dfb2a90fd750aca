package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/vetclinic-scheduling/internal/appointment"
	"github.com/hackgods/vetclinic-scheduling/internal/schedule"
)

type CreateAppointmentRequest struct {
	ClientID        string  `json:"client_id"`
	PetID           string  `json:"pet_id"`
	StaffID         string  `json:"staff_id"`
	Date            string  `json:"date"`
	Time            string  `json:"time"`
	DurationMinutes int     `json:"duration_minutes"`
	Type            string  `json:"type"`
	Reason          string  `json:"reason"`
	Notes           *string `json:"notes,omitempty"`
	Source          string  `json:"source,omitempty"`
}

type UpdateAppointmentRequest struct {
	Notes *string  `json:"notes,omitempty"`
	Cost  *float64 `json:"cost,omitempty"`
}

type StatusRequest struct {
	Status string `json:"status"`
}

type CancelRequest struct {
	Reason string `json:"reason"`
}

type EmergencyRequest struct {
	ClientID        string  `json:"client_id"`
	PetID           string  `json:"pet_id"`
	Description     string  `json:"description"`
	EmergencyReason *string `json:"emergency_reason,omitempty"`
}

type AppointmentResponse struct {
	ID              uuid.UUID `json:"id"`
	ClientID        uuid.UUID `json:"client_id"`
	PetID           uuid.UUID `json:"pet_id"`
	StaffID         uuid.UUID `json:"staff_id"`
	Date            string    `json:"date"`
	Time            string    `json:"time"`
	DurationMinutes int       `json:"duration_minutes"`
	Type            string    `json:"type"`
	Status          string    `json:"status"`
	Source          string    `json:"source"`
	Reason          string    `json:"reason"`
	Notes           *string   `json:"notes,omitempty"`
	Cost            *float64  `json:"cost,omitempty"`
	IsEmergency     bool      `json:"is_emergency"`
	EmergencyReason *string   `json:"emergency_reason,omitempty"`
	CancelReason    *string   `json:"cancel_reason,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type PartyResponse struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email *string   `json:"email,omitempty"`
}

type AppointmentDetailResponse struct {
	AppointmentResponse
	Client *PartyResponse `json:"client,omitempty"`
	Pet    *PartyResponse `json:"pet,omitempty"`
	Staff  *PartyResponse `json:"staff,omitempty"`
}

type SlotsResponse struct {
	StaffID         uuid.UUID `json:"staff_id"`
	Date            string    `json:"date"`
	DurationMinutes int       `json:"duration_minutes"`
	Slots           []string  `json:"slots"`
}

type EmergencyResponse struct {
	Staff       PartyResponse         `json:"staff"`
	Appointment AppointmentResponse   `json:"appointment"`
	Cancelled   []AppointmentResponse `json:"cancelled"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	Field   string `json:"field,omitempty"`
	// Set on booking conflicts.
	ConflictTime     string `json:"conflict_time,omitempty"`
	ConflictDuration int    `json:"conflict_duration_minutes,omitempty"`
}

func toAppointmentResponse(a appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:              a.ID,
		ClientID:        a.ClientID,
		PetID:           a.PetID,
		StaffID:         a.StaffID,
		Date:            a.Date.Format(schedule.DateLayout),
		Time:            a.Time,
		DurationMinutes: a.DurationMinutes,
		Type:            string(a.Type),
		Status:          string(a.Status),
		Source:          string(a.Source),
		Reason:          a.Reason,
		Notes:           a.Notes,
		Cost:            a.Cost,
		IsEmergency:     a.IsEmergency,
		EmergencyReason: a.EmergencyReason,
		CancelReason:    a.CancelReason,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
}

func toAppointmentResponses(as []appointment.Appointment) []AppointmentResponse {
	out := make([]AppointmentResponse, 0, len(as))
	for _, a := range as {
		out = append(out, toAppointmentResponse(a))
	}
	return out
}

func toDetailResponse(d *appointment.AppointmentDetail) AppointmentDetailResponse {
	resp := AppointmentDetailResponse{AppointmentResponse: toAppointmentResponse(d.Appointment)}
	if d.Client != nil {
		resp.Client = &PartyResponse{ID: d.Client.ID, Name: d.Client.Name, Email: d.Client.Email}
	}
	if d.Pet != nil {
		resp.Pet = &PartyResponse{ID: d.Pet.ID, Name: d.Pet.Name}
	}
	if d.Staff != nil {
		resp.Staff = &PartyResponse{ID: d.Staff.ID, Name: d.Staff.Name, Email: d.Staff.Email}
	}
	return resp
}
