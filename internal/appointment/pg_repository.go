package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgUniqueViolation = "23505"

const appointmentColumns = `id, client_id, pet_id, staff_id, date, time, duration_minutes, type, status, source,
		reason, notes, cost, is_emergency, emergency_reason, cancel_reason, created_at, updated_at`

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanClient(row pgx.Row) (*Client, error) {
	var c Client

	err := row.Scan(
		&c.ID,
		&c.Name,
		&c.Email,
		&c.Phone,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}

	return &c, nil
}

func scanPet(row pgx.Row) (*Pet, error) {
	var p Pet

	err := row.Scan(
		&p.ID,
		&p.OwnerID,
		&p.Name,
		&p.Species,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPetNotFound
		}
		return nil, err
	}

	return &p, nil
}

func scanStaff(row pgx.Row) (*Staff, error) {
	var s Staff

	err := row.Scan(
		&s.ID,
		&s.Name,
		&s.Email,
		&s.Role,
		&s.Active,
		&s.Availability,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStaffNotFound
		}
		return nil, err
	}

	return &s, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.ClientID,
		&a.PetID,
		&a.StaffID,
		&a.Date,
		&a.Time,
		&a.DurationMinutes,
		&a.Type,
		&a.Status,
		&a.Source,
		&a.Reason,
		&a.Notes,
		&a.Cost,
		&a.IsEmergency,
		&a.EmergencyReason,
		&a.CancelReason,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	return &a, nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// IsUniqueViolation reports whether err is a Postgres unique constraint violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func statusStrings(statuses []AppointmentStatus) []string {
	out := make([]string, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, string(s))
	}
	return out
}

// Interface methods

func (r *PgRepository) GetClientByID(ctx context.Context, id uuid.UUID) (*Client, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, phone, created_at, updated_at
		FROM clients
		WHERE id = $1
	`, id)
	return scanClient(row)
}

func (r *PgRepository) GetPetByID(ctx context.Context, id uuid.UUID) (*Pet, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, owner_id, name, species, created_at, updated_at
		FROM pets
		WHERE id = $1
	`, id)
	return scanPet(row)
}

func (r *PgRepository) GetStaffByID(ctx context.Context, id uuid.UUID) (*Staff, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, role, active, availability, created_at, updated_at
		FROM staff
		WHERE id = $1
	`, id)
	return scanStaff(row)
}

func (r *PgRepository) ListActiveVeterinarians(ctx context.Context) ([]Staff, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, email, role, active, availability, created_at, updated_at
		FROM staff
		WHERE active AND role = $1
		ORDER BY id
	`, RoleVeterinarian)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Staff
	for rows.Next() {
		s, err := scanStaff(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	appt, err := r.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &AppointmentDetail{Appointment: *appt}

	if detail.Client, err = r.GetClientByID(ctx, appt.ClientID); err != nil && !errors.Is(err, ErrClientNotFound) {
		return nil, fmt.Errorf("load client: %w", err)
	}
	if detail.Pet, err = r.GetPetByID(ctx, appt.PetID); err != nil && !errors.Is(err, ErrPetNotFound) {
		return nil, fmt.Errorf("load pet: %w", err)
	}
	if detail.Staff, err = r.GetStaffByID(ctx, appt.StaffID); err != nil && !errors.Is(err, ErrStaffNotFound) {
		return nil, fmt.Errorf("load staff: %w", err)
	}

	return detail, nil
}

func (r *PgRepository) FindAppointments(ctx context.Context, f AppointmentFilter) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE staff_id = $1
		  AND date = $2
		  AND NOT (status = ANY($3))
		ORDER BY (to_timestamp(time, 'HH12:MI AM')::time), created_at
	`, f.StaffID, f.Date, statusStrings(f.ExcludeStatuses))
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) CreateAppointment(ctx context.Context, a *Appointment) (*Appointment, error) {
	id := uuid.New()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (id, client_id, pet_id, staff_id, date, time, duration_minutes, type, status, source,
			reason, notes, cost, is_emergency, emergency_reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, now(), now())
		RETURNING `+appointmentColumns,
		id, a.ClientID, a.PetID, a.StaffID, a.Date, a.Time, a.DurationMinutes, a.Type, a.Status, a.Source,
		a.Reason, a.Notes, a.Cost, a.IsEmergency, a.EmergencyReason)

	created, err := scanAppointment(row)
	if IsUniqueViolation(err) {
		return nil, ErrDuplicateBooking
	}
	return created, err
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus, reason *string) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    cancel_reason = COALESCE($4, cancel_reason),
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns, id, to, from, reason)

	return scanAppointment(row)
}

func (r *PgRepository) UpdateAppointmentDetails(ctx context.Context, id uuid.UUID, notes *string, cost *float64) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET notes = COALESCE($2, notes),
		    cost = COALESCE($3, cost),
		    updated_at = now()
		WHERE id = $1
		RETURNING `+appointmentColumns, id, notes, cost)

	return scanAppointment(row)
}

func (r *PgRepository) CommitEmergency(ctx context.Context, cancel []uuid.UUID, reason string, a *Appointment) ([]Appointment, *Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var cancelled []Appointment
	if len(cancel) > 0 {
		rows, err := tx.Query(ctx, `
			UPDATE appointments
			SET status = 'cancelled',
			    cancel_reason = $2,
			    updated_at = now()
			WHERE id = ANY($1)
			  AND status IN ('scheduled', 'confirmed')
			RETURNING `+appointmentColumns, cancel, reason)
		if err != nil {
			return nil, nil, fmt.Errorf("cancel displaced: %w", err)
		}
		if cancelled, err = collectAppointments(rows); err != nil {
			return nil, nil, fmt.Errorf("cancel displaced: %w", err)
		}
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO appointments (id, client_id, pet_id, staff_id, date, time, duration_minutes, type, status, source,
			reason, notes, cost, is_emergency, emergency_reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, now(), now())
		RETURNING `+appointmentColumns,
		uuid.New(), a.ClientID, a.PetID, a.StaffID, a.Date, a.Time, a.DurationMinutes, a.Type, a.Status, a.Source,
		a.Reason, a.Notes, a.Cost, a.IsEmergency, a.EmergencyReason)

	created, err := scanAppointment(row)
	if IsUniqueViolation(err) {
		return nil, nil, ErrDuplicateBooking
	}
	if err != nil {
		return nil, nil, fmt.Errorf("insert emergency: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		if IsUniqueViolation(err) {
			return nil, nil, ErrDuplicateBooking
		}
		return nil, nil, fmt.Errorf("commit: %w", err)
	}

	return cancelled, created, nil
}

func (r *PgRepository) FindOverdue(ctx context.Context, onOrBefore time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status IN ('scheduled', 'confirmed')
		  AND date <= $1
		ORDER BY date, created_at
	`, onOrBefore)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

// Ping is used by readiness checks.
func (r *PgRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
