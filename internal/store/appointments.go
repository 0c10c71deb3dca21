package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"booking-service/internal/scheduling"
)

const appointmentCols = `id,tenant_id,start_at,duration_minutes,meeting_type,status,booked_by,
	caller_name,caller_phone,caller_email,call_ref,notes,external_event_ref,calendar_sync,created_at,updated_at`

func scanAppointment(row pgx.Row) (*scheduling.Appointment, error) {
	var a scheduling.Appointment
	err := row.Scan(&a.ID, &a.TenantID, &a.StartAt, &a.DurationMinutes, &a.Type, &a.Status,
		&a.Attribution.BookedBy, &a.Attribution.CallerName, &a.Attribution.CallerPhone,
		&a.Attribution.CallerEmail, &a.Attribution.CallRef, &a.Notes,
		&a.ExternalEventRef, &a.CalendarSync, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (p *Postgres) queryAppointments(ctx context.Context, q string, args ...any) ([]scheduling.Appointment, error) {
	rows, err := p.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []scheduling.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// InsertAppointment writes the appointment and, when given, its outbox entry in
// one transaction. The appointments_no_overlap exclusion constraint rejects an
// overlapping scheduled row; that surfaces as scheduling.ErrConflict.
func (p *Postgres) InsertAppointment(ctx context.Context, a *scheduling.Appointment, outbox *scheduling.OutboxEntry) error {
	tx, err := p.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	q := `INSERT INTO appointments
	      (id,tenant_id,start_at,end_at,duration_minutes,meeting_type,status,booked_by,
	       caller_name,caller_phone,caller_email,call_ref,notes,external_event_ref,calendar_sync)
	      VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	      RETURNING created_at, updated_at`
	err = tx.QueryRow(ctx, q,
		a.ID, a.TenantID, a.StartAt, a.EndAt(), a.DurationMinutes, a.Type, a.Status,
		a.Attribution.BookedBy, a.Attribution.CallerName, a.Attribution.CallerPhone,
		a.Attribution.CallerEmail, a.Attribution.CallRef, a.Notes,
		a.ExternalEventRef, a.CalendarSync,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return mapError(err)
	}

	if outbox != nil {
		if err := enqueueOutbox(ctx, tx, outbox); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (p *Postgres) GetAppointment(ctx context.Context, tenantID, id string) (*scheduling.Appointment, error) {
	q := `SELECT ` + appointmentCols + ` FROM appointments WHERE tenant_id=$1 AND id=$2`
	a, err := scanAppointment(p.DB.QueryRow(ctx, q, tenantID, id))
	if err != nil {
		return nil, mapError(err)
	}
	return a, nil
}

func (p *Postgres) ListScheduledOverlapping(ctx context.Context, tenantID string, from, to time.Time) ([]scheduling.Appointment, error) {
	q := `SELECT ` + appointmentCols + ` FROM appointments
	      WHERE tenant_id=$1 AND status='scheduled' AND start_at < $3 AND end_at > $2
	      ORDER BY start_at`
	return p.queryAppointments(ctx, q, tenantID, from, to)
}

func (p *Postgres) ListAppointments(ctx context.Context, tenantID string, from, to time.Time) ([]scheduling.Appointment, error) {
	if from.IsZero() || to.IsZero() {
		q := `SELECT ` + appointmentCols + ` FROM appointments WHERE tenant_id=$1 ORDER BY start_at`
		return p.queryAppointments(ctx, q, tenantID)
	}
	q := `SELECT ` + appointmentCols + ` FROM appointments
	      WHERE tenant_id=$1 AND start_at >= $2 AND start_at < $3
	      ORDER BY start_at`
	return p.queryAppointments(ctx, q, tenantID, from, to)
}

func (p *Postgres) TransitionStatus(ctx context.Context, tenantID, id string, status scheduling.AppointmentStatus) (*scheduling.Appointment, error) {
	q := `UPDATE appointments SET status=$3, updated_at=now()
	      WHERE tenant_id=$1 AND id=$2 AND status='scheduled'
	      RETURNING ` + appointmentCols
	a, err := scanAppointment(p.DB.QueryRow(ctx, q, tenantID, id, status))
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, mapError(err)
	}
	// Either missing or no longer scheduled.
	if _, err := p.GetAppointment(ctx, tenantID, id); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: appointment is not scheduled", scheduling.ErrConflict)
}

func (p *Postgres) SetExternalEvent(ctx context.Context, tenantID, id, eventRef string) error {
	q := `UPDATE appointments SET external_event_ref=$3, calendar_sync='synced', updated_at=now()
	      WHERE tenant_id=$1 AND id=$2 AND status='scheduled'`
	res, err := p.DB.Exec(ctx, q, tenantID, id, eventRef)
	if err != nil {
		return mapError(err)
	}
	if res.RowsAffected() > 0 {
		return nil
	}
	if _, err := p.GetAppointment(ctx, tenantID, id); err != nil {
		return err
	}
	return fmt.Errorf("%w: appointment is not scheduled", scheduling.ErrConflict)
}
