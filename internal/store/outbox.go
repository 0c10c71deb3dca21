package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"booking-service/internal/scheduling"
)

func enqueueOutbox(ctx context.Context, tx pgx.Tx, e *scheduling.OutboxEntry) error {
	q := `INSERT INTO calendar_outbox (id,tenant_id,appointment_id,action,event_ref,attempts,next_attempt_at,last_error)
	      VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING created_at`
	err := tx.QueryRow(ctx, q, e.ID, e.TenantID, e.AppointmentID, e.Action, e.EventRef,
		e.Attempts, e.NextAttemptAt, e.LastError).Scan(&e.CreatedAt)
	return mapError(err)
}

func (p *Postgres) EnqueueOutbox(ctx context.Context, e *scheduling.OutboxEntry) error {
	tx, err := p.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if err := enqueueOutbox(ctx, tx, e); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// ClaimDueOutbox leases due entries by pushing next_attempt_at past now+lease.
// SKIP LOCKED keeps concurrent reconcilers off each other's rows.
func (p *Postgres) ClaimDueOutbox(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]scheduling.OutboxEntry, error) {
	q := `UPDATE calendar_outbox SET next_attempt_at=$2
	      WHERE id IN (
	          SELECT id FROM calendar_outbox
	          WHERE abandoned_at IS NULL AND next_attempt_at <= $1
	          ORDER BY next_attempt_at
	          LIMIT $3
	          FOR UPDATE SKIP LOCKED)
	      RETURNING id,tenant_id,appointment_id,action,event_ref,attempts,next_attempt_at,last_error,created_at`
	rows, err := p.DB.Query(ctx, q, now, now.Add(lease), limit)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []scheduling.OutboxEntry
	for rows.Next() {
		var e scheduling.OutboxEntry
		if err := rows.Scan(&e.ID, &e.TenantID, &e.AppointmentID, &e.Action, &e.EventRef,
			&e.Attempts, &e.NextAttemptAt, &e.LastError, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (p *Postgres) CompleteOutbox(ctx context.Context, id string) error {
	_, err := p.DB.Exec(ctx, `DELETE FROM calendar_outbox WHERE id=$1`, id)
	return mapError(err)
}

func (p *Postgres) RetryOutbox(ctx context.Context, id string, attempts int, next time.Time, lastErr string) error {
	q := `UPDATE calendar_outbox SET attempts=$2, next_attempt_at=$3, last_error=$4 WHERE id=$1`
	_, err := p.DB.Exec(ctx, q, id, attempts, next, lastErr)
	return mapError(err)
}

func (p *Postgres) AbandonOutbox(ctx context.Context, id string, lastErr string) error {
	q := `UPDATE calendar_outbox SET abandoned_at=now(), last_error=$2 WHERE id=$1`
	_, err := p.DB.Exec(ctx, q, id, lastErr)
	return mapError(err)
}
